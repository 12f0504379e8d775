package fancontrol

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"pwmctl/internal/pwm"
)

var openOutputFn = openOutput
var afterFn = time.After

var startupFullDutyDuration = 5 * time.Second
var startupMinDutyDuration = 10 * time.Second

type Config struct {
	Enable bool
	// Backend is "pwm" (sysfs channel) or "gpio" (on/off line).
	Backend string

	Root     string
	Chip     uint8
	Channel  uint8
	PeriodNS uint32

	GPIOChip   string
	GPIOOffset int

	// TempTargetC is the CPU temperature target in degrees C.
	TempTargetC float64
	// DutyMin is the minimum duty (0-100) that keeps the fan spinning.
	DutyMin        int
	UpdateInterval time.Duration
	TempPath       string
}

type Snapshot struct {
	Enabled bool `json:"enabled"`

	CPUValid bool    `json:"cpu_valid"`
	CPUTempC float64 `json:"cpu_temp_c"`

	OutputAvailable bool `json:"output_available"`
	Duty            int  `json:"duty"`

	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Service runs a startup spin test followed by a PID loop that maps CPU
// temperature to fan duty.
type Service struct {
	cfg Config

	mu   sync.RWMutex
	snap Snapshot

	outMu sync.Mutex
	out   output

	wg sync.WaitGroup

	closeOnce sync.Once
	stopCh    chan struct{}
}

func New(cfg Config) *Service {
	if cfg.Backend == "" {
		cfg.Backend = "pwm"
	}
	if cfg.Root == "" {
		cfg.Root = pwm.DefaultRoot
	}
	if cfg.PeriodNS == 0 {
		// 25kHz, the usual 4-wire fan control frequency.
		cfg.PeriodNS = 40000
	}
	if cfg.TempTargetC == 0 {
		cfg.TempTargetC = 50.0
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 5 * time.Second
	}
	if cfg.TempPath == "" {
		cfg.TempPath = "/sys/class/thermal/thermal_zone0/temp"
	}
	return &Service{cfg: cfg, stopCh: make(chan struct{})}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Close stops the loop, leaves the fan at full duty and releases the output.
// Safe to call more than once; concurrent callers return once shutdown is
// complete.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.stopCh)

		// The loop must not touch the output while it is being closed.
		s.wg.Wait()

		s.outMu.Lock()
		out := s.out
		s.out = nil
		s.outMu.Unlock()
		if out == nil {
			return
		}
		if err := out.SetDutyPercent(100); err != nil {
			s.setErr(fmt.Sprintf("fancontrol: set duty failed: %v", err))
		}
		if err := out.Close(); err != nil {
			s.setErr(err.Error())
		}
		s.setState(func(sn *Snapshot) {
			sn.Duty = 100
			sn.OutputAvailable = false
		})
	})
}

func (s *Service) setErr(msg string) {
	s.setState(func(sn *Snapshot) { sn.LastError = msg })
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}

// Start opens the output and returns; the spin test and control loop run in
// the background until ctx is canceled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("fancontrol: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}

	s.setState(func(sn *Snapshot) {
		sn.Enabled = true
	})

	out, err := openOutputFn(s.cfg)
	if err != nil {
		s.setErr(err.Error())
		return err
	}
	s.outMu.Lock()
	s.out = out
	s.outMu.Unlock()

	s.setState(func(sn *Snapshot) {
		sn.OutputAvailable = true
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.startupAndRun(ctx, out)
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.stopCh:
		}
	}()
	return nil
}

// wait returns false if the service is shutting down.
func (s *Service) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-afterFn(d):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	}
}

func (s *Service) apply(out output, duty float64) bool {
	if err := out.SetDutyPercent(duty); err != nil {
		s.setErr(fmt.Sprintf("fancontrol: set duty failed: %v", err))
		return false
	}
	s.setState(func(sn *Snapshot) { sn.Duty = int(math.Round(duty)) })
	return true
}

func (s *Service) startupAndRun(ctx context.Context, out output) {
	// Whatever ends the loop, the fan is left running.
	defer func() { _ = out.SetDutyPercent(100) }()

	// Spin test: full duty, then the configured minimum. A failed write is
	// recorded and the loop retries on every tick.
	s.apply(out, 100)
	if !s.wait(ctx, startupFullDutyDuration) {
		return
	}
	s.apply(out, clamp(float64(s.cfg.DutyMin), 0, 100))
	if !s.wait(ctx, startupMinDutyDuration) {
		return
	}
	s.runLoop(ctx, out)
}

// scale maps controller demand (0..100) onto [DutyMin, 100].
func (s *Service) scale(demand float64) float64 {
	lo := clamp(float64(s.cfg.DutyMin), 0, 100)
	demand = clamp(demand, 0, 100)
	if demand > 0 {
		demand = lo + demand*(100.0-lo)/100.0
	}
	return clamp(demand, 0, 100)
}

func (s *Service) runLoop(ctx context.Context, out output) {
	ctl := newPID(0.2, 0.2, 0.1, s.cfg.TempTargetC)

	zone := thermalZone(s.cfg.TempPath)
	t := time.NewTicker(s.cfg.UpdateInterval)
	defer t.Stop()

	running := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-t.C:
		}

		tempC, err := zone.celsius()
		if err != nil {
			s.setState(func(sn *Snapshot) {
				sn.CPUValid = false
				sn.LastError = err.Error()
			})
			// Fail-safe: full speed while the temperature is unknown.
			s.apply(out, 100)
			continue
		}

		demand := ctl.update(tempC, s.cfg.UpdateInterval)
		// Deadband: stay at minimum until the controller asks for > 5%.
		if demand > 5.0 || running {
			running = demand != 0
		} else {
			demand = 1
		}
		if !s.apply(out, s.scale(demand)) {
			continue
		}
		s.setState(func(sn *Snapshot) {
			sn.CPUValid = true
			sn.CPUTempC = tempC
			sn.LastError = ""
		})
	}
}
