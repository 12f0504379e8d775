package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"pwmctl/internal/config"
	"pwmctl/internal/fancontrol"
	"pwmctl/internal/pwm"
)

// runtime owns every channel built from the config. Each channel is only
// touched from the goroutine driving the runtime.
type runtime struct {
	cfg      config.Config
	channels []*pwm.Channel
	fan      *fancontrol.Service
}

func newRuntime(cfg config.Config) *runtime {
	r := &runtime{cfg: cfg}
	for _, c := range cfg.Channels {
		r.channels = append(r.channels, pwm.New(c.Chip, c.Channel, pwm.WithRoot(cfg.Root)))
	}
	return r
}

// start applies channels in config order. On failure, channels already
// applied that asked to be released on exit are released again.
func (r *runtime) start(ctx context.Context) error {
	for i, ch := range r.channels {
		c := r.cfg.Channels[i]
		if err := applyChannel(ch, c); err != nil {
			_ = r.release(i)
			return fmt.Errorf("%s: %w", c.Label(), err)
		}
		log.Printf("%s: %s period=%dns duty=%dns %s", c.Label(), ch, ch.Period(), ch.DutyCycle(), ch.State())
	}

	if r.cfg.Fan.Enable {
		f := r.cfg.Fan
		r.fan = fancontrol.New(fancontrol.Config{
			Enable:         true,
			Backend:        f.Backend,
			Root:           r.cfg.Root,
			Chip:           f.Chip,
			Channel:        f.Channel,
			PeriodNS:       f.Frequency.PeriodNS(),
			GPIOChip:       f.GPIOChip,
			GPIOOffset:     f.GPIOOffset,
			TempTargetC:    f.TempTargetC,
			DutyMin:        f.DutyMin,
			UpdateInterval: f.UpdateInterval,
			TempPath:       f.TempPath,
		})
		if err := r.fan.Start(ctx); err != nil {
			// Keep the configured channels running even if fan control fails to init.
			log.Printf("fancontrol init failed: %v", err)
			r.fan = nil
		} else {
			log.Printf("fancontrol: backend=%s frequency=%s target=%.1fC", f.Backend, f.Frequency, f.TempTargetC)
		}
	}
	return nil
}

// holds reports whether anything needs to happen at exit.
func (r *runtime) holds() bool {
	if r.fan != nil {
		return true
	}
	for _, c := range r.cfg.Channels {
		if c.UnexportOnExit {
			return true
		}
	}
	return false
}

// release disables and unexports the first n channels that asked for it.
func (r *runtime) release(n int) error {
	var errs []error
	for i := 0; i < n; i++ {
		c := r.cfg.Channels[i]
		if !c.UnexportOnExit {
			continue
		}
		if err := releaseChannel(r.channels[i]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Label(), err))
			continue
		}
		log.Printf("%s: released", c.Label())
	}
	return errors.Join(errs...)
}

func (r *runtime) stop() error {
	if r.fan != nil {
		r.fan.Close()
		if snap := r.fan.Snapshot(); snap.LastError != "" {
			log.Printf("fancontrol last error: %s", snap.LastError)
		}
	}
	return r.release(len(r.channels))
}

func runConfig(ctx context.Context, cfg config.Config) error {
	r := newRuntime(cfg)
	if err := r.start(ctx); err != nil {
		return err
	}
	if !r.holds() {
		return nil
	}
	log.Printf("pwmctl running; waiting for signal")
	<-ctx.Done()
	log.Printf("pwmctl stopping")
	return r.stop()
}
