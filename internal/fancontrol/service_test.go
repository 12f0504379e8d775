package fancontrol

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeOutput struct {
	mu     sync.Mutex
	duties []float64
	closed int
	dutyCh chan float64
	// failures is how many SetDutyPercent calls fail before writes succeed.
	failures int
}

func (o *fakeOutput) SetDutyPercent(p float64) error {
	o.mu.Lock()
	o.duties = append(o.duties, p)
	if o.failures > 0 {
		o.failures--
		o.mu.Unlock()
		return errors.New("EIO transient")
	}
	o.mu.Unlock()
	select {
	case o.dutyCh <- p:
	default:
	}
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
	return nil
}

func (o *fakeOutput) last() (float64, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.duties) == 0 {
		return -1, o.closed
	}
	return o.duties[len(o.duties)-1], o.closed
}

func useFakeOutput(t *testing.T, out output, openErr error) {
	t.Helper()
	old := openOutputFn
	openOutputFn = func(cfg Config) (output, error) {
		if openErr != nil {
			return nil, openErr
		}
		return out, nil
	}
	t.Cleanup(func() { openOutputFn = old })
}

func setStartupDurations(t *testing.T, full, minDur time.Duration) {
	t.Helper()
	oldFull, oldMin := startupFullDutyDuration, startupMinDutyDuration
	startupFullDutyDuration, startupMinDutyDuration = full, minDur
	t.Cleanup(func() {
		startupFullDutyDuration, startupMinDutyDuration = oldFull, oldMin
	})
}

func TestServiceStart_IsNonBlocking(t *testing.T) {
	// Huge startup durations catch accidental blocking.
	setStartupDurations(t, time.Hour, time.Hour)
	fake := &fakeOutput{dutyCh: make(chan float64, 8)}
	useFakeOutput(t, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := New(Config{Enable: true})
	start := time.Now()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatalf("Start took too long (likely blocked): %v", time.Since(start))
	}

	select {
	case duty := <-fake.dutyCh:
		if duty != 100 {
			t.Fatalf("first duty=%v want 100", duty)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected startup duty set quickly")
	}
	if snap := svc.Snapshot(); !snap.Enabled || !snap.OutputAvailable {
		t.Fatalf("snapshot=%+v", snap)
	}

	svc.Close()
}

func TestServiceClose_LeavesFanAtFullDuty(t *testing.T) {
	setStartupDurations(t, time.Hour, time.Hour)
	fake := &fakeOutput{dutyCh: make(chan float64, 16)}
	useFakeOutput(t, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	svc := New(Config{Enable: true})
	if err := svc.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-fake.dutyCh:
	case <-time.After(time.Second):
		cancel()
		svc.Close()
		t.Fatalf("expected initial duty set")
	}

	cancel()
	svc.Close()
	svc.Close()
	duty, closed := fake.last()
	if duty != 100 {
		t.Fatalf("last duty=%v want 100", duty)
	}
	if closed != 1 {
		t.Fatalf("Close calls=%d want 1", closed)
	}
	if snap := svc.Snapshot(); snap.OutputAvailable || snap.Duty != 100 {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestServiceStart_DisabledIsNoop(t *testing.T) {
	useFakeOutput(t, nil, errors.New("must not open"))
	svc := New(Config{})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if svc.Snapshot().Enabled {
		t.Fatalf("expected disabled snapshot")
	}
}

func TestServiceStart_OpenErrorReported(t *testing.T) {
	useFakeOutput(t, nil, errors.New("fancontrol: boom"))
	svc := New(Config{Enable: true})
	if err := svc.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if got := svc.Snapshot().LastError; got != "fancontrol: boom" {
		t.Fatalf("LastError=%q", got)
	}
}

func TestServiceLoop_TracksTemperature(t *testing.T) {
	setStartupDurations(t, time.Millisecond, time.Millisecond)
	fake := &fakeOutput{dutyCh: make(chan float64, 64)}
	useFakeOutput(t, fake, nil)

	tempPath := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(tempPath, []byte("80000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := New(Config{Enable: true, DutyMin: 20, UpdateInterval: 5 * time.Millisecond, TempPath: tempPath})
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := svc.Snapshot()
		if snap.CPUValid {
			if snap.CPUTempC != 80 {
				t.Fatalf("temp=%v want 80", snap.CPUTempC)
			}
			// Above target: somewhere between the minimum and full speed.
			if snap.Duty < 20 || snap.Duty > 100 {
				t.Fatalf("duty=%d want within [20,100]", snap.Duty)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("loop never reported a valid temperature: %+v", svc.Snapshot())
}

func TestServiceLoop_SurvivesFailedSpinTestWrite(t *testing.T) {
	setStartupDurations(t, time.Millisecond, time.Millisecond)
	fake := &fakeOutput{dutyCh: make(chan float64, 64), failures: 1}
	useFakeOutput(t, fake, nil)

	tempPath := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(tempPath, []byte("90000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := New(Config{Enable: true, UpdateInterval: 5 * time.Millisecond, TempPath: tempPath})
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !svc.Snapshot().CPUValid {
		if time.Now().After(deadline) {
			svc.Close()
			t.Fatalf("loop never ran after a failed write: %+v", svc.Snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap := svc.Snapshot(); snap.LastError != "" || !snap.OutputAvailable {
		t.Fatalf("snapshot=%+v", snap)
	}

	svc.Close()
	if duty, _ := fake.last(); duty != 100 {
		t.Fatalf("last duty=%v want 100", duty)
	}
}

func TestServiceScale(t *testing.T) {
	svc := New(Config{DutyMin: 20})
	cases := []struct{ in, want float64 }{
		{0, 0},
		{100, 100},
		{50, 60},
		{-10, 0},
		{250, 100},
	}
	for _, tc := range cases {
		if got := svc.scale(tc.in); got != tc.want {
			t.Fatalf("scale(%v)=%v want %v", tc.in, got, tc.want)
		}
	}
}
