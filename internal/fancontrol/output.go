package fancontrol

import (
	"errors"
	"fmt"
	"time"

	"pwmctl/internal/pwm"
)

// output is what the control loop drives. Duty is in percent (0..100).
type output interface {
	SetDutyPercent(p float64) error
	Close() error
}

var exportSettle = 500 * time.Millisecond

func openOutput(cfg Config) (output, error) {
	switch cfg.Backend {
	case "", "pwm":
		return openChannel(cfg, pwm.WithRoot(cfg.Root))
	case "gpio":
		return openGPIOFn(cfg)
	}
	return nil, fmt.Errorf("fancontrol: unknown backend %q", cfg.Backend)
}

// channelOutput drives a sysfs PWM channel at a fixed period.
type channelOutput struct {
	ch *pwm.Channel
}

func openChannel(cfg Config, opts ...pwm.Option) (output, error) {
	ch := pwm.New(cfg.Chip, cfg.Channel, opts...)
	preexisting := ch.Exported()
	if err := ch.SetExport(true); err != nil && !pwm.IsBusy(err) {
		return nil, fmt.Errorf("fancontrol: %w", err)
	}

	// udev may still be creating the attribute files right after export.
	deadline := time.Now().Add(exportSettle)
	for !ch.Exported() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !ch.Exported() {
		return nil, fmt.Errorf("fancontrol: %s not present after export", ch.Dir())
	}

	// Drivers reject a period change while running, and a period shorter than
	// the current duty cycle.
	steps := []func() error{
		func() error { return ch.SetState(pwm.Disabled) },
		func() error { return ch.SetDutyCycle(0) },
		func() error { return ch.SetPeriod(cfg.PeriodNS) },
		func() error { return ch.SetState(pwm.Enabled) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			if !preexisting {
				_ = ch.SetExport(false)
			}
			return nil, fmt.Errorf("fancontrol: %w", err)
		}
	}
	return &channelOutput{ch: ch}, nil
}

func (o *channelOutput) SetDutyPercent(p float64) error {
	return o.ch.Write(p)
}

// Close disables the output and releases the channel.
func (o *channelOutput) Close() error {
	return errors.Join(o.ch.SetState(pwm.Disabled), o.ch.SetExport(false))
}
