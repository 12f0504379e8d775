package main

import (
	"errors"

	"pwmctl/internal/config"
	"pwmctl/internal/pwm"
)

// runOnce performs the single-channel request in a fixed order: export,
// period, duty, enable/disable, unexport.
func runOnce(ch *pwm.Channel, o options) error {
	if o.export {
		if err := ch.SetExport(true); err != nil {
			return err
		}
	}
	if o.periodNS != nil {
		if err := ch.SetPeriod(*o.periodNS); err != nil {
			return err
		}
	}
	if o.percent != nil {
		if err := ch.Write(*o.percent); err != nil {
			return err
		}
	}
	if o.dutyNS != nil {
		if err := ch.SetDutyCycle(*o.dutyNS); err != nil {
			return err
		}
	}
	if o.state != nil {
		if err := ch.SetState(*o.state); err != nil {
			return err
		}
	}
	if o.unexport {
		return ch.SetExport(false)
	}
	return nil
}

// applyChannel exports and configures one configured channel. A zero
// period is left untouched so a channel can be re-enabled with whatever
// the kernel already has.
func applyChannel(ch *pwm.Channel, c config.ChannelConfig) error {
	if err := ch.SetExport(true); err != nil {
		return err
	}
	if c.PeriodNS != 0 {
		if err := ch.SetPeriod(c.PeriodNS); err != nil {
			return err
		}
	}
	switch {
	case c.DutyPercent != nil:
		if err := ch.Write(*c.DutyPercent); err != nil {
			return err
		}
	case c.DutyNS != nil:
		if err := ch.SetDutyCycle(*c.DutyNS); err != nil {
			return err
		}
	}
	state := pwm.Disabled
	if c.Enable {
		state = pwm.Enabled
	}
	return ch.SetState(state)
}

// releaseChannel disables and unexports; both are attempted.
func releaseChannel(ch *pwm.Channel) error {
	return errors.Join(ch.SetState(pwm.Disabled), ch.SetExport(false))
}
