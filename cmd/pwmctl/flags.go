package main

import (
	"flag"
	"fmt"
	"io"
	"math"

	"pwmctl/internal/pwm"
)

// options holds either a config path or a single-channel request.
type options struct {
	configPath string
	root       string

	chip     uint8
	channel  uint8
	export   bool
	unexport bool
	periodNS *uint32
	percent  *float64
	dutyNS   *uint32
	state    *pwm.State
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("pwmctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		o               options
		chip, channel   uint
		period, dutyNS  uint64
		percent         float64
		enable, disable bool
	)
	fs.StringVar(&o.configPath, "config", "", "Path to YAML config (applies every channel, then waits for a signal)")
	fs.StringVar(&o.root, "root", pwm.DefaultRoot, "sysfs PWM class directory")
	fs.UintVar(&chip, "chip", 0, "PWM chip index (pwmchipN)")
	fs.UintVar(&channel, "channel", 0, "channel index within the chip (pwmN)")
	fs.BoolVar(&o.export, "export", false, "export the channel first")
	fs.BoolVar(&o.unexport, "unexport", false, "unexport the channel last")
	fs.Uint64Var(&period, "period", 0, "period in ns")
	fs.Float64Var(&percent, "duty", 0, "duty cycle in percent of the period")
	fs.Uint64Var(&dutyNS, "duty-ns", 0, "duty cycle in ns")
	fs.BoolVar(&enable, "enable", false, "enable the output")
	fs.BoolVar(&disable, "disable", false, "disable the output")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if o.configPath != "" {
		for name := range set {
			if name != "config" && name != "root" {
				return options{}, fmt.Errorf("-%s cannot be combined with -config", name)
			}
		}
		if !set["root"] {
			o.root = ""
		}
		return o, nil
	}

	if chip > math.MaxUint8 || channel > math.MaxUint8 {
		return options{}, fmt.Errorf("-chip and -channel must be within 0..255")
	}
	o.chip, o.channel = uint8(chip), uint8(channel)

	if o.export && o.unexport {
		return options{}, fmt.Errorf("-export and -unexport are mutually exclusive")
	}
	if enable && disable {
		return options{}, fmt.Errorf("-enable and -disable are mutually exclusive")
	}
	if set["duty"] && set["duty-ns"] {
		return options{}, fmt.Errorf("-duty and -duty-ns are mutually exclusive")
	}
	if set["period"] {
		if period > math.MaxUint32 {
			return options{}, fmt.Errorf("-period must fit in 32 bits")
		}
		v := uint32(period)
		o.periodNS = &v
	}
	if set["duty-ns"] {
		if dutyNS > math.MaxUint32 {
			return options{}, fmt.Errorf("-duty-ns must fit in 32 bits")
		}
		v := uint32(dutyNS)
		o.dutyNS = &v
	}
	if set["duty"] {
		o.percent = &percent
	}
	switch {
	case enable:
		s := pwm.Enabled
		o.state = &s
	case disable:
		s := pwm.Disabled
		o.state = &s
	}
	if !o.export && !o.unexport && o.periodNS == nil && o.dutyNS == nil && o.percent == nil && o.state == nil {
		return options{}, fmt.Errorf("nothing to do: pass -config or at least one channel operation")
	}
	return o, nil
}
