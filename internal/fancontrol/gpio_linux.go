//go:build linux

package fancontrol

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// openGPIO drives a 2-wire fan (transistor/MOSFET on a GPIO line) through
// the GPIO character device. Any duty > 0 maps to ON.
func openGPIO(cfg Config) (output, error) {
	line, err := gpiocdev.RequestLine(cfg.GPIOChip, cfg.GPIOOffset,
		gpiocdev.AsOutput(0), gpiocdev.WithConsumer("pwmctl-fan"))
	if err != nil {
		return nil, fmt.Errorf("fancontrol: request %s line %d: %w", cfg.GPIOChip, cfg.GPIOOffset, err)
	}
	return &gpioOutput{line: line}, nil
}

var openGPIOFn = openGPIO

type gpioOutput struct {
	line *gpiocdev.Line
}

func (g *gpioOutput) SetDutyPercent(p float64) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("fancontrol: gpio output closed")
	}
	v := 0
	if p > 0 {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpioOutput) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	return err
}
