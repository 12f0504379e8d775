//go:build !linux

package fancontrol

import "fmt"

func openGPIO(cfg Config) (output, error) {
	return nil, fmt.Errorf("fancontrol: gpio unsupported on this platform")
}

var openGPIOFn = openGPIO
