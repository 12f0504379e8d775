//go:build !linux

package pwm

import (
	"errors"
	"io/fs"
)

// Stubs for non-Linux builds; sysfs errnos only exist on Linux.
func IsBusy(err error) bool    { return false }
func IsInvalid(err error) bool { return false }

func IsNotExported(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Op {
	case OpPeriod, OpState, OpDutyCycle:
		return errors.Is(err, fs.ErrNotExist)
	}
	return false
}
