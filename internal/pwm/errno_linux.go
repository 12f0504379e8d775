//go:build linux

package pwm

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsBusy reports whether the kernel refused the write with EBUSY, typically
// an export of a channel another consumer already claimed.
func IsBusy(err error) bool {
	return errors.Is(err, unix.EBUSY)
}

// IsInvalid reports whether the driver rejected the written value, e.g. a
// duty cycle above the period or a period the running channel can't take.
func IsInvalid(err error) bool {
	return errors.Is(err, unix.EINVAL)
}

// IsNotExported reports whether a channel attribute write failed because
// the pwmN directory does not exist.
func IsNotExported(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Op {
	case OpPeriod, OpState, OpDutyCycle:
		return errors.Is(err, unix.ENOENT)
	}
	return false
}
