package pwm

import "fmt"

// Op names the channel operation that failed.
type Op int

const (
	OpExport Op = iota
	OpUnexport
	OpPeriod
	OpState
	OpDutyCycle
)

func (o Op) String() string {
	switch o {
	case OpExport:
		return "export"
	case OpUnexport:
		return "unexport"
	case OpPeriod:
		return "period"
	case OpState:
		return "state"
	case OpDutyCycle:
		return "duty cycle"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Error reports a failed sysfs write for one channel.
//
// Every failure the kernel can produce (channel not exported, value
// rejected, device busy, permission denied) arrives as Err; use errors.Is
// on the returned error or the Is* helpers to tell them apart.
type Error struct {
	Op      Op
	Chip    uint8
	Channel uint8
	// Value is the payload that was being written, empty for export/unexport.
	Value string
	Err   error
}

func (e *Error) Error() string {
	id := fmt.Sprintf("pwmchip%d/pwm%d", e.Chip, e.Channel)
	if e.Op == OpExport || e.Op == OpUnexport {
		return fmt.Sprintf("pwm: %s %s: %v", e.Op, id, e.Err)
	}
	return fmt.Sprintf("pwm: set %s of %s to %s: %v", e.Op, id, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
