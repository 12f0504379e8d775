package pwm

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
)

// DefaultRoot is where the kernel exposes PWM chips.
const DefaultRoot = "/sys/class/pwm"

// State is the output-enable state of a channel.
type State int

const (
	Disabled State = iota
	Enabled
)

func (s State) String() string {
	if s == Enabled {
		return "enabled"
	}
	return "disabled"
}

// Channel is one PWM output, pwmchipC/pwmN.
//
// Notes:
//   - The pin must already be muxed for PWM (e.g. `config-pin P9.21 pwm`)
//     before SetExport is called.
//   - Setters do not check that the channel was exported; the kernel is the
//     only judge of what is legal, and an unexported channel simply fails
//     the write.
//   - Dropping a Channel leaves the hardware as it is. Disable and unexport
//     explicitly if that is wanted.
//
// Not safe for concurrent use.
type Channel struct {
	chip  uint8
	index uint8
	root  string
	fs    FS

	periodNS    uint32
	dutyCycleNS uint32
	state       State
}

type Option func(*Channel)

// WithFS replaces the filesystem used for existence checks and writes.
func WithFS(fs FS) Option {
	return func(c *Channel) { c.fs = fs }
}

// WithRoot relocates the sysfs PWM class directory.
func WithRoot(root string) Option {
	return func(c *Channel) { c.root = root }
}

// New returns a channel with period 0, duty cycle 0 and state Disabled.
// It does not touch the filesystem.
func New(chip, index uint8, opts ...Option) *Channel {
	c := &Channel{chip: chip, index: index, root: DefaultRoot, fs: OSFS{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Chip() uint8  { return c.chip }
func (c *Channel) Index() uint8 { return c.index }

// Period is the last period written, in ns. 0 means never set.
func (c *Channel) Period() uint32 { return c.periodNS }

// DutyCycle is the last duty cycle written, in ns.
func (c *Channel) DutyCycle() uint32 { return c.dutyCycleNS }

func (c *Channel) State() State { return c.state }

func (c *Channel) String() string {
	return fmt.Sprintf("pwmchip%d/pwm%d", c.chip, c.index)
}

func (c *Channel) chipPath() string {
	return filepath.Join(c.root, "pwmchip"+strconv.Itoa(int(c.chip)))
}

// Dir is the per-channel directory the kernel creates on export.
func (c *Channel) Dir() string {
	return filepath.Join(c.chipPath(), "pwm"+strconv.Itoa(int(c.index)))
}

// Exported checks the filesystem every time; export state is never cached.
func (c *Channel) Exported() bool {
	return c.fs.Exists(c.Dir())
}

// SetExport exports (true) or unexports (false) the channel. Asking for the
// state the channel directory already reflects is a no-op.
func (c *Channel) SetExport(export bool) error {
	exists := c.fs.Exists(c.Dir())
	switch {
	case export && !exists:
		return c.control(OpExport, "export")
	case !export && exists:
		return c.control(OpUnexport, "unexport")
	}
	return nil
}

// SetPeriod writes the period in nanoseconds.
func (c *Channel) SetPeriod(periodNS uint32) error {
	v := strconv.FormatUint(uint64(periodNS), 10)
	if err := c.writeAttr("period", v); err != nil {
		return c.fail(OpPeriod, v, err)
	}
	c.periodNS = periodNS
	return nil
}

// SetState enables or disables the output.
func (c *Channel) SetState(s State) error {
	v := "0"
	if s == Enabled {
		v = "1"
	}
	if err := c.writeAttr("enable", v); err != nil {
		return c.fail(OpState, s.String(), err)
	}
	c.state = s
	return nil
}

// Write sets the duty cycle as a percentage of the cached period.
//
// The cached period is used as is: with no period set the duty cycle is 0.
// Percentages outside [0, 100] are not rejected; the result is clamped only
// to the uint32 range and the kernel decides whether to accept it.
func (c *Channel) Write(percent float64) error {
	duty := dutyFromPercent(percent, c.periodNS)
	v := strconv.FormatUint(uint64(duty), 10)
	if err := c.writeAttr("duty_cycle", v); err != nil {
		return c.fail(OpDutyCycle, fmt.Sprintf("%s (%g%%)", v, percent), err)
	}
	c.dutyCycleNS = duty
	return nil
}

// SetDutyCycle writes the duty cycle in nanoseconds. It is not checked
// against the period.
func (c *Channel) SetDutyCycle(dutyNS uint32) error {
	v := strconv.FormatUint(uint64(dutyNS), 10)
	if err := c.writeAttr("duty_cycle", v); err != nil {
		return c.fail(OpDutyCycle, v, err)
	}
	c.dutyCycleNS = dutyNS
	return nil
}

func (c *Channel) control(op Op, name string) error {
	p := filepath.Join(c.chipPath(), name)
	if err := c.fs.WriteText(p, strconv.Itoa(int(c.index))); err != nil {
		return c.fail(op, "", err)
	}
	return nil
}

func (c *Channel) writeAttr(name, value string) error {
	return c.fs.WriteText(filepath.Join(c.Dir(), name), value)
}

func (c *Channel) fail(op Op, value string, err error) error {
	return &Error{Op: op, Chip: c.chip, Channel: c.index, Value: value, Err: err}
}

// dutyFromPercent truncates toward zero and saturates to the uint32 range.
func dutyFromPercent(percent float64, periodNS uint32) uint32 {
	ns := math.Trunc(percent / 100 * float64(periodNS))
	switch {
	case math.IsNaN(ns) || ns <= 0:
		return 0
	case ns >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(ns)
}
