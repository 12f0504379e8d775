package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

const (
	DefaultRoot     = "/sys/class/pwm"
	DefaultTempPath = "/sys/class/thermal/thermal_zone0/temp"
)

type Config struct {
	// Root is the sysfs PWM class directory.
	Root     string          `yaml:"root"`
	Channels []ChannelConfig `yaml:"channels"`
	Fan      FanConfig       `yaml:"fan"`
}

// ChannelConfig is applied in order: export, period, duty, enable.
type ChannelConfig struct {
	Name     string `yaml:"name"`
	Chip     uint8  `yaml:"chip"`
	Channel  uint8  `yaml:"channel"`
	PeriodNS uint32 `yaml:"period_ns"`
	// At most one of DutyPercent and DutyNS may be set.
	DutyPercent    *float64 `yaml:"duty_percent"`
	DutyNS         *uint32  `yaml:"duty_ns"`
	Enable         bool     `yaml:"enable"`
	UnexportOnExit bool     `yaml:"unexport_on_exit"`
}

type FanConfig struct {
	Enable  bool   `yaml:"enable"`
	Backend string `yaml:"backend"`

	Chip      uint8     `yaml:"chip"`
	Channel   uint8     `yaml:"channel"`
	Frequency Frequency `yaml:"frequency"`

	TempTargetC    float64       `yaml:"temp_target_c"`
	DutyMin        int           `yaml:"duty_min"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	TempPath       string        `yaml:"temp_path"`

	GPIOChip   string `yaml:"gpio_chip"`
	GPIOOffset int    `yaml:"gpio_offset"`
}

// Frequency decodes strings such as "25kHz" or "1MHz". Zero is only
// produced by an absent key.
type Frequency physic.Frequency

func (f *Frequency) UnmarshalYAML(n *yaml.Node) error {
	var v physic.Frequency
	if err := v.Set(n.Value); err != nil {
		return fmt.Errorf("frequency %q: %w", n.Value, err)
	}
	if v <= 0 {
		return fmt.Errorf("fan.frequency must be > 0, got %q", n.Value)
	}
	*f = Frequency(v)
	return nil
}

func (f Frequency) String() string { return physic.Frequency(f).String() }

// PeriodNS is the length of one cycle in ns, saturated to uint32.
func (f Frequency) PeriodNS() uint32 {
	ns := physic.Frequency(f).Period().Nanoseconds()
	if ns > math.MaxUint32 {
		return math.MaxUint32
	}
	if ns < 0 {
		return 0
	}
	return uint32(ns)
}

func (c ChannelConfig) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("pwmchip%d/pwm%d", c.Chip, c.Channel)
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return Config{}, fmt.Errorf("config: %s", strings.Join(stripLines(te.Errors), "; "))
		}
		return Config{}, err
	}

	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if len(cfg.Channels) == 0 && !cfg.Fan.Enable {
		return Config{}, fmt.Errorf("channels is empty and fan.enable is false")
	}

	type key struct{ chip, channel uint8 }
	seen := make(map[key]int, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		k := key{ch.Chip, ch.Channel}
		if j, ok := seen[k]; ok {
			return Config{}, fmt.Errorf("channels[%d] duplicates channels[%d] (pwmchip%d/pwm%d)", i, j, ch.Chip, ch.Channel)
		}
		seen[k] = i
		if ch.DutyPercent != nil && ch.DutyNS != nil {
			return Config{}, fmt.Errorf("channels[%d]: duty_percent and duty_ns are mutually exclusive", i)
		}
	}

	if cfg.Fan.Enable {
		if cfg.Fan.Backend == "" {
			cfg.Fan.Backend = "pwm"
		}
		switch cfg.Fan.Backend {
		case "pwm":
			if j, ok := seen[key{cfg.Fan.Chip, cfg.Fan.Channel}]; ok {
				return Config{}, fmt.Errorf("fan pwmchip%d/pwm%d is also channels[%d]", cfg.Fan.Chip, cfg.Fan.Channel, j)
			}
		case "gpio":
			if cfg.Fan.GPIOChip == "" {
				return Config{}, fmt.Errorf("fan.gpio_chip is required when fan.backend is 'gpio'")
			}
			if cfg.Fan.GPIOOffset < 0 {
				return Config{}, fmt.Errorf("fan.gpio_offset must be >= 0")
			}
		default:
			return Config{}, fmt.Errorf("fan.backend must be 'pwm' or 'gpio'")
		}
		if cfg.Fan.DutyMin < 0 || cfg.Fan.DutyMin > 100 {
			return Config{}, fmt.Errorf("fan.duty_min must be within 0..100")
		}
	}

	// Fan defaults (safe even if disabled).
	if cfg.Fan.Frequency == 0 {
		cfg.Fan.Frequency = Frequency(25 * physic.KiloHertz)
	}
	if cfg.Fan.TempTargetC == 0 {
		cfg.Fan.TempTargetC = 50.0
	}
	if cfg.Fan.UpdateInterval <= 0 {
		cfg.Fan.UpdateInterval = 5 * time.Second
	}
	if cfg.Fan.TempPath == "" {
		cfg.Fan.TempPath = DefaultTempPath
	}

	return cfg, nil
}

var linePrefix = regexp.MustCompile(`^line \d+: `)

// stripLines drops yaml.v3's "line N: " prefixes so messages are stable.
func stripLines(msgs []string) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, linePrefix.ReplaceAllString(m, ""))
	}
	return out
}
