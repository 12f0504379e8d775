package fancontrol

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// thermalZone is the path of a sysfs temperature file, such as
// /sys/class/thermal/thermal_zone0/temp.
type thermalZone string

func (z thermalZone) celsius() (float64, error) {
	b, err := os.ReadFile(string(z))
	if err != nil {
		return 0, fmt.Errorf("fancontrol: thermal zone: %w", err)
	}
	return parseCelsius(string(b))
}

// parseCelsius reads the first field as millidegrees, the kernel's unit.
// Readings below 1000 in magnitude are taken as whole degrees, which some
// hwmon shims report.
func parseCelsius(raw string) (float64, error) {
	f := strings.Fields(raw)
	if len(f) == 0 {
		return 0, fmt.Errorf("fancontrol: thermal zone: empty reading")
	}
	v, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return 0, fmt.Errorf("fancontrol: thermal zone: %w", err)
	}
	if math.Abs(v) >= 1000 {
		v /= 1000
	}
	return v, nil
}
