// Package reading selects CPU package temperature sensors and normalizes
// their values.
package reading

import (
	"math"
	"strconv"
	"strings"

	"tempagent/internal/hardware"
)

// Sensor name fragments that identify the package-level CPU temperature:
// "CPU Package" on Intel, "Core (Tctl/Tdie)" on AMD.
var cpuPackageNames = []string{
	"CPU Package",
	"Core (Tctl/Tdie)",
}

// Reading is a normalized temperature taken from one sensor during one sample.
type Reading struct {
	SensorName string
	Celsius    float64
}

// String renders the value with exactly one fractional digit and no unit.
// Negative zero is written as "0.0".
func (r Reading) String() string {
	c := r.Celsius
	if c == 0 {
		c = 0
	}
	return strconv.FormatFloat(c, 'f', 1, 64)
}

// IsRelevant reports whether s is a CPU package temperature sensor.
// Matching is a case-sensitive substring test.
func IsRelevant(s hardware.Sensor) bool {
	if s.Type != hardware.SensorTemperature {
		return false
	}
	for _, name := range cpuPackageNames {
		if strings.Contains(s.Name, name) {
			return true
		}
	}
	return false
}

// Extract returns the rounded reading of s. ok is false when s is not
// relevant or has no current value.
func Extract(s hardware.Sensor) (r Reading, ok bool) {
	if !IsRelevant(s) || s.Value == nil {
		return Reading{}, false
	}
	return Reading{
		SensorName: s.Name,
		Celsius:    Round(float64(*s.Value)),
	}, true
}

// Round rounds v to one decimal place, ties to even. Values that round to
// zero return positive zero.
func Round(v float64) float64 {
	r := math.RoundToEven(v*10) / 10
	if r == 0 {
		return 0
	}
	return r
}
