// Package units provides shared constants and validation for band units
package units

import (
	"fmt"
	"strings"
)

// Unit is the physical quantity held by a band.
type Unit int

// Unit constants
const (
	Unknown Unit = iota
	Amplitude
	Intensity
	IntensityDB
	Phase
	Real
	Imaginary
	Degrees
)

var unitNames = map[Unit]string{
	Amplitude:   "amplitude",
	Intensity:   "intensity",
	IntensityDB: "intensity_db",
	Phase:       "phase",
	Real:        "real",
	Imaginary:   "imaginary",
	Degrees:     "degrees",
}

// ValidUnits contains all valid unit names
var ValidUnits = []string{"amplitude", "intensity", "intensity_db", "phase", "real", "imaginary", "degrees"}

func (u Unit) String() string {
	if s, ok := unitNames[u]; ok {
		return s
	}
	return "unknown"
}

// Parse resolves a unit name. Matching ignores case and accepts "dB" as a
// suffix for intensity_db.
func Parse(s string) (Unit, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "intensity_db", "intensity db", "db":
		return IntensityDB, nil
	}
	for u, n := range unitNames {
		if n == name {
			return u, nil
		}
	}
	return Unknown, fmt.Errorf("unknown band unit %q (valid: %s)", s, GetValidUnitsString())
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	_, err := Parse(unit)
	return err == nil
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// IsBackscatter reports whether terrain flattening applies to the unit.
func (u Unit) IsBackscatter() bool {
	switch u {
	case Amplitude, Intensity, IntensityDB, Real, Imaginary:
		return true
	}
	return false
}

// Normalize divides a backscatter value by the simulated area ratio.
// Every backscatter unit takes the same plain quotient. Phase and degrees
// are returned unchanged.
func (u Unit) Normalize(v, ratio float64) float64 {
	switch u {
	case Phase, Degrees:
		return v
	default:
		return v / ratio
	}
}
