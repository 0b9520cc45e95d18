package control

import (
	"errors"
	"fmt"
)

const (
	// DefaultDeadZone is the band around zero forced to exactly zero.
	DefaultDeadZone = 20
)

var (
	// ErrDegenerateCalibration is returned for a zero-width mapping interval.
	ErrDegenerateCalibration = errors.New("degenerate calibration interval")

	// ErrInvalidCalibration is returned when rawMin <= rawCenter <= rawMax
	// does not hold.
	ErrInvalidCalibration = errors.New("invalid calibration order")
)

// Calibration holds the constants that map one axis.
type Calibration struct {
	RawMin    int `yaml:"rawMin" json:"rawMin"`
	RawMax    int `yaml:"rawMax" json:"rawMax"`
	RawCenter int `yaml:"rawCenter" json:"rawCenter"`
	OutMin    int `yaml:"outMin" json:"outMin"`
	OutMax    int `yaml:"outMax" json:"outMax"`
}

// Validate rejects constants Map cannot use. Swapped output bounds are
// allowed and invert the axis.
func (c Calibration) Validate() error {
	if c.RawMin > c.RawCenter || c.RawCenter > c.RawMax {
		return fmt.Errorf("control.Calibration: %w: rawMin=%d rawCenter=%d rawMax=%d",
			ErrInvalidCalibration, c.RawMin, c.RawCenter, c.RawMax)
	}
	if c.RawMin == c.RawCenter {
		return fmt.Errorf("control.Calibration: %w: rawMin equals rawCenter (%d)", ErrDegenerateCalibration, c.RawCenter)
	}
	if c.RawCenter == c.RawMax {
		return fmt.Errorf("control.Calibration: %w: rawCenter equals rawMax (%d)", ErrDegenerateCalibration, c.RawCenter)
	}
	return nil
}

// Map maps raw through c without dead-zone suppression. c must be valid.
func (c Calibration) Map(raw int) int {
	return Map(raw, c.RawMin, c.RawMax, c.RawCenter, c.OutMin, c.OutMax)
}

// Map interpolates raw piecewise around center: [rawMin, center) onto
// [outMin, 0) and [center, rawMax] onto [0, outMax]. Samples outside
// [rawMin, rawMax] extrapolate, they are not clamped. Integer division
// truncates toward zero.
//
// The caller guarantees rawMin < center < rawMax, see Calibration.Validate.
func Map(raw, rawMin, rawMax, center, outMin, outMax int) int {
	if raw < center {
		return interpolate(raw, rawMin, center, outMin, 0)
	}
	return interpolate(raw, center, rawMax, 0, outMax)
}

func interpolate(x, inMin, inMax, outMin, outMax int) int {
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// ApplyDeadZone returns 0 when |v| <= threshold, v otherwise.
func ApplyDeadZone(v, threshold int) int {
	if v >= -threshold && v <= threshold {
		return 0
	}
	return v
}

// Mapper maps every axis with its own validated calibration and a shared
// dead zone.
type Mapper struct {
	axes     [NumAxes]Calibration
	deadZone int
}

// NewMapper validates every calibration and the dead zone.
func NewMapper(axes [NumAxes]Calibration, deadZone int) (*Mapper, error) {
	if deadZone < 0 {
		return nil, fmt.Errorf("control.Mapper: dead zone must not be negative: %d", deadZone)
	}
	for i, c := range axes {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("axis %s: %w", Axis(i), err)
		}
	}
	return &Mapper{axes: axes, deadZone: deadZone}, nil
}

// MapAxis maps a raw sample of axis a and applies the dead zone.
func (m *Mapper) MapAxis(a Axis, raw int) int {
	return ApplyDeadZone(m.axes[a].Map(raw), m.deadZone)
}

// Calibration returns the constants of axis a.
func (m *Mapper) Calibration(a Axis) Calibration {
	return m.axes[a]
}

// DeadZone is the threshold at or below which mapped values read 0.
func (m *Mapper) DeadZone() int {
	return m.deadZone
}
