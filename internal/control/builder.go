package control

import (
	"errors"
	"fmt"

	"github.com/roman-kulish/rc-transmitter/internal/input"
)

// Layout binds every control to its physical input line.
type Layout struct {
	Buttons  [NumButtons]input.Line `yaml:"buttons"`
	Axes     [NumAxes]input.Line    `yaml:"axes"`
	Selector input.Line             `yaml:"selector"`
}

// DefaultLayout is the wiring of the reference handheld. The selector sits on
// its own line; the reference board shared it with L4.
func DefaultLayout() Layout {
	return Layout{
		Buttons:  [NumButtons]input.Line{18, 16, 17, 21, 14, 27, 13, 26},
		Axes:     [NumAxes]input.Line{32, 33, 34, 35},
		Selector: 19,
	}
}

// Validate rejects a layout where two controls share a line.
func (l Layout) Validate() error {
	seen := make(map[input.Line]string, NumButtons+NumAxes+1)

	check := func(line input.Line, name string) error {
		if line < 0 {
			return fmt.Errorf("control.Layout: %s: negative line %d", name, int(line))
		}
		if other, ok := seen[line]; ok {
			return fmt.Errorf("control.Layout: %s and %s share %s", other, name, line)
		}
		seen[line] = name
		return nil
	}

	for i, line := range l.Buttons {
		if err := check(line, Button(i).String()); err != nil {
			return err
		}
	}
	for i, line := range l.Axes {
		if err := check(line, Axis(i).String()); err != nil {
			return err
		}
	}
	return check(l.Selector, "selector")
}

// FrameBuilder reads every control once and assembles a Frame. It keeps no
// state between calls.
type FrameBuilder struct {
	layout  Layout
	digital input.DigitalReader
	analog  input.AnalogReader
	mapper  *Mapper
}

func NewFrameBuilder(layout Layout, digital input.DigitalReader, analog input.AnalogReader, mapper *Mapper) (*FrameBuilder, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if digital == nil || analog == nil {
		return nil, errors.New("control.FrameBuilder: input readers are required")
	}
	if mapper == nil {
		return nil, errors.New("control.FrameBuilder: mapper is required")
	}

	return &FrameBuilder{
		layout:  layout,
		digital: digital,
		analog:  analog,
		mapper:  mapper,
	}, nil
}

// Build samples every button (Low is pressed) and every axis, and maps the
// axes. The raw samples are returned alongside for the calibration tracker.
// A failed read aborts the frame.
func (b *FrameBuilder) Build() (Frame, [NumAxes]int, error) {
	var (
		frame Frame
		raw   [NumAxes]int
	)

	for i, line := range b.layout.Buttons {
		level, err := b.digital.ReadDigital(line)
		if err != nil {
			return frame, raw, fmt.Errorf("reading button %s on %s: %w", Button(i), line, err)
		}
		frame.Buttons[i] = level == input.Low
	}

	for i, line := range b.layout.Axes {
		v, err := b.analog.ReadAnalog(line)
		if err != nil {
			return frame, raw, fmt.Errorf("reading axis %s on %s: %w", Axis(i), line, err)
		}
		raw[i] = v
		frame.Axes[i] = b.mapper.MapAxis(Axis(i), v)
	}

	return frame, raw, nil
}

// Layout returns the line bindings the builder reads.
func (b *FrameBuilder) Layout() Layout {
	return b.layout
}
