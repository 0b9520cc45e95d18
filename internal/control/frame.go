// Package control turns raw readings of the handheld's buttons and sticks into
// command frames: calibration and mapping, dead-zone suppression, frame
// assembly, change diagnostics and the calibration tracker.
package control

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	NumButtons = 8
	NumAxes    = 4

	axisFieldSize = 4

	// FrameSize is the size of the encoded frame on the wire.
	FrameSize = NumButtons + NumAxes*axisFieldSize
)

// ErrFrameSize is returned when decoding a payload of the wrong length.
var ErrFrameSize = errors.New("invalid frame size")

// Button identifies one of the eight momentary buttons.
type Button int

const (
	ButtonL1 Button = iota
	ButtonL2
	ButtonL3
	ButtonL4
	ButtonR1
	ButtonR2
	ButtonR3
	ButtonR4
)

var buttonNames = [NumButtons]string{"L1", "L2", "L3", "L4", "R1", "R2", "R3", "R4"}

func (b Button) String() string {
	if b < 0 || int(b) >= NumButtons {
		return fmt.Sprintf("Button(%d)", int(b))
	}
	return buttonNames[b]
}

// Axis identifies one stick axis.
type Axis int

const (
	AxisJoy1X Axis = iota
	AxisJoy1Y
	AxisJoy2X
	AxisJoy2Y
)

var axisNames = [NumAxes]string{"JOY1_X", "JOY1_Y", "JOY2_X", "JOY2_Y"}

func (a Axis) String() string {
	if a < 0 || int(a) >= NumAxes {
		return fmt.Sprintf("Axis(%d)", int(a))
	}
	return axisNames[a]
}

// ParseAxis resolves an axis name such as "JOY1_X" (case-insensitive).
func ParseAxis(s string) (Axis, error) {
	for i, name := range axisNames {
		if strings.EqualFold(name, s) {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("control: unknown axis %q", s)
}

// Frame is one snapshot of every control, sent as a single datagram.
//
// Wire layout, no header, no padding:
//
//	+--------+--------+-----+--------+----------+----------+----------+----------+
//	| L1     | L2     | ... | R4     | JOY1_X   | JOY1_Y   | JOY2_X   | JOY2_Y   |
//	+--------+--------+-----+--------+----------+----------+----------+----------+
//	| 1 byte | 1 byte |     | 1 byte | int32 LE | int32 LE | int32 LE | int32 LE |
//	+--------+--------+-----+--------+----------+----------+----------+----------+
//	Offsets 0-7 buttons (0 released, 1 pressed), 8-23 axes. Total 24 bytes.
//
// This matches the C struct of eight bools followed by four ints on the
// little-endian 32-bit receivers.
type Frame struct {
	Buttons [NumButtons]bool
	Axes    [NumAxes]int
}

// Pressed reports whether button b is pressed.
func (f *Frame) Pressed(b Button) bool {
	return f.Buttons[b]
}

// Axis returns the mapped value of axis a.
func (f *Frame) Axis(a Axis) int {
	return f.Axes[a]
}

// AppendBinary appends the wire encoding of f to b.
func (f *Frame) AppendBinary(b []byte) ([]byte, error) {
	for _, pressed := range f.Buttons {
		var v byte
		if pressed {
			v = 1
		}
		b = append(b, v)
	}
	for _, v := range f.Axes {
		b = binary.LittleEndian.AppendUint32(b, uint32(int32(v)))
	}
	return b, nil
}

// MarshalBinary encodes f into a new FrameSize-byte slice.
func (f *Frame) MarshalBinary() ([]byte, error) {
	return f.AppendBinary(make([]byte, 0, FrameSize))
}

// UnmarshalBinary decodes a FrameSize-byte payload. Any non-zero button byte
// is read as pressed.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) != FrameSize {
		return fmt.Errorf("decoding frame: %w: %d bytes, expected %d", ErrFrameSize, len(data), FrameSize)
	}

	for i := range f.Buttons {
		f.Buttons[i] = data[i] != 0
	}
	for i := range f.Axes {
		off := NumButtons + i*axisFieldSize
		f.Axes[i] = int(int32(binary.LittleEndian.Uint32(data[off : off+axisFieldSize])))
	}
	return nil
}
