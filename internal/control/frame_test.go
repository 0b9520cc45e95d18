package control

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrame_MarshalBinary(t *testing.T) {
	f := Frame{
		Buttons: [NumButtons]bool{true, false, false, false, false, false, false, true},
		Axes:    [NumAxes]int{-1000, 0, 21, 1000},
	}

	data, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != FrameSize {
		t.Fatalf("expected %d bytes, got %d", FrameSize, len(data))
	}

	want := []byte{
		1, 0, 0, 0, 0, 0, 0, 1,
		0x18, 0xfc, 0xff, 0xff, // -1000
		0x00, 0x00, 0x00, 0x00,
		0x15, 0x00, 0x00, 0x00,
		0xe8, 0x03, 0x00, 0x00,
	}
	if !bytes.Equal(data, want) {
		t.Errorf("unexpected encoding\n got: % x\nwant: % x", data, want)
	}

	var decoded Frame
	if err = decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if decoded != f {
		t.Errorf("expected %+v, got %+v", f, decoded)
	}
}

func TestFrame_AppendBinary(t *testing.T) {
	prefix := []byte{0xaa}
	f := Frame{}
	data, _ := f.AppendBinary(prefix)
	if len(data) != 1+FrameSize || data[0] != 0xaa {
		t.Errorf("expected frame appended after prefix, got % x", data)
	}
}

func TestFrame_UnmarshalBinary(t *testing.T) {
	var f Frame
	if err := f.UnmarshalBinary(make([]byte, FrameSize-1)); !errors.Is(err, ErrFrameSize) {
		t.Errorf("expected ErrFrameSize, got %v", err)
	}

	data := make([]byte, FrameSize)
	data[2] = 0xff
	if err := f.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if !f.Pressed(ButtonL3) {
		t.Error("expected any non-zero byte to read as pressed")
	}
}

func TestParseAxis(t *testing.T) {
	a, err := ParseAxis("joy2_x")
	if err != nil || a != AxisJoy2X {
		t.Errorf("expected JOY2_X, got %v (%v)", a, err)
	}
	if _, err = ParseAxis("JOY3_X"); err == nil {
		t.Error("expected unknown axis to fail")
	}
}
