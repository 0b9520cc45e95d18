// Package input defines the capabilities the transmitter core consumes to read
// its physical controls, and a scripted source that stands in for real GPIO and
// ADC lines on a bench.
package input

import "strconv"

const (
	// FullScale is the largest raw sample of the reference 12-bit ADC.
	FullScale = 4095
)

// Level is the electrical state of a digital line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Line identifies a physical input line (GPIO number on the reference board).
type Line int

func (l Line) String() string {
	return "GPIO" + strconv.Itoa(int(l))
}

// DigitalReader reads the state of a pulled-up digital line. Controls are
// active-low: a pressed button reads Low.
type DigitalReader interface {
	ReadDigital(line Line) (Level, error)
}

// AnalogReader reads a raw sample from an analog line, in [0, FullScale].
type AnalogReader interface {
	ReadAnalog(line Line) (int, error)
}

// Sampler is implemented by sources that latch all lines once per cycle.
// Sources without a latch simply don't implement it.
type Sampler interface {
	Sample() error
}
