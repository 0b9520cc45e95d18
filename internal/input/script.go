package input

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrScriptFinished is returned by Sample once a non-looping script has played
// all of its steps.
var ErrScriptFinished = errors.New("input script finished")

// Step holds the state of every line for Repeat consecutive cycles.
type Step struct {
	Repeat int          `yaml:"repeat"` // number of cycles the step is held, at least 1
	Low    []Line       `yaml:"low"`    // digital lines held low (pressed)
	Analog map[Line]int `yaml:"analog"` // raw analog samples, per line
}

// Script is a replayable sequence of line states. Lines not mentioned in the
// current step read High (digital) or their Rest value (analog).
type Script struct {
	Loop  bool         `yaml:"loop"`
	Rest  map[Line]int `yaml:"rest"`
	Steps []Step       `yaml:"steps"`

	mu      sync.Mutex
	step    int
	held    int
	started bool
	low     map[Line]struct{}
	analog  map[Line]int
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input script: %w", err)
	}

	var s Script
	if err = yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing input script %s: %w", path, err)
	}
	if err = s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// NewIdle returns a script without steps: every button released and every
// analog line resting at the given sample.
func NewIdle(rest map[Line]int) *Script {
	return &Script{Rest: rest}
}

func (s *Script) Validate() error {
	for i, step := range s.Steps {
		if step.Repeat < 0 {
			return fmt.Errorf("input.Script: step %d: repeat must not be negative: %d", i, step.Repeat)
		}
		for line, v := range step.Analog {
			if v < 0 || v > FullScale {
				return fmt.Errorf("input.Script: step %d: %s sample out of range: %d", i, line, v)
			}
		}
	}
	for line, v := range s.Rest {
		if v < 0 || v > FullScale {
			return fmt.Errorf("input.Script: rest %s sample out of range: %d", line, v)
		}
	}
	return nil
}

// Sample latches the state for the next cycle.
func (s *Script) Sample() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Steps) == 0 {
		s.latch(Step{})
		return nil
	}

	if s.step >= len(s.Steps) {
		return ErrScriptFinished
	}

	if !s.started {
		s.started = true
		s.step, s.held = 0, 0
	} else {
		s.held++
		if s.held >= max(s.Steps[s.step].Repeat, 1) {
			s.step++
			s.held = 0
		}
	}

	if s.step >= len(s.Steps) {
		if !s.Loop {
			s.step = len(s.Steps)
			s.latch(Step{})
			return ErrScriptFinished
		}
		s.step = 0
	}

	s.latch(s.Steps[s.step])
	return nil
}

func (s *Script) latch(step Step) {
	s.low = make(map[Line]struct{}, len(step.Low))
	for _, line := range step.Low {
		s.low[line] = struct{}{}
	}
	s.analog = step.Analog
}

func (s *Script) ReadDigital(line Line) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.low[line]; ok {
		return Low, nil
	}
	return High, nil
}

func (s *Script) ReadAnalog(line Line) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.analog[line]; ok {
		return v, nil
	}
	if v, ok := s.Rest[line]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("input: no sample for analog line %s", line)
}
