package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/rc-transmitter/internal/control"
	"github.com/roman-kulish/rc-transmitter/internal/input"
	"github.com/roman-kulish/rc-transmitter/internal/radio"
	"github.com/roman-kulish/rc-transmitter/internal/radio/serialbridge"
	"github.com/roman-kulish/rc-transmitter/internal/radio/stub"
	"github.com/roman-kulish/rc-transmitter/internal/radio/udplink"
	"github.com/roman-kulish/rc-transmitter/internal/receiver"
)

const (
	LinkStub   = stub.Backend
	LinkSerial = serialbridge.Backend
	LinkUDP    = udplink.Backend

	InputIdle   = "idle"
	InputScript = "script"
)

// InitFailurePolicy decides what happens when the radio link cannot start.
type InitFailurePolicy string

const (
	// OnInitFailureContinue logs the failure and keeps cycling; every radio
	// operation then fails with radio.ErrNotInitialised.
	OnInitFailureContinue InitFailurePolicy = "continue"

	// OnInitFailureAbort stops the program.
	OnInitFailureAbort InitFailurePolicy = "abort"
)

// Config represents the main application configuration
type Config struct {
	Settings    Settings                            `yaml:"settings" json:"settings"`
	Timing      TimingConfig                        `yaml:"timing" json:"timing"`
	Mapping     MappingConfig                       `yaml:"mapping" json:"mapping"`
	Layout      control.Layout                      `yaml:"layout" json:"layout"`
	Axes        [control.NumAxes]control.Calibration `yaml:"axes" json:"axes"` // JOY1_X, JOY1_Y, JOY2_X, JOY2_Y
	Receivers   []receiver.Peer                     `yaml:"receivers" json:"receivers"`
	Link        LinkConfig                          `yaml:"link" json:"link"`
	Calibration CalibrationConfig                   `yaml:"calibration" json:"calibration"`
	Input       InputConfig                         `yaml:"input" json:"input"`
	Storage     StorageConfig                       `yaml:"storage" json:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel" json:"logLevel"`
}

// Level parses LogLevel, "info" when empty.
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("app.Settings: %w", err)
	}
	return level, nil
}

// TimingConfig represents the cycle cadence
type TimingConfig struct {
	CycleInterval       Duration `yaml:"cycleInterval" json:"cycleInterval"`
	SelectorQuietPeriod Duration `yaml:"selectorQuietPeriod" json:"selectorQuietPeriod"`
}

// MappingConfig represents the thresholds applied to mapped values
type MappingConfig struct {
	DeadZone      int `yaml:"deadZone" json:"deadZone"`
	MoveThreshold int `yaml:"moveThreshold" json:"moveThreshold"`
}

// LinkConfig represents the radio link settings
type LinkConfig struct {
	Backend       string            `yaml:"backend" json:"backend"`
	Channel       uint8             `yaml:"channel" json:"channel"`
	OnInitFailure InitFailurePolicy `yaml:"onInitFailure" json:"onInitFailure"`
	LocalAddress  radio.Address     `yaml:"localAddress" json:"localAddress"`
	Serial        SerialConfig      `yaml:"serial" json:"serial"`
	UDP           udplink.Config    `yaml:"udp" json:"udp"`
}

// SerialConfig represents the serial radio dongle settings
type SerialConfig struct {
	Port     string   `yaml:"port" json:"port"`
	BaudRate int      `yaml:"baudRate" json:"baudRate"`
	Timeout  Duration `yaml:"timeout" json:"timeout"`
}

// CalibrationConfig enables the calibration session
type CalibrationConfig struct {
	Extrema       bool `yaml:"extrema" json:"extrema"`
	Center        bool `yaml:"center" json:"center"`
	CenterSamples int  `yaml:"centerSamples" json:"centerSamples"`
}

// InputConfig selects where control readings come from
type InputConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Script  string `yaml:"script" json:"script"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory" json:"dataDirectory"` // empty disables the journal
}

// DefaultConfig returns the configuration of the reference handheld: three
// receivers, sticks wired inverted, stub radio and idle inputs.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Timing: TimingConfig{
			CycleInterval:       Duration(50 * time.Millisecond),
			SelectorQuietPeriod: Duration(receiver.DefaultQuietPeriod),
		},
		Mapping: MappingConfig{
			DeadZone:      control.DefaultDeadZone,
			MoveThreshold: control.DefaultMoveThreshold,
		},
		Layout: control.DefaultLayout(),
		Axes: [control.NumAxes]control.Calibration{
			{RawMin: 410, RawMax: input.FullScale, RawCenter: 2876, OutMin: 1000, OutMax: -1000},
			{RawMin: 269, RawMax: input.FullScale, RawCenter: 2885, OutMin: 1000, OutMax: -1000},
			{RawMin: 633, RawMax: input.FullScale, RawCenter: 2961, OutMin: 1000, OutMax: -1000},
			{RawMin: 501, RawMax: input.FullScale, RawCenter: 2897, OutMin: 1000, OutMax: -1000},
		},
		Receivers: []receiver.Peer{
			{Name: "rx-1", Address: radio.MustParseAddress("5c:01:3b:6c:1c:48")},
			{Name: "rx-2", Address: radio.MustParseAddress("48:e7:29:46:66:8d")},
			{Name: "rx-3", Address: radio.MustParseAddress("48:3f:da:9d:e6:21")},
		},
		Link: LinkConfig{
			Backend:       LinkStub,
			Channel:       radio.DefaultChannel,
			OnInitFailure: OnInitFailureContinue,
			Serial: SerialConfig{
				BaudRate: serialbridge.DefaultBaudRate,
				Timeout:  Duration(serialbridge.DefaultTimeout),
			},
			UDP: udplink.Config{TTL: udplink.DefaultTTL},
		},
		Calibration: CalibrationConfig{
			CenterSamples: control.DefaultCenterSamples,
		},
		Input: InputConfig{Backend: InputIdle},
	}
}

// LoadConfig reads the YAML file at path over DefaultConfig and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}
	if err := c.Timing.Validate(); err != nil {
		return err
	}
	if c.Mapping.DeadZone < 0 {
		return fmt.Errorf("app.Config: dead zone must not be negative: %d", c.Mapping.DeadZone)
	}
	if c.Mapping.MoveThreshold < 0 {
		return fmt.Errorf("app.Config: move threshold must not be negative: %d", c.Mapping.MoveThreshold)
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	for i, cal := range c.Axes {
		if err := cal.Validate(); err != nil {
			return fmt.Errorf("app.Config: axis %s: %w", control.Axis(i), err)
		}
	}
	if len(c.Receivers) == 0 {
		return fmt.Errorf("app.Config: %w", receiver.ErrNoReceivers)
	}
	if err := c.Link.Validate(); err != nil {
		return err
	}
	if c.Calibration.Center && c.Calibration.CenterSamples <= 0 {
		return fmt.Errorf("app.Config: center samples must be positive: %d", c.Calibration.CenterSamples)
	}
	return c.Input.Validate()
}

func (c *TimingConfig) Validate() error {
	if c.CycleInterval <= 0 {
		return fmt.Errorf("app.TimingConfig: cycle interval must be positive: %s", c.CycleInterval)
	}
	return c.SelectorQuietPeriod.Validate()
}

func (c *LinkConfig) Validate() error {
	switch c.OnInitFailure {
	case OnInitFailureContinue, OnInitFailureAbort:
	default:
		return fmt.Errorf("app.LinkConfig: unknown init failure policy '%s'", c.OnInitFailure)
	}

	switch c.Backend {
	case LinkStub:
		return nil
	case LinkSerial:
		if c.Serial.Port == "" {
			return errors.New("app.LinkConfig: serial port is required")
		}
		if c.Serial.BaudRate < 0 {
			return fmt.Errorf("app.LinkConfig: invalid baud rate %d", c.Serial.BaudRate)
		}
		return c.Serial.Timeout.Validate()
	case LinkUDP:
		return c.UDP.Validate()
	default:
		return fmt.Errorf("app.LinkConfig: unknown backend '%s'", c.Backend)
	}
}

func (c *InputConfig) Validate() error {
	switch c.Backend {
	case InputIdle:
		return nil
	case InputScript:
		if c.Script == "" {
			return errors.New("app.InputConfig: script path is required")
		}
		return nil
	default:
		return fmt.Errorf("app.InputConfig: unknown backend '%s'", c.Backend)
	}
}
