package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/rc-transmitter/internal/radio"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	if len(c.Receivers) != 3 {
		t.Errorf("expected 3 receivers, got %d", len(c.Receivers))
	}
	if c.Timing.CycleInterval.Duration() != 50*time.Millisecond {
		t.Errorf("expected 50ms cycle, got %s", c.Timing.CycleInterval)
	}
	if c.Timing.SelectorQuietPeriod.Duration() != 200*time.Millisecond {
		t.Errorf("expected 200ms quiet period, got %s", c.Timing.SelectorQuietPeriod)
	}
	if c.Mapping.DeadZone != 20 || c.Mapping.MoveThreshold != 5 {
		t.Errorf("unexpected thresholds %+v", c.Mapping)
	}
	for i, cal := range c.Axes {
		if cal.OutMin != 1000 || cal.OutMax != -1000 {
			t.Errorf("axis %d: expected inverted output range, got %d..%d", i, cal.OutMin, cal.OutMax)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
timing:
  cycleInterval: 20ms
  selectorQuietPeriod: 300ms
mapping:
  deadZone: 10
receivers:
  - name: front
    address: "aa:bb:cc:dd:ee:01"
  - name: rear
    address: "aa:bb:cc:dd:ee:02"
link:
  backend: udp
  onInitFailure: abort
  localAddress: "24:6f:28:00:00:01"
  udp:
    listen: "127.0.0.1:0"
    endpoints:
      - address: "aa:bb:cc:dd:ee:01"
        udp: "127.0.0.1:9001"
      - address: "aa:bb:cc:dd:ee:02"
        udp: "127.0.0.1:9002"
calibration:
  extrema: true
`)

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	level, err := c.Settings.Level()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("expected debug level, got %s (%v)", level, err)
	}
	if c.Timing.CycleInterval.Duration() != 20*time.Millisecond {
		t.Errorf("expected 20ms cycle, got %s", c.Timing.CycleInterval)
	}
	if c.Mapping.DeadZone != 10 {
		t.Errorf("expected dead zone 10, got %d", c.Mapping.DeadZone)
	}
	if c.Mapping.MoveThreshold != 5 {
		t.Errorf("expected default move threshold to survive, got %d", c.Mapping.MoveThreshold)
	}
	if len(c.Receivers) != 2 || c.Receivers[1].Address != radio.MustParseAddress("aa:bb:cc:dd:ee:02") {
		t.Errorf("unexpected receivers %+v", c.Receivers)
	}
	if c.Link.Backend != LinkUDP || c.Link.OnInitFailure != OnInitFailureAbort {
		t.Errorf("unexpected link %+v", c.Link)
	}
	if c.Link.LocalAddress != radio.MustParseAddress("24:6f:28:00:00:01") {
		t.Errorf("unexpected local address %s", c.Link.LocalAddress)
	}
	if len(c.Link.UDP.Endpoints) != 2 {
		t.Errorf("expected 2 endpoints, got %d", len(c.Link.UDP.Endpoints))
	}
	if c.Link.UDP.TTL != 1 {
		t.Errorf("expected default TTL, got %d", c.Link.UDP.TTL)
	}
	if !c.Calibration.Extrema || c.Calibration.Center {
		t.Errorf("unexpected calibration %+v", c.Calibration)
	}
	if c.Layout.Selector != 19 {
		t.Errorf("expected default selector line, got %s", c.Layout.Selector)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "log level",
			body: "settings:\n  logLevel: loud\n",
			want: "app.Settings",
		},
		{
			name: "duration",
			body: "timing:\n  cycleInterval: soon\n",
			want: "app.Duration",
		},
		{
			name: "zero cycle",
			body: "timing:\n  cycleInterval: 0s\n",
			want: "cycle interval must be positive",
		},
		{
			name: "selector on a button line",
			body: "layout:\n  buttons: [18, 16, 17, 21, 14, 27, 13, 26]\n  axes: [32, 33, 34, 35]\n  selector: 21\n",
			want: "share GPIO21",
		},
		{
			name: "degenerate calibration",
			body: `axes:
  - {rawMin: 410, rawMax: 4095, rawCenter: 410, outMin: 1000, outMax: -1000}
  - {rawMin: 269, rawMax: 4095, rawCenter: 2885, outMin: 1000, outMax: -1000}
  - {rawMin: 633, rawMax: 4095, rawCenter: 2961, outMin: 1000, outMax: -1000}
  - {rawMin: 501, rawMax: 4095, rawCenter: 2897, outMin: 1000, outMax: -1000}
`,
			want: "axis JOY1_X",
		},
		{
			name: "no receivers",
			body: "receivers: []\n",
			want: "no receivers",
		},
		{
			name: "unknown backend",
			body: "link:\n  backend: carrier-pigeon\n",
			want: "unknown backend",
		},
		{
			name: "unknown policy",
			body: "link:\n  onInitFailure: retry\n",
			want: "unknown init failure policy",
		},
		{
			name: "serial without port",
			body: "link:\n  backend: serial\n",
			want: "serial port is required",
		},
		{
			name: "udp without endpoints",
			body: "link:\n  backend: udp\n",
			want: "no endpoints",
		},
		{
			name: "script without path",
			body: "input:\n  backend: script\n",
			want: "script path is required",
		},
		{
			name: "center without samples",
			body: "calibration:\n  center: true\n  centerSamples: 0\n",
			want: "center samples must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestLoadConfig_Example(t *testing.T) {
	c, err := LoadConfig(filepath.Join("..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Link.Backend != LinkSerial || len(c.Link.UDP.Endpoints) != len(c.Receivers) {
		t.Errorf("unexpected link %+v", c.Link)
	}
}
