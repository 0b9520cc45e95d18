package control

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestChangeReporter_ButtonEdges(t *testing.T) {
	r := NewChangeReporter()

	var (
		prev     Frame
		pressed  int
		released int
	)

	// Idle, held for five cycles, idle again.
	states := []bool{false, true, true, true, true, true, false, false}
	for _, down := range states {
		var cur Frame
		cur.Buttons[ButtonR2] = down

		for _, e := range r.Diff(cur, prev) {
			if e.Button != ButtonR2 {
				t.Fatalf("unexpected event for %s", e.Button)
			}
			switch e.Kind {
			case ButtonPressed:
				pressed++
			case ButtonReleased:
				released++
			}
		}
		prev = cur
	}

	if pressed != 1 || released != 1 {
		t.Errorf("expected one press and one release, got %d and %d", pressed, released)
	}
}

func TestChangeReporter_AxisThreshold(t *testing.T) {
	r := NewChangeReporter()

	tests := []struct {
		name  string
		from  int
		to    int
		moved bool
	}{
		{"still", 0, 0, false},
		{"at threshold", 100, 105, false},
		{"past threshold", 100, 106, true},
		{"negative past threshold", 0, -6, true},
		{"negative at threshold", -5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prev, cur Frame
			prev.Axes[AxisJoy1Y] = tt.from
			cur.Axes[AxisJoy1Y] = tt.to

			events := r.Diff(cur, prev)
			if got := len(events) == 1; got != tt.moved {
				t.Fatalf("expected moved=%t, got %d events", tt.moved, len(events))
			}
			if tt.moved && (events[0].Axis != AxisJoy1Y || events[0].From != tt.from || events[0].To != tt.to) {
				t.Errorf("unexpected event %+v", events[0])
			}
		})
	}
}

func TestChangeReporter_Report(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewChangeReporter(WithReporterLogger(logger), WithMoveThreshold(50))

	var prev, cur Frame
	cur.Buttons[ButtonL3] = true
	cur.Axes[AxisJoy2X] = 40

	events := r.Report(cur, prev)
	if len(events) != 1 {
		t.Fatalf("expected a single event with threshold 50, got %d", len(events))
	}

	out := buf.String()
	if !strings.Contains(out, "button pressed") || !strings.Contains(out, "event.button=L3") {
		t.Errorf("unexpected log output: %s", out)
	}
}
