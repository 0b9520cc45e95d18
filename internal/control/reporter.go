package control

import (
	"io"
	"log/slog"
)

const (
	// DefaultMoveThreshold is the mapped change an axis must exceed to be
	// reported as moved.
	DefaultMoveThreshold = 5
)

// EventKind is the type of a control transition.
type EventKind int

const (
	ButtonPressed EventKind = iota
	ButtonReleased
	AxisMoved
)

func (k EventKind) String() string {
	switch k {
	case ButtonPressed:
		return "pressed"
	case ButtonReleased:
		return "released"
	case AxisMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Event is a single transition between two consecutive frames.
type Event struct {
	Kind   EventKind
	Button Button // ButtonPressed, ButtonReleased
	Axis   Axis   // AxisMoved
	From   int    // AxisMoved
	To     int    // AxisMoved
}

func (e Event) LogValue() slog.Value {
	if e.Kind == AxisMoved {
		return slog.GroupValue(
			slog.String("axis", e.Axis.String()),
			slog.Int("from", e.From),
			slog.Int("to", e.To),
		)
	}
	return slog.GroupValue(
		slog.String("button", e.Button.String()),
		slog.String("state", e.Kind.String()),
	)
}

// WithMoveThreshold overrides DefaultMoveThreshold.
func WithMoveThreshold(threshold int) func(*ChangeReporter) {
	return func(r *ChangeReporter) {
		r.threshold = threshold
	}
}

// WithReporterLogger sets the logger events are written to.
func WithReporterLogger(logger *slog.Logger) func(*ChangeReporter) {
	return func(r *ChangeReporter) {
		r.logger = logger.With(slog.String("component", "controls"))
	}
}

// ChangeReporter describes what changed between two frames. It is edge
// triggered: a button held for many cycles yields a single press event.
type ChangeReporter struct {
	threshold int
	logger    *slog.Logger
}

func NewChangeReporter(options ...func(*ChangeReporter)) *ChangeReporter {
	r := ChangeReporter{
		threshold: DefaultMoveThreshold,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Diff returns the events between prev and cur, buttons first in wire order,
// then axes whose mapped value changed by more than the threshold.
func (r *ChangeReporter) Diff(cur, prev Frame) []Event {
	var events []Event

	for i := range cur.Buttons {
		if cur.Buttons[i] == prev.Buttons[i] {
			continue
		}
		kind := ButtonReleased
		if cur.Buttons[i] {
			kind = ButtonPressed
		}
		events = append(events, Event{Kind: kind, Button: Button(i)})
	}

	for i := range cur.Axes {
		delta := cur.Axes[i] - prev.Axes[i]
		if delta < 0 {
			delta = -delta
		}
		if delta > r.threshold {
			events = append(events, Event{Kind: AxisMoved, Axis: Axis(i), From: prev.Axes[i], To: cur.Axes[i]})
		}
	}

	return events
}

// Report logs every event between prev and cur and returns them.
func (r *ChangeReporter) Report(cur, prev Frame) []Event {
	events := r.Diff(cur, prev)
	for _, e := range events {
		if e.Kind == AxisMoved {
			r.logger.Info("stick moved", slog.Any("event", e))
			continue
		}
		r.logger.Info("button "+e.Kind.String(), slog.Any("event", e))
	}
	return events
}
