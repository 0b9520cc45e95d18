package control

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultCenterSamples is the number of resting samples averaged into
	// the discovered center.
	DefaultCenterSamples = 100
)

// Extrema is the observed travel of one axis.
type Extrema struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ExtremaTracker keeps running per-axis min/max of raw samples. It never
// terminates; the table is meant to be copied into Calibration by hand.
type ExtremaTracker struct {
	table [NumAxes]Extrema
}

// NewExtremaTracker starts every axis at min=fullScale, max=0 so the first
// sample always moves both bounds.
func NewExtremaTracker(fullScale int) *ExtremaTracker {
	var t ExtremaTracker
	for i := range t.table {
		t.table[i] = Extrema{Min: fullScale, Max: 0}
	}
	return &t
}

// Observe folds one sample per axis in and reports whether any bound moved.
func (t *ExtremaTracker) Observe(raw [NumAxes]int) bool {
	var changed bool
	for i, v := range raw {
		if v < t.table[i].Min {
			t.table[i].Min = v
			changed = true
		}
		if v > t.table[i].Max {
			t.table[i].Max = v
			changed = true
		}
	}
	return changed
}

// Table returns a copy of the per-axis extrema seen so far.
func (t *ExtremaTracker) Table() [NumAxes]Extrema {
	return t.table
}

// CenterCapture averages the first N samples per axis, then latches.
type CenterCapture struct {
	samples  int
	count    int
	sums     [NumAxes]int64
	centers  [NumAxes]int
	captured bool
}

func NewCenterCapture(samples int) (*CenterCapture, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("control.CenterCapture: sample count must be positive: %d", samples)
	}
	return &CenterCapture{samples: samples}, nil
}

// Observe accumulates raw. It returns done=true exactly once, on the sample
// that completes the budget; later samples are ignored.
func (c *CenterCapture) Observe(raw [NumAxes]int) (centers [NumAxes]int, done bool) {
	if c.captured {
		return c.centers, false
	}

	for i, v := range raw {
		c.sums[i] += int64(v)
	}
	c.count++

	if c.count < c.samples {
		return centers, false
	}

	for i, sum := range c.sums {
		c.centers[i] = int(sum / int64(c.samples))
	}
	c.captured = true
	return c.centers, true
}

// Captured reports whether the latch has closed.
func (c *CenterCapture) Captured() bool {
	return c.captured
}

// Centers returns the discovered centers, zero until Captured.
func (c *CenterCapture) Centers() [NumAxes]int {
	return c.centers
}

// ReportKind tells which sub-behaviour produced a report.
type ReportKind string

const (
	ReportExtrema ReportKind = "extrema"
	ReportCenter  ReportKind = "center"
)

// CalibrationReport is emitted when the extrema table changes or the center
// latch closes.
type CalibrationReport struct {
	Kind      ReportKind
	Timestamp time.Time
	Extrema   [NumAxes]Extrema // set for ReportExtrema
	Centers   [NumAxes]int     // set for ReportCenter
}

// WithExtremaTracking enables extrema tracking over [0, fullScale].
func WithExtremaTracking(fullScale int) func(*Tracker) {
	return func(t *Tracker) {
		t.extrema = NewExtremaTracker(fullScale)
	}
}

// WithCenterCapture enables center capture over the given sample count.
func WithCenterCapture(c *CenterCapture) func(*Tracker) {
	return func(t *Tracker) {
		t.center = c
	}
}

// WithTrackerLogger sets the logger for reports.
func WithTrackerLogger(logger *slog.Logger) func(*Tracker) {
	return func(t *Tracker) {
		t.logger = logger.With(slog.String("component", "calibration"))
	}
}

// WithReportHandler receives every report after it is logged.
func WithReportHandler(fn func(CalibrationReport)) func(*Tracker) {
	return func(t *Tracker) {
		t.onReport = fn
	}
}

// Tracker runs the optional calibration session on raw samples. Both
// sub-behaviours are off unless enabled by an option, and neither touches
// the frames being sent.
type Tracker struct {
	extrema  *ExtremaTracker
	center   *CenterCapture
	logger   *slog.Logger
	onReport func(CalibrationReport)
	now      func() time.Time
}

func NewTracker(options ...func(*Tracker)) *Tracker {
	t := Tracker{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

// Enabled reports whether any calibration behaviour is active.
func (t *Tracker) Enabled() bool {
	return t != nil && (t.extrema != nil || t.center != nil)
}

// Observe feeds one raw sample per axis to the enabled behaviours.
func (t *Tracker) Observe(raw [NumAxes]int) {
	if !t.Enabled() {
		return
	}

	if t.extrema != nil && t.extrema.Observe(raw) {
		table := t.extrema.Table()
		attrs := make([]any, 0, NumAxes)
		for i, e := range table {
			attrs = append(attrs, slog.String(Axis(i).String(), fmt.Sprintf("min=%d, max=%d", e.Min, e.Max)))
		}
		t.logger.Info("new stick ranges", attrs...)
		t.emit(CalibrationReport{Kind: ReportExtrema, Timestamp: t.now(), Extrema: table})
	}

	if t.center != nil {
		if centers, done := t.center.Observe(raw); done {
			attrs := make([]any, 0, NumAxes)
			for i, c := range centers {
				attrs = append(attrs, slog.Int(Axis(i).String(), c))
			}
			t.logger.Info("stick centers captured", attrs...)
			t.emit(CalibrationReport{Kind: ReportCenter, Timestamp: t.now(), Centers: centers})
		}
	}
}

func (t *Tracker) emit(r CalibrationReport) {
	if t.onReport != nil {
		t.onReport(r)
	}
}
