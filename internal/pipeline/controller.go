// Package pipeline drives the transmitter: once per cycle it samples the
// controls, reports changes, feeds the calibration tracker, polls the receiver
// selector and sends the frame.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/rc-transmitter/internal/control"
	"github.com/roman-kulish/rc-transmitter/internal/input"
	"github.com/roman-kulish/rc-transmitter/internal/receiver"
	"github.com/roman-kulish/rc-transmitter/internal/transmit"
)

const (
	// DefaultCycleInterval is the pause between two cycles.
	DefaultCycleInterval = 50 * time.Millisecond
)

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("controller is already running")

// Session is the state carried from one cycle to the next. It is owned by the
// goroutine running the cycles.
type Session struct {
	Previous control.Frame
	Cycles   int64
}

// WithSampler latches all input lines at the start of every cycle.
func WithSampler(s input.Sampler) func(*Controller) {
	return func(c *Controller) {
		c.sampler = s
	}
}

func WithReporter(r *control.ChangeReporter) func(*Controller) {
	return func(c *Controller) {
		c.reporter = r
	}
}

// WithTracker enables the calibration tracker on raw samples.
func WithTracker(t *control.Tracker) func(*Controller) {
	return func(c *Controller) {
		c.tracker = t
	}
}

// WithCycleInterval overrides DefaultCycleInterval.
func WithCycleInterval(d time.Duration) func(*Controller) {
	return func(c *Controller) {
		c.interval = d
	}
}

// WithPause replaces the blocking pause between cycles.
func WithPause(fn receiver.PauseFunc) func(*Controller) {
	return func(c *Controller) {
		c.pause = fn
	}
}

func WithLogger(logger *slog.Logger) func(*Controller) {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("component", "pipeline"))
	}
}

// Controller runs the sampling cycle.
type Controller struct {
	builder     *control.FrameBuilder
	selectorIn  input.DigitalReader
	selector    *receiver.Selector
	transmitter *transmit.Transmitter

	sampler  input.Sampler
	reporter *control.ChangeReporter
	tracker  *control.Tracker

	interval time.Duration
	pause    receiver.PauseFunc

	session   Session
	isRunning atomic.Bool
	logger    *slog.Logger
}

// NewController wires the cycle. selectorIn is read on the builder layout's
// selector line.
func NewController(builder *control.FrameBuilder, selectorIn input.DigitalReader, selector *receiver.Selector, transmitter *transmit.Transmitter, options ...func(*Controller)) *Controller {
	c := Controller{
		builder:     builder,
		selectorIn:  selectorIn,
		selector:    selector,
		transmitter: transmitter,
		reporter:    control.NewChangeReporter(),
		interval:    DefaultCycleInterval,
		pause:       receiver.Sleep,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Cycle runs one pass: read inputs, map, report, track, maybe switch
// receiver, transmit, archive. A failed send is logged by the transmitter and
// does not fail the cycle. An input failure abandons the cycle before
// anything is sent, leaving the previous frame in place.
func (c *Controller) Cycle(ctx context.Context) error {
	if c.sampler != nil {
		if err := c.sampler.Sample(); err != nil {
			return fmt.Errorf("sampling inputs: %w", err)
		}
	}

	frame, raw, err := c.builder.Build()
	if err != nil {
		return fmt.Errorf("building frame: %w", err)
	}

	c.reporter.Report(frame, c.session.Previous)
	c.tracker.Observe(raw)

	line := c.builder.Layout().Selector
	if level, err := c.selectorIn.ReadDigital(line); err != nil {
		c.logger.Warn("error reading selector", slog.String("line", line.String()), slog.Any("error", err))
	} else if _, err = c.selector.Poll(ctx, level); err != nil {
		return err
	}

	_ = c.transmitter.Transmit(ctx, frame)

	c.session.Previous = frame
	c.session.Cycles++
	return nil
}

// Run cycles at the configured cadence until ctx is done or a scripted input
// runs out. Cycle errors are logged and never stop the loop.
func (c *Controller) Run(ctx context.Context) error {
	if !c.isRunning.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.isRunning.Store(false)

	c.logger.Info("starting transmit loop", slog.Duration("interval", c.interval))
	defer c.logger.Info("transmit loop stopped", slog.Int64("cycles", c.session.Cycles))

	for {
		if err := c.Cycle(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, input.ErrScriptFinished):
				c.logger.Info("input script finished")
				return nil
			default:
				c.logger.Error("cycle failed", slog.Any("error", err))
			}
		}

		if err := c.pause(ctx, c.interval); err != nil {
			return nil
		}
	}
}

// IsRunning reports whether Run is active.
func (c *Controller) IsRunning() bool {
	return c.isRunning.Load()
}

// Session returns a copy of the cycle state. It must not race with Run.
func (c *Controller) Session() Session {
	return c.session
}
