package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/rc-transmitter/internal/input"
	"github.com/roman-kulish/rc-transmitter/internal/radio"
)

const (
	// DefaultQuietPeriod is the pause after an accepted selector press during
	// which no further press is recognised.
	DefaultQuietPeriod = 200 * time.Millisecond
)

// Switch describes one change of the active receiver.
type Switch struct {
	Timestamp     time.Time
	From          Peer
	To            Peer
	FromIndex     int
	Index         int // index of To
	DeregisterErr error
	RegisterErr   error
}

// PauseFunc blocks for d or until ctx is done.
type PauseFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default PauseFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithQuietPeriod overrides DefaultQuietPeriod.
func WithQuietPeriod(d time.Duration) func(*Selector) {
	return func(s *Selector) {
		s.quiet = d
	}
}

// WithPause replaces the blocking pause used for the quiet period.
func WithPause(fn PauseFunc) func(*Selector) {
	return func(s *Selector) {
		s.pause = fn
	}
}

// WithChannel sets the radio channel peers are registered on.
func WithChannel(channel uint8) func(*Selector) {
	return func(s *Selector) {
		s.channel = channel
	}
}

// WithSwitchHandler receives every completed switch.
func WithSwitchHandler(fn func(Switch)) func(*Selector) {
	return func(s *Selector) {
		s.onSwitch = fn
	}
}

func WithLogger(logger *slog.Logger) func(*Selector) {
	return func(s *Selector) {
		s.logger = logger.With(slog.String("component", "selector"))
	}
}

// Selector watches the selector control and moves the registry to the next
// receiver on every falling edge, keeping exactly the active receiver in the
// radio peer table.
type Selector struct {
	registry *Registry
	link     radio.Link
	channel  uint8
	quiet    time.Duration
	pause    PauseFunc
	onSwitch func(Switch)
	logger   *slog.Logger
	now      func() time.Time

	lastLevel input.Level
}

func NewSelector(registry *Registry, link radio.Link, options ...func(*Selector)) *Selector {
	s := Selector{
		registry:  registry,
		link:      link,
		channel:   radio.DefaultChannel,
		quiet:     DefaultQuietPeriod,
		pause:     Sleep,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		lastLevel: input.High,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Activate registers the active receiver with the radio. It is called once
// before the first cycle.
func (s *Selector) Activate(ctx context.Context) error {
	peer := s.registry.Active()

	err := s.link.Register(ctx, s.peerInfo(peer))
	if err != nil && !errors.Is(err, radio.ErrPeerExists) {
		return fmt.Errorf("registering receiver %s: %w", peer, err)
	}

	s.logger.Info("active receiver",
		slog.Int("index", s.registry.Index()),
		slog.String("name", peer.Name),
		slog.String("address", peer.Address.String()))
	return nil
}

// Poll feeds the selector level sampled this cycle. On a HIGH to LOW edge it
// switches receivers and then blocks for the quiet period. Registration
// failures are logged and reported to the switch handler; they never stop the
// switch. The only error returned is ctx's, when it ends the pause early.
func (s *Selector) Poll(ctx context.Context, level input.Level) (bool, error) {
	edge := s.lastLevel == input.High && level == input.Low
	s.lastLevel = level

	if !edge {
		return false, nil
	}

	s.advance(ctx)

	if err := s.pause(ctx, s.quiet); err != nil {
		return true, fmt.Errorf("selector quiet period: %w", err)
	}
	return true, nil
}

func (s *Selector) advance(ctx context.Context) {
	fromIndex := s.registry.Index()
	from, to := s.registry.Advance()
	sw := Switch{
		Timestamp: s.now(),
		From:      from,
		To:        to,
		FromIndex: fromIndex,
		Index:     s.registry.Index(),
	}

	logger := s.logger.With(
		slog.String("from", from.Address.String()),
		slog.String("to", to.Address.String()),
		slog.Int("index", sw.Index))

	if err := s.link.Deregister(ctx, from.Address); err != nil && !errors.Is(err, radio.ErrPeerNotFound) {
		sw.DeregisterErr = err
		logger.Warn("failed to remove previous receiver", slog.Any("error", err))
	}

	if err := s.link.Register(ctx, s.peerInfo(to)); err != nil {
		sw.RegisterErr = err
		logger.Error("failed to add receiver", slog.Any("error", err))
	} else {
		logger.Info("active receiver", slog.String("name", to.Name))
	}

	if s.onSwitch != nil {
		s.onSwitch(sw)
	}
}

func (s *Selector) peerInfo(p Peer) radio.PeerInfo {
	return radio.PeerInfo{
		Address: p.Address,
		Channel: s.channel,
		Encrypt: false,
	}
}
