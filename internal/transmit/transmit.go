// Package transmit sends command frames to the active receiver, one datagram
// per cycle, without acknowledgement or retry.
package transmit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rc-transmitter/internal/control"
	"github.com/roman-kulish/rc-transmitter/internal/radio"
)

// Destination yields the address frames are sent to.
type Destination interface {
	ActiveAddress() radio.Address
}

// Stats is a snapshot of the transmitter counters.
type Stats struct {
	Attempts  int64 // frames submitted to the radio
	Accepted  int64 // submissions the radio accepted
	Rejected  int64 // submissions that failed synchronously
	Delivered int64 // completions reporting success
	Failed    int64 // completions reporting failure
	Bytes     int64 // payload bytes accepted
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("attempts", humanize.Comma(s.Attempts)),
		slog.String("accepted", humanize.Comma(s.Accepted)),
		slog.String("rejected", humanize.Comma(s.Rejected)),
		slog.String("delivered", humanize.Comma(s.Delivered)),
		slog.String("failed", humanize.Comma(s.Failed)),
		slog.String("bytes", humanize.Bytes(uint64(s.Bytes))),
	)
}

func WithLogger(logger *slog.Logger) func(*Transmitter) {
	return func(t *Transmitter) {
		t.logger = logger.With(slog.String("component", "transmitter"))
	}
}

// Transmitter encodes a frame and submits it to the active receiver.
type Transmitter struct {
	link   radio.Link
	dst    Destination
	logger *slog.Logger
	buf    []byte

	attempts  atomic.Int64
	accepted  atomic.Int64
	rejected  atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	bytes     atomic.Int64
}

// New creates a transmitter and installs its completion callback on link.
func New(link radio.Link, dst Destination, options ...func(*Transmitter)) *Transmitter {
	t := Transmitter{
		link:   link,
		dst:    dst,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		buf:    make([]byte, 0, control.FrameSize),
	}

	for _, option := range options {
		option(&t)
	}

	link.OnSendComplete(t.OnSendComplete)
	return &t
}

// Transmit encodes f and makes exactly one send attempt to the active
// receiver. A rejected send is logged and returned; nothing is retried.
func (t *Transmitter) Transmit(ctx context.Context, f control.Frame) error {
	payload, err := f.AppendBinary(t.buf[:0])
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	t.buf = payload

	dst := t.dst.ActiveAddress()
	t.attempts.Add(1)

	if err = t.link.Send(ctx, dst, payload); err != nil {
		t.rejected.Add(1)
		t.logger.Warn("error sending the data",
			slog.String("destination", dst.String()),
			slog.Any("error", err))
		return fmt.Errorf("sending frame to %s: %w", dst, err)
	}

	t.accepted.Add(1)
	t.bytes.Add(int64(len(payload)))
	return nil
}

// OnSendComplete records an asynchronous send result. It is advisory only and
// touches nothing but counters, so it is safe from any goroutine.
func (t *Transmitter) OnSendComplete(dst radio.Address, status radio.SendStatus) {
	if status == radio.StatusSuccess {
		t.delivered.Add(1)
	} else {
		t.failed.Add(1)
	}

	t.logger.Debug("last packet send status",
		slog.String("destination", dst.String()),
		slog.String("status", status.String()))
}

// Stats returns a snapshot of the send counters.
func (t *Transmitter) Stats() Stats {
	return Stats{
		Attempts:  t.attempts.Load(),
		Accepted:  t.accepted.Load(),
		Rejected:  t.rejected.Load(),
		Delivered: t.delivered.Load(),
		Failed:    t.failed.Load(),
		Bytes:     t.bytes.Load(),
	}
}
