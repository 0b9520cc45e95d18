// Package serialbridge drives a USB-serial radio dongle that owns the actual
// connectionless radio stack. The host sends framed commands and the dongle
// answers each one with a result, plus unsolicited send status reports.
package serialbridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/roman-kulish/rc-transmitter/internal/radio"
)

const (
	Backend = "serial"

	DefaultBaudRate = 115200
	DefaultTimeout  = time.Second
)

// ErrTimeout is returned when the dongle does not answer a command in time.
var ErrTimeout = errors.New("no response from dongle")

// WithTimeout sets how long a command waits for its result.
func WithTimeout(d time.Duration) func(*Link) {
	return func(l *Link) {
		l.timeout = d
	}
}

func WithLogger(logger *slog.Logger) func(*Link) {
	return func(l *Link) {
		l.logger = logger.With(slog.String("link", Backend))
	}
}

// Link is a radio.Link backed by the serial dongle.
type Link struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	logger  *slog.Logger
	local   radio.Address

	reqMu   sync.Mutex // one command in flight
	seq     byte
	results chan packet

	completion atomic.Pointer[radio.CompletionFunc]

	closing   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open opens the serial port and performs the handshake.
func Open(ctx context.Context, portName string, baudRate int, options ...func(*Link)) (*Link, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, radio.NewConfigError(Backend, fmt.Errorf("opening %s: %w", portName, err))
	}

	l, err := New(ctx, port, options...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	return l, nil
}

// New starts the reader on an already open port and asks the dongle for its
// station address. A dongle that does not answer is an initialisation
// failure.
func New(ctx context.Context, port io.ReadWriteCloser, options ...func(*Link)) (*Link, error) {
	l := Link{
		port:    port,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		results: make(chan packet, 1),
		done:    make(chan struct{}),
	}

	for _, option := range options {
		option(&l)
	}

	l.wg.Add(1)
	go l.readLoop()

	data, err := l.request(ctx, cmdHello, nil)
	if err == nil && len(data) < radio.AddressSize {
		err = fmt.Errorf("short hello reply: %d bytes", len(data))
	}
	if err != nil {
		_ = l.Close()
		return nil, radio.NewRuntimeError(Backend, fmt.Errorf("handshake: %w", err))
	}
	copy(l.local[:], data)

	return &l, nil
}

func (l *Link) Register(ctx context.Context, peer radio.PeerInfo) error {
	payload := make([]byte, 0, radio.AddressSize+2)
	payload = append(payload, peer.Address[:]...)
	payload = append(payload, peer.Channel, boolByte(peer.Encrypt))

	if _, err := l.request(ctx, cmdAddPeer, payload); err != nil {
		return fmt.Errorf("registering %s: %w", peer.Address, err)
	}
	return nil
}

func (l *Link) Deregister(ctx context.Context, addr radio.Address) error {
	if _, err := l.request(ctx, cmdDelPeer, addr[:]); err != nil {
		return fmt.Errorf("deregistering %s: %w", addr, err)
	}
	return nil
}

// Send returns once the dongle accepted or rejected the datagram. Delivery is
// reported later through the completion callback.
func (l *Link) Send(ctx context.Context, dst radio.Address, data []byte) error {
	if len(data) > radio.MaxPayloadSize {
		return radio.ErrPayloadTooLarge
	}

	payload := make([]byte, 0, radio.AddressSize+len(data))
	payload = append(payload, dst[:]...)
	payload = append(payload, data...)

	if _, err := l.request(ctx, cmdSend, payload); err != nil {
		return fmt.Errorf("sending to %s: %w", dst, err)
	}
	return nil
}

func (l *Link) OnSendComplete(fn radio.CompletionFunc) {
	if fn == nil {
		l.completion.Store(nil)
		return
	}
	l.completion.Store(&fn)
}

func (l *Link) LocalAddress() radio.Address {
	return l.local
}

// Close closes the port and waits for the reader to exit.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.closing.Store(true)
		err = l.port.Close()
		l.wg.Wait()
	})
	return err
}

// request writes one command and waits for the result carrying its sequence
// number. Results for earlier, abandoned commands are discarded.
func (l *Link) request(ctx context.Context, cmd byte, payload []byte) ([]byte, error) {
	l.reqMu.Lock()
	defer l.reqMu.Unlock()

	select {
	case <-l.done:
		return nil, radio.ErrClosed
	default:
	}

	l.drain()

	l.seq++
	seq := l.seq

	buf, err := packet{cmd: cmd, seq: seq, payload: payload}.appendTo(nil)
	if err != nil {
		return nil, err
	}
	if _, err = l.port.Write(buf); err != nil {
		return nil, radio.NewRuntimeError(Backend, fmt.Errorf("writing command 0x%02x: %w", cmd, err))
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	for {
		select {
		case p := <-l.results:
			if p.seq != seq || len(p.payload) == 0 {
				l.logger.Debug("discarding stale result", slog.Int("seq", int(p.seq)))
				continue
			}
			if err = statusError(p.payload[0]); err != nil {
				return nil, err
			}
			return p.payload[1:], nil

		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timer.C:
			return nil, radio.NewRuntimeError(Backend, fmt.Errorf("command 0x%02x: %w", cmd, ErrTimeout))

		case <-l.done:
			return nil, radio.ErrClosed
		}
	}
}

// drain drops late results of abandoned commands.
func (l *Link) drain() {
	for {
		select {
		case <-l.results:
		default:
			return
		}
	}
}

func (l *Link) readLoop() {
	defer l.wg.Done()
	defer close(l.done)

	r := bufio.NewReader(l.port)
	for {
		p, err := readPacket(r)
		if err != nil {
			if errors.Is(err, errChecksum) || errors.Is(err, errFraming) {
				l.logger.Warn("dropping corrupted packet", slog.Any("error", err))
				continue
			}
			if !l.closing.Load() {
				l.logger.Error("serial read failed", slog.Any("error", err))
			}
			return
		}

		switch p.cmd {
		case cmdResult:
			select {
			case l.results <- p:
			default:
				l.logger.Warn("dropping unexpected result", slog.Int("seq", int(p.seq)))
			}

		case cmdSendStatus:
			l.notify(p.payload)

		default:
			l.logger.Warn("unknown packet", slog.Int("cmd", int(p.cmd)))
		}
	}
}

func (l *Link) notify(payload []byte) {
	if len(payload) < radio.AddressSize+1 {
		l.logger.Warn("short send status report", slog.Int("size", len(payload)))
		return
	}

	fn := l.completion.Load()
	if fn == nil {
		return
	}

	var dst radio.Address
	copy(dst[:], payload)

	status := radio.StatusSuccess
	if payload[radio.AddressSize] != statusOK {
		status = radio.StatusFail
	}
	(*fn)(dst, status)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
