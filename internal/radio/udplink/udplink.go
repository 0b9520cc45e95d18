// Package udplink carries radio datagrams over UDP so receivers can be
// emulated on a bench network. Every hardware address maps to a UDP
// endpoint, and the link keeps its own peer table: datagrams only go to
// registered peers, as on the real radio.
//
// Each datagram is the sender's hardware address followed by the payload.
package udplink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/net/ipv4"

	"github.com/roman-kulish/rc-transmitter/internal/radio"
)

const (
	Backend = "udp"

	DefaultTTL = 1
)

// Endpoint binds a hardware address to a UDP address.
type Endpoint struct {
	Address radio.Address `yaml:"address"`
	UDP     string        `yaml:"udp"`
}

// Config of the UDP link.
type Config struct {
	Listen    string     `yaml:"listen"`
	TTL       int        `yaml:"ttl"`
	TOS       int        `yaml:"tos"`
	Endpoints []Endpoint `yaml:"endpoints"`
}

func (c *Config) Validate() error {
	if c.TTL < 0 || c.TTL > 255 {
		return fmt.Errorf("udplink.Config: ttl out of range: %d", c.TTL)
	}
	if c.TOS < 0 || c.TOS > 255 {
		return fmt.Errorf("udplink.Config: tos out of range: %d", c.TOS)
	}
	if len(c.Endpoints) == 0 {
		return errors.New("udplink.Config: no endpoints")
	}

	seen := make(map[radio.Address]struct{}, len(c.Endpoints))
	for _, e := range c.Endpoints {
		if _, ok := seen[e.Address]; ok {
			return fmt.Errorf("udplink.Config: duplicate endpoint for %s", e.Address)
		}
		seen[e.Address] = struct{}{}

		if _, err := net.ResolveUDPAddr("udp4", e.UDP); err != nil {
			return fmt.Errorf("udplink.Config: endpoint %s: %w", e.Address, err)
		}
	}
	return nil
}

// WithLocalAddress sets the hardware address reported by the link and
// prefixed to every datagram.
func WithLocalAddress(addr radio.Address) func(*Link) {
	return func(l *Link) {
		l.local = addr
	}
}

func WithLogger(logger *slog.Logger) func(*Link) {
	return func(l *Link) {
		l.logger = logger.With(slog.String("link", Backend))
	}
}

// Link is a radio.Link over UDP.
type Link struct {
	conn      net.PacketConn
	pc        *ipv4.PacketConn
	endpoints map[radio.Address]*net.UDPAddr
	local     radio.Address
	logger    *slog.Logger

	mu         sync.Mutex
	peers      map[radio.Address]radio.PeerInfo
	completion radio.CompletionFunc
	closed     bool
	buf        []byte

	wg sync.WaitGroup
}

// Open binds the local socket and applies TTL and TOS.
func Open(config *Config, options ...func(*Link)) (*Link, error) {
	if err := config.Validate(); err != nil {
		return nil, radio.NewConfigError(Backend, err)
	}

	endpoints := make(map[radio.Address]*net.UDPAddr, len(config.Endpoints))
	for _, e := range config.Endpoints {
		addr, _ := net.ResolveUDPAddr("udp4", e.UDP)
		endpoints[e.Address] = addr
	}

	listen := config.Listen
	if listen == "" {
		listen = "0.0.0.0:0"
	}

	conn, err := net.ListenPacket("udp4", listen)
	if err != nil {
		return nil, radio.NewRuntimeError(Backend, fmt.Errorf("listening on %s: %w", listen, err))
	}

	pc := ipv4.NewPacketConn(conn)

	ttl := config.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if err = pc.SetTTL(ttl); err != nil {
		_ = conn.Close()
		return nil, radio.NewRuntimeError(Backend, fmt.Errorf("setting ttl: %w", err))
	}
	if config.TOS != 0 {
		if err = pc.SetTOS(config.TOS); err != nil {
			_ = conn.Close()
			return nil, radio.NewRuntimeError(Backend, fmt.Errorf("setting tos: %w", err))
		}
	}

	l := Link{
		conn:      conn,
		pc:        pc,
		endpoints: endpoints,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		peers:     make(map[radio.Address]radio.PeerInfo),
		buf:       make([]byte, 0, radio.AddressSize+radio.MaxPayloadSize),
	}

	for _, option := range options {
		option(&l)
	}

	l.logger.Info("udp link ready", slog.String("listen", conn.LocalAddr().String()), slog.Int("ttl", ttl))
	return &l, nil
}

// Register adds a peer. Only addresses with a configured endpoint exist.
func (l *Link) Register(_ context.Context, peer radio.PeerInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return radio.ErrClosed
	}
	if _, ok := l.endpoints[peer.Address]; !ok {
		return radio.NewConfigError(Backend, fmt.Errorf("no endpoint for %s", peer.Address))
	}
	if _, ok := l.peers[peer.Address]; ok {
		return fmt.Errorf("registering %s: %w", peer.Address, radio.ErrPeerExists)
	}

	l.peers[peer.Address] = peer
	return nil
}

func (l *Link) Deregister(_ context.Context, addr radio.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return radio.ErrClosed
	}
	if _, ok := l.peers[addr]; !ok {
		return fmt.Errorf("deregistering %s: %w", addr, radio.ErrPeerNotFound)
	}

	delete(l.peers, addr)
	return nil
}

// Send writes one datagram. UDP gives no delivery report, so a completed
// write is reported as success and a failed one is returned as a rejection.
func (l *Link) Send(ctx context.Context, dst radio.Address, payload []byte) error {
	if len(payload) > radio.MaxPayloadSize {
		return radio.ErrPayloadTooLarge
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return radio.ErrClosed
	}
	if _, ok := l.peers[dst]; !ok {
		return fmt.Errorf("sending to %s: %w", dst, radio.ErrPeerNotFound)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.buf = append(l.buf[:0], l.local[:]...)
	l.buf = append(l.buf, payload...)

	if _, err := l.pc.WriteTo(l.buf, nil, l.endpoints[dst]); err != nil {
		return fmt.Errorf("sending to %s: %w: %w", dst, radio.ErrSendRejected, err)
	}

	if fn := l.completion; fn != nil {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			fn(dst, radio.StatusSuccess)
		}()
	}
	return nil
}

func (l *Link) OnSendComplete(fn radio.CompletionFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completion = fn
}

func (l *Link) LocalAddress() radio.Address {
	return l.local
}

// LocalUDPAddr returns the bound socket address.
func (l *Link) LocalUDPAddr() net.Addr {
	return l.conn.LocalAddr()
}

func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.wg.Wait()
	return l.conn.Close()
}

// Decode splits a datagram into the sender address and the payload.
func Decode(datagram []byte) (radio.Address, []byte, error) {
	var src radio.Address
	if len(datagram) < radio.AddressSize {
		return src, nil, fmt.Errorf("udplink: short datagram: %d bytes", len(datagram))
	}
	copy(src[:], datagram)
	return src, datagram[radio.AddressSize:], nil
}
