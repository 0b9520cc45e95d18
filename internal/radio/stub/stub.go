// Package stub provides an in-memory radio link for host runs and tests. It
// keeps a real peer table, records every call in order and can be told to fail.
package stub

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roman-kulish/rc-transmitter/internal/radio"
)

const Backend = "stub"

// Op names a recorded link call.
type Op string

const (
	OpRegister   Op = "register"
	OpDeregister Op = "deregister"
	OpSend       Op = "send"
)

// Call is one recorded link operation.
type Call struct {
	Op      Op
	Address radio.Address
	Payload []byte
	Err     error
}

// WithLocalAddress sets the address reported by LocalAddress.
func WithLocalAddress(addr radio.Address) func(*Link) {
	return func(l *Link) {
		l.local = addr
	}
}

// WithCompletionStatus sets the status delivered to the completion callback
// after every accepted send.
func WithCompletionStatus(status radio.SendStatus) func(*Link) {
	return func(l *Link) {
		l.status = status
	}
}

// Link is an in-memory radio.Link.
type Link struct {
	mu         sync.Mutex
	local      radio.Address
	peers      map[radio.Address]radio.PeerInfo
	calls      []Call
	status     radio.SendStatus
	completion radio.CompletionFunc
	closed     bool

	registerErr   error
	deregisterErr error
	sendErr       error

	wg sync.WaitGroup
}

// New creates an empty stub link.
func New(options ...func(*Link)) *Link {
	l := Link{
		peers: make(map[radio.Address]radio.PeerInfo),
	}

	for _, option := range options {
		option(&l)
	}

	return &l
}

// FailRegister makes subsequent Register calls return err (nil restores).
func (l *Link) FailRegister(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registerErr = err
}

// FailDeregister makes subsequent Deregister calls return err (nil restores).
func (l *Link) FailDeregister(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deregisterErr = err
}

// FailSend makes subsequent Send calls return err (nil restores).
func (l *Link) FailSend(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

func (l *Link) Register(_ context.Context, peer radio.PeerInfo) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.record(OpRegister, peer.Address, nil, err) }()

	switch {
	case l.closed:
		return radio.ErrClosed
	case l.registerErr != nil:
		return l.registerErr
	}
	if _, ok := l.peers[peer.Address]; ok {
		return fmt.Errorf("registering %s: %w", peer.Address, radio.ErrPeerExists)
	}

	l.peers[peer.Address] = peer
	return nil
}

func (l *Link) Deregister(_ context.Context, addr radio.Address) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.record(OpDeregister, addr, nil, err) }()

	switch {
	case l.closed:
		return radio.ErrClosed
	case l.deregisterErr != nil:
		return l.deregisterErr
	}
	if _, ok := l.peers[addr]; !ok {
		return fmt.Errorf("deregistering %s: %w", addr, radio.ErrPeerNotFound)
	}

	delete(l.peers, addr)
	return nil
}

func (l *Link) Send(_ context.Context, dst radio.Address, payload []byte) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.record(OpSend, dst, payload, err) }()

	switch {
	case l.closed:
		return radio.ErrClosed
	case l.sendErr != nil:
		return l.sendErr
	case len(payload) > radio.MaxPayloadSize:
		return radio.ErrPayloadTooLarge
	}
	if _, ok := l.peers[dst]; !ok {
		return fmt.Errorf("sending to %s: %w", dst, radio.ErrPeerNotFound)
	}

	if fn := l.completion; fn != nil {
		status := l.status
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			fn(dst, status)
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

// Close waits for pending completion callbacks.
func (l *Link) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

// Flush waits until every completion callback issued so far has returned.
func (l *Link) Flush() {
	l.wg.Wait()
}

// Peers returns the registered addresses, sorted.
func (l *Link) Peers() []radio.Address {
	l.mu.Lock()
	defer l.mu.Unlock()

	peers := make([]radio.Address, 0, len(l.peers))
	for addr := range l.peers {
		peers = append(peers, addr)
	}
	slices.SortFunc(peers, func(a, b radio.Address) int {
		return slices.Compare(a[:], b[:])
	})
	return peers
}

// Calls returns a copy of the recorded calls, oldest first.
func (l *Link) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

// Reset forgets recorded calls, keeping the peer table.
func (l *Link) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func (l *Link) record(op Op, addr radio.Address, payload []byte, err error) {
	l.calls = append(l.calls, Call{
		Op:      op,
		Address: addr,
		Payload: slices.Clone(payload),
		Err:     err,
	})
}
