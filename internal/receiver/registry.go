// Package receiver keeps the ordered set of receivers the transmitter can
// address and switches between them on a debounced selector press.
package receiver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roman-kulish/rc-transmitter/internal/radio"
)

// ErrNoReceivers is returned when a registry is created without peers.
var ErrNoReceivers = errors.New("no receivers configured")

// Peer is a configured receiver.
type Peer struct {
	Name    string        `yaml:"name" json:"name"`
	Address radio.Address `yaml:"address" json:"address"`
}

func (p Peer) String() string {
	if p.Name == "" {
		return p.Address.String()
	}
	return p.Name + " (" + p.Address.String() + ")"
}

// Registry is a fixed, ordered list of receivers and the index of the active
// one. The index is always valid.
type Registry struct {
	mu     sync.RWMutex
	peers  []Peer
	active int
}

// NewRegistry validates peers and makes the first one active.
func NewRegistry(peers []Peer) (*Registry, error) {
	if len(peers) == 0 {
		return nil, ErrNoReceivers
	}

	seen := make(map[radio.Address]int, len(peers))
	for i, p := range peers {
		if p.Address.IsZero() {
			return nil, fmt.Errorf("receiver.Registry: receiver %d has no address", i)
		}
		if j, ok := seen[p.Address]; ok {
			return nil, fmt.Errorf("receiver.Registry: receivers %d and %d share address %s", j, i, p.Address)
		}
		seen[p.Address] = i
	}

	return &Registry{peers: append([]Peer(nil), peers...)}, nil
}

// Active returns the active receiver.
func (r *Registry) Active() Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers[r.active]
}

// ActiveAddress returns the hardware address of the active receiver.
func (r *Registry) ActiveAddress() radio.Address {
	return r.Active().Address
}

// Index is the position of the active receiver.
func (r *Registry) Index() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Len is the number of configured receivers.
func (r *Registry) Len() int {
	return len(r.peers)
}

// Peer returns the receiver at index i.
func (r *Registry) Peer(i int) Peer {
	return r.peers[i]
}

// Advance moves to the next receiver round-robin and returns the receivers
// before and after the move.
func (r *Registry) Advance() (from, to Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	from = r.peers[r.active]
	r.active = (r.active + 1) % len(r.peers)
	return from, r.peers[r.active]
}
