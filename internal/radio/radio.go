// Package radio describes the connectionless short-range link the transmitter
// sends command frames over: hardware addresses, the peer table and the
// fire-and-forget send primitive.
package radio

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// AddressSize is the length of a hardware (MAC) address.
	AddressSize = 6

	// MaxPayloadSize is the largest datagram the link accepts.
	MaxPayloadSize = 250

	// DefaultChannel lets the radio stay on its current channel.
	DefaultChannel = 0
)

// Address is a fixed-length hardware address of a peer.
type Address [AddressSize]byte

// ParseAddress parses "aa:bb:cc:dd:ee:ff" (case-insensitive, ':' or '-').
func ParseAddress(s string) (Address, error) {
	var a Address

	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) != AddressSize {
		return a, fmt.Errorf("radio: invalid address %q", s)
	}
	for i, part := range parts {
		if len(part) != 2 {
			return a, fmt.Errorf("radio: invalid address %q", s)
		}
		b, err := hex.DecodeString(part)
		if err != nil {
			return a, fmt.Errorf("radio: invalid address %q: %w", s, err)
		}
		a[i] = b[0]
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SendStatus is the outcome reported by the asynchronous send completion.
type SendStatus int

const (
	StatusSuccess SendStatus = iota
	StatusFail
)

func (s SendStatus) String() string {
	if s == StatusSuccess {
		return "SUCCESS"
	}
	return "FAIL"
}

// CompletionFunc receives send completion notifications. It is invoked
// outside the caller's goroutine and must not block.
type CompletionFunc func(dst Address, status SendStatus)

// PeerInfo describes a peer table entry.
type PeerInfo struct {
	Address Address
	Channel uint8
	Encrypt bool
}

// Link is the radio layer the transmitter core drives.
type Link interface {
	// Register adds a peer to the radio peer table.
	Register(ctx context.Context, peer PeerInfo) error

	// Deregister removes a peer from the peer table. ErrPeerNotFound is
	// returned for an unknown address and callers treat it as success.
	Deregister(ctx context.Context, addr Address) error

	// Send submits a single datagram. A nil error means the radio accepted
	// the payload, not that it was delivered.
	Send(ctx context.Context, dst Address, payload []byte) error

	// OnSendComplete installs the completion callback, replacing any
	// previous one. A nil func disables notifications.
	OnSendComplete(fn CompletionFunc)

	// LocalAddress returns the station's own hardware address.
	LocalAddress() Address

	Close() error
}
