package radio

import (
	"context"
	"errors"
)

var (
	// ErrNotInitialised is returned by every operation of a link whose radio
	// stack failed to start.
	ErrNotInitialised = errors.New("radio not initialised")

	// ErrPeerNotFound is returned when an address is not in the peer table.
	ErrPeerNotFound = errors.New("peer not found")

	// ErrPeerExists is returned when registering an address twice.
	ErrPeerExists = errors.New("peer already exists")

	// ErrSendRejected is returned when the radio refuses a datagram.
	ErrSendRejected = errors.New("send rejected")

	// ErrPayloadTooLarge is returned for payloads above MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("link closed")
)

// ErrorKind tells configuration problems from runtime failures.
type ErrorKind int

const (
	ConfigKind ErrorKind = iota
	RuntimeKind
)

func (k ErrorKind) String() string {
	if k == ConfigKind {
		return "config"
	}
	return "runtime"
}

// LinkError wraps a failure of a concrete link backend.
type LinkError struct {
	Kind    ErrorKind
	Backend string
	Err     error
}

func NewConfigError(backend string, err error) *LinkError {
	return &LinkError{Kind: ConfigKind, Backend: backend, Err: err}
}

func NewRuntimeError(backend string, err error) *LinkError {
	return &LinkError{Kind: RuntimeKind, Backend: backend, Err: err}
}

func (e *LinkError) Error() string {
	return e.Backend + ": " + e.Kind.String() + " error: " + e.Err.Error()
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// unavailable is the link used when the radio stack could not be started.
type unavailable struct {
	local Address
	cause error
}

// Unavailable returns a link whose operations all fail with
// ErrNotInitialised, keeping the cause for diagnostics.
func Unavailable(local Address, cause error) Link {
	return &unavailable{local: local, cause: cause}
}

func (u *unavailable) err() error {
	if u.cause == nil {
		return ErrNotInitialised
	}
	return errors.Join(ErrNotInitialised, u.cause)
}

func (u *unavailable) Register(context.Context, PeerInfo) error { return u.err() }

func (u *unavailable) Deregister(context.Context, Address) error { return u.err() }

func (u *unavailable) Send(context.Context, Address, []byte) error { return u.err() }

func (u *unavailable) OnSendComplete(CompletionFunc) {}

func (u *unavailable) LocalAddress() Address { return u.local }

func (u *unavailable) Close() error { return nil }
