package receiver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roman-kulish/rc-transmitter/internal/input"
	"github.com/roman-kulish/rc-transmitter/internal/radio"
	"github.com/roman-kulish/rc-transmitter/internal/radio/stub"
)

func newTestSelector(t *testing.T, peers []Peer, options ...func(*Selector)) (*Selector, *Registry, *stub.Link, *[]time.Duration) {
	t.Helper()

	r, err := NewRegistry(peers)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	var pauses []time.Duration
	link := stub.New()
	options = append([]func(*Selector){
		WithPause(func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		}),
	}, options...)

	s := NewSelector(r, link, options...)
	if err = s.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	link.Reset()

	return s, r, link, &pauses
}

func press(t *testing.T, s *Selector) bool {
	t.Helper()

	ctx := context.Background()
	switched, err := s.Poll(ctx, input.Low)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if _, err = s.Poll(ctx, input.High); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	return switched
}

func TestSelector_FallingEdgeOnly(t *testing.T) {
	s, r, _, pauses := newTestSelector(t, referencePeers)
	ctx := context.Background()

	levels := []input.Level{input.High, input.Low, input.Low, input.Low, input.High, input.High, input.Low}
	var switches int
	for _, level := range levels {
		switched, err := s.Poll(ctx, level)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if switched {
			switches++
		}
	}

	if switches != 2 {
		t.Errorf("expected 2 recognised edges, got %d", switches)
	}
	if r.Index() != 2 {
		t.Errorf("expected index 2, got %d", r.Index())
	}
	if len(*pauses) != 2 || (*pauses)[0] != DefaultQuietPeriod {
		t.Errorf("expected a quiet period after every edge, got %v", *pauses)
	}
}

func TestSelector_RoundRobin(t *testing.T) {
	s, r, _, _ := newTestSelector(t, referencePeers)

	for i := range 3 {
		if !press(t, s) {
			t.Fatalf("press %d not recognised", i)
		}
	}
	if r.Index() != 0 {
		t.Errorf("expected three presses to return to index 0, got %d", r.Index())
	}
}

func TestSelector_Toggle(t *testing.T) {
	s, r, _, _ := newTestSelector(t, referencePeers[:2])

	for i, want := range []int{1, 0, 1} {
		press(t, s)
		if r.Index() != want {
			t.Errorf("press %d: expected index %d, got %d", i, want, r.Index())
		}
	}
}

func TestSelector_PeerTableOrdering(t *testing.T) {
	s, _, link, _ := newTestSelector(t, referencePeers)

	// Start at index 2 so the next press wraps around.
	press(t, s)
	press(t, s)
	link.Reset()

	press(t, s)

	calls := link.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected deregister and register, got %d calls", len(calls))
	}
	if calls[0].Op != stub.OpDeregister || calls[0].Address != referencePeers[2].Address {
		t.Errorf("expected deregister of %s first, got %s %s", referencePeers[2].Address, calls[0].Op, calls[0].Address)
	}
	if calls[1].Op != stub.OpRegister || calls[1].Address != referencePeers[0].Address {
		t.Errorf("expected register of %s second, got %s %s", referencePeers[0].Address, calls[1].Op, calls[1].Address)
	}

	peers := link.Peers()
	if len(peers) != 1 || peers[0] != referencePeers[0].Address {
		t.Errorf("expected only %s in the peer table, got %v", referencePeers[0].Address, peers)
	}
}

func TestSelector_DeregisterFailure(t *testing.T) {
	var got []Switch
	s, r, link, _ := newTestSelector(t, referencePeers, WithSwitchHandler(func(sw Switch) { got = append(got, sw) }))

	boom := errors.New("radio busy")
	link.FailDeregister(boom)

	press(t, s)

	calls := link.Calls()
	if len(calls) != 2 || calls[1].Op != stub.OpRegister {
		t.Fatalf("expected register to be attempted after failed deregister, got %+v", calls)
	}
	if r.Index() != 1 {
		t.Errorf("expected index 1, got %d", r.Index())
	}
	if len(got) != 1 || !errors.Is(got[0].DeregisterErr, boom) || got[0].RegisterErr != nil {
		t.Errorf("unexpected switch report %+v", got)
	}
}

func TestSelector_MissingPeerIsNotAnError(t *testing.T) {
	var got []Switch
	s, _, link, _ := newTestSelector(t, referencePeers, WithSwitchHandler(func(sw Switch) { got = append(got, sw) }))

	// Drop the active peer behind the selector's back.
	_ = link.Deregister(context.Background(), referencePeers[0].Address)

	press(t, s)

	if len(got) != 1 || got[0].DeregisterErr != nil {
		t.Errorf("expected missing peer to be ignored, got %+v", got)
	}
}

func TestSelector_RegisterFailureStillAdvances(t *testing.T) {
	var got []Switch
	s, r, link, _ := newTestSelector(t, referencePeers, WithSwitchHandler(func(sw Switch) { got = append(got, sw) }))

	link.FailRegister(radio.ErrNotInitialised)

	if !press(t, s) {
		t.Fatal("expected the press to be recognised")
	}
	if r.Index() != 1 {
		t.Errorf("expected index to advance, got %d", r.Index())
	}
	if len(got) != 1 || !errors.Is(got[0].RegisterErr, radio.ErrNotInitialised) {
		t.Errorf("expected register failure in switch report, got %+v", got)
	}
}

func TestSelector_PauseCancelled(t *testing.T) {
	r, _ := NewRegistry(referencePeers)
	s := NewSelector(r, stub.New(), WithQuietPeriod(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	switched, err := s.Poll(ctx, input.Low)
	if !switched {
		t.Error("expected the edge to be acted on before the pause")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
