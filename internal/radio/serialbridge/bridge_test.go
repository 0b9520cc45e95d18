package serialbridge

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/rc-transmitter/internal/radio"
)

var (
	dongleAddr = radio.MustParseAddress("24:6f:28:aa:bb:cc")
	peerA      = radio.MustParseAddress("5c:01:3b:6c:1c:48")
)

// dongle emulates the firmware side of the bridge on a pipe.
type dongle struct {
	conn    net.Conn
	mu      sync.Mutex
	peers   map[radio.Address]bool
	sent    [][]byte
	silent  bool // never answer
	failAll bool // report every delivery as failed
	noise   bool // prefix replies with garbage and a corrupted packet
}

func startDongle(t *testing.T, d *dongle) net.Conn {
	t.Helper()

	host, dev := net.Pipe()
	d.conn = dev
	d.peers = make(map[radio.Address]bool)

	go d.serve()
	t.Cleanup(func() { _ = dev.Close() })
	return host
}

func (d *dongle) serve() {
	r := bufio.NewReader(d.conn)
	for {
		p, err := readPacket(r)
		if err != nil {
			return
		}
		if d.silent {
			continue
		}
		if d.noise {
			corrupted, _ := packet{cmd: cmdResult, seq: p.seq, payload: []byte{statusRejected}}.appendTo([]byte{0x00, 0x13})
			corrupted[len(corrupted)-1] ^= 0xff
			_, _ = d.conn.Write(corrupted)
		}

		status, data := d.handle(p)
		reply, _ := packet{cmd: cmdResult, seq: p.seq, payload: append([]byte{status}, data...)}.appendTo(nil)
		if _, err = d.conn.Write(reply); err != nil {
			return
		}

		if p.cmd == cmdSend && status == statusOK {
			report := append([]byte(nil), p.payload[:radio.AddressSize]...)
			report = append(report, boolByte(d.failAll))
			msg, _ := packet{cmd: cmdSendStatus, payload: report}.appendTo(nil)
			if _, err = d.conn.Write(msg); err != nil {
				return
			}
		}
	}
}

func (d *dongle) handle(p packet) (byte, []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var addr radio.Address
	if len(p.payload) >= radio.AddressSize {
		copy(addr[:], p.payload)
	}

	switch p.cmd {
	case cmdHello:
		return statusOK, dongleAddr[:]
	case cmdAddPeer:
		if d.peers[addr] {
			return statusPeerExists, nil
		}
		d.peers[addr] = true
		return statusOK, nil
	case cmdDelPeer:
		if !d.peers[addr] {
			return statusPeerNotFound, nil
		}
		delete(d.peers, addr)
		return statusOK, nil
	case cmdSend:
		if !d.peers[addr] {
			return statusPeerNotFound, nil
		}
		d.sent = append(d.sent, append([]byte(nil), p.payload[radio.AddressSize:]...))
		return statusOK, nil
	default:
		return statusRejected, nil
	}
}

func TestLink_Handshake(t *testing.T) {
	l, err := New(context.Background(), startDongle(t, &dongle{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	if l.LocalAddress() != dongleAddr {
		t.Errorf("expected local address %s, got %s", dongleAddr, l.LocalAddress())
	}
}

func TestLink_HandshakeTimeout(t *testing.T) {
	_, err := New(context.Background(), startDongle(t, &dongle{silent: true}), WithTimeout(20*time.Millisecond))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	var linkErr *radio.LinkError
	if !errors.As(err, &linkErr) || linkErr.Kind != radio.RuntimeKind {
		t.Errorf("expected runtime LinkError, got %v", err)
	}
}

func TestLink_PeerTableAndSend(t *testing.T) {
	d := &dongle{}
	l, err := New(context.Background(), startDongle(t, d))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	completions := make(chan radio.SendStatus, 1)
	l.OnSendComplete(func(dst radio.Address, status radio.SendStatus) {
		if dst == peerA {
			completions <- status
		}
	})

	if err = l.Send(ctx, peerA, []byte{1}); !errors.Is(err, radio.ErrPeerNotFound) {
		t.Errorf("expected ErrPeerNotFound before registration, got %v", err)
	}
	if err = l.Register(ctx, radio.PeerInfo{Address: peerA}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err = l.Register(ctx, radio.PeerInfo{Address: peerA}); !errors.Is(err, radio.ErrPeerExists) {
		t.Errorf("expected ErrPeerExists, got %v", err)
	}

	payload := []byte{1, 0, 0, 0, 0, 0, 0, 1}
	if err = l.Send(ctx, peerA, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case status := <-completions:
		if status != radio.StatusSuccess {
			t.Errorf("expected SUCCESS, got %s", status)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion received")
	}

	d.mu.Lock()
	sent := d.sent
	d.mu.Unlock()
	if len(sent) != 1 || !bytes.Equal(sent[0], payload) {
		t.Errorf("unexpected payloads at the dongle: %v", sent)
	}

	if err = l.Deregister(ctx, peerA); err != nil {
		t.Errorf("Deregister: %v", err)
	}
	if err = l.Deregister(ctx, peerA); !errors.Is(err, radio.ErrPeerNotFound) {
		t.Errorf("expected ErrPeerNotFound, got %v", err)
	}
	if err = l.Send(ctx, peerA, make([]byte, radio.MaxPayloadSize+1)); !errors.Is(err, radio.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestLink_FailedDelivery(t *testing.T) {
	l, err := New(context.Background(), startDongle(t, &dongle{failAll: true}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	completions := make(chan radio.SendStatus, 1)
	l.OnSendComplete(func(_ radio.Address, status radio.SendStatus) { completions <- status })

	ctx := context.Background()
	_ = l.Register(ctx, radio.PeerInfo{Address: peerA})
	if err = l.Send(ctx, peerA, []byte{0}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case status := <-completions:
		if status != radio.StatusFail {
			t.Errorf("expected FAIL, got %s", status)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion received")
	}
}

func TestLink_SkipsNoise(t *testing.T) {
	l, err := New(context.Background(), startDongle(t, &dongle{noise: true}))
	if err != nil {
		t.Fatalf("expected handshake to survive line noise, got %v", err)
	}
	defer l.Close()

	if err = l.Register(context.Background(), radio.PeerInfo{Address: peerA}); err != nil {
		t.Errorf("Register: %v", err)
	}
}

func TestLink_SurvivesBadLength(t *testing.T) {
	d := &dongle{}
	l, err := New(context.Background(), startDongle(t, d))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	if _, err = d.conn.Write([]byte{startByte, 0x13, 0x00, 0xff, 0xff}); err != nil {
		t.Fatalf("writing garbage: %v", err)
	}

	if err = l.Register(context.Background(), radio.PeerInfo{Address: peerA}); err != nil {
		t.Fatalf("expected link to resync after a bad length, got %v", err)
	}
	if err = l.Send(context.Background(), peerA, []byte{1, 2, 3}); err != nil {
		t.Errorf("Send: %v", err)
	}
}

func TestReadPacket_Resync(t *testing.T) {
	valid, err := packet{cmd: cmdSend, seq: 3, payload: []byte{9}}.appendTo(nil)
	if err != nil {
		t.Fatalf("appendTo: %v", err)
	}

	tests := []struct {
		name   string
		prefix []byte
	}{
		{"oversized length", []byte{startByte, 0x13, 0x00, 0xff, 0xff}},
		{"real start inside the bad header", []byte{startByte, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(bytes.NewReader(append(append([]byte(nil), tt.prefix...), valid...)))

			if _, err := readPacket(r); !errors.Is(err, errFraming) {
				t.Fatalf("expected framing error, got %v", err)
			}

			p, err := readPacket(r)
			if err != nil {
				t.Fatalf("expected the following packet, got %v", err)
			}
			if p.cmd != cmdSend || p.seq != 3 || !bytes.Equal(p.payload, []byte{9}) {
				t.Errorf("unexpected packet %+v", p)
			}
		})
	}
}

func TestLink_Closed(t *testing.T) {
	l, err := New(context.Background(), startDongle(t, &dongle{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_ = l.Close()
	if err = l.Register(context.Background(), radio.PeerInfo{Address: peerA}); !errors.Is(err, radio.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestPacket_RoundTrip(t *testing.T) {
	buf, err := packet{cmd: cmdSend, seq: 7, payload: []byte{1, 2, 3}}.appendTo([]byte{0xff, 0xfe})
	if err != nil {
		t.Fatalf("appendTo: %v", err)
	}

	p, err := readPacket(bufio.NewReader(bytes.NewReader(buf)))
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if p.cmd != cmdSend || p.seq != 7 || !bytes.Equal(p.payload, []byte{1, 2, 3}) {
		t.Errorf("unexpected packet %+v", p)
	}

	buf[len(buf)-1] ^= 0x01
	if _, err = readPacket(bufio.NewReader(bytes.NewReader(buf))); !errors.Is(err, errChecksum) {
		t.Errorf("expected checksum error, got %v", err)
	}

	if _, err = (packet{payload: make([]byte, maxPayloadSize+1)}).appendTo(nil); !errors.Is(err, radio.ErrPayloadTooLarge) {
		t.Errorf("expected oversize packet to be refused, got %v", err)
	}
}
