package serialbridge

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/roman-kulish/rc-transmitter/internal/radio"
)

// Packet layout on the serial line, both directions:
//
//	0xA5 | cmd | seq | len (uint16 LE) | payload[len] | xor(cmd..payload)
const (
	startByte = 0xa5

	headerSize     = 5
	maxPayloadSize = 512
)

const (
	cmdHello      byte = 0x01 // -> empty;        <- result + local address
	cmdAddPeer    byte = 0x02 // -> addr, channel, encrypt
	cmdDelPeer    byte = 0x03 // -> addr
	cmdSend       byte = 0x04 // -> addr, data
	cmdResult     byte = 0x81 // <- echoed seq, status, optional data
	cmdSendStatus byte = 0x82 // <- addr, status; unsolicited
)

// Status codes carried by cmdResult.
const (
	statusOK byte = iota
	statusNotInitialised
	statusPeerNotFound
	statusPeerExists
	statusRejected
	statusTooLarge
)

var (
	errChecksum = errors.New("checksum mismatch")
	errFraming  = errors.New("bad packet header")
)

// statusError maps a dongle status to the radio package errors.
func statusError(status byte) error {
	switch status {
	case statusOK:
		return nil
	case statusNotInitialised:
		return radio.ErrNotInitialised
	case statusPeerNotFound:
		return radio.ErrPeerNotFound
	case statusPeerExists:
		return radio.ErrPeerExists
	case statusRejected:
		return radio.ErrSendRejected
	case statusTooLarge:
		return radio.ErrPayloadTooLarge
	default:
		return fmt.Errorf("unknown status 0x%02x", status)
	}
}

type packet struct {
	cmd     byte
	seq     byte
	payload []byte
}

func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum ^= v
	}
	return sum
}

func (p packet) appendTo(b []byte) ([]byte, error) {
	if len(p.payload) > maxPayloadSize {
		return b, radio.ErrPayloadTooLarge
	}

	start := len(b)
	b = append(b, startByte, p.cmd, p.seq)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(p.payload)))
	b = append(b, p.payload...)
	return append(b, checksum(b[start+1:])), nil
}

// readPacket reads the next packet, skipping noise before the start byte.
func readPacket(r *bufio.Reader) (packet, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return packet{}, err
		}
		if b == startByte {
			break
		}
	}

	// Header bytes stay buffered until the length checks out; after a stray
	// start byte the scan resumes at the next byte.
	peeked, err := r.Peek(headerSize - 1)
	if err != nil {
		return packet{}, err
	}

	var header [headerSize - 1]byte
	copy(header[:], peeked)

	n := int(binary.LittleEndian.Uint16(header[2:]))
	if n > maxPayloadSize {
		return packet{}, fmt.Errorf("%w: command 0x%02x: length %d over %d", errFraming, header[0], n, maxPayloadSize)
	}
	if _, err = r.Discard(len(header)); err != nil {
		return packet{}, err
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return packet{}, err
	}

	sum, err := r.ReadByte()
	if err != nil {
		return packet{}, err
	}
	if checksum(header[:])^checksum(payload) != sum {
		return packet{}, fmt.Errorf("%w: command 0x%02x", errChecksum, header[0])
	}

	return packet{cmd: header[0], seq: header[1], payload: payload}, nil
}
