package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

// ControlType identifies a switch control message.
type ControlType uint16

// Control message types.
const (
	ControlError   ControlType = 2
	ControlPing    ControlType = 3
	ControlPong    ControlType = 4
	ControlKeyPing ControlType = 5
	ControlKeyPong ControlType = 6
)

const (
	controlHeaderSize = 4

	pingMagic    = 0x09f91102
	pongMagic    = 0x9d74e35b
	keyPingMagic = 0x01234567
	keyPongMagic = 0x89abcdef

	// maxPingData is the largest payload a router echoes back.
	maxPingData = 256
)

var (
	// ErrMalformedControl is returned when a control message cannot be
	// decoded.
	ErrMalformedControl = errors.New("malformed control message")

	// ErrBadChecksum is returned when a control message fails its
	// checksum.
	ErrBadChecksum = errors.New("control message checksum mismatch")
)

// String returns the name used by cjdns for t.
func (t ControlType) String() string {
	switch t {
	case ControlError:
		return "ERROR"
	case ControlPing:
		return "PING"
	case ControlPong:
		return "PONG"
	case ControlKeyPing:
		return "KEYPING"
	case ControlKeyPong:
		return "KEYPONG"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// ErrorType is the cause code of a switch error report.
type ErrorType uint32

// Switch error causes.
const (
	ErrorNone ErrorType = iota
	ErrorMalformedAddress
	ErrorFlood
	ErrorLinkLimitExceeded
	ErrorOversizeMessage
	ErrorUndersizeMessage
	ErrorAuthentication
	ErrorInvalid
	ErrorUndeliverable
	ErrorLoopRoute
	ErrorReturnPathInvalid
)

var errorTypeNames = [...]string{
	"NONE",
	"MALFORMED_ADDRESS",
	"FLOOD",
	"LINK_LIMIT_EXCEEDED",
	"OVERSIZE_MESSAGE",
	"UNDERSIZE_MESSAGE",
	"AUTHENTICATION",
	"INVALID",
	"UNDELIVERABLE",
	"LOOP_ROUTE",
	"RETURN_PATH_INVALID",
}

func (t ErrorType) String() string {
	if int(t) < len(errorTypeNames) {
		return errorTypeNames[t]
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(t))
}

// Ping is the body of PING/PONG and KEYPING/KEYPONG messages. Key is only
// meaningful for the key variants.
type Ping struct {
	Version uint32
	Key     [label.KeySize]byte
	Data    []byte
}

// SwitchError is the body of an ERROR message: what went wrong and the
// switch header of the packet that caused it.
type SwitchError struct {
	Type  ErrorType
	Cause SwitchHeader
	Data  []byte
}

// Control is a decoded switch control message. Exactly one of Ping and
// Error is set for known types.
type Control struct {
	Type  ControlType
	Ping  *Ping
	Error *SwitchError
}

// NewKeyPing builds a KEYPING carrying the sender's key and opaque data
// that the responder echoes back.
func NewKeyPing(version uint32, key [label.KeySize]byte, data []byte) *Control {
	return &Control{
		Type: ControlKeyPing,
		Ping: &Ping{Version: version, Key: key, Data: data},
	}
}

// Marshal returns the wire form of c with its checksum filled in.
func (c *Control) Marshal() []byte {
	var body []byte
	switch {
	case c.Ping != nil:
		body = c.marshalPing()
	case c.Error != nil:
		body = make([]byte, 4+SwitchHeaderSize, 4+SwitchHeaderSize+len(c.Error.Data))
		binary.BigEndian.PutUint32(body[0:4], uint32(c.Error.Type))
		c.Error.Cause.put(body[4 : 4+SwitchHeaderSize])
		body = append(body, c.Error.Data...)
	}

	b := make([]byte, controlHeaderSize+len(body))
	binary.BigEndian.PutUint16(b[2:4], uint16(c.Type))
	copy(b[controlHeaderSize:], body)
	binary.BigEndian.PutUint16(b[0:2], checksum(b))
	return b
}

func (c *Control) marshalPing() []byte {
	magic, keyed := pingMagic, false
	switch c.Type {
	case ControlPong:
		magic = pongMagic
	case ControlKeyPing:
		magic, keyed = keyPingMagic, true
	case ControlKeyPong:
		magic, keyed = keyPongMagic, true
	}

	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], uint32(magic))
	binary.BigEndian.PutUint32(b[4:8], c.Ping.Version)
	if keyed {
		b = append(b, c.Ping.Key[:]...)
	}
	return append(b, c.Ping.Data...)
}

// ParseControl decodes and verifies a control message.
func ParseControl(b []byte) (*Control, error) {
	if len(b) < controlHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedControl, len(b))
	}
	if checksum(b) != 0 {
		return nil, ErrBadChecksum
	}

	c := &Control{Type: ControlType(binary.BigEndian.Uint16(b[2:4]))}
	body := b[controlHeaderSize:]

	switch c.Type {
	case ControlError:
		if len(body) < 4+SwitchHeaderSize {
			return nil, fmt.Errorf("%w: short error body", ErrMalformedControl)
		}
		c.Error = &SwitchError{
			Type:  ErrorType(binary.BigEndian.Uint32(body[0:4])),
			Cause: parseSwitchHeader(body[4 : 4+SwitchHeaderSize]),
			Data:  append([]byte(nil), body[4+SwitchHeaderSize:]...),
		}
	case ControlPing, ControlPong, ControlKeyPing, ControlKeyPong:
		p, err := parsePing(c.Type, body)
		if err != nil {
			return nil, err
		}
		c.Ping = p
	}
	return c, nil
}

func parsePing(t ControlType, body []byte) (*Ping, error) {
	want, keyed := uint32(pingMagic), false
	switch t {
	case ControlPong:
		want = pongMagic
	case ControlKeyPing:
		want, keyed = keyPingMagic, true
	case ControlKeyPong:
		want, keyed = keyPongMagic, true
	}

	head := 8
	if keyed {
		head += label.KeySize
	}
	if len(body) < head {
		return nil, fmt.Errorf("%w: short %s body", ErrMalformedControl, t)
	}
	if binary.BigEndian.Uint32(body[0:4]) != want {
		return nil, fmt.Errorf("%w: bad %s magic", ErrMalformedControl, t)
	}

	p := &Ping{Version: binary.BigEndian.Uint32(body[4:8])}
	if keyed {
		copy(p.Key[:], body[8:8+label.KeySize])
	}
	data := body[head:]
	if len(data) > maxPingData {
		return nil, fmt.Errorf("%w: %s data too long", ErrMalformedControl, t)
	}
	p.Data = append([]byte(nil), data...)
	return p, nil
}

// checksum is the RFC 1071 internet checksum over b in network byte order.
func checksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}
