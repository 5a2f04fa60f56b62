package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

const (
	// SwitchHeaderSize is the length of a switch header.
	SwitchHeaderSize = 12

	// RouteHeaderSize is the length of the header the router prepends to
	// every message delivered to a registered handler.
	RouteHeaderSize = 68

	// DataHeaderSize is the length of the header preceding application
	// content.
	DataHeaderSize = 4

	routeFlagIncoming = 1
	routeFlagCtrl     = 2

	// CurrentSwitchVersion is the switch header version stamped on
	// outbound frames.
	CurrentSwitchVersion = 1

	// CurrentDataVersion is the data header version stamped on outbound
	// frames.
	CurrentDataVersion = 1
)

// ErrShortFrame is returned when a frame is shorter than its headers.
var ErrShortFrame = errors.New("frame too short")

// SwitchHeader is the label-switching header of a packet.
type SwitchHeader struct {
	Label          label.Label
	Congestion     uint8
	SuppressErrors bool
	Version        uint8
	LabelShift     uint8
	Penalty        uint16
}

func (h SwitchHeader) put(b []byte) {
	binary.BigEndian.PutUint64(b[0:8], uint64(h.Label))
	ce := h.Congestion << 1
	if h.SuppressErrors {
		ce |= 1
	}
	b[8] = ce
	b[9] = h.Version<<6 | h.LabelShift&0x3f
	binary.BigEndian.PutUint16(b[10:12], h.Penalty)
}

func parseSwitchHeader(b []byte) SwitchHeader {
	return SwitchHeader{
		Label:          label.Label(binary.BigEndian.Uint64(b[0:8])),
		Congestion:     b[8] >> 1,
		SuppressErrors: b[8]&1 == 1,
		Version:        b[9] >> 6,
		LabelShift:     b[9] & 0x3f,
		Penalty:        binary.BigEndian.Uint16(b[10:12]),
	}
}

// RouteHeader identifies the remote end of a message and the route it
// travels.
type RouteHeader struct {
	// PublicKey is the remote node's key. It may be zero for control
	// frames, which are addressed by label only.
	PublicKey [label.KeySize]byte

	Switch SwitchHeader

	// Version is the remote node's protocol version.
	Version uint32

	Incoming bool
	Ctrl     bool

	// IP is the remote node's address. When zero on an outbound frame with
	// a key, it is derived from the key.
	IP netip.Addr
}

// DataHeader precedes application content.
type DataHeader struct {
	Version     uint8
	ContentType uint16
}

// Frame is one message on the local link. Control frames carry a control
// message in Content and no data header.
type Frame struct {
	Route   RouteHeader
	Data    DataHeader
	Content []byte
}

// NewDHTFrame frames a CJDHT payload for the node with the given name.
func NewDHTFrame(to label.NodeName, payload []byte) (Frame, error) {
	key, err := label.KeyBytes(to.Key)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Route: RouteHeader{
			PublicKey: key,
			Switch:    SwitchHeader{Label: to.Path, Version: CurrentSwitchVersion},
			Version:   uint32(to.Version),
		},
		Data:    DataHeader{Version: CurrentDataVersion, ContentType: ContentTypeCJDHT},
		Content: payload,
	}, nil
}

// NewControlFrame frames a control message addressed by path alone.
func NewControlFrame(path label.Label, c *Control) Frame {
	return Frame{
		Route: RouteHeader{
			Switch: SwitchHeader{Label: path, Version: CurrentSwitchVersion},
			Ctrl:   true,
		},
		Content: c.Marshal(),
	}
}

// Marshal returns the wire form of f.
func (f Frame) Marshal() []byte {
	size := RouteHeaderSize + len(f.Content)
	if !f.Route.Ctrl {
		size += DataHeaderSize
	}
	b := make([]byte, size)

	copy(b[0:32], f.Route.PublicKey[:])
	f.Route.Switch.put(b[32:44])
	binary.BigEndian.PutUint32(b[44:48], f.Route.Version)

	var flags byte
	if f.Route.Incoming {
		flags |= routeFlagIncoming
	}
	if f.Route.Ctrl {
		flags |= routeFlagCtrl
	}
	b[48] = flags

	ip := f.Route.IP
	if !ip.IsValid() && f.Route.PublicKey != ([label.KeySize]byte{}) {
		ip = label.AddrFromKey(f.Route.PublicKey)
	}
	if ip.Is6() {
		a := ip.As16()
		copy(b[52:68], a[:])
	}

	off := RouteHeaderSize
	if !f.Route.Ctrl {
		b[off] = f.Data.Version << 4
		binary.BigEndian.PutUint16(b[off+2:off+4], f.Data.ContentType)
		off += DataHeaderSize
	}
	copy(b[off:], f.Content)
	return b
}

// ParseFrame decodes a frame received from the router. The returned frame
// does not alias b.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < RouteHeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}

	var f Frame
	copy(f.Route.PublicKey[:], b[0:32])
	f.Route.Switch = parseSwitchHeader(b[32:44])
	f.Route.Version = binary.BigEndian.Uint32(b[44:48])
	f.Route.Incoming = b[48]&routeFlagIncoming != 0
	f.Route.Ctrl = b[48]&routeFlagCtrl != 0

	var ip [16]byte
	copy(ip[:], b[52:68])
	f.Route.IP = netip.AddrFrom16(ip)

	rest := b[RouteHeaderSize:]
	if !f.Route.Ctrl {
		if len(rest) < DataHeaderSize {
			return Frame{}, fmt.Errorf("%w: missing data header", ErrShortFrame)
		}
		f.Data = DataHeader{
			Version:     rest[0] >> 4,
			ContentType: binary.BigEndian.Uint16(rest[2:4]),
		}
		rest = rest[DataHeaderSize:]
	}

	f.Content = append([]byte(nil), rest...)
	return f, nil
}

// KeyString returns the text form of the remote key.
func (h RouteHeader) KeyString() string {
	return label.KeyString(h.PublicKey)
}
