package wire

import (
	"errors"
	"fmt"

	"github.com/zeebo/bencode"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

// ContentTypeCJDHT is the data header content type of DHT traffic.
const ContentTypeCJDHT = 256

// TxIDSize is the length of the correlation token placed in every query.
const TxIDSize = 16

// Query kinds.
const (
	// QueryGetPeers asks a node to enumerate peers near a path.
	QueryGetPeers = "gp"

	// QueryPing asks a node only to answer. No peers are enumerated.
	QueryPing = "pn"
)

// ErrMalformedMessage is returned when a CJDHT payload cannot be decoded.
var ErrMalformedMessage = errors.New("malformed dht message")

// Message is the CJDHT dictionary. Queries carry Query and Target; responses
// echo TxID and add Nodes and NodeVersions. Both directions carry the
// sender's protocol version, encoding scheme and the encoding form of the
// label the message travelled on.
type Message struct {
	Query        string `bencode:"q,omitempty"`
	Target       []byte `bencode:"tar,omitempty"`
	TxID         []byte `bencode:"txid"`
	Version      int64  `bencode:"p"`
	Scheme       []byte `bencode:"es"`
	FormNum      int64  `bencode:"ei"`
	Nodes        []byte `bencode:"n,omitempty"`
	NodeVersions []byte `bencode:"np,omitempty"`
}

// NewQuery builds a query from the local node, who speaks version and
// encodes labels with scheme, to a node reached over path.
func NewQuery(kind string, near label.Label, txid []byte, version int, scheme label.Scheme, path label.Label) *Message {
	formNum := scheme.FormNum(path)
	if formNum < 0 {
		formNum = 0
	}
	return &Message{
		Query:   kind,
		Target:  near.Bytes(),
		TxID:    txid,
		Version: int64(version),
		Scheme:  scheme.Bytes(),
		FormNum: int64(formNum),
	}
}

// Marshal returns the bencoded form of m.
func (m *Message) Marshal() ([]byte, error) {
	b, err := bencode.EncodeBytes(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dht message: %w", err)
	}
	return b, nil
}

// ParseMessage decodes a bencoded CJDHT dictionary.
func ParseMessage(b []byte) (*Message, error) {
	var m Message
	if err := bencode.DecodeBytes(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(m.TxID) == 0 {
		return nil, fmt.Errorf("%w: missing txid", ErrMalformedMessage)
	}
	return &m, nil
}

// NearPath decodes the tar field.
func (m *Message) NearPath() (label.Label, error) {
	return label.FromBytes(m.Target)
}
