package wire

import (
	"errors"
	"fmt"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

const (
	// peerListFormat is the only version-list layout understood: one
	// version byte per entry.
	peerListFormat = 1

	peerEntrySize = label.KeySize + 8
)

// ErrMalformedPeers is returned when the n/np fields of a response disagree
// or use an unknown layout.
var ErrMalformedPeers = errors.New("malformed peer list")

// ParsePeers decodes the peer hints carried by a get-peers response.
// Entries are returned in wire order. A response reporting no peers may
// omit n entirely. An entry whose serialized name
// repeats an earlier one is dropped.
func ParsePeers(m *Message) ([]label.NodeName, error) {
	if m.NodeVersions == nil {
		return nil, fmt.Errorf("%w: missing np", ErrMalformedPeers)
	}
	if len(m.NodeVersions) == 0 || m.NodeVersions[0] != peerListFormat {
		return nil, fmt.Errorf("%w: unsupported version list format", ErrMalformedPeers)
	}

	versions := m.NodeVersions[1:]
	if len(m.Nodes) < len(versions)*peerEntrySize {
		return nil, fmt.Errorf("%w: %d versions for %d bytes of nodes",
			ErrMalformedPeers, len(versions), len(m.Nodes))
	}

	out := make([]label.NodeName, 0, len(versions))
	seen := make(map[label.NodeName]struct{}, len(versions))
	for i, v := range versions {
		entry := m.Nodes[i*peerEntrySize : (i+1)*peerEntrySize]

		var key [label.KeySize]byte
		copy(key[:], entry[:label.KeySize])
		path, err := label.FromBytes(entry[label.KeySize:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPeers, err)
		}

		n := label.NodeName{Version: int(v), Path: path, Key: label.KeyString(key)}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// EncodePeers fills the n/np fields of m with peers.
func EncodePeers(m *Message, peers []label.NodeName) error {
	nodes := make([]byte, 0, len(peers)*peerEntrySize)
	versions := make([]byte, 0, len(peers)+1)
	versions = append(versions, peerListFormat)

	for _, p := range peers {
		key, err := label.KeyBytes(p.Key)
		if err != nil {
			return err
		}
		if p.Version < 0 || p.Version > 0xff {
			return fmt.Errorf("%w: version %d does not fit a byte", ErrMalformedPeers, p.Version)
		}
		nodes = append(nodes, key[:]...)
		nodes = append(nodes, p.Path.Bytes()...)
		versions = append(versions, byte(p.Version))
	}

	m.Nodes = nodes
	m.NodeVersions = versions
	return nil
}
