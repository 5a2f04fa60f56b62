package directory

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

// ErrSchemeChanged is returned when a known node reports an encoding scheme
// different from the one it was first seen with.
var ErrSchemeChanged = errors.New("node changed its encoding scheme")

// Directory maps public keys to nodes.
type Directory struct {
	nodes map[string]*Node
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{nodes: make(map[string]*Node)}
}

// GetOrCreate returns the node for key, creating it from scheme and name
// when it is unknown. created reports whether the node was added by this
// call. If the node exists and scheme differs from the one on record,
// ErrSchemeChanged is returned together with the existing node.
func (d *Directory) GetOrCreate(key string, scheme []byte, name label.NodeName) (n *Node, created bool, err error) {
	if n, ok := d.nodes[key]; ok {
		if !bytes.Equal(n.id.schemeBytes, scheme) {
			return n, false, fmt.Errorf("%w: %s: %x != %x", ErrSchemeChanged, key, scheme, n.id.schemeBytes)
		}
		return n, false, nil
	}

	parsed, err := label.ParseScheme(scheme)
	if err != nil {
		return nil, false, fmt.Errorf("node %s: %w", key, err)
	}

	n = newNode(Identity{
		Key:         key,
		Version:     name.Version,
		Scheme:      parsed,
		schemeBytes: bytes.Clone(scheme),
	})
	d.nodes[key] = n
	return n, true, nil
}

// Get returns the node for key.
func (d *Directory) Get(key string) (*Node, bool) {
	n, ok := d.nodes[key]
	return n, ok
}

// Len returns the number of known nodes.
func (d *Directory) Len() int {
	return len(d.nodes)
}

// Visited returns the number of nodes whose neighbors have been enumerated.
func (d *Directory) Visited() int {
	c := 0
	for _, n := range d.nodes {
		if n.visited {
			c++
		}
	}
	return c
}

// Keys returns all known keys in sorted order.
func (d *Directory) Keys() []string {
	keys := make([]string, 0, len(d.nodes))
	for k := range d.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
