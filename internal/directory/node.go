package directory

import (
	"bytes"
	"time"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

// Identity is the immutable part of a node.
type Identity struct {
	// Key is the node's public key in text form.
	Key string

	// Version is the protocol version the node advertised when first seen.
	Version int

	// Scheme is the node's label encoding scheme.
	Scheme label.Scheme

	schemeBytes []byte
}

// SchemeBytes returns the wire form of the scheme as first observed.
func (id Identity) SchemeBytes() []byte {
	return bytes.Clone(id.schemeBytes)
}

// Reachability records how a node was reached from one parent.
type Reachability struct {
	// Label is the parent's canonical label for the link.
	Label label.Label

	// FormNum is the encoding form the node reported for the label it was
	// queried on.
	FormNum int

	Time time.Time
}

// Hint is a peer a node reported during enumeration, waiting to be expanded.
type Hint struct {
	// Name is the peer as the reporting node described it, with the path
	// expressed in the reporting node's scheme.
	Name label.NodeName

	// Canonical is Name.Path in canonical form.
	Canonical label.Label

	// FullPath is the route from the local node to the peer through the
	// reporting node, or label.Horizon if no such route fits in a label.
	FullPath label.Label
}

// Node is a discovered node: its identity plus crawl liveness state.
type Node struct {
	id Identity

	lastSeen    time.Time
	visited     bool
	reachableBy map[string]Reachability
	testedPeers Set[string]

	hints   []Hint
	hintSet Set[string]
}

func newNode(id Identity) *Node {
	return &Node{
		id:          id,
		reachableBy: make(map[string]Reachability),
		testedPeers: NewSet[string](),
		hintSet:     NewSet[string](),
	}
}

// Identity returns the node's immutable identity.
func (n *Node) Identity() Identity { return n.id }

// Key returns the node's public key.
func (n *Node) Key() string { return n.id.Key }

// Touch records that the node was heard from at t.
func (n *Node) Touch(t time.Time) {
	if t.After(n.lastSeen) {
		n.lastSeen = t
	}
}

// LastSeen returns the last time the node was heard from.
func (n *Node) LastSeen() time.Time { return n.lastSeen }

// Visited reports whether the node's neighbors have been enumerated.
func (n *Node) Visited() bool { return n.visited }

// MarkVisited sets the visited flag. It reports true only for the call that
// performed the transition.
func (n *Node) MarkVisited() bool {
	if n.visited {
		return false
	}
	n.visited = true
	return true
}

// RecordReachability stores how the node is reached from parentKey. The
// latest record for a parent wins.
func (n *Node) RecordReachability(parentKey string, r Reachability) {
	n.reachableBy[parentKey] = r
}

// ReachableBy returns the record for parentKey.
func (n *Node) ReachableBy(parentKey string) (Reachability, bool) {
	r, ok := n.reachableBy[parentKey]
	return r, ok
}

// Parents returns the number of parents the node is known reachable from.
func (n *Node) Parents() int { return len(n.reachableBy) }

// AddTestedPeer records that peerKey has been queried through this node.
func (n *Node) AddTestedPeer(peerKey string) { n.testedPeers.Add(peerKey) }

// HasTestedPeer reports whether peerKey has been queried through this node.
func (n *Node) HasTestedPeer(peerKey string) bool { return n.testedPeers.Has(peerKey) }

// AddHint stores h unless a hint for the same key is already held. It
// reports whether h was stored.
func (n *Node) AddHint(h Hint) bool {
	if !n.hintSet.Add(h.Name.Key) {
		return false
	}
	n.hints = append(n.hints, h)
	return true
}

// HasHint reports whether a hint for key is held.
func (n *Node) HasHint(key string) bool { return n.hintSet.Has(key) }

// Hints returns the held hints in the order they were added.
func (n *Node) Hints() []Hint {
	out := make([]Hint, len(n.hints))
	copy(out, n.hints)
	return out
}
