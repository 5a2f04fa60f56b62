package model

import (
	"cmp"
	"slices"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

// GraphNode is a node as the collector knows it.
type GraphNode struct {
	// Version is the protocol version the node advertised.
	Version int `json:"version"`

	// IP is the node's cjdns IPv6 address.
	IP string `json:"ip"`
}

// GraphEdge is an undirected link between two nodes. A is derived from the
// lexically smaller public key, so the same link seen from either side
// yields the same edge.
type GraphEdge struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Graph is the export payload.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// NewGraphNode converts a node name.
func NewGraphNode(name label.NodeName) (GraphNode, error) {
	ip, err := label.IPv6(name.Key)
	if err != nil {
		return GraphNode{}, err
	}
	return GraphNode{Version: name.Version, IP: ip.String()}, nil
}

// NewGraphEdge converts a link between two public keys.
func NewGraphEdge(keyA, keyB string) (GraphEdge, error) {
	if keyB < keyA {
		keyA, keyB = keyB, keyA
	}
	a, err := label.IPv6(keyA)
	if err != nil {
		return GraphEdge{}, err
	}
	b, err := label.IPv6(keyB)
	if err != nil {
		return GraphEdge{}, err
	}
	return GraphEdge{A: a.String(), B: b.String()}, nil
}

// Sort orders nodes by address then version, and edges by endpoints.
func (g *Graph) Sort() {
	slices.SortFunc(g.Nodes, func(x, y GraphNode) int {
		return cmp.Or(cmp.Compare(x.IP, y.IP), cmp.Compare(x.Version, y.Version))
	})
	slices.SortFunc(g.Edges, compareEdges)
}

func compareEdges(x, y GraphEdge) int {
	return cmp.Or(cmp.Compare(x.A, y.A), cmp.Compare(x.B, y.B))
}

// Degrees returns the number of edges touching each address.
func (g *Graph) Degrees() map[string]int {
	deg := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, ok := deg[n.IP]; !ok {
			deg[n.IP] = 0
		}
	}
	for _, e := range g.Edges {
		deg[e.A]++
		if e.B != e.A {
			deg[e.B]++
		}
	}
	return deg
}
