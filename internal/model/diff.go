package model

import (
	"cmp"
	"slices"
)

// GraphDiff lists what changed between two imports.
type GraphDiff struct {
	Previous Import `json:"previous"`
	Current  Import `json:"current"`

	// Addresses are compared regardless of the advertised version.
	NodesJoined []string `json:"nodes_joined"`
	NodesLeft   []string `json:"nodes_left"`

	EdgesAdded   []GraphEdge `json:"edges_added"`
	EdgesRemoved []GraphEdge `json:"edges_removed"`

	// Upgraded lists addresses whose highest advertised version rose.
	Upgraded []VersionChange `json:"upgraded"`
}

// VersionChange records a node advertising a new protocol version.
type VersionChange struct {
	IP   string `json:"ip"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// Unchanged reports whether nothing was added, removed or upgraded.
func (d *GraphDiff) Unchanged() bool {
	return len(d.NodesJoined) == 0 && len(d.NodesLeft) == 0 &&
		len(d.EdgesAdded) == 0 && len(d.EdgesRemoved) == 0 &&
		len(d.Upgraded) == 0
}

// Diff compares the graph of previous with the graph of current. All lists
// are sorted and non-nil.
func Diff(prevImport Import, prev *Graph, curImport Import, cur *Graph) GraphDiff {
	d := GraphDiff{
		Previous:     prevImport,
		Current:      curImport,
		NodesJoined:  []string{},
		NodesLeft:    []string{},
		EdgesAdded:   []GraphEdge{},
		EdgesRemoved: []GraphEdge{},
		Upgraded:     []VersionChange{},
	}

	before, after := highestVersions(prev), highestVersions(cur)
	for ip, v := range after {
		old, ok := before[ip]
		switch {
		case !ok:
			d.NodesJoined = append(d.NodesJoined, ip)
		case v > old:
			d.Upgraded = append(d.Upgraded, VersionChange{IP: ip, From: old, To: v})
		}
	}
	for ip := range before {
		if _, ok := after[ip]; !ok {
			d.NodesLeft = append(d.NodesLeft, ip)
		}
	}

	d.EdgesAdded = edgesMissing(cur.Edges, prev.Edges)
	d.EdgesRemoved = edgesMissing(prev.Edges, cur.Edges)

	slices.Sort(d.NodesJoined)
	slices.Sort(d.NodesLeft)
	slices.SortFunc(d.Upgraded, func(a, b VersionChange) int {
		return cmp.Compare(a.IP, b.IP)
	})
	return d
}

func highestVersions(g *Graph) map[string]int {
	out := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		if v, ok := out[n.IP]; !ok || n.Version > v {
			out[n.IP] = n.Version
		}
	}
	return out
}

// edgesMissing returns the edges of from that are not in other, sorted.
func edgesMissing(from, other []GraphEdge) []GraphEdge {
	have := make(map[GraphEdge]struct{}, len(other))
	for _, e := range other {
		have[e] = struct{}{}
	}
	out := []GraphEdge{}
	for _, e := range from {
		if _, ok := have[e]; ok {
			continue
		}
		have[e] = struct{}{}
		out = append(out, e)
	}
	slices.SortFunc(out, compareEdges)
	return out
}
