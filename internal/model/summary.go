package model

import (
	"cmp"
	"slices"
	"time"
)

// DefaultHubs is how many best-connected nodes a Summary lists.
const DefaultHubs = 10

// Import describes one event log stored in the graph database.
type Import struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	Session    string    `json:"session,omitempty"`
	ImportedAt time.Time `json:"imported_at"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
}

// VersionCount is the number of nodes advertising one protocol version.
type VersionCount struct {
	Version int `json:"version"`
	Nodes   int `json:"nodes"`
}

// Hub is a node and its edge count.
type Hub struct {
	IP     string `json:"ip"`
	Degree int    `json:"degree"`
}

// Summary condenses a Graph for human consumption.
type Summary struct {
	Import Import `json:"import"`

	Nodes int `json:"nodes"`
	Edges int `json:"edges"`

	// Versions is ordered newest version first.
	Versions []VersionCount `json:"versions"`

	// Hubs is ordered by degree, highest first.
	Hubs []Hub `json:"hubs"`

	// Leaves counts addresses with exactly one edge.
	Leaves int `json:"leaves"`

	// Isolated counts nodes without any edge.
	Isolated int `json:"isolated"`

	// Unlisted counts edge endpoints that have no node entry.
	Unlisted int `json:"unlisted"`

	AverageDegree float64 `json:"average_degree"`
}

// Summarize computes a Summary, listing at most hubs best-connected nodes.
func Summarize(imp Import, g *Graph, hubs int) Summary {
	s := Summary{
		Import: imp,
		Nodes:  len(g.Nodes),
		Edges:  len(g.Edges),
	}

	versions := make(map[int]int)
	listed := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		versions[n.Version]++
		listed[n.IP] = true
	}
	for v, c := range versions {
		s.Versions = append(s.Versions, VersionCount{Version: v, Nodes: c})
	}
	slices.SortFunc(s.Versions, func(a, b VersionCount) int {
		return cmp.Compare(b.Version, a.Version)
	})

	deg := g.Degrees()
	total := 0
	for ip, d := range deg {
		total += d
		switch d {
		case 0:
			s.Isolated++
		case 1:
			s.Leaves++
		}
		if !listed[ip] {
			s.Unlisted++
		}
		s.Hubs = append(s.Hubs, Hub{IP: ip, Degree: d})
	}
	if len(deg) > 0 {
		s.AverageDegree = float64(total) / float64(len(deg))
	}

	slices.SortFunc(s.Hubs, func(a, b Hub) int {
		return cmp.Or(cmp.Compare(b.Degree, a.Degree), cmp.Compare(a.IP, b.IP))
	})
	if hubs < len(s.Hubs) {
		s.Hubs = s.Hubs[:max(hubs, 0)]
	}
	return s
}
