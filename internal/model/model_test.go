package model

import (
	"errors"
	"slices"
	"testing"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

func testKey(seed byte) string {
	var k [label.KeySize]byte
	for i := range k {
		k[i] = seed ^ byte(i*7)
	}
	return label.KeyString(k)
}

func TestNewGraphNode(t *testing.T) {
	t.Parallel()

	t.Run("valid key", func(t *testing.T) {
		t.Parallel()

		key := testKey(1)
		n, err := NewGraphNode(label.NodeName{Version: 20, Path: 0x13, Key: key})
		if err != nil {
			t.Fatalf("NewGraphNode: %v", err)
		}
		want, err := label.IPv6(key)
		if err != nil {
			t.Fatal(err)
		}
		if n.IP != want.String() || n.Version != 20 {
			t.Errorf("expected {20 %s}, got %+v", want, n)
		}
	})

	t.Run("bad key", func(t *testing.T) {
		t.Parallel()

		_, err := NewGraphNode(label.NodeName{Version: 20, Key: "nope.k"})
		if !errors.Is(err, label.ErrMalformedKey) {
			t.Errorf("expected ErrMalformedKey, got %v", err)
		}
	})
}

func TestNewGraphEdgeIsUndirected(t *testing.T) {
	t.Parallel()

	a, b := testKey(1), testKey(2)
	ab, err := NewGraphEdge(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := NewGraphEdge(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if ab != ba {
		t.Errorf("expected same edge from both sides, got %+v and %+v", ab, ba)
	}

	first := min(a, b)
	ip, err := label.IPv6(first)
	if err != nil {
		t.Fatal(err)
	}
	if ab.A != ip.String() {
		t.Errorf("expected A derived from smaller key, got %s", ab.A)
	}
}

func TestGraphSort(t *testing.T) {
	t.Parallel()

	g := Graph{
		Nodes: []GraphNode{{20, "fc00::2"}, {18, "fc00::1"}, {16, "fc00::1"}},
		Edges: []GraphEdge{{"fc00::2", "fc00::3"}, {"fc00::1", "fc00::3"}, {"fc00::1", "fc00::2"}},
	}
	g.Sort()

	wantNodes := []GraphNode{{16, "fc00::1"}, {18, "fc00::1"}, {20, "fc00::2"}}
	wantEdges := []GraphEdge{{"fc00::1", "fc00::2"}, {"fc00::1", "fc00::3"}, {"fc00::2", "fc00::3"}}
	if !slices.Equal(g.Nodes, wantNodes) {
		t.Errorf("nodes: got %v, want %v", g.Nodes, wantNodes)
	}
	if !slices.Equal(g.Edges, wantEdges) {
		t.Errorf("edges: got %v, want %v", g.Edges, wantEdges)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	g := &Graph{
		Nodes: []GraphNode{
			{20, "fc00::1"},
			{20, "fc00::2"},
			{18, "fc00::3"},
			{20, "fc00::4"},
		},
		Edges: []GraphEdge{
			{"fc00::1", "fc00::2"},
			{"fc00::1", "fc00::3"},
			{"fc00::1", "fc00::5"},
		},
	}

	s := Summarize(Import{ID: 7, Source: "walk.log"}, g, 2)

	if s.Import.ID != 7 || s.Nodes != 4 || s.Edges != 3 {
		t.Errorf("unexpected totals %+v", s)
	}
	if want := []VersionCount{{20, 3}, {18, 1}}; !slices.Equal(s.Versions, want) {
		t.Errorf("versions: got %v, want %v", s.Versions, want)
	}
	if want := []Hub{{"fc00::1", 3}, {"fc00::2", 1}}; !slices.Equal(s.Hubs, want) {
		t.Errorf("hubs: got %v, want %v", s.Hubs, want)
	}
	if s.Isolated != 1 || s.Leaves != 3 || s.Unlisted != 1 {
		t.Errorf("isolated %d leaves %d unlisted %d, want 1 3 1", s.Isolated, s.Leaves, s.Unlisted)
	}
	if s.AverageDegree != 1.2 {
		t.Errorf("average degree: got %v, want 1.2", s.AverageDegree)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	s := Summarize(Import{}, &Graph{}, DefaultHubs)
	if s.Nodes != 0 || s.Edges != 0 || len(s.Hubs) != 0 || s.AverageDegree != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	prev := &Graph{
		Nodes: []GraphNode{{18, "fc00::1"}, {20, "fc00::1"}, {18, "fc00::2"}, {20, "fc00::3"}},
		Edges: []GraphEdge{{"fc00::1", "fc00::2"}, {"fc00::1", "fc00::3"}},
	}
	cur := &Graph{
		Nodes: []GraphNode{{20, "fc00::1"}, {21, "fc00::2"}, {20, "fc00::4"}},
		Edges: []GraphEdge{{"fc00::1", "fc00::2"}, {"fc00::1", "fc00::4"}, {"fc00::1", "fc00::4"}},
	}

	d := Diff(Import{ID: 1}, prev, Import{ID: 2}, cur)

	if d.Previous.ID != 1 || d.Current.ID != 2 {
		t.Errorf("unexpected imports %+v %+v", d.Previous, d.Current)
	}
	if want := []string{"fc00::4"}; !slices.Equal(d.NodesJoined, want) {
		t.Errorf("joined: got %v, want %v", d.NodesJoined, want)
	}
	if want := []string{"fc00::3"}; !slices.Equal(d.NodesLeft, want) {
		t.Errorf("left: got %v, want %v", d.NodesLeft, want)
	}
	if want := []GraphEdge{{"fc00::1", "fc00::4"}}; !slices.Equal(d.EdgesAdded, want) {
		t.Errorf("added: got %v, want %v", d.EdgesAdded, want)
	}
	if want := []GraphEdge{{"fc00::1", "fc00::3"}}; !slices.Equal(d.EdgesRemoved, want) {
		t.Errorf("removed: got %v, want %v", d.EdgesRemoved, want)
	}
	// fc00::1 already advertised 20 before, so only fc00::2 upgraded.
	if want := []VersionChange{{"fc00::2", 18, 21}}; !slices.Equal(d.Upgraded, want) {
		t.Errorf("upgraded: got %v, want %v", d.Upgraded, want)
	}
	if d.Unchanged() {
		t.Error("expected changes")
	}
}

func TestDiffUnchanged(t *testing.T) {
	t.Parallel()

	g := &Graph{
		Nodes: []GraphNode{{20, "fc00::1"}, {20, "fc00::2"}},
		Edges: []GraphEdge{{"fc00::1", "fc00::2"}},
	}
	d := Diff(Import{}, g, Import{}, g)
	if !d.Unchanged() {
		t.Errorf("expected no changes, got %+v", d)
	}
	if d.NodesJoined == nil || d.EdgesRemoved == nil || d.Upgraded == nil {
		t.Error("expected non-nil lists")
	}
}
