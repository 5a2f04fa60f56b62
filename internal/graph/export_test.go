package graph

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/model"
)

func TestCollect(t *testing.T) {
	t.Parallel()

	self := testName(1, label.Self)
	x := testName(2, 0x13)
	a := testName(3, 0x153)

	log := strings.Join([]string{
		fmt.Sprintf(`["node",1,18,%q]`, self),
		fmt.Sprintf(`["node",2,18,%q]`, x),
		fmt.Sprintf(`["node",3,18,%q]`, x.WithPath(0x1353)),
		fmt.Sprintf(`["node",4,20,%q]`, label.NodeName{Version: 20, Path: 0x13, Key: x.Key}),
		`["node",5,18,"bogus"]`,
		fmt.Sprintf(`["link",6,"0000.0000.0000.0013",%q,%q,0]`, self.Key, x.Key),
		fmt.Sprintf(`["link",7,"0000.0000.0000.0013",%q,%q,0]`, x.Key, self.Key),
		fmt.Sprintf(`["link",8,"0000.0000.0000.0015",%q,%q,1]`, x.Key, a.Key),
		fmt.Sprintf(`["hzn",9,%q,"ffff.ffff.ffff.ffff","0000.0000.0000.0017"]`, a.Key),
		fmt.Sprintf(`["fail",10,%q]`, a),
		`["info",11,0,0,"crawl-1"]`,
		"",
	}, "\n")

	out, err := Collect(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	node := func(n label.NodeName) model.GraphNode {
		g, err := model.NewGraphNode(n)
		if err != nil {
			t.Fatal(err)
		}
		return g
	}
	edge := func(p, c string) model.GraphEdge {
		e, err := model.NewGraphEdge(p, c)
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	wantNodes := []model.GraphNode{
		node(self),
		node(x),
		node(label.NodeName{Version: 20, Key: x.Key}),
	}
	if len(out.Graph.Nodes) != len(wantNodes) {
		t.Fatalf("expected %d nodes, got %v", len(wantNodes), out.Graph.Nodes)
	}
	for i := range wantNodes {
		if out.Graph.Nodes[i] != wantNodes[i] {
			t.Errorf("node %d: got %+v, want %+v", i, out.Graph.Nodes[i], wantNodes[i])
		}
	}

	wantEdges := []model.GraphEdge{edge(self.Key, x.Key), edge(x.Key, a.Key)}
	if len(out.Graph.Edges) != 2 || out.Graph.Edges[0] != wantEdges[0] || out.Graph.Edges[1] != wantEdges[1] {
		t.Errorf("edges: got %v, want %v", out.Graph.Edges, wantEdges)
	}

	if out.Session != "crawl-1" {
		t.Errorf("expected session crawl-1, got %q", out.Session)
	}
	if out.Skipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", out.Skipped)
	}
}

func TestCollectEmptyLog(t *testing.T) {
	t.Parallel()

	out, err := Collect(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if out.Graph.Nodes == nil || out.Graph.Edges == nil {
		t.Error("expected empty, non-nil slices so the payload encodes as []")
	}
}

func TestCollectMalformedLine(t *testing.T) {
	t.Parallel()

	_, err := Collect(strings.NewReader("not json\n"))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
}
