package graph

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/cjdelisle/cjdnswalk/internal/model"
)

// Export is the collector payload recovered from an event log.
type Export struct {
	Graph model.Graph

	// Session is the crawl session id from the last info record, if any.
	Session string

	// Skipped counts node and link records that could not be converted.
	Skipped int
}

// Collect reads an event log and keeps its node and link records as graph
// entries. A node is identified by version and address and an edge by its
// unordered endpoints; each distinct entry is kept once, in log order.
// Records naming an unparseable key are counted in Skipped.
func Collect(r io.Reader) (*Export, error) {
	out := &Export{
		Graph: model.Graph{Nodes: []model.GraphNode{}, Edges: []model.GraphEdge{}},
	}
	seen := make(seenSet)

	err := ReadRecords(r, func(rec Record) error {
		switch rec.Kind {
		case KindNode:
			nr, err := rec.Node()
			if err != nil {
				out.Skipped++
				return nil
			}
			n, err := model.NewGraphNode(nr.Name)
			if err != nil {
				out.Skipped++
				return nil
			}
			if seen.first(KindNode, strconv.Itoa(n.Version), n.IP) {
				out.Graph.Nodes = append(out.Graph.Nodes, n)
			}

		case KindLink:
			lr, err := rec.Link()
			if err != nil {
				out.Skipped++
				return nil
			}
			e, err := model.NewGraphEdge(lr.ParentKey, lr.ChildKey)
			if err != nil {
				out.Skipped++
				return nil
			}
			if seen.first(KindLink, e.A, e.B) {
				out.Graph.Edges = append(out.Graph.Edges, e)
			}

		case KindInfo:
			if len(rec.Fields) >= 3 {
				var id string
				if json.Unmarshal(rec.Fields[2], &id) == nil && id != "" {
					out.Session = id
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
