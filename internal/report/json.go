package report

import (
	"encoding/json"
	"io"

	"github.com/cjdelisle/cjdnswalk/internal/model"
)

// JSONWriter outputs graphs and summaries in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteGraph outputs the {"nodes": [...], "edges": [...]} payload.
// Missing slices are written as empty arrays.
func (w *JSONWriter) WriteGraph(g *model.Graph) (int, error) {
	payload := model.Graph{Nodes: g.Nodes, Edges: g.Edges}
	if payload.Nodes == nil {
		payload.Nodes = []model.GraphNode{}
	}
	if payload.Edges == nil {
		payload.Edges = []model.GraphEdge{}
	}
	return w.writeJSON(payload)
}

// WriteSummary outputs the summary in JSON format.
func (w *JSONWriter) WriteSummary(s *model.Summary) (int, error) {
	return w.writeJSON(s)
}

// WriteImports outputs the import listing as a JSON array.
func (w *JSONWriter) WriteImports(imports []model.Import) (int, error) {
	if imports == nil {
		imports = []model.Import{}
	}
	return w.writeJSON(imports)
}

// WriteDiff outputs the diff in JSON format.
func (w *JSONWriter) WriteDiff(d *model.GraphDiff) (int, error) {
	return w.writeJSON(d)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
