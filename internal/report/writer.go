package report

import (
	"io"

	"github.com/cjdelisle/cjdnswalk/internal/model"
)

// Writer defines the interface for graph report output.
// Implementations write summaries and import listings in various formats.
type Writer interface {
	// WriteSummary outputs the summary of one imported graph.
	// Returns the number of bytes written and any error encountered.
	WriteSummary(s *model.Summary) (int, error)

	// WriteImports outputs a listing of stored imports.
	WriteImports(imports []model.Import) (int, error)

	// WriteDiff outputs the changes between two imports.
	WriteDiff(d *model.GraphDiff) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeFormat is the layout used for import timestamps in human output.
const timeFormat = "2006-01-02 15:04:05 MST"

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
