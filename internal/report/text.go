package report

import (
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cjdelisle/cjdnswalk/internal/model"
)

const ruleWidth = 70

// TextWriter outputs human-readable summaries for terminal display.
// Counts are formatted for the configured language, so a large network
// reads as "12,408" rather than "12408".
type TextWriter struct {
	baseWriter

	// printer formats numbers for the configured language.
	printer *message.Printer

	// showEmpty controls whether sections with no data are shown.
	showEmpty bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithLanguage selects the language used to format counts.
func WithLanguage(tag language.Tag) TextWriterOption {
	return func(w *TextWriter) {
		w.printer = message.NewPrinter(tag)
	}
}

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showEmpty = show
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSummary outputs the summary in human-readable format.
func (w *TextWriter) WriteSummary(s *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, s)
	w.writeVersions(&sb, s)
	w.writeHubs(&sb, s)
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

// WriteImports outputs one line per import.
func (w *TextWriter) WriteImports(imports []model.Import) (int, error) {
	var sb strings.Builder

	if len(imports) == 0 {
		sb.WriteString("No imports recorded.\n")
		return io.WriteString(w.output, sb.String())
	}

	w.printer.Fprintf(&sb, "%-6s %-23s %9s %9s  %s\n", "ID", "IMPORTED", "NODES", "EDGES", "SOURCE")
	for _, imp := range imports {
		w.printer.Fprintf(&sb, "%-6d %-23s %9d %9d  %s\n",
			imp.ID, imp.ImportedAt.Format(timeFormat), imp.Nodes, imp.Edges, imp.Source)
	}

	return io.WriteString(w.output, sb.String())
}

// WriteDiff outputs the changes between two imports.
func (w *TextWriter) WriteDiff(d *model.GraphDiff) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                       CJDNS NETWORK CHANGES\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	w.printer.Fprintf(&sb, "Previous:       #%d  %s  %d nodes  %d edges\n",
		d.Previous.ID, d.Previous.ImportedAt.Format(timeFormat), d.Previous.Nodes, d.Previous.Edges)
	w.printer.Fprintf(&sb, "Current:        #%d  %s  %d nodes  %d edges\n\n",
		d.Current.ID, d.Current.ImportedAt.Format(timeFormat), d.Current.Nodes, d.Current.Edges)

	if d.Unchanged() {
		sb.WriteString("No changes.\n\n")
	}

	w.writeAddresses(&sb, "NODES JOINED", "+", d.NodesJoined)
	w.writeAddresses(&sb, "NODES LEFT", "-", d.NodesLeft)
	if len(d.Upgraded) > 0 {
		writeSection(&sb, "UPGRADED NODES")
		for _, u := range d.Upgraded {
			w.printer.Fprintf(&sb, "  [^] %-39s v%d -> v%d\n", u.IP, u.From, u.To)
		}
		sb.WriteString("\n")
	}
	w.writeEdges(&sb, "LINKS ADDED", "+", d.EdgesAdded)
	w.writeEdges(&sb, "LINKS REMOVED", "-", d.EdgesRemoved)

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeAddresses(sb *strings.Builder, title, mark string, ips []string) {
	if len(ips) == 0 {
		return
	}
	writeSection(sb, title)
	for _, ip := range ips {
		w.printer.Fprintf(sb, "  [%s] %s\n", mark, ip)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeEdges(sb *strings.Builder, title, mark string, edges []model.GraphEdge) {
	if len(edges) == 0 {
		return
	}
	writeSection(sb, title)
	for _, e := range edges {
		w.printer.Fprintf(sb, "  [%s] %s <-> %s\n", mark, e.A, e.B)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeHeader(sb *strings.Builder, s *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                        CJDNS NETWORK GRAPH\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	if s.Import.ID != 0 {
		w.printer.Fprintf(sb, "Import:         #%d (%s)\n", s.Import.ID, orDash(s.Import.Source))
	}
	if s.Import.Session != "" {
		w.printer.Fprintf(sb, "Crawl Session:  %s\n", s.Import.Session)
	}
	if !s.Import.ImportedAt.IsZero() {
		w.printer.Fprintf(sb, "Imported:       %s\n", s.Import.ImportedAt.Format(timeFormat))
	}
	w.printer.Fprintf(sb, "Nodes:          %d\n", s.Nodes)
	w.printer.Fprintf(sb, "Edges:          %d\n", s.Edges)
	w.printer.Fprintf(sb, "Average Degree: %.2f\n", s.AverageDegree)
	w.printer.Fprintf(sb, "Leaves:         %d\n", s.Leaves)
	w.printer.Fprintf(sb, "Isolated:       %d\n", s.Isolated)
	if s.Unlisted > 0 {
		w.printer.Fprintf(sb, "Unlisted:       %d (edge endpoints without a node record)\n", s.Unlisted)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeVersions(sb *strings.Builder, s *model.Summary) {
	if len(s.Versions) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PROTOCOL VERSIONS")
	if len(s.Versions) == 0 {
		sb.WriteString("  No versions recorded\n\n")
		return
	}
	for _, v := range s.Versions {
		w.printer.Fprintf(sb, "  v%-4d %9d nodes\n", v.Version, v.Nodes)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeHubs(sb *strings.Builder, s *model.Summary) {
	if len(s.Hubs) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "BEST CONNECTED NODES")
	if len(s.Hubs) == 0 {
		sb.WriteString("  No links recorded\n\n")
		return
	}
	for i, h := range s.Hubs {
		w.printer.Fprintf(sb, "  %2d. %-39s %6d links\n", i+1, h.IP, h.Degree)
	}
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
