package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/cjdelisle/cjdnswalk/internal/model"
)

// MarkdownWriter outputs graph summaries in Markdown format.
// This format is designed for sharing a snapshot of the network in issues
// and wikis; the version chart renders wherever mermaid is supported.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(s *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeAlert(md, s)
	w.writeVersions(md, s)
	w.writeHubs(md, s)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteImports outputs the import listing as a Markdown table.
func (w *MarkdownWriter) WriteImports(imports []model.Import) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2("Imports")
	md.PlainText("")

	if len(imports) == 0 {
		md.PlainText("No imports recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(imports))
	for i, imp := range imports {
		rows[i] = []string{
			strconv.FormatInt(imp.ID, 10),
			"`" + truncateString(imp.Source, 40) + "`",
			orDash(imp.Session),
			imp.ImportedAt.Format(timeFormat),
			strconv.Itoa(imp.Nodes),
			strconv.Itoa(imp.Edges),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Source", "Session", "Imported", "Nodes", "Edges"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// WriteDiff outputs the changes between two imports in Markdown format.
func (w *MarkdownWriter) WriteDiff(d *model.GraphDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("cjdns Network Changes")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Previous", "Current"},
		Rows: [][]string{
			{"Import", "#" + strconv.FormatInt(d.Previous.ID, 10), "#" + strconv.FormatInt(d.Current.ID, 10)},
			{"Imported", d.Previous.ImportedAt.Format(timeFormat), d.Current.ImportedAt.Format(timeFormat)},
			{"Nodes", strconv.Itoa(d.Previous.Nodes), strconv.Itoa(d.Current.Nodes)},
			{"Edges", strconv.Itoa(d.Previous.Edges), strconv.Itoa(d.Current.Edges)},
		},
	})
	md.PlainText("")

	if d.Unchanged() {
		md.Tip("The network did not change between the two walks.")
		md.PlainText("")
	} else {
		md.Importantf("%d node(s) joined and %d left; %d link(s) appeared and %d disappeared.",
			len(d.NodesJoined), len(d.NodesLeft), len(d.EdgesAdded), len(d.EdgesRemoved))
		md.PlainText("")
	}

	w.writeAddressList(md, "Nodes Joined", d.NodesJoined)
	w.writeAddressList(md, "Nodes Left", d.NodesLeft)

	if len(d.Upgraded) > 0 {
		md.H2("Upgraded Nodes")
		md.PlainText("")
		rows := make([][]string, len(d.Upgraded))
		for i, u := range d.Upgraded {
			rows[i] = []string{"`" + u.IP + "`", "v" + strconv.Itoa(u.From), "v" + strconv.Itoa(u.To)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Address", "From", "To"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeEdgeList(md, "Links Added", d.EdgesAdded)
	w.writeEdgeList(md, "Links Removed", d.EdgesRemoved)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeAddressList(md *markdown.Markdown, title string, ips []string) {
	if len(ips) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")
	items := make([]string, len(ips))
	for i, ip := range ips {
		items[i] = "`" + ip + "`"
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeEdgeList(md *markdown.Markdown, title string, edges []model.GraphEdge) {
	if len(edges) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")
	rows := make([][]string, len(edges))
	for i, e := range edges {
		rows[i] = []string{"`" + e.A + "`", "`" + e.B + "`"}
	}
	md.Table(markdown.TableSet{
		Header: []string{"A", "B"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeHeader writes the title and the totals table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("cjdns Network Graph")
	md.PlainText("")

	rows := [][]string{}
	if s.Import.ID != 0 {
		rows = append(rows, []string{"Import", "#" + strconv.FormatInt(s.Import.ID, 10)})
	}
	if s.Import.Source != "" {
		rows = append(rows, []string{"Source", "`" + s.Import.Source + "`"})
	}
	if s.Import.Session != "" {
		rows = append(rows, []string{"Crawl Session", "`" + s.Import.Session + "`"})
	}
	if !s.Import.ImportedAt.IsZero() {
		rows = append(rows, []string{"Imported", s.Import.ImportedAt.Format(timeFormat)})
	}
	rows = append(rows,
		[]string{"Nodes", strconv.Itoa(s.Nodes)},
		[]string{"Edges", strconv.Itoa(s.Edges)},
		[]string{"Average Degree", strconv.FormatFloat(s.AverageDegree, 'f', 2, 64)},
		[]string{"Leaves", strconv.Itoa(s.Leaves)},
		[]string{"Isolated", strconv.Itoa(s.Isolated)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeAlert writes an alert describing the overall state of the graph.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.Summary) {
	switch {
	case s.Nodes == 0:
		md.Cautionf("No nodes were recorded. The crawl may have failed to reach its bootstrap peer.")
	case s.Unlisted > 0:
		md.Warningf(
			"%d edge endpoint(s) have no node record. The crawl was probably interrupted.",
			s.Unlisted,
		)
	case s.Isolated > 0:
		md.Importantf("%d node(s) were seen without any link.", s.Isolated)
	default:
		md.Tip("Every node has at least one link and every link endpoint is known.")
	}
	md.PlainText("")
}

// writeVersions writes the protocol version table and chart.
func (w *MarkdownWriter) writeVersions(md *markdown.Markdown, s *model.Summary) {
	md.H2("Protocol Versions")
	md.PlainText("")

	if len(s.Versions) == 0 {
		md.PlainText("No versions recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Versions))
	for i, v := range s.Versions {
		rows[i] = []string{"v" + strconv.Itoa(v.Version), strconv.Itoa(v.Nodes)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Version", "Nodes"},
		Rows:   rows,
	})

	if len(s.Versions) > 1 {
		w.writePieChart(md, s)
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the version distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Nodes by Protocol Version"),
		piechart.WithShowData(true),
	)

	for _, v := range s.Versions {
		chart.LabelAndIntValue("v"+strconv.Itoa(v.Version), uint64(v.Nodes)) //nolint:gosec // counts are non-negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
}

// writeHubs writes the best connected nodes.
func (w *MarkdownWriter) writeHubs(md *markdown.Markdown, s *model.Summary) {
	md.H2("Best Connected Nodes")
	md.PlainText("")

	if len(s.Hubs) == 0 {
		md.PlainText("No links recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Hubs))
	for i, h := range s.Hubs {
		rows[i] = []string{strconv.Itoa(i + 1), "`" + h.IP + "`", strconv.Itoa(h.Degree)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Address", "Links"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [cjdnswalk](https://github.com/cjdelisle/cjdnswalk)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
