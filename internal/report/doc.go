// Package report renders imported graphs for people and tools.
//
// This package contains writers for different output formats:
//   - TextWriter: terminal output, counts localized with golang.org/x/text
//   - MarkdownWriter: shareable summaries with tables and a version chart
//   - JSONWriter: the {nodes, edges} payload and machine-readable summaries
//
// Writers implement the Writer interface so the graph command can pick one
// by flag. Graph data and its Summary live in the model package.
package report
