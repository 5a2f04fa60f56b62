package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/cjdelisle/cjdnswalk/internal/graph"
	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/model"
)

func testNode(seed byte, version int, path label.Label) label.NodeName {
	var raw [label.KeySize]byte
	for i := range raw {
		raw[i] = seed * byte(i+1)
	}
	return label.NodeName{Version: version, Path: path, Key: label.KeyString(raw)}
}

func ipOf(t *testing.T, n label.NodeName) string {
	t.Helper()
	gn, err := model.NewGraphNode(n)
	if err != nil {
		t.Fatal(err)
	}
	return gn.IP
}

// writeTestLog writes an event log in which self links to every peer.
func writeTestLog(t *testing.T, path string, self label.NodeName, peers ...label.NodeName) {
	t.Helper()

	w, err := graph.CreateLog(path)
	if err != nil {
		t.Fatal(err)
	}
	e := graph.NewEmitter(w)
	if _, err := e.Node(self); err != nil {
		t.Fatal(err)
	}
	for _, p := range peers {
		if _, err := e.Node(p); err != nil {
			t.Fatal(err)
		}
		if _, err := e.Link(self.Key, p.Key, p.Path, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Info(0, 0, "session-1"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestNewGraphCmd(t *testing.T) {
	t.Parallel()

	cmd := NewGraphCmd()

	if cmd.Use != "graph [event-log|-]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}

	flagsWithShort := map[string]string{
		"import":   "i",
		"list":     "l",
		"json":     "j",
		"markdown": "m",
		"output":   "o",
	}
	for flag, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}
	for _, flag := range []string{"node", "db", "hubs"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}
}

func TestRunGraphCmd(t *testing.T) {
	t.Parallel()

	self := testNode(1, 20, label.Self)
	a := testNode(2, 20, 0x13)
	b := testNode(3, 18, 0x15)

	t.Run("json payload from a compressed log", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		logPath := filepath.Join(dir, "walk.log.zst")
		writeTestLog(t, logPath, self, a, b)

		out, err := execute(t, NewGraphCmd(), "", "--db", dir, "--json", logPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var g model.Graph
		if err := json.Unmarshal([]byte(out), &g); err != nil {
			t.Fatalf("failed to parse output %q: %v", out, err)
		}
		if len(g.Nodes) != 3 || len(g.Edges) != 2 {
			t.Fatalf("expected 3 nodes and 2 edges, got %+v", g)
		}
		if g.Nodes[0] != (model.GraphNode{Version: 20, IP: ipOf(t, self)}) {
			t.Errorf("unexpected first node %+v", g.Nodes[0])
		}
	})

	t.Run("summary from stdin is stored", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		logPath := filepath.Join(dir, "walk.log")
		writeTestLog(t, logPath, self, a)
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatal(err)
		}

		out, err := execute(t, NewGraphCmd(), string(data), "--db", dir, "-")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"CJDNS NETWORK GRAPH", "#1 (stdin)", "session-1", ipOf(t, a)} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output\n%s", want, out)
			}
		}

		out, err = execute(t, NewGraphCmd(), "", "--db", dir, "--list", "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var imports []model.Import
		if err := json.Unmarshal([]byte(out), &imports); err != nil {
			t.Fatalf("failed to parse import list %q: %v", out, err)
		}
		if len(imports) != 1 || imports[0].Source != "stdin" || imports[0].Nodes != 2 || imports[0].Edges != 1 {
			t.Errorf("unexpected imports %+v", imports)
		}
	})

	t.Run("stored import and node sightings", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		first := filepath.Join(dir, "first.log")
		second := filepath.Join(dir, "second.log")
		writeTestLog(t, first, self, a)
		writeTestLog(t, second, self, b)

		for _, path := range []string{first, second} {
			if _, err := execute(t, NewGraphCmd(), "", "--db", dir, path); err != nil {
				t.Fatalf("import %s: %v", path, err)
			}
		}

		out, err := execute(t, NewGraphCmd(), "", "--db", dir, "--import", "1", "--markdown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# cjdns Network Graph") || !strings.Contains(out, ipOf(t, a)) {
			t.Errorf("unexpected markdown output\n%s", out)
		}

		out, err = execute(t, NewGraphCmd(), "", "--db", dir, "--node", ipOf(t, a))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "first.log") || strings.Contains(out, "second.log") {
			t.Errorf("expected only the first import, got\n%s", out)
		}
	})

	t.Run("writes to output file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		logPath := filepath.Join(dir, "walk.log")
		writeTestLog(t, logPath, self, a)
		outPath := filepath.Join(dir, "reports", "graph.json")

		out, err := execute(t, NewGraphCmd(), "", "--db", dir, "-j", "-o", outPath, logPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "" {
			t.Errorf("expected nothing on stdout, got %q", out)
		}
		content, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(content), "{") {
			t.Errorf("unexpected file content %q", content)
		}
	})

	t.Run("argument errors", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			args []string
			want string
		}{
			{name: "no log", args: nil, want: "an event log is required"},
			{name: "log with list", args: []string{"--list", "walk.log"}, want: "cannot be combined"},
			{name: "list with node", args: []string{"--list", "--node", "fc00::1"}, want: "none of the others"},
			{name: "missing import", args: []string{"--import", "42"}, want: "not found"},
			{name: "missing log", args: []string{"does-not-exist.log"}, want: "failed to open event log"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				args := append([]string{"--db", t.TempDir()}, tt.args...)
				_, err := execute(t, NewGraphCmd(), "", args...)
				if err == nil || !strings.Contains(err.Error(), tt.want) {
					t.Errorf("expected error containing %q, got %v", tt.want, err)
				}
			})
		}
	})
}
