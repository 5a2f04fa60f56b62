package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/model"
)

func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()

	if cmd.Use != "compare [previous-id [current-id]]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}
	for flag, shorthand := range map[string]string{"json": "j", "markdown": "m", "output": "o"} {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}
	if cmd.Flags().Lookup("db") == nil {
		t.Error("expected db flag")
	}
}

// storeWalks imports one event log per peer set and returns the database
// directory.
func storeWalks(t *testing.T, self label.NodeName, walks ...[]label.NodeName) string {
	t.Helper()

	dir := t.TempDir()
	for i, peers := range walks {
		path := filepath.Join(dir, "walk"+string(rune('a'+i))+".log")
		writeTestLog(t, path, self, peers...)
		if _, err := execute(t, NewGraphCmd(), "", "--db", dir, path); err != nil {
			t.Fatalf("failed to import %s: %v", path, err)
		}
	}
	return dir
}

func TestRunCompareCmd(t *testing.T) {
	t.Parallel()

	self := testNode(1, 20, label.Self)
	a := testNode(2, 18, 0x13)
	b := testNode(3, 20, 0x15)
	aUpgraded := testNode(2, 20, 0x13)

	t.Run("latest two imports", func(t *testing.T) {
		t.Parallel()

		dir := storeWalks(t, self,
			[]label.NodeName{a},
			[]label.NodeName{aUpgraded, b},
		)

		out, err := execute(t, NewCompareCmd(), "", "--db", dir, "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var d model.GraphDiff
		if err := json.Unmarshal([]byte(out), &d); err != nil {
			t.Fatalf("failed to parse output %q: %v", out, err)
		}
		if d.Previous.ID != 1 || d.Current.ID != 2 {
			t.Errorf("expected imports 1 and 2, got %d and %d", d.Previous.ID, d.Current.ID)
		}
		if len(d.NodesJoined) != 1 || d.NodesJoined[0] != ipOf(t, b) {
			t.Errorf("expected %s to join, got %v", ipOf(t, b), d.NodesJoined)
		}
		if len(d.NodesLeft) != 0 {
			t.Errorf("expected no node to leave, got %v", d.NodesLeft)
		}
		want := model.VersionChange{IP: ipOf(t, a), From: 18, To: 20}
		if len(d.Upgraded) != 1 || d.Upgraded[0] != want {
			t.Errorf("expected upgrade %+v, got %+v", want, d.Upgraded)
		}
		if len(d.EdgesAdded) != 1 || len(d.EdgesRemoved) != 0 {
			t.Errorf("expected one added link, got +%v -%v", d.EdgesAdded, d.EdgesRemoved)
		}
	})

	t.Run("explicit ids in reverse", func(t *testing.T) {
		t.Parallel()

		dir := storeWalks(t, self,
			[]label.NodeName{a},
			[]label.NodeName{a, b},
		)

		out, err := execute(t, NewCompareCmd(), "", "--db", dir, "2", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "CJDNS NETWORK CHANGES") || !strings.Contains(out, "[-] "+ipOf(t, b)) {
			t.Errorf("expected %s to have left\n%s", ipOf(t, b), out)
		}
	})

	t.Run("one id compares with the latest", func(t *testing.T) {
		t.Parallel()

		dir := storeWalks(t, self,
			[]label.NodeName{a},
			[]label.NodeName{a},
			[]label.NodeName{a, b},
		)

		out, err := execute(t, NewCompareCmd(), "", "--db", dir, "--markdown", "2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "#2") || !strings.Contains(out, "#3") || !strings.Contains(out, "## Nodes Joined") {
			t.Errorf("unexpected markdown output\n%s", out)
		}
	})

	t.Run("unchanged", func(t *testing.T) {
		t.Parallel()

		dir := storeWalks(t, self, []label.NodeName{a}, []label.NodeName{a})

		out, err := execute(t, NewCompareCmd(), "", "--db", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No changes.") {
			t.Errorf("expected no changes\n%s", out)
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		dir := storeWalks(t, self, []label.NodeName{a})

		tests := []struct {
			name string
			args []string
			want string
		}{
			{name: "single import", args: nil, want: "at least 2 imports"},
			{name: "latest against itself", args: []string{"1"}, want: "is the latest import"},
			{name: "same id twice", args: []string{"1", "1"}, want: "with itself"},
			{name: "unknown id", args: []string{"1", "9"}, want: "not found"},
			{name: "invalid id", args: []string{"x"}, want: "invalid import id"},
			{name: "zero id", args: []string{"0"}, want: "invalid import id"},
			{name: "too many ids", args: []string{"1", "2", "3"}, want: "accepts at most 2 arg"},
		}
		// Subtests share one database file, so they run one at a time.
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				args := append([]string{"--db", dir}, tt.args...)
				_, err := execute(t, NewCompareCmd(), "", args...)
				if err == nil || !strings.Contains(err.Error(), tt.want) {
					t.Errorf("expected error containing %q, got %v", tt.want, err)
				}
			})
		}
	})
}
