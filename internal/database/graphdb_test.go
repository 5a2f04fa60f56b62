package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/cjdelisle/cjdnswalk/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*GraphDB, func()) {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db, cleanup
}

func testGraph() *model.Graph {
	return &model.Graph{
		Nodes: []model.GraphNode{
			{Version: 20, IP: "fc00::2"},
			{Version: 18, IP: "fc00::1"},
			{Version: 20, IP: "fc00::1"},
		},
		Edges: []model.GraphEdge{
			{A: "fc00::1", B: "fc00::3"},
			{A: "fc00::1", B: "fc00::2"},
		},
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")

		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected error to mention missing database, got %q", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created when CreateIfNotExists=false")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		ctx := context.Background()

		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		id, err := db1.SaveImport(ctx, "walk.log", "", testGraph())
		if err != nil {
			t.Fatalf("failed to save import: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database with CreateIfNotExists=false: %v", err)
		}
		defer db2.Close()

		if _, err := db2.GetImport(ctx, id); err != nil {
			t.Errorf("expected import %d to persist: %v", id, err)
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()

	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

func TestSaveAndLoadGraph(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	g := testGraph()
	g.Nodes = append(g.Nodes, g.Nodes[0])
	id, err := db.SaveImport(ctx, "walk.log", "crawl-1", g)
	if err != nil {
		t.Fatalf("SaveImport: %v", err)
	}

	imp, err := db.GetImport(ctx, id)
	if err != nil {
		t.Fatalf("GetImport: %v", err)
	}
	if imp.Source != "walk.log" || imp.Session != "crawl-1" {
		t.Errorf("unexpected import metadata %+v", imp)
	}
	if imp.Nodes != 4 || imp.Edges != 2 {
		t.Errorf("expected recorded counts 4/2, got %d/%d", imp.Nodes, imp.Edges)
	}
	if imp.ImportedAt.IsZero() {
		t.Error("expected import timestamp to be set")
	}
	if time.Since(imp.ImportedAt) > time.Hour {
		t.Errorf("import timestamp too old: %v", imp.ImportedAt)
	}

	loaded, err := db.LoadGraph(ctx, id)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	wantNodes := []model.GraphNode{{18, "fc00::1"}, {20, "fc00::1"}, {20, "fc00::2"}}
	wantEdges := []model.GraphEdge{{"fc00::1", "fc00::2"}, {"fc00::1", "fc00::3"}}
	if !slices.Equal(loaded.Nodes, wantNodes) {
		t.Errorf("nodes: got %v, want %v", loaded.Nodes, wantNodes)
	}
	if !slices.Equal(loaded.Edges, wantEdges) {
		t.Errorf("edges: got %v, want %v", loaded.Edges, wantEdges)
	}
}

func TestSaveEmptyGraph(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	id, err := db.SaveImport(ctx, "-", "", &model.Graph{})
	if err != nil {
		t.Fatalf("SaveImport: %v", err)
	}
	g, err := db.LoadGraph(ctx, id)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if g.Nodes == nil || g.Edges == nil || len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("expected empty non-nil graph, got %+v", g)
	}
}

func TestImportNotFound(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"GetImport", func() error { _, err := db.GetImport(ctx, 42); return err }},
		{"LoadGraph", func() error { _, err := db.LoadGraph(ctx, 42); return err }},
		{"LatestImportID", func() error { _, err := db.LatestImportID(ctx); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrImportNotFound) {
				t.Errorf("expected ErrImportNotFound, got %v", err)
			}
		})
	}
}

func TestListImports(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("returns empty list for empty database", func(t *testing.T) {
		imports, err := db.ListImports(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(imports) != 0 {
			t.Errorf("expected no imports, got %d", len(imports))
		}
	})

	t.Run("returns newest first", func(t *testing.T) {
		var ids []int64
		for _, src := range []string{"a.log", "b.log", "c.log"} {
			id, err := db.SaveImport(ctx, src, "", testGraph())
			if err != nil {
				t.Fatalf("failed to save %s: %v", src, err)
			}
			ids = append(ids, id)
		}

		imports, err := db.ListImports(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(imports) != 3 {
			t.Fatalf("expected 3 imports, got %d", len(imports))
		}
		if imports[0].Source != "c.log" || imports[2].Source != "a.log" {
			t.Errorf("unexpected order: %v", imports)
		}

		latest, err := db.LatestImportID(ctx)
		if err != nil {
			t.Fatalf("LatestImportID: %v", err)
		}
		if latest != ids[2] {
			t.Errorf("expected latest %d, got %d", ids[2], latest)
		}
	})
}

func TestNodeSightings(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	first, err := db.SaveImport(ctx, "a.log", "", testGraph())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveImport(ctx, "b.log", "", &model.Graph{
		Nodes: []model.GraphNode{{Version: 20, IP: "fc00::9"}},
	}); err != nil {
		t.Fatal(err)
	}

	// fc00::1 appears twice in the first import under different versions.
	seen, err := db.NodeSightings(ctx, "fc00::1")
	if err != nil {
		t.Fatalf("NodeSightings: %v", err)
	}
	if len(seen) != 1 || seen[0].ID != first {
		t.Errorf("expected a single sighting in import %d, got %v", first, seen)
	}

	none, err := db.NodeSightings(ctx, "fc00::dead")
	if err != nil {
		t.Fatalf("NodeSightings: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no sightings, got %v", none)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		zero bool
	}{
		{"2024-05-01 10:20:30", false},
		{"2024-05-01T10:20:30Z", false},
		{"2024-05-01T10:20:30.123456789Z", false},
		{"yesterday", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.in); got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v", tt.in, got)
			}
		})
	}
}
