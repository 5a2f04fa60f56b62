package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cjdelisle/cjdnswalk/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "graph.db"

// ErrImportNotFound is returned when no import matches the request.
var ErrImportNotFound = errors.New("import not found")

// GraphDB stores exported graphs, one import per event log.
type GraphDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures GraphDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a GraphDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*GraphDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	gdb := &GraphDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := gdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return gdb, nil
}

// Path returns the database file path.
func (gdb *GraphDB) Path() string {
	return gdb.dbPath
}

// Close closes the database connection.
func (gdb *GraphDB) Close() error {
	return gdb.db.Close()
}

func (gdb *GraphDB) createTables() error {
	schema := `
	-- One row per imported event log
	CREATE TABLE IF NOT EXISTS imports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		session TEXT,
		imported_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nodes (
		import_id INTEGER NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
		ip TEXT NOT NULL,
		version INTEGER NOT NULL,
		PRIMARY KEY (import_id, ip, version)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_ip ON nodes(ip);

	-- Edges are undirected; a is the endpoint of the smaller key
	CREATE TABLE IF NOT EXISTS edges (
		import_id INTEGER NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
		a TEXT NOT NULL,
		b TEXT NOT NULL,
		PRIMARY KEY (import_id, a, b)
	);
	`

	_, err := gdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveImport stores g as a new import and returns its id.
// Duplicate nodes or edges within g are stored once.
func (gdb *GraphDB) SaveImport(ctx context.Context, source, session string, g *model.Graph) (int64, error) {
	tx, err := gdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
	INSERT INTO imports (source, session, node_count, edge_count)
	VALUES (?, ?, ?, ?)
	`, source, sql.NullString{String: session, Valid: session != ""}, len(g.Nodes), len(g.Edges))
	if err != nil {
		return 0, fmt.Errorf("failed to insert import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get import id: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO nodes (import_id, ip, version) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()
	for _, n := range g.Nodes {
		if _, err := nodeStmt.ExecContext(ctx, id, n.IP, n.Version); err != nil {
			return 0, fmt.Errorf("failed to insert node %s: %w", n.IP, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO edges (import_id, a, b) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, id, e.A, e.B); err != nil {
			return 0, fmt.Errorf("failed to insert edge %s-%s: %w", e.A, e.B, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return id, nil
}

// ListImports returns all imports, newest first.
func (gdb *GraphDB) ListImports(ctx context.Context) ([]model.Import, error) {
	rows, err := gdb.db.QueryContext(ctx, `
	SELECT id, source, session, imported_at, node_count, edge_count
	FROM imports
	ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	var out []model.Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

// GetImport returns the metadata of one import.
func (gdb *GraphDB) GetImport(ctx context.Context, id int64) (model.Import, error) {
	row := gdb.db.QueryRowContext(ctx, `
	SELECT id, source, session, imported_at, node_count, edge_count
	FROM imports
	WHERE id = ?
	`, id)
	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Import{}, fmt.Errorf("%w: %d", ErrImportNotFound, id)
	}
	return imp, err
}

// LatestImportID returns the id of the most recent import.
func (gdb *GraphDB) LatestImportID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := gdb.db.QueryRowContext(ctx, `SELECT MAX(id) FROM imports`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to find latest import: %w", err)
	}
	if !id.Valid {
		return 0, ErrImportNotFound
	}
	return id.Int64, nil
}

// LoadGraph returns the graph of one import, sorted.
func (gdb *GraphDB) LoadGraph(ctx context.Context, id int64) (*model.Graph, error) {
	if _, err := gdb.GetImport(ctx, id); err != nil {
		return nil, err
	}

	g := &model.Graph{Nodes: []model.GraphNode{}, Edges: []model.GraphEdge{}}

	rows, err := gdb.db.QueryContext(ctx, `
	SELECT ip, version FROM nodes WHERE import_id = ? ORDER BY ip, version
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n model.GraphNode
		if err := rows.Scan(&n.IP, &n.Version); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		g.Nodes = append(g.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	erows, err := gdb.db.QueryContext(ctx, `
	SELECT a, b FROM edges WHERE import_id = ? ORDER BY a, b
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer erows.Close()
	for erows.Next() {
		var e model.GraphEdge
		if err := erows.Scan(&e.A, &e.B); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		g.Edges = append(g.Edges, e)
	}
	return g, erows.Err()
}

// NodeSightings returns the imports in which ip appears, newest first.
func (gdb *GraphDB) NodeSightings(ctx context.Context, ip string) ([]model.Import, error) {
	rows, err := gdb.db.QueryContext(ctx, `
	SELECT DISTINCT i.id, i.source, i.session, i.imported_at, i.node_count, i.edge_count
	FROM imports i JOIN nodes n ON n.import_id = i.id
	WHERE n.ip = ?
	ORDER BY i.id DESC
	`, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var out []model.Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImport(s scanner) (model.Import, error) {
	var (
		imp       model.Import
		session   sql.NullString
		timestamp string
	)
	if err := s.Scan(&imp.ID, &imp.Source, &session, &timestamp, &imp.Nodes, &imp.Edges); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Import{}, err
		}
		return model.Import{}, fmt.Errorf("failed to scan import: %w", err)
	}
	imp.Session = session.String
	imp.ImportedAt = parseTimestamp(timestamp)
	return imp, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
