package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cjdelisle/cjdnswalk/internal/config"
	"github.com/cjdelisle/cjdnswalk/internal/database"
	"github.com/cjdelisle/cjdnswalk/internal/graph"
	"github.com/cjdelisle/cjdnswalk/internal/model"
	"github.com/cjdelisle/cjdnswalk/internal/report"
)

// stdinSource is the import source recorded for a log read from stdin.
const stdinSource = "stdin"

// NewGraphCmd creates the graph command.
func NewGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph [event-log|-]",
		Short: "Turn a walk event log into a node and edge list",
		Long: `Graph reads an event log written by 'cjdnswalk walk' and keeps its node
and link records. Nodes are identified by version and address, links by
their two endpoint addresses regardless of direction; duplicates are
dropped. Compressed (.zst) logs are read transparently.

Every log read is stored as a new import in the graph database so later
walks can be compared with 'cjdnswalk compare'.

Examples:
  # Summarize a walk
  cjdnswalk graph walk.log.zst

  # Print the {"nodes": [...], "edges": [...]} payload
  cjdnswalk walk | cjdnswalk graph --json -

  # Show a stored import as Markdown
  cjdnswalk graph --import 3 --markdown

  # List stored imports, or the ones a node appears in
  cjdnswalk graph --list
  cjdnswalk graph --node fc12:3456::1`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGraphCmd,
	}

	// Source flags
	cmd.Flags().Int64P("import", "i", 0,
		"Show a stored import instead of reading a log")
	cmd.Flags().BoolP("list", "l", false,
		"List stored imports")
	cmd.Flags().String("node", "",
		"List stored imports that contain the node with this address")
	cmd.Flags().String("db", "",
		"Graph database directory (default: $XDG_DATA_HOME/cjdnswalk)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (the graph payload, or the import list)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown")
	cmd.Flags().Int("hubs", model.DefaultHubs,
		"Number of best connected nodes in the summary")
	cmd.Flags().StringP("output", "o", "",
		"Write output to the specified file (creates directories if needed)")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	cmd.MarkFlagsMutuallyExclusive("list", "node", "import")

	return cmd
}

// graphOptions holds the parsed graph command flags.
type graphOptions struct {
	importID int64
	list     bool
	node     string
	dbDir    string
	json     bool
	markdown bool
	hubs     int
	output   string
}

func parseGraphOptions(cmd *cobra.Command) (graphOptions, error) {
	var (
		opts graphOptions
		err  error
	)
	flags := cmd.Flags()

	if opts.importID, err = flags.GetInt64("import"); err != nil {
		return opts, err
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return opts, err
	}
	if opts.node, err = flags.GetString("node"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.hubs, err = flags.GetInt("hubs"); err != nil {
		return opts, err
	}
	if opts.output, err = flags.GetString("output"); err != nil {
		return opts, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	return opts, nil
}

// runGraphCmd executes the graph command.
func runGraphCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseGraphOptions(cmd)
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	readsLog := !opts.list && opts.node == "" && opts.importID == 0
	if readsLog && len(args) == 0 {
		return errors.New("an event log is required (use - for stdin, or --list to see stored imports)")
	}
	if !readsLog && len(args) > 0 {
		return errors.New("an event log cannot be combined with --list, --node or --import")
	}

	logger := setupLogger(cmd)

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	return withOutput(opts.output, cmd.OutOrStdout(), func(out io.Writer) error {
		w := newReportWriter(opts.json, opts.markdown, out)

		switch {
		case opts.list:
			imports, err := db.ListImports(ctx)
			if err != nil {
				return err
			}
			_, err = w.WriteImports(imports)
			return err

		case opts.node != "":
			imports, err := db.NodeSightings(ctx, opts.node)
			if err != nil {
				return err
			}
			_, err = w.WriteImports(imports)
			return err
		}

		var (
			imp model.Import
			g   *model.Graph
		)
		if opts.importID != 0 {
			imp, g, err = loadImport(ctx, db, opts.importID)
		} else {
			imp, g, err = importLog(ctx, db, args[0], cmd.InOrStdin(), logger)
		}
		if err != nil {
			return err
		}

		if jw, ok := w.(*report.JSONWriter); ok {
			_, err = jw.WriteGraph(g)
			return err
		}
		s := model.Summarize(imp, g, opts.hubs)
		_, err = w.WriteSummary(&s)
		return err
	})
}

// importLog collects the event log at src ("-" for stdin) and stores it.
func importLog(ctx context.Context, db *database.GraphDB, src string, stdin io.Reader, logger *slog.Logger) (model.Import, *model.Graph, error) {
	source := src
	var in io.Reader = stdin
	if src == "-" {
		source = stdinSource
	} else {
		f, err := os.Open(src) //nolint:gosec // path is chosen by the operator
		if err != nil {
			return model.Import{}, nil, fmt.Errorf("failed to open event log: %w", err)
		}
		defer f.Close()
		in = f
		if abs, err := filepath.Abs(src); err == nil {
			source = abs
		}
	}

	r, err := graph.NewLogReader(in)
	if err != nil {
		return model.Import{}, nil, err
	}
	defer r.Close()

	exp, err := graph.Collect(r)
	if err != nil {
		return model.Import{}, nil, fmt.Errorf("failed to read event log %s: %w", source, err)
	}
	if exp.Skipped > 0 {
		logger.Warn("skipped unreadable records", "source", source, "count", exp.Skipped)
	}

	id, err := db.SaveImport(ctx, source, exp.Session, &exp.Graph)
	if err != nil {
		return model.Import{}, nil, fmt.Errorf("failed to save import: %w", err)
	}
	logger.Info("stored import", "id", id, "nodes", len(exp.Graph.Nodes), "edges", len(exp.Graph.Edges))

	imp, err := db.GetImport(ctx, id)
	if err != nil {
		return model.Import{}, nil, err
	}
	return imp, &exp.Graph, nil
}

// loadImport reads a stored import and its graph.
func loadImport(ctx context.Context, db *database.GraphDB, id int64) (model.Import, *model.Graph, error) {
	imp, err := db.GetImport(ctx, id)
	if err != nil {
		return model.Import{}, nil, err
	}
	g, err := db.LoadGraph(ctx, id)
	if err != nil {
		return model.Import{}, nil, err
	}
	return imp, g, nil
}

// newReportWriter selects the writer for the output format flags.
func newReportWriter(jsonOutput, markdownOutput bool, out io.Writer) report.Writer {
	switch {
	case jsonOutput:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOutput:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewTextWriter(out)
	}
}

// withOutput runs fn against the file at path, or against stdout when path
// is empty. Files are created with owner-only permissions.
func withOutput(path string, stdout io.Writer, fn func(io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
