package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cjdelisle/cjdnswalk/internal/config"
	"github.com/cjdelisle/cjdnswalk/internal/database"
	"github.com/cjdelisle/cjdnswalk/internal/model"
)

// NewCompareCmd creates the compare command.
// This command compares two graphs stored by the graph command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [previous-id [current-id]]",
		Short: "Compare two stored walks",
		Long: `Compare shows how the network changed between two imports stored by
'cjdnswalk graph':
- Nodes that joined or left (by address)
- Nodes that started advertising a newer protocol version
- Links that appeared or disappeared

Without arguments the latest two imports are compared. With one argument
that import is compared against the latest one.

Examples:
  # Compare the latest two walks
  cjdnswalk compare

  # Compare import 3 with the latest
  cjdnswalk compare 3

  # Compare two given imports as JSON
  cjdnswalk compare --json 3 7`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCompareCmd,
	}

	cmd.Flags().String("db", "",
		"Graph database directory (default: $XDG_DATA_HOME/cjdnswalk)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().StringP("output", "o", "",
		"Write output to the specified file (creates directories if needed)")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Validate arguments before opening the database
	ids := make([]int64, len(args))
	for i, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid import id %q", arg)
		}
		ids[i] = id
	}

	dbDir, err := cmd.Flags().GetString("db")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	prevID, curID, err := resolveComparison(ctx, db, ids)
	if err != nil {
		return err
	}

	diff, err := compareImports(ctx, db, prevID, curID)
	if err != nil {
		return err
	}

	return withOutput(output, cmd.OutOrStdout(), func(out io.Writer) error {
		_, err := newReportWriter(jsonOutput, markdownOutput, out).WriteDiff(diff)
		return err
	})
}

// resolveComparison picks the previous and current import ids.
func resolveComparison(ctx context.Context, db *database.GraphDB, ids []int64) (int64, int64, error) {
	switch len(ids) {
	case 2:
		return ids[0], ids[1], nil
	case 1:
		latest, err := db.LatestImportID(ctx)
		if err != nil {
			return 0, 0, err
		}
		if latest == ids[0] {
			return 0, 0, fmt.Errorf("import %d is the latest import; name a second one to compare with", latest)
		}
		return ids[0], latest, nil
	}

	imports, err := db.ListImports(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(imports) < 2 {
		return 0, 0, fmt.Errorf("at least 2 imports are required for comparison (found %d)", len(imports))
	}
	return imports[1].ID, imports[0].ID, nil
}

// compareImports loads both imports and diffs them.
func compareImports(ctx context.Context, db *database.GraphDB, prevID, curID int64) (*model.GraphDiff, error) {
	if prevID == curID {
		return nil, errors.New("cannot compare an import with itself")
	}

	prevImport, prev, err := loadImport(ctx, db, prevID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import %d: %w", prevID, err)
	}
	curImport, cur, err := loadImport(ctx, db, curID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import %d: %w", curID, err)
	}

	d := model.Diff(prevImport, prev, curImport, cur)
	return &d, nil
}
