package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cjdelisle/cjdnswalk/internal/log"
)

// NewRootCmd creates the root command for cjdnswalk.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cjdnswalk",
		Short: "Crawl the cjdns mesh and map its topology",
		Long: `cjdnswalk discovers the topology of a cjdns network by asking each
reachable node for its peers, starting from the local router.

The walk talks to cjdroute over its admin interface and exchanges DHT
queries through it. Discovered nodes and links are written one JSON array
per line so a partial log is still usable after an interrupted walk.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON")

	// Add subcommands
	cmd.AddCommand(NewWalkCmd())
	cmd.AddCommand(NewGraphCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getBoolFlag retrieves a boolean flag from the command or the root.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the stderr logger selected by the global flags.
// Admin credentials are masked by the secure handler.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getBoolFlag(cmd, "verbose")
	if getBoolFlag(cmd, "log-json") {
		return log.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return log.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}
