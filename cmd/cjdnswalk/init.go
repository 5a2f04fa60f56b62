package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cjdelisle/cjdnswalk/internal/config"
)

//go:embed templates/cjdnswalk.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented cjdnswalk configuration file",
		Long: `Initialize writes a commented .cjdnswalk.yaml in the current directory.

The generated file lists every walk setting with its default value and
shows how to point cjdnswalk at a router other than the one described
by ~/.cjdnsadmin.

Examples:
  # Create .cjdnswalk.yaml in current directory
  cjdnswalk init

  # Create the per-user config file
  cjdnswalk init -o ~/.config/cjdnswalk/config.yaml

  # Force overwrite existing file
  cjdnswalk init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/cjdnswalk.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to change walk settings such as:")
	fmt.Fprintln(out, "  - The bootstrap peer")
	fmt.Fprintln(out, "  - Retry interval and retry count")
	fmt.Fprintln(out, "  - The event log path")

	return nil
}
