package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "cjdnswalk" {
			t.Errorf("expected use 'cjdnswalk', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has global flags", func(t *testing.T) {
		t.Parallel()
		verbose := cmd.PersistentFlags().Lookup("verbose")
		if verbose == nil || verbose.Shorthand != "v" || verbose.DefValue != "false" {
			t.Errorf("unexpected verbose flag %+v", verbose)
		}
		if cmd.PersistentFlags().Lookup("log-json") == nil {
			t.Error("expected log-json flag")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		uses := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			uses[sub.Use] = true
		}
		for _, use := range []string{
			"walk [bootstrap-node]",
			"graph [event-log|-]",
			"compare [previous-id [current-id]]",
			"init",
			"version",
		} {
			if !uses[use] {
				t.Errorf("expected subcommand %q", use)
			}
		}
	})
}

func TestGetBoolFlag(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	var sub *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "graph" {
			sub = c
		}
	}
	if sub == nil {
		t.Fatal("graph subcommand not found")
	}

	if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
		t.Fatal(err)
	}
	if !getBoolFlag(sub, "verbose") {
		t.Error("expected persistent flag to be visible from a subcommand")
	}
	if getBoolFlag(sub, "no-such-flag") {
		t.Error("expected unknown flag to read as false")
	}
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   []string
		want   string
		hidden string
	}{
		{name: "text", args: nil, want: "level=WARN", hidden: "secret"},
		{name: "json", args: []string{"--log-json"}, want: `"level":"WARN"`, hidden: "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			var stderr bytes.Buffer
			cmd.SetErr(&stderr)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}

			setupLogger(cmd).Warn("admin call failed", "password", "secret")

			out := stderr.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q in %q", tt.want, out)
			}
			if strings.Contains(out, tt.hidden) {
				t.Errorf("expected password to be masked, got %q", out)
			}
		})
	}
}
