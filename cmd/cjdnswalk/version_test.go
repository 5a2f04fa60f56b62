package main

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs(nil)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{
		"cjdnswalk version " + getVersion(),
		"commit: " + getCommit(),
		"built:  " + getDate(),
		runtime.Version(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}

func TestVersionFallbacks(t *testing.T) {
	t.Parallel()

	if getVersion() == "" {
		t.Error("version must never be empty")
	}
	if c := getCommit(); c == "" || len(c) > 7 && c != commit {
		t.Errorf("unexpected commit %q", c)
	}
	if getDate() == "" {
		t.Error("date must never be empty")
	}
	if buildSetting("no.such.setting") != "" {
		t.Error("expected unknown build setting to be empty")
	}
}
