package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pulpit/internal/config"
	"pulpit/internal/daemonrun"
)

func TestRootCommandLoadsConfigAndRuns(t *testing.T) {
	base := t.TempDir()
	configPath := filepath.Join(base, "pulpit.toml")
	content := "[paths]\ndata_dir = \"" + filepath.Join(base, "data") + "\"\nlog_dir = \"" + filepath.Join(base, "logs") + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var got *config.Config
	var gotOpts daemonrun.Options
	runFunc = func(_ context.Context, cfg *config.Config, opts daemonrun.Options) error {
		got = cfg
		gotOpts = opts
		return nil
	}
	t.Cleanup(func() { runFunc = daemonrun.Run })

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", configPath, "--log-level", "debug", "--development"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got == nil {
		t.Fatal("run was not invoked")
	}
	if got.Paths.DataDir != filepath.Join(base, "data") {
		t.Fatalf("unexpected data dir %q", got.Paths.DataDir)
	}
	if gotOpts.LogLevel != "debug" || !gotOpts.Development {
		t.Fatalf("unexpected options %+v", gotOpts)
	}
}

func TestRootCommandRejectsArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"extra"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for positional argument")
	}
}
