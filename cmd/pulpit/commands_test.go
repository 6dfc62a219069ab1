package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pulpit/internal/api"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(t.TempDir(), "nested", "pulpit.toml")

	out, _, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)

	if _, _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
	if _, _, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Configuration valid")
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestConfig(t, env.configPath, env.cfg, `api_token = "s3cret-token"`)

	out, _, err := env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# source: "+env.configPath)
	if strings.Contains(out, "s3cret-token") {
		t.Fatalf("expected token to be redacted:\n%s", out)
	}
	requireContains(t, out, redacted)

	out, _, err = env.run(t, "config", "show", "--reveal")
	if err != nil {
		t.Fatalf("config show --reveal: %v", err)
	}
	requireContains(t, out, "s3cret-token")
}

func TestEnqueueRequestFor(t *testing.T) {
	cases := []struct {
		arg     string
		want    api.EnqueueRequest
		wantErr bool
	}{
		{arg: "abcdefghijk", want: api.EnqueueRequest{ExternalID: "abcdefghijk"}},
		{arg: " https://youtu.be/abcdefghijk ", want: api.EnqueueRequest{ExternalID: "abcdefghijk", SourceURL: "https://youtu.be/abcdefghijk"}},
		{arg: "https://www.youtube.com/live/abcdefghijk", want: api.EnqueueRequest{ExternalID: "abcdefghijk", SourceURL: "https://www.youtube.com/live/abcdefghijk"}},
		{arg: "https://example.com/", wantErr: true},
		{arg: "   ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := enqueueRequestFor(tc.arg)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("enqueueRequestFor(%q) expected error, got %+v", tc.arg, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("enqueueRequestFor(%q) returned error: %v", tc.arg, err)
		}
		if got != tc.want {
			t.Fatalf("enqueueRequestFor(%q) = %+v, want %+v", tc.arg, got, tc.want)
		}
	}
}

func TestRenderTSVEscapesCells(t *testing.T) {
	got := renderTSV([]string{"A", "B"}, [][]string{{"one\ttwo", "line\nbreak"}, {"short"}})
	want := "A\tB\none two\tline break\nshort\t\n"
	if got != want {
		t.Fatalf("renderTSV = %q, want %q", got, want)
	}
}

func TestBuildQueueStatusRowsOrdersByStatus(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"failed": 2, "pending": 3, "completed": 0, "too_long": 1})
	want := [][]string{{"Pending", "3"}, {"Failed", "2"}, {"Too long", "1"}}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), rows)
	}
	for i := range want {
		if rows[i][0] != want[i][0] || rows[i][1] != want[i][1] {
			t.Fatalf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatDuration(0); got != "-" {
		t.Fatalf("formatDuration(0) = %q", got)
	}
	if got := formatDuration(3725); got != "1:02:05" {
		t.Fatalf("formatDuration(3725) = %q", got)
	}
	if got := formatTimestamps([]float64{0, 75.9}); got != "0:00, 1:15" {
		t.Fatalf("formatTimestamps = %q", got)
	}
	if got := preview("uma  frase\nlonga demais", 9); got != "uma frase…" {
		t.Fatalf("preview = %q", got)
	}
	if got := displayTitle(api.Video{}); got != "(untitled)" {
		t.Fatalf("displayTitle = %q", got)
	}
}

func TestLogsCommandPrintsTail(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries")

	path := filepath.Join(env.cfg.Paths.LogDir, "pulpit.log")
	if err := os.WriteFile(path, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err = env.run(t, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs -n 2: %v", err)
	}
	if out != "second\nthird\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDaemonStopWhenNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "daemon", "stop")
	if err != nil {
		t.Fatalf("daemon stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}
