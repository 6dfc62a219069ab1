package preflight

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pulpit/internal/config"
	"pulpit/internal/deps"
	"pulpit/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got: %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, math.MaxUint64)
	if result.Passed {
		t.Fatal("expected failure with impossible minimum")
	}
	if !strings.Contains(result.Detail, "need") {
		t.Fatalf("expected detail to name the requirement, got %q", result.Detail)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func llmStub(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": `{"ok":true}`}},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckLLM(t *testing.T) {
	srv := llmStub(t, http.StatusOK)

	tests := []struct {
		name    string
		backend config.LLMBackend
		pass    bool
	}{
		{name: "reachable", backend: config.LLMBackend{APIKey: "good-key", BaseURL: srv.URL, Model: "demo"}, pass: true},
		{name: "bad key", backend: config.LLMBackend{APIKey: "bad-key", BaseURL: srv.URL, Model: "demo"}},
		{name: "missing key", backend: config.LLMBackend{BaseURL: srv.URL, Model: "demo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckLLM(context.Background(), "LLM", tt.backend)
			if result.Passed != tt.pass {
				t.Fatalf("Passed = %v, want %v (detail %q)", result.Passed, tt.pass, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("expected non-empty detail")
			}
		})
	}
}

func TestCheckDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, st, "abcdefghijk", "Grace Abounds")

	result := CheckDatabase(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "1 videos") {
		t.Fatalf("expected video count in detail, got %q", result.Detail)
	}
}

func TestCheckThemeDictionary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckThemeDictionary(cfg); !result.Passed {
		t.Fatalf("expected embedded dictionary to pass, got: %s", result.Detail)
	}
	cfg.Themes.DictionaryPath = filepath.Join(t.TempDir(), "missing.yaml")
	if result := CheckThemeDictionary(cfg); result.Passed {
		t.Fatal("expected failure for missing dictionary file")
	}
}

func TestBinaryResultOptional(t *testing.T) {
	missingOptional := binaryResult(deps.Status{Name: "FFmpeg", Command: "ffmpeg", Optional: true})
	if !missingOptional.Passed {
		t.Fatal("missing optional binary should not fail")
	}
	missingRequired := binaryResult(deps.Status{Name: "yt-dlp", Command: "yt-dlp"})
	if missingRequired.Passed {
		t.Fatal("missing required binary should fail")
	}
	if missingRequired.Detail != "yt-dlp not found" {
		t.Fatalf("unexpected detail %q", missingRequired.Detail)
	}
}

func TestRunAll(t *testing.T) {
	srv := llmStub(t, http.StatusOK)
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithCacheBackend("memory"),
		testsupport.WithLLMBackend(srv.URL, "good-key"),
	)
	cfg.Acquisition.YtDlpBinary = "yt-dlp"
	cfg.Acquisition.FFmpegBinary = "ffmpeg"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	names := make(map[string]Result, len(results))
	for _, r := range results {
		names[r.Name] = r
	}
	for _, want := range []string{"Data directory", "Work directory", "Catalog database", "Theme dictionary", "Primary LLM"} {
		r, ok := names[want]
		if !ok {
			t.Fatalf("missing result %q in %+v", want, results)
		}
		if !r.Passed {
			t.Fatalf("%s failed: %s", want, r.Detail)
		}
	}
	if _, ok := names["Secondary LLM"]; ok {
		t.Fatal("secondary LLM without a key should not be checked")
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestFailed(t *testing.T) {
	if Failed([]Result{{Passed: true}}) {
		t.Fatal("all passing results reported as failed")
	}
	if !Failed([]Result{{Passed: true}, {Passed: false}}) {
		t.Fatal("failing result not detected")
	}
}
