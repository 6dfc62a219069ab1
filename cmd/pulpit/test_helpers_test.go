package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pulpit/internal/assistant"
	"pulpit/internal/broadcast"
	"pulpit/internal/config"
	"pulpit/internal/daemon"
	"pulpit/internal/store"
	"pulpit/internal/testsupport"
)

// offlineAPI is an address nothing listens on, so commands fall back to the
// catalog.
const offlineAPI = "127.0.0.1:1"

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	apiAddress string
	store      *store.Store
	daemon     *daemon.Daemon
	server     *httptest.Server
}

type fakeAsker struct {
	questions []string
}

func (f *fakeAsker) Ask(_ context.Context, req assistant.Request) (assistant.Answer, error) {
	f.questions = append(f.questions, req.Question)
	return assistant.Answer{Question: req.Question, Response: "A graça vem pela fé.", Backend: "fake"}, nil
}

// setupCLITestEnv writes a config file pointing at temp directories. The
// catalog is opened for seeding; no daemon runs unless withDaemon is called.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithCacheBackend("memory"))
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))
	t.Setenv("PULPIT_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "pulpit.toml")
	writeTestConfig(t, configPath, cfg, "")

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		apiAddress: offlineAPI,
		store:      testsupport.MustOpenStore(t, cfg),
	}
}

// withDaemon serves the daemon API from an httptest server and points the
// CLI at it.
func (env *cliTestEnv) withDaemon(t *testing.T, asker daemon.Asker) {
	t.Helper()
	hub := broadcast.NewHub(broadcast.Options{}, nil)
	deps := daemon.Dependencies{Store: env.store, Hub: hub}
	if asker != nil {
		deps.Assistant = asker
	}
	d, err := daemon.New(env.cfg, deps, nil)
	if err != nil {
		t.Fatalf("daemon.New returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start returned error: %v", err)
	}
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		srv.Close()
		d.Stop()
		cancel()
		hub.Close()
	})
	env.daemon = d
	env.server = srv
	env.apiAddress = srv.URL
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return env.runWithInput(t, nil, args...)
}

func (env *cliTestEnv) runWithInput(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	flags := []string{"--config", env.configPath, "--api", env.apiAddress}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, extra string) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\nwork_dir = %q\ndatabase_path = %q\napi_bind = %q\n%s\n[cache]\nbackend = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.WorkDir,
		cfg.Paths.DatabasePath,
		cfg.Paths.APIBind,
		extra,
		cfg.Cache.Backend,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func intPtr(v int) *int { return &v }

func seedCompleted(t *testing.T, st *store.Store, externalID, title string) *store.Video {
	t.Helper()
	ctx := context.Background()
	video := testsupport.Enqueue(t, st, externalID, title)
	if err := st.SaveTranscript(ctx, store.Transcript{
		VideoID: video.ID, Source: "auto_caption", Text: "Porque Deus amou o mundo",
		WordCount: 5, CharCount: 24, ConfidenceScore: 0.62, AudioQuality: "medium", Language: "pt",
	}); err != nil {
		t.Fatalf("SaveTranscript returned error: %v", err)
	}
	passages := []store.Passage{{VideoID: video.ID, Book: "João", Code: "JHN", Chapter: 3, VerseStart: intPtr(16), PassageType: "citation", Count: 2}}
	tagged := []store.Theme{{VideoID: video.ID, Tag: "love", Score: 4, Timestamps: []float64{75}}}
	if err := st.ReplaceAnnotations(ctx, video.ID, passages, tagged); err != nil {
		t.Fatalf("ReplaceAnnotations returned error: %v", err)
	}
	if err := st.MarkStatus(ctx, video.ID, store.StatusCompleted, ""); err != nil {
		t.Fatalf("MarkStatus returned error: %v", err)
	}
	return video
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
