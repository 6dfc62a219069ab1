package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pulpit/internal/api"
	"pulpit/internal/store"
	"pulpit/internal/testsupport"
)

func TestIngestOfflineAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "ingest", "https://www.youtube.com/watch?v=abcdefghijk", "--title", "Graça sobre graça")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "Queued video 1 (abcdefghijk)")

	out, _, err = env.run(t, "ingest", "abcdefghijk")
	if err != nil {
		t.Fatalf("ingest again: %v", err)
	}
	requireContains(t, out, "already in catalog")

	out, _, err = env.run(t, "videos", "list")
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got:\n%s", out)
	}
	if lines[0] != "ID\tVideo\tTitle\tStatus\tDuration\tCreated" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	requireContains(t, lines[1], "abcdefghijk\tGraça sobre graça\tpending")

	out, _, err = env.run(t, "videos", "list", "--status", "completed")
	if err != nil {
		t.Fatalf("videos list --status: %v", err)
	}
	requireContains(t, out, "No videos")

	if _, _, err := env.run(t, "videos", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestIngestRejectsURLWithoutID(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "ingest", "https://example.com/about"); err == nil {
		t.Fatal("expected error for URL without a video id")
	}
}

func TestIngestViaDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.withDaemon(t, nil)

	out, _, err := env.run(t, "ingest", "https://youtu.be/zyxwvutsrqp")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "Queued video")

	video, err := env.store.GetVideoByExternalID(context.Background(), "zyxwvutsrqp")
	if err != nil {
		t.Fatalf("GetVideoByExternalID returned error: %v", err)
	}
	if video.SourceURL != "https://youtu.be/zyxwvutsrqp" {
		t.Fatalf("unexpected source url %q", video.SourceURL)
	}
}

func TestVideosShowAndPassageSearchOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCompleted(t, env.store, "abcdefghijk", "O amor de Deus")

	out, _, err := env.run(t, "videos", "show", "1")
	if err != nil {
		t.Fatalf("videos show: %v", err)
	}
	requireContains(t, out, "Video 1: O amor de Deus")
	requireContains(t, out, "auto_caption, 5 words, confidence 0.62")
	requireContains(t, out, "JHN.3.16\tJoão\tcitation\t2")
	requireContains(t, out, "love\t4.00\t1:15")

	out, _, err = env.run(t, "passage", "search", "João", "3:14-18")
	if err != nil {
		t.Fatalf("passage search: %v", err)
	}
	requireContains(t, out, "Videos citing JHN.3.14-18")
	requireContains(t, out, "O amor de Deus")

	out, _, err = env.run(t, "passage", "search", "ROM.8")
	if err != nil {
		t.Fatalf("passage search ROM.8: %v", err)
	}
	requireContains(t, out, "No videos cite ROM.8")

	if _, _, err := env.run(t, "videos", "show", "99"); err == nil {
		t.Fatal("expected error for missing video")
	}
	if _, _, err := env.run(t, "videos", "show", "abc"); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

func TestVideosShowViaDaemonJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCompleted(t, env.store, "abcdefghijk", "O amor de Deus")
	env.withDaemon(t, nil)

	out, _, err := env.run(t, "videos", "show", "1", "--json")
	if err != nil {
		t.Fatalf("videos show --json: %v", err)
	}
	var detail api.VideoDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode detail: %v\n%s", err, out)
	}
	if detail.Video.ExternalID != "abcdefghijk" || len(detail.Passages) != 1 || detail.Passages[0].Reference != "JHN.3.16" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.Transcript == nil || detail.Transcript.WordCount != 5 {
		t.Fatalf("expected transcript summary, got %+v", detail.Transcript)
	}
}

func TestVideosReingestAndExclude(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCompleted(t, env.store, "abcdefghijk", "O amor de Deus")
	testsupport.Enqueue(t, env.store, "bbbbbbbbbbb", "Fé")

	out, _, err := env.run(t, "videos", "reingest", "1")
	if err != nil {
		t.Fatalf("videos reingest: %v", err)
	}
	requireContains(t, out, "Video 1 requeued")

	ctx := context.Background()
	video, err := env.store.GetVideo(ctx, 1)
	if err != nil {
		t.Fatalf("GetVideo returned error: %v", err)
	}
	if video.Status != store.StatusPending {
		t.Fatalf("expected pending after reingest, got %s", video.Status)
	}

	out, _, err = env.run(t, "videos", "exclude", "2")
	if err != nil {
		t.Fatalf("videos exclude: %v", err)
	}
	requireContains(t, out, "Video 2 excluded")
	video, err = env.store.GetVideo(ctx, 2)
	if err != nil {
		t.Fatalf("GetVideo returned error: %v", err)
	}
	if video.Status != store.StatusSkipped {
		t.Fatalf("expected skipped after exclude, got %s", video.Status)
	}
}

func TestDaemonStatusOfflineAndOnline(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.Enqueue(t, env.store, "abcdefghijk", "Graça")

	out, _, err := env.run(t, "daemon", "status")
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "Pending\t1")

	env.withDaemon(t, nil)
	out, _, err = env.run(t, "daemon", "status", "--json")
	if err != nil {
		t.Fatalf("daemon status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !status.Running || status.QueueCounts["pending"] != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestAskViaDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	asker := &fakeAsker{}
	env.withDaemon(t, asker)

	out, _, err := env.run(t, "ask", "O", "que", "é", "graça?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	requireContains(t, out, "A graça vem pela fé.")
	requireContains(t, out, "backend fake")
	if len(asker.questions) != 1 || asker.questions[0] != "O que é graça?" {
		t.Fatalf("unexpected questions %v", asker.questions)
	}
}

func TestAskOfflineFallsBackWithoutLLM(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCompleted(t, env.store, "abcdefghijk", "O amor de Deus")

	out, _, err := env.run(t, "ask", "--json", "Deus amou o mundo?")
	if err != nil {
		t.Fatalf("ask offline: %v", err)
	}
	var answer struct {
		Question string `json:"question"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(out), &answer); err != nil {
		t.Fatalf("decode answer: %v\n%s", err, out)
	}
	if answer.Question != "Deus amou o mundo?" || answer.Response == "" {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestDetectFromStdin(t *testing.T) {
	env := setupCLITestEnv(t)
	input := strings.NewReader("Hoje vamos ler em João 3:16. Depois Romanos 8:28 e de novo João 3:16.")

	out, _, err := env.runWithInput(t, input, "detect")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	requireContains(t, out, "JHN.3.16")
	requireContains(t, out, "ROM.8.28")
	requireContains(t, out, "3 reference(s); top books: JHN (2), ROM (1)")
}

func TestDetectCaptionFileJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "sermon.vtt")
	vtt := "WEBVTT\n\n00:00:01.000 --> 00:00:04.000\nabram em Salmos 23\n\n00:00:04.000 --> 00:00:08.000\no Senhor é o meu pastor\n"
	if err := os.WriteFile(path, []byte(vtt), 0o644); err != nil {
		t.Fatalf("write vtt: %v", err)
	}

	out, _, err := env.run(t, "detect", path, "--json")
	if err != nil {
		t.Fatalf("detect --json: %v", err)
	}
	var payload struct {
		Matches []detectedMatch `json:"matches"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode matches: %v\n%s", err, out)
	}
	if len(payload.Matches) != 1 || payload.Matches[0].Reference != "PSA.23" {
		t.Fatalf("unexpected matches %+v", payload.Matches)
	}
}

func TestDetectEmptyInput(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.runWithInput(t, strings.NewReader("   "), "detect"); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestThemesCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	input := strings.NewReader("A graça de Deus. Pela graça somos salvos, graça sobre graça.")

	out, _, err := env.runWithInput(t, input, "themes")
	if err != nil {
		t.Fatalf("themes: %v", err)
	}
	requireContains(t, out, "grace\tGraça\t6.00\t4")
}

func TestSegmentCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "transcript.txt")
	if err := os.WriteFile(path, []byte(testsupport.Words(1000)), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	out, _, err := env.run(t, "segment", path)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected several segments, got:\n%s", out)
	}
	requireContains(t, lines[1], "1\t0\t")

	if _, _, err := env.run(t, "segment", path, "--min", "500", "--target", "100"); err == nil {
		t.Fatal("expected invalid bounds to fail")
	}
}

func TestScoreCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	text := testsupport.Words(1200)

	out, _, err := env.runWithInput(t, strings.NewReader(text), "score", "--source", "transcript_api", "--json")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var result scoreOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode score: %v\n%s", err, out)
	}
	if result.Source != "transcript_api" || result.WordCount != 1200 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Confidence <= 0 || result.Confidence > 1 || result.Tier == "" {
		t.Fatalf("unexpected assessment %+v", result)
	}

	if _, _, err := env.runWithInput(t, strings.NewReader(text), "score", "--source", "radio"); err == nil {
		t.Fatal("expected unknown source to fail")
	}
}

func TestCacheStatsAndSweep(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "memory\t0\t0\t0")

	out, _, err = env.run(t, "cache", "sweep")
	if err != nil {
		t.Fatalf("cache sweep: %v", err)
	}
	requireContains(t, out, "Removed 0 expired entries")
}

func TestDoctorReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail without an LLM key")
	}
	requireContains(t, out, "Catalog database")
	requireContains(t, out, "Primary LLM")
	requireContains(t, out, "[ERROR] API key missing")
	requireContains(t, out, "Daemon")
}
