package ytdlp_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"pulpit/internal/services"
	"pulpit/internal/services/ytdlp"
	"pulpit/internal/testsupport"
)

func TestMetadata(t *testing.T) {
	runner := testsupport.NewFakeRunner()
	runner.Handle("yt-dlp", func(args []string) ([]byte, error) {
		return []byte(`{"id":"abc123","title":"Graça Suficiente","uploader":"Igreja Central","duration":3605.5,"language":"pt","upload_date":"20260301"}`), nil
	})
	client := ytdlp.New("")
	client.WithCommandRunner(runner.Run)

	meta, err := client.Metadata(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Metadata returned error: %v", err)
	}
	if meta.ID != "abc123" || meta.ChannelName() != "Igreja Central" || meta.Duration() != 3605500*time.Millisecond {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	published, ok := meta.PublishedAt()
	if !ok || published.Year() != 2026 || published.Month() != time.March {
		t.Fatalf("unexpected published date %v %v", published, ok)
	}
	args := runner.Calls()[0].Args
	if !slices.Contains(args, "--dump-single-json") || !slices.Contains(args, "--skip-download") {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestMetadataFailureIsExternalTool(t *testing.T) {
	runner := testsupport.NewFakeRunner()
	runner.Handle("yt-dlp", func([]string) ([]byte, error) { return nil, errors.New("exit status 1") })
	client := ytdlp.New("yt-dlp")
	client.WithCommandRunner(runner.Run)
	_, err := client.Metadata(context.Background(), "https://example.invalid")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestCaptionsPicksPreferredLanguage(t *testing.T) {
	dir := t.TempDir()
	runner := testsupport.NewFakeRunner()
	runner.Handle("yt-dlp", func(args []string) ([]byte, error) {
		if got := testsupport.ArgValue(args, "--sub-langs"); got != "pt.*,en.*" {
			t.Errorf("unexpected sub-langs %q", got)
		}
		for _, name := range []string{"captions.en.vtt", "captions.pt-BR.srv3", "captions.pt-BR.vtt", "notes.txt"} {
			testsupport.WriteFile(t, filepath.Join(dir, name), "x")
		}
		return nil, nil
	})
	client := ytdlp.New("")
	client.WithCommandRunner(runner.Run)

	path, err := client.Captions(context.Background(), "https://youtu.be/abc", []string{"pt", "en"}, dir)
	if err != nil {
		t.Fatalf("Captions returned error: %v", err)
	}
	if filepath.Base(path) != "captions.pt-BR.vtt" {
		t.Fatalf("unexpected caption file %s", path)
	}
}

func TestCaptionsNoTrack(t *testing.T) {
	runner := testsupport.NewFakeRunner()
	runner.Handle("yt-dlp", func([]string) ([]byte, error) { return nil, nil })
	client := ytdlp.New("")
	client.WithCommandRunner(runner.Run)
	if _, err := client.Captions(context.Background(), "u", nil, t.TempDir()); !errors.Is(err, ytdlp.ErrNoCaptions) {
		t.Fatalf("expected ErrNoCaptions, got %v", err)
	}
}

func TestDownloadAudioUsesPrintedPath(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.webm")
	runner := testsupport.NewFakeRunner()
	runner.Handle("yt-dlp", func(args []string) ([]byte, error) {
		if err := os.WriteFile(audio, []byte("a"), 0o644); err != nil {
			return nil, err
		}
		return []byte("[download] done\n" + audio + "\n"), nil
	})
	client := ytdlp.New("")
	client.WithCommandRunner(runner.Run)
	got, err := client.DownloadAudio(context.Background(), "u", dir)
	if err != nil {
		t.Fatalf("DownloadAudio returned error: %v", err)
	}
	if got != audio {
		t.Fatalf("expected %s, got %s", audio, got)
	}
}
