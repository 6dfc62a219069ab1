package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"pulpit/internal/services"
)

// DefaultBinary is the yt-dlp executable name.
const DefaultBinary = "yt-dlp"

// ErrNoCaptions is returned when yt-dlp finished without writing a track.
var ErrNoCaptions = errors.New("no caption track available")

// Metadata is the subset of yt-dlp's info JSON used by acquisition.
type Metadata struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Channel         string  `json:"channel"`
	Uploader        string  `json:"uploader"`
	DurationSeconds float64 `json:"duration"`
	Language        string  `json:"language"`
	UploadDate      string  `json:"upload_date"`
	WebpageURL      string  `json:"webpage_url"`
	IsLive          bool    `json:"is_live"`
}

// Duration returns the video length.
func (m Metadata) Duration() time.Duration {
	return time.Duration(m.DurationSeconds * float64(time.Second))
}

// PublishedAt parses upload_date (YYYYMMDD).
func (m Metadata) PublishedAt() (time.Time, bool) {
	t, err := time.Parse("20060102", m.UploadDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ChannelName prefers channel over uploader.
func (m Metadata) ChannelName() string {
	if m.Channel != "" {
		return m.Channel
	}
	return m.Uploader
}

// Client runs yt-dlp.
type Client struct {
	binary string
	run    services.CommandRunner
}

// New returns a client for binary, defaulting to yt-dlp on PATH.
func New(binary string) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	return &Client{binary: binary, run: services.RunCommand}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner services.CommandRunner) {
	if runner != nil {
		c.run = runner
	}
}

// Binary returns the configured executable.
func (c *Client) Binary() string {
	return c.binary
}

// Metadata fetches info JSON without downloading media.
func (c *Client) Metadata(ctx context.Context, url string) (Metadata, error) {
	var meta Metadata
	out, err := c.run(ctx, c.binary, "--dump-single-json", "--skip-download", "--no-warnings", "--no-playlist", url)
	if err != nil {
		return meta, services.Wrap(services.ErrExternalTool, "ytdlp", "metadata", url, err)
	}
	if err := json.Unmarshal(out, &meta); err != nil {
		return meta, services.Wrap(services.ErrExternalTool, "ytdlp", "metadata", "decode info json", err)
	}
	return meta, nil
}

// Captions writes the best caption track for languages into dir and
// returns its path. Manual tracks win over automatic ones in yt-dlp's own
// selection; among written files the earliest language in languages wins.
func (c *Client) Captions(ctx context.Context, url string, languages []string, dir string) (string, error) {
	args := []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", subLangs(languages),
		"--sub-format", "vtt/srv3/best",
		"--no-warnings",
		"--no-playlist",
		"-o", filepath.Join(dir, "captions.%(ext)s"),
		url,
	}
	if _, err := c.run(ctx, c.binary, args...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "ytdlp", "captions", url, err)
	}
	path, err := pickCaptionFile(dir, languages)
	if err != nil {
		return "", err
	}
	return path, nil
}

// DownloadAudio fetches the best audio-only stream into dir and returns
// the file path.
func (c *Client) DownloadAudio(ctx context.Context, url, dir string) (string, error) {
	args := []string{
		"-f", "bestaudio/best",
		"--no-warnings",
		"--no-playlist",
		"--no-progress",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		"--print", "after_move:filepath",
		url,
	}
	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "ytdlp", "download audio", url, err)
	}
	if path := lastLine(string(out)); path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			return path, nil
		}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "audio.*"))
	if len(matches) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "ytdlp", "download audio", "no audio file written", nil)
	}
	slices.Sort(matches)
	return matches[0], nil
}

func subLangs(languages []string) string {
	if len(languages) == 0 {
		return "pt.*,en.*"
	}
	parts := make([]string, 0, len(languages))
	for _, lang := range languages {
		if lang = strings.TrimSpace(lang); lang != "" {
			parts = append(parts, lang+".*")
		}
	}
	return strings.Join(parts, ",")
}

// pickCaptionFile finds captions.<lang>.<ext> files and ranks them by
// language order then format preference.
func pickCaptionFile(dir string, languages []string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read caption dir: %w", err)
	}
	type candidate struct {
		path     string
		langRank int
		extRank  int
	}
	var found []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "captions.") {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		extRank := slices.Index([]string{"vtt", "srv3"}, ext)
		if extRank < 0 {
			continue
		}
		lang := strings.TrimSuffix(strings.TrimPrefix(name, "captions."), "."+ext)
		found = append(found, candidate{
			path:     filepath.Join(dir, name),
			langRank: languageRank(lang, languages),
			extRank:  extRank,
		})
	}
	if len(found) == 0 {
		return "", ErrNoCaptions
	}
	slices.SortFunc(found, func(a, b candidate) int {
		if a.langRank != b.langRank {
			return a.langRank - b.langRank
		}
		if a.extRank != b.extRank {
			return a.extRank - b.extRank
		}
		return strings.Compare(a.path, b.path)
	})
	return found[0].path, nil
}

func languageRank(lang string, languages []string) int {
	lang = strings.ToLower(lang)
	for i, want := range languages {
		want = strings.ToLower(strings.TrimSpace(want))
		if lang == want || strings.HasPrefix(lang, want+"-") || strings.HasPrefix(lang, want+"_") {
			return i
		}
	}
	return len(languages)
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
