package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string   `toml:"data_dir"`
	LogDir       string   `toml:"log_dir"`
	WorkDir      string   `toml:"work_dir"`
	DatabasePath string   `toml:"database_path"`
	APIBind      string   `toml:"api_bind"`
	APIToken     string   `toml:"api_token"`
	CORSOrigins  []string `toml:"cors_origins"`
}

// Acquisition controls how transcripts are obtained for a video.
type Acquisition struct {
	MaxDurationSeconds          int      `toml:"max_duration_seconds"`
	Languages                   []string `toml:"languages"`
	Sources                     []string `toml:"sources"`
	MinCaptionChars             int      `toml:"min_caption_chars"`
	MetadataTimeoutSeconds      int      `toml:"metadata_timeout_seconds"`
	CaptionTimeoutSeconds       int      `toml:"caption_timeout_seconds"`
	TranscriptAPITimeoutSeconds int      `toml:"transcript_api_timeout_seconds"`
	ASRTimeoutSeconds           int      `toml:"asr_timeout_seconds"`
	YtDlpBinary                 string   `toml:"ytdlp_binary"`
	FFmpegBinary                string   `toml:"ffmpeg_binary"`
	TranscriptAPIURL            string   `toml:"transcript_api_url"`
	TranscriptAPIKey            string   `toml:"transcript_api_key"`
}

// Quality holds the tunable parts of the transcript quality policy.
type Quality struct {
	AutoCaptionBase   float64 `toml:"auto_caption_base"`
	TranscriptAPIBase float64 `toml:"transcript_api_base"`
	SpeechToTextBase  float64 `toml:"speech_to_text_base"`
	HighThreshold     float64 `toml:"high_threshold"`
	MediumThreshold   float64 `toml:"medium_threshold"`
}

// Segmenter holds word-count bounds for retrieval segments.
type Segmenter struct {
	TargetWords        int    `toml:"target_words"`
	MinWords           int    `toml:"min_words"`
	MaxWords           int    `toml:"max_words"`
	ContinuationMarker string `toml:"continuation_marker"`
}

// Themes configures the theme dictionary and scoring threshold.
type Themes struct {
	DictionaryPath string  `toml:"dictionary_path"`
	MinScore       float64 `toml:"min_score"`
	MaxTimestamps  int     `toml:"max_timestamps"`
}

// Detector configures scripture reference detection.
type Detector struct {
	TopN int `toml:"top_n"`
}

// Cache configures the assistant response cache.
type Cache struct {
	Backend              string `toml:"backend"`
	TTLDays              int    `toml:"ttl_days"`
	SweepIntervalMinutes int    `toml:"sweep_interval_minutes"`
	PostgresDSN          string `toml:"postgres_dsn"`
	PostgresMaxConns     int    `toml:"postgres_max_conns"`
}

// Broadcast configures the status broadcaster.
type Broadcast struct {
	HeartbeatSeconds    int    `toml:"heartbeat_seconds"`
	SendTimeoutMillis   int    `toml:"send_timeout_ms"`
	ClientBuffer        int    `toml:"client_buffer"`
	RemoteURL           string `toml:"remote_url"`
	NotifyTimeoutMillis int    `toml:"notify_timeout_ms"`
}

// LLMBackend describes one OpenAI-compatible chat completion endpoint.
type LLMBackend struct {
	Name           string `toml:"name"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Configured reports whether the backend has enough settings to be used.
func (b LLMBackend) Configured() bool {
	return strings.TrimSpace(b.APIKey) != "" && strings.TrimSpace(b.BaseURL) != ""
}

// LLM lists the assistant backends in fallback order.
type LLM struct {
	Primary   LLMBackend `toml:"primary"`
	Secondary LLMBackend `toml:"secondary"`
}

// Assistant configures question answering.
type Assistant struct {
	MaxCandidates int     `toml:"max_candidates"`
	MaxSegments   int     `toml:"max_segments"`
	MaxTokens     int     `toml:"max_tokens"`
	Temperature   float64 `toml:"temperature"`
}

// WhisperX contains speech-to-text settings.
type WhisperX struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// Workflow contains configuration for the daemon worker pool.
type Workflow struct {
	Workers             int `toml:"workers"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// Feeds configures channel feed polling.
type Feeds struct {
	Enabled             bool     `toml:"enabled"`
	URLs                []string `toml:"urls"`
	PollIntervalMinutes int      `toml:"poll_interval_minutes"`
	Language            string   `toml:"language"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for pulpit.
//
// Configuration sections by subsystem:
//   - Paths: data, log and scratch directories, database and API bind address
//   - Acquisition: duration cap, languages, source order and timeouts
//   - Quality: base scores and tier breakpoints
//   - Segmenter: retrieval segment bounds
//   - Themes: dictionary file and threshold
//   - Detector: reference statistics
//   - Cache: response cache backend and TTL
//   - Broadcast: status heartbeat and delivery timeouts
//   - LLM: primary and secondary backends
//   - Assistant: retrieval and generation limits
//   - WhisperX: speech-to-text settings
//   - Workflow: worker pool sizing
//   - Feeds: channel feed polling
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Acquisition Acquisition `toml:"acquisition"`
	Quality     Quality     `toml:"quality"`
	Segmenter   Segmenter   `toml:"segmenter"`
	Themes      Themes      `toml:"themes"`
	Detector    Detector    `toml:"detector"`
	Cache       Cache       `toml:"cache"`
	Broadcast   Broadcast   `toml:"broadcast"`
	LLM         LLM         `toml:"llm"`
	Assistant   Assistant   `toml:"assistant"`
	WhisperX    WhisperX    `toml:"whisperx"`
	Workflow    Workflow    `toml:"workflow"`
	Feeds       Feeds       `toml:"feeds"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pulpit.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.WorkDir, filepath.Dir(c.Paths.DatabasePath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxDuration returns the acquisition duration cap.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Acquisition.MaxDurationSeconds) * time.Second
}

// CacheTTL returns the response cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLDays) * 24 * time.Hour
}

// CacheSweepInterval returns how often expired cache entries are purged.
func (c *Config) CacheSweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalMinutes) * time.Minute
}

// HeartbeatInterval returns the broadcaster keep-alive period.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Broadcast.HeartbeatSeconds) * time.Second
}

// SendTimeout returns the per-client delivery grace period.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Broadcast.SendTimeoutMillis) * time.Millisecond
}

// PollInterval returns the worker idle polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollIntervalSeconds) * time.Second
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

// SourceTimeouts returns the per-source acquisition timeouts keyed by source name.
func (c *Config) SourceTimeouts() map[string]time.Duration {
	return map[string]time.Duration{
		"metadata":       seconds(c.Acquisition.MetadataTimeoutSeconds),
		"auto_caption":   seconds(c.Acquisition.CaptionTimeoutSeconds),
		"transcript_api": seconds(c.Acquisition.TranscriptAPITimeoutSeconds),
		"speech_to_text": seconds(c.Acquisition.ASRTimeoutSeconds),
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
