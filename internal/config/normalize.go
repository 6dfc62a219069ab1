package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pulpit/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeAcquisition(); err != nil {
		return err
	}
	if err := c.normalizeThemes(); err != nil {
		return err
	}
	c.normalizeCache()
	c.normalizeBroadcast()
	c.normalizeLLM()
	c.normalizeWhisperX()
	c.normalizeFeeds()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, defaultDatabaseFile)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("PULPIT_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	origins := c.Paths.CORSOrigins[:0]
	for _, origin := range c.Paths.CORSOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Paths.CORSOrigins = origins
	return nil
}

func (c *Config) normalizeAcquisition() error {
	c.Acquisition.Languages = normalizeList(language.NormalizeList(c.Acquisition.Languages), defaultLanguages)
	c.Acquisition.Sources = normalizeList(c.Acquisition.Sources, defaultSources)
	c.Acquisition.YtDlpBinary = strings.TrimSpace(c.Acquisition.YtDlpBinary)
	if c.Acquisition.YtDlpBinary == "" {
		c.Acquisition.YtDlpBinary = defaultYtDlpBinary
	}
	c.Acquisition.FFmpegBinary = strings.TrimSpace(c.Acquisition.FFmpegBinary)
	if c.Acquisition.FFmpegBinary == "" {
		c.Acquisition.FFmpegBinary = defaultFFmpegBinary
	}
	c.Acquisition.TranscriptAPIURL = strings.TrimRight(strings.TrimSpace(c.Acquisition.TranscriptAPIURL), "/")
	c.Acquisition.TranscriptAPIKey = strings.TrimSpace(c.Acquisition.TranscriptAPIKey)
	if c.Acquisition.TranscriptAPIKey == "" {
		if value, ok := os.LookupEnv("PULPIT_TRANSCRIPT_API_KEY"); ok {
			c.Acquisition.TranscriptAPIKey = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeThemes() error {
	var err error
	if c.Themes.DictionaryPath, err = expandPath(strings.TrimSpace(c.Themes.DictionaryPath)); err != nil {
		return fmt.Errorf("themes.dictionary_path: %w", err)
	}
	if c.Themes.MaxTimestamps < 0 {
		c.Themes.MaxTimestamps = 0
	}
	return nil
}

func (c *Config) normalizeCache() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	c.Cache.PostgresDSN = strings.TrimSpace(c.Cache.PostgresDSN)
	if c.Cache.PostgresDSN == "" {
		if value, ok := os.LookupEnv("PULPIT_POSTGRES_DSN"); ok {
			c.Cache.PostgresDSN = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeBroadcast() {
	c.Broadcast.RemoteURL = strings.TrimRight(strings.TrimSpace(c.Broadcast.RemoteURL), "/")
	if c.Broadcast.ClientBuffer <= 0 {
		c.Broadcast.ClientBuffer = defaultClientBuffer
	}
	if c.Broadcast.NotifyTimeoutMillis <= 0 {
		c.Broadcast.NotifyTimeoutMillis = defaultNotifyTimeoutMillis
	}
}

func (c *Config) normalizeLLM() {
	normalizeBackend(&c.LLM.Primary, "primary", "PULPIT_LLM_API_KEY", "OPENROUTER_API_KEY")
	normalizeBackend(&c.LLM.Secondary, "secondary", "PULPIT_SECONDARY_LLM_API_KEY")
}

func normalizeBackend(b *LLMBackend, fallbackName string, envKeys ...string) {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		b.Name = fallbackName
	}
	b.BaseURL = strings.TrimSpace(b.BaseURL)
	b.Model = strings.TrimSpace(b.Model)
	b.Referer = strings.TrimSpace(b.Referer)
	b.Title = strings.TrimSpace(b.Title)
	if b.TimeoutSeconds <= 0 {
		b.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	b.APIKey = strings.TrimSpace(b.APIKey)
	if b.APIKey != "" {
		return
	}
	for _, key := range envKeys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			b.APIKey = strings.TrimSpace(value)
			return
		}
	}
}

func (c *Config) normalizeWhisperX() {
	c.WhisperX.Model = strings.TrimSpace(c.WhisperX.Model)
	if c.WhisperX.Model == "" {
		c.WhisperX.Model = defaultWhisperXModel
	}
	c.WhisperX.VADMethod = strings.ToLower(strings.TrimSpace(c.WhisperX.VADMethod))
	if c.WhisperX.VADMethod == "" {
		c.WhisperX.VADMethod = defaultWhisperXVADMethod
	}
	c.WhisperX.HFToken = strings.TrimSpace(c.WhisperX.HFToken)
	if c.WhisperX.HFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.WhisperX.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.WhisperX.HFToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeFeeds() {
	urls := make([]string, 0, len(c.Feeds.URLs))
	seen := make(map[string]struct{}, len(c.Feeds.URLs))
	for _, raw := range c.Feeds.URLs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		urls = append(urls, trimmed)
	}
	c.Feeds.URLs = urls
	c.Feeds.Language = strings.ToLower(strings.TrimSpace(c.Feeds.Language))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeList lowercases, trims, and de-duplicates values, falling back
// when nothing usable remains.
func normalizeList(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
