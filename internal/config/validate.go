package config

import (
	"errors"
	"fmt"
	"slices"
)

var knownSources = []string{"auto_caption", "transcript_api", "speech_to_text"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAcquisition(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateSegmenter(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateFeeds(); err != nil {
		return err
	}
	if c.Themes.MinScore < 0 {
		return errors.New("themes.min_score must be >= 0")
	}
	if c.Detector.TopN <= 0 {
		return errors.New("detector.top_n must be positive")
	}
	return nil
}

func (c *Config) validateAcquisition() error {
	if err := ensurePositiveMap(map[string]int{
		"acquisition.max_duration_seconds":           c.Acquisition.MaxDurationSeconds,
		"acquisition.min_caption_chars":              c.Acquisition.MinCaptionChars,
		"acquisition.metadata_timeout_seconds":       c.Acquisition.MetadataTimeoutSeconds,
		"acquisition.caption_timeout_seconds":        c.Acquisition.CaptionTimeoutSeconds,
		"acquisition.transcript_api_timeout_seconds": c.Acquisition.TranscriptAPITimeoutSeconds,
		"acquisition.asr_timeout_seconds":            c.Acquisition.ASRTimeoutSeconds,
	}); err != nil {
		return err
	}
	for _, source := range c.Acquisition.Sources {
		if !slices.Contains(knownSources, source) {
			return fmt.Errorf("acquisition.sources: unknown source %q (valid: %v)", source, knownSources)
		}
	}
	return nil
}

func (c *Config) validateQuality() error {
	for key, value := range map[string]float64{
		"quality.auto_caption_base":   c.Quality.AutoCaptionBase,
		"quality.transcript_api_base": c.Quality.TranscriptAPIBase,
		"quality.speech_to_text_base": c.Quality.SpeechToTextBase,
		"quality.high_threshold":      c.Quality.HighThreshold,
		"quality.medium_threshold":    c.Quality.MediumThreshold,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}
	if c.Quality.MediumThreshold >= c.Quality.HighThreshold {
		return errors.New("quality.medium_threshold must be lower than quality.high_threshold")
	}
	return nil
}

func (c *Config) validateSegmenter() error {
	s := c.Segmenter
	if s.MinWords <= 0 || s.TargetWords <= 0 || s.MaxWords <= 0 {
		return errors.New("segmenter word bounds must be positive")
	}
	if s.MinWords > s.TargetWords || s.TargetWords > s.MaxWords {
		return errors.New("segmenter bounds must satisfy min_words <= target_words <= max_words")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "sqlite", "memory":
	case "postgres":
		if c.Cache.PostgresDSN == "" {
			return errors.New("cache.postgres_dsn must be set when cache.backend is postgres (or set PULPIT_POSTGRES_DSN)")
		}
	default:
		return fmt.Errorf("cache.backend: unsupported value %q (valid: sqlite, postgres, memory)", c.Cache.Backend)
	}
	if c.Cache.TTLDays <= 0 {
		return errors.New("cache.ttl_days must be positive")
	}
	if c.Cache.SweepIntervalMinutes < 0 {
		return errors.New("cache.sweep_interval_minutes must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.workers":               c.Workflow.Workers,
		"workflow.poll_interval_seconds": c.Workflow.PollIntervalSeconds,
		"broadcast.heartbeat_seconds":    c.Broadcast.HeartbeatSeconds,
		"broadcast.send_timeout_ms":      c.Broadcast.SendTimeoutMillis,
	})
}

func (c *Config) validateFeeds() error {
	if !c.Feeds.Enabled {
		return nil
	}
	if len(c.Feeds.URLs) == 0 {
		return errors.New("feeds.urls must include at least one feed when feeds.enabled is true")
	}
	if c.Feeds.PollIntervalMinutes <= 0 {
		return errors.New("feeds.poll_interval_minutes must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
