package config

const (
	defaultConfigPath                  = "~/.config/pulpit/config.toml"
	defaultDataDir                     = "~/.local/share/pulpit"
	defaultLogDir                      = "~/.local/share/pulpit/logs"
	defaultWorkDir                     = "~/.cache/pulpit/work"
	defaultDatabaseFile                = "pulpit.db"
	defaultAPIBind                     = "127.0.0.1:7491"
	defaultMaxDurationSeconds          = 7200
	defaultMinCaptionChars             = 100
	defaultMetadataTimeoutSeconds      = 5
	defaultCaptionTimeoutSeconds       = 60
	defaultTranscriptAPITimeoutSeconds = 15
	defaultASRTimeoutSeconds           = 3600
	defaultYtDlpBinary                 = "yt-dlp"
	defaultFFmpegBinary                = "ffmpeg"
	defaultSegmentTargetWords          = 300
	defaultSegmentMinWords             = 150
	defaultSegmentMaxWords             = 450
	defaultContinuationMarker          = "... "
	defaultThemeMinScore               = 2.0
	defaultThemeMaxTimestamps          = 5
	defaultDetectorTopN                = 10
	defaultCacheBackend                = "sqlite"
	defaultCacheTTLDays                = 7
	defaultCacheSweepMinutes           = 60
	defaultHeartbeatSeconds            = 30
	defaultSendTimeoutMillis           = 100
	defaultClientBuffer                = 64
	defaultNotifyTimeoutMillis         = 500
	defaultLLMBaseURL                  = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMPrimaryModel             = "google/gemini-3-flash-preview"
	defaultLLMSecondaryModel           = "deepseek/deepseek-chat"
	defaultLLMReferer                  = "https://github.com/pulpit"
	defaultLLMTitle                    = "Pulpit Sermon Assistant"
	defaultLLMTimeoutSeconds           = 60
	defaultAssistantMaxCandidates      = 20
	defaultAssistantMaxSegments        = 6
	defaultAssistantMaxTokens          = 800
	defaultAssistantTemperature        = 0.2
	defaultWhisperXModel               = "large-v3"
	defaultWhisperXVADMethod           = "silero"
	defaultWorkers                     = 2
	defaultPollIntervalSeconds         = 5
	defaultFeedPollMinutes             = 30
	defaultLogFormat                   = "console"
	defaultLogLevel                    = "info"
	defaultLogRetentionDays            = 30
)

var (
	defaultLanguages = []string{"pt", "en"}
	defaultSources   = []string{"auto_caption", "transcript_api", "speech_to_text"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			WorkDir: defaultWorkDir,
			APIBind: defaultAPIBind,
		},
		Acquisition: Acquisition{
			MaxDurationSeconds:          defaultMaxDurationSeconds,
			Languages:                   append([]string(nil), defaultLanguages...),
			Sources:                     append([]string(nil), defaultSources...),
			MinCaptionChars:             defaultMinCaptionChars,
			MetadataTimeoutSeconds:      defaultMetadataTimeoutSeconds,
			CaptionTimeoutSeconds:       defaultCaptionTimeoutSeconds,
			TranscriptAPITimeoutSeconds: defaultTranscriptAPITimeoutSeconds,
			ASRTimeoutSeconds:           defaultASRTimeoutSeconds,
			YtDlpBinary:                 defaultYtDlpBinary,
			FFmpegBinary:                defaultFFmpegBinary,
		},
		Quality: Quality{
			AutoCaptionBase:   0.60,
			TranscriptAPIBase: 0.80,
			SpeechToTextBase:  0.70,
			HighThreshold:     0.75,
			MediumThreshold:   0.55,
		},
		Segmenter: Segmenter{
			TargetWords:        defaultSegmentTargetWords,
			MinWords:           defaultSegmentMinWords,
			MaxWords:           defaultSegmentMaxWords,
			ContinuationMarker: defaultContinuationMarker,
		},
		Themes: Themes{
			MinScore:      defaultThemeMinScore,
			MaxTimestamps: defaultThemeMaxTimestamps,
		},
		Detector: Detector{TopN: defaultDetectorTopN},
		Cache: Cache{
			Backend:              defaultCacheBackend,
			TTLDays:              defaultCacheTTLDays,
			SweepIntervalMinutes: defaultCacheSweepMinutes,
		},
		Broadcast: Broadcast{
			HeartbeatSeconds:    defaultHeartbeatSeconds,
			SendTimeoutMillis:   defaultSendTimeoutMillis,
			ClientBuffer:        defaultClientBuffer,
			NotifyTimeoutMillis: defaultNotifyTimeoutMillis,
		},
		LLM: LLM{
			Primary: LLMBackend{
				Name:           "primary",
				BaseURL:        defaultLLMBaseURL,
				Model:          defaultLLMPrimaryModel,
				Referer:        defaultLLMReferer,
				Title:          defaultLLMTitle,
				TimeoutSeconds: defaultLLMTimeoutSeconds,
			},
			Secondary: LLMBackend{
				Name:           "secondary",
				BaseURL:        defaultLLMBaseURL,
				Model:          defaultLLMSecondaryModel,
				Referer:        defaultLLMReferer,
				Title:          defaultLLMTitle,
				TimeoutSeconds: defaultLLMTimeoutSeconds,
			},
		},
		Assistant: Assistant{
			MaxCandidates: defaultAssistantMaxCandidates,
			MaxSegments:   defaultAssistantMaxSegments,
			MaxTokens:     defaultAssistantMaxTokens,
			Temperature:   defaultAssistantTemperature,
		},
		WhisperX: WhisperX{
			Model:     defaultWhisperXModel,
			VADMethod: defaultWhisperXVADMethod,
		},
		Workflow: Workflow{
			Workers:             defaultWorkers,
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Feeds: Feeds{
			PollIntervalMinutes: defaultFeedPollMinutes,
			Language:            "pt",
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
