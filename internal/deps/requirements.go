package deps

import (
	"slices"

	"pulpit/internal/config"
	"pulpit/internal/services/whisperx"
)

// Requirements lists the binaries the configured acquisition sources need.
// Speech-to-text tools are optional when that source is disabled.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	asr := !slices.Contains(cfg.Acquisition.Sources, "speech_to_text")
	return []Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Acquisition.YtDlpBinary,
			Description: "Fetches video metadata, caption tracks and audio",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Acquisition.FFmpegBinary,
			Description: "Extracts mono 16 kHz audio for speech-to-text",
			Optional:    asr,
		},
		{
			Name:        "uvx",
			Command:     whisperx.UVXCommand,
			Description: "Runs WhisperX for speech-to-text",
			Optional:    asr,
		},
	}
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
