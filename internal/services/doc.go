// Package services defines shared utilities consumed by the pipeline stages
// and the external tool integrations under internal/services/...
//
// Key responsibilities:
//   - Context helpers that stamp video IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent video statuses (failed vs too_long).
//   - A CommandRunner abstraction so calls into yt-dlp, ffmpeg, and uvx can be
//     replaced in tests.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
