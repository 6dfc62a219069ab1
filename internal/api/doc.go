// Package api defines the wire-format types shared by the daemon HTTP server
// and the CLI client. It translates store records into transport-friendly
// DTOs so consumers never depend on internal persistence types.
//
// # Key Types
//
// Video: catalog entry with status, duration and timestamps.
//
// VideoDetail: a video plus its transcript summary, passages and themes.
//
// DaemonStatus: running state, worker pool summary, queue counts and
// connected status observers.
//
// EnqueueRequest/AskRequest: validated request bodies.
//
// # Converters
//
// FromVideo, FromTranscript, FromPassages and FromThemes convert store
// records. Passages carry their OSIS reference so clients can link them.
//
// # Client
//
// Client is a small JSON client for the daemon API used by the CLI. It sends
// the configured bearer token and turns error payloads into errors.
//
// # Design Notes
//
// JSON tags use snake_case to match the status event stream. Timestamps use
// RFC3339 with milliseconds and are omitted when unknown.
package api
