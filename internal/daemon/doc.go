// Package daemon coordinates the long-running pulpit process.
//
// It wires the catalog store, the broadcast hub, the pipeline worker pool,
// the cache sweeper and the feed watcher into a single lifecycle with
// flock-based locking to prevent multiple instances. The HTTP API is a chi
// router: read routes are open, mutating routes require the configured
// bearer token, and /ws/status streams status events over WebSocket.
//
// Keep orchestration logic here: processing steps live in pipeline while
// the daemon focuses on startup, shutdown, and request handling.
package daemon
