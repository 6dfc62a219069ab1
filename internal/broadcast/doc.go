// Package broadcast fans pipeline status events out to live observers.
//
// A single Hub is created by the daemon and injected wherever events are
// produced. Subscribers receive events on a buffered channel; delivery is
// best effort and at most once per subscriber. A subscriber that cannot
// accept an event within the send timeout is dropped and its channel is
// closed. Subscriber state lives in memory only, so observers reconnect
// after a daemon restart.
//
// The WebSocket handler exposes the hub at /ws/status. Producers depend on
// the Notifier interface, which has local (hub), remote (HTTP) and no-op
// implementations.
package broadcast
