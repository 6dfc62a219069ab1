// Package preflight runs the environment checks behind `pulpit doctor`.
//
// Each check returns a Result with a short human-readable detail. Missing
// optional binaries are reported as passing so a transcript-only install
// is not flagged as broken.
package preflight
