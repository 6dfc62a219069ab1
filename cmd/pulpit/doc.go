// Package main hosts the pulpit CLI entrypoint and command graph.
//
// The Cobra-based command tree talks to a running daemon over its HTTP API
// when one answers and falls back to the catalog database otherwise. The
// offline analysis commands (detect, themes, segment, score) read a file or
// stdin and never touch the catalog.
//
// Keep this package lean: add functionality in the internal packages first,
// then surface it through a command here.
package main
