// Package transcriptapi is an HTTP client for an external transcript
// service that serves YouTube transcript tracks as JSON.
//
// Tracks are requested for a preferred language list. Human tracks are
// preferred over generated ones in any listed language, then the first
// non-empty track in language order wins.
package transcriptapi
