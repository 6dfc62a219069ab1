// Package acquisition obtains a transcript for one video by trying
// sources in order until one yields usable text.
//
// Metadata is fetched first; videos over the duration cap fail with
// ErrTooLong before any source runs. Sources then run in configured order
// (auto captions, external transcript service, speech-to-text), each under
// its own timeout. The first usable result wins and results are never
// blended. When every source fails the error is ErrExhausted with the
// reason each source gave.
//
// Scratch files live in one temporary directory per run, removed on every
// exit path.
package acquisition
