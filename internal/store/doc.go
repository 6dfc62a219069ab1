// Package store persists the sermon catalog in SQLite.
//
// It owns the videos table and every artifact derived from a video:
// transcripts, retrieval segments, detected passages and themes. It also
// holds the rows of the default response cache backend. The package is a
// leaf: it defines its own row types and knows nothing about the packages
// that compute them, so the pipeline converts domain values into rows.
//
// Writes go through retryOnBusy so concurrent workers survive transient
// SQLITE_BUSY errors. ClaimNext hands each pending video to exactly one
// worker. The schema is created from the embedded schema.sql on first open
// and guarded by schema_version.
package store
