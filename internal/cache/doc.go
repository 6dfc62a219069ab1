// Package cache implements the response cache that backs the question
// answering assistant.
//
// Entries are content addressed: Key hashes the normalized question together
// with the sorted, de-duplicated context video ids using BLAKE3, so logically
// identical requests share one entry and an answer is never served for a
// different context set. Service layers TTL handling and hit tracking over a
// pluggable Store; the SQLite implementation lives in internal/store,
// PostgresStore and MemoryStore live here.
//
// Expired entries are deleted when read and treated as misses. Sweep removes
// the rest in bulk. Writes are upserts, so concurrent identical requests
// resolve last-writer-wins.
package cache
