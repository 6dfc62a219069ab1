package cache

import (
	"context"
	"fmt"
	"time"

	"pulpit/internal/store"
)

// SQLiteStore keeps entries in the catalog database.
type SQLiteStore struct {
	db *store.Store
}

// NewSQLiteStore adapts the catalog store to the cache Store contract.
func NewSQLiteStore(db *store.Store) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	row, err := s.db.GetCacheRow(ctx, key)
	if err != nil || row == nil {
		return nil, err
	}
	entry := Entry{
		Key:          row.Key,
		Question:     row.Question,
		VideoIDs:     row.VideoIDs,
		Response:     row.Response,
		Backend:      row.Backend,
		CreatedAt:    row.CreatedAt,
		ExpiresAt:    row.ExpiresAt,
		HitCount:     row.HitCount,
		LastAccessed: row.LastAccessed,
	}
	if err := decodeJSONColumns(&entry, nil, []byte(row.CitedVideosJSON), []byte(row.RelevanceScoresJSON)); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *SQLiteStore) Put(ctx context.Context, entry Entry) error {
	_, cited, relevance, err := encodeJSONColumns(entry)
	if err != nil {
		return err
	}
	return s.db.PutCacheRow(ctx, store.CacheRow{
		Key:                 entry.Key,
		Question:            entry.Question,
		VideoIDs:            nonNil(entry.VideoIDs),
		Response:            entry.Response,
		CitedVideosJSON:     string(cited),
		RelevanceScoresJSON: string(relevance),
		Backend:             entry.Backend,
		CreatedAt:           entry.CreatedAt,
		ExpiresAt:           entry.ExpiresAt,
	})
}

func (s *SQLiteStore) Touch(ctx context.Context, key string, at time.Time) (int64, error) {
	return s.db.TouchCacheRow(ctx, key, at)
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return s.db.DeleteCacheRow(ctx, key)
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.db.DeleteExpiredCacheRows(ctx, now)
}

func (s *SQLiteStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	entries, expired, hits, err := s.db.CacheStats(ctx, now)
	if err != nil {
		return Stats{}, fmt.Errorf("sqlite cache stats: %w", err)
	}
	return Stats{Entries: entries, Expired: expired, TotalHits: hits}, nil
}
