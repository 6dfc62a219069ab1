package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const cacheColumns = "key, question, video_ids_json, response, cited_videos_json, relevance_scores_json, backend, created_at, expires_at, hit_count, last_accessed"

func unixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

// GetCacheRow returns the row for key, or nil when absent.
func (s *Store) GetCacheRow(ctx context.Context, key string) (*CacheRow, error) {
	var (
		row          CacheRow
		idsRaw       string
		backend      sql.NullString
		created      sql.NullInt64
		expires      sql.NullInt64
		lastAccessed sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+cacheColumns+` FROM response_cache WHERE key = ?`, key).Scan(
		&row.Key, &row.Question, &idsRaw, &row.Response, &row.CitedVideosJSON, &row.RelevanceScoresJSON,
		&backend, &created, &expires, &row.HitCount, &lastAccessed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache row: %w", err)
	}
	if err := json.Unmarshal([]byte(idsRaw), &row.VideoIDs); err != nil {
		return nil, fmt.Errorf("decode cache video ids: %w", err)
	}
	row.Backend = backend.String
	row.CreatedAt = fromMillis(created)
	row.ExpiresAt = fromMillis(expires)
	row.LastAccessed = fromMillis(lastAccessed)
	return &row, nil
}

// PutCacheRow inserts or overwrites the row for row.Key. Overwriting resets
// hit tracking.
func (s *Store) PutCacheRow(ctx context.Context, row CacheRow) error {
	ids := row.VideoIDs
	if ids == nil {
		ids = []int64{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode cache video ids: %w", err)
	}
	cited := row.CitedVideosJSON
	if cited == "" {
		cited = "[]"
	}
	scores := row.RelevanceScoresJSON
	if scores == "" {
		scores = "[]"
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO response_cache (`+cacheColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
        ON CONFLICT(key) DO UPDATE SET
            question = excluded.question,
            video_ids_json = excluded.video_ids_json,
            response = excluded.response,
            cited_videos_json = excluded.cited_videos_json,
            relevance_scores_json = excluded.relevance_scores_json,
            backend = excluded.backend,
            created_at = excluded.created_at,
            expires_at = excluded.expires_at,
            hit_count = 0,
            last_accessed = NULL`,
		row.Key, row.Question, string(idsJSON), row.Response, cited, scores,
		nullableString(row.Backend), unixMillis(row.CreatedAt), unixMillis(row.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put cache row: %w", err)
	}
	return nil
}

// TouchCacheRow increments the hit count and records the access time. It
// returns the new hit count, or ErrNotFound when the row vanished.
func (s *Store) TouchCacheRow(ctx context.Context, key string, at time.Time) (int64, error) {
	var hits int64
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`UPDATE response_cache SET hit_count = hit_count + 1, last_accessed = ? WHERE key = ? RETURNING hit_count`,
			unixMillis(at), key,
		).Scan(&hits)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("cache row %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("touch cache row: %w", err)
	}
	return hits, nil
}

// DeleteCacheRow removes the row for key.
func (s *Store) DeleteCacheRow(ctx context.Context, key string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM response_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache row: %w", err)
	}
	return nil
}

// DeleteExpiredCacheRows removes rows whose expiry is before now.
func (s *Store) DeleteExpiredCacheRows(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM response_cache WHERE expires_at < ?`, unixMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired cache rows: %w", err)
	}
	return res.RowsAffected()
}

// CacheStats counts rows, expired rows and total hits.
func (s *Store) CacheStats(ctx context.Context, now time.Time) (entries, expired, hits int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at < ? THEN 1 ELSE 0 END), 0), COALESCE(SUM(hit_count), 0)
        FROM response_cache`, unixMillis(now),
	).Scan(&entries, &expired, &hits)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("cache stats: %w", err)
	}
	return entries, expired, hits, nil
}
