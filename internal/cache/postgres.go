package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS response_cache (
    key TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    video_ids JSONB NOT NULL DEFAULT '[]',
    response TEXT NOT NULL,
    cited_videos JSONB NOT NULL DEFAULT '[]',
    relevance_scores JSONB NOT NULL DEFAULT '[]',
    backend TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    hit_count BIGINT NOT NULL DEFAULT 0,
    last_accessed TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_response_cache_expires ON response_cache (expires_at);`

// PostgresStore persists entries in PostgreSQL for deployments where several
// processes share one cache.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the cache table exists.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (p *PostgresStore) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	row := p.pool.QueryRow(ctx, `SELECT key, question, video_ids, response, cited_videos, relevance_scores,
        backend, created_at, expires_at, hit_count, last_accessed
        FROM response_cache WHERE key = $1`, key)
	var (
		entry                          Entry
		videoIDs, cited, relevanceJSON []byte
	)
	err := row.Scan(&entry.Key, &entry.Question, &videoIDs, &entry.Response, &cited, &relevanceJSON,
		&entry.Backend, &entry.CreatedAt, &entry.ExpiresAt, &entry.HitCount, &entry.LastAccessed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select cache entry: %w", err)
	}
	if err := decodeJSONColumns(&entry, videoIDs, cited, relevanceJSON); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (p *PostgresStore) Put(ctx context.Context, entry Entry) error {
	videoIDs, cited, relevance, err := encodeJSONColumns(entry)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO response_cache (
            key, question, video_ids, response, cited_videos, relevance_scores,
            backend, created_at, expires_at, hit_count, last_accessed
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)
        ON CONFLICT (key) DO UPDATE SET
            question = EXCLUDED.question,
            video_ids = EXCLUDED.video_ids,
            response = EXCLUDED.response,
            cited_videos = EXCLUDED.cited_videos,
            relevance_scores = EXCLUDED.relevance_scores,
            backend = EXCLUDED.backend,
            created_at = EXCLUDED.created_at,
            expires_at = EXCLUDED.expires_at,
            hit_count = 0,
            last_accessed = EXCLUDED.last_accessed`,
		entry.Key, entry.Question, videoIDs, entry.Response, cited, relevance,
		entry.Backend, entry.CreatedAt, entry.ExpiresAt, entry.LastAccessed)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (p *PostgresStore) Touch(ctx context.Context, key string, at time.Time) (int64, error) {
	var hits int64
	err := p.pool.QueryRow(ctx, `UPDATE response_cache
        SET hit_count = hit_count + 1, last_accessed = $2
        WHERE key = $1 RETURNING hit_count`, key, at).Scan(&hits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("touch cache entry: %w", err)
	}
	return hits, nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM response_cache WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM response_cache WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var stats Stats
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*),
            COUNT(*) FILTER (WHERE expires_at < $1),
            COALESCE(SUM(hit_count), 0)
        FROM response_cache`, now).Scan(&stats.Entries, &stats.Expired, &stats.TotalHits)
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

func encodeJSONColumns(entry Entry) (videoIDs, cited, relevance []byte, err error) {
	if videoIDs, err = json.Marshal(nonNil(entry.VideoIDs)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode video ids: %w", err)
	}
	if cited, err = json.Marshal(nonNil(entry.CitedVideos)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode cited videos: %w", err)
	}
	if relevance, err = json.Marshal(nonNil(entry.RelevanceScores)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode relevance scores: %w", err)
	}
	return videoIDs, cited, relevance, nil
}

func decodeJSONColumns(entry *Entry, videoIDs, cited, relevance []byte) error {
	if len(videoIDs) > 0 {
		if err := json.Unmarshal(videoIDs, &entry.VideoIDs); err != nil {
			return fmt.Errorf("decode video ids: %w", err)
		}
	}
	if len(cited) > 0 {
		if err := json.Unmarshal(cited, &entry.CitedVideos); err != nil {
			return fmt.Errorf("decode cited videos: %w", err)
		}
	}
	if len(relevance) > 0 {
		if err := json.Unmarshal(relevance, &entry.RelevanceScores); err != nil {
			return fmt.Errorf("decode relevance scores: %w", err)
		}
	}
	return nil
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
