package cache

import (
	"context"
	"time"
)

// CitedVideo identifies a sermon referenced by a cached answer.
type CitedVideo struct {
	VideoID    int64   `json:"video_id"`
	Title      string  `json:"title"`
	ExternalID string  `json:"external_id"`
	Timestamp  float64 `json:"timestamp"`
}

// Entry is a cached assistant response.
type Entry struct {
	Key             string
	Question        string
	VideoIDs        []int64
	Response        string
	CitedVideos     []CitedVideo
	RelevanceScores []float64
	Backend         string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	HitCount        int64
	LastAccessed    time.Time
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Stats summarizes cache contents.
type Stats struct {
	Entries   int64
	Expired   int64
	TotalHits int64
}

// Store is the persistence contract for cache entries.
//
// Get returns (nil, nil) when the key is absent. Put must overwrite an
// existing entry with the same key. Touch increments the hit counter, records
// the access time, and returns the new count.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
	Touch(ctx context.Context, key string, at time.Time) (int64, error)
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context, now time.Time) (Stats, error)
}
