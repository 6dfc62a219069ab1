package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pulpit/internal/logging"
)

// DefaultTTL applies when neither the service nor the caller sets one.
const DefaultTTL = 7 * 24 * time.Hour

// ErrInvalidEntry is returned by Put for entries that cannot be stored.
var ErrInvalidEntry = errors.New("invalid cache entry")

// PutRequest carries the generated answer to be cached.
type PutRequest struct {
	Question        string
	VideoIDs        []int64
	Response        string
	CitedVideos     []CitedVideo
	RelevanceScores []float64
	Backend         string
}

// Service applies TTL and hit-tracking rules on top of a Store.
type Service struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes the service.
type Option func(*Service)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a cache service over store.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "cache"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// TTL returns the default entry lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Get returns the live entry for key. Expired entries are deleted and
// reported as misses; store failures are logged and also reported as misses.
func (s *Service) Get(ctx context.Context, key string) (Entry, bool) {
	entry, err := s.store.Get(ctx, key)
	if err != nil {
		logging.WarnWithContext(s.logger, "cache lookup failed", "cache_lookup_failed",
			logging.String("cache_key", key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the cache backend connection"),
			logging.String(logging.FieldImpact, "answer will be regenerated"),
		)
		return Entry{}, false
	}
	if entry == nil {
		return Entry{}, false
	}

	now := s.now().UTC()
	if entry.Expired(now) {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Debug("expired cache entry delete failed",
				logging.String("cache_key", key),
				logging.Error(err),
			)
		}
		s.logger.Debug("cache entry expired",
			logging.String(logging.FieldEventType, "cache_expired"),
			logging.String("cache_key", key),
		)
		return Entry{}, false
	}

	hits, err := s.store.Touch(ctx, key, now)
	if err != nil {
		s.logger.Debug("cache hit tracking failed", logging.String("cache_key", key), logging.Error(err))
		hits = entry.HitCount + 1
	}
	entry.HitCount = hits
	entry.LastAccessed = now
	s.logger.Debug("cache hit",
		logging.String(logging.FieldEventType, "cache_hit"),
		logging.String("cache_key", key),
		logging.Int64("hit_count", hits),
	)
	return *entry, true
}

// Put stores an answer under key, replacing any existing entry. A zero or
// negative ttl uses the service default.
func (s *Service) Put(ctx context.Context, key string, req PutRequest, ttl time.Duration) error {
	if len(strings.TrimSpace(key)) != KeyLength {
		return fmt.Errorf("%w: key must be %d hex characters", ErrInvalidEntry, KeyLength)
	}
	if strings.TrimSpace(req.Response) == "" {
		return fmt.Errorf("%w: empty response", ErrInvalidEntry)
	}
	if len(req.RelevanceScores) != len(req.CitedVideos) {
		return fmt.Errorf("%w: %d relevance scores for %d cited videos", ErrInvalidEntry, len(req.RelevanceScores), len(req.CitedVideos))
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now().UTC()
	entry := Entry{
		Key:             key,
		Question:        strings.TrimSpace(req.Question),
		VideoIDs:        NormalizeIDs(req.VideoIDs),
		Response:        req.Response,
		CitedVideos:     req.CitedVideos,
		RelevanceScores: req.RelevanceScores,
		Backend:         req.Backend,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
		LastAccessed:    now,
	}
	if err := s.store.Put(ctx, entry); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Sweep deletes every expired entry and returns how many were removed.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cache sweep: %w", err)
	}
	if removed > 0 {
		s.logger.Info("cache sweep removed expired entries",
			logging.String(logging.FieldEventType, "cache_sweep"),
			logging.Int64("removed", removed),
		)
	}
	return removed, nil
}

// Stats reports entry counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx, s.now().UTC())
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(s.logger, "cache sweep failed", "cache_sweep_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the cache backend connection"),
					logging.String(logging.FieldImpact, "expired entries remain until the next sweep"),
				)
			}
		}
	}
}
