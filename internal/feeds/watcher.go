package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"pulpit/internal/config"
	"pulpit/internal/logging"
	"pulpit/internal/store"
)

// Entry is one video announced by a feed.
type Entry struct {
	ExternalID  string
	URL         string
	Title       string
	Channel     string
	PublishedAt time.Time
}

// Watcher polls feeds and enqueues unseen videos.
type Watcher struct {
	urls     []string
	store    *store.Store
	parser   *gofeed.Parser
	interval time.Duration
	language string
	logger   *slog.Logger
	onNew    func()
}

// Option adjusts a Watcher.
type Option func(*Watcher)

// WithHTTPClient sets the client used to fetch feeds.
func WithHTTPClient(client *http.Client) Option {
	return func(w *Watcher) {
		if client != nil {
			w.parser.Client = client
		}
	}
}

// WithOnNew registers a callback run after a poll enqueued videos.
func WithOnNew(fn func()) Option {
	return func(w *Watcher) { w.onNew = fn }
}

// NewWatcher reads the [feeds] section.
func NewWatcher(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Watcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "pulpit/0.1"
	parser.Client = &http.Client{Timeout: 30 * time.Second}
	w := &Watcher{
		urls:     append([]string(nil), cfg.Feeds.URLs...),
		store:    st,
		parser:   parser,
		interval: time.Duration(cfg.Feeds.PollIntervalMinutes) * time.Minute,
		language: cfg.Feeds.Language,
		logger:   logging.NewComponentLogger(logger, "feeds"),
	}
	if w.interval <= 0 {
		w.interval = 30 * time.Minute
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Fetch parses one feed into entries. Items without a recognizable video
// id are skipped.
func (w *Watcher) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	feed, err := w.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := itemVideoID(item)
		if id == "" {
			continue
		}
		entry := Entry{
			ExternalID: id,
			URL:        item.Link,
			Title:      strings.TrimSpace(item.Title),
			Channel:    strings.TrimSpace(feed.Title),
		}
		if entry.URL == "" {
			entry.URL = WatchURL(id)
		}
		if item.Author != nil && item.Author.Name != "" {
			entry.Channel = item.Author.Name
		}
		if item.PublishedParsed != nil {
			entry.PublishedAt = item.PublishedParsed.UTC()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Poll checks every feed once and returns how many videos were enqueued.
// A failing feed is logged and does not stop the others.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	known, err := w.store.ExternalIDs(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	var errs []error
	for _, feedURL := range w.urls {
		entries, err := w.Fetch(ctx, feedURL)
		if err != nil {
			if ctx.Err() != nil {
				return added, ctx.Err()
			}
			errs = append(errs, err)
			logging.WarnWithContext(w.logger, "feed poll failed", "feed_poll_failed",
				logging.String("feed", feedURL),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the feed url in [feeds].urls"),
				logging.String(logging.FieldImpact, "new videos from this channel are not queued"),
			)
			continue
		}
		for _, entry := range entries {
			if _, seen := known[entry.ExternalID]; seen {
				continue
			}
			_, created, err := w.store.Enqueue(ctx, store.NewVideo{
				ExternalID:  entry.ExternalID,
				SourceURL:   entry.URL,
				Title:       entry.Title,
				Channel:     entry.Channel,
				Language:    w.language,
				PublishedAt: entry.PublishedAt,
			})
			if err != nil {
				return added, err
			}
			known[entry.ExternalID] = struct{}{}
			if created {
				added++
				w.logger.Info("video queued from feed",
					logging.String(logging.FieldEventType, "feed_enqueued"),
					logging.String("external_id", entry.ExternalID),
					logging.String("title", entry.Title),
				)
			}
		}
	}
	if added > 0 && w.onNew != nil {
		w.onNew()
	}
	return added, errors.Join(errs...)
}

// Run polls immediately and then on every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	if len(w.urls) == 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Debug("feed poll finished with errors", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func itemVideoID(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		if ids := yt["videoId"]; len(ids) > 0 && strings.TrimSpace(ids[0].Value) != "" {
			return strings.TrimSpace(ids[0].Value)
		}
	}
	return VideoIDFromURL(item.Link)
}

// WatchURL returns the canonical watch page for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// VideoIDFromURL extracts the video id from watch, short-link and shorts
// URLs. A bare id is returned unchanged.
func VideoIDFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "/") && !strings.Contains(raw, ".") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	path := strings.Trim(u.Path, "/")
	switch {
	case strings.HasSuffix(u.Hostname(), "youtu.be"):
		return path
	case strings.HasPrefix(path, "shorts/"), strings.HasPrefix(path, "live/"), strings.HasPrefix(path, "embed/"):
		_, id, _ := strings.Cut(path, "/")
		return id
	}
	return ""
}
