package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"pulpit/internal/api"
	"pulpit/internal/assistant"
	"pulpit/internal/broadcast"
	"pulpit/internal/cache"
	"pulpit/internal/config"
	"pulpit/internal/deps"
	"pulpit/internal/feeds"
	"pulpit/internal/logging"
	"pulpit/internal/pipeline"
	"pulpit/internal/references"
	"pulpit/internal/scripture"
	"pulpit/internal/services"
	"pulpit/internal/store"
	"pulpit/internal/validate"
)

// LockFileName is created under paths.log_dir while a daemon runs.
const LockFileName = "pulpitd.lock"

// Asker answers questions; satisfied by *assistant.Assistant.
type Asker interface {
	Ask(ctx context.Context, req assistant.Request) (assistant.Answer, error)
}

// Dependencies are the services the daemon runs and exposes. Store and Hub
// are required; the rest are optional.
type Dependencies struct {
	Store     *store.Store
	Hub       *broadcast.Hub
	Workflow  *pipeline.Manager
	Cache     *cache.Service
	Assistant Asker
	Feeds     *feeds.Watcher
	Catalog   *scripture.Catalog
	Detector  *references.Detector
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Dependencies
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     pipeline.Summary
	QueueCounts  map[store.Status]int
	Clients      int
	DatabasePath string
	LockFilePath string
	APIBind      string
	CacheBackend string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, d Dependencies, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || d.Store == nil || d.Hub == nil {
		return nil, errors.New("daemon requires config, store, and broadcast hub")
	}
	if d.Catalog == nil {
		d.Catalog = scripture.Default()
	}
	if d.Detector == nil {
		d.Detector = references.NewDetector(d.Catalog, logger)
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	daemon := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		deps:     d,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	daemon.api = newAPIServer(cfg, daemon, logger)
	return daemon, nil
}

// Start acquires the daemon lock and launches the worker pool, heartbeat,
// cache sweeper, feed watcher and API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pulpit daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.deps.Hub.Start(runCtx)
	if d.deps.Workflow != nil {
		if err := d.deps.Workflow.Start(runCtx); err != nil {
			cancel()
			d.deps.Hub.Stop()
			_ = d.lock.Unlock()
			return fmt.Errorf("start workflow: %w", err)
		}
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		if d.deps.Workflow != nil {
			d.deps.Workflow.Stop()
		}
		d.deps.Hub.Stop()
		_ = d.lock.Unlock()
		return err
	}
	if d.deps.Cache != nil {
		d.wg.Go(func() { d.deps.Cache.RunSweeper(runCtx, d.cfg.CacheSweepInterval()) })
	}
	if d.deps.Feeds != nil && d.cfg.Feeds.Enabled {
		d.wg.Go(func() { d.deps.Feeds.Run(runCtx) })
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("pulpit daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.api.address()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.deps.Workflow != nil {
		d.deps.Workflow.Stop()
	}
	d.deps.Hub.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("pulpit daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon, disconnects status observers and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	d.deps.Hub.Close()
	return d.deps.Store.Close()
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Handler exposes the API router, for tests and embedding.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	counts, err := d.deps.Store.CountByStatus(ctx)
	if err != nil {
		return Status{}, err
	}
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueCounts:  counts,
		Clients:      d.deps.Hub.ClientCount(),
		DatabasePath: d.deps.Store.Path(),
		LockFilePath: d.lockPath,
		APIBind:      d.api.address(),
		CacheBackend: d.cfg.Cache.Backend,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if d.deps.Workflow != nil {
		status.Workflow = d.deps.Workflow.Status()
	}
	return status, nil
}

// Enqueue validates and stores a video for ingestion, then wakes the
// workers. The external id is derived from the URL when absent.
func (d *Daemon) Enqueue(ctx context.Context, req api.EnqueueRequest) (*store.Video, bool, error) {
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	if err := validate.Struct(req); err != nil {
		return nil, false, services.Wrap(services.ErrValidation, "ingest", "validate request", err.Error(), nil)
	}
	if req.ExternalID == "" {
		req.ExternalID = feeds.VideoIDFromURL(req.SourceURL)
		if req.ExternalID == "" {
			return nil, false, services.Wrap(services.ErrValidation, "ingest", "resolve video id",
				fmt.Sprintf("no video id in %q", req.SourceURL), nil)
		}
	}
	if req.SourceURL == "" {
		req.SourceURL = feeds.WatchURL(req.ExternalID)
	}
	video, created, err := d.deps.Store.Enqueue(ctx, store.NewVideo{
		ExternalID: req.ExternalID,
		SourceURL:  req.SourceURL,
		Title:      strings.TrimSpace(req.Title),
		Language:   strings.TrimSpace(req.Language),
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		d.logger.Info("video queued",
			logging.String(logging.FieldEventType, "video_enqueued"),
			logging.VideoID(video.ID),
			logging.String("external_id", video.ExternalID),
		)
		d.deps.Hub.Broadcast(broadcast.StatusEvent(video.ID, video.ExternalID, string(video.Status), "queued"))
		d.wake()
	}
	return video, created, nil
}

// Reingest discards a video's transcript and annotations and requeues it.
func (d *Daemon) Reingest(ctx context.Context, id int64) (*store.Video, error) {
	if err := d.deps.Store.Reingest(ctx, id); err != nil {
		return nil, err
	}
	video, err := d.deps.Store.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	d.logger.Info("video requeued",
		logging.String(logging.FieldEventType, "video_reingested"),
		logging.VideoID(id),
	)
	d.deps.Hub.Broadcast(broadcast.StatusEvent(video.ID, video.ExternalID, string(video.Status), "reingest requested"))
	d.wake()
	return video, nil
}

func (d *Daemon) wake() {
	if d.deps.Workflow != nil {
		d.deps.Workflow.Wake()
	}
}
