package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pulpit/internal/acquisition"
	"pulpit/internal/config"
	"pulpit/internal/logging"
	"pulpit/internal/staging"
	"pulpit/internal/store"
)

// staleScratchAge is how old an acquisition scratch directory must be
// before Start reclaims it.
const staleScratchAge = 6 * time.Hour

// VideoProcessor handles one claimed video.
type VideoProcessor interface {
	Process(ctx context.Context, video *store.Video) error
}

// Summary is a point-in-time view of the worker pool.
type Summary struct {
	Running   bool
	Workers   int
	Active    int
	Processed int
	Failed    int
	LastError string
	LastVideo *store.Video
}

// Manager runs workers that drain the pending queue.
type Manager struct {
	store        *store.Store
	processor    VideoProcessor
	workers      int
	pollInterval time.Duration
	workDir      string
	logger       *slog.Logger
	wake         chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	active    int
	processed int
	failed    int
	lastErr   error
	lastVideo *store.Video
}

// NewManager builds a pool sized by [workflow].
func NewManager(cfg *config.Config, st *store.Store, processor VideoProcessor, logger *slog.Logger) *Manager {
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	poll := cfg.PollInterval()
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Manager{
		store:        st,
		processor:    processor,
		workers:      workers,
		pollInterval: poll,
		workDir:      cfg.Paths.WorkDir,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		wake:         make(chan struct{}, workers),
	}
}

// Start resets videos stranded in processing and launches the workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.mu.Unlock()

	recovered, err := m.store.ResetProcessing(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		m.logger.Info("requeued interrupted videos",
			logging.String(logging.FieldEventType, "workflow_recovered"),
			logging.Int64("videos", recovered),
		)
	}
	staging.CleanStale(ctx, m.workDir, acquisition.ScratchPrefix, staleScratchAge, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	for i := range m.workers {
		go m.runWorker(runCtx, m.logger.With(logging.Int("worker", i)))
	}
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.Int("workers", m.workers),
	)
	return nil
}

// Stop cancels the workers and waits for in-flight videos to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wake nudges idle workers after new videos are enqueued.
func (m *Manager) Wake() {
	for range m.workers {
		select {
		case m.wake <- struct{}{}:
		default:
			return
		}
	}
}

// Status reports pool counters.
func (m *Manager) Status() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := Summary{
		Running:   m.running,
		Workers:   m.workers,
		Active:    m.active,
		Processed: m.processed,
		Failed:    m.failed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastVideo != nil {
		copy := *m.lastVideo
		summary.LastVideo = &copy
	}
	return summary
}

// Drain processes pending videos on the calling goroutine until none remain
// and returns how many were processed.
func (m *Manager) Drain(ctx context.Context) (int, error) {
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		video, err := m.store.ClaimNext(ctx)
		if err != nil {
			return count, err
		}
		if video == nil {
			return count, nil
		}
		m.process(ctx, video)
		count++
	}
}

func (m *Manager) runWorker(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		video, err := m.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next video",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			m.idle(ctx)
			continue
		}
		if video == nil {
			m.idle(ctx)
			continue
		}
		m.process(ctx, video)
	}
}

func (m *Manager) process(ctx context.Context, video *store.Video) {
	m.mu.Lock()
	m.active++
	m.mu.Unlock()

	err := m.processor.Process(ctx, video)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
	copy := *video
	m.lastVideo = &copy
	switch {
	case err == nil:
		m.processed++
	case errors.Is(err, context.Canceled):
	default:
		m.failed++
		m.lastErr = err
	}
}

func (m *Manager) idle(ctx context.Context) {
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-timer.C:
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
