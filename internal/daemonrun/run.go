package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pulpit/internal/acquisition"
	"pulpit/internal/assistant"
	"pulpit/internal/broadcast"
	"pulpit/internal/cache"
	"pulpit/internal/config"
	"pulpit/internal/daemon"
	"pulpit/internal/daemonctl"
	"pulpit/internal/deps"
	"pulpit/internal/feeds"
	"pulpit/internal/logging"
	"pulpit/internal/pipeline"
	"pulpit/internal/references"
	"pulpit/internal/scripture"
	"pulpit/internal/services"
	"pulpit/internal/services/llm"
	"pulpit/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Runtime holds the wired services shared by the daemon and one-shot CLI
// commands.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *store.Store
	Cache     *cache.Service
	Hub       *broadcast.Hub
	Notifier  broadcast.Notifier
	Catalog   *scripture.Catalog
	Detector  *references.Detector
	Processor *pipeline.Processor
	Workflow  *pipeline.Manager
	Assistant *assistant.Assistant
	Generator *llm.Router
	Feeds     *feeds.Watcher

	closeCache func()
}

// Build opens the store and cache backend and wires every service. runner
// overrides how external binaries run; nil uses services.RunCommand.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, runner services.CommandRunner) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: logger, Store: st, closeCache: func() {}}

	backend, closeCache, err := cache.OpenBackend(ctx, cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open cache backend: %w", err)
	}
	rt.closeCache = closeCache
	rt.Cache = cache.NewService(backend, logger, cache.WithTTL(cfg.CacheTTL()))

	rt.Hub = broadcast.NewHubFromConfig(cfg, logger)
	rt.Notifier = broadcast.NewNotifierFromConfig(cfg, rt.Hub, logger)
	rt.Catalog = scripture.Default()
	rt.Detector = references.NewDetector(rt.Catalog, logger)

	tagger, err := pipeline.NewTaggerFromConfig(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Processor, err = pipeline.NewProcessor(cfg, pipeline.Dependencies{
		Store:    st,
		Acquirer: acquisition.NewFromConfig(cfg, logger, runner),
		Detector: rt.Detector,
		Tagger:   tagger,
		Notifier: rt.Notifier,
	}, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Workflow = pipeline.NewManager(cfg, st, rt.Processor, logger)

	rt.Generator = llm.NewRouterFromConfig(cfg, logger)
	rt.Assistant, err = assistant.NewFromConfig(cfg, st, rt.Cache, rt.Generator, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Feeds = feeds.NewWatcher(cfg, st, logger, feeds.WithOnNew(rt.Workflow.Wake))
	return rt, nil
}

// Close releases the cache backend, the hub and the store.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	if rt.Hub != nil {
		rt.Hub.Close()
	}
	if rt.closeCache != nil {
		rt.closeCache()
	}
	if rt.Store != nil {
		_ = rt.Store.Close()
	}
}

// Run starts the pulpit daemon runtime loop and blocks until a signal or
// cmdCtx cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("pulpit-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	if removed := logging.PruneLogs(logger, cfg.Paths.LogDir, "pulpit-*.log", logPath, cfg.Logging.RetentionDays, time.Now()); removed > 0 {
		logger.Info("pruned old daemon logs",
			logging.String(logging.FieldEventType, "log_retention_pruned"),
			logging.Int("removed", removed),
		)
	}
	logDependencySnapshot(logger, cfg)

	rt, err := Build(signalCtx, cfg, logger, nil)
	if err != nil {
		logger.Error("wire services", logging.Error(err))
		return err
	}
	defer rt.Close()

	d, err := daemon.New(cfg, daemon.Dependencies{
		Store:     rt.Store,
		Hub:       rt.Hub,
		Workflow:  rt.Workflow,
		Cache:     rt.Cache,
		Assistant: rt.Assistant,
		Feeds:     rt.Feeds,
		Catalog:   rt.Catalog,
		Detector:  rt.Detector,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, the api bind address and database access"),
			logging.String(logging.FieldImpact, "videos will not be processed"),
		)
		return err
	}

	pidPath := daemonctl.PIDPath(cfg)
	if err := daemonctl.WritePIDFile(pidPath); err != nil {
		d.Stop()
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("pulpit daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	d.Stop()
	if err := cmdCtx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("sources", strings.Join(cfg.Acquisition.Sources, ",")),
		logging.Bool("transcript_api_configured", strings.TrimSpace(cfg.Acquisition.TranscriptAPIURL) != ""),
		logging.Bool("llm_primary_configured", cfg.LLM.Primary.Configured()),
		logging.Bool("llm_secondary_configured", cfg.LLM.Secondary.Configured()),
		logging.String("cache_backend", cfg.Cache.Backend),
		logging.Bool("feeds_enabled", cfg.Feeds.Enabled),
		logging.Bool("whisperx_cuda", cfg.WhisperX.CUDAEnabled),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs, logging.Bool(strings.ToLower(status.Name)+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, missing := range deps.Missing(deps.CheckBinaries(deps.Requirements(cfg))) {
		logging.WarnWithContext(logger, "required binary missing", "dependency_missing",
			logging.String("binary", missing.Command),
			logging.String(logging.FieldErrorHint, "install "+missing.Name+" or set its path in [acquisition]"),
			logging.String(logging.FieldImpact, missing.Description+" will fail"),
		)
	}
}
