package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"

	"pulpit/internal/api"
	"pulpit/internal/assistant"
	"pulpit/internal/broadcast"
	"pulpit/internal/config"
	"pulpit/internal/logging"
	"pulpit/internal/scripture"
	"pulpit/internal/services"
	"pulpit/internal/store"
	"pulpit/internal/validate"
)

const maxBodyBytes = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.handler = srv.routes(cfg)
	return srv
}

func (s *apiServer) routes(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, requestID, chimw.Recoverer)
	if len(cfg.Paths.CORSOrigins) > 0 {
		r.Use(chicors.Handler(chicors.Options{
			AllowedOrigins: cfg.Paths.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}))
	}
	auth := authMiddleware(cfg.Paths.APIToken)

	r.Get("/api/status", s.handleStatus)
	r.Route("/api/videos", func(r chi.Router) {
		r.Get("/", s.handleListVideos)
		r.With(auth).Post("/", s.handleEnqueue)
		r.Get("/{id}", s.handleVideo)
		r.With(auth).Post("/{id}/reingest", s.handleReingest)
	})
	r.Get("/api/passages", s.handlePassages)
	r.With(auth).Post("/api/ask", s.handleAsk)
	r.With(auth).Post("/api/events", s.handleEvent)
	r.Handle("/ws/status", broadcast.NewWebSocketHandler(s.daemon.deps.Hub, broadcast.WebSocketOptions{
		AllowedOrigins: cfg.Paths.CORSOrigins,
	}, s.logger))
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	server := s.server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that "+s.bind+" is free"),
			)
		}
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	s.listener = nil
}

// address is the bound address once listening, else the configured bind.
func (s *apiServer) address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	depStatuses := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		depStatuses[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	wf := status.Workflow
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		APIBind:      status.APIBind,
		QueueCounts:  api.QueueCounts(status.QueueCounts),
		Clients:      status.Clients,
		CacheBackend: status.CacheBackend,
		Workflow: api.WorkflowStatus{
			Running:   wf.Running,
			Workers:   wf.Workers,
			Active:    wf.Active,
			Processed: int64(wf.Processed),
			Failed:    int64(wf.Failed),
			LastError: wf.LastError,
			LastVideo: wf.LastVideo,
		},
		Dependencies: depStatuses,
	})
}

func (s *apiServer) handleListVideos(w http.ResponseWriter, r *http.Request) {
	var statuses []store.Status
	for _, value := range r.URL.Query()["status"] {
		for part := range strings.SplitSeq(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			status, ok := store.ParseStatus(trimmed)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
				return
			}
			statuses = append(statuses, status)
		}
	}
	videos, err := s.daemon.deps.Store.ListVideos(r.Context(), statuses...)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoListResponse{Videos: api.FromVideos(videos)})
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if !s.decode(w, r, &req) {
		return
	}
	video, created, err := s.daemon.Enqueue(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	s.writeJSON(w, code, api.EnqueueResponse{Video: api.FromVideo(video), Created: created})
}

func (s *apiServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.videoID(w, r)
	if !ok {
		return
	}
	detail, err := api.LoadVideoDetail(r.Context(), s.daemon.deps.Store, id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleReingest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.videoID(w, r)
	if !ok {
		return
	}
	video, err := s.daemon.Reingest(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromVideo(video))
}

func (s *apiServer) handlePassages(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("ref"))
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "ref is required")
		return
	}
	ref, err := s.daemon.deps.Detector.Resolve(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hits, err := s.daemon.deps.Store.FindVideosByPassage(r.Context(), api.PassageQuery(ref))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PassageSearchResponse{
		Reference: scripture.FormatOSIS(ref),
		Matches:   api.FromPassageHits(hits),
	})
}

func (s *apiServer) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.daemon.deps.Assistant == nil {
		s.writeError(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}
	var req api.AskRequest
	if !s.decode(w, r, &req) {
		return
	}
	answer, err := s.daemon.deps.Assistant.Ask(r.Context(), assistant.Request{Question: req.Question, VideoIDs: req.VideoIDs})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, answer)
}

func (s *apiServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	var event broadcast.Event
	if !s.decode(w, r, &event) {
		return
	}
	if event.Type == "" {
		event.Type = broadcast.TypeStatus
	}
	delivered := s.daemon.deps.Hub.Broadcast(event)
	s.writeJSON(w, http.StatusAccepted, api.EventAck{Delivered: delivered})
}

func (s *apiServer) videoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid video id")
		return 0, false
	}
	return id, true
}

// decode reads a JSON body into dst and validates it.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeFailure maps classified errors to status codes.
func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		s.writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorHint, "see the daemon log for the failing component"),
			logging.String(logging.FieldImpact, "the client received a 500 response"),
		)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
