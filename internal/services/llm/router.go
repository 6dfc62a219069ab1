package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pulpit/internal/config"
	"pulpit/internal/logging"
)

// ErrNoBackend is returned when no configured backend is available.
var ErrNoBackend = errors.New("no llm backend configured")

// Params tunes one generation request. System is an optional system
// prompt; JSON requests a JSON object response.
type Params struct {
	MaxTokens   int
	Temperature float64
	System      string
	JSON        bool
}

// Completion is generated text and the backend that produced it.
type Completion struct {
	Text       string
	Backend    string
	TokensUsed int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (Completion, error)
}

// Backend is a named Generator the Router can try.
type Backend interface {
	Generator
	Name() string
	Configured() bool
}

// Router tries backends in order and returns the first success.
type Router struct {
	backends []Backend
	logger   *slog.Logger
}

// NewRouter builds a router over backends in priority order.
func NewRouter(logger *slog.Logger, backends ...Backend) *Router {
	return &Router{backends: backends, logger: logging.NewComponentLogger(logger, "llm")}
}

// NewRouterFromConfig builds a primary then secondary router from cfg.
// Backends without an API key are kept but skipped at call time.
func NewRouterFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Router {
	return NewRouter(logger,
		NewClient(clientConfig(cfg.LLM.Primary, "primary"), opts...),
		NewClient(clientConfig(cfg.LLM.Secondary, "secondary"), opts...),
	)
}

func clientConfig(b config.LLMBackend, fallbackName string) Config {
	name := b.Name
	if name == "" {
		name = fallbackName
	}
	return Config{
		Name:           name,
		APIKey:         b.APIKey,
		BaseURL:        b.BaseURL,
		Model:          b.Model,
		Referer:        b.Referer,
		Title:          b.Title,
		TimeoutSeconds: b.TimeoutSeconds,
	}
}

// Available reports whether any backend is configured.
func (r *Router) Available() bool {
	for _, b := range r.backends {
		if b.Configured() {
			return true
		}
	}
	return false
}

// Generate tries each configured backend in order. The error from the
// last attempted backend is returned when all fail.
func (r *Router) Generate(ctx context.Context, prompt string, params Params) (Completion, error) {
	var errs []error
	for i, backend := range r.backends {
		if !backend.Configured() {
			continue
		}
		completion, err := backend.Generate(ctx, prompt, params)
		if err == nil {
			if completion.Backend == "" {
				completion.Backend = backend.Name()
			}
			return completion, nil
		}
		if ctx.Err() != nil {
			return Completion{}, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		if i < len(r.backends)-1 {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "llm backend failed; trying next", "llm_backend_fallback",
				logging.String("backend", backend.Name()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the backend api key and model"),
				logging.String(logging.FieldImpact, "answer generated by a lower priority backend"),
			)
		}
	}
	if len(errs) == 0 {
		return Completion{}, ErrNoBackend
	}
	return Completion{}, errors.Join(errs...)
}
