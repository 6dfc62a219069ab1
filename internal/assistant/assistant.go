package assistant

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"pulpit/internal/cache"
	"pulpit/internal/config"
	"pulpit/internal/logging"
	"pulpit/internal/references"
	"pulpit/internal/services"
	"pulpit/internal/services/llm"
	"pulpit/internal/store"
	"pulpit/internal/themes"
)

// BackendFallback names answers built without an LLM.
const BackendFallback = "fallback"

const systemPrompt = `Você é um assistente que responde perguntas sobre sermões de uma igreja.
Responda somente com base nos trechos fornecidos. Cite o título do sermão
quando usar um trecho. Se os trechos não bastarem, diga isso. Responda no
idioma da pergunta.`

// Request is one question. VideoIDs optionally restricts the context.
type Request struct {
	Question string
	VideoIDs []int64
}

// Answer is the assistant reply.
type Answer struct {
	Question        string             `json:"question"`
	Response        string             `json:"response"`
	Backend         string             `json:"backend"`
	CitedVideos     []cache.CitedVideo `json:"cited_videos"`
	RelevanceScores []float64          `json:"relevance_scores"`
	References      []string           `json:"references,omitempty"`
	Themes          []string           `json:"themes,omitempty"`
	Cached          bool               `json:"cached"`
	HitCount        int64              `json:"hit_count,omitempty"`
	Fallback        bool               `json:"fallback"`
}

// Options bounds retrieval and generation.
type Options struct {
	MaxCandidates int
	MaxSegments   int
	MaxTokens     int
	Temperature   float64
	CacheTTL      time.Duration
}

// Assistant answers questions from stored transcripts.
type Assistant struct {
	store     *store.Store
	cache     *cache.Service
	generator llm.Generator
	detector  *references.Detector
	tagger    *themes.Tagger
	opts      Options
	logger    *slog.Logger
}

// New builds an assistant. cacheSvc may be nil to disable caching. A nil
// detector uses the default catalog; dict selects theme keywords for
// question routing.
func New(st *store.Store, cacheSvc *cache.Service, generator llm.Generator, detector *references.Detector, dict themes.Dictionary, opts Options, logger *slog.Logger) (*Assistant, error) {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 20
	}
	if opts.MaxSegments <= 0 {
		opts.MaxSegments = 6
	}
	if detector == nil {
		detector = references.NewDetector(nil, logger)
	}
	tagger, err := themes.NewTagger(dict, 0)
	if err != nil {
		return nil, err
	}
	return &Assistant{
		store:     st,
		cache:     cacheSvc,
		generator: generator,
		detector:  detector,
		tagger:    tagger,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "assistant"),
	}, nil
}

// NewFromConfig reads [assistant], [themes] and [cache].
func NewFromConfig(cfg *config.Config, st *store.Store, cacheSvc *cache.Service, generator llm.Generator, logger *slog.Logger) (*Assistant, error) {
	dict, err := themes.LoadDictionary(cfg.Themes.DictionaryPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "assistant", "load dictionary", cfg.Themes.DictionaryPath, err)
	}
	return New(st, cacheSvc, generator, nil, dict, Options{
		MaxCandidates: cfg.Assistant.MaxCandidates,
		MaxSegments:   cfg.Assistant.MaxSegments,
		MaxTokens:     cfg.Assistant.MaxTokens,
		Temperature:   cfg.Assistant.Temperature,
		CacheTTL:      cfg.CacheTTL(),
	}, logger)
}

// Ask answers a question. Errors are returned only for invalid input and
// storage failures; LLM failures degrade to FallbackAnswer.
func (a *Assistant) Ask(ctx context.Context, req Request) (Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Answer{}, services.Wrap(services.ErrValidation, "assistant", "ask", "question is required", nil)
	}
	logger := logging.WithContext(ctx, a.logger)
	key := cache.Key(question, req.VideoIDs)

	if a.cache != nil {
		if entry, ok := a.cache.Get(ctx, key); ok {
			logger.Info("answer served from cache",
				logging.String(logging.FieldEventType, "assistant_cache_hit"),
				logging.Int64("hit_count", entry.HitCount),
			)
			return Answer{
				Question:        question,
				Response:        entry.Response,
				Backend:         entry.Backend,
				CitedVideos:     entry.CitedVideos,
				RelevanceScores: entry.RelevanceScores,
				Cached:          true,
				HitCount:        entry.HitCount,
			}, nil
		}
	}

	ctxSet, err := a.retrieve(ctx, question, req.VideoIDs)
	if err != nil {
		return Answer{}, err
	}
	answer := Answer{
		Question:        question,
		CitedVideos:     ctxSet.cited,
		RelevanceScores: ctxSet.scores,
		References:      ctxSet.references,
		Themes:          ctxSet.themes,
	}
	if len(ctxSet.segments) == 0 {
		logger.Info("no transcript material for question",
			logging.String(logging.FieldEventType, "assistant_no_context"),
		)
		fb := FallbackAnswer(question, nil, nil)
		fb.References, fb.Themes = answer.References, answer.Themes
		return fb, nil
	}

	completion, err := a.generate(ctx, question, ctxSet)
	if err != nil {
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		logging.WarnWithContext(logger, "answer generation failed; returning sermon list", "assistant_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the llm backends with pulpit doctor"),
			logging.String(logging.FieldImpact, "question answered with a list of sermons"),
		)
		fb := FallbackAnswer(question, ctxSet.cited, ctxSet.scores)
		fb.References, fb.Themes = answer.References, answer.Themes
		return fb, nil
	}

	answer.Response = completion.Text
	answer.Backend = completion.Backend
	if a.cache != nil {
		if err := a.cache.Put(ctx, key, cache.PutRequest{
			Question:        question,
			VideoIDs:        req.VideoIDs,
			Response:        answer.Response,
			CitedVideos:     answer.CitedVideos,
			RelevanceScores: answer.RelevanceScores,
			Backend:         answer.Backend,
		}, a.opts.CacheTTL); err != nil {
			logging.WarnWithContext(logger, "failed to cache answer", "cache_put_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the cache backend connection"),
				logging.String(logging.FieldImpact, "the next identical question is regenerated"),
			)
		}
	}
	logger.Info("question answered",
		logging.String(logging.FieldEventType, "assistant_answered"),
		logging.String("backend", answer.Backend),
		logging.Int("tokens", completion.TokensUsed),
		logging.Int("cited", len(answer.CitedVideos)),
	)
	return answer, nil
}

func (a *Assistant) generate(ctx context.Context, question string, set contextSet) (llm.Completion, error) {
	if a.generator == nil {
		return llm.Completion{}, llm.ErrNoBackend
	}
	completion, err := a.generator.Generate(ctx, buildPrompt(question, set), llm.Params{
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
		System:      systemPrompt,
	})
	if err != nil {
		return llm.Completion{}, err
	}
	completion.Text = strings.TrimSpace(completion.Text)
	if completion.Text == "" {
		return llm.Completion{}, fmt.Errorf("%w: empty completion from %s", services.ErrValidation, completion.Backend)
	}
	return completion, nil
}

func buildPrompt(question string, set contextSet) string {
	var b strings.Builder
	b.WriteString("Trechos de sermões:\n\n")
	for i, seg := range set.segments {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, seg.title, seg.text)
	}
	if len(set.references) > 0 {
		fmt.Fprintf(&b, "Passagens citadas na pergunta: %s\n", strings.Join(set.references, ", "))
	}
	fmt.Fprintf(&b, "Pergunta: %s\n", question)
	return b.String()
}

// FallbackAnswer lists the cited sermons when no model answer is available.
func FallbackAnswer(question string, cited []cache.CitedVideo, scores []float64) Answer {
	var b strings.Builder
	if len(cited) == 0 {
		b.WriteString("Não encontrei sermões que tratem deste assunto.")
	} else {
		b.WriteString("Não foi possível gerar uma resposta agora. Estes sermões tratam do assunto:\n")
		for _, c := range cited {
			fmt.Fprintf(&b, "- %s (%s)\n", c.Title, WatchURL(c))
		}
	}
	return Answer{
		Question:        question,
		Response:        strings.TrimSpace(b.String()),
		Backend:         BackendFallback,
		CitedVideos:     nonNil(cited),
		RelevanceScores: nonNil(scores),
		Fallback:        true,
	}
}

// WatchURL links to the cited moment of a video.
func WatchURL(c cache.CitedVideo) string {
	url := "https://youtu.be/" + c.ExternalID
	if c.Timestamp >= 1 {
		url += fmt.Sprintf("?t=%d", int(c.Timestamp))
	}
	return url
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func sortByScore[T any](items []T, score func(T) float64) {
	slices.SortStableFunc(items, func(x, y T) int {
		return cmp.Compare(score(y), score(x))
	})
}
