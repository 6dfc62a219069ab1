package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"pulpit/internal/captions"
	"pulpit/internal/config"
	"pulpit/internal/logging"
	"pulpit/internal/services"
	"pulpit/internal/services/transcriptapi"
	"pulpit/internal/services/whisperx"
	"pulpit/internal/services/ytdlp"
	"pulpit/internal/textutil"
)

// Request identifies the video to acquire.
type Request struct {
	VideoID     int64
	ExternalID  string
	SourceURL   string
	Language    string
	MaxDuration time.Duration
}

// URL returns SourceURL, or a watch URL built from ExternalID.
func (r Request) URL() string {
	if r.SourceURL != "" {
		return r.SourceURL
	}
	return "https://www.youtube.com/watch?v=" + r.ExternalID
}

// Result is the winning transcript with video metadata.
type Result struct {
	Text        string
	Source      string
	WordCount   int
	CharCount   int
	Language    string
	Cues        []captions.Cue
	Title       string
	Channel     string
	Duration    time.Duration
	PublishedAt time.Time
	Attempts    []Attempt
}

// MetadataFetcher returns video metadata without downloading media.
type MetadataFetcher interface {
	Metadata(ctx context.Context, url string) (ytdlp.Metadata, error)
}

// Stage is a source with its timeout. A zero timeout means no limit
// beyond the caller's context.
type Stage struct {
	Source  Source
	Timeout time.Duration
}

// ScratchPrefix starts the name of every per-run directory created under
// the work directory.
const ScratchPrefix = "acquire-"

// Options tune a Coordinator.
type Options struct {
	WorkDir         string
	MetadataTimeout time.Duration
}

// Coordinator runs metadata checks and the source chain.
type Coordinator struct {
	metadata        MetadataFetcher
	stages          []Stage
	workDir         string
	metadataTimeout time.Duration
	logger          *slog.Logger
}

// New builds a coordinator from explicit collaborators.
func New(metadata MetadataFetcher, stages []Stage, opts Options, logger *slog.Logger) *Coordinator {
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 5 * time.Second
	}
	return &Coordinator{
		metadata:        metadata,
		stages:          stages,
		workDir:         opts.WorkDir,
		metadataTimeout: opts.MetadataTimeout,
		logger:          logging.NewComponentLogger(logger, "acquisition"),
	}
}

// NewFromConfig wires yt-dlp, the transcript service and WhisperX in the
// configured source order. runner overrides how external binaries run.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, runner services.CommandRunner) *Coordinator {
	acq := cfg.Acquisition
	yt := ytdlp.New(acq.YtDlpBinary)
	yt.WithCommandRunner(runner)
	asr := whisperx.NewService(whisperx.Config{
		Model:       cfg.WhisperX.Model,
		CUDAEnabled: cfg.WhisperX.CUDAEnabled,
		VADMethod:   cfg.WhisperX.VADMethod,
		HFToken:     cfg.WhisperX.HFToken,
	}, acq.FFmpegBinary)
	asr.WithCommandRunner(runner)
	api := transcriptapi.New(acq.TranscriptAPIURL, acq.TranscriptAPIKey, seconds(float64(acq.TranscriptAPITimeoutSeconds)))

	var stages []Stage
	for _, name := range acq.Sources {
		switch name {
		case SourceAutoCaption:
			stages = append(stages, Stage{
				Source:  &CaptionSource{Fetcher: yt, Languages: acq.Languages, MinChars: acq.MinCaptionChars},
				Timeout: seconds(float64(acq.CaptionTimeoutSeconds)),
			})
		case SourceTranscriptAPI:
			if !api.Configured() {
				continue
			}
			stages = append(stages, Stage{
				Source:  &TranscriptAPISource{Client: api, Languages: acq.Languages},
				Timeout: seconds(float64(acq.TranscriptAPITimeoutSeconds)),
			})
		case SourceSpeechToText:
			stages = append(stages, Stage{
				Source:  &SpeechSource{Downloader: yt, Transcriber: asr},
				Timeout: seconds(float64(acq.ASRTimeoutSeconds)),
			})
		}
	}
	return New(yt, stages, Options{
		WorkDir:         cfg.Paths.WorkDir,
		MetadataTimeout: seconds(float64(acq.MetadataTimeoutSeconds)),
	}, logger)
}

// Sources returns the configured source names in order.
func (c *Coordinator) Sources() []string {
	names := make([]string, len(c.stages))
	for i, st := range c.stages {
		names[i] = st.Source.Name()
	}
	return names
}

// Acquire fetches metadata, enforces the duration cap and runs sources in
// order. On ErrTooLong the returned Result still carries metadata.
func (c *Coordinator) Acquire(ctx context.Context, req Request) (Result, error) {
	logger := logging.WithContext(ctx, c.logger)
	var result Result

	metaCtx, cancel := context.WithTimeout(ctx, c.metadataTimeout)
	meta, err := c.metadata.Metadata(metaCtx, req.URL())
	cancel()
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "acquisition", "metadata", req.ExternalID, err)
	}
	result.Title = meta.Title
	result.Channel = meta.ChannelName()
	result.Duration = meta.Duration()
	result.Language = meta.Language
	if published, ok := meta.PublishedAt(); ok {
		result.PublishedAt = published
	}

	if req.MaxDuration > 0 && result.Duration > req.MaxDuration {
		logger.Info("video exceeds duration cap",
			logging.String(logging.FieldEventType, "acquisition_too_long"),
			logging.Duration("duration", result.Duration),
			logging.Duration("max_duration", req.MaxDuration),
		)
		return result, tooLong(result.Duration, req.MaxDuration)
	}
	if req.Language == "" {
		req.Language = meta.Language
	}

	if c.workDir != "" {
		if err := os.MkdirAll(c.workDir, 0o755); err != nil {
			return result, services.Wrap(services.ErrConfiguration, "acquisition", "work dir", c.workDir, err)
		}
	}
	scratch, err := os.MkdirTemp(c.workDir, ScratchPrefix+textutil.SanitizeToken(req.ExternalID)+"-")
	if err != nil {
		return result, services.Wrap(services.ErrConfiguration, "acquisition", "scratch dir", "", err)
	}
	defer os.RemoveAll(scratch)

	for _, stage := range c.stages {
		name := stage.Source.Name()
		logger.Info("trying transcript source",
			logging.String(logging.FieldEventType, "acquisition_source_attempt"),
			logging.String(logging.FieldSource, name),
		)
		started := time.Now()
		transcript, err := c.runStage(ctx, stage, req, scratch)
		elapsed := time.Since(started)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Attempts = append(result.Attempts, Attempt{Source: name, Elapsed: elapsed, Err: err})
			logger.Info("transcript source rejected",
				logging.String(logging.FieldEventType, "acquisition_source_rejected"),
				logging.String(logging.FieldSource, name),
				logging.Duration("elapsed", elapsed),
				logging.String("reason", err.Error()),
			)
			continue
		}
		result.Attempts = append(result.Attempts, Attempt{Source: name, Elapsed: elapsed})
		result.Text = transcript.Text
		result.Source = name
		result.Cues = transcript.Cues
		result.WordCount = textutil.WordCount(transcript.Text)
		result.CharCount = utf8.RuneCountInString(transcript.Text)
		if transcript.Language != "" {
			result.Language = transcript.Language
		} else if result.Language == "" {
			result.Language = req.Language
		}
		logger.Info("transcript source selected",
			logging.String(logging.FieldEventType, "acquisition_source_selected"),
			logging.String(logging.FieldSource, name),
			logging.Duration("elapsed", elapsed),
			logging.Int("words", result.WordCount),
			logging.String("language", result.Language),
		)
		return result, nil
	}

	exhausted := &ExhaustedError{Attempts: result.Attempts}
	logging.WarnWithContext(logger, "no transcript source succeeded", "acquisition_exhausted",
		logging.Int("attempts", len(result.Attempts)),
		logging.Error(exhausted),
		logging.String(logging.FieldErrorHint, "check yt-dlp, the transcript service and whisperx; reingest once fixed"),
		logging.String(logging.FieldImpact, "video marked failed"),
	)
	return result, exhausted
}

func (c *Coordinator) runStage(ctx context.Context, stage Stage, req Request, scratch string) (Transcript, error) {
	stageCtx := ctx
	if stage.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}
	transcript, err := stage.Source.Fetch(stageCtx, req, scratch)
	if err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return transcript, fmt.Errorf("%w: %s after %s", services.ErrTimeout, stage.Source.Name(), stage.Timeout)
	}
	return transcript, err
}
