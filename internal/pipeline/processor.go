package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pulpit/internal/acquisition"
	"pulpit/internal/broadcast"
	"pulpit/internal/config"
	"pulpit/internal/logging"
	"pulpit/internal/quality"
	"pulpit/internal/references"
	"pulpit/internal/segment"
	"pulpit/internal/services"
	"pulpit/internal/store"
	"pulpit/internal/themes"
)

// Acquirer obtains a transcript for one video.
type Acquirer interface {
	Acquire(ctx context.Context, req acquisition.Request) (acquisition.Result, error)
}

// Dependencies are the collaborators a Processor needs. Nil detector,
// tagger and notifier take defaults.
type Dependencies struct {
	Store    *store.Store
	Acquirer Acquirer
	Detector *references.Detector
	Tagger   *themes.Tagger
	Notifier broadcast.Notifier
}

// Processor runs the per-video pipeline.
type Processor struct {
	store       *store.Store
	acquirer    Acquirer
	detector    *references.Detector
	tagger      *themes.Tagger
	notifier    broadcast.Notifier
	policy      quality.Policy
	bounds      segment.Bounds
	marker      string
	maxDuration time.Duration
	logger      *slog.Logger
}

// PolicyFromConfig builds the scoring policy from the [quality] section.
func PolicyFromConfig(cfg *config.Config) quality.Policy {
	q := cfg.Quality
	return quality.DefaultPolicy().
		WithBases(q.AutoCaptionBase, q.TranscriptAPIBase, q.SpeechToTextBase).
		WithThresholds(q.HighThreshold, q.MediumThreshold)
}

// BoundsFromConfig reads the [segmenter] section.
func BoundsFromConfig(cfg *config.Config) segment.Bounds {
	return segment.Bounds{
		Target: cfg.Segmenter.TargetWords,
		Min:    cfg.Segmenter.MinWords,
		Max:    cfg.Segmenter.MaxWords,
	}
}

// NewTaggerFromConfig loads the configured theme dictionary.
func NewTaggerFromConfig(cfg *config.Config) (*themes.Tagger, error) {
	dict, err := themes.LoadDictionary(cfg.Themes.DictionaryPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "themes", "load dictionary", cfg.Themes.DictionaryPath, err)
	}
	return themes.NewTagger(dict, cfg.Themes.MinScore, themes.WithMaxTimestamps(cfg.Themes.MaxTimestamps))
}

// NewProcessor validates the configuration and assembles a processor.
func NewProcessor(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Processor, error) {
	if deps.Store == nil || deps.Acquirer == nil {
		return nil, errors.New("pipeline: store and acquirer are required")
	}
	bounds := BoundsFromConfig(cfg)
	if err := bounds.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "segmenter", "bounds", "", err)
	}
	tagger := deps.Tagger
	if tagger == nil {
		var err error
		if tagger, err = NewTaggerFromConfig(cfg); err != nil {
			return nil, err
		}
	}
	detector := deps.Detector
	if detector == nil {
		detector = references.NewDetector(nil, logger)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = broadcast.NopNotifier{}
	}
	return &Processor{
		store:       deps.Store,
		acquirer:    deps.Acquirer,
		detector:    detector,
		tagger:      tagger,
		notifier:    notifier,
		policy:      PolicyFromConfig(cfg),
		bounds:      bounds,
		marker:      cfg.Segmenter.ContinuationMarker,
		maxDuration: time.Duration(cfg.Acquisition.MaxDurationSeconds) * time.Second,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Process runs one claimed video to a terminal status. The returned error
// is the acquisition or storage failure that ended the video; a cancelled
// context returns without touching the status so the video is picked up
// again after restart.
func (p *Processor) Process(ctx context.Context, video *store.Video) error {
	ctx = services.WithVideoID(ctx, video.ID)
	ctx = services.WithStage(ctx, "acquisition")
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()

	p.notify(ctx, video, store.StatusProcessing, "")

	result, err := p.acquirer.Acquire(ctx, acquisition.Request{
		VideoID:     video.ID,
		ExternalID:  video.ExternalID,
		SourceURL:   video.SourceURL,
		Language:    video.Language,
		MaxDuration: p.maxDuration,
	})
	if metaErr := p.store.UpdateMetadata(ctx, video.ID, store.Metadata{
		Title:           result.Title,
		Channel:         result.Channel,
		DurationSeconds: int(result.Duration.Seconds()),
		Language:        result.Language,
		PublishedAt:     result.PublishedAt,
	}); metaErr != nil {
		logging.WarnWithContext(logger, "failed to record video metadata", "metadata_update_failed",
			logging.Error(metaErr),
			logging.String(logging.FieldImpact, "title and duration may be stale"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.fail(ctx, logger, video, err)
	}

	assessment := p.policy.Score(result.Text, result.Source, result.WordCount)
	if err := p.store.SaveTranscript(ctx, store.Transcript{
		VideoID:         video.ID,
		Source:          result.Source,
		Text:            result.Text,
		WordCount:       result.WordCount,
		CharCount:       result.CharCount,
		ConfidenceScore: assessment.Confidence,
		AudioQuality:    string(assessment.Tier),
		Factors:         assessment.Factors.Map(),
		Language:        result.Language,
	}); err != nil {
		return p.fail(ctx, logger, video, err)
	}
	logger.Info("transcript stored",
		logging.String(logging.FieldEventType, "transcript_scored"),
		logging.String(logging.FieldSource, result.Source),
		logging.Float64("confidence", assessment.Confidence),
		logging.String("tier", string(assessment.Tier)),
		logging.Int("words", result.WordCount),
	)

	p.annotate(services.WithStage(ctx, "annotation"), video, result)

	summary := fmt.Sprintf("%s, confidence %.2f", result.Source, assessment.Confidence)
	if err := p.store.MarkStatus(ctx, video.ID, store.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	logger.Info("video completed",
		logging.String(logging.FieldEventType, "video_completed"),
		logging.Duration("elapsed", time.Since(started)),
	)
	p.notify(ctx, video, store.StatusCompleted, summary)
	return nil
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, video *store.Video, err error) error {
	status := services.FailureStatus(err)
	if markErr := p.store.MarkStatus(ctx, video.ID, status, err.Error()); markErr != nil {
		return errors.Join(err, fmt.Errorf("mark %s: %w", status, markErr))
	}
	if status == store.StatusTooLong {
		logger.Info("video skipped by duration policy",
			logging.String(logging.FieldEventType, "video_too_long"),
			logging.String("reason", err.Error()),
		)
	} else {
		logging.WarnWithContext(logger, "video processing failed", "video_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "video has no transcript"),
			logging.String(logging.FieldErrorHint, "fix the cause then run pulpit videos reingest"),
		)
	}
	p.notify(ctx, video, status, err.Error())
	return err
}

// annotate segments, detects and tags. Failures here never fail the video.
func (p *Processor) annotate(ctx context.Context, video *store.Video, result acquisition.Result) {
	logger := logging.WithContext(ctx, p.logger)

	segments, err := segment.Split(result.Text, p.bounds, p.marker)
	if err == nil {
		rows := make([]store.Segment, 0, len(segments))
		for i, seg := range segments {
			rows = append(rows, store.Segment{
				VideoID:   video.ID,
				Ordinal:   i,
				Text:      seg.Text,
				StartWord: seg.StartWord,
				EndWord:   seg.EndWord,
			})
		}
		err = p.store.ReplaceSegments(ctx, video.ID, rows)
	}
	if err != nil {
		annotationFailed(logger, "segments", err)
	}

	matches := p.detector.Detect(result.Text)
	passages := references.Passages(matches)
	var tagged []themes.Theme
	if len(result.Cues) > 0 {
		tagged = p.tagger.TagCues(result.Cues)
	} else {
		tagged = p.tagger.Tag(result.Text)
	}
	if err := p.store.ReplaceAnnotations(ctx, video.ID, passageRows(video.ID, passages), themeRows(video.ID, tagged)); err != nil {
		annotationFailed(logger, "passages and themes", err)
		return
	}
	logger.Info("transcript annotated",
		logging.String(logging.FieldEventType, "annotation_complete"),
		logging.Int("segments", len(segments)),
		logging.Int("references", len(matches)),
		logging.Int("passages", len(passages)),
		logging.Int("themes", len(tagged)),
	)
}

func annotationFailed(logger *slog.Logger, what string, err error) {
	logging.WarnWithContext(logger, "annotation failed", "annotation_failed",
		logging.String("annotation", what),
		logging.Error(err),
		logging.String(logging.FieldImpact, "video completes without "+what),
		logging.String(logging.FieldErrorHint, "run pulpit videos reingest once resolved"),
	)
}

func passageRows(videoID int64, passages []references.Passage) []store.Passage {
	rows := make([]store.Passage, 0, len(passages))
	for _, p := range passages {
		rows = append(rows, store.Passage{
			VideoID:     videoID,
			Book:        p.Book,
			Code:        p.Code,
			Chapter:     p.Chapter,
			VerseStart:  p.VerseStart,
			VerseEnd:    p.VerseEnd,
			PassageType: string(p.Type),
			Count:       p.Count,
		})
	}
	return rows
}

func themeRows(videoID int64, tagged []themes.Theme) []store.Theme {
	rows := make([]store.Theme, 0, len(tagged))
	for _, t := range tagged {
		rows = append(rows, store.Theme{VideoID: videoID, Tag: t.Tag, Score: t.Score, Timestamps: t.Timestamps})
	}
	return rows
}

func (p *Processor) notify(ctx context.Context, video *store.Video, status store.Status, message string) {
	p.notifier.Notify(ctx, broadcast.StatusEvent(video.ID, video.ExternalID, string(status), message))
}
