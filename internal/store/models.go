package store

import "time"

// Status is the processing state of a video.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTooLong    Status = "too_long"
	StatusSkipped    Status = "skipped"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusTooLong, StatusSkipped}

// ParseStatus validates a status name.
func ParseStatus(value string) (Status, bool) {
	for _, status := range Statuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether the pipeline will not touch the video again
// without an explicit reingest.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTooLong, StatusSkipped:
		return true
	default:
		return false
	}
}

// Video is one catalog entry.
type Video struct {
	ID              int64
	ExternalID      string
	SourceURL       string
	Title           string
	Channel         string
	DurationSeconds int
	Language        string
	Status          Status
	ErrorMessage    string
	PublishedAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewVideo carries the fields known at ingestion time.
type NewVideo struct {
	ExternalID  string
	SourceURL   string
	Title       string
	Channel     string
	Language    string
	PublishedAt time.Time
}

// Metadata is what acquisition learns about a video before transcription.
type Metadata struct {
	Title           string
	Channel         string
	DurationSeconds int
	Language        string
	PublishedAt     time.Time
}

// Transcript is the single accepted transcript of a video.
type Transcript struct {
	VideoID         int64
	Source          string
	Text            string
	WordCount       int
	CharCount       int
	ConfidenceScore float64
	AudioQuality    string
	Factors         map[string]float64
	Language        string
	CreatedAt       time.Time
}

// Segment is a retrieval chunk of a transcript. EndWord is exclusive.
type Segment struct {
	VideoID   int64
	Ordinal   int
	Text      string
	StartWord int
	EndWord   int
}

// Passage is a scripture reference detected in a transcript. Chapter 0
// denotes the whole book; a nil VerseStart denotes the whole chapter.
type Passage struct {
	VideoID     int64
	Book        string
	Code        string
	Chapter     int
	VerseStart  *int
	VerseEnd    *int
	PassageType string
	Count       int
}

// Theme is a weighted theological theme attached to a video.
type Theme struct {
	VideoID    int64
	Tag        string
	Score      float64
	Timestamps []float64
}

// PassageHit pairs a video with the stored passage that matched a query.
type PassageHit struct {
	Video   Video
	Passage Passage
}

// ThemeHit pairs a video with its score for a theme.
type ThemeHit struct {
	Video Video
	Score float64
}

// CacheRow is the persisted form of a response cache entry. JSON columns are
// kept encoded so the store stays independent of the cache package.
type CacheRow struct {
	Key                 string
	Question            string
	VideoIDs            []int64
	Response            string
	CitedVideosJSON     string
	RelevanceScoresJSON string
	Backend             string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	HitCount            int64
	LastAccessed        time.Time
}
