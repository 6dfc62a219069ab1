package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Video describes a catalog entry in a transport-friendly format.
type Video struct {
	ID              int64  `json:"id"`
	ExternalID      string `json:"external_id"`
	SourceURL       string `json:"source_url,omitempty"`
	Title           string `json:"title"`
	Channel         string `json:"channel,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	Language        string `json:"language,omitempty"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message,omitempty"`
	PublishedAt     string `json:"published_at,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// Transcript summarizes the accepted transcript without its full text.
type Transcript struct {
	Source          string             `json:"source"`
	WordCount       int                `json:"word_count"`
	CharCount       int                `json:"char_count"`
	ConfidenceScore float64            `json:"confidence_score"`
	AudioQuality    string             `json:"audio_quality"`
	Language        string             `json:"language,omitempty"`
	Factors         map[string]float64 `json:"factors,omitempty"`
}

// Passage is a detected scripture reference.
type Passage struct {
	Reference   string `json:"reference"`
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	VerseStart  *int   `json:"verse_start,omitempty"`
	VerseEnd    *int   `json:"verse_end,omitempty"`
	PassageType string `json:"passage_type"`
	Count       int    `json:"count"`
}

// Theme is a weighted theme tag.
type Theme struct {
	Tag        string    `json:"tag"`
	Score      float64   `json:"score"`
	Timestamps []float64 `json:"timestamps,omitempty"`
}

// VideoDetail bundles a video with its annotations.
type VideoDetail struct {
	Video      Video       `json:"video"`
	Transcript *Transcript `json:"transcript,omitempty"`
	Segments   int         `json:"segments"`
	Passages   []Passage   `json:"passages"`
	Themes     []Theme     `json:"themes"`
}

// PassageMatch pairs a video with the stored passage that matched a search.
type PassageMatch struct {
	Video   Video   `json:"video"`
	Passage Passage `json:"passage"`
}

// WorkflowStatus summarizes the worker pool.
type WorkflowStatus struct {
	Running   bool   `json:"running"`
	Workers   int    `json:"workers"`
	Active    int    `json:"active"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	LastError string `json:"last_error,omitempty"`
	LastVideo int64  `json:"last_video,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	APIBind      string             `json:"api_bind,omitempty"`
	QueueCounts  map[string]int     `json:"queue_counts"`
	Clients      int                `json:"clients"`
	CacheBackend string             `json:"cache_backend"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// EnqueueRequest asks the daemon to ingest a video. Either field identifies
// the video; the id is derived from the URL when absent.
type EnqueueRequest struct {
	ExternalID string `json:"external_id" validate:"required_without=SourceURL,omitempty,min=6,max=64"`
	SourceURL  string `json:"source_url" validate:"required_without=ExternalID,omitempty,url"`
	Title      string `json:"title,omitempty" validate:"max=500"`
	Language   string `json:"language,omitempty" validate:"omitempty,min=2,max=10"`
}

// EnqueueResponse reports the stored video and whether it was new.
type EnqueueResponse struct {
	Video   Video `json:"video"`
	Created bool  `json:"created"`
}

// AskRequest is a question for the assistant.
type AskRequest struct {
	Question string  `json:"question" validate:"required,max=2000"`
	VideoIDs []int64 `json:"video_ids,omitempty" validate:"max=50,dive,gt=0"`
}

// VideoListResponse wraps a collection of videos.
type VideoListResponse struct {
	Videos []Video `json:"videos"`
}

// PassageSearchResponse lists videos touching a reference.
type PassageSearchResponse struct {
	Reference string         `json:"reference"`
	Matches   []PassageMatch `json:"matches"`
}

// EventAck acknowledges an ingested status event.
type EventAck struct {
	Delivered int `json:"delivered"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
