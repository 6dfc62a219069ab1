package api

import (
	"time"

	"pulpit/internal/scripture"
	"pulpit/internal/store"
)

// FromVideo converts a store record to its API representation.
func FromVideo(v *store.Video) Video {
	if v == nil {
		return Video{}
	}
	return Video{
		ID:              v.ID,
		ExternalID:      v.ExternalID,
		SourceURL:       v.SourceURL,
		Title:           v.Title,
		Channel:         v.Channel,
		DurationSeconds: v.DurationSeconds,
		Language:        v.Language,
		Status:          string(v.Status),
		ErrorMessage:    v.ErrorMessage,
		PublishedAt:     formatTime(v.PublishedAt),
		CreatedAt:       formatTime(v.CreatedAt),
		UpdatedAt:       formatTime(v.UpdatedAt),
	}
}

// FromVideos converts a slice of store records.
func FromVideos(videos []store.Video) []Video {
	out := make([]Video, 0, len(videos))
	for i := range videos {
		out = append(out, FromVideo(&videos[i]))
	}
	return out
}

// FromTranscript converts a transcript to its summary; nil stays nil.
func FromTranscript(t *store.Transcript) *Transcript {
	if t == nil {
		return nil
	}
	return &Transcript{
		Source:          t.Source,
		WordCount:       t.WordCount,
		CharCount:       t.CharCount,
		ConfidenceScore: t.ConfidenceScore,
		AudioQuality:    t.AudioQuality,
		Language:        t.Language,
		Factors:         t.Factors,
	}
}

// FromPassage converts a stored passage and renders its OSIS reference.
func FromPassage(p store.Passage) Passage {
	ref := scripture.Reference{Code: p.Code, Chapter: p.Chapter}
	if p.VerseStart != nil {
		ref.VerseStart = *p.VerseStart
	}
	if p.VerseEnd != nil {
		ref.VerseEnd = *p.VerseEnd
	}
	return Passage{
		Reference:   scripture.FormatOSIS(ref),
		Book:        p.Book,
		Chapter:     p.Chapter,
		VerseStart:  p.VerseStart,
		VerseEnd:    p.VerseEnd,
		PassageType: p.PassageType,
		Count:       p.Count,
	}
}

// FromPassages converts stored passages, never returning nil.
func FromPassages(passages []store.Passage) []Passage {
	out := make([]Passage, 0, len(passages))
	for _, p := range passages {
		out = append(out, FromPassage(p))
	}
	return out
}

// FromThemes converts stored themes, never returning nil.
func FromThemes(items []store.Theme) []Theme {
	out := make([]Theme, 0, len(items))
	for _, t := range items {
		out = append(out, Theme{Tag: t.Tag, Score: t.Score, Timestamps: t.Timestamps})
	}
	return out
}

// FromPassageHits converts search hits.
func FromPassageHits(hits []store.PassageHit) []PassageMatch {
	out := make([]PassageMatch, 0, len(hits))
	for i := range hits {
		out = append(out, PassageMatch{
			Video:   FromVideo(&hits[i].Video),
			Passage: FromPassage(hits[i].Passage),
		})
	}
	return out
}

// QueueCounts flattens status counts with every status present.
func QueueCounts(counts map[store.Status]int) map[string]int {
	out := make(map[string]int, len(store.Statuses))
	for _, status := range store.Statuses {
		out[string(status)] = counts[status]
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// PassageQuery turns a parsed reference into a store search. A verse
// without an end searches that single verse.
func PassageQuery(ref scripture.Reference) store.PassageQuery {
	q := store.PassageQuery{Code: ref.Code, Chapter: ref.Chapter}
	if ref.Chapter > 0 && ref.VerseStart > 0 {
		start := ref.VerseStart
		end := ref.VerseStart
		if ref.VerseEnd > ref.VerseStart {
			end = ref.VerseEnd
		}
		q.VerseStart = &start
		q.VerseEnd = &end
	}
	return q
}
