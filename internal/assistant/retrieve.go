package assistant

import (
	"context"
	"errors"
	"fmt"

	"pulpit/internal/cache"
	"pulpit/internal/logging"
	"pulpit/internal/scripture"
	"pulpit/internal/store"
	"pulpit/internal/textutil"
)

type rankedSegment struct {
	videoID int64
	title   string
	text    string
	score   float64
	// position is the fraction of the transcript preceding the segment.
	position float64
}

type contextSet struct {
	segments   []rankedSegment
	cited      []cache.CitedVideo
	scores     []float64
	references []string
	themes     []string
}

// retrieve collects candidate videos and ranks their segments.
func (a *Assistant) retrieve(ctx context.Context, question string, videoIDs []int64) (contextSet, error) {
	var set contextSet
	candidates, err := a.candidates(ctx, question, videoIDs, &set)
	if err != nil {
		return set, err
	}
	if len(candidates) == 0 {
		return set, nil
	}

	ids := make([]int64, 0, len(candidates))
	byID := make(map[int64]store.Video, len(candidates))
	for _, v := range candidates {
		ids = append(ids, v.ID)
		byID[v.ID] = v
	}
	rows, err := a.store.ListSegmentsForVideos(ctx, ids)
	if err != nil {
		return set, fmt.Errorf("load segments: %w", err)
	}
	if len(rows) == 0 {
		return set, nil
	}

	totals := make(map[int64]int)
	for _, row := range rows {
		totals[row.VideoID] = max(totals[row.VideoID], row.EndWord)
	}
	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Text
	}
	scores := textutil.RankByQuery(question, texts)

	ranked := make([]rankedSegment, 0, len(rows))
	for i, row := range rows {
		seg := rankedSegment{
			videoID: row.VideoID,
			title:   byID[row.VideoID].Title,
			text:    row.Text,
			score:   scores[i],
		}
		if total := totals[row.VideoID]; total > 0 {
			seg.position = float64(row.StartWord) / float64(total)
		}
		ranked = append(ranked, seg)
	}
	sortByScore(ranked, func(s rankedSegment) float64 { return s.score })

	for _, seg := range ranked {
		if len(set.segments) >= a.opts.MaxSegments {
			break
		}
		if seg.score <= 0 && len(set.segments) > 0 {
			break
		}
		set.segments = append(set.segments, seg)
	}

	seen := make(map[int64]bool)
	for _, seg := range set.segments {
		if seen[seg.videoID] {
			continue
		}
		seen[seg.videoID] = true
		video := byID[seg.videoID]
		set.cited = append(set.cited, cache.CitedVideo{
			VideoID:    video.ID,
			Title:      video.Title,
			ExternalID: video.ExternalID,
			Timestamp:  float64(int(seg.position * float64(video.DurationSeconds))),
		})
		set.scores = append(set.scores, round3(seg.score))
	}
	return set, nil
}

// candidates resolves which videos may answer the question, in priority
// order and without duplicates.
func (a *Assistant) candidates(ctx context.Context, question string, videoIDs []int64, set *contextSet) ([]store.Video, error) {
	logger := logging.WithContext(ctx, a.logger)
	var out []store.Video
	seen := make(map[int64]bool)
	add := func(v store.Video) {
		if seen[v.ID] || len(out) >= a.opts.MaxCandidates || v.Status != store.StatusCompleted {
			return
		}
		seen[v.ID] = true
		out = append(out, v)
	}

	if ids := cache.NormalizeIDs(videoIDs); len(ids) > 0 {
		for _, id := range ids {
			video, err := a.store.GetVideo(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("load video %d: %w", id, err)
			}
			add(*video)
		}
		return out, nil
	}

	for _, m := range a.detector.Detect(question) {
		ref := m.Reference()
		set.references = append(set.references, scripture.FormatOSIS(ref))
		query := store.PassageQuery{Code: ref.Code, Chapter: ref.Chapter}
		if ref.VerseStart > 0 {
			vs := ref.VerseStart
			query.VerseStart = &vs
		}
		if ref.VerseEnd > 0 {
			ve := ref.VerseEnd
			query.VerseEnd = &ve
		}
		hits, err := a.store.FindVideosByPassage(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			add(hit.Video)
		}
	}

	for _, theme := range a.tagger.Tag(question) {
		set.themes = append(set.themes, theme.Tag)
		hits, err := a.store.FindVideosByTheme(ctx, theme.Tag, a.opts.MaxCandidates)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			add(hit.Video)
		}
	}

	if len(out) == 0 {
		recent, err := a.store.RecentCompleted(ctx, a.opts.MaxCandidates)
		if err != nil {
			return nil, err
		}
		for _, v := range recent {
			add(v)
		}
	}
	logger.Debug("assistant candidates",
		logging.Int("videos", len(out)),
		logging.Int("references", len(set.references)),
		logging.Int("themes", len(set.themes)),
	)
	return out, nil
}
