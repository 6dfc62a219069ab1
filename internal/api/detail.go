package api

import (
	"context"
	"errors"

	"pulpit/internal/store"
)

// LoadVideoDetail assembles a video with its transcript summary and
// annotations. A video without a transcript yet has a nil Transcript.
func LoadVideoDetail(ctx context.Context, st *store.Store, id int64) (VideoDetail, error) {
	video, err := st.GetVideo(ctx, id)
	if err != nil {
		return VideoDetail{}, err
	}
	detail := VideoDetail{Video: FromVideo(video)}
	transcript, err := st.GetTranscript(ctx, id)
	switch {
	case err == nil:
		detail.Transcript = FromTranscript(transcript)
	case !errors.Is(err, store.ErrNotFound):
		return VideoDetail{}, err
	}
	segments, err := st.ListSegments(ctx, id)
	if err != nil {
		return VideoDetail{}, err
	}
	detail.Segments = len(segments)
	passages, err := st.ListPassages(ctx, id)
	if err != nil {
		return VideoDetail{}, err
	}
	detail.Passages = FromPassages(passages)
	tagged, err := st.ListThemes(ctx, id)
	if err != nil {
		return VideoDetail{}, err
	}
	detail.Themes = FromThemes(tagged)
	return detail, nil
}
