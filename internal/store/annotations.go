package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SaveTranscript stores the accepted transcript, replacing any previous one.
func (s *Store) SaveTranscript(ctx context.Context, t Transcript) error {
	factors, err := encodeJSON(t.Factors)
	if err != nil {
		return fmt.Errorf("encode factors: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO transcripts (video_id, source, text, word_count, char_count, confidence_score, audio_quality, factors_json, language, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(video_id) DO UPDATE SET
            source = excluded.source,
            text = excluded.text,
            word_count = excluded.word_count,
            char_count = excluded.char_count,
            confidence_score = excluded.confidence_score,
            audio_quality = excluded.audio_quality,
            factors_json = excluded.factors_json,
            language = excluded.language,
            created_at = excluded.created_at`,
		t.VideoID, t.Source, t.Text, t.WordCount, t.CharCount, t.ConfidenceScore,
		t.AudioQuality, factors, nullableString(t.Language), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// GetTranscript returns the transcript of a video.
func (s *Store) GetTranscript(ctx context.Context, videoID int64) (*Transcript, error) {
	var (
		t          Transcript
		factorsRaw sql.NullString
		language   sql.NullString
		createdRaw sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT video_id, source, text, word_count, char_count, confidence_score, audio_quality, factors_json, language, created_at
        FROM transcripts WHERE video_id = ?`, videoID,
	).Scan(&t.VideoID, &t.Source, &t.Text, &t.WordCount, &t.CharCount, &t.ConfidenceScore,
		&t.AudioQuality, &factorsRaw, &language, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript for video %d: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	if factorsRaw.Valid && factorsRaw.String != "" {
		if err := json.Unmarshal([]byte(factorsRaw.String), &t.Factors); err != nil {
			return nil, fmt.Errorf("decode factors: %w", err)
		}
	}
	t.Language = language.String
	t.CreatedAt = parseTimestamp(createdRaw)
	return &t, nil
}

// ReplaceSegments swaps the retrieval segments of a video in one transaction.
func (s *Store) ReplaceSegments(ctx context.Context, videoID int64, segments []Segment) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE video_id = ?`, videoID); err != nil {
			return err
		}
		for i, seg := range segments {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO segments (video_id, ordinal, text, start_word, end_word) VALUES (?, ?, ?, ?, ?)`,
				videoID, i, seg.Text, seg.StartWord, seg.EndWord,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace segments: %w", err)
	}
	return nil
}

// ReplaceAnnotations swaps the passages and themes of a video in one
// transaction. Empty slices persist an empty annotation set.
func (s *Store) ReplaceAnnotations(ctx context.Context, videoID int64, passages []Passage, themes []Theme) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE video_id = ?`, videoID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM themes WHERE video_id = ?`, videoID); err != nil {
			return err
		}
		for _, p := range passages {
			count := p.Count
			if count <= 0 {
				count = 1
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO passages (video_id, book, code, chapter, verse_start, verse_end, passage_type, count)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				videoID, p.Book, p.Code, p.Chapter, nullableInt(p.VerseStart), nullableInt(p.VerseEnd), p.PassageType, count,
			); err != nil {
				return fmt.Errorf("insert passage %s %d: %w", p.Code, p.Chapter, err)
			}
		}
		for _, th := range themes {
			timestamps, err := encodeJSON(th.Timestamps)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO themes (video_id, tag, score, timestamps_json) VALUES (?, ?, ?, ?)`,
				videoID, th.Tag, th.Score, timestamps,
			); err != nil {
				return fmt.Errorf("insert theme %s: %w", th.Tag, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace annotations: %w", err)
	}
	return nil
}

// ListSegments returns the segments of a video in order.
func (s *Store) ListSegments(ctx context.Context, videoID int64) ([]Segment, error) {
	return s.querySegments(ctx,
		`SELECT video_id, ordinal, text, start_word, end_word FROM segments WHERE video_id = ? ORDER BY ordinal`, videoID)
}

// ListSegmentsForVideos returns the segments of several videos ordered by
// video then ordinal.
func (s *Store) ListSegmentsForVideos(ctx context.Context, videoIDs []int64) ([]Segment, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(videoIDs)
	return s.querySegments(ctx,
		`SELECT video_id, ordinal, text, start_word, end_word FROM segments WHERE video_id IN (`+placeholders+`) ORDER BY video_id, ordinal`,
		args...)
}

func (s *Store) querySegments(ctx context.Context, query string, args ...any) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()
	var segments []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.VideoID, &seg.Ordinal, &seg.Text, &seg.StartWord, &seg.EndWord); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

const passageColumns = "p.video_id, p.book, p.code, p.chapter, p.verse_start, p.verse_end, p.passage_type, p.count"

func scanPassage(scanner interface{ Scan(dest ...any) error }, dest ...any) (Passage, error) {
	var (
		p          Passage
		verseStart sql.NullInt64
		verseEnd   sql.NullInt64
	)
	targets := append([]any{&p.VideoID, &p.Book, &p.Code, &p.Chapter, &verseStart, &verseEnd, &p.PassageType, &p.Count}, dest...)
	if err := scanner.Scan(targets...); err != nil {
		return Passage{}, err
	}
	p.VerseStart = intPtr(verseStart)
	p.VerseEnd = intPtr(verseEnd)
	return p, nil
}

// ListPassages returns the passages of a video, most frequent first.
func (s *Store) ListPassages(ctx context.Context, videoID int64) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+passageColumns+` FROM passages p WHERE p.video_id = ?
        ORDER BY p.count DESC, p.code, p.chapter, p.verse_start`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list passages: %w", err)
	}
	defer rows.Close()
	var passages []Passage
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

// ListThemes returns the themes of a video, highest score first.
func (s *Store) ListThemes(ctx context.Context, videoID int64) ([]Theme, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, tag, score, timestamps_json FROM themes WHERE video_id = ? ORDER BY score DESC, tag`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	defer rows.Close()
	var themes []Theme
	for rows.Next() {
		var (
			th  Theme
			raw sql.NullString
		)
		if err := rows.Scan(&th.VideoID, &th.Tag, &th.Score, &raw); err != nil {
			return nil, err
		}
		if raw.Valid && raw.String != "" && raw.String != "null" {
			if err := json.Unmarshal([]byte(raw.String), &th.Timestamps); err != nil {
				return nil, fmt.Errorf("decode theme timestamps: %w", err)
			}
		}
		themes = append(themes, th)
	}
	return themes, rows.Err()
}

func encodeJSON(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

func inClause(ids []int64) (string, []any) {
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}
	return string(placeholders), args
}
