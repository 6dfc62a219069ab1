package store

import (
	"context"
	"fmt"
	"strings"
)

// PassageQuery selects stored passages touching a reference. Chapter 0
// matches the whole book; a nil VerseStart matches the whole chapter.
type PassageQuery struct {
	Code       string
	Chapter    int
	VerseStart *int
	VerseEnd   *int
}

// FindVideosByPassage returns every stored passage (with its video) that
// overlaps the query. A stored passage with an end overlaps when
// max(qs, start) <= min(qe, end); one without an end overlaps when
// qs <= start <= qe. Stored whole-chapter and whole-book passages match any
// query inside them.
func (s *Store) FindVideosByPassage(ctx context.Context, q PassageQuery) ([]PassageHit, error) {
	code := strings.ToUpper(strings.TrimSpace(q.Code))
	if code == "" {
		return nil, fmt.Errorf("find by passage: book code is required")
	}
	where := []string{"p.code = ?"}
	args := []any{code}

	if q.Chapter > 0 {
		where = append(where, "(p.chapter = ? OR p.chapter = 0)")
		args = append(args, q.Chapter)
		if q.VerseStart != nil {
			qs := *q.VerseStart
			qe := qs
			if q.VerseEnd != nil && *q.VerseEnd >= qs {
				qe = *q.VerseEnd
			}
			where = append(where, `(p.chapter = 0 OR p.verse_start IS NULL
                OR (p.verse_end IS NOT NULL AND max(?, p.verse_start) <= min(?, p.verse_end))
                OR (p.verse_end IS NULL AND p.verse_start BETWEEN ? AND ?))`)
			args = append(args, qs, qe, qs, qe)
		}
	}

	query := `SELECT ` + passageColumns + `, ` + prefixed("v", videoColumns) + `
        FROM passages p JOIN videos v ON v.id = p.video_id
        WHERE ` + strings.Join(where, " AND ") + `
        ORDER BY v.id, p.chapter, p.verse_start`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find by passage: %w", err)
	}
	defer rows.Close()

	var hits []PassageHit
	for rows.Next() {
		hit, err := scanPassageHit(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func scanPassageHit(scanner interface{ Scan(dest ...any) error }) (PassageHit, error) {
	var row videoRow
	passage, err := scanPassage(scanner, row.targets()...)
	if err != nil {
		return PassageHit{}, err
	}
	return PassageHit{Video: *row.video(), Passage: passage}, nil
}

// FindVideosByTheme returns completed videos tagged with a theme, highest
// score first.
func (s *Store) FindVideosByTheme(ctx context.Context, tag string, limit int) ([]ThemeHit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.score, `+prefixed("v", videoColumns)+`
        FROM themes t JOIN videos v ON v.id = t.video_id
        WHERE t.tag = ? AND v.status = ?
        ORDER BY t.score DESC, v.id LIMIT ?`,
		strings.ToLower(strings.TrimSpace(tag)), StatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("find by theme: %w", err)
	}
	defer rows.Close()

	var hits []ThemeHit
	for rows.Next() {
		var (
			score float64
			row   videoRow
		)
		if err := rows.Scan(append([]any{&score}, row.targets()...)...); err != nil {
			return nil, err
		}
		hits = append(hits, ThemeHit{Video: *row.video(), Score: score})
	}
	return hits, rows.Err()
}

// RecentCompleted returns the most recently updated completed videos.
func (s *Store) RecentCompleted(ctx context.Context, limit int) ([]Video, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE status = ? ORDER BY updated_at DESC, id DESC LIMIT ?`,
		StatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("recent videos: %w", err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("scan videos: %w", err)
	}
	return videos, nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
