package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pulpit/internal/language"
)

const videoColumns = "id, external_id, source_url, title, channel, duration_seconds, language, status, error_message, published_at, created_at, updated_at"

// videoRow holds the scan targets for videoColumns so queries that join
// videos with other tables can scan everything in one pass.
type videoRow struct {
	v            Video
	title        sql.NullString
	channel      sql.NullString
	language     sql.NullString
	status       string
	errorMessage sql.NullString
	publishedRaw sql.NullString
	createdRaw   sql.NullString
	updatedRaw   sql.NullString
}

func (r *videoRow) targets() []any {
	return []any{
		&r.v.ID,
		&r.v.ExternalID,
		&r.v.SourceURL,
		&r.title,
		&r.channel,
		&r.v.DurationSeconds,
		&r.language,
		&r.status,
		&r.errorMessage,
		&r.publishedRaw,
		&r.createdRaw,
		&r.updatedRaw,
	}
}

func (r *videoRow) video() *Video {
	v := r.v
	v.Title = r.title.String
	v.Channel = r.channel.String
	v.Language = r.language.String
	v.Status = Status(r.status)
	v.ErrorMessage = r.errorMessage.String
	v.PublishedAt = parseTimestamp(r.publishedRaw)
	v.CreatedAt = parseTimestamp(r.createdRaw)
	v.UpdatedAt = parseTimestamp(r.updatedRaw)
	return &v
}

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var row videoRow
	if err := scanner.Scan(row.targets()...); err != nil {
		return nil, err
	}
	return row.video(), nil
}

func scanVideos(rows *sql.Rows) ([]Video, error) {
	defer rows.Close()
	var videos []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// Enqueue inserts a pending video. An existing external ID is left untouched
// and returned with created=false.
func (s *Store) Enqueue(ctx context.Context, nv NewVideo) (*Video, bool, error) {
	externalID := strings.TrimSpace(nv.ExternalID)
	if externalID == "" {
		return nil, false, errors.New("enqueue: external id is required")
	}
	sourceURL := strings.TrimSpace(nv.SourceURL)
	if sourceURL == "" {
		return nil, false, errors.New("enqueue: source url is required")
	}
	ts := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO videos (external_id, source_url, title, channel, language, status, published_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(external_id) DO NOTHING`,
		externalID,
		sourceURL,
		nullableString(nv.Title),
		nullableString(nv.Channel),
		nullableString(language.ToISO2(nv.Language)),
		StatusPending,
		nullableTime(nv.PublishedAt),
		ts,
		ts,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	video, err := s.GetVideoByExternalID(ctx, externalID)
	if err != nil {
		return nil, false, err
	}
	return video, affected == 1, nil
}

// GetVideo fetches a video by row identifier.
func (s *Store) GetVideo(ctx context.Context, id int64) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// GetVideoByExternalID fetches a video by its platform identifier.
func (s *Store) GetVideoByExternalID(ctx context.Context, externalID string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE external_id = ?`, externalID)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %q: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get video by external id: %w", err)
	}
	return video, nil
}

// ListVideos returns videos ordered by id, optionally filtered by status.
func (s *Store) ListVideos(ctx context.Context, statuses ...Status) ([]Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("scan videos: %w", err)
	}
	return videos, nil
}

// ExternalIDs returns the set of known platform identifiers.
func (s *Store) ExternalIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT external_id FROM videos`)
	if err != nil {
		return nil, fmt.Errorf("list external ids: %w", err)
	}
	defer rows.Close()
	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// CountByStatus returns the number of videos in each status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM videos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count videos: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int, len(Statuses))
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// ClaimNext atomically moves the oldest pending video to processing and
// returns it. It returns nil when nothing is pending.
func (s *Store) ClaimNext(ctx context.Context) (*Video, error) {
	var video *Video
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`UPDATE videos SET status = ?, error_message = NULL, updated_at = ?
            WHERE id = (SELECT id FROM videos WHERE status = ? ORDER BY id LIMIT 1) AND status = ?
            RETURNING `+videoColumns,
			StatusProcessing, s.timestamp(), StatusPending, StatusPending,
		)
		v, err := scanVideo(row)
		if errors.Is(err, sql.ErrNoRows) {
			video = nil
			return nil
		}
		if err != nil {
			return err
		}
		video = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim next video: %w", err)
	}
	return video, nil
}

// UpdateMetadata records what acquisition learned about the video. Empty
// values keep what was stored at ingestion.
func (s *Store) UpdateMetadata(ctx context.Context, id int64, meta Metadata) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE videos SET
            title = COALESCE(?, title),
            channel = COALESCE(?, channel),
            duration_seconds = CASE WHEN ? > 0 THEN ? ELSE duration_seconds END,
            language = COALESCE(?, language),
            published_at = COALESCE(?, published_at),
            updated_at = ?
        WHERE id = ?`,
		nullableString(meta.Title),
		nullableString(meta.Channel),
		meta.DurationSeconds, meta.DurationSeconds,
		nullableString(language.ToISO2(meta.Language)),
		nullableTime(meta.PublishedAt),
		s.timestamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

// MarkStatus sets a video's status and error message.
func (s *Store) MarkStatus(ctx context.Context, id int64, status Status, message string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(message), s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("mark status: %w", err)
	}
	return requireAffected(res, id)
}

// ResetProcessing returns videos stranded in processing (after a crash) to pending.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, s.timestamp(), StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset processing: %w", err)
	}
	return res.RowsAffected()
}

// Reingest discards every derived artifact of a video and queues it again.
func (s *Store) Reingest(ctx context.Context, id int64) error {
	return s.resetVideo(ctx, id, StatusPending)
}

// Exclude discards every derived artifact of a video and marks it skipped so
// the pipeline and feed watcher leave it alone.
func (s *Store) Exclude(ctx context.Context, id int64) error {
	return s.resetVideo(ctx, id, StatusSkipped)
}

func (s *Store) resetVideo(ctx context.Context, id int64, status Status) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"transcripts", "segments", "passages", "themes"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE video_id = ?`, id); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE videos SET status = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
			status, s.timestamp(), id,
		)
		if err != nil {
			return err
		}
		return requireAffected(res, id)
	})
	if err != nil {
		return fmt.Errorf("reset video %d: %w", id, err)
	}
	return nil
}

func requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("video %d: %w", id, ErrNotFound)
	}
	return nil
}
