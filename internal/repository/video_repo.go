package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cinescript-backend/internal/models"
)

// VideoRepo persists videos. All mutable lifecycle state for one video
// (status, segments, settings) lives in its single row, so each mutation
// below is one atomic statement.
type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

const videoColumns = `id, project_id, user_id, filename, original_filename, file_path,
	source_url, duration, status, progress, error_message, source_language,
	target_language, segments, subtitle_settings, output_path, output_object,
	created_at, updated_at`

func (r *VideoRepo) Create(ctx context.Context, v *models.Video) error {
	v.ID = uuid.New()

	segments, err := json.Marshal(v.Segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}
	settings, err := json.Marshal(v.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `INSERT INTO videos (id, project_id, user_id, filename, original_filename,
			file_path, source_url, duration, status, progress, segments, subtitle_settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		v.ID, v.ProjectID, v.UserID, v.Filename, v.OriginalFilename, v.FilePath,
		v.SourceURL, v.Duration, v.Status, v.Progress, segments, settings,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (r *VideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = $1", id)
	return scanVideo(row)
}

func (r *VideoRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Video, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE project_id = $1 ORDER BY created_at DESC",
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *VideoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM videos WHERE id = $1", id)
	return err
}

func (r *VideoRepo) UpdateDuration(ctx context.Context, id uuid.UUID, duration float64) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE videos SET duration = $1, updated_at = NOW() WHERE id = $2",
		duration, id,
	)
	return err
}

func (r *VideoRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE videos SET progress = $1, updated_at = NOW() WHERE id = $2",
		progress, id,
	)
	return err
}

// TransitionStatus performs the compare-and-set on the status field: the
// video moves to the target status only if its current status is in the
// allowed source set. Returns the previous status and whether the transition
// was applied; a losing racer observes applied == false.
func (r *VideoRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.VideoStatus, to models.VideoStatus) (models.VideoStatus, bool, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	query := `
		UPDATE videos v
		SET status = $2, progress = 0, error_message = NULL, updated_at = NOW()
		FROM (SELECT id, status AS prev FROM videos WHERE id = $1 FOR UPDATE) old
		WHERE v.id = old.id AND old.prev = ANY($3)
		RETURNING old.prev`

	var prev string
	err := r.pool.QueryRow(ctx, query, id, string(to), fromStrs).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return models.VideoStatus(prev), true, nil
}

// SetError resolves the video to the error status with a human-readable
// reason. Segments and settings are left untouched.
func (r *VideoRepo) SetError(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE videos SET status = $1, error_message = $2, updated_at = NOW() WHERE id = $3",
		models.StatusError, reason, id,
	)
	return err
}

// CompleteTranscription releases the transcribing lock: it writes the full
// segment list and detected language and moves to transcribed, but only if
// the video is still transcribing.
func (r *VideoRepo) CompleteTranscription(ctx context.Context, id uuid.UUID, segments []models.Segment, sourceLanguage string) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE videos SET status = $1, segments = $2, source_language = $3,
			progress = 100, error_message = NULL, updated_at = NOW()
		WHERE id = $4 AND status = $5`,
		models.StatusTranscribed, data, sourceLanguage, id, models.StatusTranscribing,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s is no longer transcribing", id)
	}
	return nil
}

// CompleteTranslation overwrites the full segment list (with translations
// filled in) and the target language, releasing the translating lock.
func (r *VideoRepo) CompleteTranslation(ctx context.Context, id uuid.UUID, segments []models.Segment, targetLanguage string) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE videos SET status = $1, segments = $2, target_language = $3,
			progress = 100, error_message = NULL, updated_at = NOW()
		WHERE id = $4 AND status = $5`,
		models.StatusTranslated, data, targetLanguage, id, models.StatusTranslating,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s is no longer translating", id)
	}
	return nil
}

// CompleteExport records where the rendered file landed and releases the
// rendering lock.
func (r *VideoRepo) CompleteExport(ctx context.Context, id uuid.UUID, outputPath, outputObject string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE videos SET status = $1, output_path = $2, output_object = $3,
			progress = 100, error_message = NULL, updated_at = NOW()
		WHERE id = $4 AND status = $5`,
		models.StatusCompleted, outputPath, outputObject, id, models.StatusRendering,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s is no longer rendering", id)
	}
	return nil
}

// ReplaceSegments is the authoritative bulk overwrite used by the editor
// save. The write is refused while a job is in flight so an in-progress job
// and an editor save can never race. Returns whether the write was applied.
func (r *VideoRepo) ReplaceSegments(ctx context.Context, id uuid.UUID, segments []models.Segment) (bool, error) {
	data, err := json.Marshal(segments)
	if err != nil {
		return false, fmt.Errorf("failed to marshal segments: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE videos SET segments = $1, updated_at = NOW()
		WHERE id = $2 AND status <> ALL($3)`,
		data, id, busyStatuses(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReplaceSettings replaces the rendering settings wholesale, with the same
// in-flight guard as ReplaceSegments.
func (r *VideoRepo) ReplaceSettings(ctx context.Context, id uuid.UUID, settings models.SubtitleSettings) (bool, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return false, fmt.Errorf("failed to marshal settings: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE videos SET subtitle_settings = $1, updated_at = NOW()
		WHERE id = $2 AND status <> ALL($3)`,
		data, id, busyStatuses(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func busyStatuses() []string {
	return []string{
		string(models.StatusTranscribing),
		string(models.StatusTranslating),
		string(models.StatusRendering),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	v := &models.Video{}
	var segments, settings []byte

	err := row.Scan(
		&v.ID, &v.ProjectID, &v.UserID, &v.Filename, &v.OriginalFilename, &v.FilePath,
		&v.SourceURL, &v.Duration, &v.Status, &v.Progress, &v.ErrorMessage,
		&v.SourceLanguage, &v.TargetLanguage, &segments, &settings,
		&v.OutputPath, &v.OutputObject, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &v.Segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
		}
	}
	if v.Segments == nil {
		v.Segments = []models.Segment{}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &v.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	return v, nil
}
