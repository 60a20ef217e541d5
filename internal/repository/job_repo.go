package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"cinescript-backend/internal/models"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, job *models.Job) error {
	job.ID = uuid.New()
	job.Status = models.JobQueued

	query := `INSERT INTO jobs (id, user_id, type, video_id, config, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		job.ID, job.UserID, job.Type, job.VideoID, job.ConfigJSON, job.Status,
	).Scan(&job.CreatedAt)
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job := &models.Job{}
	query := `SELECT id, user_id, type, video_id, config, status, error_message, created_at, completed_at
		FROM jobs WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.Type, &job.VideoID, &job.ConfigJSON,
		&job.Status, &job.ErrorMessage, &job.CreatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE jobs SET status = $1 WHERE id = $2",
		models.JobProcessing, id,
	)
	return err
}

func (r *JobRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE jobs SET status = $1, completed_at = NOW() WHERE id = $2",
		models.JobCompleted, id,
	)
	return err
}

func (r *JobRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE jobs SET status = $1, error_message = $2, completed_at = NOW() WHERE id = $3",
		models.JobFailed, reason, id,
	)
	return err
}
