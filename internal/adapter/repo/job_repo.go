package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, user_id, type, status, webhook_status, request_id, prompt, image_url,
duration_seconds, result_url, error_message, created_at, updated_at, webhook_delivered_at`

// Create inserts a new job record in pending state.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	query := `
INSERT INTO generation_jobs (id, user_id, type, status, webhook_status, request_id, prompt, image_url, duration_seconds)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.Type,
		job.Status,
		job.WebhookStatus,
		job.RequestID,
		job.Prompt,
		job.ImageURL,
		job.DurationSeconds,
	)
	return err
}

// AttachRequest records the vendor-assigned request id and moves the job to
// processing. Both identifiers stay on the record from this point on.
func (r *JobRepositoryPG) AttachRequest(ctx context.Context, jobID, requestID string) error {
	query := `
UPDATE generation_jobs
SET status = $2,
    request_id = $3,
    updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusProcessing, requestID)
	return err
}

// MarkFailed records a submission-time failure.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	query := `
UPDATE generation_jobs
SET status = $2,
    error_message = $3,
    updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusFailed, errMsg)
	return err
}

// ApplyTerminal writes a terminal outcome by job id. The update is
// deliberately unconditional: both terminal writers derive their values from
// the vendor's own status, so a second application re-writes the same facts.
func (r *JobRepositoryPG) ApplyTerminal(ctx context.Context, jobID string, upd domain.TerminalUpdate) error {
	query := `
UPDATE generation_jobs
SET status = $2,
    webhook_status = $3,
    result_url = COALESCE(NULLIF($4, ''), result_url),
    error_message = COALESCE(NULLIF($5, ''), error_message),
    webhook_delivered_at = COALESCE($6, webhook_delivered_at),
    updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query,
		jobID,
		upd.Status,
		upd.WebhookStatus,
		upd.ResultURL,
		upd.ErrorMessage,
		upd.DeliveredAt,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1;`
	return r.scanOne(r.pool.QueryRow(ctx, query, jobID))
}

// GetForUser fetches a job scoped to its owner.
func (r *JobRepositoryPG) GetForUser(ctx context.Context, jobID, userID string) (*domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1 AND user_id = $2;`
	return r.scanOne(r.pool.QueryRow(ctx, query, jobID, userID))
}

// ListByUser returns the owner's jobs, newest first.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.GenerationJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM generation_jobs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// CountCreatedSince counts the user's submissions since the given instant.
func (r *JobRepositoryPG) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM generation_jobs WHERE user_id = $1 AND created_at >= $2;`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListStalePending returns accepted jobs still waiting on their webhook past
// the cutoff, oldest first, for the reconciliation sweeper.
func (r *JobRepositoryPG) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.GenerationJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM generation_jobs
WHERE webhook_status = $1
  AND status IN ($2, $3)
  AND request_id <> ''
  AND created_at < $4
ORDER BY created_at ASC
LIMIT $5;
`
	rows, err := r.pool.Query(ctx, query,
		domain.WebhookPending,
		domain.JobStatusPending,
		domain.JobStatusProcessing,
		cutoff,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *JobRepositoryPG) scanOne(row pgx.Row) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	if err := scanJob(row, &job); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func scanJob(row pgx.Row, job *domain.GenerationJob) error {
	return row.Scan(
		&job.ID,
		&job.UserID,
		&job.Type,
		&job.Status,
		&job.WebhookStatus,
		&job.RequestID,
		&job.Prompt,
		&job.ImageURL,
		&job.DurationSeconds,
		&job.ResultURL,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.WebhookDeliveredAt,
	)
}

func scanJobs(rows pgx.Rows) ([]domain.GenerationJob, error) {
	var jobs []domain.GenerationJob
	for rows.Next() {
		var job domain.GenerationJob
		if err := scanJob(rows, &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
