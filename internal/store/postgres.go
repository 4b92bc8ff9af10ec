package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kali23041/3d-gsplat/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. Records are
// a write-through mirror of the in-memory state; queue positions are derived
// and not persisted.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// EnsureSchema creates the jobs table when it does not exist yet.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    id                    TEXT PRIMARY KEY,
    owner_id              TEXT NOT NULL,
    name                  TEXT NOT NULL,
    input_count           INT NOT NULL,
    input_bytes           BIGINT NOT NULL,
    state                 TEXT NOT NULL,
    created_at            TIMESTAMPTZ NOT NULL,
    started_at            TIMESTAMPTZ,
    finished_at           TIMESTAMPTZ,
    estimated_duration_ms BIGINT NOT NULL,
    progress_percent      INT NOT NULL DEFAULT 0,
    failure_reason        TEXT NOT NULL DEFAULT '',
    output_size_bytes     BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS jobs_owner_created_idx ON jobs (owner_id, created_at DESC);
`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure jobs schema: %w", err)
	}
	return nil
}

// Save upserts the full job record.
func (r *JobRepositoryPG) Save(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, owner_id, name, input_count, input_bytes, state, created_at,
                  started_at, finished_at, estimated_duration_ms, progress_percent,
                  failure_reason, output_size_bytes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    state = EXCLUDED.state,
    started_at = EXCLUDED.started_at,
    finished_at = EXCLUDED.finished_at,
    progress_percent = EXCLUDED.progress_percent,
    failure_reason = EXCLUDED.failure_reason,
    output_size_bytes = EXCLUDED.output_size_bytes;
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.Name,
		job.InputCount,
		job.InputBytes,
		job.State,
		job.CreatedAt,
		job.StartedAt,
		job.FinishedAt,
		job.EstimatedDurationMs,
		job.ProgressPercent,
		job.FailureReason,
		job.OutputSizeBytes,
	)
	return err
}

// Delete removes the job record. Deleting an absent id is not an error.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1;`, jobID)
	return err
}

// List fetches every persisted job, oldest first, for restore on startup.
func (r *JobRepositoryPG) List(ctx context.Context) ([]*domain.Job, error) {
	query := `
SELECT id, owner_id, name, input_count, input_bytes, state, created_at,
       started_at, finished_at, estimated_duration_ms, progress_percent,
       failure_reason, output_size_bytes
FROM jobs
ORDER BY created_at ASC, id ASC;
`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var job domain.Job
		if err := rows.Scan(
			&job.ID,
			&job.OwnerID,
			&job.Name,
			&job.InputCount,
			&job.InputBytes,
			&job.State,
			&job.CreatedAt,
			&job.StartedAt,
			&job.FinishedAt,
			&job.EstimatedDurationMs,
			&job.ProgressPercent,
			&job.FailureReason,
			&job.OutputSizeBytes,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
