package domain

import "context"

// JobRepository is the durable write-through record of jobs. The in-process
// service owns the authoritative state; the repository mirrors it so records
// survive restarts. Implementations must be safe for concurrent use.
type JobRepository interface {
	Save(ctx context.Context, job *Job) error
	Delete(ctx context.Context, jobID string) error
	List(ctx context.Context) ([]*Job, error)
}

// NoopRepository discards writes. Used when no DATABASE_URL is configured and
// in tests that only exercise in-memory behavior.
type NoopRepository struct{}

func (NoopRepository) Save(context.Context, *Job) error     { return nil }
func (NoopRepository) Delete(context.Context, string) error { return nil }
func (NoopRepository) List(context.Context) ([]*Job, error) { return nil, nil }
