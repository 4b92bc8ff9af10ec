package core

import (
	"context"

	"github.com/kali23041/3d-gsplat/internal/domain"
)

// Terminal transitions are signaled by the reconstruction worker (or its
// simulator). Queued -> Processing is the scheduler's alone (admitLocked);
// requesting any other transition fails with ErrInvalidTransition and leaves
// the job untouched.

// CompleteJob moves a Processing job to Completed: progress pinned to 100,
// FinishedAt stamped, output size derived from the input payload. The freed
// slot immediately admits the next queued job.
func (s *Service) CompleteJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.finish(ctx, jobID, func(j *domain.Job) domain.EventKind {
		j.State = domain.JobStateCompleted
		j.ProgressPercent = 100
		j.OutputSizeBytes = domain.EstimateOutputSize(j.InputBytes)
		return domain.EventCompleted
	})
}

// FailJob moves a Processing job to Failed with the supplied cause. Progress
// holds at its last recorded value.
func (s *Service) FailJob(ctx context.Context, jobID, reason string) (*domain.Job, error) {
	if reason == "" {
		reason = "reconstruction failed"
	}
	return s.finish(ctx, jobID, func(j *domain.Job) domain.EventKind {
		j.State = domain.JobStateFailed
		j.FailureReason = reason
		return domain.EventFailed
	})
}

// finish runs the terminal transition and the slot release under s.mu so a
// concurrent Delete cannot observe the job terminal while its slot is still
// counted. Exactly one of finish/Delete releases any given slot.
func (s *Service) finish(ctx context.Context, jobID string, apply func(*domain.Job) domain.EventKind) (*domain.Job, error) {
	s.mu.Lock()
	e, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	e.mu.Lock()
	if e.job.State != domain.JobStateProcessing {
		e.mu.Unlock()
		s.mu.Unlock()
		return nil, domain.ErrInvalidTransition
	}
	now := s.now()
	kind := apply(e.job)
	e.job.FinishedAt = &now
	ev := changeEvent(e.job, kind, e.job.FailureReason)
	snapshot := e.job.Clone()
	e.mu.Unlock()

	s.running--
	s.notifier.Publish(ev)
	s.admitLocked()
	s.rerankLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.log.Info().Str("job_id", jobID).Str("state", string(snapshot.State)).Msg("core: job finished")
	return snapshot, nil
}
