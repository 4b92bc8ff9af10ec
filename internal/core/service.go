package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kali23041/3d-gsplat/internal/domain"
)

// Service owns the lifecycle of reconstruction jobs: keyed storage, the state
// machine, FIFO admission under a capacity limit, progress estimation, and
// change notification. One instance is constructed per process and handed to
// handlers and workers by reference.
//
// Lock discipline: s.mu guards membership (jobs map, queue order, slot
// accounting) and may be held while taking an entry lock; an entry lock is
// never held while acquiring s.mu. Entry locks serialize all mutation of a
// single job, which is what keeps progress monotonic and terminal transitions
// single-shot. The s.mu critical sections do no I/O.
//
// Events for one job are published either under s.mu held for writing
// (admission, terminal transitions, delete) or under the entry lock with s.mu
// held for reading (rename, progress ticks). The write lock excludes the read
// holders, so per-job publish order always matches mutation order.
type Service struct {
	log      zerolog.Logger
	repo     domain.JobRepository
	notifier *Notifier
	capacity int

	// now and newID are swapped out in tests for deterministic time and IDs.
	now   func() time.Time
	newID func() string

	mu      sync.RWMutex
	jobs    map[string]*jobEntry
	queue   []*jobEntry
	running int
}

type jobEntry struct {
	mu  sync.Mutex
	job *domain.Job
}

// New constructs the service with the given concurrent-processing capacity.
// A capacity below one is treated as one slot.
func New(capacity int, repo domain.JobRepository, log zerolog.Logger) *Service {
	if capacity < 1 {
		capacity = 1
	}
	if repo == nil {
		repo = domain.NoopRepository{}
	}
	return &Service{
		log:      log,
		repo:     repo,
		notifier: NewNotifier(),
		capacity: capacity,
		now:      time.Now,
		newID:    uuid.NewString,
		jobs:     make(map[string]*jobEntry),
	}
}

// Events exposes the notifier for subscribers.
func (s *Service) Events() *Notifier { return s.notifier }

// Restore loads previously persisted jobs into memory, re-queueing any
// non-terminal ones. Jobs that were mid-processing when the process died go
// back to the queue with their progress reset; their slot no longer exists.
func (s *Service) Restore(ctx context.Context) error {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, j := range jobs {
		if _, ok := s.jobs[j.ID]; ok {
			continue
		}
		if j.State == domain.JobStateProcessing {
			j.State = domain.JobStateQueued
			j.StartedAt = nil
			j.ProgressPercent = 0
		}
		e := &jobEntry{job: j}
		s.jobs[j.ID] = e
		if j.State == domain.JobStateQueued {
			s.queue = append(s.queue, e)
		}
	}
	s.sortQueueLocked()
	s.admitLocked()
	s.rerankLocked()
	s.mu.Unlock()
	s.log.Info().Int("jobs", len(jobs)).Msg("core: restored persisted jobs")
	return nil
}

// Create validates the submission, stores the job in Queued state and admits
// it immediately if a slot is free.
func (s *Service) Create(ctx context.Context, ownerID, name string, inputCount int, inputBytes int64) (*domain.Job, error) {
	name = strings.TrimSpace(name)
	switch {
	case ownerID == "":
		return nil, domain.Validf("owner_id", "must not be empty")
	case name == "":
		return nil, domain.Validf("name", "must not be empty")
	case len(name) > domain.MaxNameLen:
		return nil, domain.Validf("name", "must be at most %d characters", domain.MaxNameLen)
	case inputCount < domain.MinInputCount:
		return nil, domain.Validf("input_count", "need at least %d images", domain.MinInputCount)
	case inputCount > domain.MaxInputCount:
		return nil, domain.Validf("input_count", "at most %d images allowed", domain.MaxInputCount)
	case inputBytes < 0:
		return nil, domain.Validf("input_bytes", "must not be negative")
	case inputBytes > int64(inputCount)*domain.MaxInputImageBytes:
		return nil, domain.Validf("input_bytes", "exceeds %d MiB per image", domain.MaxInputImageBytes>>20)
	}

	job := &domain.Job{
		ID:                  s.newID(),
		OwnerID:             ownerID,
		Name:                name,
		InputCount:          inputCount,
		InputBytes:          inputBytes,
		State:               domain.JobStateQueued,
		CreatedAt:           s.now(),
		EstimatedDurationMs: domain.EstimateDurationMs(inputCount, inputBytes),
	}
	e := &jobEntry{job: job}

	s.mu.Lock()
	s.jobs[job.ID] = e
	s.queue = append(s.queue, e)
	s.sortQueueLocked()
	s.rerankLocked()
	s.publishLocked(e, domain.EventCreated, "")
	s.admitLocked()
	s.rerankLocked()
	snapshot := job.Clone()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.log.Info().Str("job_id", job.ID).Str("owner_id", ownerID).
		Int("input_count", inputCount).Int64("estimated_ms", job.EstimatedDurationMs).
		Msg("core: job created")
	return snapshot, nil
}

// Get returns a snapshot of the job. Owners see their own jobs; admins see
// everything.
func (s *Service) Get(_ context.Context, jobID, requesterID string, admin bool) (*domain.Job, error) {
	e, err := s.entry(jobID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job.OwnerID != requesterID && !admin {
		return nil, domain.ErrForbidden
	}
	return e.job.Clone(), nil
}

// ListByOwner returns the owner's jobs ordered by creation time, newest
// first. The copies are snapshots; callers may not mutate service state.
func (s *Service) ListByOwner(_ context.Context, ownerID string) []*domain.Job {
	return s.list(func(j *domain.Job) bool { return j.OwnerID == ownerID })
}

// ListAll returns every job regardless of owner, newest first. Callers must
// have checked the admin role.
func (s *Service) ListAll(_ context.Context) []*domain.Job {
	return s.list(func(*domain.Job) bool { return true })
}

// ListProcessing returns snapshots of all jobs currently holding a slot.
func (s *Service) ListProcessing(_ context.Context) []*domain.Job {
	return s.list(func(j *domain.Job) bool { return j.State == domain.JobStateProcessing })
}

func (s *Service) list(match func(*domain.Job) bool) []*domain.Job {
	s.mu.RLock()
	entries := make([]*jobEntry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*domain.Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if match(e.job) {
			out = append(out, e.job.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Counts aggregates job totals per state for the dashboard tiles. With
// ownerID empty it aggregates globally.
func (s *Service) Counts(_ context.Context, ownerID string) map[domain.JobState]int {
	counts := map[domain.JobState]int{
		domain.JobStateQueued:     0,
		domain.JobStateProcessing: 0,
		domain.JobStateCompleted:  0,
		domain.JobStateFailed:     0,
	}
	for _, j := range s.list(func(j *domain.Job) bool { return ownerID == "" || j.OwnerID == ownerID }) {
		counts[j.State]++
	}
	return counts
}

// Rename updates the display name. Only the owner may rename; the admin role
// does not extend to renaming someone else's job.
func (s *Service) Rename(ctx context.Context, jobID, requesterID, name string) (*domain.Job, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validf("name", "must not be empty")
	}
	if len(name) > domain.MaxNameLen {
		return nil, domain.Validf("name", "must be at most %d characters", domain.MaxNameLen)
	}
	s.mu.RLock()
	e, ok := s.jobs[jobID]
	if !ok {
		s.mu.RUnlock()
		return nil, domain.ErrNotFound
	}
	e.mu.Lock()
	if e.job.OwnerID != requesterID {
		e.mu.Unlock()
		s.mu.RUnlock()
		return nil, domain.ErrForbidden
	}
	e.job.Name = name
	s.notifier.Publish(changeEvent(e.job, domain.EventRenamed, ""))
	snapshot := e.job.Clone()
	e.mu.Unlock()
	s.mu.RUnlock()

	s.persist(ctx, snapshot)
	return snapshot, nil
}

// Delete removes the job in any state. A Processing job atomically releases
// its slot; once Delete returns, no estimator or worker update can land on
// the job anymore.
func (s *Service) Delete(ctx context.Context, jobID, requesterID string, admin bool) error {
	s.mu.Lock()
	e, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	e.mu.Lock()
	if e.job.OwnerID != requesterID && !admin {
		e.mu.Unlock()
		s.mu.Unlock()
		return domain.ErrForbidden
	}
	wasProcessing := e.job.State == domain.JobStateProcessing
	ev := changeEvent(e.job, domain.EventDeleted, "")
	e.mu.Unlock()

	delete(s.jobs, jobID)
	s.removeFromQueueLocked(e)
	if wasProcessing {
		s.running--
	}
	s.notifier.Publish(ev)
	s.admitLocked()
	s.rerankLocked()
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, jobID); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("core: delete persistence failed")
	}
	s.log.Info().Str("job_id", jobID).Bool("released_slot", wasProcessing).Msg("core: job deleted")
	return nil
}

func (s *Service) entry(jobID string) (*jobEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

// persist mirrors a snapshot to the durable repository. Persistence failures
// are logged, not propagated: the in-memory state already committed.
func (s *Service) persist(ctx context.Context, snapshot *domain.Job) {
	if err := s.repo.Save(ctx, snapshot); err != nil {
		s.log.Error().Err(err).Str("job_id", snapshot.ID).Msg("core: persistence failed")
	}
}

// publishLocked emits an event for an entry while s.mu is held. The entry
// lock is taken briefly to read a consistent view.
func (s *Service) publishLocked(e *jobEntry, kind domain.EventKind, note string) {
	e.mu.Lock()
	ev := changeEvent(e.job, kind, note)
	e.mu.Unlock()
	s.notifier.Publish(ev)
}

func changeEvent(j *domain.Job, kind domain.EventKind, note string) domain.JobChangeEvent {
	return domain.JobChangeEvent{
		Kind:            kind,
		JobID:           j.ID,
		OwnerID:         j.OwnerID,
		State:           j.State,
		ProgressPercent: j.ProgressPercent,
		QueuePosition:   j.QueuePosition,
		Note:            note,
		At:              time.Now(),
	}
}
