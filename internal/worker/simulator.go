package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kali23041/3d-gsplat/internal/core"
	"github.com/kali23041/3d-gsplat/internal/domain"
	"github.com/kali23041/3d-gsplat/internal/storage"
)

const defaultPollInterval = 2 * time.Second

// Simulator stands in for the real reconstruction worker: it watches
// Processing jobs and signals completion once a job's estimated duration has
// elapsed. Completion timing is derived from StartedAt and the deterministic
// estimate, never from randomness, so test runs are reproducible.
type Simulator struct {
	svc   *core.Service
	store *storage.ArtifactStore
	log   zerolog.Logger
	poll  time.Duration
	now   func() time.Time
}

// NewSimulator constructs a simulator polling at the given interval. The
// artifact store may be nil; completed jobs then record metadata only.
func NewSimulator(svc *core.Service, store *storage.ArtifactStore, log zerolog.Logger, poll time.Duration) *Simulator {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Simulator{svc: svc, store: store, log: log, poll: poll, now: time.Now}
}

// Run polls until the context is canceled. It also watches the event stream
// so artifacts written for a job are cleaned up when the job is deleted.
func (s *Simulator) Run(ctx context.Context) error {
	s.log.Info().Dur("poll", s.poll).Msg("worker: simulator started")
	sub := s.svc.Events().Subscribe(core.Filter{})
	defer sub.Close()
	t := time.NewTicker(s.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-sub.C:
			if !open {
				// Evicted for falling behind; resubscribe.
				sub = s.svc.Events().Subscribe(core.Filter{})
				continue
			}
			s.handleEvent(ev)
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Simulator) handleEvent(ev domain.JobChangeEvent) {
	if ev.Kind != domain.EventDeleted || s.store == nil {
		return
	}
	if err := s.store.Remove(ev.JobID); err != nil {
		s.log.Warn().Err(err).Str("job_id", ev.JobID).Msg("worker: artifact removal failed")
		return
	}
	s.log.Debug().Str("job_id", ev.JobID).Msg("worker: artifacts removed")
}

func (s *Simulator) sweep(ctx context.Context) {
	for _, job := range s.svc.ListProcessing(ctx) {
		if job.StartedAt == nil {
			continue
		}
		elapsed := s.now().Sub(*job.StartedAt).Milliseconds()
		if elapsed < job.EstimatedDurationMs {
			continue
		}
		s.complete(ctx, job)
	}
}

func (s *Simulator) complete(ctx context.Context, job *domain.Job) {
	done, err := s.svc.CompleteJob(ctx, job.ID)
	if err != nil {
		// The job may have been deleted or failed between the snapshot and
		// the signal; both are ordinary races, not simulator errors.
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
			return
		}
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("worker: completion signal failed")
		return
	}

	if s.store != nil {
		manifest, _ := json.Marshal(map[string]any{
			"job_id":            done.ID,
			"input_count":       done.InputCount,
			"input_bytes":       done.InputBytes,
			"output_size_bytes": done.OutputSizeBytes,
			"finished_at":       done.FinishedAt,
		})
		if _, err := s.store.Write(ctx, storage.ManifestKey(done.ID), manifest); err != nil {
			s.log.Warn().Err(err).Str("job_id", done.ID).Msg("worker: manifest write failed")
		}
	}
	s.log.Info().Str("job_id", done.ID).Int64("output_bytes", done.OutputSizeBytes).Msg("worker: job completed")
}
