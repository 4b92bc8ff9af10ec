package core

import (
	"context"
	"time"

	"github.com/kali23041/3d-gsplat/internal/domain"
)

// DefaultProgressInterval is how often processing jobs are re-evaluated when
// no interval is configured.
const DefaultProgressInterval = time.Second

// progressAt computes the displayed completion percentage and remaining time
// for a job at the given instant. Pure arithmetic over elapsed wall time and
// the creation-time duration estimate:
//
//   - clamped to [0, 99] while Processing; 100 belongs to the Completed
//     transition alone, so a job never flashes done before it is
//   - never below the last recorded percent, which absorbs clock skew and
//     racing re-evaluations
//   - degrades to the last known value instead of failing when inputs are
//     inconsistent (missing StartedAt, zero estimate)
func progressAt(j *domain.Job, now time.Time) (percent int, etaMs int64) {
	if j.State != domain.JobStateProcessing || j.StartedAt == nil || j.EstimatedDurationMs <= 0 {
		return j.ProgressPercent, 0
	}
	elapsed := now.Sub(*j.StartedAt).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	raw := int(100 * elapsed / j.EstimatedDurationMs)
	if raw > 99 {
		raw = 99
	}
	if raw < j.ProgressPercent {
		raw = j.ProgressPercent
	}
	etaMs = j.EstimatedDurationMs - elapsed
	if etaMs < 0 {
		etaMs = 0
	}
	return raw, etaMs
}

// LiveProgress reports the display percent and ETA for a job snapshot at the
// given instant without mutating anything. Handlers use it so a GET between
// estimator ticks still shows current numbers.
func LiveProgress(j *domain.Job, now time.Time) (percent int, etaMs int64) {
	return progressAt(j, now)
}

// Tick re-evaluates progress for every Processing job and publishes a change
// event for each one that moved. It runs under the membership read lock so a
// concurrent Delete cannot complete while an update for its job is in flight.
func (s *Service) Tick(_ context.Context) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.jobs {
		e.mu.Lock()
		if e.job.State == domain.JobStateProcessing {
			pct, eta := progressAt(e.job, now)
			if pct != e.job.ProgressPercent {
				e.job.ProgressPercent = pct
				ev := changeEvent(e.job, domain.EventProgress, "")
				ev.EtaMs = eta
				s.notifier.Publish(ev)
			}
		}
		e.mu.Unlock()
	}
}

// RunEstimator periodically ticks until the context is canceled. Run it in
// its own goroutine next to the HTTP server.
func (s *Service) RunEstimator(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick(ctx)
		}
	}
}
