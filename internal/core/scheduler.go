package core

import (
	"context"
	"sort"

	"github.com/kali23041/3d-gsplat/internal/domain"
)

// Admission policy: strict FIFO over queued jobs by creation time, ties
// broken by id, at most `capacity` jobs Processing at once. Admission runs
// inside the s.mu critical section on every slot-freeing or queue-membership
// event; there is no scheduler goroutine to fall behind.

func (s *Service) sortQueueLocked() {
	sort.SliceStable(s.queue, func(i, k int) bool {
		a, b := s.queue[i].job, s.queue[k].job
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// admitLocked promotes queue heads into Processing while capacity allows.
// A head that is no longer admissible (already terminal or otherwise not
// Queued) is dropped from the queue and reported, never retried, so one
// poisoned entry cannot stall everything behind it.
func (s *Service) admitLocked() {
	for s.running < s.capacity && len(s.queue) > 0 {
		e := s.queue[0]
		s.queue = s.queue[1:]

		e.mu.Lock()
		if e.job.State != domain.JobStateQueued {
			note := "skipped non-queued entry at queue head"
			ev := changeEvent(e.job, domain.EventSchedulerNote, note)
			e.mu.Unlock()
			s.log.Warn().Str("job_id", ev.JobID).Msg("core: " + note)
			s.notifier.Publish(ev)
			continue
		}
		now := s.now()
		e.job.State = domain.JobStateProcessing
		e.job.StartedAt = &now
		e.job.QueuePosition = 0
		s.running++
		ev := changeEvent(e.job, domain.EventAdmitted, "")
		ev.EtaMs = e.job.EstimatedDurationMs
		snapshot := e.job.Clone()
		e.mu.Unlock()

		s.notifier.Publish(ev)
		s.log.Info().Str("job_id", snapshot.ID).Int("running", s.running).Msg("core: job admitted")
		// The admission critical section must not do I/O; the write-through
		// record catches up off the lock. A crash in between is covered by
		// Restore, which re-queues Processing jobs.
		go s.persist(context.Background(), snapshot)
	}
}

// rerankLocked rewrites QueuePosition as the 1-based FIFO rank for every
// queued job. Positions form a contiguous run starting at 1.
func (s *Service) rerankLocked() {
	for i, e := range s.queue {
		e.mu.Lock()
		e.job.QueuePosition = i + 1
		e.mu.Unlock()
	}
}

func (s *Service) removeFromQueueLocked(target *jobEntry) {
	for i, e := range s.queue {
		if e == target {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// RunningCount reports how many jobs currently hold a processing slot.
func (s *Service) RunningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// QueueLength reports how many jobs are waiting for a slot.
func (s *Service) QueueLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}
