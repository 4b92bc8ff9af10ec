package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kali23041/3d-gsplat/internal/domain"
)

func processingJob(startedAt time.Time, estimatedMs int64, lastPercent int) *domain.Job {
	return &domain.Job{
		ID:                  "j1",
		State:               domain.JobStateProcessing,
		StartedAt:           &startedAt,
		EstimatedDurationMs: estimatedMs,
		ProgressPercent:     lastPercent,
	}
}

func TestProgressAt(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		job         *domain.Job
		at          time.Time
		wantPercent int
		wantEtaMs   int64
	}{
		{
			name:        "halfway",
			job:         processingJob(start, 100_000, 0),
			at:          start.Add(50 * time.Second),
			wantPercent: 50,
			wantEtaMs:   50_000,
		},
		{
			name:        "clamped below 100 while processing",
			job:         processingJob(start, 100_000, 0),
			at:          start.Add(10 * time.Minute),
			wantPercent: 99,
			wantEtaMs:   0,
		},
		{
			name:        "never below last recorded value",
			job:         processingJob(start, 100_000, 70),
			at:          start.Add(10 * time.Second),
			wantPercent: 70,
			wantEtaMs:   90_000,
		},
		{
			name:        "clock skew before start",
			job:         processingJob(start, 100_000, 0),
			at:          start.Add(-time.Minute),
			wantPercent: 0,
			wantEtaMs:   100_000,
		},
		{
			name: "missing startedAt degrades to last value",
			job: &domain.Job{
				State:               domain.JobStateProcessing,
				EstimatedDurationMs: 100_000,
				ProgressPercent:     37,
			},
			at:          start,
			wantPercent: 37,
			wantEtaMs:   0,
		},
		{
			name: "queued job stays at zero",
			job:  &domain.Job{State: domain.JobStateQueued},
			at:   start,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pct, eta := progressAt(tc.job, tc.at)
			assert.Equal(t, tc.wantPercent, pct)
			assert.Equal(t, tc.wantEtaMs, eta)
		})
	}
}

func TestProgressMonotonicAcrossObservations(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := processingJob(start, 100_000, 0)

	// Observations jump around in time; recorded progress may only go up.
	offsets := []time.Duration{
		10 * time.Second, 30 * time.Second, 20 * time.Second,
		60 * time.Second, 55 * time.Second, 2 * time.Minute,
	}
	last := 0
	for _, off := range offsets {
		pct, _ := progressAt(job, start.Add(off))
		assert.GreaterOrEqual(t, pct, last, "observation at %v regressed", off)
		job.ProgressPercent = pct
		last = pct
	}
	assert.Equal(t, 99, last)
}

func TestTickUpdatesProcessingJobsAndPublishes(t *testing.T) {
	s, clock := testService(t, 1)
	ctx := context.Background()

	job := mustCreate(t, s, "u1", "scan")
	sub := s.Events().Subscribe(Filter{JobID: job.ID})
	defer sub.Close()

	*clock = clock.Add(time.Duration(job.EstimatedDurationMs/2) * time.Millisecond)
	s.Tick(ctx)

	got, err := s.Get(ctx, job.ID, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, 50, got.ProgressPercent)

	select {
	case ev := <-sub.C:
		assert.Equal(t, domain.EventProgress, ev.Kind)
		assert.Equal(t, 50, ev.ProgressPercent)
		assert.Equal(t, job.EstimatedDurationMs/2, ev.EtaMs)
	default:
		t.Fatal("expected a progress event")
	}

	// A second tick at the same instant publishes nothing new.
	s.Tick(ctx)
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %v", ev.Kind)
	default:
	}
}

func TestTickLeavesQueuedAndTerminalJobsAlone(t *testing.T) {
	s, clock := testService(t, 1)
	ctx := context.Background()

	running := mustCreate(t, s, "u1", "running")
	*clock = clock.Add(time.Second)
	waiting := mustCreate(t, s, "u1", "waiting")

	_, err := s.FailJob(ctx, running.ID, "solver diverged")
	require.NoError(t, err)
	// waiting was admitted by the freed slot; fail it too at a known percent.
	*clock = clock.Add(time.Duration(waiting.EstimatedDurationMs/4) * time.Millisecond)
	s.Tick(ctx)
	failed, err := s.FailJob(ctx, waiting.ID, "solver diverged")
	require.NoError(t, err)
	held := failed.ProgressPercent

	*clock = clock.Add(time.Hour)
	s.Tick(ctx)

	got, err := s.Get(ctx, waiting.ID, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, held, got.ProgressPercent, "failed job progress is frozen")
}
