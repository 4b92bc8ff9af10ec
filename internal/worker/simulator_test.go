package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kali23041/3d-gsplat/internal/core"
	"github.com/kali23041/3d-gsplat/internal/domain"
	"github.com/kali23041/3d-gsplat/internal/storage"
)

func TestSweepCompletesElapsedJobs(t *testing.T) {
	ctx := context.Background()
	svc := core.New(2, domain.NoopRepository{}, zerolog.Nop())
	store, err := storage.NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	job, err := svc.Create(ctx, "alice", "scan", 10, 1<<20)
	require.NoError(t, err)
	fresh, err := svc.Create(ctx, "alice", "just started", 10, 1<<20)
	require.NoError(t, err)

	sim := NewSimulator(svc, store, zerolog.Nop(), time.Second)
	// Pretend the first job's estimate has fully elapsed.
	sim.now = func() time.Time {
		return time.Now().Add(time.Duration(job.EstimatedDurationMs+1000) * time.Millisecond)
	}
	sim.sweep(ctx)

	done, err := svc.Get(ctx, job.ID, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, done.State)
	assert.Equal(t, 100, done.ProgressPercent)

	// Both jobs started around the same instant with the same estimate, so
	// both complete; the manifest lands on disk for each.
	gotFresh, err := svc.Get(ctx, fresh.ID, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, gotFresh.State)

	manifest := filepath.Join(store.BasePath(), filepath.FromSlash(storage.ManifestKey(job.ID)))
	_, statErr := os.Stat(manifest)
	assert.NoError(t, statErr, "manifest written for completed job")
}

func TestDeleteCleansUpArtifacts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := core.New(1, domain.NoopRepository{}, zerolog.Nop())
	store, err := storage.NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	job, err := svc.Create(ctx, "alice", "scan", 10, 1<<20)
	require.NoError(t, err)

	sim := NewSimulator(svc, store, zerolog.Nop(), 5*time.Millisecond)
	sim.now = func() time.Time { return time.Now().Add(time.Hour) }
	go func() { _ = sim.Run(ctx) }()

	manifest := filepath.Join(store.BasePath(), filepath.FromSlash(storage.ManifestKey(job.ID)))
	require.Eventually(t, func() bool {
		_, err := os.Stat(manifest)
		return err == nil
	}, 5*time.Second, 5*time.Millisecond, "simulator completes the job and writes the manifest")

	require.NoError(t, svc.Delete(ctx, job.ID, "alice", false))
	require.Eventually(t, func() bool {
		_, err := os.Stat(manifest)
		return os.IsNotExist(err)
	}, 5*time.Second, 5*time.Millisecond, "artifacts removed once the job is deleted")
}

func TestHandleEventIgnoresNonDeleteKinds(t *testing.T) {
	store, err := storage.NewArtifactStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Write(context.Background(), storage.ManifestKey("job-1"), []byte("{}"))
	require.NoError(t, err)

	svc := core.New(1, domain.NoopRepository{}, zerolog.Nop())
	sim := NewSimulator(svc, store, zerolog.Nop(), time.Second)
	sim.handleEvent(domain.JobChangeEvent{Kind: domain.EventCompleted, JobID: "job-1"})

	manifest := filepath.Join(store.BasePath(), filepath.FromSlash(storage.ManifestKey("job-1")))
	_, statErr := os.Stat(manifest)
	assert.NoError(t, statErr, "completion does not remove artifacts")

	sim.handleEvent(domain.JobChangeEvent{Kind: domain.EventDeleted, JobID: "job-1"})
	_, statErr = os.Stat(manifest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSweepLeavesUnfinishedJobsRunning(t *testing.T) {
	ctx := context.Background()
	svc := core.New(1, domain.NoopRepository{}, zerolog.Nop())

	job, err := svc.Create(ctx, "alice", "scan", 10, 0)
	require.NoError(t, err)

	sim := NewSimulator(svc, nil, zerolog.Nop(), time.Second)
	sim.sweep(ctx)

	got, err := svc.Get(ctx, job.ID, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateProcessing, got.State, "estimate not yet elapsed")
}

func TestSweepToleratesConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	svc := core.New(1, domain.NoopRepository{}, zerolog.Nop())

	job, err := svc.Create(ctx, "alice", "scan", 10, 0)
	require.NoError(t, err)

	sim := NewSimulator(svc, nil, zerolog.Nop(), time.Second)
	sim.now = func() time.Time { return time.Now().Add(time.Hour) }

	// Delete between the snapshot and the completion signal.
	snapshot := svc.ListProcessing(ctx)
	require.Len(t, snapshot, 1)
	require.NoError(t, svc.Delete(ctx, job.ID, "alice", false))
	sim.complete(ctx, snapshot[0])

	assert.Empty(t, svc.ListByOwner(ctx, "alice"))
}
