package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimateDurationMs(t *testing.T) {
	tests := []struct {
		name       string
		inputCount int
		inputBytes int64
		want       int64
	}{
		{"minimum set, no payload", 4, 0, 78_000},
		{"ten images, 20 MiB", 10, 20 << 20, 180_000},
		{"maximum set", 50, 500 << 20, 1_380_000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EstimateDurationMs(tc.inputCount, tc.inputBytes)
			assert.Equal(t, tc.want, got)
			// Deterministic: same inputs, same estimate.
			assert.Equal(t, got, EstimateDurationMs(tc.inputCount, tc.inputBytes))
		})
	}
}

func TestEstimateDurationMonotonic(t *testing.T) {
	base := EstimateDurationMs(10, 1<<20)
	assert.Greater(t, EstimateDurationMs(11, 1<<20), base, "more images cost more")
	assert.Greater(t, EstimateDurationMs(10, 2<<20), base, "more bytes cost more")
}

func TestEstimateOutputSize(t *testing.T) {
	assert.Equal(t, int64(8<<20), EstimateOutputSize(0))
	assert.Equal(t, int64(8<<20)+(100<<20)/4, EstimateOutputSize(100<<20))
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	j := &Job{ID: "j1", StartedAt: &now}
	c := j.Clone()
	c.StartedAt = nil
	c.ProgressPercent = 50
	assert.NotNil(t, j.StartedAt)
	assert.Zero(t, j.ProgressPercent)
}

func TestTerminal(t *testing.T) {
	assert.False(t, JobStateQueued.Terminal())
	assert.False(t, JobStateProcessing.Terminal())
	assert.True(t, JobStateCompleted.Terminal())
	assert.True(t, JobStateFailed.Terminal())
}
