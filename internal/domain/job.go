package domain

import "time"

// JobState enumerates reconstruction job lifecycle states.
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Input constraints for a reconstruction request. A capture set needs at
// least four viewpoints to triangulate; uploads are capped at 50 images of
// 10 MiB each.
const (
	MinInputCount      = 4
	MaxInputCount      = 50
	MaxInputImageBytes = 10 << 20
	MaxNameLen         = 120
)

// Job encapsulates one submitted image-set reconstruction tracked through its
// lifecycle. StartedAt and FinishedAt stay nil until the corresponding
// transition happens, and are set exactly once.
type Job struct {
	ID                  string
	OwnerID             string
	Name                string
	InputCount          int
	InputBytes          int64
	State               JobState
	CreatedAt           time.Time
	StartedAt           *time.Time
	FinishedAt          *time.Time
	EstimatedDurationMs int64
	QueuePosition       int
	ProgressPercent     int
	FailureReason       string
	OutputSizeBytes     int64
}

// Clone returns a deep copy safe to hand to readers while the original keeps
// being mutated under its lock.
func (j *Job) Clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Duration cost model: a fixed pipeline setup cost, a per-image marginal cost
// for feature extraction, and a per-MiB cost for payload handling. Pure
// integer arithmetic so progress math is reproducible.
const (
	baseDurationMs = 30_000
	perImageMs     = 12_000
	perMiBMs       = 1_500
)

// EstimateDurationMs derives the expected processing duration from the input
// set. Monotonically increasing in both arguments.
func EstimateDurationMs(inputCount int, inputBytes int64) int64 {
	return baseDurationMs + int64(inputCount)*perImageMs + inputBytes*perMiBMs/(1<<20)
}

// EstimateOutputSize derives the size of the compressed splat model produced
// for a completed job.
func EstimateOutputSize(inputBytes int64) int64 {
	return inputBytes/4 + 8<<20
}
