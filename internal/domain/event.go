package domain

import "time"

// EventKind enumerates job change notification types.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventRenamed   EventKind = "renamed"
	EventAdmitted  EventKind = "admitted"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventDeleted   EventKind = "deleted"
	// EventSchedulerNote carries informational scheduler reports, e.g. a
	// poisoned queue head that was skipped.
	EventSchedulerNote EventKind = "scheduler_note"
)

// JobChangeEvent is pushed to subscribers whenever a job mutates.
type JobChangeEvent struct {
	Kind            EventKind `json:"kind"`
	JobID           string    `json:"job_id"`
	OwnerID         string    `json:"owner_id"`
	State           JobState  `json:"state"`
	ProgressPercent int       `json:"progress_percent"`
	QueuePosition   int       `json:"queue_position,omitempty"`
	EtaMs           int64     `json:"eta_ms,omitempty"`
	Note            string    `json:"note,omitempty"`
	At              time.Time `json:"at"`
}
