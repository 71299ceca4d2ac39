package domain

import "time"

type JobType string

const (
	JobTypeScheduled JobType = "scheduled"
	JobTypeManual    JobType = "manual"
	JobTypeBulk      JobType = "bulk"
)

type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusPartial   JobStatus = "partial"
)

// SyncJob is created at job start (running) and finalized exactly once with a
// terminal status. Immutable afterward.
type SyncJob struct {
	ID            string
	JobType       JobType
	Status        JobStatus
	TriggeredBy   string
	StartedAt     time.Time
	CompletedAt   *time.Time
	HotelsTotal   int
	HotelsSuccess int
	HotelsFailed  int
	ErrorMessage  *string
}

// SyncError is one failed (hotel, source) attempt within a job. Append-only.
type SyncError struct {
	JobID        string
	HotelID      int64
	Source       Source
	ErrorType    string
	ErrorMessage string
	CreatedAt    time.Time
}
