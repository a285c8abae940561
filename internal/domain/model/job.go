package model

import "time"

// JobKind names background work handled by the worker pool.
type JobKind string

const (
	JobArchive JobKind = "archive"
)

// Job is a unit of background work flowing through the job queue.
type Job struct {
	ID           string
	Kind         JobKind
	AssignmentID string
	Deadline     time.Time
	EnqueuedAt   time.Time
}
