package model

import (
	"time"
)

// TimestampLayout is the stored form of every submission time: UTC with a Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp reads a stored timestamp. RFC 3339 input is accepted too.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// UTCDate returns the calendar date of t in UTC as YYYY-MM-DD.
func UTCDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// MetricSet maps metric names to values. The required keys vary per assignment.
type MetricSet map[string]float64

// Clone returns an independent copy.
func (m MetricSet) Clone() MetricSet {
	if m == nil {
		return nil
	}
	out := make(MetricSet, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SubmissionRecord is one append-only log entry.
type SubmissionRecord struct {
	ID              string            `json:"id"`
	Student         StudentIdentity   `json:"student_info"`
	AssignmentID    string            `json:"assignment_id"`
	Metrics         MetricSet         `json:"metrics"`
	Timestamp       string            `json:"timestamp"`
	SubmissionCount int               `json:"submission_count"`
	Checksums       map[string]string `json:"checksums,omitempty"`
	Files           map[string]string `json:"files,omitempty"`
	Contributor     Contributor       `json:"contributor,omitempty"`
	Signature       string            `json:"signature,omitempty"`
}

// Submission is an inbound submission before it is reconciled.
type Submission struct {
	Student      StudentIdentity
	AssignmentID string
	Metrics      MetricSet
	Checksums    map[string]string
	Files        map[string]string
	Contributor  Contributor
}
