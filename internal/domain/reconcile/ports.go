// Package reconcile runs one submission through identity, schema, deadline,
// rate and checksum checks, appends it to the log and merges it into the
// assignment's leaderboard.
package reconcile

import (
	"context"
	"time"

	"github.com/okian/classboard/internal/domain/model"
)

// ConfigProvider resolves assignment configuration. Returned assignments are
// already normalized.
type ConfigProvider interface {
	AssignmentConfig(ctx context.Context, assignmentID string) (*model.Assignment, bool, error)
}

// SubmissionLog is the append-only submission history.
type SubmissionLog interface {
	Append(ctx context.Context, rec model.SubmissionRecord) error
	Count(ctx context.Context, studentID, assignmentID string) (int, error)
	// CountOnDate counts records whose UTC date is date (YYYY-MM-DD).
	CountOnDate(ctx context.Context, studentID, assignmentID, date string) (int, error)
	// EarliestIdentity returns the identity of the first record ever stored
	// for studentID across all assignments.
	EarliestIdentity(ctx context.Context, studentID string) (model.StudentIdentity, bool, error)
}

// LeaderboardRepository persists ordered leaderboards. SaveLeaderboard
// replaces the whole document or nothing.
type LeaderboardRepository interface {
	LoadLeaderboard(ctx context.Context, assignmentID string) ([]model.LeaderboardEntry, error)
	SaveLeaderboard(ctx context.Context, assignmentID string, entries []model.LeaderboardEntry) error
}

// ArchiveTrigger schedules archival of a closed assignment. It must not block
// and must be idempotent per assignment.
type ArchiveTrigger interface {
	ArchiveIfDeadlinePassed(ctx context.Context, assignmentID string, deadline time.Time)
}

// Notifier is told about every leaderboard change.
type Notifier interface {
	LeaderboardChanged(ctx context.Context, assignmentID, studentID string, rank int, entries []model.LeaderboardEntry)
}

// Signer produces the signature stored on each record.
type Signer interface {
	Sign(rec model.SubmissionRecord) string
}
