// Package repository persists submissions, leaderboards and archive state.
// Two drivers share one contract: JSON documents on disk and SQLite.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/internal/domain/reconcile"
)

// Driver names.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ArchiveRecord is the persisted archive flag of one assignment.
type ArchiveRecord struct {
	Archived   bool   `json:"archived"`
	ArchivedAt string `json:"archived_at,omitempty"`
}

// Snapshot is the full state of one assignment as exported to backups and
// archives.
type Snapshot struct {
	AssignmentID string
	Submissions  []model.SubmissionRecord
	Leaderboard  []model.RankedEntry
}

// Store is the persistence contract of the service.
type Store interface {
	reconcile.SubmissionLog
	reconcile.LeaderboardRepository

	// Submissions returns a student's records for one assignment in append order.
	Submissions(ctx context.Context, studentID, assignmentID string) ([]model.SubmissionRecord, error)

	IsArchived(ctx context.Context, assignmentID string) (bool, error)
	MarkArchived(ctx context.Context, assignmentID string, at time.Time) error

	Snapshot(ctx context.Context, assignmentID string) (Snapshot, error)

	Driver() string
	Close() error
}

// Open creates the store for driver. dataDir holds the file driver's
// documents; sqlitePath is the database file of the sqlite driver.
func Open(ctx context.Context, driver, dataDir, sqlitePath string, opts ...Option) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverFile:
		return NewFileStore(ctx, dataDir, opts...)
	case DriverSQLite:
		return NewSQLiteStore(ctx, sqlitePath, opts...)
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "driver %q", driver)
	}
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
