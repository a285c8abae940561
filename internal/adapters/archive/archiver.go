// Package archive copies closed assignments to the archive directory and
// keeps rolling checkpoints of every assignment.
package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/okian/classboard/internal/adapters/repository"
	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/pkg/logger"
)

// FileTimestampLayout stamps archive and checkpoint file names.
const FileTimestampLayout = "20060102_150405"

// Store is the persistence the archive package reads from and flags into.
type Store interface {
	Snapshot(ctx context.Context, assignmentID string) (repository.Snapshot, error)
	IsArchived(ctx context.Context, assignmentID string) (bool, error)
	MarkArchived(ctx context.Context, assignmentID string, at time.Time) error
}

// Lister enumerates the configured assignments.
type Lister interface {
	Assignments(ctx context.Context) ([]*model.Assignment, error)
}

// Archiver writes one assignment's documents into dir and flags it archived.
type Archiver struct {
	store  Store
	dir    string
	fsync  bool
	lock   LockFunc
	now    func() time.Time
	logger logger.Logger
}

// NewArchiver creates an Archiver writing into dir.
func NewArchiver(store Store, dir string, opts ...Option) *Archiver {
	o := applyOptions(opts)
	return &Archiver{store: store, dir: dir, fsync: o.fsync, lock: o.lock, now: o.now, logger: logger.Get().Named("archiver")}
}

// Archive copies the submission log and leaderboard of assignmentID and
// records the archived flag. The flag is only written after both copies
// succeed.
func (a *Archiver) Archive(ctx context.Context, assignmentID string) error {
	snap, err := snapshot(ctx, a.store, a.lock, assignmentID)
	if err != nil {
		return err
	}
	now := a.now().UTC()
	stamp := now.Format(FileTimestampLayout)

	subs := filepath.Join(a.dir, fmt.Sprintf("submissions_%s_%s.json", assignmentID, stamp))
	if err := repository.WriteJSONAtomic(subs, nonNilRecords(snap.Submissions), a.fsync); err != nil {
		return fmt.Errorf("archive submissions: %w", err)
	}
	board := filepath.Join(a.dir, fmt.Sprintf("leaderboard_%s_%s.json", assignmentID, stamp))
	if err := repository.WriteJSONAtomic(board, nonNilEntries(snap.Leaderboard), a.fsync); err != nil {
		return fmt.Errorf("archive leaderboard: %w", err)
	}
	if err := a.store.MarkArchived(ctx, assignmentID, now); err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}

	a.logger.Info(ctx, "assignment archived",
		logger.String("assignment_id", assignmentID),
		logger.Int("submissions", len(snap.Submissions)),
		logger.Int("leaderboard_entries", len(snap.Leaderboard)),
		logger.String("dir", a.dir),
	)
	return nil
}

func snapshot(ctx context.Context, store Store, lock LockFunc, assignmentID string) (repository.Snapshot, error) {
	unlock := lock(assignmentID)
	defer unlock()
	snap, err := store.Snapshot(ctx, assignmentID)
	if err != nil {
		return repository.Snapshot{}, fmt.Errorf("snapshot %s: %w", assignmentID, err)
	}
	return snap, nil
}

func nonNilRecords(r []model.SubmissionRecord) []model.SubmissionRecord {
	if r == nil {
		return []model.SubmissionRecord{}
	}
	return r
}

func nonNilEntries(e []model.RankedEntry) []model.RankedEntry {
	if e == nil {
		return []model.RankedEntry{}
	}
	return e
}
