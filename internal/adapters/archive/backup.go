package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/classboard/internal/adapters/repository"
	"github.com/okian/classboard/pkg/logger"
	"github.com/okian/classboard/pkg/metrics"
)

var checkpointStamp = regexp.MustCompile(`_(\d{8}_\d{6})\.json$`)

// BackupReport summarizes one backup run.
type BackupReport struct {
	Assignments int
	Files       int
	Removed     int
	// Tampered counts signed records whose signature no longer matches.
	Tampered int
}

// Backup writes timestamped checkpoints of every assignment and prunes old ones.
type Backup struct {
	store       Store
	lister      Lister
	dir         string
	fsync       bool
	retention   time.Duration
	concurrency int
	lock        LockFunc
	verifier    Verifier
	now         func() time.Time
	logger      logger.Logger
}

// NewBackup creates a Backup writing under dir.
func NewBackup(store Store, lister Lister, dir string, opts ...Option) *Backup {
	o := applyOptions(opts)
	return &Backup{
		store:       store,
		lister:      lister,
		dir:         dir,
		fsync:       o.fsync,
		retention:   o.retention,
		concurrency: o.concurrency,
		lock:        o.lock,
		verifier:    o.verifier,
		now:         o.now,
		logger:      logger.Get().Named("backup"),
	}
}

// Run checkpoints all assignments, then removes expired checkpoints.
func (b *Backup) Run(ctx context.Context) (rep BackupReport, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "failed"
		}
		metrics.RecordBackup(result, float64(time.Since(start).Microseconds())/1000)
	}()

	assignments, err := b.lister.Assignments(ctx)
	if err != nil {
		return rep, fmt.Errorf("list assignments: %w", err)
	}
	stamp := b.now().UTC().Format(FileTimestampLayout)

	tampered := make([]int, len(assignments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, a := range assignments {
		id := a.ID
		g.Go(func() error {
			n, err := b.checkpoint(gctx, id, stamp)
			tampered[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	for _, n := range tampered {
		rep.Tampered += n
	}
	rep.Assignments = len(assignments)
	rep.Files = 2 * len(assignments)

	removed, err := b.Cleanup(ctx)
	rep.Removed = removed
	if err != nil {
		return rep, err
	}

	b.logger.Info(ctx, "backup completed",
		logger.Int("assignments", rep.Assignments),
		logger.Int("files", rep.Files),
		logger.Int("removed", rep.Removed),
		logger.Int("tampered", rep.Tampered),
		logger.Duration("took", time.Since(start)),
	)
	return rep, nil
}

// checkpoint copies one assignment and returns how many of its signed
// records fail verification.
func (b *Backup) checkpoint(ctx context.Context, assignmentID, stamp string) (int, error) {
	snap, err := snapshot(ctx, b.store, b.lock, assignmentID)
	if err != nil {
		return 0, err
	}
	tampered := b.verify(ctx, snap)
	subs := filepath.Join(b.dir, "submissions", assignmentID,
		fmt.Sprintf("submissions_%s_%s.json", assignmentID, stamp))
	if err := repository.WriteJSONAtomic(subs, nonNilRecords(snap.Submissions), b.fsync); err != nil {
		return tampered, err
	}
	board := filepath.Join(b.dir, "leaderboard", assignmentID,
		fmt.Sprintf("leaderboard_%s_%s.json", assignmentID, stamp))
	return tampered, repository.WriteJSONAtomic(board, nonNilEntries(snap.Leaderboard), b.fsync)
}

// verify skips unsigned records; they predate the signing secret.
func (b *Backup) verify(ctx context.Context, snap repository.Snapshot) int {
	if b.verifier == nil {
		return 0
	}
	tampered := 0
	for _, rec := range snap.Submissions {
		if rec.Signature == "" || b.verifier.Verify(rec) {
			continue
		}
		tampered++
		b.logger.Warn(ctx, "submission signature mismatch",
			logger.String("assignment_id", snap.AssignmentID),
			logger.String("student_id", rec.Student.StudentID),
			logger.String("record_id", rec.ID),
		)
	}
	metrics.RecordTamperedRecords(tampered)
	return tampered
}

// Cleanup deletes checkpoints whose file-name timestamp is older than the
// retention period. Files without a timestamp are left alone.
func (b *Backup) Cleanup(ctx context.Context) (int, error) {
	cutoff := b.now().UTC().Add(-b.retention)
	removed := 0
	err := filepath.WalkDir(b.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		m := checkpointStamp.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		ts, perr := time.ParseInLocation(FileTimestampLayout, m[1], time.UTC)
		if perr != nil || !ts.Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	metrics.RecordCheckpointsRemoved(removed)
	if err != nil {
		return removed, fmt.Errorf("cleanup checkpoints: %w", err)
	}
	return removed, nil
}
