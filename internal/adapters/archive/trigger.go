package archive

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okian/classboard/internal/domain/dedupe"
	"github.com/okian/classboard/internal/domain/gate"
	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/pkg/logger"
	"github.com/okian/classboard/pkg/metrics"
)

// Enqueuer accepts background jobs without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, j model.Job) error
}

// Trigger decides when an assignment is archived. Inside the archive window
// it schedules a copy on the job queue; past it, the assignment is flagged
// archived without copying. Each assignment is copied at most once.
type Trigger struct {
	store    Store
	archiver *Archiver
	queue    Enqueuer
	seen     dedupe.Deduper
	now      func() time.Time
	logger   logger.Logger
}

// NewTrigger creates a Trigger. It also handles the jobs it enqueues.
func NewTrigger(store Store, archiver *Archiver, queue Enqueuer, seen dedupe.Deduper, opts ...Option) *Trigger {
	o := applyOptions(opts)
	if seen == nil {
		seen = dedupe.NewInMemoryDeduper()
	}
	return &Trigger{
		store:    store,
		archiver: archiver,
		queue:    queue,
		seen:     seen,
		now:      o.now,
		logger:   logger.Get().Named("archive-trigger"),
	}
}

// ArchiveIfDeadlinePassed implements reconcile.ArchiveTrigger. It never blocks
// on the copy itself.
func (t *Trigger) ArchiveIfDeadlinePassed(ctx context.Context, assignmentID string, deadline time.Time) {
	now := t.now().UTC()
	if !now.After(deadline) {
		return
	}
	if t.seen.SeenAndRecord(ctx, assignmentID) {
		return
	}

	archived, err := t.store.IsArchived(ctx, assignmentID)
	if err != nil {
		t.seen.Unrecord(ctx, assignmentID)
		t.logger.Error(ctx, "read archive state", logger.String("assignment_id", assignmentID), logger.Error(err))
		return
	}
	if archived {
		return
	}

	if now.Sub(deadline) >= gate.ArchiveWindow {
		if err := t.store.MarkArchived(ctx, assignmentID, now); err != nil {
			t.seen.Unrecord(ctx, assignmentID)
			metrics.RecordArchive("failed")
			t.logger.Error(ctx, "mark archived", logger.String("assignment_id", assignmentID), logger.Error(err))
			return
		}
		metrics.RecordArchive("skipped")
		t.logger.Info(ctx, "archive window passed, flagged without copy",
			logger.String("assignment_id", assignmentID))
		return
	}

	job := model.Job{
		ID:           uuid.NewString(),
		Kind:         model.JobArchive,
		AssignmentID: assignmentID,
		Deadline:     deadline,
		EnqueuedAt:   now,
	}
	if err := t.queue.Enqueue(ctx, job); err != nil {
		t.seen.Unrecord(ctx, assignmentID)
		metrics.RecordArchive("rejected")
		t.logger.Warn(ctx, "archive job not queued",
			logger.String("assignment_id", assignmentID), logger.Error(err))
		return
	}
	t.logger.Debug(ctx, "archive job queued",
		logger.String("assignment_id", assignmentID), logger.String("job_id", job.ID))
}

// HandleJob implements worker.JobHandler for archive jobs. A failed copy
// releases the claim so a later trigger retries.
func (t *Trigger) HandleJob(ctx context.Context, j model.Job) error {
	if j.Kind != model.JobArchive {
		return errors.New("unsupported job kind: " + string(j.Kind))
	}
	archived, err := t.store.IsArchived(ctx, j.AssignmentID)
	if err == nil && archived {
		return nil
	}
	if err == nil {
		err = t.archiver.Archive(ctx, j.AssignmentID)
	}
	if err != nil {
		t.seen.Unrecord(ctx, j.AssignmentID)
		metrics.RecordArchive("failed")
		return err
	}
	metrics.RecordArchive("archived")
	return nil
}

// Sweep triggers archival for every listed assignment whose deadline passed.
func (t *Trigger) Sweep(ctx context.Context, lister Lister) error {
	assignments, err := lister.Assignments(ctx)
	if err != nil {
		return err
	}
	now := t.now().UTC()
	for _, a := range assignments {
		if a.DeadlineAt != nil && a.Expired(now) {
			t.ArchiveIfDeadlinePassed(ctx, a.ID, *a.DeadlineAt)
		}
	}
	return nil
}
