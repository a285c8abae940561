package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/classboard/internal/domain/gate"
	"github.com/okian/classboard/internal/domain/leaderboard"
	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/pkg/logger"
	"github.com/okian/classboard/pkg/metrics"
)

const defaultDailyLimit = 100

// Reconciler processes submissions. It is safe for concurrent use:
// submissions to one assignment are serialized, different assignments run in
// parallel.
type Reconciler struct {
	configs  ConfigProvider
	log      SubmissionLog
	boards   LeaderboardRepository
	archiver ArchiveTrigger
	notifier Notifier
	signer   Signer
	locks    *Locks
	now      func() time.Time
	newID    func() string
	logger   logger.Logger

	defaultDailyLimit int
}

// New creates a Reconciler over the given collaborators.
func New(configs ConfigProvider, log SubmissionLog, boards LeaderboardRepository, opts ...Option) *Reconciler {
	r := &Reconciler{
		configs:           configs,
		log:               log,
		boards:            boards,
		locks:             NewLocks(),
		now:               time.Now,
		newID:             uuid.NewString,
		logger:            logger.Get().Named("reconciler"),
		defaultDailyLimit: defaultDailyLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit reconciles one submission. Rejections are *model.SubmissionError;
// any other failure is wrapped as KindUnexpected.
func (r *Reconciler) Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordReconcileLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	res, err := r.submit(ctx, sub)
	if err != nil {
		kind := model.KindOf(err)
		if kind == model.KindUnexpected {
			if _, ok := err.(*model.SubmissionError); !ok {
				err = model.NewUnexpectedError(err)
			}
			r.logger.Error(ctx, "submission failed",
				logger.String("assignment_id", sub.AssignmentID),
				logger.String("student_id", sub.Student.StudentID),
				logger.Error(err),
			)
		} else {
			r.logger.Info(ctx, "submission rejected",
				logger.String("assignment_id", sub.AssignmentID),
				logger.String("student_id", sub.Student.StudentID),
				logger.String("kind", string(kind)),
				logger.String("reason", err.Error()),
			)
		}
		metrics.RecordSubmissionRejected(string(kind))
		return model.SubmissionResult{}, err
	}
	metrics.RecordSubmissionAccepted(sub.AssignmentID)
	return res, nil
}

func (r *Reconciler) submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error) {
	cfg, ok, err := r.configs.AssignmentConfig(ctx, sub.AssignmentID)
	if err != nil {
		return model.SubmissionResult{}, fmt.Errorf("load assignment %q: %w", sub.AssignmentID, err)
	}
	if !ok {
		return model.SubmissionResult{}, model.NewUnknownAssignmentError(sub.AssignmentID)
	}

	// Assignment before student, always, so the two never deadlock.
	unlockAssignment := r.locks.Assignment(sub.AssignmentID)
	defer unlockAssignment()
	unlockStudent := r.locks.Student(sub.Student.StudentID)
	defer unlockStudent()

	if err := r.checkIdentity(ctx, sub.Student); err != nil {
		return model.SubmissionResult{}, err
	}
	if err := checkSchema(cfg, sub); err != nil {
		return model.SubmissionResult{}, err
	}

	now := r.now().UTC()
	if d := gate.CheckDeadline(cfg.DeadlineAt, now); !d.Open {
		if d.Archive && r.archiver != nil {
			r.archiver.ArchiveIfDeadlinePassed(ctx, cfg.ID, *cfg.DeadlineAt)
		}
		return model.SubmissionResult{}, model.NewDeadlineExceededError()
	}

	today, err := r.log.CountOnDate(ctx, sub.Student.StudentID, cfg.ID, model.UTCDate(now))
	if err != nil {
		return model.SubmissionResult{}, fmt.Errorf("count daily submissions: %w", err)
	}
	if limit := cfg.DailyLimit(r.defaultDailyLimit); !gate.CheckDailyLimit(today, limit) {
		return model.SubmissionResult{}, model.NewRateLimitExceededError(limit)
	}

	if bad := gate.MismatchedChecksums(cfg.Checksums, sub.Checksums); len(bad) > 0 {
		return model.SubmissionResult{}, model.NewChecksumMismatchError(bad)
	}

	rec, err := r.persist(ctx, cfg, sub, now)
	if err != nil {
		return model.SubmissionResult{}, err
	}
	return r.rank(ctx, cfg, rec)
}

func (r *Reconciler) checkIdentity(ctx context.Context, student model.StudentIdentity) error {
	registered, found, err := r.log.EarliestIdentity(ctx, student.StudentID)
	if err != nil {
		return fmt.Errorf("look up identity: %w", err)
	}
	if !found {
		return nil
	}
	if diff := registered.Diff(student); len(diff) > 0 {
		return model.NewIdentityMismatchError(diff)
	}
	return nil
}

func checkSchema(cfg *model.Assignment, sub model.Submission) error {
	if !sub.Contributor.Valid() {
		return model.NewValidationError("contributor must be human or ai", "contributor")
	}
	p := gate.CheckMetrics(sub.Metrics, cfg.Required())
	switch {
	case p.OK():
		return nil
	case len(p.Invalid) == 0:
		return model.NewValidationError("missing required metrics", p.Missing...)
	case len(p.Missing) == 0:
		return model.NewValidationError("metrics must be finite non-negative numbers", p.Invalid...)
	default:
		return model.NewValidationError("metrics missing or invalid", append(p.Missing, p.Invalid...)...)
	}
}

func (r *Reconciler) persist(ctx context.Context, cfg *model.Assignment, sub model.Submission, now time.Time) (model.SubmissionRecord, error) {
	prior, err := r.log.Count(ctx, sub.Student.StudentID, cfg.ID)
	if err != nil {
		return model.SubmissionRecord{}, fmt.Errorf("count submissions: %w", err)
	}
	rec := model.SubmissionRecord{
		ID:              r.newID(),
		Student:         sub.Student,
		AssignmentID:    cfg.ID,
		Metrics:         sub.Metrics.Clone(),
		Timestamp:       model.FormatTimestamp(now),
		SubmissionCount: prior + 1,
		Checksums:       sub.Checksums,
		Files:           sub.Files,
		Contributor:     sub.Contributor,
	}
	if r.signer != nil {
		rec.Signature = r.signer.Sign(rec)
	}
	if err := r.log.Append(ctx, rec); err != nil {
		return model.SubmissionRecord{}, fmt.Errorf("append submission: %w", err)
	}
	return rec, nil
}

func (r *Reconciler) rank(ctx context.Context, cfg *model.Assignment, rec model.SubmissionRecord) (model.SubmissionResult, error) {
	entries, err := r.boards.LoadLeaderboard(ctx, cfg.ID)
	if err != nil {
		return model.SubmissionResult{}, fmt.Errorf("load leaderboard: %w", err)
	}
	board := leaderboard.New(entries, cfg.Policy)

	score := cfg.Policy.Score(rec.Metrics)
	up := board.UpsertBest(model.LeaderboardEntry{
		Student:         rec.Student,
		Score:           score,
		Metrics:         rec.Metrics,
		Timestamp:       rec.Timestamp,
		SubmissionCount: rec.SubmissionCount,
		Contributor:     rec.Contributor,
	})

	updated := board.Entries()
	if err := r.boards.SaveLeaderboard(ctx, cfg.ID, updated); err != nil {
		return model.SubmissionResult{}, fmt.Errorf("save leaderboard: %w", err)
	}
	metrics.RecordLeaderboardOutcome(string(up.Outcome))
	metrics.UpdateLeaderboardEntries(cfg.ID, len(updated))

	var previous *float64
	if up.Outcome != model.OutcomeFirst && up.Previous != nil {
		previous = up.Previous.Score
	}
	rank := up.Rank

	r.logger.Info(ctx, "submission accepted",
		logger.String("assignment_id", cfg.ID),
		logger.String("student_id", rec.Student.StudentID),
		logger.String("outcome", string(up.Outcome)),
		logger.Int("rank", rank),
		logger.Int("submission_count", rec.SubmissionCount),
	)

	if r.notifier != nil {
		r.notifier.LeaderboardChanged(ctx, cfg.ID, rec.Student.StudentID, rank, updated)
	}

	return model.SubmissionResult{
		Success:            true,
		Message:            up.Outcome.Message(score, previous),
		SubmissionCount:    rec.SubmissionCount,
		LeaderboardUpdated: true,
		CurrentRank:        &rank,
		Score:              score,
		PreviousScore:      previous,
	}, nil
}
