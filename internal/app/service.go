// Package service wires storage, reconciliation, archival and live updates
// into the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/okian/classboard/internal/adapters/archive"
	"github.com/okian/classboard/internal/adapters/http/ws"
	jobqueue "github.com/okian/classboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/classboard/internal/adapters/mq/worker"
	"github.com/okian/classboard/internal/adapters/repository"
	"github.com/okian/classboard/internal/adapters/schedule"
	"github.com/okian/classboard/internal/adapters/signing"
	"github.com/okian/classboard/internal/domain/dedupe"
	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/internal/domain/reconcile"
	"github.com/okian/classboard/internal/domain/types"
	"github.com/okian/classboard/pkg/logger"
	"github.com/okian/classboard/pkg/metrics"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the classroom leaderboard.
type Service struct {
	mu sync.RWMutex

	// Configuration
	name            string
	driver          string
	dataDir         string
	sqlitePath      string
	checkpointDir   string
	archiveDir      string
	rosterFile      string
	backupSchedule  string
	archiveSchedule string
	retention       time.Duration
	dailyLimit      int
	queueSize       int
	workerCount     int
	signingSecret   string
	backupOnStart   bool
	fsync           bool
	now             func() time.Time

	// Components
	store      repository.Store
	catalog    *repository.Catalog
	reconciler *reconcile.Reconciler
	queue      *jobqueue.InMemoryQueue
	pool       *workerpool.Pool
	trigger    *archive.Trigger
	backup     *archive.Backup
	scheduler  *schedule.Scheduler
	hub        *ws.Hub
	stopHub    context.CancelFunc

	started   bool
	startedAt time.Time
	logger    logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		name:            "classboard",
		driver:          repository.DriverFile,
		dataDir:         "database",
		checkpointDir:   "checkpoint",
		archiveDir:      "homework",
		backupSchedule:  "@every 12h",
		archiveSchedule: "@every 1h",
		retention:       7 * 24 * time.Hour,
		dailyLimit:      100,
		queueSize:       64,
		workerCount:     2,
		backupOnStart:   true,
		fsync:           true,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sqlitePath == "" {
		s.sqlitePath = filepath.Join(s.dataDir, "classboard.db")
	}
	return s
}

// Start opens storage and starts the background components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting classboard service...",
		logger.String("driver", s.driver), logger.String("data_dir", s.dataDir))

	store, err := repository.Open(ctx, s.driver, s.dataDir, s.sqlitePath, repository.WithFsync(s.fsync))
	if err != nil {
		return err
	}
	catalog, err := repository.NewCatalog(filepath.Join(s.dataDir, repository.CatalogFile))
	if err != nil {
		_ = store.Close()
		return err
	}

	locks := reconcile.NewLocks()
	signer := signing.NewHMACSigner(s.signingSecret)
	clock := archive.WithClock(s.now)
	fsync := archive.WithFsync(s.fsync)
	snapshotLock := archive.WithSnapshotLock(locks.Assignment)
	s.store, s.catalog = store, catalog
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.trigger = archive.NewTrigger(store, archive.NewArchiver(store, s.archiveDir, clock, fsync, snapshotLock),
		s.queue, dedupe.NewInMemoryDeduper(), clock)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.trigger)
	bopts := []archive.Option{clock, fsync, snapshotLock, archive.WithRetention(s.retention)}
	if signer != nil {
		bopts = append(bopts, archive.WithVerifier(signer))
	}
	s.backup = archive.NewBackup(store, catalog, s.checkpointDir, bopts...)
	s.hub = ws.NewHub()

	ropts := []reconcile.Option{
		reconcile.WithClock(s.now),
		reconcile.WithLocks(locks),
		reconcile.WithDefaultDailyLimit(s.dailyLimit),
		reconcile.WithArchiveTrigger(s.trigger),
		reconcile.WithNotifier(s.hub),
	}
	if signer != nil {
		ropts = append(ropts, reconcile.WithSigner(signer))
	}
	s.reconciler = reconcile.New(catalog, store, store, ropts...)

	hubCtx, cancel := context.WithCancel(context.Background())
	s.stopHub = cancel
	go s.hub.Run(hubCtx)
	s.pool.Start(context.Background())

	if s.backupOnStart {
		if _, err := s.backup.Run(ctx); err != nil {
			s.logger.Error(ctx, "startup backup failed", logger.Error(err))
		}
	}

	s.scheduler = schedule.New()
	if s.backupSchedule != "" {
		if err := s.scheduler.Add("backup", s.backupSchedule, func(ctx context.Context) error {
			_, err := s.backup.Run(ctx)
			return err
		}); err != nil {
			s.shutdownLocked(ctx)
			return err
		}
	}
	if s.archiveSchedule != "" {
		if err := s.scheduler.Add("archive-sweep", s.archiveSchedule, func(ctx context.Context) error {
			return s.trigger.Sweep(ctx, catalog)
		}); err != nil {
			s.shutdownLocked(ctx)
			return err
		}
	}
	s.scheduler.Start(ctx)

	if list, err := catalog.Assignments(ctx); err == nil {
		metrics.UpdateAssignmentsTotal(len(list))
	}

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "classboard service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Bool("signing", s.signingSecret != ""),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping classboard service...")
	s.shutdownLocked(ctx)
	s.started = false
	s.logger.Info(ctx, "classboard service stopped")
}

func (s *Service) shutdownLocked(ctx context.Context) {
	if s.scheduler != nil {
		if err := s.scheduler.Stop(ctx); err != nil {
			s.logger.Warn(ctx, "scheduler stop", logger.Error(err))
		}
	}
	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	if s.stopHub != nil {
		s.stopHub()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close", logger.Error(err))
		}
	}
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Submit reconciles one submission.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error) {
	if err := s.ready(); err != nil {
		return model.SubmissionResult{}, model.NewUnexpectedError(err)
	}
	return s.reconciler.Submit(ctx, sub)
}

func (s *Service) assignment(ctx context.Context, id string) (*model.Assignment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	a, ok, err := s.catalog.AssignmentConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewUnknownAssignmentError(id)
	}
	return a, nil
}

// Leaderboard returns the ranked leaderboard of one assignment.
func (s *Service) Leaderboard(ctx context.Context, assignmentID string) (types.LeaderboardView, error) {
	a, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return types.LeaderboardView{}, err
	}
	entries, err := s.store.LoadLeaderboard(ctx, assignmentID)
	if err != nil {
		return types.LeaderboardView{}, err
	}
	return types.LeaderboardView{AssignmentID: assignmentID, Leaderboard: model.Ranked(entries), Config: a}, nil
}

// Leaderboards returns every configured assignment's leaderboard.
func (s *Service) Leaderboards(ctx context.Context) (map[string]types.LeaderboardView, error) {
	list, err := s.Assignments(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.LeaderboardView, len(list))
	for _, a := range list {
		entries, err := s.store.LoadLeaderboard(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		out[a.ID] = types.LeaderboardView{AssignmentID: a.ID, Leaderboard: model.Ranked(entries), Config: a}
	}
	return out, nil
}

// History returns a student's submissions for one assignment, newest first.
func (s *Service) History(ctx context.Context, studentID, assignmentID string) (types.SubmissionHistory, error) {
	if _, err := s.assignment(ctx, assignmentID); err != nil {
		return types.SubmissionHistory{}, err
	}
	recs, err := s.store.Submissions(ctx, studentID, assignmentID)
	if err != nil {
		return types.SubmissionHistory{}, err
	}
	slices.Reverse(recs)
	if recs == nil {
		recs = []model.SubmissionRecord{}
	}
	return types.SubmissionHistory{
		StudentID:    studentID,
		AssignmentID: assignmentID,
		Count:        len(recs),
		Submissions:  recs,
	}, nil
}

// Assignments returns the catalogue sorted by id.
func (s *Service) Assignments(ctx context.Context) ([]*model.Assignment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	list, err := s.catalog.Assignments(ctx)
	if err != nil {
		return nil, err
	}
	metrics.UpdateAssignmentsTotal(len(list))
	return list, nil
}

// ActiveAssignment returns the assignments with a deadline still ahead.
func (s *Service) ActiveAssignment(ctx context.Context) (types.ActiveAssignment, error) {
	list, err := s.Assignments(ctx)
	if err != nil {
		return types.ActiveAssignment{}, err
	}
	now := s.now().UTC()
	active := types.ActiveAssignment{AllActive: []string{}}
	for _, a := range list {
		if a.DeadlineAt != nil && now.Before(*a.DeadlineAt) {
			active.AllActive = append(active.AllActive, a.ID)
		}
	}
	if len(active.AllActive) > 0 {
		first := active.AllActive[0]
		active.AssignmentID = &first
	}
	return active, nil
}

// MissingSubmissions lists roster students absent from the leaderboard.
func (s *Service) MissingSubmissions(ctx context.Context, assignmentID string) (types.MissingSubmissions, error) {
	if _, err := s.assignment(ctx, assignmentID); err != nil {
		return types.MissingSubmissions{}, err
	}
	roster, err := repository.LoadRoster(s.rosterFile)
	if err != nil {
		return types.MissingSubmissions{}, err
	}
	entries, err := s.store.LoadLeaderboard(ctx, assignmentID)
	if err != nil {
		return types.MissingSubmissions{}, err
	}
	submitted := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		submitted[e.Student.StudentID] = struct{}{}
	}
	out := types.MissingSubmissions{AssignmentID: assignmentID, Total: len(roster), Missing: []types.RosterStudent{}}
	for _, st := range roster {
		if _, ok := submitted[st.StudentID]; ok {
			out.Submitted++
			continue
		}
		out.Missing = append(out.Missing, st)
	}
	return out, nil
}

// Health reports liveness for the JSON health endpoint.
func (s *Service) Health() types.Health {
	return types.Health{
		Status:    "healthy",
		Service:   s.name,
		Timestamp: model.FormatTimestamp(s.now()),
		Version:   Version,
	}
}

// LiveUpdates serves the leaderboard websocket.
func (s *Service) LiveUpdates() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hub == nil {
		return http.NotFoundHandler()
	}
	return s.hub
}

// RunBackup takes a checkpoint now.
func (s *Service) RunBackup(ctx context.Context) (archive.BackupReport, error) {
	if err := s.ready(); err != nil {
		return archive.BackupReport{}, err
	}
	return s.backup.Run(ctx)
}

// SweepArchives triggers archival for every expired assignment now.
func (s *Service) SweepArchives(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.trigger.Sweep(ctx, s.catalog)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"driver":      s.driver,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(goroutines)
	stats["goroutines"] = goroutines

	if !s.started {
		return stats
	}

	stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	stats["queueLength"] = s.queue.Len(ctx)
	stats["jobsProcessed"] = s.pool.Processed()
	stats["websocketClients"] = s.hub.Clients()

	if list, err := s.catalog.Assignments(ctx); err == nil {
		entries := make(map[string]int, len(list))
		for _, a := range list {
			if board, err := s.store.LoadLeaderboard(ctx, a.ID); err == nil {
				entries[a.ID] = len(board)
			}
		}
		stats["assignments"] = len(list)
		stats["leaderboardEntries"] = entries
	}
	return stats
}
