package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/pkg/logger"
	"github.com/okian/classboard/pkg/metrics"
)

const (
	submissionsDir = "submissions"
	leaderboardDir = "leaderboard"
	stateDir       = "state"
	archiveState   = "archive_state.json"
)

// identityMark is the earliest identity seen for a student id.
type identityMark struct {
	identity model.StudentIdentity
	at       time.Time
}

// FileStore keeps one JSON document per assignment and concern under a data
// directory. Submission logs are cached after first read.
type FileStore struct {
	dir  string
	opts options

	mu         sync.Mutex
	records    map[string][]model.SubmissionRecord
	identities map[string]identityMark
	indexed    bool
	closed     bool
}

// NewFileStore creates the directory layout under dir.
func NewFileStore(_ context.Context, dir string, opts ...Option) (*FileStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("store.file")
	}
	for _, sub := range []string{submissionsDir, leaderboardDir, stateDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", sub)
		}
	}
	return &FileStore{
		dir:        dir,
		opts:       o,
		records:    map[string][]model.SubmissionRecord{},
		identities: map[string]identityMark{},
	}, nil
}

// Driver implements Store.
func (s *FileStore) Driver() string { return DriverFile }

// SubmissionsPath is the log document of assignmentID.
func (s *FileStore) SubmissionsPath(assignmentID string) string {
	return filepath.Join(s.dir, submissionsDir, "submissions_"+assignmentID+".json")
}

// LeaderboardPath is the leaderboard document of assignmentID.
func (s *FileStore) LeaderboardPath(assignmentID string) string {
	return filepath.Join(s.dir, leaderboardDir, "leaderboard_"+assignmentID+".json")
}

func (s *FileStore) statePath() string {
	return filepath.Join(s.dir, stateDir, archiveState)
}

func (s *FileStore) observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(DriverFile, op, sinceMs(start))
	if err != nil {
		metrics.RecordStoreError(DriverFile, op)
		s.opts.logger.Error(context.Background(), "store operation failed",
			logger.String("op", op), logger.Error(err))
	}
}

// loadLocked returns the cached log of assignmentID, reading it on first use.
func (s *FileStore) loadLocked(assignmentID string) ([]model.SubmissionRecord, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if recs, ok := s.records[assignmentID]; ok {
		return recs, nil
	}
	var recs []model.SubmissionRecord
	if _, err := readJSON(s.SubmissionsPath(assignmentID), &recs); err != nil {
		return nil, err
	}
	s.records[assignmentID] = recs
	return recs, nil
}

// indexLocked builds the identity index from every submission document.
func (s *FileStore) indexLocked() error {
	if s.indexed {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(s.dir, submissionsDir, "submissions_*.json"))
	if err != nil {
		return errors.Wrap(err, "list submission logs")
	}
	for _, p := range paths {
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "submissions_"), ".json")
		recs, err := s.loadLocked(id)
		if err != nil {
			return err
		}
		for _, r := range recs {
			s.markIdentityLocked(r)
		}
	}
	s.indexed = true
	return nil
}

func (s *FileStore) markIdentityLocked(r model.SubmissionRecord) {
	at, err := model.ParseTimestamp(r.Timestamp)
	if err != nil {
		at = time.Time{}
	}
	if cur, ok := s.identities[r.Student.StudentID]; ok && !at.Before(cur.at) {
		return
	}
	s.identities[r.Student.StudentID] = identityMark{identity: r.Student, at: at}
}

// Append implements reconcile.SubmissionLog.
func (s *FileStore) Append(_ context.Context, rec model.SubmissionRecord) (err error) {
	defer func(start time.Time) { s.observe("append", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.loadLocked(rec.AssignmentID)
	if err != nil {
		return err
	}
	next := make([]model.SubmissionRecord, len(recs), len(recs)+1)
	copy(next, recs)
	next = append(next, rec)
	if err := WriteJSONAtomic(s.SubmissionsPath(rec.AssignmentID), next, s.opts.fsync); err != nil {
		return err
	}
	s.records[rec.AssignmentID] = next
	if s.indexed {
		s.markIdentityLocked(rec)
	}
	return nil
}

// Count implements reconcile.SubmissionLog.
func (s *FileStore) Count(_ context.Context, studentID, assignmentID string) (int, error) {
	return s.countWhere(assignmentID, func(r model.SubmissionRecord) bool {
		return r.Student.StudentID == studentID
	})
}

// CountOnDate implements reconcile.SubmissionLog.
func (s *FileStore) CountOnDate(_ context.Context, studentID, assignmentID, date string) (int, error) {
	return s.countWhere(assignmentID, func(r model.SubmissionRecord) bool {
		if r.Student.StudentID != studentID {
			return false
		}
		ts, err := model.ParseTimestamp(r.Timestamp)
		return err == nil && model.UTCDate(ts) == date
	})
}

func (s *FileStore) countWhere(assignmentID string, match func(model.SubmissionRecord) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.loadLocked(assignmentID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range recs {
		if match(r) {
			n++
		}
	}
	return n, nil
}

// EarliestIdentity implements reconcile.SubmissionLog.
func (s *FileStore) EarliestIdentity(_ context.Context, studentID string) (model.StudentIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.StudentIdentity{}, false, ErrClosed
	}
	if err := s.indexLocked(); err != nil {
		return model.StudentIdentity{}, false, err
	}
	m, ok := s.identities[studentID]
	return m.identity, ok, nil
}

// Submissions implements Store.
func (s *FileStore) Submissions(_ context.Context, studentID, assignmentID string) ([]model.SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.loadLocked(assignmentID)
	if err != nil {
		return nil, err
	}
	var out []model.SubmissionRecord
	for _, r := range recs {
		if r.Student.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

// LoadLeaderboard implements reconcile.LeaderboardRepository.
func (s *FileStore) LoadLeaderboard(_ context.Context, assignmentID string) (_ []model.LeaderboardEntry, err error) {
	defer func(start time.Time) { s.observe("load_leaderboard", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	var ranked []model.RankedEntry
	if _, err := readJSON(s.LeaderboardPath(assignmentID), &ranked); err != nil {
		return nil, err
	}
	out := make([]model.LeaderboardEntry, len(ranked))
	for i, r := range ranked {
		out[i] = r.LeaderboardEntry
	}
	return out, nil
}

// SaveLeaderboard implements reconcile.LeaderboardRepository.
func (s *FileStore) SaveLeaderboard(_ context.Context, assignmentID string, entries []model.LeaderboardEntry) (err error) {
	defer func(start time.Time) { s.observe("save_leaderboard", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return WriteJSONAtomic(s.LeaderboardPath(assignmentID), model.Ranked(entries), s.opts.fsync)
}

func (s *FileStore) readStateLocked() (map[string]ArchiveRecord, error) {
	state := map[string]ArchiveRecord{}
	if _, err := readJSON(s.statePath(), &state); err != nil {
		return nil, err
	}
	return state, nil
}

// IsArchived implements Store.
func (s *FileStore) IsArchived(_ context.Context, assignmentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.readStateLocked()
	if err != nil {
		return false, err
	}
	return state[assignmentID].Archived, nil
}

// MarkArchived implements Store.
func (s *FileStore) MarkArchived(_ context.Context, assignmentID string, at time.Time) (err error) {
	defer func(start time.Time) { s.observe("mark_archived", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.readStateLocked()
	if err != nil {
		return err
	}
	state[assignmentID] = ArchiveRecord{Archived: true, ArchivedAt: model.FormatTimestamp(at)}
	return WriteJSONAtomic(s.statePath(), state, s.opts.fsync)
}

// Snapshot implements Store.
func (s *FileStore) Snapshot(ctx context.Context, assignmentID string) (Snapshot, error) {
	entries, err := s.LoadLeaderboard(ctx, assignmentID)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	recs, err := s.loadLocked(assignmentID)
	s.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		AssignmentID: assignmentID,
		Submissions:  append([]model.SubmissionRecord(nil), recs...),
		Leaderboard:  model.Ranked(entries),
	}, nil
}

// Close drops the caches. Further calls fail with ErrClosed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = map[string][]model.SubmissionRecord{}
	s.identities = map[string]identityMark{}
	return nil
}
