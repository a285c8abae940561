package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/pkg/logger"
	"github.com/okian/classboard/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS submissions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	assignment_id TEXT NOT NULL,
	student_id TEXT NOT NULL,
	day TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	doc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_student ON submissions(student_id, assignment_id, day);
CREATE INDEX IF NOT EXISTS idx_submissions_assignment ON submissions(assignment_id);
CREATE TABLE IF NOT EXISTS leaderboards (
	assignment_id TEXT PRIMARY KEY,
	doc TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS archive_state (
	assignment_id TEXT PRIMARY KEY,
	archived INTEGER NOT NULL DEFAULT 0,
	archived_at TEXT
);
`

// SQLiteStore keeps the same documents as FileStore in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLiteStore opens path and creates the schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("store.sqlite")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA busy_timeout=5000;`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	o.logger.Info(ctx, "sqlite store opened", logger.String("path", path))
	return &SQLiteStore{db: db, opts: o}, nil
}

// Driver implements Store.
func (s *SQLiteStore) Driver() string { return DriverSQLite }

func (s *SQLiteStore) observe(ctx context.Context, op string, start time.Time, err error) {
	metrics.RecordStoreLatency(DriverSQLite, op, sinceMs(start))
	if err != nil {
		metrics.RecordStoreError(DriverSQLite, op)
		s.opts.logger.Error(ctx, "store operation failed",
			logger.String("op", op), logger.Error(err))
	}
}

// Append implements reconcile.SubmissionLog.
func (s *SQLiteStore) Append(ctx context.Context, rec model.SubmissionRecord) (err error) {
	defer func(start time.Time) { s.observe(ctx, "append", start, err) }(time.Now())

	ts, err := model.ParseTimestamp(rec.Timestamp)
	if err != nil {
		return errors.Wrapf(err, "record %s timestamp", rec.ID)
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "encode record %s", rec.ID)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, assignment_id, student_id, day, timestamp, doc) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AssignmentID, rec.Student.StudentID, model.UTCDate(ts), rec.Timestamp, string(doc))
	return errors.Wrapf(err, "insert record %s", rec.ID)
}

// Count implements reconcile.SubmissionLog.
func (s *SQLiteStore) Count(ctx context.Context, studentID, assignmentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE student_id = ? AND assignment_id = ?`,
		studentID, assignmentID).Scan(&n)
	return n, errors.Wrap(err, "count submissions")
}

// CountOnDate implements reconcile.SubmissionLog.
func (s *SQLiteStore) CountOnDate(ctx context.Context, studentID, assignmentID, date string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE student_id = ? AND assignment_id = ? AND day = ?`,
		studentID, assignmentID, date).Scan(&n)
	return n, errors.Wrap(err, "count daily submissions")
}

// EarliestIdentity implements reconcile.SubmissionLog.
func (s *SQLiteStore) EarliestIdentity(ctx context.Context, studentID string) (model.StudentIdentity, bool, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM submissions WHERE student_id = ? ORDER BY timestamp ASC, seq ASC LIMIT 1`,
		studentID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StudentIdentity{}, false, nil
	}
	if err != nil {
		return model.StudentIdentity{}, false, errors.Wrap(err, "earliest identity")
	}
	var rec model.SubmissionRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return model.StudentIdentity{}, false, errors.Wrapf(ErrCorruptDocument, "submission of %s: %v", studentID, err)
	}
	return rec.Student, true, nil
}

// Submissions implements Store.
func (s *SQLiteStore) Submissions(ctx context.Context, studentID, assignmentID string) ([]model.SubmissionRecord, error) {
	return s.queryRecords(ctx,
		`SELECT doc FROM submissions WHERE student_id = ? AND assignment_id = ? ORDER BY seq ASC`,
		studentID, assignmentID)
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]model.SubmissionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query submissions")
	}
	defer func() { _ = rows.Close() }()

	var out []model.SubmissionRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.Wrap(err, "scan submission")
		}
		var rec model.SubmissionRecord
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, errors.Wrapf(ErrCorruptDocument, "submission: %v", err)
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate submissions")
}

// LoadLeaderboard implements reconcile.LeaderboardRepository.
func (s *SQLiteStore) LoadLeaderboard(ctx context.Context, assignmentID string) (_ []model.LeaderboardEntry, err error) {
	defer func(start time.Time) { s.observe(ctx, "load_leaderboard", start, err) }(time.Now())

	var doc string
	err = s.db.QueryRowContext(ctx,
		`SELECT doc FROM leaderboards WHERE assignment_id = ?`, assignmentID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load leaderboard %s", assignmentID)
	}
	var ranked []model.RankedEntry
	if err := json.Unmarshal([]byte(doc), &ranked); err != nil {
		return nil, errors.Wrapf(ErrCorruptDocument, "leaderboard %s: %v", assignmentID, err)
	}
	out := make([]model.LeaderboardEntry, len(ranked))
	for i, r := range ranked {
		out[i] = r.LeaderboardEntry
	}
	return out, nil
}

// SaveLeaderboard implements reconcile.LeaderboardRepository. The document is
// replaced inside one transaction.
func (s *SQLiteStore) SaveLeaderboard(ctx context.Context, assignmentID string, entries []model.LeaderboardEntry) (err error) {
	defer func(start time.Time) { s.observe(ctx, "save_leaderboard", start, err) }(time.Now())

	doc, err := json.Marshal(model.Ranked(entries))
	if err != nil {
		return errors.Wrapf(err, "encode leaderboard %s", assignmentID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO leaderboards (assignment_id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(assignment_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		assignmentID, string(doc), model.FormatTimestamp(time.Now())); err != nil {
		return errors.Wrapf(err, "save leaderboard %s", assignmentID)
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// IsArchived implements Store.
func (s *SQLiteStore) IsArchived(ctx context.Context, assignmentID string) (bool, error) {
	var archived bool
	err := s.db.QueryRowContext(ctx,
		`SELECT archived FROM archive_state WHERE assignment_id = ?`, assignmentID).Scan(&archived)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return archived, errors.Wrap(err, "archive state")
}

// MarkArchived implements Store.
func (s *SQLiteStore) MarkArchived(ctx context.Context, assignmentID string, at time.Time) (err error) {
	defer func(start time.Time) { s.observe(ctx, "mark_archived", start, err) }(time.Now())

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO archive_state (assignment_id, archived, archived_at) VALUES (?, 1, ?)
		 ON CONFLICT(assignment_id) DO UPDATE SET archived = 1, archived_at = excluded.archived_at`,
		assignmentID, model.FormatTimestamp(at))
	return errors.Wrapf(err, "mark %s archived", assignmentID)
}

// Snapshot implements Store.
func (s *SQLiteStore) Snapshot(ctx context.Context, assignmentID string) (Snapshot, error) {
	recs, err := s.queryRecords(ctx,
		`SELECT doc FROM submissions WHERE assignment_id = ? ORDER BY seq ASC`, assignmentID)
	if err != nil {
		return Snapshot{}, err
	}
	entries, err := s.LoadLeaderboard(ctx, assignmentID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{AssignmentID: assignmentID, Submissions: recs, Leaderboard: model.Ranked(entries)}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return errors.Wrap(s.db.Close(), "close sqlite")
}
