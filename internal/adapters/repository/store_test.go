package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/classboard/internal/adapters/repository"
	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
	_ = logger.SetLevelString("error")
}

func record(id, student, name, assignment, ts string, count int, rmse float64) model.SubmissionRecord {
	return model.SubmissionRecord{
		ID:              id,
		Student:         model.StudentIdentity{StudentID: student, Name: name},
		AssignmentID:    assignment,
		Metrics:         model.MetricSet{"RMSE": rmse},
		Timestamp:       ts,
		SubmissionCount: count,
	}
}

func score(v float64) *float64 { return &v }

type opener func(t *testing.T, dir string) repository.Store

func drivers() map[string]opener {
	return map[string]opener{
		repository.DriverFile: func(t *testing.T, dir string) repository.Store {
			s, err := repository.NewFileStore(context.Background(), dir, repository.WithFsync(false))
			if err != nil {
				t.Fatalf("open file store: %v", err)
			}
			return s
		},
		repository.DriverSQLite: func(t *testing.T, dir string) repository.Store {
			s, err := repository.NewSQLiteStore(context.Background(), filepath.Join(dir, "classboard.db"))
			if err != nil {
				t.Fatalf("open sqlite store: %v", err)
			}
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, open := range drivers() {
		Convey("Given a "+name+" store", t, func() {
			dir := t.TempDir()
			s := open(t, dir)
			defer func() { _ = s.Close() }()
			So(s.Driver(), ShouldEqual, name)

			Convey("When it is empty", func() {
				n, err := s.Count(ctx, "s1", "hw1")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)

				_, found, err := s.EarliestIdentity(ctx, "s1")
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)

				board, err := s.LoadLeaderboard(ctx, "hw1")
				So(err, ShouldBeNil)
				So(board, ShouldBeEmpty)

				archived, err := s.IsArchived(ctx, "hw1")
				So(err, ShouldBeNil)
				So(archived, ShouldBeFalse)
			})

			Convey("When records are appended across days and assignments", func() {
				So(s.Append(ctx, record("r1", "s1", "Alice", "hw1", "2025-05-01T23:59:59.000000Z", 1, 0.3)), ShouldBeNil)
				So(s.Append(ctx, record("r2", "s1", "Alice", "hw1", "2025-05-02T00:00:00.000000Z", 2, 0.2)), ShouldBeNil)
				So(s.Append(ctx, record("r3", "s1", "Alicia", "hw2", "2025-05-03T08:00:00.000000Z", 1, 0.4)), ShouldBeNil)
				So(s.Append(ctx, record("r4", "s2", "Bob", "hw1", "2025-05-02T10:00:00.000000Z", 1, 0.5)), ShouldBeNil)

				Convey("Then counts are per student and assignment", func() {
					n, err := s.Count(ctx, "s1", "hw1")
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 2)

					n, err = s.CountOnDate(ctx, "s1", "hw1", "2025-05-02")
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)

					n, err = s.CountOnDate(ctx, "s1", "hw2", "2025-05-02")
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 0)
				})

				Convey("Then the earliest identity wins across assignments", func() {
					id, found, err := s.EarliestIdentity(ctx, "s1")
					So(err, ShouldBeNil)
					So(found, ShouldBeTrue)
					So(id.Name, ShouldEqual, "Alice")
				})

				Convey("Then history is returned in append order", func() {
					recs, err := s.Submissions(ctx, "s1", "hw1")
					So(err, ShouldBeNil)
					So(recs, ShouldHaveLength, 2)
					So(recs[0].ID, ShouldEqual, "r1")
					So(recs[1].Metrics["RMSE"], ShouldEqual, 0.2)
				})

				Convey("Then a snapshot carries the assignment's whole log", func() {
					snap, err := s.Snapshot(ctx, "hw1")
					So(err, ShouldBeNil)
					So(snap.AssignmentID, ShouldEqual, "hw1")
					So(snap.Submissions, ShouldHaveLength, 3)
				})
			})

			Convey("When a leaderboard is saved twice", func() {
				first := []model.LeaderboardEntry{
					{Student: model.StudentIdentity{StudentID: "s1", Name: "A"}, Score: score(0.3), Metrics: model.MetricSet{"RMSE": 0.3}, SubmissionCount: 1},
				}
				second := []model.LeaderboardEntry{
					{Student: model.StudentIdentity{StudentID: "s2", Name: "B"}, Score: score(0.1), Metrics: model.MetricSet{"RMSE": 0.1}, SubmissionCount: 1},
					first[0],
				}
				So(s.SaveLeaderboard(ctx, "hw1", first), ShouldBeNil)
				So(s.SaveLeaderboard(ctx, "hw1", second), ShouldBeNil)

				Convey("Then the latest document replaces the first in order", func() {
					board, err := s.LoadLeaderboard(ctx, "hw1")
					So(err, ShouldBeNil)
					So(board, ShouldHaveLength, 2)
					So(board[0].Student.StudentID, ShouldEqual, "s2")
					So(*board[1].Score, ShouldEqual, 0.3)

					snap, err := s.Snapshot(ctx, "hw1")
					So(err, ShouldBeNil)
					So(snap.Leaderboard[1].Rank, ShouldEqual, 2)
				})
			})

			Convey("When an assignment is marked archived", func() {
				So(s.MarkArchived(ctx, "hw1", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)), ShouldBeNil)

				Convey("Then only that assignment reports archived", func() {
					ok, err := s.IsArchived(ctx, "hw1")
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
					ok, err = s.IsArchived(ctx, "hw2")
					So(err, ShouldBeNil)
					So(ok, ShouldBeFalse)
				})
			})

			Convey("When the store is reopened", func() {
				So(s.Append(ctx, record("r1", "s1", "Alice", "hw1", "2025-05-01T10:00:00.000000Z", 1, 0.3)), ShouldBeNil)
				So(s.MarkArchived(ctx, "hw1", time.Now()), ShouldBeNil)
				So(s.Close(), ShouldBeNil)
				s = open(t, dir)

				Convey("Then the state survives", func() {
					n, err := s.Count(ctx, "s1", "hw1")
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)
					id, found, err := s.EarliestIdentity(ctx, "s1")
					So(err, ShouldBeNil)
					So(found, ShouldBeTrue)
					So(id.Name, ShouldEqual, "Alice")
					ok, err := s.IsArchived(ctx, "hw1")
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
				})
			})
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	ctx := context.Background()

	Convey("Given a file store", t, func() {
		dir := t.TempDir()
		s, err := repository.NewFileStore(ctx, dir, repository.WithFsync(false))
		So(err, ShouldBeNil)

		Convey("When a record and a leaderboard are written", func() {
			So(s.Append(ctx, record("r1", "s1", "A", "hw1", "2025-05-01T10:00:00.000000Z", 1, 0.3)), ShouldBeNil)
			So(s.SaveLeaderboard(ctx, "hw1", []model.LeaderboardEntry{{Student: model.StudentIdentity{StudentID: "s1"}}}), ShouldBeNil)

			Convey("Then documents land at their well-known paths without temp files", func() {
				So(s.SubmissionsPath("hw1"), ShouldEqual, filepath.Join(dir, "submissions", "submissions_hw1.json"))
				_, err := os.Stat(s.SubmissionsPath("hw1"))
				So(err, ShouldBeNil)
				data, err := os.ReadFile(s.LeaderboardPath("hw1"))
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"rank": 1`)

				tmp, _ := filepath.Glob(filepath.Join(dir, "*", ".*.tmp"))
				So(tmp, ShouldBeEmpty)
			})
		})

		Convey("When a document is corrupt", func() {
			So(os.WriteFile(s.LeaderboardPath("bad"), []byte("{not json"), 0o644), ShouldBeNil)

			Convey("Then loading fails with ErrCorruptDocument", func() {
				_, err := s.LoadLeaderboard(ctx, "bad")
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, repository.ErrCorruptDocument.Error())
			})
		})

		Convey("When the store is closed", func() {
			So(s.Close(), ShouldBeNil)
			_, err := s.Count(ctx, "s1", "hw1")
			So(err, ShouldEqual, repository.ErrClosed)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Open picks the driver by name", t, func() {
		dir := t.TempDir()
		s, err := repository.Open(context.Background(), "SQLite", dir, filepath.Join(dir, "db.sqlite"))
		So(err, ShouldBeNil)
		So(s.Driver(), ShouldEqual, repository.DriverSQLite)
		So(s.Close(), ShouldBeNil)

		_, err = repository.Open(context.Background(), "mongo", dir, "")
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "unknown storage driver")
	})
}
