package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/internal/domain/ranking"
	"github.com/okian/classboard/internal/domain/reconcile"
	"github.com/okian/classboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
	_ = logger.SetLevelString("error")
}

type memConfigs map[string]*model.Assignment

func (m memConfigs) AssignmentConfig(_ context.Context, id string) (*model.Assignment, bool, error) {
	a, ok := m[id]
	return a, ok, nil
}

type memLog struct {
	mu      sync.Mutex
	records []model.SubmissionRecord
	failAdd error
}

func (l *memLog) Append(_ context.Context, rec model.SubmissionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAdd != nil {
		return l.failAdd
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *memLog) Count(_ context.Context, student, assignment string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if r.Student.StudentID == student && r.AssignmentID == assignment {
			n++
		}
	}
	return n, nil
}

func (l *memLog) CountOnDate(_ context.Context, student, assignment, date string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		ts, err := model.ParseTimestamp(r.Timestamp)
		if err != nil {
			return 0, err
		}
		if r.Student.StudentID == student && r.AssignmentID == assignment && model.UTCDate(ts) == date {
			n++
		}
	}
	return n, nil
}

func (l *memLog) EarliestIdentity(_ context.Context, student string) (model.StudentIdentity, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.Student.StudentID == student {
			return r.Student, true, nil
		}
	}
	return model.StudentIdentity{}, false, nil
}

func (l *memLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

type memBoards struct {
	mu     sync.Mutex
	boards map[string][]model.LeaderboardEntry
}

func (b *memBoards) LoadLeaderboard(_ context.Context, id string) ([]model.LeaderboardEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.LeaderboardEntry(nil), b.boards[id]...), nil
}

func (b *memBoards) SaveLeaderboard(_ context.Context, id string, entries []model.LeaderboardEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boards[id] = append([]model.LeaderboardEntry(nil), entries...)
	return nil
}

type countingArchiver struct {
	mu    sync.Mutex
	calls []string
}

func (a *countingArchiver) ArchiveIfDeadlinePassed(_ context.Context, id string, _ time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, id)
}

type recordingNotifier struct {
	ranks []int
}

func (n *recordingNotifier) LeaderboardChanged(_ context.Context, _, _ string, rank int, _ []model.LeaderboardEntry) {
	n.ranks = append(n.ranks, rank)
}

type staticSigner struct{}

func (staticSigner) Sign(rec model.SubmissionRecord) string { return "sig-" + rec.ID }

type fixture struct {
	log      *memLog
	boards   *memBoards
	archiver *countingArchiver
	notifier *recordingNotifier
	now      time.Time
	rec      *reconcile.Reconciler
}

func newFixture(assignments ...*model.Assignment) *fixture {
	cfgs := memConfigs{}
	for _, a := range assignments {
		if err := a.Normalize(); err != nil {
			panic(err)
		}
		cfgs[a.ID] = a
	}
	f := &fixture{
		log:      &memLog{},
		boards:   &memBoards{boards: map[string][]model.LeaderboardEntry{}},
		archiver: &countingArchiver{},
		notifier: &recordingNotifier{},
		now:      time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	seq := 0
	f.rec = reconcile.New(cfgs, f.log, f.boards,
		reconcile.WithClock(func() time.Time { return f.now }),
		reconcile.WithIDGenerator(func() string { seq++; return fmt.Sprintf("rec-%d", seq) }),
		reconcile.WithArchiveTrigger(f.archiver),
		reconcile.WithNotifier(f.notifier),
		reconcile.WithSigner(staticSigner{}),
	)
	return f
}

func fullMetrics(rmse float64) model.MetricSet {
	return model.MetricSet{"MAE": 0.1, "MSE": 0.2, "RMSE": rmse, "Prediction_Time": 1.5}
}

func submission(student, name, assignment string, m model.MetricSet) model.Submission {
	return model.Submission{
		Student:      model.StudentIdentity{StudentID: student, Name: name},
		AssignmentID: assignment,
		Metrics:      m,
	}
}

func kindOf(err error) model.ErrorKind { return model.KindOf(err) }

func TestReconcilerFirstAndRepeatSubmissions(t *testing.T) {
	ctx := context.Background()

	Convey("Given an assignment with default configuration", t, func() {
		f := newFixture(&model.Assignment{ID: "hw1"})

		Convey("When a student submits for the first time", func() {
			res, err := f.rec.Submit(ctx, submission("s1", "Alice", "hw1", fullMetrics(0.2)))

			Convey("Then the student joins the leaderboard", func() {
				So(err, ShouldBeNil)
				So(res.Success, ShouldBeTrue)
				So(res.LeaderboardUpdated, ShouldBeTrue)
				So(*res.CurrentRank, ShouldEqual, 1)
				So(*res.Score, ShouldEqual, 0.2)
				So(res.PreviousScore, ShouldBeNil)
				So(res.SubmissionCount, ShouldEqual, 1)
				So(res.Message, ShouldStartWith, "First submission")
				So(f.notifier.ranks, ShouldResemble, []int{1})
			})

			Convey("Then the record is logged with a UTC timestamp and signature", func() {
				rec := f.log.records[0]
				So(rec.ID, ShouldEqual, "rec-1")
				So(rec.Timestamp, ShouldEqual, "2025-05-01T10:00:00.000000Z")
				So(rec.Signature, ShouldEqual, "sig-rec-1")
			})

			Convey("And a worse submission follows", func() {
				f.now = f.now.Add(time.Minute)
				res2, err := f.rec.Submit(ctx, submission("s1", "Alice", "hw1", fullMetrics(0.5)))

				Convey("Then the best metrics are kept but the count advances", func() {
					So(err, ShouldBeNil)
					So(res2.LeaderboardUpdated, ShouldBeTrue)
					So(res2.SubmissionCount, ShouldEqual, 2)
					So(*res2.Score, ShouldEqual, 0.5)
					So(*res2.PreviousScore, ShouldEqual, 0.2)
					So(res2.Message, ShouldContainSubstring, "not improved")

					board := f.boards.boards["hw1"]
					So(board, ShouldHaveLength, 1)
					So(board[0].Metrics["RMSE"], ShouldEqual, 0.2)
					So(*board[0].Score, ShouldEqual, 0.2)
					So(board[0].SubmissionCount, ShouldEqual, 2)
					So(board[0].Timestamp, ShouldEqual, "2025-05-01T10:01:00.000000Z")
					So(f.log.len(), ShouldEqual, 2)
				})
			})

			Convey("And a better submission follows", func() {
				res2, err := f.rec.Submit(ctx, submission("s1", "Alice", "hw1", fullMetrics(0.1)))

				So(err, ShouldBeNil)
				So(res2.Message, ShouldContainSubstring, "0.200000 → 0.100000")
				So(f.boards.boards["hw1"][0].Metrics["RMSE"], ShouldEqual, 0.1)
			})

			Convey("And an equal submission follows", func() {
				res2, err := f.rec.Submit(ctx, submission("s1", "Alice", "hw1", fullMetrics(0.2)))

				So(err, ShouldBeNil)
				So(res2.Message, ShouldContainSubstring, "unchanged")
				So(res2.LeaderboardUpdated, ShouldBeTrue)
			})

			Convey("And another student beats them", func() {
				res2, err := f.rec.Submit(ctx, submission("s2", "Bob", "hw1", fullMetrics(0.1)))

				So(err, ShouldBeNil)
				So(*res2.CurrentRank, ShouldEqual, 1)
				So(f.boards.boards["hw1"][1].Student.StudentID, ShouldEqual, "s1")
			})
		})
	})
}

func TestReconcilerRejections(t *testing.T) {
	ctx := context.Background()

	Convey("Given a registered student", t, func() {
		f := newFixture(&model.Assignment{ID: "hw1"}, &model.Assignment{ID: "hw2"})
		_, err := f.rec.Submit(ctx, submission("s1", "A", "hw1", fullMetrics(0.3)))
		So(err, ShouldBeNil)

		Convey("When the same id submits with another name on another assignment", func() {
			_, err := f.rec.Submit(ctx, submission("s1", "B", "hw2", fullMetrics(0.1)))

			Convey("Then it is rejected with 403 and nothing is written", func() {
				So(kindOf(err), ShouldEqual, model.KindIdentityMismatch)
				var se *model.SubmissionError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Status(), ShouldEqual, http.StatusForbidden)
				So(se.Fields, ShouldResemble, []string{"name"})
				So(f.log.len(), ShouldEqual, 1)
				So(f.boards.boards["hw2"], ShouldBeEmpty)
			})
		})

		Convey("When required metrics are missing or negative", func() {
			_, err := f.rec.Submit(ctx, submission("s1", "A", "hw1", model.MetricSet{"RMSE": -1, "MAE": 1}))

			Convey("Then a validation error names every offending metric", func() {
				So(kindOf(err), ShouldEqual, model.KindValidation)
				var se *model.SubmissionError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Fields, ShouldResemble, []string{"MSE", "Prediction_Time", "RMSE"})
				So(f.log.len(), ShouldEqual, 1)
			})
		})

		Convey("When the contributor is unknown", func() {
			sub := submission("s1", "A", "hw1", fullMetrics(0.3))
			sub.Contributor = "robot"
			_, err := f.rec.Submit(ctx, sub)
			So(kindOf(err), ShouldEqual, model.KindValidation)
		})

		Convey("When the assignment does not exist", func() {
			_, err := f.rec.Submit(ctx, submission("s1", "A", "nope", fullMetrics(0.3)))
			So(kindOf(err), ShouldEqual, model.KindUnknownAssignment)
			So(model.KindUnknownAssignment.Status(), ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given an assignment with a deadline", t, func() {
		f := newFixture(&model.Assignment{ID: "hw1", Deadline: "2025-05-01T10:00:00Z"})

		Convey("When submitting exactly at the deadline", func() {
			_, err := f.rec.Submit(ctx, submission("s1", "A", "hw1", fullMetrics(0.3)))
			So(err, ShouldBeNil)
			So(f.archiver.calls, ShouldBeEmpty)
		})

		Convey("When submitting one nanosecond later", func() {
			f.now = f.now.Add(time.Nanosecond)
			_, err := f.rec.Submit(ctx, submission("s1", "A", "hw1", fullMetrics(0.3)))

			Convey("Then it is rejected and archival is triggered", func() {
				So(kindOf(err), ShouldEqual, model.KindDeadlineExceeded)
				So(f.archiver.calls, ShouldResemble, []string{"hw1"})
				So(f.log.len(), ShouldEqual, 0)
			})
		})

		Convey("When submitting two days late", func() {
			f.now = f.now.Add(48 * time.Hour)
			_, err := f.rec.Submit(ctx, submission("s1", "A", "hw1", fullMetrics(0.3)))

			Convey("Then it is rejected without triggering archival", func() {
				So(kindOf(err), ShouldEqual, model.KindDeadlineExceeded)
				So(f.archiver.calls, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a daily limit of three", t, func() {
		f := newFixture(&model.Assignment{ID: "hw1", MaxSubmissions: 3})
		for i := 0; i < 3; i++ {
			_, err := f.rec.Submit(ctx, submission("s1", "A", "hw1", fullMetrics(0.3)))
			So(err, ShouldBeNil)
		}

		Convey("When a fourth submission arrives the same UTC day", func() {
			f.now = time.Date(2025, 5, 1, 23, 59, 59, 0, time.UTC)
			_, err := f.rec.Submit(ctx, submission("s1", "A", "hw1", fullMetrics(0.3)))

			Convey("Then it is rejected with the limit in the message", func() {
				So(kindOf(err), ShouldEqual, model.KindRateLimitExceeded)
				So(err.Error(), ShouldContainSubstring, "3")
			})
		})

		Convey("When the next UTC day begins", func() {
			f.now = time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
			res, err := f.rec.Submit(ctx, submission("s1", "A", "hw1", fullMetrics(0.3)))

			Convey("Then it succeeds with the lifetime count", func() {
				So(err, ShouldBeNil)
				So(res.SubmissionCount, ShouldEqual, 4)
			})
		})

		Convey("When another student submits the same day", func() {
			_, err := f.rec.Submit(ctx, submission("s2", "B", "hw1", fullMetrics(0.3)))
			So(err, ShouldBeNil)
		})
	})

	Convey("Given an assignment with expected checksums", t, func() {
		f := newFixture(&model.Assignment{ID: "hw1", Checksums: map[string]string{"evaluate.py": "abc", "data.csv": "def"}})

		Convey("When one file mismatches and one is missing", func() {
			sub := submission("s1", "A", "hw1", fullMetrics(0.3))
			sub.Checksums = map[string]string{"evaluate.py": "zzz"}
			_, err := f.rec.Submit(ctx, sub)

			Convey("Then both files are named", func() {
				So(kindOf(err), ShouldEqual, model.KindChecksumMismatch)
				var se *model.SubmissionError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Fields, ShouldResemble, []string{"data.csv", "evaluate.py"})
			})
		})

		Convey("When every checksum matches", func() {
			sub := submission("s1", "A", "hw1", fullMetrics(0.3))
			sub.Checksums = map[string]string{"evaluate.py": "ABC", "data.csv": "def"}
			_, err := f.rec.Submit(ctx, sub)
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a log that fails to persist", t, func() {
		f := newFixture(&model.Assignment{ID: "hw1"})
		f.log.failAdd = errors.New("disk full")

		Convey("Then the failure surfaces as an unexpected error", func() {
			_, err := f.rec.Submit(ctx, submission("s1", "A", "hw1", fullMetrics(0.3)))
			So(kindOf(err), ShouldEqual, model.KindUnexpected)
			So(errors.Is(err, f.log.failAdd), ShouldBeTrue)
			So(f.boards.boards["hw1"], ShouldBeEmpty)
		})
	})
}

func TestReconcilerPolicies(t *testing.T) {
	ctx := context.Background()

	Convey("Given a max-direction assignment with a tie-break metric", t, func() {
		a := &model.Assignment{ID: "cls", Metrics: ranking.PolicyConfig{
			{Name: "Accuracy", Priority: 1, Direction: ranking.Max},
			{Name: "Time", Priority: 2, Direction: ranking.Min},
		}}
		f := newFixture(a)

		Convey("When students submit", func() {
			_, err := f.rec.Submit(ctx, submission("a", "A", "cls", model.MetricSet{"Accuracy": 0.8, "Time": 1}))
			So(err, ShouldBeNil)
			_, err = f.rec.Submit(ctx, submission("b", "B", "cls", model.MetricSet{"Accuracy": 0.9, "Time": 9}))
			So(err, ShouldBeNil)
			res, err := f.rec.Submit(ctx, submission("c", "C", "cls", model.MetricSet{"Accuracy": 0.9, "Time": 2}))
			So(err, ShouldBeNil)

			Convey("Then higher accuracy wins and time breaks the tie", func() {
				So(*res.CurrentRank, ShouldEqual, 1)
				ids := []string{}
				for _, e := range f.boards.boards["cls"] {
					ids = append(ids, e.Student.StudentID)
				}
				So(ids, ShouldResemble, []string{"c", "b", "a"})
				So(*res.Score, ShouldEqual, 0.9)
			})
		})
	})

	Convey("Given an assignment whose metrics are all excluded", t, func() {
		a := &model.Assignment{ID: "x", Metrics: ranking.PolicyConfig{{Name: "RMSE", Priority: 0}}}
		f := newFixture(a)

		Convey("Then submissions are accepted without a score", func() {
			res, err := f.rec.Submit(ctx, submission("a", "A", "x", model.MetricSet{"RMSE": 0.3}))
			So(err, ShouldBeNil)
			So(res.Score, ShouldBeNil)
			So(*res.CurrentRank, ShouldEqual, 1)
		})
	})
}

func TestReconcilerConcurrency(t *testing.T) {
	ctx := context.Background()

	Convey("Given many parallel submissions to one assignment", t, func() {
		f := newFixture(&model.Assignment{ID: "hw1", MaxSubmissions: 1000})
		const students, rounds = 10, 5

		var wg sync.WaitGroup
		errs := make(chan error, students*rounds)
		for s := 0; s < students; s++ {
			for r := 0; r < rounds; r++ {
				wg.Add(1)
				go func(s, r int) {
					defer wg.Done()
					id := fmt.Sprintf("s%d", s)
					_, err := f.rec.Submit(ctx, submission(id, "N"+id, "hw1", fullMetrics(float64(r+1)/10)))
					errs <- err
				}(s, r)
			}
		}
		wg.Wait()
		close(errs)

		Convey("Then no update is lost", func() {
			for err := range errs {
				So(err, ShouldBeNil)
			}
			board := f.boards.boards["hw1"]
			So(board, ShouldHaveLength, students)
			for _, e := range board {
				So(e.SubmissionCount, ShouldEqual, rounds)
				So(e.Metrics["RMSE"], ShouldEqual, 0.1)
			}
			So(f.log.len(), ShouldEqual, students*rounds)
		})
	})
}
