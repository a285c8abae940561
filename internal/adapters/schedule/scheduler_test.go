package schedule_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/classboard/internal/adapters/schedule"
	"github.com/okian/classboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScheduler(t *testing.T) {
	_ = logger.Init()

	Convey("Given a scheduler", t, func() {
		s := schedule.New()

		Convey("When a malformed spec is added", func() {
			err := s.Add("bad", "every so often", func(context.Context) error { return nil })
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "bad")
			So(s.Len(), ShouldEqual, 0)
		})

		Convey("When tasks are registered", func() {
			So(s.Add("backup", "@every 12h", func(context.Context) error { return nil }), ShouldBeNil)
			So(s.Add("sweep", "@every 1h", func(context.Context) error { return errors.New("x") }), ShouldBeNil)
			s.Start(context.Background())
			defer func() { _ = s.Stop(context.Background()) }()

			Convey("Then each has a next run on its interval", func() {
				So(s.Len(), ShouldEqual, 2)
				next, ok := s.Next("sweep")
				So(ok, ShouldBeTrue)
				So(next, ShouldHappenWithin, time.Hour+time.Minute, time.Now())
				_, ok = s.Next("missing")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a frequent task runs", func() {
			var runs atomic.Int32
			So(s.Add("tick", "@every 1s", func(context.Context) error { runs.Add(1); return nil }), ShouldBeNil)
			s.Start(context.Background())
			time.Sleep(1500 * time.Millisecond)
			So(s.Stop(context.Background()), ShouldBeNil)

			Convey("Then it has fired", func() {
				So(runs.Load(), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})
	})
}
