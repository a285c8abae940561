package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)
			m.submissionsAccepted.WithLabelValues("hw1").Inc()

			Convey("Then collectors are registered under the namespace", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_submissions_accepted_total"], ShouldBeTrue)
				So(m.histogramBuckets, ShouldResemble, []float64{1, 10})
			})
		})

		Convey("When registering twice on the same registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the duplicate registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestPackageRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording submission outcomes", func() {
			before := testutil.ToFloat64(globalManager.submissionsRejected.WithLabelValues("rate_limit"))
			RecordSubmissionRejected("rate_limit")
			RecordSubmissionAccepted("hw-metrics")
			RecordLeaderboardOutcome("better")

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.submissionsRejected.WithLabelValues("rate_limit")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.submissionsAccepted.WithLabelValues("hw-metrics")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.leaderboardOutcomes.WithLabelValues("better")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(7)
			UpdateWebsocketClients(3)
			UpdateLeaderboardEntries("hw-gauge", 12)

			Convey("Then the gauges hold the latest value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.websocketClients), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.leaderboardEntries.WithLabelValues("hw-gauge")), ShouldEqual, 12)
			})
		})

		Convey("When observing latencies", func() {
			So(func() {
				RecordReconcileLatency(3)
				RecordStoreLatency("file", "save_leaderboard", 1.5)
				RecordBackup("ok", 20)
				RecordHTTPRequestDuration("submit", "POST", "200", 4)
			}, ShouldNotPanic)
		})

		Convey("Then the registry is the package registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
