package ranking_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/classboard/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPolicyConfigDecoding(t *testing.T) {
	Convey("Given a metrics object mixing both shapes", t, func() {
		raw := `{"RMSE": 1, "Accuracy": {"priority": 2, "direction": "MAX"}, "MAE": 0, "Prediction_Time": {"priority": 2}}`

		var cfg ranking.PolicyConfig
		err := json.Unmarshal([]byte(raw), &cfg)

		Convey("Then every entry is decoded in declaration order", func() {
			So(err, ShouldBeNil)
			So(cfg.Names(), ShouldResemble, []string{"RMSE", "Accuracy", "MAE", "Prediction_Time"})
			So(cfg[0], ShouldResemble, ranking.MetricConfig{Name: "RMSE", Priority: 1, Direction: ranking.Min, Legacy: true})
			So(cfg[1].Direction, ShouldEqual, ranking.Max)
			So(cfg[3].Direction, ShouldEqual, ranking.Min)
		})

		Convey("And marshalling keeps the order and the original shape", func() {
			So(err, ShouldBeNil)
			out, err := json.Marshal(cfg)
			So(err, ShouldBeNil)
			So(string(out), ShouldEqual,
				`{"RMSE":1,"Accuracy":{"priority":2,"direction":"max"},"MAE":0,"Prediction_Time":{"priority":2,"direction":"min"}}`)
		})
	})

	Convey("Given malformed metric configuration", t, func() {
		cases := []string{
			`["RMSE"]`,
			`{"RMSE": "high"}`,
			`{"RMSE": 1.5}`,
			`{"RMSE": {"priority": 1, "direction": "up"}}`,
			`{"RMSE": 1, "RMSE": 2}`,
		}
		for _, raw := range cases {
			var cfg ranking.PolicyConfig
			err := json.Unmarshal([]byte(raw), &cfg)
			So(err, ShouldNotBeNil)
			isPolicy := errors.Is(err, ranking.ErrInvalidPolicy) || errors.Is(err, ranking.ErrInvalidDirection)
			So(isPolicy, ShouldBeTrue)
		}
	})
}

func TestResolve(t *testing.T) {
	Convey("Given no metric configuration", t, func() {
		p := ranking.Resolve(nil)

		Convey("Then the policy falls back to RMSE min", func() {
			So(p, ShouldResemble, ranking.Policy{{Metric: "RMSE", Direction: ranking.Min}})
			rule, ok := p.Primary()
			So(ok, ShouldBeTrue)
			So(rule.Metric, ShouldEqual, "RMSE")
		})
	})

	Convey("Given a configuration with excluded and tied priorities", t, func() {
		cfg := ranking.PolicyConfig{
			{Name: "Time", Priority: 2, Direction: ranking.Min},
			{Name: "MAE", Priority: 0},
			{Name: "Accuracy", Priority: 1, Direction: ranking.Max},
			{Name: "MSE", Priority: -3},
			{Name: "RMSE", Priority: 2},
		}
		p := ranking.Resolve(cfg)

		Convey("Then priorities <= 0 are dropped and ties keep declaration order", func() {
			So(p, ShouldResemble, ranking.Policy{
				{Metric: "Accuracy", Direction: ranking.Max},
				{Metric: "Time", Direction: ranking.Min},
				{Metric: "RMSE", Direction: ranking.Min},
			})
		})
	})

	Convey("Given a configuration where every metric is excluded", t, func() {
		p := ranking.Resolve(ranking.PolicyConfig{{Name: "RMSE", Priority: 0}})

		Convey("Then there is no primary metric", func() {
			So(p, ShouldBeEmpty)
			_, ok := p.Primary()
			So(ok, ShouldBeFalse)
			So(p.Score(map[string]float64{"RMSE": 1}), ShouldBeNil)
		})
	})

	Convey("Given a resolved policy", t, func() {
		p := ranking.Policy{{Metric: "RMSE", Direction: ranking.Min}}

		Convey("Then Score reads the primary metric", func() {
			score := p.Score(map[string]float64{"RMSE": 0.25, "MAE": 3})
			So(score, ShouldNotBeNil)
			So(*score, ShouldEqual, 0.25)
			So(p.Score(map[string]float64{"MAE": 3}), ShouldBeNil)
		})
	})
}
