package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

func TestActiveAssignmentJSON(t *testing.T) {
	convey.Convey("Given no open assignment", t, func() {
		out, err := json.Marshal(types.ActiveAssignment{AllActive: []string{}})

		convey.Convey("Then assignment_id is encoded as null", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(out), convey.ShouldEqual, `{"assignment_id":null,"all_active":[]}`)
		})
	})
}

func TestLeaderboardViewJSON(t *testing.T) {
	convey.Convey("Given a ranked entry", t, func() {
		score := 0.2
		view := types.LeaderboardView{
			AssignmentID: "hw1",
			Leaderboard: model.Ranked([]model.LeaderboardEntry{{
				Student:         model.StudentIdentity{StudentID: "s1", Name: "A"},
				Score:           &score,
				Metrics:         model.MetricSet{"RMSE": 0.2},
				SubmissionCount: 1,
			}}),
		}
		out, err := json.Marshal(view)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then rank is flattened next to the entry fields", func() {
			var decoded map[string]any
			convey.So(json.Unmarshal(out, &decoded), convey.ShouldBeNil)
			first := decoded["leaderboard"].([]any)[0].(map[string]any)
			convey.So(first["rank"], convey.ShouldEqual, float64(1))
			convey.So(first["score"], convey.ShouldEqual, 0.2)
			convey.So(first["student_info"].(map[string]any)["student_id"], convey.ShouldEqual, "s1")
		})
	})
}
