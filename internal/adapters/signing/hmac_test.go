package signing

import (
	"testing"

	"github.com/okian/classboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHMACSigner(t *testing.T) {
	Convey("Given a signer", t, func() {
		s := NewHMACSigner("secret")
		rec := model.SubmissionRecord{
			Student:         model.StudentIdentity{StudentID: "s1"},
			AssignmentID:    "hw1",
			Timestamp:       "2025-05-01T10:00:00.000000Z",
			SubmissionCount: 2,
			Metrics:         model.MetricSet{"RMSE": 0.9, "MAE": 0.25, "MSE": 1e-7},
		}

		Convey("Then the payload joins the signed fields", func() {
			So(payload(rec), ShouldEqual, "s1|hw1|2025-05-01T10:00:00.000000Z|2|MAE=0.25,MSE=1e-07,RMSE=0.9")
		})

		Convey("Then signatures are stable hex and verify", func() {
			rec.Signature = s.Sign(rec)
			So(rec.Signature, ShouldHaveLength, 64)
			So(s.Sign(rec), ShouldEqual, rec.Signature)
			So(s.Verify(rec), ShouldBeTrue)
		})

		Convey("Then a tampered record or another key fails verification", func() {
			rec.Signature = s.Sign(rec)
			tampered := rec
			tampered.SubmissionCount = 3
			So(s.Verify(tampered), ShouldBeFalse)
			So(NewHMACSigner("other").Verify(rec), ShouldBeFalse)

			edited := rec
			edited.Metrics = model.MetricSet{"RMSE": 0.0001, "MAE": 0.25, "MSE": 1e-7}
			So(s.Verify(edited), ShouldBeFalse)

			extra := rec
			extra.Metrics = model.MetricSet{"RMSE": 0.9, "MAE": 0.25, "MSE": 1e-7, "R2": 1}
			So(s.Verify(extra), ShouldBeFalse)

			rec.Signature = "zz"
			So(s.Verify(rec), ShouldBeFalse)
		})
	})

	Convey("An empty secret disables signing", t, func() {
		So(NewHMACSigner(""), ShouldBeNil)
	})
}
