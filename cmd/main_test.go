package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	app "github.com/okian/classboard/internal/app"
	"github.com/okian/classboard/internal/config"
	"github.com/okian/classboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainWiring(t *testing.T) {
	convey.Convey("Given configuration from the environment", t, func() {
		root := t.TempDir()
		data := filepath.Join(root, "database")
		convey.So(os.MkdirAll(data, 0o755), convey.ShouldBeNil)
		convey.So(os.WriteFile(filepath.Join(data, "assignments.json"),
			[]byte(`{"hw1": {"metrics": {"RMSE": 1}}}`), 0o644), convey.ShouldBeNil)

		t.Setenv("CLASSBOARD_ADDR", ":0")
		t.Setenv("CLASSBOARD_DATA_DIR", data)
		t.Setenv("CLASSBOARD_CHECKPOINT_DIR", filepath.Join(root, "checkpoint"))
		t.Setenv("CLASSBOARD_ARCHIVE_DIR", filepath.Join(root, "homework"))
		t.Setenv("CLASSBOARD_BACKUP_SCHEDULE", "@every 1h")
		t.Setenv("CLASSBOARD_ARCHIVE_WORKERS", "1")

		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.ArchiveWorkers, convey.ShouldEqual, 1)

		convey.Convey("When the service and router are built from it", func() {
			svc := app.New(serviceOptions(cfg)...)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop(ctx)
			r := newRouter(ctx, svc)

			get := func(path string) *httptest.ResponseRecorder {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				return rec
			}

			convey.Convey("Then the service uses the configured workers", func() {
				convey.So(svc.GetStats()["workerCount"], convey.ShouldEqual, 1)
			})

			convey.Convey("Then the business routes are served", func() {
				convey.So(get("/api/health").Code, convey.ShouldEqual, http.StatusOK)
				convey.So(get("/api/leaderboard/hw1").Code, convey.ShouldEqual, http.StatusOK)
				convey.So(get("/api/leaderboard/hw9").Code, convey.ShouldEqual, http.StatusNotFound)
			})

			convey.Convey("Then the docs routes are served", func() {
				convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
				convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("Then a submission goes through the router", func() {
				rec := httptest.NewRecorder()
				body := `{"student_info":{"student_id":"s1","name":"Ana"},"assignment_id":"hw1","metrics":{"RMSE":0.3}}`
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(body)))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, `"success":true`)
			})
		})
	})
}
