package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/classboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverFile)
			convey.So(cfg.DataDir, convey.ShouldEqual, "database")
			convey.So(cfg.BackupSchedule, convey.ShouldEqual, "@every 12h")
			convey.So(cfg.CheckpointRetentionDays, convey.ShouldEqual, 7)
			convey.So(cfg.DefaultMaxSubmissions, convey.ShouldEqual, 100)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the driver is unknown", func() {
			cfg.StorageDriver = "redis"
			err := cfg.Validate()

			convey.Convey("Then validation fails with ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When sqlite is selected without a path", func() {
			cfg.StorageDriver = config.DriverSQLite
			cfg.SQLitePath = ""
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When retention is not positive", func() {
			cfg.CheckpointRetentionDays = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When data_dir is blank", func() {
			cfg.DataDir = "  "
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
