// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers .env, an optional YAML file and CLASSBOARD_* env vars on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ServiceName is reported by /api/health.
	ServiceName string `koanf:"service_name"`

	// DataDir holds assignments.json and the per-assignment documents.
	DataDir string `koanf:"data_dir"`

	// StorageDriver selects where submissions and leaderboards live: file or sqlite.
	StorageDriver string `koanf:"storage_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// CheckpointDir receives periodic backups.
	CheckpointDir string `koanf:"checkpoint_dir"`

	// ArchiveDir receives deadline archives.
	ArchiveDir string `koanf:"archive_dir"`

	// RosterFile lists every enrolled student. Optional.
	RosterFile string `koanf:"roster_file"`

	// BackupSchedule and ArchiveSchedule are cron specs.
	BackupSchedule  string `koanf:"backup_schedule"`
	ArchiveSchedule string `koanf:"archive_schedule"`

	// CheckpointRetentionDays bounds how long checkpoints are kept.
	CheckpointRetentionDays int `koanf:"checkpoint_retention_days"`

	// DefaultMaxSubmissions applies when an assignment sets no daily limit.
	DefaultMaxSubmissions int `koanf:"default_max_submissions"`

	// ArchiveQueueSize bounds the archive job queue.
	ArchiveQueueSize int `koanf:"archive_queue_size"`

	// ArchiveWorkers sets the number of archive workers.
	ArchiveWorkers int `koanf:"archive_workers"`

	// SigningSecret enables HMAC signatures on stored submission records.
	SigningSecret string `koanf:"signing_secret"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":8000",
		ServiceName:             "classboard",
		DataDir:                 "database",
		StorageDriver:           DriverFile,
		SQLitePath:              "database/classboard.db",
		CheckpointDir:           "checkpoint",
		ArchiveDir:              "homework",
		RosterFile:              "",
		BackupSchedule:          "@every 12h",
		ArchiveSchedule:         "@every 1h",
		CheckpointRetentionDays: 7,
		DefaultMaxSubmissions:   100,
		ArchiveQueueSize:        64,
		ArchiveWorkers:          2,
	}
}

// Validate checks invariants Load relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DataDir) == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case c.StorageDriver != DriverFile && c.StorageDriver != DriverSQLite:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	case c.StorageDriver == DriverSQLite && strings.TrimSpace(c.SQLitePath) == "":
		return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
	case c.CheckpointRetentionDays <= 0:
		return fmt.Errorf("%w: checkpoint_retention_days must be positive", ErrInvalidConfig)
	case c.DefaultMaxSubmissions <= 0:
		return fmt.Errorf("%w: default_max_submissions must be positive", ErrInvalidConfig)
	}
	return nil
}
