package service

import (
	"time"

	"github.com/okian/classboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStorage selects the storage driver and its locations.
func WithStorage(driver, dataDir, sqlitePath string) Option {
	return func(s *Service) {
		if driver != "" {
			s.driver = driver
		}
		if dataDir != "" {
			s.dataDir = dataDir
		}
		if sqlitePath != "" {
			s.sqlitePath = sqlitePath
		}
	}
}

// WithCheckpointDir sets where backups are written.
func WithCheckpointDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.checkpointDir = dir
		}
	}
}

// WithArchiveDir sets where closed assignments are copied.
func WithArchiveDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.archiveDir = dir
		}
	}
}

// WithRosterFile sets the enrolled-student list.
func WithRosterFile(path string) Option {
	return func(s *Service) { s.rosterFile = path }
}

// WithSchedules sets the cron specs of the backup and the archive sweep.
// An empty spec disables that task.
func WithSchedules(backup, archive string) Option {
	return func(s *Service) {
		s.backupSchedule = backup
		s.archiveSchedule = archive
	}
}

// WithCheckpointRetention sets how long checkpoints are kept.
func WithCheckpointRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithDefaultDailyLimit sets the per-day limit for assignments without max_submissions.
func WithDefaultDailyLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dailyLimit = n
		}
	}
}

// WithArchiveQueue sets the archive job queue capacity and worker count.
func WithArchiveQueue(size, workers int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
		if workers > 0 {
			s.workerCount = workers
		}
	}
}

// WithSigningSecret enables record signatures.
func WithSigningSecret(secret string) Option {
	return func(s *Service) { s.signingSecret = secret }
}

// WithBackupOnStart controls the checkpoint taken during Start.
func WithBackupOnStart(enabled bool) Option {
	return func(s *Service) { s.backupOnStart = enabled }
}

// WithFsync controls whether file writes are synced before rename.
func WithFsync(enabled bool) Option {
	return func(s *Service) { s.fsync = enabled }
}

// WithClock replaces time.Now for deadlines, rate windows and file stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithServiceName sets the name reported by the health endpoint.
func WithServiceName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
