// Package loadgen drives a running classboard server with synthetic
// submissions and checks the resulting leaderboard.
package loadgen

import (
	"errors"
	"time"
)

// Defaults used when Config fields are zero.
const (
	DefaultStudents          = 50
	DefaultSubmissionsPerRun = 3
	DefaultWorkers           = 8
	DefaultTimeout           = 30 * time.Second
	DefaultMetric            = "RMSE"
)

// Sentinel errors.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrVerification = errors.New("leaderboard verification failed")
)

// Config holds configuration for one load run.
type Config struct {
	BaseURL      string        // Base URL of the service
	AssignmentID string        // Assignment to submit to
	Students     int           // Number of synthetic students
	Submissions  int           // Submissions per student
	Workers      int           // Concurrent requests in flight
	Timeout      time.Duration // HTTP request timeout
	Seed         uint64        // Metric generator seed; 0 picks one from the clock
	Verbose      bool          // Log every rejected submission
}

func (c Config) withDefaults() Config {
	if c.Students <= 0 {
		c.Students = DefaultStudents
	}
	if c.Submissions <= 0 {
		c.Submissions = DefaultSubmissionsPerRun
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return c
}

// Stats summarizes a run.
type Stats struct {
	Generated          int
	Accepted           int
	Rejected           int
	Failed             int
	LeaderboardEntries int
	Duration           time.Duration
}
