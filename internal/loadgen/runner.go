package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/classboard/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Run submits every planned attempt concurrently, then verifies the
// leaderboard. Rejections are counted; transport failures abort the run.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	cfg = cfg.withDefaults()
	log := logger.Get().Named("loadgen")
	start := time.Now()
	var stats Stats

	log.Info(ctx, "starting load run",
		logger.String("base_url", cfg.BaseURL),
		logger.String("assignment_id", cfg.AssignmentID),
		logger.Int("students", cfg.Students),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("workers", cfg.Workers),
	)

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	students := Generate(cfg.Students, cfg.Submissions, cfg.Seed)
	stats.Generated = cfg.Students * cfg.Submissions

	var accepted, rejected atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, st := range students {
		for _, m := range st.Attempts {
			req := submitRequest{
				StudentInfo:  studentInfo{StudentID: st.ID, Name: st.Name},
				AssignmentID: cfg.AssignmentID,
				Metrics:      m,
			}
			g.Go(func() error {
				err := c.submit(gctx, req)
				var se *StatusError
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.As(err, &se):
					rejected.Add(1)
					if cfg.Verbose {
						log.Warn(gctx, "submission rejected",
							logger.String("student_id", req.StudentInfo.StudentID), logger.Error(err))
					}
				default:
					return err
				}
				return nil
			})
		}
	}
	err := g.Wait()
	stats.Accepted = int(accepted.Load())
	stats.Rejected = int(rejected.Load())
	stats.Failed = stats.Generated - stats.Accepted - stats.Rejected
	if err != nil {
		return stats, fmt.Errorf("submit: %w", err)
	}

	entries, err := c.leaderboard(ctx, cfg.AssignmentID)
	if err != nil {
		return stats, fmt.Errorf("leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(entries)
	stats.Duration = time.Since(start)

	if err := Verify(entries, students, DefaultMetric); err != nil {
		return stats, err
	}
	log.Info(ctx, "load run verified",
		logger.Int("accepted", stats.Accepted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("entries", stats.LeaderboardEntries),
		logger.Duration("took", stats.Duration),
	)
	return stats, nil
}
