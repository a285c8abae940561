// Package schedule runs periodic maintenance tasks on cron specs.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/classboard/pkg/logger"
)

const defaultTaskTimeout = 10 * time.Minute

// Task is one periodic unit of work.
type Task func(ctx context.Context) error

// Scheduler wraps a cron runner. Overlapping runs of the same task are skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  logger.Logger
	names   map[cron.EntryID]string
}

// New creates a stopped Scheduler.
func New() *Scheduler {
	l := logger.Get().Named("scheduler")
	cl := cronLogger{l: l}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		timeout: defaultTaskTimeout,
		logger:  l,
		names:   map[cron.EntryID]string{},
	}
}

// Add registers task under spec ("@every 12h", "0 3 * * *", ...).
func (s *Scheduler) Add(name, spec string, task Task) error {
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		if err := task(ctx); err != nil {
			s.logger.Error(ctx, "scheduled task failed", logger.String("task", name), logger.Error(err))
			return
		}
		s.logger.Debug(ctx, "scheduled task finished",
			logger.String("task", name), logger.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.names[id] = name
	return nil
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Next returns the next run time of the named task.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	for _, e := range s.cron.Entries() {
		if s.names[e.ID] == name {
			return e.Next, true
		}
	}
	return time.Time{}, false
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info(ctx, "scheduler started", logger.Int("tasks", len(s.names)))
}

// Stop prevents new runs and waits for running tasks until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
