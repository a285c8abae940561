package reconcile

import (
	"time"

	"github.com/okian/classboard/pkg/logger"
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Reconciler) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithDefaultDailyLimit sets the limit for assignments without max_submissions.
func WithDefaultDailyLimit(limit int) Option {
	return func(r *Reconciler) {
		if limit > 0 {
			r.defaultDailyLimit = limit
		}
	}
}

// WithArchiveTrigger sets the archival collaborator.
func WithArchiveTrigger(t ArchiveTrigger) Option {
	return func(r *Reconciler) { r.archiver = t }
}

// WithNotifier sets the leaderboard change listener.
func WithNotifier(n Notifier) Option {
	return func(r *Reconciler) { r.notifier = n }
}

// WithSigner enables record signatures.
func WithSigner(s Signer) Option {
	return func(r *Reconciler) { r.signer = s }
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLocks shares the lock table with other readers of the same store.
func WithLocks(l *Locks) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.locks = l
		}
	}
}
