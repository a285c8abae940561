package archive

import (
	"time"

	"github.com/okian/classboard/internal/domain/model"
)

// Verifier checks a stored record signature.
type Verifier interface {
	Verify(rec model.SubmissionRecord) bool
}

// LockFunc holds an assignment until the returned func is called.
type LockFunc func(assignmentID string) func()

type options struct {
	now         func() time.Time
	fsync       bool
	retention   time.Duration
	concurrency int
	lock        LockFunc
	verifier    Verifier
}

func applyOptions(opts []Option) options {
	o := options{
		now:         time.Now,
		fsync:       true,
		retention:   7 * 24 * time.Hour,
		concurrency: 4,
		lock:        func(string) func() { return func() {} },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures the archive components.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFsync controls whether written files are synced before rename.
func WithFsync(enabled bool) Option {
	return func(o *options) { o.fsync = enabled }
}

// WithRetention sets how long checkpoints are kept.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithConcurrency bounds how many assignments a backup copies at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithSnapshotLock makes snapshots wait for in-flight submissions of the
// same assignment, so the copied log and board agree.
func WithSnapshotLock(lock LockFunc) Option {
	return func(o *options) {
		if lock != nil {
			o.lock = lock
		}
	}
}

// WithVerifier checks record signatures while checkpointing.
func WithVerifier(v Verifier) Option {
	return func(o *options) { o.verifier = v }
}
