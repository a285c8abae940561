package repository

import "github.com/okian/classboard/pkg/logger"

type options struct {
	logger logger.Logger
	fsync  bool
}

func defaultOptions() options {
	return options{fsync: true}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithLogger sets the logger the store reports through.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFsync controls whether the file driver syncs each write before the
// rename. Disabling it trades durability for speed in tests.
func WithFsync(enabled bool) Option {
	return func(o *options) {
		o.fsync = enabled
	}
}
