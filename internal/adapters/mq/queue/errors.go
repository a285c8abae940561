package queue

import "errors"

var (
	ErrFull   = errors.New("job queue full")
	ErrClosed = errors.New("job queue closed")
)
