package repository

import "github.com/pkg/errors"

var (
	ErrUnknownDriver   = errors.New("unknown storage driver")
	ErrCorruptDocument = errors.New("corrupt document")
	ErrInvalidCatalog  = errors.New("invalid assignment catalogue")
	ErrClosed          = errors.New("store closed")
)
