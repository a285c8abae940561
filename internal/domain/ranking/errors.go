package ranking

import "errors"

var (
	ErrInvalidPolicy    = errors.New("invalid metric policy")
	ErrInvalidDirection = errors.New("invalid metric direction")
)
