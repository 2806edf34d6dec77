// Package channel defines domain-specific errors
package channel

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	ErrUnknownPolicy  = errors.New("unknown channel policy")
	ErrInvalidChannel = errors.New("invalid channel name")
)
