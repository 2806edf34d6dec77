// Package history defines domain-specific errors
package history

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	// Record validation errors
	ErrInvalidRecordID = errors.New("invalid run record ID")
	ErrInvalidWorkflow = errors.New("invalid workflow name")
	ErrInvalidStatus   = errors.New("invalid run status")
	ErrRecordNotFound  = errors.New("run record not found")

	// Filter validation errors
	ErrInvalidLimit     = errors.New("limit cannot be negative")
	ErrInvalidOffset    = errors.New("offset cannot be negative")
	ErrInvalidTimeRange = errors.New("invalid time range: start is after end")
)
