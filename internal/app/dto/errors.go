package dto

import "errors"

// Execution errors
var (
	ErrMissingWorkflow = errors.New("workflow name is required")
	ErrInvalidMaxSteps = errors.New("max steps cannot be negative")
	ErrInvalidTimeout  = errors.New("timeout cannot be negative")
	ErrInvalidInput    = errors.New("invalid input provided")
)
