// Package history provides the run history domain entities and the store port.
// It has no external dependencies.
package history

import (
	"time"

	"github.com/flowgraph/workflow/internal/core/value"
)

// Status is the terminal state of a recorded run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s == StatusSucceeded || s == StatusFailed }

// Record is one workflow invocation.
// PRINCIPLES:
// - KISS: Simple struct with clear fields
// - SRP: Only responsible for run data, not storage
type Record struct {
	ID             string                 `json:"id" msgpack:"id"`
	Workflow       string                 `json:"workflow" msgpack:"workflow"`
	Input          map[string]value.Value `json:"input" msgpack:"input"`
	Output         map[string]value.Value `json:"output" msgpack:"output"`
	CompletedNodes []string               `json:"completed_nodes" msgpack:"completed_nodes"`
	Steps          int                    `json:"steps" msgpack:"steps"`
	BoundExceeded  bool                   `json:"bound_exceeded" msgpack:"bound_exceeded"`
	Status         Status                 `json:"status" msgpack:"status"`
	Error          string                 `json:"error,omitempty" msgpack:"error,omitempty"`
	StartedAt      time.Time              `json:"started_at" msgpack:"started_at"`
	FinishedAt     time.Time              `json:"finished_at" msgpack:"finished_at"`
}

// Payload is the part of a Record stored as an opaque blob.
type Payload struct {
	Input          map[string]value.Value `json:"input" msgpack:"input"`
	Output         map[string]value.Value `json:"output" msgpack:"output"`
	CompletedNodes []string               `json:"completed_nodes" msgpack:"completed_nodes"`
}

// Payload splits off the blob fields.
func (r *Record) Payload() Payload {
	return Payload{Input: r.Input, Output: r.Output, CompletedNodes: r.CompletedNodes}
}

// SetPayload restores the blob fields.
func (r *Record) SetPayload(p Payload) {
	r.Input, r.Output, r.CompletedNodes = p.Input, p.Output, p.CompletedNodes
}

// Duration is the wall time of the run.
func (r *Record) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Validate ensures record integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
func (r *Record) Validate() error {
	if r == nil || r.ID == "" {
		return ErrInvalidRecordID
	}
	if r.Workflow == "" {
		return ErrInvalidWorkflow
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	if !r.FinishedAt.IsZero() && r.FinishedAt.Before(r.StartedAt) {
		return ErrInvalidTimeRange
	}
	return nil
}
