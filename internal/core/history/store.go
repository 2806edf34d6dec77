// Package history provides run history persistence interfaces
package history

import (
	"context"
	"time"
)

// Store persists run records (DIP - Dependency Inversion)
// PRINCIPLES:
// - ISP: Interface segregation with ≤5 methods
// - DIP: Core domain depends on interface, not implementations
type Store interface {
	// Save inserts or replaces a record
	Save(ctx context.Context, record *Record) error

	// Load retrieves a record by ID
	Load(ctx context.Context, id string) (*Record, error)

	// List returns records matching the filter, newest first
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// Delete removes a record by ID
	Delete(ctx context.Context, id string) error
}

// Filter for record queries
type Filter struct {
	Workflow string     `json:"workflow,omitempty"`
	Status   Status     `json:"status,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
}

// Validate ensures filter parameters are valid
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Status != "" && !f.Status.Valid() {
		return ErrInvalidStatus
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Matches reports whether r passes the filter's predicates. Limit and Offset
// are applied by the store.
func (f *Filter) Matches(r *Record) bool {
	if f.Workflow != "" && r.Workflow != f.Workflow {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Since != nil && r.StartedAt.Before(*f.Since) {
		return false
	}
	if f.Before != nil && !r.StartedAt.Before(*f.Before) {
		return false
	}
	return true
}
