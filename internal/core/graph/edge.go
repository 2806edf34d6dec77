// Package graph provides edge definitions
package graph

// Edge is a static directed connection between two nodes.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Validate ensures edge integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - Endpoint existence is checked at compile time, not here
func (e Edge) Validate() error {
	if e.From == "" {
		return ErrInvalidSource
	}
	if e.To == "" {
		return ErrInvalidTarget
	}
	return nil
}
