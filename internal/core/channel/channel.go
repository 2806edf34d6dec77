// Package channel provides the named single-slot mailboxes that hold workflow state
package channel

import (
	"fmt"
	"strings"

	"github.com/flowgraph/workflow/internal/core/value"
)

// OutputSuffix is appended to a node name to form the channel it publishes into.
const OutputSuffix = "_output"

// OutputName returns the implicit output channel of a node.
func OutputName(node string) string { return node + OutputSuffix }

// IsOutputName reports whether name follows the "{node}_output" convention.
func IsOutputName(name string) bool { return strings.HasSuffix(name, OutputSuffix) }

// Policy describes how a write combines with existing channel content.
type Policy string

const (
	// PolicyLastValue replaces the content on every write
	PolicyLastValue Policy = "last_value"
	// PolicyTopic accumulates every written value
	PolicyTopic Policy = "topic"
	// PolicyEphemeral holds a value for a single super-step
	PolicyEphemeral Policy = "ephemeral"
)

// Channel is a named slot owned by a single run.
// PRINCIPLES:
// - ISP: Interface segregation with ≤5 methods
// - Reads never fail; unwritten channels return their initial value
// - Not safe for concurrent use; the executor driver owns all channels
type Channel interface {
	// Policy returns the update policy fixed at construction
	Policy() Policy

	// Read returns the current content
	Read() value.Value

	// Write applies v according to the policy
	Write(v value.Value)

	// IsEmpty reports whether the channel holds nothing useful
	IsEmpty() bool

	// Clone returns an independent copy for a fresh run
	Clone() Channel
}

// Resetter is implemented by channels whose content expires between super-steps.
type Resetter interface {
	Reset()
}

// New builds a channel for a policy name as found in workflow definitions.
func New(policy Policy, initial value.Value) (Channel, error) {
	switch policy {
	case PolicyLastValue, "":
		return NewLastValue(initial), nil
	case PolicyTopic:
		ch := NewTopic()
		if !initial.IsNull() {
			ch.Write(initial)
		}
		return ch, nil
	case PolicyEphemeral:
		return NewEphemeral(initial), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}
