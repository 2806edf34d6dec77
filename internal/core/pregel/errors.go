package pregel

import (
	"errors"
	"fmt"
)

var (
	// Executor setup errors
	ErrNilGraph        = errors.New("compiled graph is nil")
	ErrNilState        = errors.New("workflow state is nil")
	ErrInvalidMaxSteps = errors.New("max steps cannot be negative")

	// ErrBoundExceeded is informational: the loop stopped at max steps while
	// nodes were still eligible. It is never returned by Run.
	ErrBoundExceeded = errors.New("max steps reached with eligible nodes remaining")

	// Per-kind sentinels for errors.Is
	ErrBranchTargetNotSuccessor = errors.New("branch target is not a successor")
	ErrBodyFailed               = errors.New("node body failed")
	ErrRetriesExhausted         = errors.New("node retries exhausted")
	ErrChannelNotFound          = errors.New("channel not found")
	ErrReadOnlyChannel          = errors.New("channel is owned by the executor")
	ErrNodePanic                = errors.New("node body panicked")
)

// PlanErrorKind names a structural problem found while routing.
type PlanErrorKind string

const BranchTargetNotSuccessor PlanErrorKind = "branch_target_not_successor"

// PlanError reports a branch decision that names a node outside the branch's successors.
type PlanError struct {
	Kind   PlanErrorKind
	Branch string
	Target string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan %s: branch %q selected %q", e.Kind, e.Branch, e.Target)
}

func (e *PlanError) Unwrap() error { return ErrBranchTargetNotSuccessor }

// NodeErrorKind separates a plain failure from an exhausted retry budget.
type NodeErrorKind string

const (
	BodyError        NodeErrorKind = "body_error"
	RetriesExhausted NodeErrorKind = "retries_exhausted"
)

// NodeError wraps the last error returned by a node body.
type NodeError struct {
	Kind     NodeErrorKind
	Node     string
	Step     int
	Attempts int
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q failed at step %d after %d attempt(s) (%s): %v", e.Node, e.Step, e.Attempts, e.Kind, e.Err)
}

func (e *NodeError) Unwrap() []error {
	sentinel := ErrBodyFailed
	if e.Kind == RetriesExhausted {
		sentinel = ErrRetriesExhausted
	}
	return []error{sentinel, e.Err}
}

// StateErrorKind names a channel access problem.
type StateErrorKind string

const (
	ChannelNotFound StateErrorKind = "channel_not_found"
	ReadOnlyChannel StateErrorKind = "read_only_channel"
)

// StateError is returned to node bodies that reference a channel they cannot write.
type StateError struct {
	Kind    StateErrorKind
	Channel string
	Node    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: node %q wrote %q", e.Kind, e.Node, e.Channel)
}

func (e *StateError) Unwrap() error {
	if e.Kind == ReadOnlyChannel {
		return ErrReadOnlyChannel
	}
	return ErrChannelNotFound
}
