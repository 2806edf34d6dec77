// Package graph defines domain-specific errors
package graph

import (
	"errors"
	"fmt"
)

// Domain errors - DRY principle: defined once, used everywhere
var (
	// Builder errors
	ErrInvalidGraphName = errors.New("invalid graph name")
	ErrNoEntryPoint     = errors.New("no entry point specified")
	ErrNoFinishPoint    = errors.New("no finish point specified")

	// Registry errors
	ErrGraphNotFound = errors.New("graph not found")

	// Node errors
	ErrInvalidNodeName = errors.New("invalid node name")
	ErrNilNodeFunc     = errors.New("node function cannot be nil")
	ErrDuplicateNode   = errors.New("duplicate node name")
	ErrInvalidPolicy   = errors.New("invalid node policy")

	// Edge errors
	ErrInvalidSource = errors.New("invalid source node")
	ErrInvalidTarget = errors.New("invalid target node")

	// Compilation errors, one per CompilationErrorKind
	ErrMissingNode       = errors.New("missing node")
	ErrUnreachableFinish = errors.New("finish point unreachable from entry point")
	ErrSelfLoop          = errors.New("self-loops are not allowed")
	ErrDanglingEdge      = errors.New("edge endpoint is not a defined node")
	ErrAmbiguousBranch   = errors.New("successor has more than one branch predecessor")
)

// CompilationErrorKind names the violated compile-time invariant.
type CompilationErrorKind string

const (
	MissingNode       CompilationErrorKind = "missing_node"
	UnreachableFinish CompilationErrorKind = "unreachable_finish"
	SelfLoop          CompilationErrorKind = "self_loop"
	DanglingEdge      CompilationErrorKind = "dangling_edge"
	AmbiguousBranch   CompilationErrorKind = "ambiguous_branch"
)

var kindErrors = map[CompilationErrorKind]error{
	MissingNode:       ErrMissingNode,
	UnreachableFinish: ErrUnreachableFinish,
	SelfLoop:          ErrSelfLoop,
	DanglingEdge:      ErrDanglingEdge,
	AmbiguousBranch:   ErrAmbiguousBranch,
}

// CompilationError reports the first invariant violated by a StateGraph.
type CompilationError struct {
	Kind   CompilationErrorKind
	Node   string
	Detail string
	Cause  error
}

func (e *CompilationError) Error() string {
	msg := fmt.Sprintf("compile %s: node %q", e.Kind, e.Node)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *CompilationError) Unwrap() []error {
	out := make([]error, 0, 2)
	if sentinel, ok := kindErrors[e.Kind]; ok {
		out = append(out, sentinel)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func compileErr(kind CompilationErrorKind, node, detail string) *CompilationError {
	return &CompilationError{Kind: kind, Node: node, Detail: detail}
}
