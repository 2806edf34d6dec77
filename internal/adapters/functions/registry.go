// Package functions resolves function names used in workflow definitions to
// node and branch bodies.
package functions

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
)

var (
	ErrUnknownFunction   = errors.New("unknown function")
	ErrDuplicateFunction = errors.New("function already registered")
	ErrInvalidConfig     = errors.New("invalid function config")
	ErrInputType         = errors.New("unexpected input type")
)

// NodeFactory builds a node body from its definition config.
type NodeFactory func(cfg map[string]value.Value) (graph.NodeFunc, error)

// BranchFactory builds a branch router from its definition config.
type BranchFactory func(cfg map[string]value.Value) (graph.BranchFunc, error)

// Registry maps names to factories. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	nodes    map[string]NodeFactory
	branches map[string]BranchFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:    make(map[string]NodeFactory),
		branches: make(map[string]BranchFactory),
	}
}

// Builtins returns a registry holding every built-in function.
func Builtins() *Registry {
	r := NewRegistry()
	for name, f := range builtinNodes {
		r.nodes[name] = f
	}
	for name, f := range builtinBranches {
		r.branches[name] = f
	}
	return r
}

func (r *Registry) RegisterNode(name string, f NodeFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[name]; ok {
		return fmt.Errorf("node function %q: %w", name, ErrDuplicateFunction)
	}
	r.nodes[name] = f
	return nil
}

func (r *Registry) RegisterBranch(name string, f BranchFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.branches[name]; ok {
		return fmt.Errorf("branch function %q: %w", name, ErrDuplicateFunction)
	}
	r.branches[name] = f
	return nil
}

// Node builds the node body registered as name.
func (r *Registry) Node(name string, cfg map[string]value.Value) (graph.NodeFunc, error) {
	r.mu.RLock()
	f, ok := r.nodes[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("node function %q: %w", name, ErrUnknownFunction)
	}
	fn, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("node function %q: %w", name, err)
	}
	return fn, nil
}

// Branch builds the router registered as name.
func (r *Registry) Branch(name string, cfg map[string]value.Value) (graph.BranchFunc, error) {
	r.mu.RLock()
	f, ok := r.branches[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("branch function %q: %w", name, ErrUnknownFunction)
	}
	fn, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("branch function %q: %w", name, err)
	}
	return fn, nil
}

// NodeNames lists registered node functions in order.
func (r *Registry) NodeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.nodes)
}

// BranchNames lists registered branch functions in order.
func (r *Registry) BranchNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.branches)
}

func sortedNames[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func configString(cfg map[string]value.Value, key, def string) (string, error) {
	v, ok := cfg[key]
	if !ok || v.IsNull() {
		return def, nil
	}
	s, ok := v.AsString()
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %s", ErrInvalidConfig, key, v.Kind())
	}
	return s, nil
}

func configNumber(cfg map[string]value.Value, key string, def float64) (float64, error) {
	v, ok := cfg[key]
	if !ok || v.IsNull() {
		return def, nil
	}
	n, ok := v.AsNumber()
	if !ok {
		return 0, fmt.Errorf("%w: %q must be a number, got %s", ErrInvalidConfig, key, v.Kind())
	}
	return n, nil
}

func configStrings(cfg map[string]value.Value, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok || v.IsNull() {
		return nil, nil
	}
	items, ok := v.AsArray()
	if !ok {
		return nil, fmt.Errorf("%w: %q must be a list, got %s", ErrInvalidConfig, key, v.Kind())
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.AsString()
		if !ok {
			return nil, fmt.Errorf("%w: %q[%d] must be a string", ErrInvalidConfig, key, i)
		}
		out = append(out, s)
	}
	return out, nil
}
