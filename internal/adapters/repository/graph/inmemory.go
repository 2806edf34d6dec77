// Package graphrepo keeps compiled workflows addressable by name.
package graphrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowgraph/workflow/internal/core/graph"
)

// Entry is a registered workflow.
type Entry struct {
	Graph        *graph.CompiledGraph
	Version      int
	RegisteredAt time.Time
}

// InMemoryGraphRepository provides an in-memory registry of compiled graphs
// PRINCIPLES:
// - KISS: Simple map-based storage
// - SRP: Only responsible for graph lookup
// - Thread-safe
type InMemoryGraphRepository struct {
	mu     sync.RWMutex
	graphs map[string]Entry
}

func NewInMemoryGraphRepository() *InMemoryGraphRepository {
	return &InMemoryGraphRepository{graphs: make(map[string]Entry)}
}

// Save registers cg under its name, replacing and versioning any previous one.
func (r *InMemoryGraphRepository) Save(_ context.Context, cg *graph.CompiledGraph) (Entry, error) {
	if cg == nil || cg.Name() == "" {
		return Entry{}, fmt.Errorf("register graph: %w", graph.ErrInvalidGraphName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e := Entry{Graph: cg, Version: r.graphs[cg.Name()].Version + 1, RegisteredAt: time.Now().UTC()}
	r.graphs[cg.Name()] = e
	return e, nil
}

func (r *InMemoryGraphRepository) Get(_ context.Context, name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.graphs[name]
	if !ok {
		return Entry{}, fmt.Errorf("graph %q: %w", name, graph.ErrGraphNotFound)
	}
	return e, nil
}

// List returns every entry ordered by name.
func (r *InMemoryGraphRepository) List(_ context.Context) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.graphs))
	for _, e := range r.graphs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Graph.Name() < out[j].Graph.Name() })
	return out, nil
}

func (r *InMemoryGraphRepository) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.graphs[name]; !ok {
		return fmt.Errorf("graph %q: %w", name, graph.ErrGraphNotFound)
	}
	delete(r.graphs, name)
	return nil
}
