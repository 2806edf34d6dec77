package usecases

import (
	"context"

	graphrepo "github.com/flowgraph/workflow/internal/adapters/repository/graph"
	"github.com/flowgraph/workflow/internal/core/graph"
)

// GraphRepository stores compiled graphs by name
// PRINCIPLES:
// - SRP: Only responsible for graph registration and lookup
// - DIP: Used for dependency injection
type GraphRepository interface {
	Save(ctx context.Context, cg *graph.CompiledGraph) (graphrepo.Entry, error)
	Get(ctx context.Context, name string) (graphrepo.Entry, error)
	List(ctx context.Context) ([]graphrepo.Entry, error)
	Delete(ctx context.Context, name string) error
}
