package flowgraph

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/flowgraph/workflow/internal/adapters/definition"
	"github.com/flowgraph/workflow/internal/adapters/functions"
	graphrepo "github.com/flowgraph/workflow/internal/adapters/repository/graph"
	"github.com/flowgraph/workflow/internal/adapters/repository/memory"
	"github.com/flowgraph/workflow/internal/app/dto"
	"github.com/flowgraph/workflow/internal/app/usecases"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/pregel"
	"github.com/flowgraph/workflow/internal/core/value"
	"github.com/flowgraph/workflow/internal/infrastructure/ctxlog"
)

// Re-export core graph types for convenience
type (
	StateGraph    = graph.StateGraph
	CompiledGraph = graph.CompiledGraph
	NodeSpec      = graph.NodeSpec
	BranchSpec    = graph.BranchSpec
	NodeFunc      = graph.NodeFunc
	BranchFunc    = graph.BranchFunc
	NodeContext   = graph.NodeContext
	BranchResult  = graph.BranchResult
	Value         = value.Value
	Response      = dto.ExecutionResponse
	Registry      = functions.Registry
)

// DefaultMaxSteps bounds Invoke when neither the call nor the definition sets
// a limit.
const DefaultMaxSteps = pregel.DefaultMaxSteps

var (
	NewGraph  = graph.New
	NewNode   = graph.NewNode
	NewBranch = graph.NewBranch
	Single    = graph.Single
	Multi     = graph.Multi

	StringValue = value.String
	FromNative  = value.FromNative

	// Builtins returns a registry of the built-in definition functions;
	// custom ones are added with RegisterNode and RegisterBranch.
	Builtins = functions.Builtins
)

// Runtime is a simple façade to register and run graphs without importing
// internal packages directly. It keeps run history in memory and is suitable
// for local usage and tests.
type Runtime struct {
	service *usecases.WorkflowService
	store   *memory.Store
	logger  *slog.Logger
}

// Option customizes a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger   *slog.Logger
	maxSteps int
	cacheTTL time.Duration
	registry *functions.Registry
}

// WithLogger routes runtime logs to l.
func WithLogger(l *slog.Logger) Option { return func(o *runtimeOptions) { o.logger = l } }

// WithMaxSteps sets the runtime-wide superstep bound.
func WithMaxSteps(n int) Option { return func(o *runtimeOptions) { o.maxSteps = n } }

// WithCacheTTL sets the default lifetime of cached node outputs.
func WithCacheTTL(d time.Duration) Option { return func(o *runtimeOptions) { o.cacheTTL = d } }

// WithFunctions replaces the built-in function registry used for definitions.
func WithFunctions(r *Registry) Option { return func(o *runtimeOptions) { o.registry = r } }

// NewRuntime constructs a runtime backed by in-memory components.
func NewRuntime(opts ...Option) (*Runtime, error) {
	o := runtimeOptions{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxSteps: DefaultMaxSteps,
		registry: functions.Builtins(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	store := memory.New(memory.Config{})
	svc, err := usecases.NewWorkflowService(graphrepo.NewInMemoryGraphRepository(), store, o.registry, usecases.ServiceConfig{
		MaxSteps: o.maxSteps,
		Cache:    pregel.NewMemoryCache(),
		CacheTTL: o.cacheTTL,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Runtime{service: svc, store: store, logger: o.logger}, nil
}

// Close releases the run history.
func (rt *Runtime) Close() error { return rt.store.Close() }

func (rt *Runtime) ctx(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, rt.logger)
}

// Register makes cg invokable by name.
func (rt *Runtime) Register(ctx context.Context, cg *CompiledGraph) error {
	_, err := rt.service.Register(rt.ctx(ctx), cg, nil)
	return err
}

// RegisterDefinition parses a YAML, JSON or HCL definition and registers it.
// format is a file extension or content type; filename is used in
// diagnostics only.
func (rt *Runtime) RegisterDefinition(ctx context.Context, data []byte, format, filename string) (string, error) {
	f, err := definition.ParseFormat(format)
	if err != nil {
		return "", err
	}
	wc, err := definition.Parse(data, f, filename)
	if err != nil {
		return "", err
	}
	entry, err := rt.service.RegisterDefinition(rt.ctx(ctx), wc)
	if err != nil {
		return "", err
	}
	return entry.Graph.Name(), nil
}

// Invoke runs the named workflow. The response is returned even when the run
// fails so callers can inspect partial progress.
func (rt *Runtime) Invoke(ctx context.Context, name string, input map[string]interface{}) (*Response, error) {
	return rt.service.Invoke(rt.ctx(ctx), &dto.ExecutionRequest{Workflow: name, Input: input})
}

// Run registers cg and invokes it in one call.
func (rt *Runtime) Run(ctx context.Context, cg *CompiledGraph, input map[string]interface{}) (*Response, error) {
	if err := rt.Register(ctx, cg); err != nil {
		return nil, err
	}
	return rt.Invoke(ctx, cg.Name(), input)
}
