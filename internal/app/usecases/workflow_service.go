package usecases

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/workflow/internal/adapters/definition"
	"github.com/flowgraph/workflow/internal/adapters/functions"
	graphrepo "github.com/flowgraph/workflow/internal/adapters/repository/graph"
	"github.com/flowgraph/workflow/internal/app/dto"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/internal/core/pregel"
	"github.com/flowgraph/workflow/internal/infrastructure/ctxlog"
	"github.com/flowgraph/workflow/pkg/validation"
)

// ServiceConfig tunes a WorkflowService.
type ServiceConfig struct {
	// MaxSteps is used when neither the request nor the definition sets a
	// bound. Non-positive values fall back to pregel.DefaultMaxSteps.
	MaxSteps int
	// Cache is shared by every run. Nil disables node result caching.
	Cache    pregel.ResultCache
	CacheTTL time.Duration
	// Handlers receive the execution events of every run.
	Handlers []pregel.StreamHandler
}

// WorkflowService registers workflows, runs them and records each run
// PRINCIPLES:
// - SRP: Orchestrates registry, executor and history; owns none of their logic
// - DIP: Depends on GraphRepository and history.Store abstractions
type WorkflowService struct {
	graphs    GraphRepository
	history   history.Store
	functions *functions.Registry
	config    ServiceConfig

	mu     sync.RWMutex
	bounds map[string]*int
	active map[string]activeRun

	now func() time.Time
}

type activeRun struct {
	workflow  string
	startedAt time.Time
	cancel    context.CancelFunc
}

// ActiveRun describes an in-flight run.
type ActiveRun struct {
	RunID     string    `json:"run_id"`
	Workflow  string    `json:"workflow"`
	StartedAt time.Time `json:"started_at"`
}

// NewWorkflowService wires the service. reg may be nil when only compiled
// graphs are registered.
func NewWorkflowService(graphs GraphRepository, store history.Store, reg *functions.Registry, cfg ServiceConfig) (*WorkflowService, error) {
	if store == nil {
		return nil, ErrNilHistory
	}
	if graphs == nil {
		graphs = graphrepo.NewInMemoryGraphRepository()
	}
	if reg == nil {
		reg = functions.Builtins()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = pregel.DefaultMaxSteps
	}
	return &WorkflowService{
		graphs:    graphs,
		history:   store,
		functions: reg,
		config:    cfg,
		bounds:    make(map[string]*int),
		active:    make(map[string]activeRun),
		now:       time.Now,
	}, nil
}

// Register stores a compiled graph. maxSteps is the workflow's own bound
// and may be nil.
func (s *WorkflowService) Register(ctx context.Context, cg *graph.CompiledGraph, maxSteps *int) (graphrepo.Entry, error) {
	entry, err := s.graphs.Save(ctx, cg)
	if err != nil {
		return graphrepo.Entry{}, err
	}
	s.mu.Lock()
	s.bounds[cg.Name()] = maxSteps
	s.mu.Unlock()

	ctxlog.FromContext(ctx).Info("Workflow registered", "workflow", cg.Name(), "version", entry.Version)
	return entry, nil
}

// RegisterDefinition builds a definition against the service's function
// registry and registers the result.
func (s *WorkflowService) RegisterDefinition(ctx context.Context, wc *validation.WorkflowConfig) (graphrepo.Entry, error) {
	wf, err := definition.Build(wc, s.functions)
	if err != nil {
		return graphrepo.Entry{}, err
	}
	return s.Register(ctx, wf.Graph, wf.MaxSteps)
}

// LoadDir registers every definition under dir and returns their names.
func (s *WorkflowService) LoadDir(ctx context.Context, dir string) ([]string, error) {
	defs, err := definition.LoadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(defs))
	for _, wc := range defs {
		if _, err := s.RegisterDefinition(ctx, wc); err != nil {
			return names, err
		}
		names = append(names, wc.Name)
	}
	return names, nil
}

// Workflows lists registered workflows by name.
func (s *WorkflowService) Workflows(ctx context.Context) ([]graphrepo.Entry, error) {
	return s.graphs.List(ctx)
}

// Workflow returns one registered workflow.
func (s *WorkflowService) Workflow(ctx context.Context, name string) (graphrepo.Entry, error) {
	return s.graphs.Get(ctx, name)
}

// Unregister removes a workflow. Its recorded runs are kept.
func (s *WorkflowService) Unregister(ctx context.Context, name string) error {
	if err := s.graphs.Delete(ctx, name); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.bounds, name)
	s.mu.Unlock()
	return nil
}

// Invoke runs a registered workflow and records the run. The response is
// returned together with the run error when the run fails.
func (s *WorkflowService) Invoke(ctx context.Context, req *dto.ExecutionRequest) (*dto.ExecutionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	input, err := req.Values()
	if err != nil {
		return nil, err
	}
	entry, err := s.graphs.Get(ctx, req.Workflow)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := ctxlog.FromContext(ctx).With("workflow", req.Workflow, "run_id", runID)

	runCtx, cancel := s.runContext(ctx, req.Config.Timeout)
	defer cancel()
	s.track(runID, req.Workflow, cancel)
	defer s.untrack(runID)

	cfg := pregel.Config{
		MaxSteps: s.maxSteps(req),
		CacheTTL: s.config.CacheTTL,
		Logger:   log,
		RunID:    runID,
	}
	if !req.Config.NoCache {
		cfg.Cache = s.config.Cache
	}
	if len(s.config.Handlers) > 0 {
		streamer := pregel.NewStreamer(s.config.Handlers...)
		streamer.Start()
		defer streamer.Stop()
		cfg.Streamer = streamer
	}

	exec, err := pregel.NewExecutor(entry.Graph, cfg)
	if err != nil {
		return nil, err
	}

	started := s.now().UTC()
	res, runErr := exec.Invoke(runCtx, input)
	finished := s.now().UTC()

	record := &history.Record{
		ID:             runID,
		Workflow:       req.Workflow,
		Input:          input,
		Output:         res.Output,
		CompletedNodes: res.CompletedNodes,
		Steps:          res.Steps,
		BoundExceeded:  res.BoundExceeded,
		Status:         history.StatusSucceeded,
		StartedAt:      started,
		FinishedAt:     finished,
	}
	if runErr != nil {
		record.Status = history.StatusFailed
		record.Error = runErr.Error()
	}

	// The run outcome wins over a storage failure.
	if err := s.history.Save(ctx, record); err != nil {
		log.Error("Failed to record run", "error", err)
	}
	return dto.FromRecord(record), runErr
}

// Run returns a recorded run.
func (s *WorkflowService) Run(ctx context.Context, id string) (*dto.ExecutionResponse, error) {
	r, err := s.history.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.FromRecord(r), nil
}

// Runs lists recorded runs, newest first.
func (s *WorkflowService) Runs(ctx context.Context, filter history.Filter) ([]*dto.ExecutionResponse, error) {
	records, err := s.history.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ExecutionResponse, len(records))
	for i, r := range records {
		out[i] = dto.FromRecord(r)
	}
	return out, nil
}

// DeleteRun removes a recorded run.
func (s *WorkflowService) DeleteRun(ctx context.Context, id string) error {
	return s.history.Delete(ctx, id)
}

// Cancel stops an in-flight run. The run is still recorded, as failed.
func (s *WorkflowService) Cancel(runID string) error {
	s.mu.RLock()
	run, ok := s.active[runID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	run.cancel()
	return nil
}

// Active lists in-flight runs, oldest first.
func (s *WorkflowService) Active() []ActiveRun {
	s.mu.RLock()
	out := make([]ActiveRun, 0, len(s.active))
	for id, r := range s.active {
		out = append(out, ActiveRun{RunID: id, Workflow: r.workflow, StartedAt: r.startedAt})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}

// maxSteps resolves the bound: request, then definition, then service default.
func (s *WorkflowService) maxSteps(req *dto.ExecutionRequest) int {
	if req.Config.MaxSteps != nil {
		return *req.Config.MaxSteps
	}
	s.mu.RLock()
	bound := s.bounds[req.Workflow]
	s.mu.RUnlock()
	if bound != nil {
		return *bound
	}
	return s.config.MaxSteps
}

func (s *WorkflowService) runContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (s *WorkflowService) track(runID, workflow string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.active[runID] = activeRun{workflow: workflow, startedAt: s.now(), cancel: cancel}
	s.mu.Unlock()
}

func (s *WorkflowService) untrack(runID string) {
	s.mu.Lock()
	delete(s.active, runID)
	s.mu.Unlock()
}

