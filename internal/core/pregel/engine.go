package pregel

// Executor drives a compiled workflow graph through synchronized super-steps.
// PRINCIPLES:
// - Plan, Execute, Update strictly in that order for every step
// - Parallel within a step, a total order between steps
// - The driver goroutine is the only writer of WorkflowState

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/workflow/internal/core/channel"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
	"github.com/flowgraph/workflow/internal/infrastructure/ctxlog"
	imetrics "github.com/flowgraph/workflow/internal/infrastructure/metrics"
)

// DefaultMaxSteps is used by callers that do not choose a bound.
const DefaultMaxSteps = 100

// Config holds executor configuration
type Config struct {
	// MaxSteps bounds the number of super-steps. Zero runs nothing.
	MaxSteps int
	// Cache stores results of nodes that declare a CachePolicy. Nil disables caching.
	Cache ResultCache
	// CacheTTL applies to cache policies without their own TTL.
	CacheTTL time.Duration
	// Streamer receives execution events. The caller starts and stops it.
	Streamer *Streamer
	// Logger overrides the logger carried by the run context.
	Logger *slog.Logger
	// RunID fixes the identifier of the next Invoke. Empty generates one.
	RunID string
}

// Result is the outcome of one run. It is returned even when the run fails.
type Result struct {
	RunID          string                 `json:"run_id"`
	Output         map[string]value.Value `json:"output"`
	CompletedNodes []string               `json:"completed_nodes"`
	Steps          int                    `json:"steps"`
	BoundExceeded  bool                   `json:"bound_exceeded"`
}

// FinalResult returns the finish point's value, if it produced one.
func (r *Result) FinalResult() (value.Value, bool) {
	v, ok := r.Output[FinalResultKey]
	return v, ok
}

type Executor struct {
	graph  *graph.CompiledGraph
	config Config
}

type taskResult struct {
	node     string
	value    value.Value
	err      error
	attempts int
	writes   []pendingWrite
}

func NewExecutor(cg *graph.CompiledGraph, config Config) (*Executor, error) {
	if cg == nil {
		return nil, ErrNilGraph
	}
	if config.MaxSteps < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxSteps, config.MaxSteps)
	}
	return &Executor{graph: cg, config: config}, nil
}

// Graph returns the compiled graph this executor runs.
func (e *Executor) Graph() *graph.CompiledGraph { return e.graph }

// Invoke seeds a fresh state with input, runs it and collects the output.
func (e *Executor) Invoke(ctx context.Context, input map[string]value.Value) (*Result, error) {
	s := NewState(e.graph, input)
	if e.config.RunID != "" {
		s.RunID = e.config.RunID
	}
	err := e.Run(ctx, s)

	res := &Result{
		RunID:          s.RunID,
		Output:         Collect(e.graph, s),
		CompletedNodes: s.CompletedNodes(),
		Steps:          s.Step,
		BoundExceeded:  s.BoundExceeded(),
	}
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	imetrics.IncRuns(status)
	return res, err
}

// Invoke runs cg once with maxSteps as the only bound.
func Invoke(ctx context.Context, cg *graph.CompiledGraph, input map[string]value.Value, maxSteps int) (map[string]value.Value, error) {
	e, err := NewExecutor(cg, Config{MaxSteps: maxSteps})
	if err != nil {
		return nil, err
	}
	res, err := e.Invoke(ctx, input)
	return res.Output, err
}

// Run advances s until no node is eligible or MaxSteps is reached.
// Reaching MaxSteps is not an error; it is reported by s.BoundExceeded.
func (e *Executor) Run(ctx context.Context, s *WorkflowState) error {
	if s == nil {
		return ErrNilState
	}
	log := e.logger(ctx).With("workflow", e.graph.Name(), "run_id", s.RunID)
	log.Info("workflow run started", "max_steps", e.config.MaxSteps)
	e.emit(StreamEvent{Type: EventRunStart, RunID: s.RunID, Step: s.Step})
	started := time.Now()

	for s.Step < e.config.MaxSteps {
		frontier := Plan(e.graph, s)
		if len(frontier) == 0 {
			break
		}
		if err := e.runStep(ctx, s, frontier, log); err != nil {
			log.Error("workflow run failed", "step", s.Step, "error", err)
			e.emit(StreamEvent{Type: EventRunEnd, RunID: s.RunID, Step: s.Step, Data: map[string]interface{}{"error": err.Error()}})
			return err
		}
	}

	if s.Step >= e.config.MaxSteps {
		if pending := Plan(e.graph, s); len(pending) > 0 {
			s.boundExceeded = true
			imetrics.IncBoundExceeded()
			log.Warn("workflow stopped at step bound", "error", ErrBoundExceeded, "pending", pending)
			e.emit(StreamEvent{Type: EventBoundExceeded, RunID: s.RunID, Step: s.Step, Data: map[string]interface{}{"pending": pending}})
		}
	}

	log.Info("workflow run finished", "steps", s.Step, "completed", len(s.completed), "duration", time.Since(started))
	e.emit(StreamEvent{Type: EventRunEnd, RunID: s.RunID, Step: s.Step, Data: map[string]interface{}{"completed": s.CompletedNodes()}})
	return nil
}

// runStep executes one super-step. Successful nodes of a failing step are
// still published before the error is returned.
func (e *Executor) runStep(ctx context.Context, s *WorkflowState, frontier []string, log *slog.Logger) error {
	step := s.Step
	imetrics.IncSupersteps()
	log.Debug("superstep started", "step", step, "frontier", frontier)
	e.emit(StreamEvent{Type: EventSuperstepStart, RunID: s.RunID, Step: step, Data: map[string]interface{}{"frontier": frontier}})

	results := e.executeSuperstep(ctx, s, frontier, log)
	err := e.update(s, results)
	s.Step++

	e.emit(StreamEvent{Type: EventSuperstepEnd, RunID: s.RunID, Step: step, Data: map[string]interface{}{"completed": len(s.completed)}})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("superstep %d cancelled: %w", step, ctxErr)
	}
	if err != nil {
		return fmt.Errorf("superstep %d failed: %w", step, err)
	}
	return nil
}

// executeSuperstep starts every frontier task concurrently and waits for all
// of them, including after cancellation.
func (e *Executor) executeSuperstep(ctx context.Context, s *WorkflowState, frontier []string, log *slog.Logger) []taskResult {
	inputs := make(map[string]value.Value, len(frontier))
	for _, n := range frontier {
		inputs[n] = ResolveInput(e.graph, s, n)
	}

	results := make(chan taskResult, len(frontier))
	for _, n := range frontier {
		go func(node string, input value.Value) {
			results <- e.executeTask(ctx, s, node, input, log)
		}(n, inputs[n])
	}

	out := make([]taskResult, 0, len(frontier))
	for range frontier {
		out = append(out, <-results)
	}
	imetrics.IncNodeExecs(int64(len(out)))
	slices.SortFunc(out, func(a, b taskResult) int { return strings.Compare(a.node, b.node) })
	return out
}

func (e *Executor) executeTask(ctx context.Context, s *WorkflowState, node string, input value.Value, log *slog.Logger) taskResult {
	spec, _ := e.graph.Node(node)
	writer := newTaskWriter(node, s)
	nc := graph.NodeContext{
		Step:     s.Step,
		NodeName: node,
		RunID:    s.RunID,
		TaskID:   uuid.NewString(),
		Config:   spec.Config,
		Writer:   writer,
	}
	nlog := log.With("node", node, "step", nc.Step, "task_id", nc.TaskID)
	e.emit(StreamEvent{Type: EventNodeStart, RunID: s.RunID, Node: node, Step: nc.Step})

	cacheKey := e.cacheKey(spec, node, input, nlog)
	if cacheKey != "" {
		if v, ok := e.config.Cache.Get(cacheKey); ok {
			imetrics.IncCacheHits()
			nlog.Debug("node served from cache")
			e.emit(StreamEvent{Type: EventCacheHit, RunID: s.RunID, Node: node, Step: nc.Step})
			return taskResult{node: node, value: v}
		}
		imetrics.IncCacheMisses()
	}

	handler := NewErrorRecoveryHandler(spec, nlog)
	handler.onRetry = func(attempt int, err error) {
		e.emit(StreamEvent{Type: EventNodeRetry, RunID: s.RunID, Node: node, Step: nc.Step, Data: map[string]interface{}{"attempt": attempt, "error": err.Error()}})
	}
	out, attempts, err := handler.Execute(ctx, spec.Func, input, nc)
	res := taskResult{node: node, value: out, attempts: attempts}
	if err != nil {
		imetrics.IncNodeFailures()
		res.err = handler.nodeError(node, nc.Step, attempts, err)
		nlog.Warn("node failed", "attempts", attempts, "error", err)
	} else {
		res.writes = writer.pending()
		if cacheKey != "" {
			e.config.Cache.Set(cacheKey, out, cacheTTL(*spec.Cache, e.config.CacheTTL))
		}
		nlog.Debug("node completed", "attempts", attempts)
	}

	data := map[string]interface{}{"attempts": attempts}
	if res.err != nil {
		data["error"] = res.err.Error()
	}
	e.emit(StreamEvent{Type: EventNodeEnd, RunID: s.RunID, Node: node, Step: nc.Step, Data: data})
	return res
}

func (e *Executor) cacheKey(spec graph.NodeSpec, node string, input value.Value, log *slog.Logger) string {
	if e.config.Cache == nil || spec.Cache == nil {
		return ""
	}
	key, err := CacheKey(e.graph.Name(), node, *spec.Cache, input)
	if err != nil {
		log.Warn("node cache disabled for input", "error", err)
		return ""
	}
	return key
}

// update publishes successful results in node-name order and returns the
// first failure, if any.
func (e *Executor) update(s *WorkflowState, results []taskResult) error {
	s.resetEphemeral()

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if e.graph.Routes(r.node) {
			targets, err := e.checkDecision(r.node, r.value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			s.decisions[r.node] = targets
			imetrics.IncBranchDecisions()
			e.emit(StreamEvent{Type: EventBranchDecision, RunID: s.RunID, Node: r.node, Step: s.Step, Data: map[string]interface{}{"targets": targets}})
		}
		for _, w := range r.writes {
			s.write(w.channel, w.value)
		}
		s.write(channel.OutputName(r.node), r.value)
		s.complete(r.node)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (e *Executor) checkDecision(branch string, v value.Value) ([]string, error) {
	targets, ok := graph.DecodeDecision(v)
	if !ok {
		return nil, &PlanError{Kind: BranchTargetNotSuccessor, Branch: branch, Target: v.String()}
	}
	for _, t := range targets {
		if !e.graph.HasSuccessor(branch, t) {
			return nil, &PlanError{Kind: BranchTargetNotSuccessor, Branch: branch, Target: t}
		}
	}
	return targets, nil
}

func (e *Executor) emit(event StreamEvent) {
	if e.config.Streamer != nil {
		e.config.Streamer.EmitEvent(event)
	}
}

func (e *Executor) logger(ctx context.Context) *slog.Logger {
	if e.config.Logger != nil {
		return e.config.Logger
	}
	return ctxlog.FromContext(ctx)
}
