package definition

import (
	"fmt"

	"github.com/flowgraph/workflow/internal/adapters/functions"
	"github.com/flowgraph/workflow/internal/core/channel"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
	"github.com/flowgraph/workflow/pkg/validation"
)

// Workflow is a compiled definition.
type Workflow struct {
	Graph *graph.CompiledGraph
	// MaxSteps is the definition's own bound, nil when it does not set one.
	MaxSteps *int
	Config   *validation.WorkflowConfig
}

// Build validates wc, resolves its functions in reg and compiles the graph.
func Build(wc *validation.WorkflowConfig, reg *functions.Registry) (*Workflow, error) {
	if wc == nil {
		return nil, fmt.Errorf("build workflow: %w", graph.ErrInvalidGraphName)
	}
	if err := validation.ValidateStruct(wc); err != nil {
		return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
	}

	g := graph.New(wc.Name)
	for _, n := range wc.Nodes {
		spec, err := nodeSpec(n, reg)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
		}
		if err := g.AddNode(n.Name, spec); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
		}
	}

	for _, b := range wc.Branches {
		spec, err := branchSpec(b, reg)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
		}
		if err := g.AddConditionalEdges(b.Name, spec); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
		}
	}

	for _, e := range wc.Edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
		}
	}

	for _, c := range wc.Channels {
		initial, err := value.FromNative(c.Initial)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: channel %q initial: %w", wc.Name, c.Name, err)
		}
		policy := channel.Policy(c.Policy)
		if policy == "" {
			policy = channel.PolicyLastValue
		}
		ch, err := channel.New(policy, initial)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: channel %q: %w", wc.Name, c.Name, err)
		}
		if err := g.AddChannel(c.Name, ch); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
		}
	}

	g.SetEntryPoint(wc.Entry)
	g.SetFinishPoint(wc.Finish)
	cg, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
	}
	return &Workflow{Graph: cg, MaxSteps: wc.MaxSteps, Config: wc}, nil
}

func nodeSpec(n validation.NodeConfig, reg *functions.Registry) (graph.NodeSpec, error) {
	cfg, err := value.FromMap(n.Config)
	if err != nil {
		return graph.NodeSpec{}, fmt.Errorf("node %q config: %w", n.Name, err)
	}
	fn, err := reg.Node(n.Function, cfg)
	if err != nil {
		return graph.NodeSpec{}, fmt.Errorf("node %q: %w", n.Name, err)
	}

	spec := graph.NewNode(fn).
		WithRetry(retryPolicy(n.Retry)).
		WithInputChannel(n.InputChannel).
		WithConfig(graph.NodeConfig{
			MaxRetries: n.MaxRetries,
			TimeoutMs:  n.TimeoutMs,
			Tags:       n.Tags,
			Metadata:   cfg,
		})
	if n.Cache != nil {
		spec = spec.WithCache(graph.CachePolicy{
			Kind:       graph.CacheKind(n.Cache.Kind),
			TTLSeconds: n.Cache.TTLSeconds,
			Key:        n.Cache.Key,
		})
	}
	return spec, nil
}

func branchSpec(b validation.BranchConfig, reg *functions.Registry) (graph.BranchSpec, error) {
	cfg, err := value.FromMap(b.Config)
	if err != nil {
		return graph.BranchSpec{}, fmt.Errorf("branch %q config: %w", b.Name, err)
	}
	fn, err := reg.Branch(b.Function, cfg)
	if err != nil {
		return graph.BranchSpec{}, fmt.Errorf("branch %q: %w", b.Name, err)
	}

	spec := graph.NewBranch(fn, b.Ends)
	spec.Retry = retryPolicy(b.Retry)
	spec.Config = graph.NodeConfig{TimeoutMs: b.TimeoutMs, Metadata: cfg}
	spec.InputChannel = b.InputChannel
	return spec, nil
}

func retryPolicy(r *validation.RetryConfig) graph.RetryPolicy {
	if r == nil {
		return graph.NoRetry()
	}
	return graph.RetryPolicy{
		Kind:       graph.RetryKind(r.Kind),
		DelayMs:    r.DelayMs,
		MaxDelayMs: r.MaxDelayMs,
		Multiplier: r.Multiplier,
		MaxRetries: r.MaxRetries,
	}
}
