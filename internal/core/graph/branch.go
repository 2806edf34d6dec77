package graph

import (
	"context"
	"sort"

	"github.com/flowgraph/workflow/internal/core/value"
)

// BranchResult is a routing decision: one label or a set of labels.
type BranchResult struct {
	Labels []string
	Multi  bool
}

// Single selects exactly one label.
func Single(label string) BranchResult { return BranchResult{Labels: []string{label}} }

// Multi selects every label in the set.
func Multi(labels ...string) BranchResult {
	cp := make([]string, len(labels))
	copy(cp, labels)
	return BranchResult{Labels: cp, Multi: true}
}

// BranchFunc is the body of a branch node.
type BranchFunc func(ctx context.Context, input value.Value, nc NodeContext) (BranchResult, error)

// BranchSpec is a node whose result is interpreted as a routing decision.
// PRINCIPLES:
// - KISS: Ends maps decision labels to node names; absent labels map to themselves
// - SRP: Only responsible for decision mapping, not edge bookkeeping
type BranchSpec struct {
	Func         BranchFunc
	Ends         map[string]string
	Retry        RetryPolicy
	Config       NodeConfig
	InputChannel string
}

// NewBranch builds a BranchSpec around fn with an optional label mapping.
func NewBranch(fn BranchFunc, ends map[string]string) BranchSpec {
	return BranchSpec{Func: fn, Ends: ends}
}

// Resolve maps decision labels through Ends. The result is deduplicated and
// keeps the order the labels were returned in.
func (b BranchSpec) Resolve(r BranchResult) []string {
	seen := make(map[string]bool, len(r.Labels))
	out := make([]string, 0, len(r.Labels))
	for _, label := range r.Labels {
		target := label
		if mapped, ok := b.Ends[label]; ok {
			target = mapped
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}

// Targets lists the distinct node names reachable through Ends, sorted.
func (b BranchSpec) Targets() []string {
	seen := make(map[string]bool, len(b.Ends))
	var out []string
	for _, target := range b.Ends {
		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	sort.Strings(out)
	return out
}

// nodeSpec adapts the branch into a NodeSpec whose output is the decision:
// a String for Single and an Array of Strings for Multi.
func (b BranchSpec) nodeSpec(name string) NodeSpec {
	return NodeSpec{
		Name:         name,
		Retry:        b.Retry,
		Config:       b.Config,
		InputChannel: b.InputChannel,
		Func: func(ctx context.Context, input value.Value, nc NodeContext) (value.Value, error) {
			res, err := b.Func(ctx, input, nc)
			if err != nil {
				return value.Null(), err
			}
			return DecisionValue(b.Resolve(res), res.Multi), nil
		},
	}
}

// DecisionValue encodes resolved targets the way a branch publishes them.
func DecisionValue(targets []string, multi bool) value.Value {
	if !multi && len(targets) == 1 {
		return value.String(targets[0])
	}
	return value.Strings(targets...)
}

// DecodeDecision reads targets back from a published decision. ok is false
// when v does not hold a decision.
func DecodeDecision(v value.Value) (targets []string, ok bool) {
	if s, isStr := v.AsString(); isStr {
		return []string{s}, true
	}
	items, isArr := v.AsArray()
	if !isArr {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, isStr := item.AsString()
		if !isStr {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
