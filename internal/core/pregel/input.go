package pregel

import (
	"strings"

	"github.com/flowgraph/workflow/internal/core/channel"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
)

// sinkMarkers identify result sinks that skip a Bool produced in front of a branch.
var sinkMarkers = []string{"success", "error", "result"}

// ResolveInput picks the value handed to node n.
//
// An explicit InputChannel always wins. Otherwise:
//   - a node without predecessors reads the first non-null seed channel;
//   - a successor of a branch reads what fed the branch, skipping a Bool
//     predicate once when the node name marks it as a result sink;
//   - any other node reads a completed predecessor's output, falling back to
//     the first predecessor's output.
//
// Deprecated heuristic: the sink-name Bool skip exists for graphs that route on a
// boolean predicate. New graphs should set InputChannel instead.
func ResolveInput(cg *graph.CompiledGraph, s *WorkflowState, n string) value.Value {
	spec, _ := cg.Node(n)
	if spec.InputChannel != "" {
		return s.Read(spec.InputChannel)
	}

	preds := cg.Predecessors(n)
	if len(preds) == 0 {
		return firstSeed(s)
	}
	if gate, ok := cg.GatingBranch(n); ok {
		if v, found := throughBranch(cg, s, gate, n); found {
			return v
		}
	}
	for _, p := range preds {
		if s.IsCompleted(p) {
			return s.Read(channel.OutputName(p))
		}
	}
	return s.Read(channel.OutputName(preds[0]))
}

// firstSeed returns the first non-null non-output channel in name order.
func firstSeed(s *WorkflowState) value.Value {
	for _, name := range s.ChannelNames() {
		if channel.IsOutputName(name) {
			continue
		}
		if v := s.Read(name); !v.IsNull() {
			return v
		}
	}
	return value.Null()
}

func throughBranch(cg *graph.CompiledGraph, s *WorkflowState, branch, n string) (value.Value, bool) {
	feeders := cg.Predecessors(branch)
	if len(feeders) == 0 {
		return firstSeed(s), true
	}
	for _, f := range feeders {
		if !s.IsCompleted(f) {
			continue
		}
		v := s.Read(channel.OutputName(f))
		if v.Kind() == value.KindBool && isResultSink(n) {
			if src, ok := nonBoolSource(cg, s, f); ok {
				return src, true
			}
		}
		return v, true
	}
	for _, f := range feeders {
		if v := s.Read(channel.OutputName(f)); !v.IsNull() {
			return v, true
		}
	}
	return value.Null(), false
}

// nonBoolSource looks one hop behind node for a completed non-Bool output.
func nonBoolSource(cg *graph.CompiledGraph, s *WorkflowState, node string) (value.Value, bool) {
	for _, p := range cg.Predecessors(node) {
		if !s.IsCompleted(p) {
			continue
		}
		if v := s.Read(channel.OutputName(p)); v.Kind() != value.KindBool {
			return v, true
		}
	}
	return value.Null(), false
}

func isResultSink(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range sinkMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
