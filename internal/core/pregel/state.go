package pregel

import (
	"slices"

	"github.com/google/uuid"

	"github.com/flowgraph/workflow/internal/core/channel"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
)

// WorkflowState is the per-run mutable state.
// PRINCIPLES:
// - Owned by the executor driver; never shared between runs
// - No locks: node bodies only see by-value inputs
type WorkflowState struct {
	RunID string
	Step  int

	channels      map[string]channel.Channel
	completed     []string
	completedSet  map[string]bool
	decisions     map[string][]string
	boundExceeded bool
}

// NewState creates a fresh state from the graph's channel template and seeds it
// with input. Keys without a declared channel get a LastValue channel.
func NewState(cg *graph.CompiledGraph, input map[string]value.Value) *WorkflowState {
	s := &WorkflowState{
		RunID:        uuid.NewString(),
		channels:     cg.ChannelTemplate(),
		completedSet: make(map[string]bool),
		decisions:    make(map[string][]string),
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s.write(k, input[k])
	}
	return s
}

// Read returns the content of a channel, or Null when it does not exist.
func (s *WorkflowState) Read(name string) value.Value {
	ch, ok := s.channels[name]
	if !ok {
		return value.Null()
	}
	return ch.Read()
}

// Channel looks up a channel by name.
func (s *WorkflowState) Channel(name string) (channel.Channel, bool) {
	ch, ok := s.channels[name]
	return ch, ok
}

// ChannelNames returns every channel name, sorted.
func (s *WorkflowState) ChannelNames() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CompletedNodes returns the completed nodes in completion order.
func (s *WorkflowState) CompletedNodes() []string { return slices.Clone(s.completed) }

// IsCompleted reports whether node ran successfully in this run.
func (s *WorkflowState) IsCompleted(node string) bool { return s.completedSet[node] }

// Decision returns the resolved targets published by a completed branch.
func (s *WorkflowState) Decision(branch string) ([]string, bool) {
	targets, ok := s.decisions[branch]
	return slices.Clone(targets), ok
}

// BoundExceeded reports whether the last run stopped at max steps with work left.
func (s *WorkflowState) BoundExceeded() bool { return s.boundExceeded }

func (s *WorkflowState) write(name string, v value.Value) {
	ch, ok := s.channels[name]
	if !ok {
		ch = channel.NewLastValue(value.Null())
		s.channels[name] = ch
	}
	ch.Write(v)
}

func (s *WorkflowState) complete(node string) {
	if s.completedSet[node] {
		return
	}
	s.completedSet[node] = true
	s.completed = append(s.completed, node)
}

func (s *WorkflowState) resetEphemeral() {
	for _, ch := range s.channels {
		if r, ok := ch.(channel.Resetter); ok {
			r.Reset()
		}
	}
}

// contentOf is what a channel contributes to the output mapping.
func contentOf(ch channel.Channel) value.Value {
	if t, ok := ch.(*channel.Topic); ok {
		if t.IsEmpty() {
			return value.Null()
		}
		return t.Values()
	}
	return ch.Read()
}

// Collect builds the output mapping: final_result from the finish point's
// output plus every other non-null channel under its own name.
func Collect(cg *graph.CompiledGraph, s *WorkflowState) map[string]value.Value {
	out := make(map[string]value.Value)
	promoted := channel.OutputName(cg.FinishPoint())
	if v := s.Read(promoted); !v.IsNull() {
		out[FinalResultKey] = v
	} else {
		promoted = ""
	}
	for name, ch := range s.channels {
		if name == promoted {
			continue
		}
		if v := contentOf(ch); !v.IsNull() {
			out[name] = v
		}
	}
	return out
}

// FinalResultKey is the output key holding the finish point's value.
const FinalResultKey = "final_result"
