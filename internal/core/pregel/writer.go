package pregel

import (
	"sync"

	"github.com/flowgraph/workflow/internal/core/channel"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
)

type pendingWrite struct {
	channel string
	value   value.Value
}

// taskWriter buffers channel writes made by a node body until the Update phase.
type taskWriter struct {
	node   string
	state  *WorkflowState
	mu     sync.Mutex
	writes []pendingWrite
}

var _ graph.ChannelWriter = (*taskWriter)(nil)

func newTaskWriter(node string, s *WorkflowState) *taskWriter {
	return &taskWriter{node: node, state: s}
}

// Write queues v for name. Output channels belong to the executor.
func (w *taskWriter) Write(name string, v value.Value) error {
	if channel.IsOutputName(name) {
		return &StateError{Kind: ReadOnlyChannel, Channel: name, Node: w.node}
	}
	if _, ok := w.state.Channel(name); !ok {
		return &StateError{Kind: ChannelNotFound, Channel: name, Node: w.node}
	}
	w.mu.Lock()
	w.writes = append(w.writes, pendingWrite{channel: name, value: v})
	w.mu.Unlock()
	return nil
}

func (w *taskWriter) pending() []pendingWrite {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
