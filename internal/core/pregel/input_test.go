package pregel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow/internal/core/channel"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
)

// gated builds src -> pred -> gate -> {sink, other}.
func gated(t *testing.T, sink string, explicit string) *graph.CompiledGraph {
	t.Helper()
	g := graph.New("gated")
	require.NoError(t, g.AddNode("src", graph.NewNode(passThrough)))
	require.NoError(t, g.AddNode("pred", graph.NewNode(passThrough)))
	require.NoError(t, g.AddConditionalEdges("gate", graph.NewBranch(
		func(context.Context, value.Value, graph.NodeContext) (graph.BranchResult, error) {
			return graph.Single(sink), nil
		}, map[string]string{sink: sink, "other": "other"})))
	spec := graph.NewNode(passThrough)
	if explicit != "" {
		spec = spec.WithInputChannel(explicit)
	}
	require.NoError(t, g.AddNode(sink, spec))
	require.NoError(t, g.AddNode("other", graph.NewNode(passThrough)))
	require.NoError(t, g.AddEdge("src", "pred"))
	require.NoError(t, g.AddEdge("pred", "gate"))
	g.SetEntryPoint("src")
	g.SetFinishPoint(sink)
	return mustCompile(t, g)
}

func TestResolveInput_NoPredecessors(t *testing.T) {
	cg := mustCompile(t, chain(t, "only"))

	tests := []struct {
		name  string
		input map[string]value.Value
		want  value.Value
	}{
		{name: "no channels", input: nil, want: value.Null()},
		{name: "first non-null by name", input: map[string]value.Value{"b": value.String("b"), "a": value.Null(), "c": value.String("c")}, want: value.String("b")},
		{name: "output channels ignored", input: map[string]value.Value{"a_output": value.String("x"), "z": value.Number(1)}, want: value.Number(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(cg, tt.input)
			assert.Equal(t, tt.want, ResolveInput(cg, s, "only"))
		})
	}
}

func TestResolveInput_ThroughBranch(t *testing.T) {
	tests := []struct {
		name     string
		sink     string
		explicit string
		predOut  value.Value
		want     value.Value
	}{
		{name: "bool skipped for success sink", sink: "on_success", predOut: value.Bool(true), want: value.String("raw")},
		{name: "bool skipped for error sink", sink: "HandleError", predOut: value.Bool(false), want: value.String("raw")},
		{name: "bool skipped for result sink", sink: "Result", predOut: value.Bool(true), want: value.String("raw")},
		{name: "bool kept for other names", sink: "approve", predOut: value.Bool(true), want: value.Bool(true)},
		{name: "non-bool passes through", sink: "on_success", predOut: value.String("p"), want: value.String("p")},
		{name: "explicit channel wins", sink: "on_success", explicit: "note", predOut: value.Bool(true), want: value.String("from note")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cg := gated(t, tt.sink, tt.explicit)
			s := NewState(cg, map[string]value.Value{"note": value.String("from note")})
			publish(s, "src", value.String("raw"))
			publish(s, "pred", tt.predOut)
			publish(s, "gate", value.String(tt.sink))

			assert.Equal(t, tt.want, ResolveInput(cg, s, tt.sink))
		})
	}
}

func TestResolveInput_BoolWhenNoSourceBehind(t *testing.T) {
	cg := gated(t, "on_success", "")
	s := NewState(cg, nil)
	publish(s, "src", value.Bool(false))
	publish(s, "pred", value.Bool(true))
	publish(s, "gate", value.String("on_success"))

	assert.Equal(t, value.Bool(true), ResolveInput(cg, s, "on_success"))
}

func TestResolveInput_Default(t *testing.T) {
	g := graph.New("join")
	for _, n := range []string{"a", "b", "join"} {
		require.NoError(t, g.AddNode(n, graph.NewNode(passThrough)))
	}
	require.NoError(t, g.AddEdge("a", "join"))
	require.NoError(t, g.AddEdge("b", "join"))
	g.SetEntryPoint("a")
	g.SetFinishPoint("join")
	cg := mustCompile(t, g)

	s := NewState(cg, nil)
	assert.Equal(t, value.Null(), ResolveInput(cg, s, "join"), "first predecessor, unwritten")

	publish(s, "b", value.String("b"))
	assert.Equal(t, value.String("b"), ResolveInput(cg, s, "join"), "completed predecessor preferred")

	publish(s, "a", value.String("a"))
	assert.Equal(t, value.String("a"), ResolveInput(cg, s, "join"), "edge order among completed")
}

func TestResolveInput_BranchFeederWithDataBeforeCompletion(t *testing.T) {
	g := graph.New("feeders")
	for _, n := range []string{"f1", "f2", "s1", "s2"} {
		require.NoError(t, g.AddNode(n, graph.NewNode(passThrough)))
	}
	require.NoError(t, g.AddConditionalEdges("gate", graph.NewBranch(
		func(context.Context, value.Value, graph.NodeContext) (graph.BranchResult, error) {
			return graph.Single("s1"), nil
		}, map[string]string{"s1": "s1", "s2": "s2"})))
	require.NoError(t, g.AddEdge("f1", "gate"))
	require.NoError(t, g.AddEdge("f2", "gate"))
	g.SetEntryPoint("f1")
	g.SetFinishPoint("s1")
	cg := mustCompile(t, g)

	s := NewState(cg, nil)
	assert.Equal(t, value.Null(), ResolveInput(cg, s, "s1"))

	s.write(channel.OutputName("f2"), value.String("late"))
	assert.Equal(t, value.String("late"), ResolveInput(cg, s, "s1"), "any feeder with data, not only the first")
}
