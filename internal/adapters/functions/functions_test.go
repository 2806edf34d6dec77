package functions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
)

type captureWriter struct{ writes map[string][]value.Value }

func (w *captureWriter) Write(ch string, v value.Value) error {
	if w.writes == nil {
		w.writes = make(map[string][]value.Value)
	}
	w.writes[ch] = append(w.writes[ch], v)
	return nil
}

func runNode(t *testing.T, name string, cfg map[string]value.Value, in value.Value, nc graph.NodeContext) (value.Value, error) {
	t.Helper()
	fn, err := Builtins().Node(name, cfg)
	require.NoError(t, err)
	return fn(context.Background(), in, nc)
}

func TestBuiltins_Names(t *testing.T) {
	r := Builtins()
	assert.Equal(t, []string{"append", "concat", "constant", "fail", "identity", "length_gt", "lowercase", "not_empty", "summary", "uppercase"}, r.NodeNames())
	assert.Equal(t, []string{"bool_switch", "fan_out", "value_switch"}, r.BranchNames())
}

func TestBuiltins_Nodes(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		cfg  map[string]value.Value
		in   value.Value
		want value.Value
	}{
		{name: "identity", fn: "identity", in: value.Number(4), want: value.Number(4)},
		{name: "constant", fn: "constant", cfg: map[string]value.Value{"value": value.String("c")}, in: value.Bool(true), want: value.String("c")},
		{name: "uppercase", fn: "uppercase", in: value.String("abc"), want: value.String("ABC")},
		{name: "lowercase", fn: "lowercase", in: value.String("ABC"), want: value.String("abc")},
		{name: "append to string", fn: "append", cfg: map[string]value.Value{"suffix": value.String("-b")}, in: value.String("a"), want: value.String("a-b")},
		{name: "append to null", fn: "append", cfg: map[string]value.Value{"suffix": value.String("x")}, in: value.Null(), want: value.String("x")},
		{name: "append to number", fn: "append", cfg: map[string]value.Value{"suffix": value.String("!")}, in: value.Number(2), want: value.String("2!")},
		{name: "concat array", fn: "concat", cfg: map[string]value.Value{"separator": value.String(",")}, in: value.Array(value.String("a"), value.Number(1)), want: value.String("a,1")},
		{name: "concat scalar", fn: "concat", in: value.String("solo"), want: value.String("solo")},
		{name: "length_gt string", fn: "length_gt", cfg: map[string]value.Value{"min": value.Number(2)}, in: value.String("abc"), want: value.Bool(true)},
		{name: "length_gt short", fn: "length_gt", cfg: map[string]value.Value{"min": value.Number(5)}, in: value.String("abc"), want: value.Bool(false)},
		{name: "length_gt number", fn: "length_gt", cfg: map[string]value.Value{"min": value.Number(5)}, in: value.Number(7), want: value.Bool(true)},
		{name: "not_empty string", fn: "not_empty", in: value.String("x"), want: value.Bool(true)},
		{name: "not_empty null", fn: "not_empty", in: value.Null(), want: value.Bool(false)},
		{name: "not_empty empty array", fn: "not_empty", in: value.Array(), want: value.Bool(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runNode(t, tt.fn, tt.cfg, tt.in, graph.NodeContext{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltins_CaseRejectsNonString(t *testing.T) {
	_, err := runNode(t, "uppercase", nil, value.Number(1), graph.NodeContext{})
	assert.ErrorIs(t, err, ErrInputType)
}

func TestBuiltins_Summary(t *testing.T) {
	w := &captureWriter{}
	nc := graph.NodeContext{NodeName: "Summary", Step: 3, Writer: w}
	got, err := runNode(t, "summary", map[string]value.Value{"channel": value.String("log")}, value.String("done"), nc)
	require.NoError(t, err)

	assert.Equal(t, value.String("Summary"), got.Get("node"))
	assert.Equal(t, value.Number(3), got.Get("step"))
	assert.Equal(t, value.String("string"), got.Get("kind"))
	assert.Equal(t, value.String("done"), got.Get("value"))
	assert.Equal(t, []value.Value{value.String("Summary@3: done")}, w.writes["log"])
}

func TestBuiltins_Fail(t *testing.T) {
	fn, err := Builtins().Node("fail", map[string]value.Value{"message": value.String("nope"), "times": value.Number(2)})
	require.NoError(t, err)

	for attempt := 1; attempt <= 2; attempt++ {
		_, err := fn(context.Background(), value.String("in"), graph.NodeContext{Attempt: attempt})
		assert.EqualError(t, err, "nope")
	}
	out, err := fn(context.Background(), value.String("in"), graph.NodeContext{Attempt: 3})
	require.NoError(t, err)
	assert.Equal(t, value.String("in"), out)

	always, err := Builtins().Node("fail", nil)
	require.NoError(t, err)
	_, err = always(context.Background(), value.Null(), graph.NodeContext{Attempt: 50})
	assert.EqualError(t, err, "forced failure")
}

func TestBuiltins_Branches(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		cfg  map[string]value.Value
		in   value.Value
		want graph.BranchResult
	}{
		{name: "bool true", fn: "bool_switch", in: value.Bool(true), want: graph.Single("true")},
		{name: "bool false", fn: "bool_switch", in: value.Bool(false), want: graph.Single("false")},
		{name: "bool custom labels", fn: "bool_switch", cfg: map[string]value.Value{"true_label": value.String("success"), "false_label": value.String("error")}, in: value.String("x"), want: graph.Single("success")},
		{name: "bool null is false", fn: "bool_switch", in: value.Null(), want: graph.Single("false")},
		{name: "value string", fn: "value_switch", in: value.String("a"), want: graph.Single("a")},
		{name: "value number", fn: "value_switch", in: value.Number(2), want: graph.Single("2")},
		{name: "value field", fn: "value_switch", cfg: map[string]value.Value{"field": value.String("route")}, in: value.Object(map[string]value.Value{"route": value.String("b")}), want: graph.Single("b")},
		{name: "value default", fn: "value_switch", cfg: map[string]value.Value{"default": value.String("other")}, in: value.Null(), want: graph.Single("other")},
		{name: "fan out", fn: "fan_out", cfg: map[string]value.Value{"labels": value.Strings("x", "y")}, in: value.Null(), want: graph.Multi("x", "y")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := Builtins().Branch(tt.fn, tt.cfg)
			require.NoError(t, err)
			got, err := fn(context.Background(), tt.in, graph.NodeContext{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltins_ValueSwitchWithoutKey(t *testing.T) {
	fn, err := Builtins().Branch("value_switch", nil)
	require.NoError(t, err)
	_, err = fn(context.Background(), value.Null(), graph.NodeContext{})
	assert.ErrorIs(t, err, ErrInputType)
}

func TestRegistry_Errors(t *testing.T) {
	r := Builtins()

	_, err := r.Node("missing", nil)
	assert.ErrorIs(t, err, ErrUnknownFunction)
	_, err = r.Branch("missing", nil)
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = r.Node("constant", nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = r.Node("append", map[string]value.Value{"suffix": value.Number(1)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = r.Branch("fan_out", nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = r.Branch("fan_out", map[string]value.Value{"labels": value.Array(value.Number(1))})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.ErrorIs(t, r.RegisterNode("identity", identity), ErrDuplicateFunction)
	assert.ErrorIs(t, r.RegisterBranch("fan_out", fanOut), ErrDuplicateFunction)
}

func TestRegistry_Custom(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.NodeNames())

	require.NoError(t, r.RegisterNode("double", func(map[string]value.Value) (graph.NodeFunc, error) {
		return func(_ context.Context, in value.Value, _ graph.NodeContext) (value.Value, error) {
			n, _ := in.AsNumber()
			return value.Number(2 * n), nil
		}, nil
	}))
	fn, err := r.Node("double", nil)
	require.NoError(t, err)
	out, err := fn(context.Background(), value.Number(21), graph.NodeContext{})
	require.NoError(t, err)
	assert.Equal(t, value.Number(42), out)
}
