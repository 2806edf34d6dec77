package functions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
)

var builtinNodes = map[string]NodeFactory{
	"identity":  identity,
	"constant":  constant,
	"uppercase": caseMapper(strings.ToUpper),
	"lowercase": caseMapper(strings.ToLower),
	"append":    appendSuffix,
	"concat":    concat,
	"length_gt": lengthGT,
	"not_empty": notEmpty,
	"summary":   summary,
	"fail":      fail,
}

var builtinBranches = map[string]BranchFactory{
	"bool_switch":  boolSwitch,
	"value_switch": valueSwitch,
	"fan_out":      fanOut,
}

// text renders v without quoting strings.
func text(v value.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	return v.String()
}

func identity(map[string]value.Value) (graph.NodeFunc, error) {
	return func(_ context.Context, in value.Value, _ graph.NodeContext) (value.Value, error) {
		return in, nil
	}, nil
}

// constant ignores its input and returns config.value.
func constant(cfg map[string]value.Value) (graph.NodeFunc, error) {
	out, ok := cfg["value"]
	if !ok {
		return nil, fmt.Errorf("%w: \"value\" is required", ErrInvalidConfig)
	}
	return func(context.Context, value.Value, graph.NodeContext) (value.Value, error) {
		return out, nil
	}, nil
}

func caseMapper(mapper func(string) string) NodeFactory {
	return func(map[string]value.Value) (graph.NodeFunc, error) {
		return func(_ context.Context, in value.Value, _ graph.NodeContext) (value.Value, error) {
			s, ok := in.AsString()
			if !ok {
				return value.Null(), fmt.Errorf("%w: want string, got %s", ErrInputType, in.Kind())
			}
			return value.String(mapper(s)), nil
		}, nil
	}
}

// appendSuffix renders the input as text and appends config.suffix.
func appendSuffix(cfg map[string]value.Value) (graph.NodeFunc, error) {
	suffix, err := configString(cfg, "suffix", "")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, in value.Value, _ graph.NodeContext) (value.Value, error) {
		if in.IsNull() {
			return value.String(suffix), nil
		}
		return value.String(text(in) + suffix), nil
	}, nil
}

// concat joins the items of an array input with config.separator.
func concat(cfg map[string]value.Value) (graph.NodeFunc, error) {
	sep, err := configString(cfg, "separator", "")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, in value.Value, _ graph.NodeContext) (value.Value, error) {
		items, ok := in.AsArray()
		if !ok {
			if in.IsNull() {
				return value.String(""), nil
			}
			return value.String(text(in)), nil
		}
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = text(item)
		}
		return value.String(strings.Join(parts, sep)), nil
	}, nil
}

// lengthGT reports whether the input's length exceeds config.min.
func lengthGT(cfg map[string]value.Value) (graph.NodeFunc, error) {
	limit, err := configNumber(cfg, "min", 0)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, in value.Value, _ graph.NodeContext) (value.Value, error) {
		if n, ok := in.AsNumber(); ok {
			return value.Bool(n > limit), nil
		}
		return value.Bool(float64(in.Len()) > limit), nil
	}, nil
}

func notEmpty(map[string]value.Value) (graph.NodeFunc, error) {
	return func(_ context.Context, in value.Value, _ graph.NodeContext) (value.Value, error) {
		return value.Bool(truthy(in)), nil
	}, nil
}

func truthy(v value.Value) bool {
	switch v.Kind() {
	case value.KindNull:
		return false
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindNumber:
		return true
	default:
		return v.Len() > 0
	}
}

// summary describes its input. With config.channel set it also writes a
// one-line digest to that channel.
func summary(cfg map[string]value.Value) (graph.NodeFunc, error) {
	ch, err := configString(cfg, "channel", "")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, in value.Value, nc graph.NodeContext) (value.Value, error) {
		out := value.Object(map[string]value.Value{
			"node":  value.String(nc.NodeName),
			"step":  value.Number(float64(nc.Step)),
			"kind":  value.String(in.Kind().String()),
			"value": in,
		})
		if ch != "" && nc.Writer != nil {
			line := fmt.Sprintf("%s@%d: %s", nc.NodeName, nc.Step, text(in))
			if err := nc.Writer.Write(ch, value.String(line)); err != nil {
				return value.Null(), err
			}
		}
		return out, nil
	}, nil
}

// fail returns config.message as an error. With config.times = n it fails
// only the first n attempts and then passes the input through.
func fail(cfg map[string]value.Value) (graph.NodeFunc, error) {
	msg, err := configString(cfg, "message", "forced failure")
	if err != nil {
		return nil, err
	}
	times, err := configNumber(cfg, "times", -1)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, in value.Value, nc graph.NodeContext) (value.Value, error) {
		if times >= 0 && float64(nc.Attempt) > times {
			return in, nil
		}
		return value.Null(), errors.New(msg)
	}, nil
}

// boolSwitch routes on the truthiness of its input to config.true_label or
// config.false_label ("true" and "false" by default).
func boolSwitch(cfg map[string]value.Value) (graph.BranchFunc, error) {
	onTrue, err := configString(cfg, "true_label", "true")
	if err != nil {
		return nil, err
	}
	onFalse, err := configString(cfg, "false_label", "false")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, in value.Value, _ graph.NodeContext) (graph.BranchResult, error) {
		if truthy(in) {
			return graph.Single(onTrue), nil
		}
		return graph.Single(onFalse), nil
	}, nil
}

// valueSwitch routes on the text of the input, or of input[config.field] for
// objects. An empty key falls back to config.default.
func valueSwitch(cfg map[string]value.Value) (graph.BranchFunc, error) {
	field, err := configString(cfg, "field", "")
	if err != nil {
		return nil, err
	}
	def, err := configString(cfg, "default", "")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, in value.Value, _ graph.NodeContext) (graph.BranchResult, error) {
		v := in
		if field != "" {
			v = in.Get(field)
		}
		var key string
		switch v.Kind() {
		case value.KindNull:
		case value.KindNumber:
			n, _ := v.AsNumber()
			key = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			key = text(v)
		}
		if key == "" {
			key = def
		}
		if key == "" {
			return graph.BranchResult{}, fmt.Errorf("%w: no routing key in %s", ErrInputType, in)
		}
		return graph.Single(key), nil
	}, nil
}

// fanOut selects every label in config.labels.
func fanOut(cfg map[string]value.Value) (graph.BranchFunc, error) {
	labels, err := configStrings(cfg, "labels")
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: \"labels\" must list at least one label", ErrInvalidConfig)
	}
	return func(context.Context, value.Value, graph.NodeContext) (graph.BranchResult, error) {
		return graph.Multi(labels...), nil
	}, nil
}
