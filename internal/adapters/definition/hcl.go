package definition

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/flowgraph/workflow/pkg/validation"
)

// hclFile is the top-level structure of a workflow file for decoding.
type hclFile struct {
	Workflow hclWorkflow   `hcl:"workflow,block"`
	Nodes    []*hclNode    `hcl:"node,block"`
	Branches []*hclBranch  `hcl:"branch,block"`
	Edges    []*hclEdge    `hcl:"edge,block"`
	Channels []*hclChannel `hcl:"channel,block"`
}

type hclWorkflow struct {
	Name        string  `hcl:"name,label"`
	Description *string `hcl:"description,optional"`
	Entry       string  `hcl:"entry"`
	Finish      string  `hcl:"finish"`
	MaxSteps    *int    `hcl:"max_steps,optional"`
}

type hclNode struct {
	Name         string    `hcl:"name,label"`
	Function     string    `hcl:"function"`
	Config       cty.Value `hcl:"config,optional"`
	InputChannel *string   `hcl:"input_channel,optional"`
	TimeoutMs    *int      `hcl:"timeout_ms,optional"`
	MaxRetries   *int      `hcl:"max_retries,optional"`
	Tags         []string  `hcl:"tags,optional"`
	Retry        *hclRetry `hcl:"retry,block"`
	Cache        *hclCache `hcl:"cache,block"`
}

type hclBranch struct {
	Name         string            `hcl:"name,label"`
	Function     string            `hcl:"function"`
	Config       cty.Value         `hcl:"config,optional"`
	Ends         map[string]string `hcl:"ends"`
	InputChannel *string           `hcl:"input_channel,optional"`
	TimeoutMs    *int              `hcl:"timeout_ms,optional"`
	Retry        *hclRetry         `hcl:"retry,block"`
}

type hclEdge struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

type hclChannel struct {
	Name    string    `hcl:"name,label"`
	Policy  *string   `hcl:"policy,optional"`
	Initial cty.Value `hcl:"initial,optional"`
}

type hclRetry struct {
	Kind       string   `hcl:"kind"`
	DelayMs    *int     `hcl:"delay_ms,optional"`
	MaxDelayMs *int     `hcl:"max_delay_ms,optional"`
	Multiplier *float64 `hcl:"multiplier,optional"`
	MaxRetries int      `hcl:"max_retries"`
}

type hclCache struct {
	Kind       string  `hcl:"kind"`
	TTLSeconds *int    `hcl:"ttl_seconds,optional"`
	Key        *string `hcl:"key,optional"`
}

// parseHCL decodes one HCL workflow file into its document form.
func parseHCL(data []byte, filename string) (*validation.WorkflowConfig, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return parsed.toConfig()
}

func (f *hclFile) toConfig() (*validation.WorkflowConfig, error) {
	wc := &validation.WorkflowConfig{
		Name:        f.Workflow.Name,
		Description: deref(f.Workflow.Description),
		Entry:       f.Workflow.Entry,
		Finish:      f.Workflow.Finish,
		MaxSteps:    f.Workflow.MaxSteps,
	}

	for _, n := range f.Nodes {
		cfg, err := ctyToNative(n.Config)
		if err != nil {
			return nil, fmt.Errorf("node %q config: %w", n.Name, err)
		}
		wc.Nodes = append(wc.Nodes, validation.NodeConfig{
			Name:         n.Name,
			Function:     n.Function,
			Config:       asMap(cfg),
			Retry:        n.Retry.toConfig(),
			Cache:        n.Cache.toConfig(),
			TimeoutMs:    deref(n.TimeoutMs),
			MaxRetries:   deref(n.MaxRetries),
			Tags:         n.Tags,
			InputChannel: deref(n.InputChannel),
		})
	}

	for _, b := range f.Branches {
		cfg, err := ctyToNative(b.Config)
		if err != nil {
			return nil, fmt.Errorf("branch %q config: %w", b.Name, err)
		}
		wc.Branches = append(wc.Branches, validation.BranchConfig{
			Name:         b.Name,
			Function:     b.Function,
			Config:       asMap(cfg),
			Ends:         b.Ends,
			Retry:        b.Retry.toConfig(),
			TimeoutMs:    deref(b.TimeoutMs),
			InputChannel: deref(b.InputChannel),
		})
	}

	for _, e := range f.Edges {
		wc.Edges = append(wc.Edges, validation.EdgeConfig{From: e.From, To: e.To})
	}

	for _, c := range f.Channels {
		initial, err := ctyToNative(c.Initial)
		if err != nil {
			return nil, fmt.Errorf("channel %q initial: %w", c.Name, err)
		}
		wc.Channels = append(wc.Channels, validation.ChannelConfig{
			Name:    c.Name,
			Policy:  deref(c.Policy),
			Initial: initial,
		})
	}
	return wc, nil
}

func (r *hclRetry) toConfig() *validation.RetryConfig {
	if r == nil {
		return nil
	}
	return &validation.RetryConfig{
		Kind:       r.Kind,
		DelayMs:    deref(r.DelayMs),
		MaxDelayMs: deref(r.MaxDelayMs),
		Multiplier: deref(r.Multiplier),
		MaxRetries: r.MaxRetries,
	}
}

func (c *hclCache) toConfig() *validation.CacheConfig {
	if c == nil {
		return nil
	}
	return &validation.CacheConfig{Kind: c.Kind, TTLSeconds: deref(c.TTLSeconds), Key: deref(c.Key)}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func asMap(x interface{}) map[string]interface{} {
	m, _ := x.(map[string]interface{})
	return m
}

// ctyToNative converts a cty.Value into plain Go data accepted by
// value.FromNative. Null and unknown values become nil.
func ctyToNative(v cty.Value) (interface{}, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]interface{}, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]interface{}, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}
