// Package graph provides the workflow graph builder and its compiled,
// immutable snapshot. It has no knowledge of execution.
package graph

import (
	"fmt"

	"github.com/flowgraph/workflow/internal/core/channel"
)

// StateGraph is the mutable builder for a workflow graph.
// PRINCIPLES:
// - KISS: Simple maps keyed by node name, edges in insertion order
// - SRP: Only responsible for graph structure, not execution
// - Structural invariants are checked once, in Compile
type StateGraph struct {
	typeName    string
	nodes       map[string]NodeSpec
	branches    map[string]BranchSpec
	edges       []Edge
	edgeSet     map[Edge]struct{}
	channels    map[string]channel.Channel
	entryPoint  string
	finishPoint string
}

// New creates an empty graph. typeName identifies the workflow in logs and run history.
func New(typeName string) *StateGraph {
	return &StateGraph{
		typeName: typeName,
		nodes:    make(map[string]NodeSpec),
		branches: make(map[string]BranchSpec),
		edgeSet:  make(map[Edge]struct{}),
		channels: make(map[string]channel.Channel),
	}
}

// Name returns the workflow type name.
func (g *StateGraph) Name() string { return g.typeName }

// AddNode registers a node body under name.
// PRINCIPLES:
// - KISS: Direct and simple implementation
// - SRP: Only adds node, doesn't validate graph
func (g *StateGraph) AddNode(name string, spec NodeSpec) error {
	spec.Name = name
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("add node %q: %w", name, err)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("add node %q: %w", name, ErrDuplicateNode)
	}
	g.nodes[name] = spec
	return nil
}

// AddBranch registers a branch node. Branch nodes appear both as nodes and as branches.
func (g *StateGraph) AddBranch(name string, spec BranchSpec) error {
	if name == "" {
		return fmt.Errorf("add branch: %w", ErrInvalidNodeName)
	}
	if spec.Func == nil {
		return fmt.Errorf("add branch %q: %w", name, ErrNilNodeFunc)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("add branch %q: %w", name, ErrDuplicateNode)
	}
	g.nodes[name] = spec.nodeSpec(name)
	g.branches[name] = spec
	return nil
}

// AddEdge adds a static edge. Duplicate edges are ignored; endpoints and
// self-loops are checked by Compile.
func (g *StateGraph) AddEdge(from, to string) error {
	e := Edge{From: from, To: to}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("add edge %s -> %s: %w", from, to, err)
	}
	if _, dup := g.edgeSet[e]; dup {
		return nil
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
	return nil
}

// AddConditionalEdges registers from as a branch and wires an edge to every
// target named in spec.Ends.
func (g *StateGraph) AddConditionalEdges(from string, spec BranchSpec) error {
	if err := g.AddBranch(from, spec); err != nil {
		return err
	}
	for _, target := range spec.Targets() {
		if err := g.AddEdge(from, target); err != nil {
			return err
		}
	}
	return nil
}

// SetEntryPoint names the source node.
func (g *StateGraph) SetEntryPoint(name string) { g.entryPoint = name }

// SetFinishPoint names the sink whose output becomes final_result.
func (g *StateGraph) SetFinishPoint(name string) { g.finishPoint = name }

// AddChannel declares a channel in the template used to seed every run.
// Output channels may be declared for observation but must keep LastValue semantics.
func (g *StateGraph) AddChannel(name string, ch channel.Channel) error {
	if name == "" || ch == nil {
		return fmt.Errorf("add channel %q: %w", name, channel.ErrInvalidChannel)
	}
	if channel.IsOutputName(name) && ch.Policy() != channel.PolicyLastValue {
		return fmt.Errorf("add channel %q: output channels must use %s: %w", name, channel.PolicyLastValue, channel.ErrInvalidChannel)
	}
	g.channels[name] = ch
	return nil
}

// Compile validates the graph and returns an immutable snapshot.
func (g *StateGraph) Compile() (*CompiledGraph, error) {
	if err := g.checkEndpoints(); err != nil {
		return nil, err
	}
	if err := g.checkEdges(); err != nil {
		return nil, err
	}

	cg := newCompiledGraph(g)
	if err := cg.checkBranchSuccessors(); err != nil {
		return nil, err
	}
	if !cg.reachable[cg.finishPoint] {
		return nil, compileErr(UnreachableFinish, cg.finishPoint, fmt.Sprintf("no path from %q", cg.entryPoint))
	}
	return cg, nil
}

func (g *StateGraph) checkEndpoints() error {
	if g.entryPoint == "" {
		return &CompilationError{Kind: MissingNode, Detail: "entry point not set", Cause: ErrNoEntryPoint}
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return compileErr(MissingNode, g.entryPoint, "entry point is not a defined node")
	}
	if g.finishPoint == "" {
		return &CompilationError{Kind: MissingNode, Detail: "finish point not set", Cause: ErrNoFinishPoint}
	}
	if _, ok := g.nodes[g.finishPoint]; !ok {
		return compileErr(MissingNode, g.finishPoint, "finish point is not a defined node")
	}
	return nil
}

func (g *StateGraph) checkEdges() error {
	for _, e := range g.edges {
		if e.From == e.To {
			return compileErr(SelfLoop, e.From, "edge to itself")
		}
		if _, ok := g.nodes[e.From]; !ok {
			return compileErr(DanglingEdge, e.From, fmt.Sprintf("edge %s -> %s", e.From, e.To))
		}
		if _, ok := g.nodes[e.To]; !ok {
			return compileErr(DanglingEdge, e.To, fmt.Sprintf("edge %s -> %s", e.From, e.To))
		}
	}
	for _, name := range sortedKeys(g.branches) {
		for _, target := range g.branches[name].Targets() {
			if _, ok := g.nodes[target]; !ok {
				return compileErr(MissingNode, target, fmt.Sprintf("named by ends of branch %q", name))
			}
		}
	}
	return nil
}
