package graph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/flowgraph/workflow/internal/core/channel"
)

// CompiledGraph is an immutable, validated snapshot of a StateGraph.
// It may be shared by any number of concurrent runs.
type CompiledGraph struct {
	name        string
	nodes       map[string]NodeSpec
	branches    map[string]BranchSpec
	edges       []Edge
	order       []string
	succ        map[string][]string
	pred        map[string][]string
	reachable   map[string]bool
	channels    map[string]channel.Channel
	entryPoint  string
	finishPoint string
}

// Topology is a comparable, func-free description of a compiled graph.
type Topology struct {
	Name     string   `json:"name"`
	Entry    string   `json:"entry"`
	Finish   string   `json:"finish"`
	Nodes    []string `json:"nodes"`
	Branches []string `json:"branches"`
	Edges    []Edge   `json:"edges"`
	Channels []string `json:"channels"`
}

func newCompiledGraph(g *StateGraph) *CompiledGraph {
	cg := &CompiledGraph{
		name:        g.typeName,
		nodes:       make(map[string]NodeSpec, len(g.nodes)),
		branches:    make(map[string]BranchSpec, len(g.branches)),
		edges:       slices.Clone(g.edges),
		succ:        make(map[string][]string, len(g.nodes)),
		pred:        make(map[string][]string, len(g.nodes)),
		channels:    make(map[string]channel.Channel, len(g.channels)),
		entryPoint:  g.entryPoint,
		finishPoint: g.finishPoint,
	}
	for name, spec := range g.nodes {
		cg.nodes[name] = spec
	}
	for name, spec := range g.branches {
		cg.branches[name] = spec
	}
	for name, ch := range g.channels {
		cg.channels[name] = ch.Clone()
	}
	cg.order = sortedKeys(cg.nodes)

	for _, e := range cg.edges {
		cg.succ[e.From] = append(cg.succ[e.From], e.To)
		cg.pred[e.To] = append(cg.pred[e.To], e.From)
	}
	cg.reachable = cg.walk(cg.entryPoint)
	return cg
}

// walk is a breadth-first search over successors.
func (cg *CompiledGraph) walk(from string) map[string]bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, s := range cg.succ[n] {
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
	return seen
}

// checkBranchSuccessors ensures every node is gated by at most one branch,
// whether the branch was registered or only fans out.
func (cg *CompiledGraph) checkBranchSuccessors() error {
	for _, n := range cg.order {
		var gates []string
		for _, p := range cg.pred[n] {
			if cg.Routes(p) {
				gates = append(gates, p)
			}
		}
		if len(gates) > 1 {
			return compileErr(AmbiguousBranch, n, fmt.Sprintf("gated by branches %v", gates))
		}
	}
	return nil
}

// Name returns the workflow type name.
func (cg *CompiledGraph) Name() string { return cg.name }

// EntryPoint returns the source node.
func (cg *CompiledGraph) EntryPoint() string { return cg.entryPoint }

// FinishPoint returns the node whose output becomes final_result.
func (cg *CompiledGraph) FinishPoint() string { return cg.finishPoint }

// Nodes returns every node name, sorted.
func (cg *CompiledGraph) Nodes() []string { return slices.Clone(cg.order) }

// Node looks up a node spec. Branch nodes are returned in their node form.
func (cg *CompiledGraph) Node(name string) (NodeSpec, bool) {
	spec, ok := cg.nodes[name]
	return spec, ok
}

// Branch looks up the branch registered under name.
func (cg *CompiledGraph) Branch(name string) (BranchSpec, bool) {
	spec, ok := cg.branches[name]
	return spec, ok
}

// Edges returns the static edges in insertion order.
func (cg *CompiledGraph) Edges() []Edge { return slices.Clone(cg.edges) }

// Predecessors returns the sources of n's incoming edges, in edge order.
func (cg *CompiledGraph) Predecessors(n string) []string { return slices.Clone(cg.pred[n]) }

// Successors returns the targets of n's outgoing edges, in edge order.
func (cg *CompiledGraph) Successors(n string) []string { return slices.Clone(cg.succ[n]) }

// IsBranch reports whether n fans out to more than one successor.
func (cg *CompiledGraph) IsBranch(n string) bool { return len(cg.succ[n]) > 1 }

// IsGated reports whether n was registered with a routing function.
func (cg *CompiledGraph) IsGated(n string) bool {
	_, ok := cg.branches[n]
	return ok
}

// Routes reports whether n's output is a routing decision for its
// successors: n fans out or was registered as a branch.
func (cg *CompiledGraph) Routes(n string) bool { return cg.IsBranch(n) || cg.IsGated(n) }

// GatingBranch returns the routing predecessor of n. Compile guarantees there
// is at most one.
func (cg *CompiledGraph) GatingBranch(n string) (string, bool) {
	for _, p := range cg.pred[n] {
		if cg.Routes(p) {
			return p, true
		}
	}
	return "", false
}

// HasSuccessor reports whether the edge from -> to exists.
func (cg *CompiledGraph) HasSuccessor(from, to string) bool {
	return slices.Contains(cg.succ[from], to)
}

// Reachable reports whether n can be reached from the entry point.
func (cg *CompiledGraph) Reachable(n string) bool { return cg.reachable[n] }

// ChannelTemplate returns fresh clones of every declared channel.
func (cg *CompiledGraph) ChannelTemplate() map[string]channel.Channel {
	out := make(map[string]channel.Channel, len(cg.channels))
	for name, ch := range cg.channels {
		out[name] = ch.Clone()
	}
	return out
}

// Describe returns the func-free shape of the graph.
func (cg *CompiledGraph) Describe() Topology {
	return Topology{
		Name:     cg.name,
		Entry:    cg.entryPoint,
		Finish:   cg.finishPoint,
		Nodes:    cg.Nodes(),
		Branches: sortedKeys(cg.branches),
		Edges:    cg.Edges(),
		Channels: sortedKeys(cg.channels),
	}
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
