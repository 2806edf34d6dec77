package validation

import (
	"fmt"
	"sort"
	"strings"
)

const outputSuffix = "_output"

// Validate implements the cross-field rules for WorkflowConfig: unique names,
// known endpoints and no channel shadowing a node output.
func (wc *WorkflowConfig) Validate() error {
	var errs ValidationErrors
	add := func(field string, v interface{}, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Value: v, Message: fmt.Sprintf(format, args...)})
	}

	known := make(map[string]bool, len(wc.Nodes)+len(wc.Branches))
	for i, n := range wc.Nodes {
		if known[n.Name] {
			add(fmt.Sprintf("nodes[%d].name", i), n.Name, "duplicate node name")
		}
		known[n.Name] = true
	}
	for i, b := range wc.Branches {
		if known[b.Name] {
			add(fmt.Sprintf("branches[%d].name", i), b.Name, "duplicate node name")
		}
		known[b.Name] = true
	}

	if !known[wc.Entry] {
		add("entry", wc.Entry, "entry point is not a defined node")
	}
	if !known[wc.Finish] {
		add("finish", wc.Finish, "finish point is not a defined node")
	}

	for i, e := range wc.Edges {
		if !known[e.From] {
			add(fmt.Sprintf("edges[%d].from", i), e.From, "source node does not exist")
		}
		if !known[e.To] {
			add(fmt.Sprintf("edges[%d].to", i), e.To, "target node does not exist")
		}
		if e.From == e.To {
			add(fmt.Sprintf("edges[%d]", i), e.From, "self-loops are not allowed")
		}
	}

	for i, b := range wc.Branches {
		for _, label := range sortedLabels(b.Ends) {
			target := b.Ends[label]
			if !known[target] {
				add(fmt.Sprintf("branches[%d].ends.%s", i, label), target, "branch target does not exist")
			}
			if target == b.Name {
				add(fmt.Sprintf("branches[%d].ends.%s", i, label), target, "self-loops are not allowed")
			}
		}
	}

	seen := make(map[string]bool, len(wc.Channels))
	for i, c := range wc.Channels {
		if seen[c.Name] {
			add(fmt.Sprintf("channels[%d].name", i), c.Name, "duplicate channel name")
		}
		seen[c.Name] = true
		if strings.HasSuffix(c.Name, outputSuffix) {
			add(fmt.Sprintf("channels[%d].name", i), c.Name, "names ending in %s are reserved for node outputs", outputSuffix)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// HasCycle reports whether the static and conditional edges form a directed
// cycle. Cycles are legal; a node runs at most once per invocation.
func (wc *WorkflowConfig) HasCycle() bool {
	const (
		white = 0 // unvisited
		gray  = 1 // visiting
		black = 2 // visited
	)
	adj := make(map[string][]string)
	for _, e := range wc.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	for _, b := range wc.Branches {
		for _, label := range sortedLabels(b.Ends) {
			adj[b.Name] = append(adj[b.Name], b.Ends[label])
		}
	}

	color := make(map[string]int)
	var dfs func(string) bool
	dfs = func(u string) bool {
		color[u] = gray
		for _, v := range adj[u] {
			if color[v] == gray {
				return true // back-edge
			}
			if color[v] == white && dfs(v) {
				return true
			}
		}
		color[u] = black
		return false
	}

	roots := make([]string, 0, len(adj))
	for u := range adj {
		roots = append(roots, u)
	}
	sort.Strings(roots)
	for _, u := range roots {
		if color[u] == white && dfs(u) {
			return true
		}
	}
	return false
}

func sortedLabels(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
