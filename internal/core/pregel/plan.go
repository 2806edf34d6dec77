package pregel

import (
	"slices"

	"github.com/flowgraph/workflow/internal/core/graph"
)

// Plan returns the nodes eligible to run in the next super-step, sorted by name.
// PRINCIPLES:
// - Pure function of the compiled graph and the state
// - A node runs at most once per run
// - Any node with more than one successor is a branch and gates them
// - Every other node is an AND-join over predecessors that completed or can
//   no longer run
func Plan(cg *graph.CompiledGraph, s *WorkflowState) []string {
	dead := skipped(cg, s)
	var frontier []string
	for _, n := range cg.Nodes() {
		if s.IsCompleted(n) || dead[n] {
			continue
		}
		if eligible(cg, s, dead, n) {
			frontier = append(frontier, n)
		}
	}
	return frontier
}

func eligible(cg *graph.CompiledGraph, s *WorkflowState, dead map[string]bool, n string) bool {
	preds := cg.Predecessors(n)
	if len(preds) == 0 {
		return true
	}
	if gate, ok := cg.GatingBranch(n); ok {
		targets, decided := s.Decision(gate)
		return decided && slices.Contains(targets, n)
	}
	anyDone := false
	for _, p := range preds {
		switch {
		case s.IsCompleted(p):
			anyDone = true
		case dead[p]:
		default:
			return false
		}
	}
	return anyDone
}

// skipped computes the nodes that can no longer run in this run: successors a
// decided branch did not select, successors of a skipped branch, and nodes
// whose predecessors are all skipped.
func skipped(cg *graph.CompiledGraph, s *WorkflowState) map[string]bool {
	dead := make(map[string]bool)
	nodes := cg.Nodes()
	for _, n := range nodes {
		if s.IsCompleted(n) {
			continue
		}
		if gate, ok := cg.GatingBranch(n); ok {
			if targets, decided := s.Decision(gate); decided && !slices.Contains(targets, n) {
				dead[n] = true
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for _, n := range nodes {
			if dead[n] || s.IsCompleted(n) {
				continue
			}
			if gate, ok := cg.GatingBranch(n); ok && dead[gate] {
				dead[n] = true
				changed = true
				continue
			}
			preds := cg.Predecessors(n)
			if len(preds) == 0 {
				continue
			}
			all := true
			for _, p := range preds {
				if !dead[p] {
					all = false
					break
				}
			}
			if all {
				dead[n] = true
				changed = true
			}
		}
	}
	return dead
}
