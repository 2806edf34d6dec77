package metrics

import (
	"expvar"
)

// Channel metrics keyed by channel policy.
var (
	channelWrites = expvar.NewMap("flowgraph_channel_writes_total")
)

// Executor metrics.
var (
	runsTotal         = expvar.NewMap("flowgraph_runs_total")
	superstepsTotal   = new(expvar.Int)
	nodeExecsTotal    = new(expvar.Int)
	nodeRetriesTotal  = new(expvar.Int)
	nodeFailuresTotal = new(expvar.Int)
	branchDecisions   = new(expvar.Int)
	boundExceeded     = new(expvar.Int)
	cacheHits         = new(expvar.Int)
	cacheMisses       = new(expvar.Int)
)

func init() {
	expvar.Publish("flowgraph_supersteps_total", superstepsTotal)
	expvar.Publish("flowgraph_node_executions_total", nodeExecsTotal)
	expvar.Publish("flowgraph_node_retries_total", nodeRetriesTotal)
	expvar.Publish("flowgraph_node_failures_total", nodeFailuresTotal)
	expvar.Publish("flowgraph_branch_decisions_total", branchDecisions)
	expvar.Publish("flowgraph_bound_exceeded_total", boundExceeded)
	expvar.Publish("flowgraph_cache_hits_total", cacheHits)
	expvar.Publish("flowgraph_cache_misses_total", cacheMisses)
}

// Channel helpers
func ChannelWrite(policy string) { channelWrites.Add(policy, 1) }

// Executor helpers
func IncRuns(status string) { runsTotal.Add(status, 1) }
func IncSupersteps() { superstepsTotal.Add(1) }
func IncNodeExecs(n int64) { nodeExecsTotal.Add(n) }
func IncNodeRetries() { nodeRetriesTotal.Add(1) }
func IncNodeFailures() { nodeFailuresTotal.Add(1) }
func IncBranchDecisions() { branchDecisions.Add(1) }
func IncBoundExceeded() { boundExceeded.Add(1) }
func IncCacheHits() { cacheHits.Add(1) }
func IncCacheMisses() { cacheMisses.Add(1) }

// Snapshot returns the current scalar counters.
func Snapshot() map[string]int64 {
	return map[string]int64{
		"supersteps":       superstepsTotal.Value(),
		"node_executions":  nodeExecsTotal.Value(),
		"node_retries":     nodeRetriesTotal.Value(),
		"node_failures":    nodeFailuresTotal.Value(),
		"branch_decisions": branchDecisions.Value(),
		"bound_exceeded":   boundExceeded.Value(),
		"cache_hits":       cacheHits.Value(),
		"cache_misses":     cacheMisses.Value(),
	}
}
