// Package metrics exposes expvar-published counters used by the workflow
// runtime (channels, executor, node cache). It is consumed by flowgraph-server
// for the /metrics endpoint.
package metrics
