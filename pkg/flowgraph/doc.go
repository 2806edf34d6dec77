// Package flowgraph is the public façade over the workflow engine. It
// re-exports the graph builder types and exposes a Runtime that registers
// compiled graphs or declarative definitions and invokes them against an
// in-memory run history.
package flowgraph
