package httpapi

import (
	"bytes"
	"expvar"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"
)

type metricMeta struct {
	typ, help string
	label     string // non-empty for expvar.Map metrics
}

var knownMetrics = map[string]metricMeta{
	"flowgraph_runs_total":             {typ: "counter", help: "Workflow runs by outcome", label: "status"},
	"flowgraph_channel_writes_total":   {typ: "counter", help: "Channel writes by policy", label: "policy"},
	"flowgraph_supersteps_total":       {typ: "counter", help: "Super-steps executed"},
	"flowgraph_node_executions_total":  {typ: "counter", help: "Node bodies executed"},
	"flowgraph_node_retries_total":     {typ: "counter", help: "Node attempts retried"},
	"flowgraph_node_failures_total":    {typ: "counter", help: "Nodes failed after all attempts"},
	"flowgraph_branch_decisions_total": {typ: "counter", help: "Branch decisions recorded"},
	"flowgraph_bound_exceeded_total":   {typ: "counter", help: "Runs stopped at the step bound"},
	"flowgraph_cache_hits_total":       {typ: "counter", help: "Node result cache hits"},
	"flowgraph_cache_misses_total":     {typ: "counter", help: "Node result cache misses"},
}

func (h *Handler) metrics(c fiber.Ctx) error {
	var buf bytes.Buffer
	writePrometheus(&buf)
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4; charset=utf-8")
	return c.Send(buf.Bytes())
}

// writePrometheus renders expvar-published metrics in Prometheus text
// format. Unknown integer vars are emitted as untyped gauges.
func writePrometheus(w io.Writer) {
	names := make([]string, 0, 32)
	expvar.Do(func(kv expvar.KeyValue) { names = append(names, kv.Key) })
	sort.Strings(names)

	for _, name := range names {
		v := expvar.Get(name)
		m, known := knownMetrics[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok {
				fmt.Fprintf(w, "# TYPE %s gauge\n%s %d\n", name, name, iv.Value())
			}
			continue
		}

		fmt.Fprintf(w, "# HELP %s %s\n", name, sanitizeHelp(m.help))
		fmt.Fprintf(w, "# TYPE %s %s\n", name, m.typ)
		if m.label == "" {
			fmt.Fprintf(w, "%s %s\n", name, v.String())
			continue
		}
		mp, ok := v.(*expvar.Map)
		if !ok {
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String())
		}
	}
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeLabel escapes backslash, double-quote and newline.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return strings.ReplaceAll(s, "\n", "\\n")
}
