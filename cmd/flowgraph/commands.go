package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/flowgraph/workflow/internal/adapters/definition"
	"github.com/flowgraph/workflow/internal/adapters/functions"
	"github.com/flowgraph/workflow/internal/adapters/repository"
	graphrepo "github.com/flowgraph/workflow/internal/adapters/repository/graph"
	"github.com/flowgraph/workflow/internal/app/dto"
	"github.com/flowgraph/workflow/internal/app/usecases"
	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/internal/core/pregel"
	"github.com/flowgraph/workflow/internal/infrastructure/ctxlog"
)

// inputFlag collects repeated -input key=value pairs. Values are parsed as
// JSON when possible and kept as strings otherwise.
type inputFlag map[string]interface{}

func (f inputFlag) String() string { return fmt.Sprint(map[string]interface{}(f)) }

func (f inputFlag) Set(kv string) error {
	key, raw, ok := strings.Cut(kv, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", kv)
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		v = raw
	}
	f[key] = v
	return nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parse maps flag errors onto exit codes. The bool is true after -h.
func parse(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	return false, nil
}

// definitionPath takes -f or the first positional argument.
func definitionPath(fs *flag.FlagSet, file string) (string, error) {
	if file == "" && fs.NArg() > 0 {
		file = fs.Arg(0)
	}
	if file == "" {
		return "", &ExitError{Code: 2, Message: "a workflow file is required (-f FILE)"}
	}
	return file, nil
}

func validateCmd(_ context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("validate", stderr)
	file := fs.String("f", "", "Workflow definition file (.hcl, .yaml, .json)")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	path, err := definitionPath(fs, *file)
	if err != nil {
		return err
	}

	wc, err := definition.LoadFile(path)
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	wf, err := definition.Build(wc, functions.Builtins())
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}

	topo := wf.Graph.Describe()
	fmt.Fprintf(stdout, "workflow %q is valid: %d nodes, %d branches, %d edges\n",
		topo.Name, len(topo.Nodes), len(topo.Branches), len(topo.Edges))
	if wc.HasCycle() {
		fmt.Fprintln(stdout, "note: the graph contains cycles; runs are bounded by max_steps")
	}
	return nil
}

func runCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("run", stderr)
	file := fs.String("f", "", "Workflow definition file (.hcl, .yaml, .json)")
	input := inputFlag{}
	fs.Var(input, "input", "Input channel seed key=value (repeatable)")
	maxSteps := fs.Int("max-steps", -1, "Super-step bound; -1 uses the definition or 100")
	timeout := fs.Duration("timeout", 0, "Abort the run after this long")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "text", "Log format: text or json")
	historySpec := fs.String("history", "memory", "Run history: memory, sqlite:PATH, postgres[:URL]")
	historyKey := fs.String("history-key", "", "Hex AES key for stored run payloads")
	cache := fs.Bool("cache", true, "Cache results of nodes that declare a cache policy")
	events := fs.Bool("events", false, "Log every execution event at debug level")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	path, err := definitionPath(fs, *file)
	if err != nil {
		return err
	}
	if *logFormat != "text" && *logFormat != "json" {
		return &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logger := ctxlog.New(*logLevel, *logFormat, stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	store, closeStore, err := openHistory(ctx, *historySpec, *historyKey)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	defer func() { _ = closeStore() }()

	cfg := usecases.ServiceConfig{CacheTTL: 5 * time.Minute}
	if *cache {
		cfg.Cache = pregel.NewMemoryCache()
	}
	if *events {
		cfg.Handlers = append(cfg.Handlers, &pregel.LogStreamHandler{Logger: logger})
	}
	svc, err := usecases.NewWorkflowService(graphrepo.NewInMemoryGraphRepository(), store, functions.Builtins(), cfg)
	if err != nil {
		return err
	}

	wc, err := definition.LoadFile(path)
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	if _, err := svc.RegisterDefinition(ctx, wc); err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}

	req := &dto.ExecutionRequest{
		Workflow: wc.Name,
		Input:    input,
		Config:   dto.ExecutionConfig{Timeout: *timeout},
	}
	if *maxSteps >= 0 {
		req.Config.MaxSteps = maxSteps
	}

	resp, runErr := svc.Invoke(ctx, req)
	if resp != nil {
		if err := writeJSON(stdout, resp); err != nil {
			return err
		}
	}
	if runErr != nil {
		return &ExitError{Code: 1, Message: runErr.Error()}
	}
	return nil
}

func runsCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("runs", stderr)
	historySpec := fs.String("history", "", "Run history: sqlite:PATH or postgres[:URL]")
	historyKey := fs.String("history-key", "", "Hex AES key for stored run payloads")
	id := fs.String("id", "", "Show a single run")
	workflow := fs.String("workflow", "", "Only runs of this workflow")
	status := fs.String("status", "", "Only runs with this status: succeeded or failed")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	offset := fs.Int("offset", 0, "Skip this many runs")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if *historySpec == "" {
		return &ExitError{Code: 2, Message: "-history is required"}
	}

	store, closeStore, err := openHistory(ctx, *historySpec, *historyKey)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	defer func() { _ = closeStore() }()

	if *id != "" {
		r, err := store.Load(ctx, *id)
		if err != nil {
			return &ExitError{Code: 1, Message: err.Error()}
		}
		return writeJSON(stdout, dto.FromRecord(r))
	}

	filter := history.Filter{Workflow: *workflow, Status: history.Status(*status), Limit: *limit, Offset: *offset}
	if err := filter.Validate(); err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	records, err := store.List(ctx, filter)
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	out := make([]*dto.ExecutionResponse, len(records))
	for i, r := range records {
		out[i] = dto.FromRecord(r)
	}
	return writeJSON(stdout, out)
}

func functionsCmd(stdout io.Writer) error {
	reg := functions.Builtins()
	fmt.Fprintln(stdout, "node functions:")
	for _, n := range reg.NodeNames() {
		fmt.Fprintf(stdout, "  %s\n", n)
	}
	fmt.Fprintln(stdout, "branch functions:")
	for _, n := range reg.BranchNames() {
		fmt.Fprintf(stdout, "  %s\n", n)
	}
	return nil
}

func openHistory(ctx context.Context, spec, key string) (history.Store, func() error, error) {
	opts, err := repository.ParseSpec(spec, os.Getenv("DATABASE_URL"))
	if err != nil {
		return nil, nil, err
	}
	if key != "" {
		if opts.EncryptKey, err = hex.DecodeString(key); err != nil {
			return nil, nil, fmt.Errorf("invalid history key: %w", err)
		}
	}
	return repository.Open(ctx, opts)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
