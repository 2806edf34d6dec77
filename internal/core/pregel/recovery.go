package pregel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
	imetrics "github.com/flowgraph/workflow/internal/infrastructure/metrics"
)

// ErrorRecoveryHandler runs a node body under its retry policy and per-attempt timeout.
type ErrorRecoveryHandler struct {
	policy  graph.RetryPolicy
	timeout time.Duration
	logger  *slog.Logger
	onRetry func(attempt int, err error)
}

func NewErrorRecoveryHandler(spec graph.NodeSpec, logger *slog.Logger) *ErrorRecoveryHandler {
	return &ErrorRecoveryHandler{
		policy:  spec.EffectiveRetry(),
		timeout: time.Duration(spec.Config.TimeoutMs) * time.Millisecond,
		logger:  logger,
	}
}

// Execute calls fn until it succeeds, the budget runs out or ctx is done.
// The returned count is the number of attempts made.
func (h *ErrorRecoveryHandler) Execute(ctx context.Context, fn graph.NodeFunc, input value.Value, nc graph.NodeContext) (value.Value, int, error) {
	maxAttempts := 1
	if h.policy.Enabled() {
		maxAttempts += h.policy.MaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		nc.Attempt = attempt
		out, err := h.attempt(ctx, fn, input, nc)
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == maxAttempts {
			return value.Null(), attempt, lastErr
		}

		delay := h.policy.Delay(attempt)
		imetrics.IncNodeRetries()
		h.logger.Warn("retrying node", "node", nc.NodeName, "attempt", attempt, "delay", delay, "error", err)
		if h.onRetry != nil {
			h.onRetry(attempt, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return value.Null(), attempt, lastErr
		}
	}
	return value.Null(), maxAttempts, lastErr
}

func (h *ErrorRecoveryHandler) attempt(ctx context.Context, fn graph.NodeFunc, input value.Value, nc graph.NodeContext) (out value.Value, err error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = value.Null(), fmt.Errorf("%w: %v", ErrNodePanic, r)
		}
	}()
	return fn(ctx, input, nc)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nodeError classifies a final failure.
func (h *ErrorRecoveryHandler) nodeError(node string, step, attempts int, err error) *NodeError {
	kind := BodyError
	if h.policy.Enabled() {
		kind = RetriesExhausted
	}
	return &NodeError{Kind: kind, Node: node, Step: step, Attempts: attempts, Err: err}
}
