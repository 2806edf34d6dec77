// Package graph provides node definitions
package graph

import (
	"context"
	"time"

	"github.com/flowgraph/workflow/internal/core/value"
)

// NodeFunc is the uniform body signature for every node.
// Bodies should observe ctx for cooperative cancellation.
type NodeFunc func(ctx context.Context, input value.Value, nc NodeContext) (value.Value, error)

// ChannelWriter lets a node body publish to declared channels besides its own output.
// Writes are buffered and become visible after the current super-step.
type ChannelWriter interface {
	Write(channel string, v value.Value) error
}

// NodeContext is handed to each invocation of a node body.
// PRINCIPLES:
// - KISS: plain struct, passed by value
// - Carries identity and step, never the shared state
type NodeContext struct {
	Step     int
	NodeName string
	RunID    string
	TaskID   string
	Attempt  int
	Config   NodeConfig
	Writer   ChannelWriter
}

// RetryKind selects the retry strategy.
type RetryKind string

const (
	RetryNone               RetryKind = ""
	RetryFixedDelay         RetryKind = "fixed_delay"
	RetryExponentialBackoff RetryKind = "exponential_backoff"
)

// RetryPolicy describes how a failing body is retried. MaxRetries counts
// additional attempts after the first one.
type RetryPolicy struct {
	Kind       RetryKind `json:"kind,omitempty"`
	DelayMs    int       `json:"delay_ms,omitempty"`
	MaxDelayMs int       `json:"max_delay_ms,omitempty"`
	Multiplier float64   `json:"multiplier,omitempty"`
	MaxRetries int       `json:"max_retries,omitempty"`
}

// NoRetry returns the zero policy.
func NoRetry() RetryPolicy { return RetryPolicy{} }

// FixedDelay sleeps delayMs between attempts, up to maxRetries extra attempts.
func FixedDelay(delayMs, maxRetries int) RetryPolicy {
	return RetryPolicy{Kind: RetryFixedDelay, DelayMs: delayMs, MaxRetries: maxRetries}
}

// ExponentialBackoff doubles (or multiplies) the delay after every failed attempt.
func ExponentialBackoff(initialMs, maxMs int, multiplier float64, maxRetries int) RetryPolicy {
	return RetryPolicy{Kind: RetryExponentialBackoff, DelayMs: initialMs, MaxDelayMs: maxMs, Multiplier: multiplier, MaxRetries: maxRetries}
}

// Enabled reports whether any retry is configured.
func (p RetryPolicy) Enabled() bool { return p.Kind != RetryNone && p.MaxRetries > 0 }

// Delay returns the pause before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := time.Duration(p.DelayMs) * time.Millisecond
	switch p.Kind {
	case RetryFixedDelay:
		return base
	case RetryExponentialBackoff:
		mult := p.Multiplier
		if mult <= 1 {
			mult = 2
		}
		d := float64(base)
		for i := 1; i < attempt; i++ {
			d *= mult
		}
		if p.MaxDelayMs > 0 && d > float64(time.Duration(p.MaxDelayMs)*time.Millisecond) {
			return time.Duration(p.MaxDelayMs) * time.Millisecond
		}
		return time.Duration(d)
	default:
		return 0
	}
}

// CacheKind selects how cached results are keyed and expired.
type CacheKind string

const (
	CacheInputHash CacheKind = "input_hash"
	CacheTimeBased CacheKind = "time_based"
)

// CachePolicy is an optional directive for result caches. Key is an opaque
// string preserved for external collaborators.
type CachePolicy struct {
	Kind       CacheKind `json:"kind"`
	TTLSeconds int       `json:"ttl_seconds,omitempty"`
	Key        string    `json:"key,omitempty"`
}

// NodeParamTypes are hints about what a body expects from its context.
type NodeParamTypes struct {
	NeedsConfig  bool `json:"needs_config,omitempty"`
	NeedsWriter  bool `json:"needs_writer,omitempty"`
	NeedsStore   bool `json:"needs_store,omitempty"`
	NeedsRuntime bool `json:"needs_runtime,omitempty"`
}

// NodeConfig carries static per-node settings.
type NodeConfig struct {
	MaxRetries int                    `json:"max_retries,omitempty"`
	TimeoutMs  int                    `json:"timeout_ms,omitempty"`
	Tags       []string               `json:"tags,omitempty"`
	Metadata   map[string]value.Value `json:"metadata,omitempty"`
}

// NodeSpec is a node body plus its static policy.
type NodeSpec struct {
	Name   string
	Func   NodeFunc
	Retry  RetryPolicy
	Cache  *CachePolicy
	Params NodeParamTypes
	Config NodeConfig
	// InputChannel, when set, is the only channel the node reads its input from.
	InputChannel string
}

// NewNode builds a NodeSpec around fn.
func NewNode(fn NodeFunc) NodeSpec {
	return NodeSpec{Func: fn}
}

// WithRetry returns a copy using policy p.
func (s NodeSpec) WithRetry(p RetryPolicy) NodeSpec {
	s.Retry = p
	return s
}

// WithCache returns a copy with a cache directive.
func (s NodeSpec) WithCache(c CachePolicy) NodeSpec {
	s.Cache = &c
	return s
}

// WithInputChannel returns a copy that reads from channel.
func (s NodeSpec) WithInputChannel(channel string) NodeSpec {
	s.InputChannel = channel
	return s
}

// WithConfig returns a copy with cfg.
func (s NodeSpec) WithConfig(cfg NodeConfig) NodeSpec {
	s.Config = cfg
	return s
}

// EffectiveRetry resolves the policy used at run time. A NodeConfig.MaxRetries
// without an explicit policy retries immediately.
func (s NodeSpec) EffectiveRetry() RetryPolicy {
	if s.Retry.Kind != RetryNone {
		return s.Retry
	}
	if s.Config.MaxRetries > 0 {
		return FixedDelay(0, s.Config.MaxRetries)
	}
	return NoRetry()
}

// Validate ensures node integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - KISS: Simple validation, <10 lines
func (s NodeSpec) Validate() error {
	if s.Name == "" {
		return ErrInvalidNodeName
	}
	if s.Func == nil {
		return ErrNilNodeFunc
	}
	if s.Retry.MaxRetries < 0 || s.Retry.DelayMs < 0 || s.Config.TimeoutMs < 0 {
		return ErrInvalidPolicy
	}
	return nil
}
