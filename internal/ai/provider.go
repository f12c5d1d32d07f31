// Package ai provides the AI provider used by the evaluation pipeline.
package ai

import (
	"context"
	"time"

	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// InvokeResult is the outcome of a single provider call.
type InvokeResult struct {
	Result   string        `json:"result"`
	Usage    types.Usage   `json:"usage"`
	CostUSD  float64       `json:"cost_usd"`
	Duration time.Duration `json:"duration_ms"`
}

// RetryObserver is notified before each retry attempt. Retry scheduling itself
// is owned by the provider; observers exist only for progress reporting.
type RetryObserver func(attempt, maxRetries int, err error)

// TimeoutObserver is notified when a call exceeds its per-attempt deadline.
type TimeoutObserver func(elapsed, timeout time.Duration)

// InvokeOptions tunes a single provider call.
type InvokeOptions struct {
	// Operation names the call for logging ("semantic_merge", "curation", ...).
	Operation string
	// MaxTokens caps the response size. 0 uses the provider default.
	MaxTokens int
	// Timeout overrides the per-attempt deadline. 0 uses the configured default.
	Timeout time.Duration

	OnRetry   RetryObserver
	OnTimeout TimeoutObserver
}

// Provider is the AI backend consumed by the runner, deduplicator, curator and
// scorer. Implementations own retry, backoff and rate limiting internally.
type Provider interface {
	// IsAvailable reports whether the provider can accept calls (credentials
	// present, circuit not open).
	IsAvailable(ctx context.Context) bool

	// Invoke makes a single call with no retries.
	Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error)

	// InvokeWithRetry makes a call with retry and exponential backoff,
	// reporting attempts through the observers in opts. Returns the last
	// error once retries are exhausted.
	InvokeWithRetry(ctx context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error)
}
