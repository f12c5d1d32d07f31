package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// Model constants. Evaluator calls use the default model; the narrative and
// curation calls are short and work fine on the cheaper one.
const (
	ModelSonnet = "claude-sonnet-4-5-20250929"
	ModelHaiku  = "claude-3-5-haiku-20241022"
)

// DefaultModel returns the evaluation model, honoring CTXEVAL_MODEL.
func DefaultModel() string {
	if model := os.Getenv("CTXEVAL_MODEL"); model != "" {
		return model
	}
	return ModelSonnet
}

// modelPricing maps model IDs to USD cost per million input/output tokens.
// Unknown models fall back to Sonnet pricing.
var modelPricing = map[string][2]float64{
	ModelSonnet: {3.00, 15.00},
	ModelHaiku:  {0.80, 4.00},
}

// ClientConfig holds provider configuration.
type ClientConfig struct {
	APIKey string // falls back to ANTHROPIC_API_KEY
	Model  string // falls back to DefaultModel()

	MaxRetries         int           // retry attempts after the first call (default 3)
	InitialBackoff     time.Duration // default 1s
	MaxBackoff         time.Duration // default 30s
	Timeout            time.Duration // per-attempt deadline (default 60s)
	MaxConcurrentCalls int           // default 3, 0 = unlimited
	RequestsPerSecond  float64       // default 2, 0 = unlimited

	CircuitBreakerEnabled bool
	FailureThreshold      int
	SuccessThreshold      int
	OpenTimeout           time.Duration
}

// DefaultClientConfig returns the default provider configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxRetries:            3,
		InitialBackoff:        1 * time.Second,
		MaxBackoff:            30 * time.Second,
		Timeout:               60 * time.Second,
		MaxConcurrentCalls:    3,
		RequestsPerSecond:     2,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		OpenTimeout:           30 * time.Second,
	}
}

// Client is the Anthropic-backed Provider implementation.
type Client struct {
	client  *anthropic.Client
	model   string
	config  ClientConfig
	breaker *CircuitBreaker
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// Compile-time check that Client implements Provider.
var _ Provider = (*Client)(nil)

// NewClient creates a provider client.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel()
	}
	if cfg.MaxRetries == 0 {
		defaults := DefaultClientConfig()
		defaults.APIKey = cfg.APIKey
		defaults.Model = cfg.Model
		cfg = defaults
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var breaker *CircuitBreaker
	if cfg.CircuitBreakerEnabled {
		breaker = NewCircuitBreaker(cfg.FailureThreshold, cfg.SuccessThreshold, cfg.OpenTimeout)
	}

	var sem *semaphore.Weighted
	if cfg.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		client:  &client,
		model:   model,
		config:  cfg,
		breaker: breaker,
		sem:     sem,
		limiter: limiter,
	}, nil
}

// IsAvailable reports whether calls can currently be made.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if c.breaker != nil && c.breaker.State() == CircuitOpen {
		return false
	}
	return true
}

// Invoke makes a single provider call with no retries.
func (c *Client) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error) {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, fmt.Errorf("%s blocked: %w", opts.Operation, err)
		}
	}

	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquiring call slot for %s: %w", opts.Operation, err)
		}
		defer c.sem.Release(1)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait for %s: %w", opts.Operation, err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = c.config.Timeout
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	elapsed := time.Since(start)

	if err != nil {
		if c.breaker != nil && isRetriableError(err) {
			c.breaker.RecordFailure()
		}
		if errors.Is(err, context.DeadlineExceeded) && opts.OnTimeout != nil {
			opts.OnTimeout(elapsed, timeout)
		}
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	usage := types.Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}

	return &InvokeResult{
		Result:   text.String(),
		Usage:    usage,
		CostUSD:  estimateCost(c.model, usage),
		Duration: elapsed,
	}, nil
}

// InvokeWithRetry makes a call with exponential backoff. Observers in opts are
// invoked for reporting; non-retriable errors stop immediately.
func (c *Client) InvokeWithRetry(ctx context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error) {
	var result *InvokeResult
	attempt := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialBackoff
	bo.MaxInterval = c.config.MaxBackoff
	bo.MaxElapsedTime = 0 // bounded by MaxRetries, not wall time

	operation := func() error {
		attempt++
		res, err := c.Invoke(ctx, prompt, opts)
		if err != nil {
			if errors.Is(err, ErrCircuitOpen) || !isRetriableError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}

	notify := func(err error, next time.Duration) {
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, c.config.MaxRetries, err)
		}
		log.Printf("[AI] %s failed (attempt %d/%d), retrying in %v: %v",
			opts.Operation, attempt, c.config.MaxRetries+1, next, err)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.config.MaxRetries)), ctx),
		notify)
	if err != nil {
		return nil, fmt.Errorf("%s failed after %d attempts: %w", opts.Operation, attempt, err)
	}
	return result, nil
}

// estimateCost converts token usage to USD for a model.
func estimateCost(model string, usage types.Usage) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		pricing = modelPricing[ModelSonnet]
	}
	return float64(usage.InputTokens)*pricing[0]/1e6 + float64(usage.OutputTokens)*pricing[1]/1e6
}

// isRetriableError determines if an error is transient. Rate limits, server
// errors and network failures retry; other client errors do not.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return true
	}
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") {
		return true
	}

	return false
}
