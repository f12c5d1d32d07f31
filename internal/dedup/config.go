package dedup

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the deduplication pipeline.
type Config struct {
	// EnablePhase1 toggles rule-based clustering.
	// Default: true
	EnablePhase1 bool

	// EnablePhase2 toggles the AI semantic merge.
	// Default: true
	EnablePhase2 bool

	// LocationTolerance is the maximum line-range distance (in lines) for two
	// issues in the same file to be considered co-located.
	// Higher values = more aggressive clustering across a file
	// Lower values = only near-identical line ranges cluster
	// Default: 5
	LocationTolerance int

	// SimilarityThreshold is the minimum text similarity (0.0-1.0) for
	// co-located issues to merge in Phase 1. Co-located pairs below the
	// threshold are not merged; they are forwarded to Phase 2 as location
	// candidates instead.
	// Default: 0.55 (empirically tuned, keep configurable)
	SimilarityThreshold float64

	// MaxIssuesForAI caps how many surviving issues are sent to the Phase 2
	// prompt. This limits AI API cost and keeps the prompt within token
	// budget. Issues beyond the cap pass through unmerged.
	// Default: 500
	MaxIssuesForAI int

	// RequestTimeout is the timeout for the Phase 2 AI call.
	// Default: 60 seconds
	RequestTimeout time.Duration
}

// DefaultConfig returns the default deduplication configuration.
//
// These defaults are chosen to:
// - Merge only clearly duplicated findings in Phase 1 (conservative threshold)
// - Let the AI resolve borderline cases (location/entity candidates)
// - Keep Phase 2 cost bounded (issue cap, single call)
func DefaultConfig() Config {
	return Config{
		EnablePhase1:        true,
		EnablePhase2:        true,
		LocationTolerance:   5,
		SimilarityThreshold: 0.55,
		MaxIssuesForAI:      500,
		RequestTimeout:      60 * time.Second,
	}
}

// Validate checks if the configuration has valid values.
func (c Config) Validate() error {
	if c.LocationTolerance < 0 {
		return fmt.Errorf("location_tolerance cannot be negative (got %d)", c.LocationTolerance)
	}
	if c.LocationTolerance > 100 {
		return fmt.Errorf("location_tolerance too large (got %d, max 100)", c.LocationTolerance)
	}
	if c.SimilarityThreshold < 0.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity_threshold must be between 0.0 and 1.0 (got %.2f)",
			c.SimilarityThreshold)
	}
	if c.MaxIssuesForAI <= 0 {
		return fmt.Errorf("max_issues_for_ai must be positive (got %d)", c.MaxIssuesForAI)
	}
	if c.MaxIssuesForAI > 2000 {
		return fmt.Errorf("max_issues_for_ai too large (got %d, max 2000)", c.MaxIssuesForAI)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive (got %v)", c.RequestTimeout)
	}
	if c.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("request_timeout too large (got %v, max 5 minutes)", c.RequestTimeout)
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Phase1: %t, Phase2: %t, Tolerance: %d, Threshold: %.2f, MaxForAI: %d, Timeout: %v}",
		c.EnablePhase1, c.EnablePhase2, c.LocationTolerance, c.SimilarityThreshold,
		c.MaxIssuesForAI, c.RequestTimeout,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back to
// defaults.
//
// Environment variables:
//   - CTXEVAL_DEDUP_PHASE1: Enable rule-based clustering (default: true)
//   - CTXEVAL_DEDUP_PHASE2: Enable AI semantic merge (default: true)
//   - CTXEVAL_DEDUP_LOCATION_TOLERANCE: Line-range tolerance for co-location (default: 5)
//   - CTXEVAL_DEDUP_SIMILARITY_THRESHOLD: Minimum similarity (0.0-1.0) to merge (default: 0.55)
//   - CTXEVAL_DEDUP_MAX_ISSUES_FOR_AI: Maximum issues sent to Phase 2 (default: 500)
//   - CTXEVAL_DEDUP_TIMEOUT_SECS: Phase 2 request timeout in seconds (default: 60)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvBool("CTXEVAL_DEDUP_PHASE1", &cfg.EnablePhase1); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CTXEVAL_DEDUP_PHASE2", &cfg.EnablePhase2); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CTXEVAL_DEDUP_LOCATION_TOLERANCE", &cfg.LocationTolerance); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("CTXEVAL_DEDUP_SIMILARITY_THRESHOLD", &cfg.SimilarityThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CTXEVAL_DEDUP_MAX_ISSUES_FOR_AI", &cfg.MaxIssuesForAI); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("CTXEVAL_DEDUP_TIMEOUT_SECS", &cfg.RequestTimeout, time.Second); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}

	return cfg, nil
}

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvDuration(key string, dest *time.Duration, multiplier time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * multiplier
	return nil
}
