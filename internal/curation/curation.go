// Package curation selects the highest-impact subset of a large issue list.
//
// Curation is threshold-gated: small issue lists pass through untouched with
// no AI call. Large lists are sent to the provider, which picks the top-N
// issues by impact. Like the semantic merge, curation is fail-open: a nil
// result means "keep everything", whether because the list was small or
// because the AI call failed. Callers must not distinguish the two.
package curation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PackmindHub/context-evaluator-sub000/internal/ai"
	"github.com/PackmindHub/context-evaluator-sub000/internal/prompts"
	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// Config tunes the curator.
type Config struct {
	// TopN is both the gate and the selection size: lists of TopN or fewer
	// issues skip curation entirely.
	// Default: 30
	TopN int

	// MaxIssues caps how many issues are sent in the curation prompt, as a
	// token-overflow guard. Truncation is logged.
	// Default: 150
	MaxIssues int

	// RequestTimeout is the timeout for the curation AI call.
	// Default: 60 seconds
	RequestTimeout time.Duration
}

// DefaultConfig returns the default curation configuration.
func DefaultConfig() Config {
	return Config{
		TopN:           30,
		MaxIssues:      150,
		RequestTimeout: 60 * time.Second,
	}
}

// Validate checks if the configuration has valid values.
func (c Config) Validate() error {
	if c.TopN <= 0 {
		return fmt.Errorf("top_n must be positive (got %d)", c.TopN)
	}
	if c.MaxIssues < c.TopN {
		return fmt.Errorf("max_issues (%d) cannot be below top_n (%d)", c.MaxIssues, c.TopN)
	}
	if c.MaxIssues > 1000 {
		return fmt.Errorf("max_issues too large (got %d, max 1000)", c.MaxIssues)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive (got %v)", c.RequestTimeout)
	}
	return nil
}

// Result is the outcome of one curation call.
type Result struct {
	// Curated are the selected issues, each annotated with its curation
	// reason, in the order the AI ranked them.
	Curated []*types.Issue `json:"curated"`
	// TotalIssuesReviewed is how many issues the AI actually saw (after the
	// overflow truncation).
	TotalIssuesReviewed int `json:"totalIssuesReviewed"`

	Usage    types.Usage   `json:"usage"`
	CostUSD  float64       `json:"cost_usd"`
	Duration time.Duration `json:"duration_ms"`
}

// Curator runs the impact-selection call, once per issue class.
type Curator struct {
	provider ai.Provider
	source   prompts.Source
	config   Config
}

// NewCurator creates a curator.
func NewCurator(provider ai.Provider, source prompts.Source, config Config) (*Curator, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("prompt source cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid curation config: %w", err)
	}
	return &Curator{provider: provider, source: source, config: config}, nil
}

// Curate selects the top issues from one class (errors or suggestions).
// Returns nil when the list is small enough to keep whole, and also on any
// AI failure: the caller retains all original issues either way.
func (c *Curator) Curate(ctx context.Context, issues []*types.Issue) *Result {
	if len(issues) <= c.config.TopN {
		return nil
	}

	sent := issues
	if len(sent) > c.config.MaxIssues {
		log.Printf("[CURATION] truncating %d issues to %d for the selection prompt",
			len(sent), c.config.MaxIssues)
		sent = sent[:c.config.MaxIssues]
	}

	template, err := c.source.Load("curation")
	if err != nil {
		log.Printf("[CURATION] template unavailable: %v (keeping all %d issues)", err, len(issues))
		return nil
	}
	prompt := prompts.Render(template, map[string]string{
		"TOP_N":  fmt.Sprintf("%d", c.config.TopN),
		"TOTAL":  fmt.Sprintf("%d", len(sent)),
		"ISSUES": formatIssuesForCuration(sent),
	})

	start := time.Now()
	invoke, err := c.provider.InvokeWithRetry(ctx, prompt, ai.InvokeOptions{
		Operation: "curation",
		Timeout:   c.config.RequestTimeout,
	})
	if err != nil {
		log.Printf("[CURATION] selection call failed: %v (keeping all %d issues)", err, len(issues))
		return nil
	}

	parsed := ai.Parse[curationResponse](invoke.Result, "curation response")
	if !parsed.Success {
		log.Printf("[CURATION] response unparsable: %s (keeping all %d issues)", parsed.Error, len(issues))
		return nil
	}

	result := &Result{
		TotalIssuesReviewed: len(sent),
		Usage:               invoke.Usage,
		CostUSD:             invoke.CostUSD,
		Duration:            time.Since(start),
	}
	for _, pick := range parsed.Data.CuratedIssues {
		// Out-of-range indices from the model are dropped, not fatal.
		if pick.OriginalIndex < 0 || pick.OriginalIndex >= len(sent) {
			continue
		}
		issue := sent[pick.OriginalIndex]
		issue.CurationReason = pick.Reason
		result.Curated = append(result.Curated, issue)
	}
	if len(result.Curated) == 0 {
		log.Printf("[CURATION] response selected no valid issues (keeping all %d)", len(issues))
		return nil
	}
	return result
}

type curationResponse struct {
	CuratedIssues []struct {
		OriginalIndex int    `json:"originalIndex"`
		Reason        string `json:"reason"`
	} `json:"curatedIssues"`
	TotalIssuesReviewed int `json:"totalIssuesReviewed"`
}

func formatIssuesForCuration(issues []*types.Issue) string {
	var b strings.Builder
	for i, issue := range issues {
		fmt.Fprintf(&b, "[%d] (%s", i, issue.IssueType)
		switch issue.IssueType {
		case types.IssueTypeError:
			fmt.Fprintf(&b, ", severity %d", issue.Severity)
		case types.IssueTypeSuggestion:
			fmt.Fprintf(&b, ", impact %s", issue.ImpactLevel)
		}
		fmt.Fprintf(&b, ") %s", issue.Title)
		if file := issue.PrimaryFile(); file != "" {
			fmt.Fprintf(&b, " @ %s", file)
		}
		b.WriteString("\n")
		if text := strings.TrimSpace(issue.Problem + " " + issue.Description); text != "" {
			fmt.Fprintf(&b, "    %s\n", text)
		}
	}
	return b.String()
}
