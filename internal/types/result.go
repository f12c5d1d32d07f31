package types

import "time"

// Usage records token consumption for a provider call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates usage from another call.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// EvaluatorResult is the outcome of one evaluator invocation.
//
// Independent mode: scoped to one file, issues in Issues. Unified mode: issues
// are split per file in PerFileIssues plus CrossFileIssues for findings that
// span files; Issues holds the flattened view.
type EvaluatorResult struct {
	EvaluatorName string    `json:"evaluatorName"`
	EvaluatorType IssueType `json:"evaluatorType"`
	File          string    `json:"file,omitempty"`

	Issues []*Issue `json:"issues"`

	// Unified mode only.
	PerFileIssues   map[string][]*Issue `json:"perFileIssues,omitempty"`
	CrossFileIssues []*Issue            `json:"crossFileIssues,omitempty"`

	// Failure details. Err is a short human-readable message mirroring the
	// first structured error.
	Err              string             `json:"error,omitempty"`
	StructuredErrors []*StructuredError `json:"structuredErrors,omitempty"`

	// Skipped is set when the evaluator did not run (file filter produced no
	// input, or no context files exist and the evaluator is file-bound).
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skipReason,omitempty"`

	Usage     Usage         `json:"usage"`
	CostUSD   float64       `json:"cost_usd"`
	Duration  time.Duration `json:"duration_ms"`
	RawPrompt string        `json:"-"`
}

// Failed reports whether the evaluator produced a failure (not a skip).
func (r *EvaluatorResult) Failed() bool {
	return len(r.StructuredErrors) > 0
}

// SkippedResult builds the canonical skipped result for an evaluator.
func SkippedResult(name string, evalType IssueType, reason string) *EvaluatorResult {
	return &EvaluatorResult{
		EvaluatorName: name,
		EvaluatorType: evalType,
		Issues:        []*Issue{},
		Skipped:       true,
		SkipReason:    reason,
	}
}

// UnifiedEvaluationResult aggregates one unified-mode run across all files.
type UnifiedEvaluationResult struct {
	Results         []*EvaluatorResult  `json:"results"`
	PerFileIssues   map[string][]*Issue `json:"perFileIssues"`
	CrossFileIssues []*Issue            `json:"crossFileIssues"`
}
