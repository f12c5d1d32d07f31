package engine

import (
	"time"

	"github.com/PackmindHub/context-evaluator-sub000/internal/scoring"
	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// Mode identifies how the evaluators were executed.
type Mode string

const (
	ModeIndependent Mode = "independent"
	ModeUnified     Mode = "unified"
	ModeNoContext   Mode = "no_context"
)

// Metadata carries the aggregate statistics of one evaluation run.
type Metadata struct {
	RepoPath  string    `json:"repoPath"`
	Mode      Mode      `json:"mode"`
	Timestamp time.Time `json:"timestamp"`

	ContextFileCount int `json:"contextFileCount"`
	SkillCount       int `json:"skillCount"`
	LinkedDocCount   int `json:"linkedDocCount"`
	TotalLines       int `json:"totalLines"`

	TotalIssues     int `json:"totalIssues"`
	ErrorCount      int `json:"errorCount"`
	SuggestionCount int `json:"suggestionCount"`

	DeduplicationRemoved int  `json:"deduplicationRemoved"`
	DeduplicationGroups  int  `json:"deduplicationGroups"`
	CurationApplied      bool `json:"curationApplied"`

	// Failure surface. A completed job is structurally valid even when some
	// evaluators failed; consumers read these fields instead of an error.
	HasErrors          bool     `json:"hasErrors"`
	HasPartialFailures bool     `json:"hasPartialFailures"`
	FailedEvaluators   []string `json:"failedEvaluators,omitempty"`
	SkippedEvaluators  []string `json:"skippedEvaluators,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`

	Usage    types.Usage   `json:"usage"`
	CostUSD  float64       `json:"cost_usd"`
	Duration time.Duration `json:"duration_ms"`

	ContextScore *scoring.Breakdown `json:"contextScore"`
	Narrative    *scoring.Narrative `json:"narrative,omitempty"`
}

// FileResult groups the surviving issues of one context file.
type FileResult struct {
	Path   string         `json:"path"`
	Issues []*types.Issue `json:"issues"`
}

// Output is the assembled result of one evaluation run. Every issue-bearing
// structure has been filtered to the post-dedup, post-curation survivor set,
// so the per-file views and the flat list always agree.
type Output struct {
	Metadata Metadata `json:"metadata"`

	// Issues is the final flat issue list.
	Issues []*types.Issue `json:"issues"`

	// Files is populated in independent mode.
	Files map[string]*FileResult `json:"files,omitempty"`
	// Results is populated in unified mode.
	Results []*types.EvaluatorResult `json:"results,omitempty"`

	CrossFileIssues []*types.Issue `json:"crossFileIssues"`
}

// filterIssues keeps only issues whose deduplication ID is in the survivor
// set. Works on any copy because IDs are assigned before copies exist.
func filterIssues(issues []*types.Issue, survivors map[string]bool) []*types.Issue {
	if issues == nil {
		return nil
	}
	kept := make([]*types.Issue, 0, len(issues))
	for _, issue := range issues {
		if survivors[issue.DedupID] {
			kept = append(kept, issue)
		}
	}
	return kept
}

// filterResult filters every issue-bearing field of an evaluator result in
// place.
func filterResult(result *types.EvaluatorResult, survivors map[string]bool) {
	result.Issues = filterIssues(result.Issues, survivors)
	result.CrossFileIssues = filterIssues(result.CrossFileIssues, survivors)
	for path, issues := range result.PerFileIssues {
		filtered := filterIssues(issues, survivors)
		if len(filtered) == 0 {
			delete(result.PerFileIssues, path)
			continue
		}
		result.PerFileIssues[path] = filtered
	}
}
