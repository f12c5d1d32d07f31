package types

import (
	"fmt"
	"sync/atomic"
)

// IssueType discriminates the two kinds of findings evaluators produce.
// Error issues carry a numeric severity; suggestion issues carry an impact
// level. Exactly one of the two is ever set on an Issue.
type IssueType string

const (
	// IssueTypeError is a concrete problem in the documentation (wrong,
	// contradictory, or stale content). Carries Severity.
	IssueTypeError IssueType = "error"
	// IssueTypeSuggestion is an improvement opportunity. Carries ImpactLevel.
	IssueTypeSuggestion IssueType = "suggestion"
)

// ImpactLevel classifies how much a suggestion would improve the documentation.
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "High"
	ImpactMedium ImpactLevel = "Medium"
	ImpactLow    ImpactLevel = "Low"
)

// Location identifies a line range in a context file. File may be empty for
// issues scoped to the single file an independent evaluation ran against.
type Location struct {
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start"`
	EndLine   int    `json:"end"`
	// Snippet is the source content for the range, resolved by the runner
	// after parsing. Attached once; read-only afterwards.
	Snippet string `json:"snippet,omitempty"`
}

// Issue is a single finding from an evaluator.
//
// Issues are created either by the constructors below or by the runner when it
// parses an evaluator response. In both paths the deduplication ID is assigned
// before the issue is visible to any other component, so every downstream copy
// carries it. Assigning IDs later (after copies exist for presentation) has
// silently dropped issues from final output before; keep the assignment here.
type Issue struct {
	// DedupID is a globally unique identity ("issue_<n>") used to filter
	// presentation copies against the post-dedup survivor set.
	DedupID string `json:"_deduplicationId,omitempty"`

	IssueType IssueType `json:"issueType"`
	Category  string    `json:"category"`

	Title       string `json:"title,omitempty"`
	Problem     string `json:"problem,omitempty"`
	Description string `json:"description,omitempty"`
	Fix         string `json:"fix,omitempty"`

	// Severity is set only for error issues (0-10 scale; 6-10 in practice).
	Severity int `json:"severity,omitempty"`
	// ImpactLevel is set only for suggestion issues.
	ImpactLevel ImpactLevel `json:"impactLevel,omitempty"`

	Locations []Location `json:"locations,omitempty"`

	EvaluatorName  string `json:"evaluatorName,omitempty"`
	CurationReason string `json:"curationReason,omitempty"`
}

// dedupCounter backs the global deduplication ID sequence. IDs must be unique
// across the full pre-dedup issue set of a run, which a process-wide counter
// trivially guarantees.
var dedupCounter atomic.Int64

// NextDeduplicationID returns the next globally unique issue identity.
func NextDeduplicationID() string {
	return fmt.Sprintf("issue_%d", dedupCounter.Add(1))
}

// NewErrorIssue creates an error issue with its deduplication ID assigned.
func NewErrorIssue(category, title, problem, fix string, severity int, locs ...Location) (*Issue, error) {
	issue := &Issue{
		DedupID:   NextDeduplicationID(),
		IssueType: IssueTypeError,
		Category:  category,
		Title:     title,
		Problem:   problem,
		Fix:       fix,
		Severity:  severity,
		Locations: locs,
	}
	if err := issue.Validate(); err != nil {
		return nil, err
	}
	return issue, nil
}

// NewSuggestionIssue creates a suggestion issue with its deduplication ID assigned.
func NewSuggestionIssue(category, title, description string, impact ImpactLevel, locs ...Location) (*Issue, error) {
	issue := &Issue{
		DedupID:     NextDeduplicationID(),
		IssueType:   IssueTypeSuggestion,
		Category:    category,
		Title:       title,
		Description: description,
		ImpactLevel: impact,
		Locations:   locs,
	}
	if err := issue.Validate(); err != nil {
		return nil, err
	}
	return issue, nil
}

// Validate enforces the tagged-union invariant: error issues have a severity
// and no impact level, suggestion issues have an impact level and no severity.
func (i *Issue) Validate() error {
	switch i.IssueType {
	case IssueTypeError:
		if i.Severity < 0 || i.Severity > 10 {
			return fmt.Errorf("severity must be 0-10 (got %d)", i.Severity)
		}
		if i.ImpactLevel != "" {
			return fmt.Errorf("error issue must not carry impactLevel (got %q)", i.ImpactLevel)
		}
	case IssueTypeSuggestion:
		switch i.ImpactLevel {
		case ImpactHigh, ImpactMedium, ImpactLow:
		default:
			return fmt.Errorf("suggestion issue requires impactLevel High/Medium/Low (got %q)", i.ImpactLevel)
		}
		if i.Severity != 0 {
			return fmt.Errorf("suggestion issue must not carry severity (got %d)", i.Severity)
		}
	default:
		return fmt.Errorf("unknown issueType %q", i.IssueType)
	}
	return nil
}

// IsCrossFile reports whether the issue spans two or more distinct files.
func (i *Issue) IsCrossFile() bool {
	seen := make(map[string]bool)
	for _, loc := range i.Locations {
		if loc.File != "" {
			seen[loc.File] = true
		}
	}
	return len(seen) >= 2
}

// Text returns the normalized free-text content used for similarity matching
// and entity extraction: category plus the explanation fields.
func (i *Issue) Text() string {
	return i.Category + " " + i.Title + " " + i.Problem + " " + i.Description
}

// PrimaryFile returns the file of the first location, if any.
func (i *Issue) PrimaryFile() string {
	if len(i.Locations) == 0 {
		return ""
	}
	return i.Locations[0].File
}
