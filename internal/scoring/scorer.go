// Package scoring converts issue counts and documentation setup investment
// into a 1-10 context score. The formula is fully deterministic; only the
// accompanying narrative involves the AI, and that call is best-effort.
package scoring

import (
	"math"

	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

const (
	baseScore = 6.0

	maxSetupBonus  = 4.5
	maxAgentsBonus = 2.5
	maxSkillsBonus = 1.0
	maxDocsBonus   = 1.0

	maxPenalty = 3.0

	// Score assigned when the repository has no context files at all. The
	// formula is bypassed entirely.
	noContextScore = 3.5
)

// ScoreInput is the snapshot the scorer consumes.
type ScoreInput struct {
	ContextFileCount int
	SkillCount       int
	LinkedDocCount   int
	// TotalLines is the repository's source line count, used to pick the
	// issue allowance tier.
	TotalLines int
	// Issues is the final (deduplicated, curated) issue list.
	Issues []*types.Issue
}

// SetupBonus rewards documentation investment.
type SetupBonus struct {
	AgentsFilesBonus float64 `json:"agentsFilesBonus"`
	SkillsBonus      float64 `json:"skillsBonus"`
	LinkedDocsBonus  float64 `json:"linkedDocsBonus"`
	Total            float64 `json:"total"`
}

// IssuePenalty summarizes how the issue list pulled the score down.
type IssuePenalty struct {
	WeightedIssueCount float64 `json:"weightedIssueCount"`
	IssueAllowance     float64 `json:"issueAllowance"`
	ExcessIssues       float64 `json:"excessIssues"`
	Penalty            float64 `json:"penalty"`
}

// ScoreContext is the input snapshot recorded alongside the breakdown.
type ScoreContext struct {
	LOCTier          string `json:"locTier"`
	TotalLines       int    `json:"totalLines"`
	ContextFileCount int    `json:"contextFileCount"`
	SkillCount       int    `json:"skillCount"`
	LinkedDocCount   int    `json:"linkedDocCount"`
	ErrorCount       int    `json:"errorCount"`
	SuggestionCount  int    `json:"suggestionCount"`
	HighCount        int    `json:"highCount"`
	MediumCount      int    `json:"mediumCount"`
	LowCount         int    `json:"lowCount"`
}

// Breakdown is the full scoring record. Immutable after creation.
type Breakdown struct {
	Score      float64      `json:"score"`
	Grade      string       `json:"grade"`
	BaseScore  float64      `json:"baseScore"`
	SetupBonus SetupBonus   `json:"setupBonus"`
	Penalty    IssuePenalty `json:"issuePenalty"`
	Context    ScoreContext `json:"context"`
}

// Compute produces the context score: clamp(1, 10, base + bonus - penalty),
// rounded to one decimal. A repository with zero context files short-circuits
// to a fixed "Developing" score.
func Compute(input ScoreInput) *Breakdown {
	breakdown := &Breakdown{
		BaseScore: baseScore,
		Context:   snapshot(input),
	}

	if input.ContextFileCount == 0 {
		breakdown.Score = noContextScore
		breakdown.Grade = GradeFor(noContextScore)
		return breakdown
	}

	breakdown.SetupBonus = computeSetupBonus(input)
	breakdown.Penalty = computePenalty(input)

	score := baseScore + breakdown.SetupBonus.Total - breakdown.Penalty.Penalty
	breakdown.Score = round1(clamp(score, 1, 10))
	breakdown.Grade = GradeFor(breakdown.Score)
	return breakdown
}

// CalculateAgentsFilesBonus rewards context files on a logarithmic curve:
// one file earns 1.5, each doubling adds 0.4, capped at 2.5.
func CalculateAgentsFilesBonus(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Min(maxAgentsBonus, 1.5+0.4*math.Log2(float64(count)))
}

// CalculateSkillsBonus rewards skill definitions, capped at 1.0.
func CalculateSkillsBonus(count int) float64 {
	return math.Min(maxSkillsBonus, 0.2*math.Log2(1+float64(count)))
}

// CalculateLinkedDocsBonus rewards linked documentation, capped at 1.0.
func CalculateLinkedDocsBonus(count int) float64 {
	return math.Min(maxDocsBonus, 0.2*math.Log2(1+float64(count)))
}

func computeSetupBonus(input ScoreInput) SetupBonus {
	bonus := SetupBonus{
		AgentsFilesBonus: CalculateAgentsFilesBonus(input.ContextFileCount),
		SkillsBonus:      CalculateSkillsBonus(input.SkillCount),
		LinkedDocsBonus:  CalculateLinkedDocsBonus(input.LinkedDocCount),
	}
	bonus.Total = math.Min(maxSetupBonus,
		bonus.AgentsFilesBonus+bonus.SkillsBonus+bonus.LinkedDocsBonus)
	return bonus
}

func computePenalty(input ScoreInput) IssuePenalty {
	penalty := IssuePenalty{
		IssueAllowance: issueAllowance(input.TotalLines),
	}
	for _, issue := range input.Issues {
		penalty.WeightedIssueCount += issueWeight(issue)
	}
	penalty.ExcessIssues = math.Max(0, penalty.WeightedIssueCount-penalty.IssueAllowance*0.5)

	raw := math.Log2(1+penalty.ExcessIssues) * 1.2
	penalty.Penalty = math.Min(maxPenalty, raw*maturityFactor(len(input.Issues), input.ContextFileCount))
	return penalty
}

// issueWeight combines band weight (high .45, medium .15, low .05) with type
// weight (errors full, suggestions one fifth).
func issueWeight(issue *types.Issue) float64 {
	band := 0.0
	switch severityBand(issue) {
	case "high":
		band = 0.45
	case "medium":
		band = 0.15
	case "low":
		band = 0.05
	}
	if issue.IssueType == types.IssueTypeSuggestion {
		return band * 0.2
	}
	return band
}

func severityBand(issue *types.Issue) string {
	switch issue.IssueType {
	case types.IssueTypeError:
		switch {
		case issue.Severity >= 8:
			return "high"
		case issue.Severity >= 6:
			return "medium"
		default:
			return "low"
		}
	case types.IssueTypeSuggestion:
		switch issue.ImpactLevel {
		case types.ImpactHigh:
			return "high"
		case types.ImpactMedium:
			return "medium"
		default:
			return "low"
		}
	}
	return "low"
}

// issueAllowance grants bigger repositories more slack before issues start
// costing points.
func issueAllowance(totalLines int) float64 {
	switch {
	case totalLines < 5_000:
		return 5
	case totalLines < 25_000:
		return 10
	case totalLines < 100_000:
		return 15
	default:
		return 20
	}
}

func locTier(totalLines int) string {
	switch {
	case totalLines < 5_000:
		return "small"
	case totalLines < 25_000:
		return "medium"
	case totalLines < 100_000:
		return "large"
	default:
		return "very_large"
	}
}

// maturityFactor softens the penalty for repositories with few issues per
// context file: sparse findings suggest the docs are mostly healthy.
func maturityFactor(issueCount, fileCount int) float64 {
	if fileCount <= 0 {
		return 1.0
	}
	perFile := float64(issueCount) / float64(fileCount)
	switch {
	case perFile <= 1:
		return 0.7
	case perFile <= 2:
		return 0.85
	default:
		return 1.0
	}
}

// GradeFor maps a score to its label.
func GradeFor(score float64) string {
	switch {
	case score >= 9.0:
		return "Exceptional"
	case score >= 7.5:
		return "Strong"
	case score >= 6.0:
		return "Good"
	case score >= 4.5:
		return "Moderate"
	case score >= 3.0:
		return "Developing"
	default:
		return "Minimal"
	}
}

func snapshot(input ScoreInput) ScoreContext {
	ctx := ScoreContext{
		LOCTier:          locTier(input.TotalLines),
		TotalLines:       input.TotalLines,
		ContextFileCount: input.ContextFileCount,
		SkillCount:       input.SkillCount,
		LinkedDocCount:   input.LinkedDocCount,
	}
	for _, issue := range input.Issues {
		switch issue.IssueType {
		case types.IssueTypeError:
			ctx.ErrorCount++
		case types.IssueTypeSuggestion:
			ctx.SuggestionCount++
		}
		switch severityBand(issue) {
		case "high":
			ctx.HighCount++
		case "medium":
			ctx.MediumCount++
		case "low":
			ctx.LowCount++
		}
	}
	return ctx
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
