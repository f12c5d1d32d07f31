package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PackmindHub/context-evaluator-sub000/internal/ai"
	"github.com/PackmindHub/context-evaluator-sub000/internal/prompts"
	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

func severityIssue(t *testing.T, severity int) *types.Issue {
	t.Helper()
	issue, err := types.NewErrorIssue("accuracy", fmt.Sprintf("issue sev %d", severity), "p", "", severity)
	require.NoError(t, err)
	return issue
}

func impactIssue(t *testing.T, impact types.ImpactLevel) *types.Issue {
	t.Helper()
	issue, err := types.NewSuggestionIssue("clarity", "suggestion", "d", impact)
	require.NoError(t, err)
	return issue
}

func TestComputeScoreBounds(t *testing.T) {
	// Many high-severity errors in a tiny repo: clamped at the bottom end of
	// what the penalty cap allows.
	var issues []*types.Issue
	for i := 0; i < 50; i++ {
		issues = append(issues, severityIssue(t, 10))
	}
	worst := Compute(ScoreInput{ContextFileCount: 1, TotalLines: 1000, Issues: issues})
	assert.GreaterOrEqual(t, worst.Score, 1.0)
	assert.LessOrEqual(t, worst.Score, 10.0)
	assert.Equal(t, 3.0, worst.Penalty.Penalty, "penalty must cap at 3.0")

	// Heavy setup investment, zero issues: capped at the top.
	best := Compute(ScoreInput{ContextFileCount: 20, SkillCount: 40, LinkedDocCount: 40, TotalLines: 1000})
	assert.GreaterOrEqual(t, best.Score, 1.0)
	assert.LessOrEqual(t, best.Score, 10.0)
	assert.Equal(t, 4.5, best.SetupBonus.Total, "setup bonus must cap at 4.5")
}

func TestComputeNoContextFilesShortCircuit(t *testing.T) {
	breakdown := Compute(ScoreInput{ContextFileCount: 0, TotalLines: 50_000})

	assert.Equal(t, 3.5, breakdown.Score)
	assert.Equal(t, "Developing", breakdown.Grade)
	assert.Zero(t, breakdown.SetupBonus.Total)
	assert.Zero(t, breakdown.Penalty.Penalty)
}

func TestAgentsFilesBonus(t *testing.T) {
	assert.Equal(t, 0.0, CalculateAgentsFilesBonus(0))
	assert.InDelta(t, 1.5, CalculateAgentsFilesBonus(1), 1e-9)
	assert.InDelta(t, 1.9, CalculateAgentsFilesBonus(2), 1e-9)

	prev := 0.0
	for n := 1; n <= 100; n++ {
		bonus := CalculateAgentsFilesBonus(n)
		assert.GreaterOrEqual(t, bonus, prev, "bonus must be non-decreasing (n=%d)", n)
		assert.LessOrEqual(t, bonus, 2.5, "bonus must never exceed 2.5 (n=%d)", n)
		prev = bonus
	}
}

func TestSkillsAndDocsBonusCaps(t *testing.T) {
	assert.Equal(t, 0.0, CalculateSkillsBonus(0))
	assert.InDelta(t, 0.2, CalculateSkillsBonus(1), 1e-9)
	assert.Equal(t, 1.0, CalculateSkillsBonus(10_000))
	assert.Equal(t, 1.0, CalculateLinkedDocsBonus(10_000))
}

func TestIssueWeight(t *testing.T) {
	tests := []struct {
		name  string
		issue *types.Issue
		want  float64
	}{
		{"high error", severityIssue(t, 9), 0.45},
		{"medium error", severityIssue(t, 7), 0.15},
		{"low error", severityIssue(t, 4), 0.05},
		{"high suggestion", impactIssue(t, types.ImpactHigh), 0.09},
		{"medium suggestion", impactIssue(t, types.ImpactMedium), 0.03},
		{"low suggestion", impactIssue(t, types.ImpactLow), 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, issueWeight(tt.issue), 1e-9)
		})
	}
}

func TestIssueAllowanceTiers(t *testing.T) {
	assert.Equal(t, 5.0, issueAllowance(4_999))
	assert.Equal(t, 10.0, issueAllowance(5_000))
	assert.Equal(t, 15.0, issueAllowance(25_000))
	assert.Equal(t, 20.0, issueAllowance(100_000))
}

func TestMaturityFactor(t *testing.T) {
	assert.Equal(t, 0.7, maturityFactor(2, 2))
	assert.Equal(t, 0.85, maturityFactor(4, 2))
	assert.Equal(t, 1.0, maturityFactor(10, 2))
	assert.Equal(t, 1.0, maturityFactor(5, 0))
}

func TestFewIssuesNoPenalty(t *testing.T) {
	// A single medium error in a large repo stays inside the allowance.
	breakdown := Compute(ScoreInput{
		ContextFileCount: 2,
		TotalLines:       50_000,
		Issues:           []*types.Issue{severityIssue(t, 6)},
	})
	assert.Zero(t, breakdown.Penalty.ExcessIssues)
	assert.Zero(t, breakdown.Penalty.Penalty)
}

func TestGradeBands(t *testing.T) {
	assert.Equal(t, "Exceptional", GradeFor(9.2))
	assert.Equal(t, "Strong", GradeFor(8.0))
	assert.Equal(t, "Good", GradeFor(6.5))
	assert.Equal(t, "Moderate", GradeFor(5.0))
	assert.Equal(t, "Developing", GradeFor(3.5))
	assert.Equal(t, "Minimal", GradeFor(2.0))
}

type fakeProvider struct {
	response string
	err      error
	calls    int
}

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) Invoke(ctx context.Context, prompt string, opts ai.InvokeOptions) (*ai.InvokeResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.InvokeResult{Result: f.response}, nil
}

func (f *fakeProvider) InvokeWithRetry(ctx context.Context, prompt string, opts ai.InvokeOptions) (*ai.InvokeResult, error) {
	return f.Invoke(ctx, prompt, opts)
}

var _ ai.Provider = (*fakeProvider)(nil)

func TestNarrateSuccess(t *testing.T) {
	provider := &fakeProvider{
		response: `{"summary":"Solid documentation.","recommendations":["a","b","c","d"]}`,
	}
	n := NewNarrator(provider, prompts.NewEmbeddedSource(), 0)
	breakdown := Compute(ScoreInput{ContextFileCount: 1, TotalLines: 1000})

	narrative := n.Narrate(context.Background(), breakdown)

	assert.True(t, narrative.Generated)
	assert.Equal(t, "Solid documentation.", narrative.Summary)
	assert.Len(t, narrative.Recommendations, 3, "recommendations cap at three")
}

func TestNarrateFallsBackOnFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("api_error: overloaded")}
	n := NewNarrator(provider, prompts.NewEmbeddedSource(), 0)
	breakdown := Compute(ScoreInput{ContextFileCount: 1, TotalLines: 1000})

	narrative := n.Narrate(context.Background(), breakdown)

	assert.False(t, narrative.Generated)
	assert.NotEmpty(t, narrative.Summary)
}

func TestNarrateNoContextSkipsProvider(t *testing.T) {
	provider := &fakeProvider{response: `{"summary":"should never be asked"}`}
	n := NewNarrator(provider, prompts.NewEmbeddedSource(), 0)
	breakdown := Compute(ScoreInput{})

	narrative := n.Narrate(context.Background(), breakdown)

	assert.Zero(t, provider.calls, "empty corpus must not reach the model")
	assert.False(t, narrative.Generated)
	assert.Contains(t, narrative.Summary, "No context files")
}

func TestFallbackNarrativeNoContext(t *testing.T) {
	narrative := FallbackNarrative(Compute(ScoreInput{}))
	assert.Contains(t, narrative.Summary, "No context files")
	assert.Len(t, narrative.Recommendations, 3)
}
