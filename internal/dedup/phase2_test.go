package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PackmindHub/context-evaluator-sub000/internal/ai"
	"github.com/PackmindHub/context-evaluator-sub000/internal/prompts"
	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

type fakeProvider struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) Invoke(ctx context.Context, prompt string, opts ai.InvokeOptions) (*ai.InvokeResult, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.InvokeResult{Result: f.response}, nil
}

func (f *fakeProvider) InvokeWithRetry(ctx context.Context, prompt string, opts ai.InvokeOptions) (*ai.InvokeResult, error) {
	return f.Invoke(ctx, prompt, opts)
}

var _ ai.Provider = (*fakeProvider)(nil)

func newMerger(t *testing.T, provider ai.Provider) *SemanticMerger {
	t.Helper()
	m, err := NewSemanticMerger(provider, prompts.NewEmbeddedSource(), DefaultConfig())
	require.NoError(t, err)
	return m
}

func threeIssues(t *testing.T) []*types.Issue {
	t.Helper()
	return []*types.Issue{
		errorIssue(t, "Dead setup link", "Setup guide link is broken", 8, "AGENTS.md", 3, 3),
		errorIssue(t, "Setup guide missing", "Referenced setup guide does not exist", 7, "AGENTS.md", 30, 30),
		errorIssue(t, "Install doc gone", "Install doc referenced but absent", 6, "docs/a.md", 1, 1),
	}
}

func TestMergeRemovesDuplicateIndices(t *testing.T) {
	provider := &fakeProvider{
		response: `{"groups":[{"representativeIndex":0,"duplicateIndices":[1,2],"reason":"same missing setup guide"}]}`,
	}
	issues := threeIssues(t)
	result := newMerger(t, provider).Merge(context.Background(), issues, nil)

	require.Len(t, result.Deduplicated, 1)
	require.Len(t, result.Removed, 2)
	assert.Same(t, issues[0], result.Deduplicated[0])
	require.Len(t, result.Groups, 1)
	assert.Equal(t, "same missing setup guide", result.Groups[0].Reason)
}

func TestMergeUnparsableResponseFailsOpen(t *testing.T) {
	provider := &fakeProvider{response: "not valid json"}
	issues := threeIssues(t)
	result := newMerger(t, provider).Merge(context.Background(), issues, nil)

	assert.Equal(t, issues, result.Deduplicated)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Groups)
	require.Len(t, result.Warnings, 1)
}

func TestMergeProviderFailureFailsOpen(t *testing.T) {
	provider := &fakeProvider{err: errors.New("api_error: overloaded")}
	issues := threeIssues(t)
	result := newMerger(t, provider).Merge(context.Background(), issues, nil)

	assert.Equal(t, issues, result.Deduplicated)
	assert.Empty(t, result.Removed)
	require.Len(t, result.Warnings, 1)
}

func TestMergeIgnoresOutOfRangeIndices(t *testing.T) {
	provider := &fakeProvider{
		response: `{"groups":[
			{"representativeIndex":0,"duplicateIndices":[1,99,-1,0],"reason":"partly garbage"},
			{"representativeIndex":50,"duplicateIndices":[2],"reason":"bad representative"}
		]}`,
	}
	issues := threeIssues(t)
	result := newMerger(t, provider).Merge(context.Background(), issues, nil)

	// Only index 1 is a valid removal: 99/-1 are out of range, 0 is the
	// representative itself, and the second group's representative is bogus.
	require.Len(t, result.Deduplicated, 2)
	require.Len(t, result.Removed, 1)
	assert.Same(t, issues[1], result.Removed[0])
}

func TestMergeSingleIssueSkipsProvider(t *testing.T) {
	provider := &fakeProvider{response: `{"groups":[]}`}
	issues := threeIssues(t)[:1]
	result := newMerger(t, provider).Merge(context.Background(), issues, nil)

	assert.Equal(t, issues, result.Deduplicated)
	assert.Empty(t, provider.prompts)
}

func TestMergeCapOverflowPassesThrough(t *testing.T) {
	provider := &fakeProvider{
		response: `{"groups":[{"representativeIndex":0,"duplicateIndices":[1],"reason":"dup"}]}`,
	}
	cfg := DefaultConfig()
	cfg.MaxIssuesForAI = 2
	m, err := NewSemanticMerger(provider, prompts.NewEmbeddedSource(), cfg)
	require.NoError(t, err)

	issues := threeIssues(t)
	result := m.Merge(context.Background(), issues, nil)

	// Issue 2 was never sent and must survive.
	require.Len(t, result.Deduplicated, 2)
	assert.Same(t, issues[0], result.Deduplicated[0])
	assert.Same(t, issues[2], result.Deduplicated[1])
	require.Len(t, result.Warnings, 1)
}

func TestMergePromptCarriesCandidateFlags(t *testing.T) {
	provider := &fakeProvider{response: `{"groups":[]}`}
	issues := threeIssues(t)
	p1 := &Phase1Result{
		LocationCandidates: map[string]bool{issues[0].DedupID: true},
		EntityCandidates:   map[string][]string{issues[1].DedupID: {"kafka", "redis"}},
	}
	newMerger(t, provider).Merge(context.Background(), issues, p1)

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "locationCandidate: true")
	assert.Contains(t, provider.prompts[0], "sharedEntities: [kafka, redis]")
}

func TestPipelineRunsBothPhases(t *testing.T) {
	provider := &fakeProvider{
		response: `{"groups":[{"representativeIndex":0,"duplicateIndices":[1],"reason":"same finding"}]}`,
	}
	merger := newMerger(t, provider)
	pipeline := NewPipeline(DefaultConfig(), merger)

	// Two near-identical co-located issues (merged by phase 1) plus two
	// distinct ones the AI then pairs up.
	a := errorIssue(t, "Dead setup link", "The setup guide link points nowhere", 8, "AGENTS.md", 3, 3)
	b := errorIssue(t, "Dead setup link", "The setup guide link here points nowhere", 7, "AGENTS.md", 4, 4)
	c := errorIssue(t, "Setup guide missing", "Referenced setup guide file does not exist anywhere", 7, "AGENTS.md", 40, 40)
	d := suggestionIssue(t, "Add examples", "Usage examples would help onboarding", "docs/a.md", 1, 1)

	result := pipeline.Run(context.Background(), []*types.Issue{a, b, c, d})

	// Phase 1 removes b; phase 2 removes the second surviving issue (c).
	require.Len(t, result.Deduplicated, 2)
	assert.Len(t, result.Removed, 2)
	assert.Len(t, result.Clusters, 1)
	assert.Len(t, result.Groups, 1)

	ids := result.SurvivorIDs()
	assert.True(t, ids[a.DedupID])
	assert.True(t, ids[d.DedupID])
	assert.False(t, ids[b.DedupID])
	assert.False(t, ids[c.DedupID])
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CTXEVAL_DEDUP_PHASE2", "false")
	t.Setenv("CTXEVAL_DEDUP_LOCATION_TOLERANCE", "10")
	t.Setenv("CTXEVAL_DEDUP_SIMILARITY_THRESHOLD", "0.7")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.EnablePhase1)
	assert.False(t, cfg.EnablePhase2)
	assert.Equal(t, 10, cfg.LocationTolerance)
	assert.InDelta(t, 0.7, cfg.SimilarityThreshold, 1e-9)
}

func TestConfigFromEnvInvalid(t *testing.T) {
	t.Setenv("CTXEVAL_DEDUP_SIMILARITY_THRESHOLD", "1.5")
	_, err := ConfigFromEnv()
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default valid", func(c *Config) {}, false},
		{"negative tolerance", func(c *Config) { c.LocationTolerance = -1 }, true},
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.01 }, true},
		{"zero max issues", func(c *Config) { c.MaxIssuesForAI = 0 }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
