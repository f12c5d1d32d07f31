package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

func errorIssue(t *testing.T, title, problem string, severity int, file string, start, end int) *types.Issue {
	t.Helper()
	issue, err := types.NewErrorIssue("accuracy", title, problem, "", severity,
		types.Location{File: file, StartLine: start, EndLine: end})
	require.NoError(t, err)
	return issue
}

func suggestionIssue(t *testing.T, title, description string, file string, start, end int) *types.Issue {
	t.Helper()
	issue, err := types.NewSuggestionIssue("clarity", title, description, types.ImpactMedium,
		types.Location{File: file, StartLine: start, EndLine: end})
	require.NoError(t, err)
	return issue
}

func TestPhase1MergesCoLocatedSimilarIssues(t *testing.T) {
	a := errorIssue(t, "Broken link to setup guide",
		"The link to the setup guide points at a file that does not exist", 7,
		"AGENTS.md", 10, 12)
	b := errorIssue(t, "Broken link to setup guide",
		"The link to the setup guide points at a missing file", 8,
		"AGENTS.md", 11, 13)

	result := RunPhase1([]*types.Issue{a, b}, DefaultConfig())

	require.Len(t, result.Deduplicated, 1)
	require.Len(t, result.Removed, 1)
	require.Len(t, result.Clusters, 1)
	// Highest severity wins.
	assert.Same(t, b, result.Deduplicated[0])
	assert.Same(t, a, result.Removed[0])
}

func TestPhase1RepresentativeTieBrokenByFirstSeen(t *testing.T) {
	a := errorIssue(t, "Stale version number",
		"README claims version 2.1 but the module is at 3.0", 7, "AGENTS.md", 5, 5)
	b := errorIssue(t, "Stale version number",
		"README claims version 2.1 but the module is now at 3.0", 7, "AGENTS.md", 5, 5)

	result := RunPhase1([]*types.Issue{a, b}, DefaultConfig())

	require.Len(t, result.Deduplicated, 1)
	assert.Same(t, a, result.Deduplicated[0])
}

func TestPhase1TransitiveChainCollapses(t *testing.T) {
	// a and c are outside each other's tolerance, but b bridges them: b is
	// within tolerance of both. All three must end up in one cluster.
	a := errorIssue(t, "Broken link to setup guide",
		"The link to the setup guide points at a file that does not exist", 5,
		"AGENTS.md", 1, 2)
	b := errorIssue(t, "Broken link to setup guide",
		"The link to the setup guide points at a file that does not exist", 9,
		"AGENTS.md", 6, 7)
	c := errorIssue(t, "Broken link to setup guide",
		"The link to the setup guide points at a file that does not exist", 5,
		"AGENTS.md", 11, 12)

	result := RunPhase1([]*types.Issue{a, b, c}, DefaultConfig())

	require.Len(t, result.Deduplicated, 1)
	require.Len(t, result.Removed, 2)
	assert.Same(t, b, result.Deduplicated[0])
	assert.ElementsMatch(t, []*types.Issue{a, c}, result.Removed)
}

func TestPhase1DistantIssuesNotMerged(t *testing.T) {
	a := errorIssue(t, "Broken link to setup guide",
		"The link to the setup guide points at a file that does not exist", 7,
		"AGENTS.md", 10, 10)
	b := errorIssue(t, "Broken link to setup guide",
		"The link to the setup guide points at a file that does not exist", 7,
		"AGENTS.md", 40, 40)

	result := RunPhase1([]*types.Issue{a, b}, DefaultConfig())

	assert.Len(t, result.Deduplicated, 2)
	assert.Empty(t, result.Removed)
}

func TestPhase1DifferentFilesNotMerged(t *testing.T) {
	a := errorIssue(t, "Broken link", "The setup link is dead", 7, "AGENTS.md", 10, 10)
	b := errorIssue(t, "Broken link", "The setup link is dead", 7, "pkg/AGENTS.md", 10, 10)

	result := RunPhase1([]*types.Issue{a, b}, DefaultConfig())

	assert.Len(t, result.Deduplicated, 2)
	assert.Empty(t, result.Removed)
}

func TestPhase1LocationCandidates(t *testing.T) {
	// Same place, unrelated wording: flagged for the AI pass, never merged.
	a := errorIssue(t, "Wrong build command",
		"Build instructions invoke a make target that was deleted", 7,
		"AGENTS.md", 20, 22)
	b := suggestionIssue(t, "Add testing section",
		"No guidance exists on running or writing tests", "AGENTS.md", 21, 21)

	result := RunPhase1([]*types.Issue{a, b}, DefaultConfig())

	require.Len(t, result.Deduplicated, 2)
	assert.True(t, result.LocationCandidates[a.DedupID])
	assert.True(t, result.LocationCandidates[b.DedupID])
}

func TestExtractSharedEntities(t *testing.T) {
	a := errorIssue(t, "Outdated database docs",
		"Docs describe MySQL setup but TypeORM config targets something else", 7,
		"AGENTS.md", 1, 1)
	b := errorIssue(t, "Wrong database named",
		"Project uses PostgreSQL via TypeORM, not what the docs claim", 7,
		"AGENTS.md", 50, 50)

	shared := extractSharedEntities(a, b)
	// Entities mentioned by only one side (mysql, postgresql) are excluded.
	assert.Equal(t, []string{"typeorm"}, shared)
}

func TestExtractEntitiesIPv4(t *testing.T) {
	entities := extractEntities("The docs hardcode 192.168.1.10 as the Redis host")
	assert.True(t, entities["192.168.1.10"])
	assert.True(t, entities["redis"])
	assert.False(t, entities["docs"])
}

func TestPhase1EntityCandidatesRequireTwoShared(t *testing.T) {
	// One shared entity (typeorm) is not enough.
	a := errorIssue(t, "A", "Uses MySQL with TypeORM somewhere in the setup notes", 7, "AGENTS.md", 1, 1)
	b := errorIssue(t, "B", "Uses PostgreSQL with TypeORM according to the config", 7, "docs/db.md", 1, 1)

	result := RunPhase1([]*types.Issue{a, b}, DefaultConfig())
	assert.Empty(t, result.EntityCandidates)

	// Two shared entities qualify both issues.
	c := errorIssue(t, "C", "Redis cache and Kafka queue setup steps are stale", 7, "AGENTS.md", 1, 1)
	d := errorIssue(t, "D", "The Kafka consumer actually reads from Redis now", 7, "docs/queue.md", 1, 1)

	result = RunPhase1([]*types.Issue{c, d}, DefaultConfig())
	assert.Equal(t, []string{"kafka", "redis"}, result.EntityCandidates[c.DedupID])
	assert.Equal(t, []string{"kafka", "redis"}, result.EntityCandidates[d.DedupID])
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "broken link in setup guide", "broken link in setup guide", 1.0, 1.0},
		{"disjoint", "broken link setup", "missing tests coverage", 0.0, 0.0},
		{"partial overlap", "broken link in the setup guide", "broken link in the install guide", 0.5, 0.9},
		{"empty", "", "anything", 0.0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestRangeDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b types.Location
		want int
	}{
		{"overlap", types.Location{StartLine: 1, EndLine: 10}, types.Location{StartLine: 5, EndLine: 15}, 0},
		{"contained", types.Location{StartLine: 1, EndLine: 20}, types.Location{StartLine: 5, EndLine: 6}, 0},
		{"gap below", types.Location{StartLine: 1, EndLine: 5}, types.Location{StartLine: 9, EndLine: 10}, 4},
		{"gap above", types.Location{StartLine: 9, EndLine: 10}, types.Location{StartLine: 1, EndLine: 5}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rangeDistance(tt.a, tt.b))
		})
	}
}
