package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &RunRecord{
		RepoPath:        "/repos/alpha",
		Mode:            "unified",
		Score:           7.2,
		Grade:           "Good",
		IssueCount:      12,
		ErrorCount:      8,
		SuggestionCount: 4,
		RemovedCount:    3,
		CostUSD:         0.42,
		Duration:        90 * time.Second,
		Breakdown:       json.RawMessage(`{"score":7.2}`),
		CreatedAt:       time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, store.SaveRun(ctx, first))
	assert.NotEmpty(t, first.ID, "missing ID must be assigned")

	second := &RunRecord{
		RepoPath: "/repos/alpha",
		Mode:     "independent",
		Score:    8.1,
		Grade:    "Strong",
	}
	require.NoError(t, store.SaveRun(ctx, second))

	other := &RunRecord{RepoPath: "/repos/beta", Mode: "unified", Score: 5.0, Grade: "Moderate"}
	require.NoError(t, store.SaveRun(ctx, other))

	runs, err := store.ListRuns(ctx, "/repos/alpha", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first.
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.InDelta(t, 0.42, runs[1].CostUSD, 1e-9)
	assert.Equal(t, 90*time.Second, runs[1].Duration)
	assert.JSONEq(t, `{"score":7.2}`, string(runs[1].Breakdown))

	all, err := store.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLatestRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	latest, err := store.LatestRun(ctx, "/repos/empty")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.SaveRun(ctx, &RunRecord{
		RepoPath: "/repos/alpha", Mode: "unified", Score: 6.0, Grade: "Good",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}))
	newest := &RunRecord{RepoPath: "/repos/alpha", Mode: "unified", Score: 6.5, Grade: "Good"}
	require.NoError(t, store.SaveRun(ctx, newest))

	latest, err = store.LatestRun(ctx, "/repos/alpha")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newest.ID, latest.ID)
}

func TestListRunsDefaultLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		require.NoError(t, store.SaveRun(ctx, &RunRecord{
			RepoPath: "/repos/alpha", Mode: "unified", Score: 6.0, Grade: "Good",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	runs, err := store.ListRuns(ctx, "/repos/alpha", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 20)
}
