package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ev := New(EventTypeJobStarted, "job-1", SeverityInfo, "evaluation started")

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, EventTypeJobStarted, ev.Type)
	assert.Equal(t, "job-1", ev.JobID)
	assert.Equal(t, SeverityInfo, ev.Severity)
	assert.Equal(t, "evaluation started", ev.Message)
	assert.False(t, ev.Timestamp.IsZero())
	assert.NotNil(t, ev.Data)
}

func TestNewUniqueIDs(t *testing.T) {
	a := New(EventTypeWarning, "job-1", SeverityWarning, "a")
	b := New(EventTypeWarning, "job-1", SeverityWarning, "b")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewWithDataNilMap(t *testing.T) {
	ev := NewWithData(EventTypeDiscoveryCompleted, "job-1", SeverityInfo, "done", nil)
	require.NotNil(t, ev.Data)
	assert.Empty(t, ev.Data)
}

func TestNewRetryEvent(t *testing.T) {
	ev := NewRetryEvent("job-1", "staleness", 2, 3, "rate limited")

	assert.Equal(t, EventTypeEvaluatorRetry, ev.Type)
	assert.Equal(t, SeverityWarning, ev.Severity)
	assert.Equal(t, "retrying staleness", ev.Message)
	assert.Equal(t, "staleness", ev.Data["evaluator"])
	assert.Equal(t, 2, ev.Data["attempt"])
	assert.Equal(t, 3, ev.Data["max_retries"])
	assert.Equal(t, "rate limited", ev.Data["error"])
}

func TestNewTimeoutEvent(t *testing.T) {
	ev := NewTimeoutEvent("job-1", "accuracy", 120500, 120000)

	assert.Equal(t, EventTypeEvaluatorTimeout, ev.Type)
	assert.Equal(t, SeverityWarning, ev.Severity)
	assert.Equal(t, "accuracy timed out", ev.Message)
	assert.Equal(t, int64(120500), ev.Data["elapsed_ms"])
	assert.Equal(t, int64(120000), ev.Data["timeout_ms"])
}
