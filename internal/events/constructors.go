package events

import (
	"time"

	"github.com/google/uuid"
)

// New creates an event with no structured data.
func New(eventType EventType, jobID string, severity EventSeverity, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		JobID:     jobID,
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
	}
}

// NewWithData creates an event carrying structured data.
func NewWithData(eventType EventType, jobID string, severity EventSeverity, message string, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		JobID:     jobID,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

// NewRetryEvent creates an evaluator.retry event.
func NewRetryEvent(jobID, evaluator string, attempt, maxRetries int, cause string) *Event {
	return NewWithData(EventTypeEvaluatorRetry, jobID, SeverityWarning,
		"retrying "+evaluator,
		map[string]interface{}{
			"evaluator":   evaluator,
			"attempt":     attempt,
			"max_retries": maxRetries,
			"error":       cause,
		})
}

// NewTimeoutEvent creates an evaluator.timeout event.
func NewTimeoutEvent(jobID, evaluator string, elapsedMs, timeoutMs int64) *Event {
	return NewWithData(EventTypeEvaluatorTimeout, jobID, SeverityWarning,
		evaluator+" timed out",
		map[string]interface{}{
			"evaluator":  evaluator,
			"elapsed_ms": elapsedMs,
			"timeout_ms": timeoutMs,
		})
}
