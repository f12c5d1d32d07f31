// Package events defines the typed progress events emitted by the evaluation
// engine. Consumers receive events in order through a ProgressCallback; an
// evaluation.warning event never implies a following job.failed.
package events

import "time"

// EventType identifies a progress event.
type EventType string

const (
	// EventTypeJobStarted indicates an evaluation job began.
	EventTypeJobStarted EventType = "job.started"
	// EventTypeJobCompleted indicates the job finished with a valid output.
	EventTypeJobCompleted EventType = "job.completed"
	// EventTypeJobFailed indicates a fatal failure aborted the job.
	EventTypeJobFailed EventType = "job.failed"

	// EventTypeDiscoveryStarted indicates context-file discovery began.
	EventTypeDiscoveryStarted EventType = "discovery.started"
	// EventTypeDiscoveryCompleted indicates discovery finished.
	EventTypeDiscoveryCompleted EventType = "discovery.completed"

	// EventTypeContextStarted indicates project-context identification began.
	EventTypeContextStarted EventType = "context.started"
	// EventTypeContextCompleted indicates project-context identification finished.
	EventTypeContextCompleted EventType = "context.completed"

	// EventTypeFileStarted indicates evaluation of one file began (independent mode).
	EventTypeFileStarted EventType = "file.started"
	// EventTypeFileCompleted indicates evaluation of one file finished.
	EventTypeFileCompleted EventType = "file.completed"

	// EventTypeEvaluatorProgress indicates an evaluator finished (or was skipped).
	EventTypeEvaluatorProgress EventType = "evaluator.progress"
	// EventTypeEvaluatorRetry indicates a provider call is being retried.
	EventTypeEvaluatorRetry EventType = "evaluator.retry"
	// EventTypeEvaluatorTimeout indicates a provider call exceeded its deadline.
	EventTypeEvaluatorTimeout EventType = "evaluator.timeout"

	// EventTypeDeduplicationStarted indicates the dedup pipeline began.
	EventTypeDeduplicationStarted EventType = "deduplication.started"
	// EventTypeDeduplicationCompleted indicates the dedup pipeline finished.
	EventTypeDeduplicationCompleted EventType = "deduplication.completed"

	// EventTypeCurationStarted indicates impact curation began.
	EventTypeCurationStarted EventType = "curation.started"
	// EventTypeCurationCompleted indicates impact curation finished.
	EventTypeCurationCompleted EventType = "curation.completed"

	// EventTypeScoringStarted indicates context scoring began.
	EventTypeScoringStarted EventType = "scoring.started"
	// EventTypeScoringCompleted indicates context scoring finished.
	EventTypeScoringCompleted EventType = "scoring.completed"

	// EventTypeWarning indicates a non-fatal problem (fail-open fallback taken,
	// truncation applied, partial evaluator failure).
	EventTypeWarning EventType = "evaluation.warning"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	SeverityInfo    EventSeverity = "info"
	SeverityWarning EventSeverity = "warning"
	SeverityError   EventSeverity = "error"
)

// Event is a single progress notification.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`
	// Type is the event type.
	Type EventType `json:"type"`
	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
	// JobID identifies the evaluation run this event belongs to.
	JobID string `json:"job_id"`
	// Severity is the severity level.
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// Data carries type-specific fields (must be JSON-serializable).
	Data map[string]interface{} `json:"data,omitempty"`
}

// ProgressCallback receives engine events in emission order. Implementations
// must not block for long; the engine calls them inline.
type ProgressCallback func(*Event)
