package types

import "fmt"

// ErrorCategory classifies where a failure originated.
type ErrorCategory string

const (
	ErrorCategoryProvider   ErrorCategory = "provider"
	ErrorCategoryParsing    ErrorCategory = "parsing"
	ErrorCategoryRepository ErrorCategory = "repository"
	ErrorCategoryFileSystem ErrorCategory = "file_system"
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity describes how much of the evaluation a failure affects.
type ErrorSeverity string

const (
	// ErrorSeverityFatal aborts the whole job (provider unavailable, clone
	// failure, uncaught orchestration error).
	ErrorSeverityFatal ErrorSeverity = "fatal"
	// ErrorSeverityPartial affects one evaluator; the pipeline continues.
	ErrorSeverityPartial ErrorSeverity = "partial"
	// ErrorSeverityWarning is informational only.
	ErrorSeverityWarning ErrorSeverity = "warning"
)

// StructuredError is the failure record attached to evaluator results and
// surfaced in output metadata. Per-evaluator failures are always downgraded to
// partial so one bad evaluator never blocks the others.
type StructuredError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Evaluator string        `json:"evaluator,omitempty"`
	Retryable bool          `json:"retryable"`
}

func (e *StructuredError) Error() string {
	if e.Evaluator != "" {
		return fmt.Sprintf("%s error in %s: %s", e.Category, e.Evaluator, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

// NewTimeoutError records an evaluator call that exceeded its deadline.
func NewTimeoutError(evaluator string, err error) *StructuredError {
	return &StructuredError{
		Category:  ErrorCategoryTimeout,
		Severity:  ErrorSeverityPartial,
		Message:   err.Error(),
		Evaluator: evaluator,
		Retryable: true,
	}
}

// NewProviderError records a provider call that failed after retries.
func NewProviderError(evaluator string, err error) *StructuredError {
	return &StructuredError{
		Category:  ErrorCategoryProvider,
		Severity:  ErrorSeverityPartial,
		Message:   err.Error(),
		Evaluator: evaluator,
		Retryable: true,
	}
}

// NewParsingError records an unparsable evaluator response.
func NewParsingError(evaluator, message string) *StructuredError {
	return &StructuredError{
		Category:  ErrorCategoryParsing,
		Severity:  ErrorSeverityPartial,
		Message:   message,
		Evaluator: evaluator,
		Retryable: false,
	}
}

// NewFatalError records a job-aborting failure.
func NewFatalError(category ErrorCategory, message string) *StructuredError {
	return &StructuredError{
		Category:  category,
		Severity:  ErrorSeverityFatal,
		Message:   message,
		Retryable: false,
	}
}
