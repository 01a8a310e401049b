package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_timeout, capture_failure, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches another ExecutionError by code so predefined values work with errors.Is.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithMessagef is WithMessage with formatting.
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Error codes.
const (
	CodeElementTimeout    = "element_timeout"
	CodeActionFailure     = "action_failure"
	CodeCaptureFailure    = "capture_failure"
	CodePublishFailure    = "publish_failure"
	CodeConfiguration     = "configuration_error"
	CodeInvalidTransition = "invalid_transition"
	CodeCancelled         = "cancelled"
	CodeSessionFailure    = "session_failure"
	CodeRunInProgress     = "run_in_progress"
)

// Predefined errors
var (
	// ErrElementTimeout means a wait predicate was never satisfied.
	ErrElementTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     CodeElementTimeout,
		Message:  "element wait timed out",
	}
	// ErrCancelled means the run context ended before the operation finished.
	ErrCancelled = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     CodeCancelled,
		Message:  "run cancelled",
	}

	ErrActionFailure = &ExecutionError{
		Category: ErrCategoryAction,
		Code:     CodeActionFailure,
		Message:  "action failed",
	}

	ErrCaptureFailure = &ExecutionError{
		Category: ErrCategoryCapture,
		Code:     CodeCaptureFailure,
		Message:  "screen capture failed",
	}

	// ErrPublishFailure carries Details["artifact"] naming what failed to publish.
	ErrPublishFailure = &ExecutionError{
		Category: ErrCategoryPublish,
		Code:     CodePublishFailure,
		Message:  "publish failed",
	}

	ErrSessionFailure = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     CodeSessionFailure,
		Message:  "could not create automation session",
	}

	ErrConfiguration = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     CodeConfiguration,
		Message:  "invalid configuration",
	}
	ErrInvalidTransition = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     CodeInvalidTransition,
		Message:  "invalid phase transition",
	}
	ErrRunInProgress = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     CodeRunInProgress,
		Message:  "a run is already in progress",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// AsExecutionError finds the first ExecutionError in err's chain.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr, true
	}
	return nil, false
}

// IsCode reports whether any ExecutionError in err's chain has the given code.
// Aggregated Errors are searched element by element.
func IsCode(err error, code string) bool {
	if errs, ok := err.(Errors); ok {
		for _, e := range errs {
			if IsCode(e, code) {
				return true
			}
		}
		return false
	}
	return errors.Is(err, &ExecutionError{Code: code})
}

// CategoryOf returns the category of the first ExecutionError in err's chain.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	if execErr, ok := AsExecutionError(err); ok {
		return execErr.Category
	}
	return ErrCategoryNone
}

// Errors combines independent failures into one error.
type Errors []error

// ErrIf appends an error with failureMessage if the condition is true.
// Returns the condition to allow for further conditional checks.
func (e *Errors) ErrIf(condition bool, failureMessage string, formatArgs ...interface{}) bool {
	if condition {
		*e = append(*e, errors.Errorf(failureMessage, formatArgs...))
	}
	return condition
}

// AddErr appends err if it is not nil, flattening nested Errors.
func (e *Errors) AddErr(err error) bool {
	if err != nil {
		if errs, ok := err.(Errors); ok {
			*e = append(*e, errs...)
		} else {
			*e = append(*e, err)
		}
	}
	return err == nil
}

// ErrOrNil returns e if an error is present, otherwise returns nil.
func (e Errors) ErrOrNil() error {
	if len(e) == 1 {
		return e[0]
	}
	if len(e) > 0 {
		return e
	}
	return nil
}

func (e Errors) Error() string {
	var buf strings.Builder
	for i, err := range e {
		if i != 0 {
			buf.WriteString("; ")
		}
		buf.WriteString(err.Error())
	}
	return buf.String()
}
