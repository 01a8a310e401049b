package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Aborted the flow
	StatusSkipped                   // Never executed because an earlier step failed
	StatusWarned                    // Optional step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies the type of error for reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryTimeout                         // Wait exhausted or run cancelled
	ErrCategoryAction                          // Element found but unusable
	ErrCategoryCapture                         // Screen recording failed
	ErrCategoryPublish                         // Artifact storage failed
	ErrCategoryConnection                      // Session could not be created or was lost
	ErrCategoryConfig                          // Invalid configuration, missing required setting
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryAction:
		return "action"
	case ErrCategoryCapture:
		return "capture"
	case ErrCategoryPublish:
		return "publish"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category by name.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
