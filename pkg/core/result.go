package core

import (
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/flow"
)

// StepResult captures the outcome of executing a single step
type StepResult struct {
	// Identity
	Step    flow.Step `json:"-"`       // Reference to the step definition
	Index   int       `json:"index"`   // 0-based position in flow
	Command string    `json:"command"` // Command type: waitAndClick, sleep, etc.
	Label   string    `json:"label,omitempty"`

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string `json:"message,omitempty"` // Human-readable description, secrets masked
	Error   string `json:"error,omitempty"`   // Technical error message

	// Debug Artifacts
	Attachments []Attachment `json:"attachments,omitempty"`
}

// FlowResult captures the outcome of executing a flow
type FlowResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`

	// Phase is the last phase reached.
	Phase string `json:"phase"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps []StepResult `json:"steps"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`

	// Capture is set once the recording window closed successfully.
	Capture *CaptureArtifact `json:"-"`

	Error string `json:"error,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (f *FlowResult) ComputeSummary() {
	f.TotalSteps = len(f.Steps)
	f.PassedSteps = 0
	f.FailedSteps = 0
	f.SkippedSteps = 0
	f.WarnedSteps = 0

	for _, step := range f.Steps {
		switch step.Status {
		case StatusPassed:
			f.PassedSteps++
		case StatusFailed:
			f.FailedSteps++
		case StatusSkipped:
			f.SkippedSteps++
		case StatusWarned:
			f.WarnedSteps++
		}
	}
}

// AggregateStatus determines the flow status from step results
func (f *FlowResult) AggregateStatus() StepStatus {
	warned := false
	for _, step := range f.Steps {
		switch step.Status {
		case StatusFailed:
			return StatusFailed
		case StatusWarned:
			warned = true
		}
	}
	if warned {
		return StatusWarned
	}
	return StatusPassed
}

// Screenshot returns the first screenshot attachment of any step.
func (f *FlowResult) Screenshot() *Attachment {
	for i := range f.Steps {
		for j := range f.Steps[i].Attachments {
			if f.Steps[i].Attachments[j].Name == AttachmentScreenshot {
				return &f.Steps[i].Attachments[j]
			}
		}
	}
	return nil
}

// ObjectResult is the outcome of publishing one artifact.
type ObjectResult struct {
	Key    string `json:"key"`
	URL    string `json:"url,omitempty"`
	SizeKB int    `json:"sizeKB"`
	Error  string `json:"error,omitempty"`
}

// Success reports whether the artifact was stored.
func (o ObjectResult) Success() bool {
	return o.Key != "" && o.Error == ""
}

// PublishResult reports the video and metadata outcomes independently.
type PublishResult struct {
	Backend  string        `json:"backend"`
	Video    ObjectResult  `json:"video"`
	Metadata *ObjectResult `json:"metadata,omitempty"` // nil when the backend stores no metadata
}

// RunResult captures one recorder run end to end.
type RunResult struct {
	RunID     string         `json:"runId"`
	StartTime time.Time      `json:"startTime"`
	Duration  time.Duration  `json:"duration"`
	Flow      *FlowResult    `json:"flow,omitempty"`
	Publish   *PublishResult `json:"publish,omitempty"`
	Phase     string         `json:"phase"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}
