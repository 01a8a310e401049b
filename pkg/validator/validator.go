// Package validator checks recorder flows before any session is opened.
package validator

import (
	"fmt"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    int // 0-based, -1 for flow-level problems
	Message string
}

func (e *ValidationError) Error() string {
	where := "flow"
	if e.Step >= 0 {
		where = fmt.Sprintf("step %d", e.Step+1)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, where, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Err returns a ConfigurationError listing every problem, or nil.
func (r *Result) Err() error {
	if r.IsValid() {
		return nil
	}
	return core.ErrConfiguration.WithMessage("invalid flow").WithCause(core.Errors(r.Errors))
}

type checker struct {
	file   string
	result *Result
}

func (c *checker) fail(step int, format string, args ...interface{}) {
	c.result.Errors = append(c.result.Errors, &ValidationError{
		File:    c.file,
		Step:    step,
		Message: fmt.Sprintf(format, args...),
	})
}

// ValidateFile parses and validates a flow file.
func ValidateFile(path string) (*flow.Flow, *Result) {
	f, err := flow.ParseFile(path)
	if err != nil {
		return nil, &Result{Errors: []error{&ValidationError{File: path, Step: -1, Message: fmt.Sprintf("parse error: %v", err)}}}
	}
	return f, Validate(f)
}

// Validate checks step parameters, phase ordering and the recording window.
func Validate(f *flow.Flow) *Result {
	c := &checker{file: f.SourcePath, result: &Result{}}

	if len(f.Steps) == 0 {
		c.fail(-1, "flow has no steps")
		return c.result
	}

	// A flow may begin at any phase; after its first tagged step only
	// optional phases can be passed over.
	current, tagged := flow.PhaseStart, false
	for i, step := range f.Steps {
		c.checkStep(i, step)

		p := step.Phase()
		if p == flow.PhaseNone {
			continue
		}
		switch {
		case p == flow.PhasePublished:
			c.fail(i, "phase Published is reached by publishing, not by a step")
		case !p.After(current):
			c.fail(i, "phase %s does not come after %s", p, current)
		default:
			if tagged {
				c.checkSkipped(i, current, p)
			}
			current, tagged = p, true
		}
	}

	c.checkRecording(f)
	return c.result
}

// checkSkipped fails for every required phase strictly between from and to.
func (c *checker) checkSkipped(i int, from, to flow.Phase) {
	for p := from + 1; p < to; p++ {
		if !p.Optional() {
			c.fail(i, "phase %s skips required phase %s", to, p)
		}
	}
}

func (c *checker) checkWait(i int, element flow.Element, wait flow.WaitSpec) {
	if element.Locator == "" {
		c.fail(i, "element has no locator")
	}
	if wait.TimeoutMs <= 0 {
		c.fail(i, "wait timeout must be positive, got %dms", wait.TimeoutMs)
	}
	switch wait.EffectiveCondition() {
	case flow.ConditionExists, flow.ConditionVisible:
	case flow.ConditionAttributeEquals:
		if wait.Attribute == "" || len(wait.Values) == 0 {
			c.fail(i, "attributeEquals wait needs an attribute and at least one value")
		}
	default:
		c.fail(i, "unknown wait condition %q", wait.Condition)
	}
}

func (c *checker) checkStep(i int, step flow.Step) {
	if es, ok := step.(flow.ElementStep); ok {
		c.checkWait(i, es.Target(), es.WaitSpec())
	}

	switch s := step.(type) {
	case *flow.WaitAndTypeStep:
		if s.Value == "" {
			c.fail(i, "%s has an empty value", s.Element)
		}
	case *flow.RepeatClickStep:
		if s.Times < 1 {
			c.fail(i, "repeatClick times must be at least 1, got %d", s.Times)
		}
	case *flow.GestureStep:
		if len(s.Points) == 0 {
			c.fail(i, "gesture has no points")
		}
		if s.PressDurationMs < 0 {
			c.fail(i, "gesture press duration must not be negative")
		}
	case *flow.SleepStep:
		if s.DurationMs < 0 {
			c.fail(i, "sleep duration must not be negative")
		}
	case *flow.StartRecordingStep:
		rc := s.Recording
		if rc.MaxDurationSeconds < 1 || rc.MaxDurationSeconds > flow.MaxRecordingSeconds {
			c.fail(i, "recording max duration must be within 1..%d seconds, got %d", flow.MaxRecordingSeconds, rc.MaxDurationSeconds)
		}
		if (rc.Width > 0) != (rc.Height > 0) || rc.Width < 0 || rc.Height < 0 {
			c.fail(i, "recording size %dx%d is incomplete", rc.Width, rc.Height)
		}
		if rc.BitRateBps < 0 {
			c.fail(i, "recording bit rate must not be negative")
		}
	case *flow.TerminateAppStep:
		if s.AppID == "" {
			c.fail(i, "terminateApp has no app id")
		}
	}
}

// checkRecording enforces one ordered start/stop pair, termination after the
// capture, and window steps whose worst case fits the ceiling.
func (c *checker) checkRecording(f *flow.Flow) {
	starts, stops, terminates := 0, 0, -1
	for i, step := range f.Steps {
		switch step.Type() {
		case flow.StepStartRecording:
			starts++
			if starts > 1 {
				c.fail(i, "only one startRecording is allowed")
			}
		case flow.StepStopRecording:
			stops++
			if stops > 1 {
				c.fail(i, "only one stopRecording is allowed")
			}
		case flow.StepTerminateApp:
			if terminates < 0 {
				terminates = i
			}
		}
	}

	start, stop := f.RecordingSteps()
	switch {
	case start < 0 && stop < 0:
		return
	case start < 0:
		c.fail(stop, "stopRecording without startRecording")
		return
	case stop < 0:
		c.fail(start, "startRecording is never stopped")
		return
	case stop < start:
		c.fail(stop, "stopRecording comes before startRecording")
		return
	}

	if terminates >= 0 && terminates < stop {
		c.fail(terminates, "terminateApp must come after stopRecording")
	}

	startStep, ok := f.Steps[start].(*flow.StartRecordingStep)
	if !ok {
		return
	}
	ceiling := startStep.Recording.MaxDuration()
	var dwell time.Duration
	for _, step := range f.Steps[start+1 : stop] {
		dwell += worstCase(step)
	}
	if ceiling > 0 && dwell > ceiling {
		c.fail(start, "steps inside the recording window can take up to %s, above the %s ceiling", dwell, ceiling)
	}
}

// worstCase is the longest a step can hold the flow: its sleep, element wait
// or press duration.
func worstCase(step flow.Step) time.Duration {
	switch s := step.(type) {
	case *flow.SleepStep:
		return s.Duration()
	case flow.ElementStep:
		return s.WaitSpec().Timeout()
	case *flow.GestureStep:
		return time.Duration(s.PressDurationMs) * time.Millisecond
	}
	return 0
}
