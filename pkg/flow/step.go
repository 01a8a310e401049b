package flow

import (
	"fmt"
	"time"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	StepWaitAndClick   StepType = "waitAndClick"
	StepWaitAndType    StepType = "waitAndType"
	StepWaitAndMatch   StepType = "waitAndMatch"
	StepGesture        StepType = "gesture"
	StepSleep          StepType = "sleep"
	StepRepeatClick    StepType = "repeatClick"
	StepStartRecording StepType = "startRecording"
	StepStopRecording  StepType = "stopRecording"
	StepTerminateApp   StepType = "terminateApp"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
	// Phase is the state the flow reaches once the step completes,
	// PhaseNone when the step does not advance it.
	Phase() Phase
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	StepPhase Phase    `yaml:"phase"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Phase returns the phase reached by the step.
func (b *BaseStep) Phase() Phase { return b.StepPhase }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// ElementStep is implemented by steps that wait for an element before acting.
type ElementStep interface {
	Step
	Target() Element
	WaitSpec() WaitSpec
}

// WaitAndClickStep waits for an element and taps it.
type WaitAndClickStep struct {
	BaseStep `yaml:",inline"`
	Element  Element  `yaml:"element"`
	Wait     WaitSpec `yaml:"wait"`
}

// Target returns the element.
func (s *WaitAndClickStep) Target() Element { return s.Element }

// WaitSpec returns the wait.
func (s *WaitAndClickStep) WaitSpec() WaitSpec { return s.Wait }

// Describe returns a human-readable description.
func (s *WaitAndClickStep) Describe() string {
	return fmt.Sprintf("click %s", s.Element)
}

// WaitAndTypeStep waits for an input and sets its value.
type WaitAndTypeStep struct {
	BaseStep `yaml:",inline"`
	Element  Element  `yaml:"element"`
	Wait     WaitSpec `yaml:"wait"`
	Value    string   `yaml:"value"`
	Mask     bool     `yaml:"mask"` // never log or report Value
}

// Target returns the element.
func (s *WaitAndTypeStep) Target() Element { return s.Element }

// WaitSpec returns the wait.
func (s *WaitAndTypeStep) WaitSpec() WaitSpec { return s.Wait }

// DisplayValue is the value as it may appear in logs.
func (s *WaitAndTypeStep) DisplayValue() string {
	if s.Mask {
		return "****"
	}
	return s.Value
}

// Describe returns a human-readable description.
func (s *WaitAndTypeStep) Describe() string {
	return fmt.Sprintf("type %q into %s", s.DisplayValue(), s.Element)
}

// WaitAndMatchStep waits until an element attribute takes one of the
// expected values.
type WaitAndMatchStep struct {
	BaseStep `yaml:",inline"`
	Element  Element  `yaml:"element"`
	Wait     WaitSpec `yaml:"wait"`
	Matcher  Matcher  `yaml:"match"`
}

// Target returns the element.
func (s *WaitAndMatchStep) Target() Element { return s.Element }

// WaitSpec returns the wait with the matcher folded in as an attribute
// condition. Without a matcher attribute the wait is used as is.
func (s *WaitAndMatchStep) WaitSpec() WaitSpec {
	w := s.Wait
	if s.Matcher.Attribute == "" {
		return w
	}
	w.Condition = ConditionAttributeEquals
	w.Attribute = s.Matcher.Attribute
	w.Values = s.Matcher.AnyOf
	return w
}

// Describe returns a human-readable description.
func (s *WaitAndMatchStep) Describe() string {
	if s.Matcher.Attribute == "" {
		return fmt.Sprintf("wait for %s", s.Element)
	}
	return fmt.Sprintf("wait for %s %s in %v", s.Element, s.Matcher.Attribute, s.Matcher.AnyOf)
}

// RepeatClickStep waits for an element once and taps it a fixed number of times.
type RepeatClickStep struct {
	BaseStep `yaml:",inline"`
	Element  Element  `yaml:"element"`
	Wait     WaitSpec `yaml:"wait"`
	Times    int      `yaml:"times"`
}

// Target returns the element.
func (s *RepeatClickStep) Target() Element { return s.Element }

// WaitSpec returns the wait.
func (s *RepeatClickStep) WaitSpec() WaitSpec { return s.Wait }

// Describe returns a human-readable description.
func (s *RepeatClickStep) Describe() string {
	return fmt.Sprintf("click %s x%d", s.Element, s.Times)
}

// Point is a screen coordinate in pixels.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// GestureStep performs a raw pointer sequence. Used where the target has no
// stable identifier.
type GestureStep struct {
	BaseStep        `yaml:",inline"`
	Points          []Point `yaml:"points"`
	PressDurationMs int     `yaml:"pressDuration"`
}

// Describe returns a human-readable description.
func (s *GestureStep) Describe() string {
	if len(s.Points) == 1 {
		return fmt.Sprintf("tap at (%d,%d)", s.Points[0].X, s.Points[0].Y)
	}
	return fmt.Sprintf("gesture through %d points", len(s.Points))
}

// SleepStep pauses the flow.
type SleepStep struct {
	BaseStep   `yaml:",inline"`
	DurationMs int `yaml:"duration"`
}

// Duration returns the pause as a duration.
func (s *SleepStep) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// Describe returns a human-readable description.
func (s *SleepStep) Describe() string {
	return fmt.Sprintf("sleep %dms", s.DurationMs)
}

// RecordingConfig configures a screen capture.
type RecordingConfig struct {
	Width              int `yaml:"width"`
	Height             int `yaml:"height"`
	MaxDurationSeconds int `yaml:"maxDuration"`
	BitRateBps         int `yaml:"bitRate"` // 0 lets the driver choose
}

// MaxRecordingSeconds is the hard ceiling accepted by the platform recorder.
const MaxRecordingSeconds = 1800

// DefaultRecordingConfig returns a 1280x720 capture capped at the platform ceiling.
func DefaultRecordingConfig() RecordingConfig {
	return RecordingConfig{
		Width:              1280,
		Height:             720,
		MaxDurationSeconds: MaxRecordingSeconds,
		BitRateBps:         1000000,
	}
}

// VideoSize formats the dimensions as WIDTHxHEIGHT, empty when unset.
func (c RecordingConfig) VideoSize() string {
	if c.Width <= 0 || c.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// MaxDuration returns the ceiling as a duration.
func (c RecordingConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSeconds) * time.Second
}

// StartRecordingStep opens the recording window.
type StartRecordingStep struct {
	BaseStep  `yaml:",inline"`
	Recording RecordingConfig `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *StartRecordingStep) Describe() string {
	return fmt.Sprintf("start recording %s (max %ds)", s.Recording.VideoSize(), s.Recording.MaxDurationSeconds)
}

// StopRecordingStep closes the recording window and yields the capture.
type StopRecordingStep struct {
	BaseStep `yaml:",inline"`
}

// TerminateAppStep stops the application under test.
type TerminateAppStep struct {
	BaseStep `yaml:",inline"`
	AppID    string `yaml:"appId"`
}

// Describe returns a human-readable description.
func (s *TerminateAppStep) Describe() string {
	return fmt.Sprintf("terminate %s", s.AppID)
}
