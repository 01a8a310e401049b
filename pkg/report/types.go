// Package report writes the JSON summary of a recorder run.
//
// One file per run, next to the run log:
//   - <dir>/run-<runID>.json: status, phase, per-step outcomes, publish outcome
//
// The file is written atomically so a reader polling the directory never sees a partial document.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusWarned  Status = "warned"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped || s == StatusWarned
}

// Report is the run summary document.
type Report struct {
	Version   string    `json:"version"`
	RunID     string    `json:"runId"`
	Status    Status    `json:"status"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Duration  int64     `json:"duration"` // milliseconds
	Phase     string    `json:"phase"`
	Device    Device    `json:"device"`
	App       App       `json:"app"`
	Flow      string    `json:"flow,omitempty"`
	Summary   Summary   `json:"summary"`
	Commands  []Command `json:"commands"`
	Publish   *Publish  `json:"publish,omitempty"`
	Error     string    `json:"error,omitempty"`
	LogFile   string    `json:"logFile,omitempty"`
}

// Device contains device information.
type Device struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Server   string `json:"server,omitempty"` // automation server URL
}

// App contains application information.
type App struct {
	ID string `json:"id"` // package name
}

// Summary contains step counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Warned  int `json:"warned"`
}

// Command is the outcome of one flow step.
type Command struct {
	Index      int    `json:"index"`
	Type       string `json:"type"`
	Label      string `json:"label,omitempty"`
	Status     Status `json:"status"`
	Duration   *int64 `json:"duration,omitempty"` // milliseconds, nil when the step never ran
	Error      *Error `json:"error,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
}

// Error describes a failed command.
type Error struct {
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

// Publish reports where the artifacts went.
type Publish struct {
	Backend  string  `json:"backend"`
	Video    Object  `json:"video"`
	Metadata *Object `json:"metadata,omitempty"`
}

// Object is one stored artifact.
type Object struct {
	Key    string `json:"key"`
	URL    string `json:"url,omitempty"`
	SizeKB int    `json:"sizeKB"`
	Error  string `json:"error,omitempty"`
}
