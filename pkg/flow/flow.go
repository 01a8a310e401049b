// Package flow handles parsing and representation of recorder flows.
package flow

// Flow represents an ordered recorder flow.
type Flow struct {
	SourcePath string // Path to the source file, empty for built-in flows
	Config     Config // Flow configuration (appId, env, etc.)
	Steps      []Step // Steps to execute, strictly front to back
}

// Config represents flow-level configuration.
type Config struct {
	AppID string            `yaml:"appId"`
	Name  string            `yaml:"name"`
	Tags  []string          `yaml:"tags"`
	Env   map[string]string `yaml:"env"`
}

// RecordingSteps returns the indexes of the start and stop recording steps,
// or -1 when absent.
func (f *Flow) RecordingSteps() (start, stop int) {
	start, stop = -1, -1
	for i, step := range f.Steps {
		switch step.Type() {
		case StepStartRecording:
			if start < 0 {
				start = i
			}
		case StepStopRecording:
			if stop < 0 {
				stop = i
			}
		}
	}
	return start, stop
}
