package flow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Phase is a state of the recorder flow. Phases only move forward.
type Phase int

// Phase values in flow order. PhaseNone marks a step that does not advance
// the flow.
const (
	PhaseNone Phase = iota
	PhaseStart
	PhaseAgreementDismissed
	PhaseLocaleSelected
	PhaseLoginScreenShown
	PhaseAuthenticated
	PhaseNotificationDismissed
	PhaseHomeTutorialHandled
	PhaseCameraSelected
	PhaseStreamReady
	PhaseFullscreenEntered
	PhaseControlsHidden
	PhaseRecording
	PhaseTerminated
	PhasePublished
)

var phaseNames = map[Phase]string{
	PhaseNone:                  "",
	PhaseStart:                 "Start",
	PhaseAgreementDismissed:    "AgreementDismissed",
	PhaseLocaleSelected:        "LocaleSelected",
	PhaseLoginScreenShown:      "LoginScreenShown",
	PhaseAuthenticated:         "Authenticated",
	PhaseNotificationDismissed: "NotificationDismissed",
	PhaseHomeTutorialHandled:   "HomeTutorialHandled",
	PhaseCameraSelected:        "CameraSelected",
	PhaseStreamReady:           "StreamReady",
	PhaseFullscreenEntered:     "FullscreenEntered",
	PhaseControlsHidden:        "ControlsHidden",
	PhaseRecording:             "Recording",
	PhaseTerminated:            "Terminated",
	PhasePublished:             "Published",
}

// String returns the phase name.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Optional reports whether the phase may be skipped entirely.
func (p Phase) Optional() bool {
	return p == PhaseLocaleSelected
}

// After reports whether p comes strictly after other.
func (p Phase) After(other Phase) bool {
	return p > other
}

// ParsePhase converts a phase name to a Phase.
func ParsePhase(name string) (Phase, error) {
	for p, n := range phaseNames {
		if n == name {
			return p, nil
		}
	}
	return PhaseNone, fmt.Errorf("unknown phase %q", name)
}

// UnmarshalYAML decodes a phase from its name.
func (p *Phase) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParsePhase(node.Value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML encodes a phase as its name.
func (p Phase) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}
