package flow

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultWaitMs is applied to element steps that do not set a timeout.
const DefaultWaitMs = 10000

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single YAML flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses YAML flow content. A leading document separated by "---"
// holds the flow config.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))

	flow := &Flow{
		SourcePath: sourcePath,
	}

	switch len(parts) {
	case 0:
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    1,
			Message: "empty flow file",
		}
	case 1:
		if err := parseSteps(parts[0], flow); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal([]byte(parts[0]), &flow.Config); err != nil {
			return nil, &ParseError{
				Path:    sourcePath,
				Message: fmt.Sprintf("invalid config: %v", err),
			}
		}
		if err := parseSteps(parts[1], flow); err != nil {
			return nil, err
		}
	}

	return flow, nil
}

func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "---" && strings.TrimLeft(line, " \t") == "---" {
			if strings.TrimSpace(current.String()) != "" {
				parts = append(parts, current.String())
			}
			current.Reset()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, current.String())
	}
	return parts
}

func parseSteps(content string, flow *Flow) error {
	var rawSteps []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawSteps); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid steps: %v", err),
		}
	}

	for i := range rawSteps {
		step, err := parseStep(&rawSteps[i], flow.SourcePath)
		if err != nil {
			return err
		}
		flow.Steps = append(flow.Steps, step)
	}
	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Bare command names such as "- stopRecording"
	if node.Kind == yaml.ScalarNode {
		if !isStepType(node.Value) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", node.Value),
			}
		}
		return decodeStep(StepType(node.Value), &yaml.Node{Kind: yaml.MappingNode}, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return decodeStep(StepType(key), node.Content[i+1], sourcePath)
		}
	}
	return nil, &ParseError{
		Path:    sourcePath,
		Line:    node.Line,
		Message: "unknown step type",
	}
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepWaitAndClick, StepWaitAndType, StepWaitAndMatch, StepGesture, StepSleep,
		StepRepeatClick, StepStartRecording, StepStopRecording, StepTerminateApp:
		return true
	}
	return false
}

//nolint:gocyclo
func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	scalar := valueNode.Kind == yaml.ScalarNode

	decode := func(v interface{}) error {
		if err := valueNode.Decode(v); err != nil {
			return wrapParseError(sourcePath, valueNode.Line, err)
		}
		return nil
	}

	switch stepType {
	case StepWaitAndClick:
		var s WaitAndClickStep
		if scalar {
			s.Element.Locator = valueNode.Value
		} else if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		s.Wait = withDefaultWait(s.Wait)
		return &s, nil

	case StepWaitAndType:
		var s WaitAndTypeStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		s.Wait = withDefaultWait(s.Wait)
		return &s, nil

	case StepWaitAndMatch:
		var s WaitAndMatchStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		s.Wait = withDefaultWait(s.Wait)
		return &s, nil

	case StepRepeatClick:
		var s RepeatClickStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		s.Wait = withDefaultWait(s.Wait)
		return &s, nil

	case StepGesture:
		var s GestureStep
		if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepSleep:
		var s SleepStep
		if scalar {
			ms, err := strconv.Atoi(valueNode.Value)
			if err != nil {
				return nil, wrapParseError(sourcePath, valueNode.Line, fmt.Errorf("invalid sleep duration %q", valueNode.Value))
			}
			s.DurationMs = ms
		} else if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepStartRecording:
		s := StartRecordingStep{Recording: DefaultRecordingConfig()}
		if !scalar {
			if err := decode(&s); err != nil {
				return nil, err
			}
		}
		s.StepType = stepType
		return &s, nil

	case StepStopRecording:
		var s StopRecordingStep
		if !scalar {
			if err := decode(&s); err != nil {
				return nil, err
			}
		}
		s.StepType = stepType
		return &s, nil

	case StepTerminateApp:
		var s TerminateAppStep
		if scalar {
			s.AppID = valueNode.Value
		} else if err := decode(&s); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil
	}

	return nil, &ParseError{
		Path:    sourcePath,
		Line:    valueNode.Line,
		Message: fmt.Sprintf("unsupported step type: %s", stepType),
	}
}

func withDefaultWait(w WaitSpec) WaitSpec {
	if w.TimeoutMs == 0 {
		w.TimeoutMs = DefaultWaitMs
	}
	if w.Condition == "" {
		w.Condition = ConditionExists
	}
	return w
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// ExpandEnv replaces ${VAR} references in step values and app ids. Flow env
// entries take precedence over lookup.
func ExpandEnv(f *Flow, lookup func(string) (string, bool)) {
	resolve := func(key string) string {
		if v, ok := f.Config.Env[key]; ok {
			return v
		}
		if lookup != nil {
			if v, ok := lookup(key); ok {
				return v
			}
		}
		return ""
	}

	if f.Config.AppID != "" {
		f.Config.AppID = os.Expand(f.Config.AppID, resolve)
	}
	for _, step := range f.Steps {
		switch s := step.(type) {
		case *WaitAndTypeStep:
			s.Value = os.Expand(s.Value, resolve)
		case *TerminateAppStep:
			if s.AppID == "" {
				s.AppID = f.Config.AppID
			}
			s.AppID = os.Expand(s.AppID, resolve)
		}
	}
}
