package flow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_SimpleFlow(t *testing.T) {
	yaml := `
- waitAndClick: id=cn.ubia.ubox:id/ok_btn
- sleep: 1000
- stopRecording
`
	flow, err := Parse([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(flow.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(flow.Steps))
	}

	click, ok := flow.Steps[0].(*WaitAndClickStep)
	if !ok {
		t.Fatalf("expected WaitAndClickStep, got %T", flow.Steps[0])
	}
	if click.Element.Locator != "id=cn.ubia.ubox:id/ok_btn" {
		t.Errorf("expected locator id=cn.ubia.ubox:id/ok_btn, got %q", click.Element.Locator)
	}
	if click.Wait.TimeoutMs != DefaultWaitMs {
		t.Errorf("expected default wait %d, got %d", DefaultWaitMs, click.Wait.TimeoutMs)
	}
	if click.Wait.Condition != ConditionExists {
		t.Errorf("expected exists condition, got %q", click.Wait.Condition)
	}

	sleep, ok := flow.Steps[1].(*SleepStep)
	if !ok {
		t.Fatalf("expected SleepStep, got %T", flow.Steps[1])
	}
	if sleep.DurationMs != 1000 {
		t.Errorf("expected 1000ms, got %d", sleep.DurationMs)
	}

	if flow.Steps[2].Type() != StepStopRecording {
		t.Errorf("expected stopRecording, got %s", flow.Steps[2].Type())
	}
}

func TestParse_WithConfig(t *testing.T) {
	yaml := `
appId: cn.ubia.ubox
name: terrain
env:
  LOCALE: France
---
- waitAndType:
    element:
      locator: id=cn.ubia.ubox:id/et_search
      role: input
    wait:
      timeout: 10000
    value: ${LOCALE}
    phase: LocaleSelected
- terminateApp
`
	flow, err := Parse([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if flow.Config.AppID != "cn.ubia.ubox" {
		t.Errorf("expected appId=cn.ubia.ubox, got %q", flow.Config.AppID)
	}
	if flow.Config.Name != "terrain" {
		t.Errorf("expected name=terrain, got %q", flow.Config.Name)
	}

	typ := flow.Steps[0].(*WaitAndTypeStep)
	if typ.Phase() != PhaseLocaleSelected {
		t.Errorf("expected phase LocaleSelected, got %s", typ.Phase())
	}
	if typ.Element.Role != RoleInput {
		t.Errorf("expected role input, got %q", typ.Element.Role)
	}

	ExpandEnv(flow, nil)
	if typ.Value != "France" {
		t.Errorf("expected expanded value France, got %q", typ.Value)
	}
	term := flow.Steps[1].(*TerminateAppStep)
	if term.AppID != "cn.ubia.ubox" {
		t.Errorf("expected terminateApp to default to flow appId, got %q", term.AppID)
	}
}

func TestParse_AllStepTypes(t *testing.T) {
	yaml := `
- waitAndMatch:
    element:
      locator: id=cn.ubia.ubox:id/light_button
    wait:
      timeout: 60000
    match:
      attribute: enabled
      anyOf: ["true"]
    phase: StreamReady
- repeatClick:
    element:
      locator: id=cn.ubia.ubox:id/fl_container
    times: 4
- gesture:
    points:
      - {x: 100, y: 200}
      - {x: 300, y: 200}
    pressDuration: 50
- startRecording:
    width: 1280
    height: 720
    maxDuration: 60
    phase: Recording
- sleep:
    duration: 500
    label: dwell
`
	flow, err := Parse([]byte(yaml), "all.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flow.Steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(flow.Steps))
	}

	match := flow.Steps[0].(*WaitAndMatchStep)
	w := match.WaitSpec()
	if w.Condition != ConditionAttributeEquals || w.Attribute != "enabled" || !w.Matches("true") {
		t.Errorf("unexpected match wait: %+v", w)
	}

	repeat := flow.Steps[1].(*RepeatClickStep)
	if repeat.Times != 4 {
		t.Errorf("expected 4 clicks, got %d", repeat.Times)
	}

	gesture := flow.Steps[2].(*GestureStep)
	if len(gesture.Points) != 2 || gesture.Points[1].X != 300 {
		t.Errorf("unexpected gesture points: %+v", gesture.Points)
	}

	start := flow.Steps[3].(*StartRecordingStep)
	if start.Recording.MaxDurationSeconds != 60 {
		t.Errorf("expected max 60s, got %d", start.Recording.MaxDurationSeconds)
	}
	if start.Recording.BitRateBps != 1000000 {
		t.Errorf("expected default bit rate retained, got %d", start.Recording.BitRateBps)
	}
	if start.Phase() != PhaseRecording {
		t.Errorf("expected phase Recording, got %s", start.Phase())
	}

	if flow.Steps[4].Label() != "dwell" {
		t.Errorf("expected label dwell, got %q", flow.Steps[4].Label())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"empty", "", "empty flow file"},
		{"unknown scalar", "- tapOn", "unknown step type: tapOn"},
		{"unknown mapping", "- tapOn: x", "unknown step type"},
		{"bad sleep", "- sleep: soon", "invalid sleep duration"},
		{"bad phase", "- stopRecording:\n    phase: Nowhere", "unknown phase"},
		{"not a list", "waitAndClick: x", "invalid steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "bad.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	if err := os.WriteFile(path, []byte("- sleep: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	flow, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flow.SourcePath != path {
		t.Errorf("expected source path %q, got %q", path, flow.SourcePath)
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandEnv_Lookup(t *testing.T) {
	flow := &Flow{
		Config: Config{AppID: "cn.ubia.ubox"},
		Steps: []Step{
			&WaitAndTypeStep{BaseStep: BaseStep{StepType: StepWaitAndType}, Value: "${UBOX_EMAIL}", Mask: true},
		},
	}
	ExpandEnv(flow, func(key string) (string, bool) {
		if key == "UBOX_EMAIL" {
			return "a@b.c", true
		}
		return "", false
	})

	if got := flow.Steps[0].(*WaitAndTypeStep).Value; got != "a@b.c" {
		t.Errorf("expected a@b.c, got %q", got)
	}
}

func TestParseError_Error(t *testing.T) {
	withLine := &ParseError{Path: "f.yaml", Line: 3, Message: "boom"}
	if got := withLine.Error(); got != "f.yaml:3: boom" {
		t.Errorf("got %q", got)
	}
	noLine := &ParseError{Path: "f.yaml", Message: "boom"}
	if got := noLine.Error(); got != "f.yaml: boom" {
		t.Errorf("got %q", got)
	}
}
