package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
)

func parse(t *testing.T, content string) *flow.Flow {
	t.Helper()
	f, err := flow.Parse([]byte(content), "test.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return f
}

const validFlow = `
appId: cn.ubia.ubox
---
- waitAndClick:
    element: {locator: "id=cn.ubia.ubox:id/ok_btn"}
    wait: {timeout: 30000}
    phase: AgreementDismissed
- waitAndType:
    element: {locator: "id=cn.ubia.ubox:id/login_name_edit"}
    value: user@example.com
    mask: true
    phase: LoginScreenShown
- waitAndClick:
    element: {locator: "id=cn.ubia.ubox:id/login_btn"}
    phase: Authenticated
- startRecording:
    maxDuration: 60
- sleep: 30000
- stopRecording
- terminateApp
`

func TestValidate_ValidFlow(t *testing.T) {
	f := parse(t, validFlow)
	flow.ExpandEnv(f, nil)

	result := Validate(f)
	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if result.Err() != nil {
		t.Errorf("Err() = %v, want nil", result.Err())
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name: "phase goes backwards",
			content: `
- waitAndClick: {element: {locator: a}, phase: Authenticated}
- waitAndClick: {element: {locator: b}, phase: LoginScreenShown}
`,
			wantMsg: "phase LoginScreenShown does not come after Authenticated",
		},
		{
			name: "phase repeated",
			content: `
- waitAndClick: {element: {locator: a}, phase: AgreementDismissed}
- waitAndClick: {element: {locator: b}, phase: AgreementDismissed}
`,
			wantMsg: "does not come after AgreementDismissed",
		},
		{
			name: "required phase skipped",
			content: `
- waitAndClick: {element: {locator: a}, phase: AgreementDismissed}
- waitAndClick: {element: {locator: b}, phase: Authenticated}
`,
			wantMsg: "phase Authenticated skips required phase LoginScreenShown",
		},
		{
			name:    "published by a step",
			content: `- sleep: {duration: 1, phase: Published}`,
			wantMsg: "phase Published is reached by publishing",
		},
		{
			name:    "negative timeout",
			content: `- waitAndClick: {element: {locator: a}, wait: {timeout: -5}}`,
			wantMsg: "wait timeout must be positive",
		},
		{
			name:    "empty locator",
			content: `- waitAndClick: {element: {role: button}}`,
			wantMsg: "element has no locator",
		},
		{
			name:    "attribute wait without values",
			content: `- waitAndClick: {element: {locator: a}, wait: {timeout: 5, condition: attributeEquals}}`,
			wantMsg: "attributeEquals wait needs",
		},
		{
			name:    "unknown condition",
			content: `- waitAndClick: {element: {locator: a}, wait: {timeout: 5, condition: shiny}}`,
			wantMsg: "unknown wait condition",
		},
		{
			name:    "empty typed value",
			content: `- waitAndType: {element: {locator: a}, value: ""}`,
			wantMsg: "has an empty value",
		},
		{
			name:    "zero repeat",
			content: `- repeatClick: {element: {locator: a}, times: 0}`,
			wantMsg: "repeatClick times must be at least 1",
		},
		{
			name:    "gesture without points",
			content: `- gesture: {pressDuration: 10}`,
			wantMsg: "gesture has no points",
		},
		{
			name:    "recording ceiling too high",
			content: "- startRecording: {maxDuration: 3600}\n- stopRecording",
			wantMsg: "within 1..1800 seconds",
		},
		{
			name:    "incomplete size",
			content: "- startRecording: {width: 1280, height: 0, maxDuration: 10}\n- stopRecording",
			wantMsg: "is incomplete",
		},
		{
			name:    "stop before start",
			content: "- stopRecording\n- startRecording",
			wantMsg: "stopRecording comes before startRecording",
		},
		{
			name:    "stop without start",
			content: "- stopRecording",
			wantMsg: "stopRecording without startRecording",
		},
		{
			name:    "never stopped",
			content: "- startRecording",
			wantMsg: "startRecording is never stopped",
		},
		{
			name:    "two starts",
			content: "- startRecording\n- startRecording\n- stopRecording",
			wantMsg: "only one startRecording",
		},
		{
			name:    "terminate inside window",
			content: "- startRecording\n- terminateApp: cn.ubia.ubox\n- stopRecording",
			wantMsg: "terminateApp must come after stopRecording",
		},
		{
			name:    "terminate without app",
			content: "- terminateApp",
			wantMsg: "terminateApp has no app id",
		},
		{
			name:    "dwell above ceiling",
			content: "- startRecording: {maxDuration: 10}\n- sleep: 6000\n- sleep: 6000\n- stopRecording",
			wantMsg: "above the 10s ceiling",
		},
		{
			name:    "element wait above ceiling",
			content: "- startRecording: {maxDuration: 1}\n- waitAndClick: {element: {locator: slow}, wait: {timeout: 5000}}\n- stopRecording",
			wantMsg: "can take up to 5s, above the 1s ceiling",
		},
		{
			name:    "default wait counts toward ceiling",
			content: "- startRecording: {maxDuration: 10}\n- sleep: 5000\n- waitAndMatch: {element: {locator: stream}}\n- stopRecording",
			wantMsg: "can take up to 15s, above the 10s ceiling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(parse(t, tt.content))
			if result.IsValid() {
				t.Fatal("expected validation errors")
			}
			err := result.Err()
			if !core.IsCode(err, core.CodeConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_PhaseSkipping(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "optional locale skipped",
			content: `
- waitAndClick: {element: {locator: a}, phase: AgreementDismissed}
- waitAndClick: {element: {locator: b}, phase: LoginScreenShown}
`,
		},
		{
			name: "flow starts mid-way",
			content: `
- startRecording: {maxDuration: 10, phase: Recording}
- stopRecording
- terminateApp: {appId: cn.ubia.ubox, phase: Terminated}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(parse(t, tt.content))
			if !result.IsValid() {
				t.Errorf("expected valid result, got errors: %v", result.Errors)
			}
		})
	}
}

func TestValidate_EmptyFlow(t *testing.T) {
	result := Validate(&flow.Flow{})
	if result.IsValid() {
		t.Fatal("expected error for empty flow")
	}
	if !strings.Contains(result.Errors[0].Error(), "flow: flow has no steps") {
		t.Errorf("unexpected error %v", result.Errors[0])
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("- sleep: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, result := ValidateFile(good)
	if f == nil || !result.IsValid() {
		t.Errorf("expected valid flow, got %v", result.Errors)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- nope\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, result = ValidateFile(bad)
	if f != nil || result.IsValid() {
		t.Fatal("expected parse failure")
	}
	if !strings.Contains(result.Errors[0].Error(), "parse error") {
		t.Errorf("unexpected error %v", result.Errors[0])
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{File: "f.yaml", Step: 2, Message: "boom"}
	if got := err.Error(); got != "f.yaml: step 3: boom" {
		t.Errorf("got %q", got)
	}
	err = &ValidationError{Step: -1, Message: "boom"}
	if got := err.Error(); got != "flow: boom" {
		t.Errorf("got %q", got)
	}
}
