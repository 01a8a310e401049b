package executor

import (
	"context"
	"sync"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
)

func base(t flow.StepType, phase flow.Phase) flow.BaseStep {
	return flow.BaseStep{StepType: t, StepPhase: phase}
}

func click(locator string, phase flow.Phase) *flow.WaitAndClickStep {
	return &flow.WaitAndClickStep{
		BaseStep: base(flow.StepWaitAndClick, phase),
		Element:  flow.Element{Locator: locator},
		Wait:     flow.WaitFor(300),
	}
}

func optionalClick(locator string, phase flow.Phase) *flow.WaitAndClickStep {
	s := click(locator, phase)
	s.Optional = true
	return s
}

func typeInto(locator, value string, mask bool) *flow.WaitAndTypeStep {
	return &flow.WaitAndTypeStep{
		BaseStep: base(flow.StepWaitAndType, flow.PhaseNone),
		Element:  flow.Element{Locator: locator},
		Wait:     flow.WaitFor(300),
		Value:    value,
		Mask:     mask,
	}
}

func sleep(ms int) *flow.SleepStep {
	return &flow.SleepStep{BaseStep: base(flow.StepSleep, flow.PhaseNone), DurationMs: ms}
}

func startRecording(maxSeconds int) *flow.StartRecordingStep {
	rc := flow.DefaultRecordingConfig()
	rc.MaxDurationSeconds = maxSeconds
	return &flow.StartRecordingStep{BaseStep: base(flow.StepStartRecording, flow.PhaseRecording), Recording: rc}
}

func stopRecording() *flow.StopRecordingStep {
	return &flow.StopRecordingStep{BaseStep: base(flow.StepStopRecording, flow.PhaseNone)}
}

func terminate(appID string) *flow.TerminateAppStep {
	return &flow.TerminateAppStep{BaseStep: base(flow.StepTerminateApp, flow.PhaseTerminated), AppID: appID}
}

func repeatClick(locator string, times int, phase flow.Phase) *flow.RepeatClickStep {
	return &flow.RepeatClickStep{
		BaseStep: base(flow.StepRepeatClick, phase),
		Element:  flow.Element{Locator: locator},
		Wait:     flow.WaitFor(300),
		Times:    times,
	}
}

func tap(x, y int) *flow.GestureStep {
	return &flow.GestureStep{
		BaseStep:        base(flow.StepGesture, flow.PhaseNone),
		Points:          []flow.Point{{X: x, Y: y}},
		PressDurationMs: 50,
	}
}

// recorderFlow is a login-to-publish flow reaching every phase.
func recorderFlow() *flow.Flow {
	email := typeInto("email", "user@example.com", false)
	email.StepPhase = flow.PhaseLoginScreenShown
	return &flow.Flow{
		SourcePath: "recorder.yaml",
		Config:     flow.Config{AppID: "cn.ubia.ubox", Name: "recorder"},
		Steps: []flow.Step{
			click("agree", flow.PhaseAgreementDismissed),
			optionalClick("locale", flow.PhaseLocaleSelected),
			email,
			typeInto("password", "hunter2", true),
			click("login", flow.PhaseAuthenticated),
			optionalClick("notification", flow.PhaseNotificationDismissed),
			tap(1180, 80),
			repeatClick("tutorial", 3, flow.PhaseHomeTutorialHandled),
			click("camera", flow.PhaseCameraSelected),
			click("stream", flow.PhaseStreamReady),
			click("fullscreen", flow.PhaseFullscreenEntered),
			click("controls", flow.PhaseControlsHidden),
			startRecording(30),
			sleep(1000),
			stopRecording(),
			terminate("cn.ubia.ubox"),
		},
	}
}

// fakeClock advances only through Sleep.
type fakeClock struct {
	mu       sync.Mutex
	now      time.Time
	overhead time.Duration
	slept    []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d + c.overhead)
	return nil
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// fakePublisher records publish calls and checks the session was closed first.
type fakePublisher struct {
	mu           sync.Mutex
	artifacts    []*core.CaptureArtifact
	times        []time.Time
	closedBefore []bool
	session      func() interface{ CloseCount() int }
	err          error
}

func (p *fakePublisher) Publish(_ context.Context, artifact *core.CaptureArtifact, at time.Time) (*core.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.artifacts = append(p.artifacts, artifact)
	p.times = append(p.times, at)
	if p.session != nil {
		p.closedBefore = append(p.closedBefore, p.session().CloseCount() == 1)
	}
	result := &core.PublishResult{
		Backend: "fake",
		Video:   core.ObjectResult{Key: core.DefaultVideoKey, SizeKB: artifact.Size() / 1024},
	}
	if p.err != nil {
		result.Video.Key = ""
		result.Video.Error = p.err.Error()
		return result, p.err
	}
	return result, nil
}

func (p *fakePublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.artifacts)
}
