package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"go.uber.org/zap"
)

// screenshotTimeout bounds the best-effort failure screenshot.
const screenshotTimeout = 10 * time.Second

// FlowRunner executes the steps of a single flow on one session.
type FlowRunner struct {
	session core.Session
	locator *Locator
	actions *Actions
	window  *RecordingWindow
	config  RunnerConfig
	log     *zap.Logger
	runID   string

	phase   flow.Phase
	capture *core.CaptureArtifact
	shot    bool
}

// NewFlowRunner wires the locator, actions and recording window on session.
func NewFlowRunner(session core.Session, cfg RunnerConfig, runID string) *FlowRunner {
	cfg = cfg.withDefaults()
	log := cfg.Logger.With(zap.String("runId", runID))
	locator := NewLocator(session, cfg.PollInterval, log)
	return &FlowRunner{
		session: session,
		locator: locator,
		actions: NewActions(session, locator, log),
		window:  NewRecordingWindow(session, cfg.Clock, log),
		config:  cfg,
		log:     log,
		runID:   runID,
		phase:   flow.PhaseStart,
	}
}

// Phase returns the last phase reached.
func (fr *FlowRunner) Phase() flow.Phase {
	return fr.phase
}

// Run executes the flow. Steps after the first required failure are skipped
// and the failure is returned.
func (fr *FlowRunner) Run(ctx context.Context, f *flow.Flow) (*core.FlowResult, error) {
	result := &core.FlowResult{
		Name:      f.Config.Name,
		StartTime: fr.config.Clock(),
		Steps:     make([]core.StepResult, 0, len(f.Steps)),
	}
	if result.Name == "" {
		result.Name = filepath.Base(f.SourcePath)
	}

	var flowErr error
	for i, step := range f.Steps {
		if ctx.Err() != nil {
			flowErr = core.ErrCancelled.WithCause(ctx.Err())
			fr.log.Error("flow cancelled", zap.Int("step", i+1), zap.Error(ctx.Err()))
			fr.skipRemaining(result, f.Steps, i)
			if att, ok := fr.captureScreenshot(ctx); ok {
				result.Steps[i].Attachments = append(result.Steps[i].Attachments, att)
			}
			break
		}

		sr, err := fr.executeStep(ctx, i, step)
		result.Steps = append(result.Steps, sr)

		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(i, step.Describe(), sr.Status, sr.Duration, sr.Error)
		}

		if err == nil || sr.Status == core.StatusWarned {
			continue
		}
		flowErr = err
		fr.skipRemaining(result, f.Steps, i+1)
		break
	}

	result.Capture = fr.capture
	result.Phase = fr.phase.String()
	result.Duration = fr.config.Clock().Sub(result.StartTime)
	result.ComputeSummary()
	result.Status = result.AggregateStatus()
	if flowErr != nil {
		result.Status = core.StatusFailed
		result.Error = flowErr.Error()
	}
	return result, flowErr
}

func (fr *FlowRunner) skipRemaining(result *core.FlowResult, steps []flow.Step, from int) {
	for j := from; j < len(steps); j++ {
		result.Steps = append(result.Steps, core.StepResult{
			Step:    steps[j],
			Index:   j,
			Command: string(steps[j].Type()),
			Label:   steps[j].Label(),
			Status:  core.StatusSkipped,
			Message: steps[j].Describe(),
		})
	}
}

// executeStep runs one step and records its outcome.
func (fr *FlowRunner) executeStep(ctx context.Context, idx int, step flow.Step) (core.StepResult, error) {
	sr := core.StepResult{
		Step:      step,
		Index:     idx,
		Command:   string(step.Type()),
		Label:     step.Label(),
		Status:    core.StatusRunning,
		StartTime: fr.config.Clock(),
		Message:   step.Describe(),
	}
	log := fr.log.With(zap.Int("step", idx+1), zap.String("command", sr.Command))
	log.Debug("step started", zap.String("description", sr.Message))

	target := step.Phase()
	var err error
	if target != flow.PhaseNone && !target.After(fr.phase) {
		err = core.ErrInvalidTransition.WithMessagef("cannot move from %s to %s", fr.phase, target)
	} else {
		err = fr.dispatch(ctx, step)
	}
	sr.Duration = fr.config.Clock().Sub(sr.StartTime)

	if err == nil {
		sr.Status = core.StatusPassed
		if target != flow.PhaseNone {
			fr.advance(target)
		}
		log.Info("step passed", zap.Duration("duration", sr.Duration))
		return sr, nil
	}

	sr.Error = err.Error()
	sr.Category = core.CategoryOf(err)
	if step.IsOptional() && !core.IsCode(err, core.CodeCancelled) && !core.IsCode(err, core.CodeInvalidTransition) {
		sr.Status = core.StatusWarned
		log.Warn("optional step failed", zap.Error(err))
		return sr, err
	}

	sr.Status = core.StatusFailed
	log.Error("step failed", zap.Error(err))
	if att, ok := fr.captureScreenshot(ctx); ok {
		sr.Attachments = append(sr.Attachments, att)
	}
	return sr, err
}

func (fr *FlowRunner) advance(p flow.Phase) {
	from := fr.phase
	fr.phase = p
	fr.log.Info("phase reached", zap.Stringer("from", from), zap.Stringer("phase", p))
	if fr.config.OnPhase != nil {
		fr.config.OnPhase(p)
	}
}

// dispatch runs step. Inside an active capture, steps other than sleeps and
// the stop are bounded by the time left before the ceiling.
func (fr *FlowRunner) dispatch(ctx context.Context, step flow.Step) error {
	if !fr.window.Active() || !boundedByWindow(step) {
		return fr.perform(ctx, step)
	}

	left := fr.window.Remaining()
	deadline := time.Now().Add(left)
	stepCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	err := fr.perform(stepCtx, step)
	// Waits take their last poll shortly before the deadline they share.
	if err != nil && ctx.Err() == nil && time.Until(deadline) < MaxPollInterval {
		return core.ErrCaptureFailure.
			WithMessagef("%s did not finish in the %s left before the recording ceiling", step.Describe(), left.Round(time.Millisecond)).
			WithCause(context.DeadlineExceeded)
	}
	return err
}

// boundedByWindow reports whether step shares the capture deadline. Sleeps are
// clamped instead and the stop must always reach the device.
func boundedByWindow(step flow.Step) bool {
	switch step.(type) {
	case *flow.SleepStep, *flow.StopRecordingStep:
		return false
	}
	return true
}

//nolint:gocyclo
func (fr *FlowRunner) perform(ctx context.Context, step flow.Step) error {
	switch s := step.(type) {
	case *flow.WaitAndClickStep:
		return fr.actions.Click(ctx, s.Element, s.Wait)

	case *flow.WaitAndTypeStep:
		return fr.actions.Type(ctx, s.Element, s.Wait, s.Value, s.Mask)

	case *flow.WaitAndMatchStep:
		_, err := fr.locator.Locate(ctx, s.Element, s.WaitSpec())
		return err

	case *flow.RepeatClickStep:
		return fr.actions.ClickTimes(ctx, s.Element, s.Wait, s.Times)

	case *flow.GestureStep:
		return fr.actions.Gesture(ctx, s.Points, time.Duration(s.PressDurationMs)*time.Millisecond)

	case *flow.SleepStep:
		d := fr.window.Clamp(s.Duration())
		if d < s.Duration() {
			fr.log.Debug("sleep clamped to recording ceiling", zap.Duration("requested", s.Duration()), zap.Duration("clamped", d))
		}
		if err := fr.config.Sleep(ctx, d); err != nil {
			return core.ErrCancelled.WithCause(err)
		}
		return nil

	case *flow.StartRecordingStep:
		return fr.window.Start(ctx, s.Recording)

	case *flow.StopRecordingStep:
		artifact, err := fr.window.Stop(ctx)
		if err != nil {
			return err
		}
		fr.capture = artifact
		return nil

	case *flow.TerminateAppStep:
		if fr.window.Active() {
			return core.ErrInvalidTransition.WithMessage("cannot terminate the app while recording")
		}
		if err := fr.session.TerminateApp(ctx, s.AppID); err != nil {
			if ctx.Err() != nil {
				return core.ErrCancelled.WithCause(ctx.Err())
			}
			return core.ErrActionFailure.WithMessagef("terminate %s", s.AppID).WithCause(err)
		}
		return nil
	}

	return core.ErrConfiguration.WithMessagef("unsupported step type: %s", step.Type())
}

// captureScreenshot stores one screenshot per run after the first failure.
// It survives a cancelled run context.
func (fr *FlowRunner) captureScreenshot(ctx context.Context) (core.Attachment, bool) {
	if fr.shot || fr.config.ScreenshotDir == "" {
		return core.Attachment{}, false
	}
	fr.shot = true

	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	data, err := fr.session.Screenshot(shotCtx)
	if err != nil {
		fr.log.Warn("failed to capture error screenshot", zap.Error(err))
		return core.Attachment{}, false
	}
	if err := os.MkdirAll(fr.config.ScreenshotDir, 0o755); err != nil {
		fr.log.Warn("failed to create screenshot directory", zap.Error(err))
		return core.Attachment{}, false
	}
	path := filepath.Join(fr.config.ScreenshotDir, fmt.Sprintf("error-%s.png", fr.runID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fr.log.Warn("failed to write error screenshot", zap.Error(err))
		return core.Attachment{}, false
	}
	fr.log.Info("error screenshot saved", zap.String("path", path))
	return core.NewScreenshotAttachment(path, data), true
}
