// Package scenario builds the terrain camera recorder flow for the Ubox app.
package scenario

import (
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/moumouls/aero-4g-cam/pkg/redactor"
)

// AppID is the application under automation.
const AppID = "cn.ubia.ubox"

// FlowName names the built-in flow in logs and reports.
const FlowName = "terrain-camera"

const idPrefix = AppID + ":id/"

// UI elements of the Ubox app.
var (
	AgreementButton    = flow.ID(idPrefix+"ok_btn", flow.RoleButton)
	CountrySelect      = flow.ID(idPrefix+"login_country_tv", flow.RoleButton)
	CountrySearch      = flow.ID(idPrefix+"et_search", flow.RoleInput)
	CountryResult      = flow.ID(idPrefix+"tv_name", flow.RoleButton)
	PreLoginButton     = flow.ID(idPrefix+"login_tv", flow.RoleButton)
	EmailInput         = flow.ID(idPrefix+"login_name_edit", flow.RoleInput)
	PasswordInput      = flow.ID(idPrefix+"login_pwd_edit", flow.RoleInput)
	LoginButton        = flow.ID(idPrefix+"login_btn", flow.RoleButton)
	CancelNotification = flow.ID(idPrefix+"comfirm_del_device_cancel", flow.RoleButton)
	TutorialContainer  = flow.ID(idPrefix+"fl_container", flow.RoleContainer)
	CameraThumbnail    = flow.ID(idPrefix+"cameraListItemThumbnail", flow.RoleButton)
	FullscreenButton   = flow.ID(idPrefix+"full_btn", flow.RoleButton)
	ControlLayout      = flow.ID(idPrefix+"monitorLayout", flow.RoleContainer)
	LightButton        = flow.ID(idPrefix+"light_button", flow.RoleButton)
)

// Waits and repeat counts of the recorder flow.
const (
	agreementWaitMs    = 30000
	notificationWaitMs = 30000
	elementWaitMs      = 10000
	streamReadyWaitMs  = 60000

	homeTutorialClicks   = 4
	cameraTutorialClicks = 9
	gestureConfirmClicks = 2
	gesturePressMs       = 100

	settleMs          = 1000
	credentialPauseMs = 3000
	homeSettleMs      = 5000
	streamSleepMs     = 5000
)

// DefaultDwell is how long the stream is recorded.
const DefaultDwell = 30 * time.Second

// Options are the run inputs of the recorder flow.
type Options struct {
	Email     string
	Password  redactor.String
	Dwell     time.Duration
	Recording flow.RecordingConfig
}

// Build assembles the recorder flow for policy. The returned flow carries
// secrets and must not be serialized.
func Build(policy Policy, opts Options) (*flow.Flow, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Email == "" || opts.Password.Reveal() == "" {
		return nil, core.ErrConfiguration.WithMessage("recorder credentials are required")
	}
	if opts.Dwell <= 0 {
		opts.Dwell = DefaultDwell
	}
	if opts.Recording.MaxDurationSeconds == 0 {
		opts.Recording = flow.DefaultRecordingConfig()
	}
	if opts.Dwell > opts.Recording.MaxDuration() {
		return nil, core.ErrConfiguration.WithMessagef("recording duration %s exceeds the %s ceiling", opts.Dwell, opts.Recording.MaxDuration())
	}

	b := &builder{policy: policy}
	b.add(click(AgreementButton, agreementWaitMs, flow.PhaseAgreementDismissed))
	b.locale()
	b.login(opts)
	b.home()
	b.camera()
	b.record(opts)

	return &flow.Flow{
		SourcePath: FlowName,
		Config: flow.Config{
			AppID: AppID,
			Name:  FlowName,
		},
		Steps: b.steps,
	}, nil
}

type builder struct {
	policy Policy
	steps  []flow.Step
}

func (b *builder) add(steps ...flow.Step) {
	b.steps = append(b.steps, steps...)
}

// pause adds a fixed delay only under legacy sleep pacing.
func (b *builder) pause(ms int) {
	if b.policy.LoginPacing == PacingSleep {
		b.add(sleep(ms, flow.PhaseNone))
	}
}

func (b *builder) locale() {
	if b.policy.SkipLocale {
		return
	}
	b.add(
		click(CountrySelect, elementWaitMs, flow.PhaseNone),
		typeInto(CountrySearch, b.policy.Locale, false),
	)
	b.pause(settleMs)
	b.add(click(CountryResult, elementWaitMs, flow.PhaseLocaleSelected))
	b.pause(settleMs)
}

func (b *builder) login(opts Options) {
	b.add(
		click(PreLoginButton, elementWaitMs, flow.PhaseLoginScreenShown),
		typeInto(EmailInput, opts.Email, true),
	)
	b.pause(credentialPauseMs)
	b.add(typeInto(PasswordInput, opts.Password.Reveal(), true))
	b.pause(credentialPauseMs)
	b.add(click(LoginButton, elementWaitMs, flow.PhaseAuthenticated))
}

func (b *builder) home() {
	notification := click(CancelNotification, notificationWaitMs, flow.PhaseNotificationDismissed)
	notification.Optional = true
	b.add(notification)
	b.tutorial(homeTutorialClicks, flow.PhaseHomeTutorialHandled)
	b.pause(homeSettleMs)
	b.add(click(CameraThumbnail, elementWaitMs, flow.PhaseCameraSelected))
}

func (b *builder) camera() {
	switch {
	case b.policy.StreamReady == PacingSleep:
		b.add(sleep(streamSleepMs, flow.PhaseStreamReady))
	case b.policy.StreamReadyMatch != nil:
		b.add(&flow.WaitAndMatchStep{
			BaseStep: flow.BaseStep{StepType: flow.StepWaitAndMatch, StepPhase: flow.PhaseStreamReady},
			Element:  LightButton,
			Wait:     flow.WaitFor(streamReadyWaitMs),
			Matcher:  *b.policy.StreamReadyMatch,
		})
	default:
		b.add(&flow.WaitAndMatchStep{
			BaseStep: flow.BaseStep{StepType: flow.StepWaitAndMatch, StepPhase: flow.PhaseStreamReady},
			Element:  TutorialContainer,
			Wait:     flow.WaitFor(streamReadyWaitMs),
		})
	}
	b.tutorial(cameraTutorialClicks, flow.PhaseNone)
	b.add(
		sleep(settleMs, flow.PhaseNone),
		click(FullscreenButton, elementWaitMs, flow.PhaseFullscreenEntered),
		sleep(settleMs, flow.PhaseNone),
		click(ControlLayout, elementWaitMs, flow.PhaseControlsHidden),
		sleep(settleMs, flow.PhaseNone),
	)
}

// tutorial dismisses one onboarding overlay. phase is reached by its last step.
func (b *builder) tutorial(clicks int, phase flow.Phase) {
	if b.policy.Tutorial == TutorialGesture {
		b.add(
			&flow.GestureStep{
				BaseStep:        flow.BaseStep{StepType: flow.StepGesture, StepLabel: "skip tutorial"},
				Points:          []flow.Point{b.policy.SkipPoint},
				PressDurationMs: gesturePressMs,
			},
			repeatClick(TutorialContainer, gestureConfirmClicks, phase),
		)
		return
	}
	b.add(repeatClick(TutorialContainer, clicks, phase))
}

func (b *builder) record(opts Options) {
	b.add(
		&flow.StartRecordingStep{
			BaseStep:  flow.BaseStep{StepType: flow.StepStartRecording, StepPhase: flow.PhaseRecording},
			Recording: opts.Recording,
		},
		sleep(int(opts.Dwell/time.Millisecond), flow.PhaseNone),
		&flow.StopRecordingStep{BaseStep: flow.BaseStep{StepType: flow.StepStopRecording}},
		&flow.TerminateAppStep{
			BaseStep: flow.BaseStep{StepType: flow.StepTerminateApp, StepPhase: flow.PhaseTerminated},
			AppID:    AppID,
		},
	)
}

func click(e flow.Element, waitMs int, phase flow.Phase) *flow.WaitAndClickStep {
	return &flow.WaitAndClickStep{
		BaseStep: flow.BaseStep{StepType: flow.StepWaitAndClick, StepPhase: phase},
		Element:  e,
		Wait:     flow.WaitFor(waitMs),
	}
}

func repeatClick(e flow.Element, times int, phase flow.Phase) *flow.RepeatClickStep {
	return &flow.RepeatClickStep{
		BaseStep: flow.BaseStep{StepType: flow.StepRepeatClick, StepPhase: phase},
		Element:  e,
		Wait:     flow.WaitFor(elementWaitMs),
		Times:    times,
	}
}

func typeInto(e flow.Element, value string, mask bool) *flow.WaitAndTypeStep {
	return &flow.WaitAndTypeStep{
		BaseStep: flow.BaseStep{StepType: flow.StepWaitAndType},
		Element:  e,
		Wait:     flow.WaitFor(elementWaitMs),
		Value:    value,
		Mask:     mask,
	}
}

func sleep(ms int, phase flow.Phase) *flow.SleepStep {
	return &flow.SleepStep{
		BaseStep:   flow.BaseStep{StepType: flow.StepSleep, StepPhase: phase},
		DurationMs: ms,
	}
}
