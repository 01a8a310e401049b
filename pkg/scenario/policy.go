package scenario

import (
	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
)

// TutorialStrategy selects how onboarding tutorials are dismissed.
type TutorialStrategy string

// Tutorial strategies. The app has shipped both tutorial behaviours.
const (
	// TutorialClicks taps the tutorial container a fixed number of times.
	TutorialClicks TutorialStrategy = "clicks"
	// TutorialGesture taps the skip region by coordinates, then confirms.
	// Coordinates break with layout changes, so prefer TutorialClicks.
	TutorialGesture TutorialStrategy = "gesture"
)

// Pacing selects between element waits and fixed delays.
type Pacing string

// Pacing modes.
const (
	PacingWait  Pacing = "wait"
	PacingSleep Pacing = "sleep"
)

// Policy is the set of switches distinguishing recorder variants.
type Policy struct {
	Tutorial    TutorialStrategy `yaml:"tutorial"`
	SkipLocale  bool             `yaml:"skipLocale"`
	Locale      string           `yaml:"locale"`
	LoginPacing Pacing           `yaml:"loginPacing"`
	StreamReady Pacing           `yaml:"streamReady"`

	// StreamReadyMatch, when set, waits for this attribute on the stream
	// view instead of the tutorial container.
	StreamReadyMatch *flow.Matcher `yaml:"streamReadyMatch"`

	// SkipPoint is the tutorial skip region tapped by TutorialGesture.
	SkipPoint flow.Point `yaml:"skipPoint"`
}

// DefaultPolicy is click-based tutorials, French locale and element waits.
func DefaultPolicy() Policy {
	return Policy{
		Tutorial:    TutorialClicks,
		Locale:      "France",
		LoginPacing: PacingWait,
		StreamReady: PacingWait,
		SkipPoint:   flow.Point{X: 1180, Y: 80},
	}
}

// Validate reports every invalid switch in one configuration error.
func (p Policy) Validate() error {
	var errs core.Errors
	errs.ErrIf(p.Tutorial != TutorialClicks && p.Tutorial != TutorialGesture,
		"unknown tutorial strategy %q (want %q or %q)", p.Tutorial, TutorialClicks, TutorialGesture)
	errs.ErrIf(!p.SkipLocale && p.Locale == "", "locale is required unless skipLocale is set")
	errs.ErrIf(p.LoginPacing != PacingWait && p.LoginPacing != PacingSleep,
		"unknown login pacing %q", p.LoginPacing)
	errs.ErrIf(p.StreamReady != PacingWait && p.StreamReady != PacingSleep,
		"unknown stream-ready pacing %q", p.StreamReady)
	if p.StreamReadyMatch != nil {
		errs.ErrIf(p.StreamReadyMatch.Attribute == "" || len(p.StreamReadyMatch.AnyOf) == 0,
			"streamReadyMatch needs an attribute and at least one value")
	}
	errs.ErrIf(p.Tutorial == TutorialGesture && (p.SkipPoint.X < 0 || p.SkipPoint.Y < 0),
		"skip point (%d,%d) is off screen", p.SkipPoint.X, p.SkipPoint.Y)

	if err := errs.ErrOrNil(); err != nil {
		return core.ErrConfiguration.WithMessage("invalid scenario policy").WithCause(err)
	}
	return nil
}
