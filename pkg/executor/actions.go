package executor

import (
	"context"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/moumouls/aero-4g-cam/pkg/redactor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// maxRelocations bounds how often a stale handle is re-resolved for one action.
const maxRelocations = 2

// Actions performs clicks, text entry and gestures on located elements.
type Actions struct {
	session core.Session
	locator *Locator
	log     *zap.Logger
}

// NewActions creates Actions sharing locator's session.
func NewActions(session core.Session, locator *Locator, log *zap.Logger) *Actions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Actions{session: session, locator: locator, log: log}
}

// Click waits for element and taps it.
func (a *Actions) Click(ctx context.Context, element flow.Element, wait flow.WaitSpec) error {
	return a.ClickTimes(ctx, element, wait, 1)
}

// ClickTimes waits for element once and taps it times times, re-locating
// when the handle goes stale.
func (a *Actions) ClickTimes(ctx context.Context, element flow.Element, wait flow.WaitSpec, times int) error {
	handle, err := a.locator.Locate(ctx, element, wait)
	if err != nil {
		return err
	}
	for i := 0; i < times; i++ {
		handle, err = a.withRelocation(ctx, element, wait, handle, "click", nil, func(h core.ElementHandle) error {
			return a.session.Click(ctx, h)
		})
		if err != nil {
			return err
		}
	}
	a.log.Debug("clicked", zap.String("element", element.String()), zap.Int("times", times))
	return nil
}

// Type waits for element and sets its text. When mask is set the value never
// reaches logs or returned errors.
func (a *Actions) Type(ctx context.Context, element flow.Element, wait flow.WaitSpec, value string, mask bool) error {
	var secrets []string
	shown := zap.String("value", value)
	if mask {
		secrets = []string{value}
		shown = zap.Stringer("value", redactor.String(value))
	}

	handle, err := a.locator.Locate(ctx, element, wait)
	if err != nil {
		return err
	}
	_, err = a.withRelocation(ctx, element, wait, handle, "type into", secrets, func(h core.ElementHandle) error {
		return a.session.SetValue(ctx, h, value)
	})
	if err != nil {
		return err
	}
	a.log.Debug("typed", zap.String("element", element.String()), shown)
	return nil
}

// withRelocation runs act, re-locating element on stale handles. It returns
// the handle that last succeeded.
func (a *Actions) withRelocation(
	ctx context.Context,
	element flow.Element,
	wait flow.WaitSpec,
	handle core.ElementHandle,
	verb string,
	secrets []string,
	act func(core.ElementHandle) error,
) (core.ElementHandle, error) {
	for relocations := 0; ; relocations++ {
		err := act(handle)
		if err == nil {
			return handle, nil
		}
		if ctx.Err() != nil {
			return "", core.ErrCancelled.WithCause(ctx.Err())
		}
		if !errors.Is(err, core.ErrStaleElement) || relocations >= maxRelocations {
			return "", core.ErrActionFailure.
				WithMessagef("%s %s", verb, element).
				WithCause(redactor.ScrubError(err, secrets...))
		}

		a.log.Debug("stale element, re-locating", zap.String("element", element.String()), zap.Int("relocation", relocations+1))
		handle, err = a.locator.Locate(ctx, element, wait)
		if err != nil {
			return "", err
		}
	}
}

// Gesture presses at points[0], drags through the remaining points, holds for
// press and releases at the last point.
func (a *Actions) Gesture(ctx context.Context, points []flow.Point, press time.Duration) error {
	if len(points) == 0 {
		return core.ErrConfiguration.WithMessage("gesture has no points")
	}

	actions := []core.PointerAction{
		{Type: core.PointerMove, X: points[0].X, Y: points[0].Y},
		{Type: core.PointerDown},
	}
	for _, p := range points[1:] {
		actions = append(actions, core.PointerAction{Type: core.PointerMove, X: p.X, Y: p.Y, Duration: 100 * time.Millisecond})
	}
	if press > 0 {
		actions = append(actions, core.PointerAction{Type: core.PointerPause, Duration: press})
	}
	actions = append(actions, core.PointerAction{Type: core.PointerUp})

	if err := a.session.PerformPointer(ctx, actions); err != nil {
		if ctx.Err() != nil {
			return core.ErrCancelled.WithCause(ctx.Err())
		}
		return core.ErrActionFailure.WithMessagef("gesture at (%d,%d)", points[0].X, points[0].Y).WithCause(err)
	}
	return nil
}
