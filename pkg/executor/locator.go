package executor

import (
	"context"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Poll pacing for element waits.
const (
	DefaultPollInterval = 200 * time.Millisecond
	MaxPollInterval     = 250 * time.Millisecond
)

// Locator resolves element descriptors against a session with bounded waits.
type Locator struct {
	session  core.Session
	interval time.Duration
	log      *zap.Logger
}

// NewLocator creates a Locator. Intervals outside (0, MaxPollInterval] fall
// back to DefaultPollInterval.
func NewLocator(session core.Session, interval time.Duration, log *zap.Logger) *Locator {
	if interval <= 0 || interval > MaxPollInterval {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{session: session, interval: interval, log: log}
}

// Locate polls until element satisfies wait or the wait expires. Session
// calls share the wait deadline, so a hung call cannot overrun it.
func (l *Locator) Locate(ctx context.Context, element flow.Element, wait flow.WaitSpec) (core.ElementHandle, error) {
	if wait.TimeoutMs <= 0 {
		return "", core.ErrConfiguration.WithMessagef("wait for %s has no positive timeout", element)
	}
	condition := wait.EffectiveCondition()

	waitCtx, cancel := context.WithTimeout(ctx, wait.Timeout())
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(l.interval), 1)
	start := time.Now()
	polls := 0
	var lastErr error

	for last := false; !last; {
		if err := limiter.Wait(waitCtx); err != nil {
			// The next token lands past the deadline: poll once more just before it.
			if !l.pauseBeforeDeadline(waitCtx) {
				break
			}
			last = true
		}
		polls++

		handle, ok, err := l.check(waitCtx, element, wait, condition)
		if ok {
			l.log.Debug("element located",
				zap.String("element", element.String()),
				zap.String("condition", string(condition)),
				zap.Int("polls", polls),
				zap.Duration("elapsed", time.Since(start)))
			return handle, nil
		}
		if errors.Is(err, core.ErrSessionNotActive) {
			return "", core.ErrActionFailure.WithMessagef("session lost while waiting for %s", element).WithCause(err)
		}
		if err != nil && waitCtx.Err() == nil {
			lastErr = err
		}
	}

	if ctx.Err() != nil {
		return "", core.ErrCancelled.WithCause(ctx.Err())
	}
	execErr := core.ErrElementTimeout.
		WithMessagef("%s not %s within %dms", element, condition, wait.TimeoutMs).
		WithDetails(map[string]interface{}{
			"locator":   element.Locator,
			"condition": string(condition),
			"timeoutMs": wait.TimeoutMs,
			"polls":     polls,
		})
	if lastErr != nil && !errors.Is(lastErr, core.ErrNoSuchElement) {
		execErr = execErr.WithCause(lastErr)
	}
	return "", execErr
}

// pauseBeforeDeadline sleeps until a quarter interval before the deadline of
// ctx. It reports false when ctx ends first.
func (l *Locator) pauseBeforeDeadline(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok || ctx.Err() != nil {
		return false
	}
	d := time.Until(deadline) - l.interval/4
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// check performs one poll. ok is true when the predicate holds.
func (l *Locator) check(ctx context.Context, element flow.Element, wait flow.WaitSpec, condition flow.Condition) (core.ElementHandle, bool, error) {
	handle, err := l.session.FindElement(ctx, element)
	if err != nil {
		return "", false, err
	}

	switch condition {
	case flow.ConditionVisible:
		displayed, err := l.session.ElementDisplayed(ctx, handle)
		if err != nil || !displayed {
			return "", false, err
		}
	case flow.ConditionAttributeEquals:
		value, err := l.session.ElementAttribute(ctx, handle, wait.Attribute)
		if err != nil || !wait.Matches(value) {
			return "", false, err
		}
	}
	return handle, true, nil
}
