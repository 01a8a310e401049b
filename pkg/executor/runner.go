// Package executor drives a recorder flow on an automation session and hands
// the capture to a publisher.
package executor

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/moumouls/aero-4g-cam/pkg/validator"
	"github.com/oklog/ulid/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Defaults for RunnerConfig.
const (
	DefaultCloseTimeout = 30 * time.Second
	DefaultRetryDelay   = 5 * time.Second
)

// Publisher stores a finished capture.
type Publisher interface {
	Publish(ctx context.Context, artifact *core.CaptureArtifact, at time.Time) (*core.PublishResult, error)
}

// RunnerConfig configures the recorder runner.
type RunnerConfig struct {
	ScreenshotDir string        // Failure screenshots, empty disables them
	PollInterval  time.Duration // Element poll pacing
	CloseTimeout  time.Duration // Session teardown bound

	Logger *zap.Logger
	Clock  func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error

	// RetryBackOff paces RunAttempts. Defaults to a constant DefaultRetryDelay.
	RetryBackOff func() backoff.BackOff

	// Live progress callbacks
	OnStepComplete func(idx int, desc string, status core.StepStatus, duration time.Duration, err string)
	OnPhase        func(phase flow.Phase)
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	if c.RetryBackOff == nil {
		c.RetryBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(DefaultRetryDelay) }
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner executes one recorder run at a time.
type Runner struct {
	config    RunnerConfig
	factory   core.SessionFactory
	publisher Publisher
	log       *zap.Logger
	running   atomic.Bool
	newRunID  func() string
}

// New creates a Runner. Sessions come from factory, captures go to publisher.
func New(factory core.SessionFactory, publisher Publisher, cfg RunnerConfig) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		config:    cfg,
		factory:   factory,
		publisher: publisher,
		log:       cfg.Logger,
		newRunID:  newRunID,
	}
}

func newRunID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Run validates f, executes it on a fresh session, closes the session and
// publishes the capture. Only one run may be active per Runner.
func (r *Runner) Run(ctx context.Context, f *flow.Flow) (*core.RunResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, core.ErrRunInProgress
	}
	defer r.running.Store(false)

	return r.run(ctx, f, r.newRunID())
}

func (r *Runner) run(ctx context.Context, f *flow.Flow, runID string) (*core.RunResult, error) {
	result := &core.RunResult{
		RunID:     runID,
		StartTime: r.config.Clock(),
		Phase:     flow.PhaseStart.String(),
	}
	log := r.log.With(zap.String("runId", runID))
	finish := func(err error) (*core.RunResult, error) {
		result.Duration = r.config.Clock().Sub(result.StartTime)
		result.Success = err == nil
		if err != nil {
			result.Error = err.Error()
			log.Error("run failed", zap.String("phase", result.Phase), zap.Error(err))
		} else {
			log.Info("run finished", zap.String("phase", result.Phase), zap.Duration("duration", result.Duration))
		}
		return result, err
	}

	if v := validator.Validate(f); !v.IsValid() {
		return finish(v.Err())
	}

	log.Info("opening session")
	session, err := r.factory(ctx)
	if err != nil {
		if _, ok := core.AsExecutionError(err); !ok {
			err = core.ErrSessionFailure.WithCause(err)
		}
		return finish(err)
	}

	closeSession := sync.OnceFunc(func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.CloseTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			log.Warn("failed to close session", zap.Error(err))
			return
		}
		log.Debug("session closed")
	})
	defer closeSession()

	fr := NewFlowRunner(session, r.config, runID)
	flowResult, err := fr.Run(ctx, f)
	result.Flow = flowResult
	result.Phase = fr.Phase().String()
	if err != nil {
		return finish(err)
	}

	closeSession()

	if flowResult.Capture == nil {
		log.Info("flow produced no capture, nothing to publish")
		return finish(nil)
	}

	pub, err := r.publisher.Publish(ctx, flowResult.Capture, r.config.Clock())
	result.Publish = pub
	if err != nil {
		return finish(err)
	}

	result.Phase = flow.PhasePublished.String()
	if r.config.OnPhase != nil {
		r.config.OnPhase(flow.PhasePublished)
	}
	return finish(nil)
}

// RunAttempts runs f up to retries+1 times. Session and flow failures are
// retried on a new session; configuration, cancellation and publish
// failures are not.
func (r *Runner) RunAttempts(ctx context.Context, f *flow.Flow, retries int) (*core.RunResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, core.ErrRunInProgress
	}
	defer r.running.Store(false)

	if retries < 0 {
		retries = 0
	}

	var last *core.RunResult
	attempt := 0
	operation := func() error {
		attempt++
		result, err := r.run(ctx, f, r.newRunID())
		last = result
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		r.log.Warn("run attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", retries+1),
			zap.Duration("retryIn", next),
			zap.Error(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.config.RetryBackOff(), uint64(retries)), ctx)
	err := backoff.RetryNotify(operation, b, notify)
	return last, err
}

func retryable(err error) bool {
	for _, code := range []string{
		core.CodeConfiguration,
		core.CodeCancelled,
		core.CodePublishFailure,
		core.CodeInvalidTransition,
		core.CodeRunInProgress,
	} {
		if core.IsCode(err, code) {
			return false
		}
	}
	return true
}
