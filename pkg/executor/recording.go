package executor

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"go.uber.org/zap"
)

// RecordingWindow brackets one screen capture per run.
type RecordingWindow struct {
	session core.Session
	clock   func() time.Time
	log     *zap.Logger

	cfg     flow.RecordingConfig
	started time.Time
	active  bool
	used    bool
}

// NewRecordingWindow creates a window on session. A nil clock uses time.Now.
func NewRecordingWindow(session core.Session, clock func() time.Time, log *zap.Logger) *RecordingWindow {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordingWindow{session: session, clock: clock, log: log}
}

// Start begins the capture. A window opens at most once.
func (w *RecordingWindow) Start(ctx context.Context, cfg flow.RecordingConfig) error {
	if w.active || w.used {
		return core.ErrCaptureFailure.WithMessage("recording already started")
	}
	if cfg.MaxDurationSeconds < 1 || cfg.MaxDurationSeconds > flow.MaxRecordingSeconds {
		return core.ErrConfiguration.WithMessagef("recording max duration %ds outside 1..%d", cfg.MaxDurationSeconds, flow.MaxRecordingSeconds)
	}

	err := w.session.StartRecording(ctx, core.RecordingOptions{
		VideoSize:    cfg.VideoSize(),
		TimeLimit:    cfg.MaxDuration(),
		BitRateBps:   cfg.BitRateBps,
		ForceRestart: true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return core.ErrCancelled.WithCause(ctx.Err())
		}
		return core.ErrCaptureFailure.WithMessage("start recording").WithCause(err)
	}

	w.cfg = cfg
	w.started = w.clock()
	w.active = true
	w.used = true
	w.log.Info("recording started",
		zap.String("videoSize", cfg.VideoSize()),
		zap.Int("maxDurationSeconds", cfg.MaxDurationSeconds))
	return nil
}

// Stop ends the capture and returns the decoded recording.
func (w *RecordingWindow) Stop(ctx context.Context) (*core.CaptureArtifact, error) {
	if !w.active {
		return nil, core.ErrCaptureFailure.WithMessage("recording not started")
	}
	w.active = false

	payload, err := w.session.StopRecording(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.ErrCancelled.WithCause(ctx.Err())
		}
		return nil, core.ErrCaptureFailure.WithMessage("stop recording").WithCause(err)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, core.ErrCaptureFailure.WithMessage("recording payload is not valid base64").WithCause(err)
	}
	if len(data) == 0 {
		return nil, core.ErrCaptureFailure.WithMessage("recording payload is empty")
	}

	artifact := &core.CaptureArtifact{
		Payload:    data,
		StartedAt:  w.started,
		CapturedAt: w.clock(),
	}
	w.log.Info("recording stopped",
		zap.Duration("duration", artifact.Duration()),
		zap.Int("sizeKB", artifact.Size()/1024))
	return artifact, nil
}

// Active reports whether the capture is running.
func (w *RecordingWindow) Active() bool {
	return w.active
}

// Remaining is the capture time left before the ceiling.
func (w *RecordingWindow) Remaining() time.Duration {
	if !w.active {
		return 0
	}
	left := w.cfg.MaxDuration() - w.clock().Sub(w.started)
	if left < 0 {
		return 0
	}
	return left
}

// Clamp shortens d so an active capture never exceeds its ceiling.
func (w *RecordingWindow) Clamp(d time.Duration) time.Duration {
	if !w.active {
		return d
	}
	if left := w.Remaining(); d > left {
		return left
	}
	return d
}
