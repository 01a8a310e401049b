package appium

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config configures session creation.
type Config struct {
	ServerURL      string
	Capabilities   map[string]interface{}
	ConnectTimeout time.Duration // bound of each creation attempt
	ConnectRetries int           // retries after the first failed attempt
	Orientation    string        // LANDSCAPE or PORTRAIT, empty to leave as is

	newBackOff func() backoff.BackOff
}

// DefaultServerURL is the local Appium server.
const DefaultServerURL = "http://127.0.0.1:4723"

// DefaultConfig returns the recorder connection settings.
func DefaultConfig() Config {
	return Config{
		ServerURL:      DefaultServerURL,
		Capabilities:   Capabilities(CapabilityOptions{}),
		ConnectTimeout: 120 * time.Second,
		ConnectRetries: 3,
		Orientation:    "LANDSCAPE",
	}
}

// Session implements core.Session on an Appium server.
type Session struct {
	client *Client
	log    *zap.Logger
}

var _ core.Session = (*Session)(nil)

// Open creates a session, retrying with exponential backoff.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	newBackOff := cfg.newBackOff
	if newBackOff == nil {
		newBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}

	client := NewClient(cfg.ServerURL)
	attempt := 0
	connect := func() error {
		attempt++
		attemptCtx := ctx
		if cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
			defer cancel()
		}
		err := client.Connect(attemptCtx, cfg.Capabilities)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	retries := cfg.ConnectRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(retries)), ctx)
	err := backoff.RetryNotify(connect, policy, func(err error, wait time.Duration) {
		log.Warn("session creation failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.ErrCancelled.WithCause(ctx.Err())
		}
		return nil, core.ErrSessionFailure.WithCause(err).WithDetails(map[string]interface{}{
			"server":   cfg.ServerURL,
			"attempts": attempt,
		})
	}
	log.Info("session created", zap.String("session", client.SessionID()), zap.Int("attempts", attempt))

	s := &Session{client: client, log: log}
	if err := client.SetImplicitWait(ctx, 0); err != nil {
		log.Warn("could not disable implicit wait", zap.Error(err))
	}
	if cfg.Orientation != "" {
		if err := client.SetOrientation(ctx, cfg.Orientation); err != nil {
			log.Warn("could not set orientation", zap.String("orientation", cfg.Orientation), zap.Error(err))
		}
	}
	return s, nil
}

// NewFactory returns a factory opening a fresh session per call.
func NewFactory(cfg Config, log *zap.Logger) core.SessionFactory {
	return func(ctx context.Context) (core.Session, error) {
		return Open(ctx, cfg, log)
	}
}

// using maps a locator strategy to its W3C name.
func using(strategy flow.Strategy) string {
	switch strategy {
	case flow.StrategyXPath:
		return "xpath"
	case flow.StrategyAccessibility:
		return "accessibility id"
	case flow.StrategyUIAutomator:
		return "-android uiautomator"
	default:
		return "id"
	}
}

// FindElement locates element once, without waiting.
func (s *Session) FindElement(ctx context.Context, element flow.Element) (core.ElementHandle, error) {
	strategy, value := element.Strategy()
	id, err := s.client.FindElement(ctx, using(strategy), value)
	if err != nil {
		return "", err
	}
	return core.ElementHandle(id), nil
}

// ElementDisplayed reports element visibility.
func (s *Session) ElementDisplayed(ctx context.Context, handle core.ElementHandle) (bool, error) {
	return s.client.IsElementDisplayed(ctx, string(handle))
}

// ElementAttribute reads one attribute.
func (s *Session) ElementAttribute(ctx context.Context, handle core.ElementHandle, name string) (string, error) {
	return s.client.GetElementAttribute(ctx, string(handle), name)
}

// Click taps an element.
func (s *Session) Click(ctx context.Context, handle core.ElementHandle) error {
	return s.client.ClickElement(ctx, string(handle))
}

// SetValue replaces the text of an input.
func (s *Session) SetValue(ctx context.Context, handle core.ElementHandle, value string) error {
	return s.client.SetElementValue(ctx, string(handle), value)
}

// PerformPointer sends a touch pointer sequence.
func (s *Session) PerformPointer(ctx context.Context, actions []core.PointerAction) error {
	w3c := make([]map[string]interface{}, 0, len(actions))
	for _, a := range actions {
		switch a.Type {
		case core.PointerMove:
			w3c = append(w3c, map[string]interface{}{
				"type":     core.PointerMove,
				"duration": a.Duration.Milliseconds(),
				"x":        a.X,
				"y":        a.Y,
				"origin":   "viewport",
			})
		case core.PointerDown, core.PointerUp:
			w3c = append(w3c, map[string]interface{}{"type": a.Type, "button": 0})
		case core.PointerPause:
			w3c = append(w3c, map[string]interface{}{"type": a.Type, "duration": a.Duration.Milliseconds()})
		default:
			return errors.Errorf("unsupported pointer action %q", a.Type)
		}
	}
	return s.client.PerformTouchActions(ctx, w3c)
}

// StartRecording starts the device screen recorder.
func (s *Session) StartRecording(ctx context.Context, opts core.RecordingOptions) error {
	options := map[string]interface{}{
		"timeLimit": int(opts.TimeLimit.Seconds()),
	}
	if opts.VideoSize != "" {
		options["videoSize"] = opts.VideoSize
	}
	if opts.BitRateBps > 0 {
		options["bitRate"] = opts.BitRateBps
	}
	if opts.ForceRestart {
		options["forceRestart"] = true
	}
	return s.client.StartRecordingScreen(ctx, options)
}

// StopRecording returns the base64 encoded recording.
func (s *Session) StopRecording(ctx context.Context) (string, error) {
	return s.client.StopRecordingScreen(ctx)
}

// TerminateApp stops the application with mobile: terminateApp.
func (s *Session) TerminateApp(ctx context.Context, appID string) error {
	_, err := s.client.ExecuteMobile(ctx, "terminateApp", map[string]interface{}{
		"appId": appID,
	})
	return err
}

// Screenshot captures the screen as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.client.Screenshot(ctx)
}

// Close deletes the session.
func (s *Session) Close(ctx context.Context) error {
	id := s.client.SessionID()
	err := s.client.Disconnect(ctx)
	if err != nil {
		s.log.Warn("session close failed", zap.String("session", id), zap.Error(err))
		return err
	}
	s.log.Info("session closed", zap.String("session", id))
	return nil
}
