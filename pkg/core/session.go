package core

import (
	"context"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/flow"
)

// ElementHandle is a session-scoped reference to a located element.
type ElementHandle string

// PointerAction is one W3C pointer action.
type PointerAction struct {
	Type     string        // pointerMove, pointerDown, pointerUp, pause
	X, Y     int           // pointerMove only
	Duration time.Duration // pointerMove and pause
}

// Pointer action types.
const (
	PointerMove  = "pointerMove"
	PointerDown  = "pointerDown"
	PointerUp    = "pointerUp"
	PointerPause = "pause"
)

// RecordingOptions are passed to the platform screen recorder.
type RecordingOptions struct {
	VideoSize    string // WIDTHxHEIGHT, empty for device default
	TimeLimit    time.Duration
	BitRateBps   int
	ForceRestart bool
}

// Session is an exclusive automation session against one device.
// Every call honours ctx cancellation and deadline.
type Session interface {
	// FindElement returns a handle, or ErrNoSuchElement when nothing matches.
	FindElement(ctx context.Context, element flow.Element) (ElementHandle, error)
	ElementDisplayed(ctx context.Context, handle ElementHandle) (bool, error)
	ElementAttribute(ctx context.Context, handle ElementHandle, name string) (string, error)

	Click(ctx context.Context, handle ElementHandle) error
	SetValue(ctx context.Context, handle ElementHandle, value string) error
	PerformPointer(ctx context.Context, actions []PointerAction) error

	StartRecording(ctx context.Context, opts RecordingOptions) error
	// StopRecording returns the base64 encoded capture.
	StopRecording(ctx context.Context) (string, error)

	TerminateApp(ctx context.Context, appID string) error
	Screenshot(ctx context.Context) ([]byte, error)

	// Close ends the session. Implementations may assume a single call.
	Close(ctx context.Context) error
}

// SessionFactory opens a fresh session.
type SessionFactory func(ctx context.Context) (Session, error)

// Sentinel session errors, matched with errors.Is.
var (
	ErrNoSuchElement    = NewExecutionError(ErrCategoryAction, "no_such_element", "no such element")
	ErrStaleElement     = NewExecutionError(ErrCategoryAction, "stale_element", "stale element reference")
	ErrSessionNotActive = NewExecutionError(ErrCategoryConnection, "invalid_session", "session is not active")
)
