// Package mock provides a scriptable session for testing without a device.
package mock

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
)

// Op names a session operation for failure injection and call logs.
type Op string

// Session operations.
const (
	OpFind           Op = "find"
	OpDisplayed      Op = "displayed"
	OpAttribute      Op = "attribute"
	OpClick          Op = "click"
	OpSetValue       Op = "setValue"
	OpPointer        Op = "pointer"
	OpStartRecording Op = "startRecording"
	OpStopRecording  Op = "stopRecording"
	OpTerminateApp   Op = "terminateApp"
	OpScreenshot     Op = "screenshot"
	OpClose          Op = "close"
)

// Failure makes an operation return Err.
type Failure struct {
	Op      Op
	Locator string // empty matches any element, or non-element operations
	Err     error
	Times   int // fail this many calls then succeed, 0 = always
	After   int // let this many matching calls succeed first
}

// Config configures mock session behavior.
type Config struct {
	// Missing locators never appear.
	Missing []string
	// Hidden locators exist but are not displayed.
	Hidden []string
	// AppearAfter delays when a locator starts existing, from session creation.
	AppearAfter map[string]time.Duration
	// Attributes maps locator to attribute name to value.
	Attributes map[string]map[string]string
	// Failures are checked in order before each operation.
	Failures []Failure
	// Recording is the video returned by StopRecording. Defaults to a small
	// placeholder; set EmptyRecording to return nothing.
	Recording      []byte
	EmptyRecording bool
	// RawRecording overrides the base64 payload verbatim.
	RawRecording string
	// CallDelay adds artificial latency per operation, honouring ctx.
	CallDelay time.Duration
}

// DefaultRecording is returned by StopRecording when Config.Recording is nil.
var DefaultRecording = []byte("mock-mp4-payload")

// Call is one logged operation.
type Call struct {
	Op     Op
	Target string // locator, app id or empty
}

// Session is a mock implementation of core.Session.
type Session struct {
	cfg     Config
	created time.Time

	mu         sync.Mutex
	handles    map[core.ElementHandle]string
	calls      []Call
	failCounts map[int]int
	matched    map[int]int
	typed      map[string]string
	pointers   [][]core.PointerAction
	recording  bool
	closeCount int
}

var _ core.Session = (*Session)(nil)

// New creates a new mock session.
func New(cfg Config) *Session {
	return &Session{
		cfg:        cfg,
		created:    time.Now(),
		handles:    map[core.ElementHandle]string{},
		failCounts: map[int]int{},
		matched:    map[int]int{},
		typed:      map[string]string{},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// enter logs the call, applies latency and returns any injected failure.
func (s *Session) enter(ctx context.Context, op Op, target string) error {
	if s.cfg.CallDelay > 0 {
		select {
		case <-time.After(s.cfg.CallDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: op, Target: target})

	if s.closeCount > 0 && op != OpClose {
		return core.ErrSessionNotActive
	}
	for i, f := range s.cfg.Failures {
		if f.Op != op || (f.Locator != "" && f.Locator != target) {
			continue
		}
		s.matched[i]++
		if s.matched[i] <= f.After {
			continue
		}
		if f.Times > 0 && s.failCounts[i] >= f.Times {
			continue
		}
		s.failCounts[i]++
		return f.Err
	}
	return nil
}

func (s *Session) locatorOf(handle core.ElementHandle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[handle]
}

// FindElement returns a handle for present elements.
func (s *Session) FindElement(ctx context.Context, element flow.Element) (core.ElementHandle, error) {
	if err := s.enter(ctx, OpFind, element.Locator); err != nil {
		return "", err
	}
	if contains(s.cfg.Missing, element.Locator) {
		return "", core.ErrNoSuchElement
	}
	if delay, ok := s.cfg.AppearAfter[element.Locator]; ok && time.Since(s.created) < delay {
		return "", core.ErrNoSuchElement
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	handle := core.ElementHandle(fmt.Sprintf("el-%d", len(s.handles)+1))
	s.handles[handle] = element.Locator
	return handle, nil
}

// ElementDisplayed reports false for hidden locators.
func (s *Session) ElementDisplayed(ctx context.Context, handle core.ElementHandle) (bool, error) {
	locator := s.locatorOf(handle)
	if err := s.enter(ctx, OpDisplayed, locator); err != nil {
		return false, err
	}
	return !contains(s.cfg.Hidden, locator), nil
}

// ElementAttribute returns configured attribute values.
func (s *Session) ElementAttribute(ctx context.Context, handle core.ElementHandle, name string) (string, error) {
	locator := s.locatorOf(handle)
	if err := s.enter(ctx, OpAttribute, locator); err != nil {
		return "", err
	}
	return s.cfg.Attributes[locator][name], nil
}

// Click records a tap.
func (s *Session) Click(ctx context.Context, handle core.ElementHandle) error {
	return s.enter(ctx, OpClick, s.locatorOf(handle))
}

// SetValue records typed text.
func (s *Session) SetValue(ctx context.Context, handle core.ElementHandle, value string) error {
	locator := s.locatorOf(handle)
	if err := s.enter(ctx, OpSetValue, locator); err != nil {
		return err
	}
	s.mu.Lock()
	s.typed[locator] = value
	s.mu.Unlock()
	return nil
}

// PerformPointer records a pointer sequence.
func (s *Session) PerformPointer(ctx context.Context, actions []core.PointerAction) error {
	if err := s.enter(ctx, OpPointer, ""); err != nil {
		return err
	}
	s.mu.Lock()
	s.pointers = append(s.pointers, append([]core.PointerAction(nil), actions...))
	s.mu.Unlock()
	return nil
}

// StartRecording starts the fake recorder.
func (s *Session) StartRecording(ctx context.Context, _ core.RecordingOptions) error {
	if err := s.enter(ctx, OpStartRecording, ""); err != nil {
		return err
	}
	s.mu.Lock()
	s.recording = true
	s.mu.Unlock()
	return nil
}

// StopRecording returns the configured recording as base64.
func (s *Session) StopRecording(ctx context.Context) (string, error) {
	if err := s.enter(ctx, OpStopRecording, ""); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.recording = false
	s.mu.Unlock()

	switch {
	case s.cfg.RawRecording != "":
		return s.cfg.RawRecording, nil
	case s.cfg.EmptyRecording:
		return "", nil
	case s.cfg.Recording != nil:
		return base64.StdEncoding.EncodeToString(s.cfg.Recording), nil
	default:
		return base64.StdEncoding.EncodeToString(DefaultRecording), nil
	}
}

// TerminateApp records app termination.
func (s *Session) TerminateApp(ctx context.Context, appID string) error {
	return s.enter(ctx, OpTerminateApp, appID)
}

// Screenshot returns a mock PNG image.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.enter(ctx, OpScreenshot, ""); err != nil {
		return nil, err
	}
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// Close counts session teardowns. Every call is counted, even failing ones.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closeCount++
	s.mu.Unlock()
	return s.enter(context.WithoutCancel(ctx), OpClose, "")
}

// CloseCount returns how many times Close was called.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

// Recording reports whether the fake recorder is running.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Calls returns a copy of the call log.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount counts logged calls of op on target (empty target matches any).
func (s *Session) CallCount(op Op, target string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == op && (target == "" || c.Target == target) {
			n++
		}
	}
	return n
}

// Typed returns the last value set on locator.
func (s *Session) Typed(locator string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typed[locator]
}

// Pointers returns every pointer sequence performed.
func (s *Session) Pointers() [][]core.PointerAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]core.PointerAction(nil), s.pointers...)
}

// Factory opens mock sessions and keeps them for inspection.
type Factory struct {
	Config  Config
	OpenErr error

	mu       sync.Mutex
	sessions []*Session
}

// Open implements core.SessionFactory.
func (f *Factory) Open(ctx context.Context) (core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	s := New(f.Config)
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

// Sessions returns the sessions opened so far.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// Last returns the most recent session, or nil.
func (f *Factory) Last() *Session {
	sessions := f.Sessions()
	if len(sessions) == 0 {
		return nil
	}
	return sessions[len(sessions)-1]
}
