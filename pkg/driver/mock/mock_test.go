package mock

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ElementPresence(t *testing.T) {
	s := New(Config{
		Missing:     []string{"id=gone"},
		Hidden:      []string{"id=hidden"},
		AppearAfter: map[string]time.Duration{"id=late": time.Hour},
		Attributes:  map[string]map[string]string{"id=light": {"enabled": "true"}},
	})
	ctx := context.Background()

	_, err := s.FindElement(ctx, flow.Element{Locator: "id=gone"})
	assert.True(t, errors.Is(err, core.ErrNoSuchElement))
	_, err = s.FindElement(ctx, flow.Element{Locator: "id=late"})
	assert.True(t, errors.Is(err, core.ErrNoSuchElement))

	hidden, err := s.FindElement(ctx, flow.Element{Locator: "id=hidden"})
	require.NoError(t, err)
	displayed, err := s.ElementDisplayed(ctx, hidden)
	require.NoError(t, err)
	assert.False(t, displayed)

	light, err := s.FindElement(ctx, flow.Element{Locator: "id=light"})
	require.NoError(t, err)
	value, err := s.ElementAttribute(ctx, light, "enabled")
	require.NoError(t, err)
	assert.Equal(t, "true", value)
}

func TestSession_FailureInjection(t *testing.T) {
	boom := errors.New("boom")
	s := New(Config{Failures: []Failure{
		{Op: OpClick, Locator: "id=btn", Err: core.ErrStaleElement, Times: 1},
		{Op: OpTerminateApp, Err: boom},
	}})
	ctx := context.Background()

	h, err := s.FindElement(ctx, flow.Element{Locator: "id=btn"})
	require.NoError(t, err)
	assert.True(t, errors.Is(s.Click(ctx, h), core.ErrStaleElement))
	assert.NoError(t, s.Click(ctx, h))
	assert.Equal(t, boom, s.TerminateApp(ctx, "cn.ubia.ubox"))
	assert.Equal(t, 2, s.CallCount(OpClick, "id=btn"))
}

func TestSession_FailureAfterSuccesses(t *testing.T) {
	s := New(Config{Failures: []Failure{
		{Op: OpClick, Locator: "id=tutorial", Err: assert.AnError, After: 2},
	}})
	ctx := context.Background()

	h, err := s.FindElement(ctx, flow.Element{Locator: "id=tutorial"})
	require.NoError(t, err)
	assert.NoError(t, s.Click(ctx, h))
	assert.NoError(t, s.Click(ctx, h))
	assert.Equal(t, assert.AnError, s.Click(ctx, h))
	assert.Equal(t, assert.AnError, s.Click(ctx, h))
}

func TestSession_RecordingAndClose(t *testing.T) {
	s := New(Config{Recording: []byte("video")})
	ctx := context.Background()

	require.NoError(t, s.StartRecording(ctx, core.RecordingOptions{}))
	assert.True(t, s.Recording())
	payload, err := s.StopRecording(ctx)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("video")), payload)

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 1, s.CloseCount())
	_, err = s.Screenshot(ctx)
	assert.True(t, errors.Is(err, core.ErrSessionNotActive))
}

func TestSession_CallDelayHonoursContext(t *testing.T) {
	s := New(Config{CallDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.FindElement(ctx, flow.Element{Locator: "id=x"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFactory(t *testing.T) {
	f := &Factory{}
	assert.Nil(t, f.Last())

	s, err := f.Open(context.Background())
	require.NoError(t, err)
	assert.Same(t, s, f.Last())

	f.OpenErr = core.ErrSessionFailure
	_, err = f.Open(context.Background())
	assert.Equal(t, core.ErrSessionFailure, err)
	assert.Len(t, f.Sessions(), 1)
}
