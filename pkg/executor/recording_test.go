package executor

import (
	"context"
	"testing"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/driver/mock"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingConfig(maxSeconds int) flow.RecordingConfig {
	rc := flow.DefaultRecordingConfig()
	rc.MaxDurationSeconds = maxSeconds
	return rc
}

func TestRecordingWindow_StartStop(t *testing.T) {
	clock := newFakeClock()
	session := mock.New(mock.Config{Recording: []byte("video-bytes")})
	w := NewRecordingWindow(session, clock.Now, nil)

	require.NoError(t, w.Start(context.Background(), recordingConfig(30)))
	assert.True(t, w.Active())
	assert.True(t, session.Recording())

	clock.Advance(12 * time.Second)
	artifact, err := w.Stop(context.Background())
	require.NoError(t, err)
	assert.False(t, w.Active())
	assert.Equal(t, []byte("video-bytes"), artifact.Payload)
	assert.Equal(t, 12*time.Second, artifact.Duration())
}

func TestRecordingWindow_OpensOnce(t *testing.T) {
	w := NewRecordingWindow(mock.New(mock.Config{}), nil, nil)
	require.NoError(t, w.Start(context.Background(), recordingConfig(10)))

	err := w.Start(context.Background(), recordingConfig(10))
	assert.True(t, core.IsCode(err, core.CodeCaptureFailure), "got %v", err)

	_, err = w.Stop(context.Background())
	require.NoError(t, err)
	err = w.Start(context.Background(), recordingConfig(10))
	assert.True(t, core.IsCode(err, core.CodeCaptureFailure), "window must not reopen, got %v", err)
}

func TestRecordingWindow_StopWithoutStart(t *testing.T) {
	w := NewRecordingWindow(mock.New(mock.Config{}), nil, nil)
	_, err := w.Stop(context.Background())
	assert.True(t, core.IsCode(err, core.CodeCaptureFailure), "got %v", err)
}

func TestRecordingWindow_BadPayloads(t *testing.T) {
	tests := []struct {
		name string
		cfg  mock.Config
	}{
		{"empty", mock.Config{EmptyRecording: true}},
		{"not base64", mock.Config{RawRecording: "%%%not-base64%%%"}},
		{"stop rejected", mock.Config{Failures: []mock.Failure{{Op: mock.OpStopRecording, Err: assert.AnError}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewRecordingWindow(mock.New(tt.cfg), nil, nil)
			require.NoError(t, w.Start(context.Background(), recordingConfig(10)))

			artifact, err := w.Stop(context.Background())
			assert.Nil(t, artifact)
			assert.True(t, core.IsCode(err, core.CodeCaptureFailure), "got %v", err)
		})
	}
}

func TestRecordingWindow_StartRejected(t *testing.T) {
	session := mock.New(mock.Config{Failures: []mock.Failure{{Op: mock.OpStartRecording, Err: assert.AnError}}})
	w := NewRecordingWindow(session, nil, nil)

	err := w.Start(context.Background(), recordingConfig(10))
	assert.True(t, core.IsCode(err, core.CodeCaptureFailure), "got %v", err)
	assert.False(t, w.Active())
}

func TestRecordingWindow_CeilingBounds(t *testing.T) {
	w := NewRecordingWindow(mock.New(mock.Config{}), nil, nil)
	for _, limit := range []int{0, -1, flow.MaxRecordingSeconds + 1} {
		err := w.Start(context.Background(), recordingConfig(limit))
		assert.True(t, core.IsCode(err, core.CodeConfiguration), "max %d: got %v", limit, err)
	}
	assert.False(t, w.Active())
}

func TestRecordingWindow_Clamp(t *testing.T) {
	clock := newFakeClock()
	w := NewRecordingWindow(mock.New(mock.Config{}), clock.Now, nil)

	assert.Equal(t, time.Minute, w.Clamp(time.Minute), "inactive window does not clamp")

	require.NoError(t, w.Start(context.Background(), recordingConfig(10)))
	clock.Advance(4 * time.Second)
	assert.Equal(t, 6*time.Second, w.Remaining())
	assert.Equal(t, 6*time.Second, w.Clamp(10*time.Second))
	assert.Equal(t, 2*time.Second, w.Clamp(2*time.Second))

	clock.Advance(30 * time.Second)
	assert.Equal(t, time.Duration(0), w.Clamp(time.Second))
}
