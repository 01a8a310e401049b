package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type fakeDispatcher struct {
	calls   atomic.Int32
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeDispatcher) Dispatch(ctx context.Context) error {
	f.calls.Inc()
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	return f.err
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 4, 8, 0, 0, 0, time.UTC)
}

func TestTrigger_Fire(t *testing.T) {
	d := &fakeDispatcher{}
	tr := NewTrigger(d, time.Minute, nil)
	tr.now = fixedNow

	res, err := tr.Fire(context.Background(), "test")

	require.NoError(t, err)
	assert.Equal(t, &Result{
		Success:    true,
		Message:    "Workflow triggered successfully",
		Workflow:   "generate-video.yml",
		Repository: "Moumouls/aero-4g-cam",
		Branch:     "master",
		Timestamp:  "2024-05-04T08:00:00.000Z",
	}, res)
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestTrigger_DebouncesWithinCooldown(t *testing.T) {
	d := &fakeDispatcher{}
	tr := NewTrigger(d, time.Minute, nil)
	tr.now = fixedNow

	first, err := tr.Fire(context.Background(), "http")
	require.NoError(t, err)
	second, err := tr.Fire(context.Background(), "cron")
	require.NoError(t, err)

	assert.Equal(t, int32(1), d.calls.Load())
	assert.True(t, second.Debounced)
	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.False(t, first.Debounced, "cached result is not mutated")
}

func TestTrigger_NoCooldown(t *testing.T) {
	d := &fakeDispatcher{}
	tr := NewTrigger(d, 0, nil)

	for i := 0; i < 3; i++ {
		_, err := tr.Fire(context.Background(), "test")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), d.calls.Load())
}

func TestTrigger_FailureIsNotCached(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("boom")}
	tr := NewTrigger(d, time.Minute, nil)

	_, err := tr.Fire(context.Background(), "test")
	require.EqualError(t, err, "boom")

	d.err = nil
	res, err := tr.Fire(context.Background(), "test")
	require.NoError(t, err)
	assert.False(t, res.Debounced)
	assert.Equal(t, int32(2), d.calls.Load())
}

func TestTrigger_RejectsConcurrentDispatch(t *testing.T) {
	d := &fakeDispatcher{entered: make(chan struct{}), release: make(chan struct{})}
	tr := NewTrigger(d, 0, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := tr.Fire(context.Background(), "first")
		assert.NoError(t, err)
	}()
	<-d.entered

	_, err := tr.Fire(context.Background(), "second")
	assert.ErrorIs(t, err, ErrInFlight)

	close(d.release)
	wg.Wait()
	assert.Equal(t, int32(1), d.calls.Load())
}
