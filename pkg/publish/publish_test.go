package publish

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	key, contentType, cacheControl string
	body                           []byte
}

type fakeStore struct {
	mu    sync.Mutex
	calls []putCall
	fail  map[string]error
}

func (s *fakeStore) Put(_ context.Context, key string, body []byte, contentType, cacheControl string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, putCall{key: key, body: body, contentType: contentType, cacheControl: cacheControl})
	if err := s.fail[key]; err != nil {
		return "", err
	}
	return "https://r2.example.com/bucket/" + key, nil
}

func (s *fakeStore) call(key string) *putCall {
	for i := range s.calls {
		if s.calls[i].key == key {
			return &s.calls[i]
		}
	}
	return nil
}

var publishedAt = time.Date(2024, 5, 1, 10, 30, 15, 123456789, time.FixedZone("CEST", 2*3600))

func artifact() *core.CaptureArtifact {
	return &core.CaptureArtifact{Payload: []byte("mp4-bytes")}
}

func TestObjectStorePublisher_Success(t *testing.T) {
	store := &fakeStore{}
	p := NewObjectStore(store, nil)

	result, err := p.Publish(context.Background(), artifact(), publishedAt)
	require.NoError(t, err)

	assert.Equal(t, BackendR2, result.Backend)
	assert.True(t, result.Video.Success())
	require.NotNil(t, result.Metadata)
	assert.True(t, result.Metadata.Success())
	assert.Equal(t, "https://r2.example.com/bucket/terrain.mp4", result.Video.URL)

	video := store.call("terrain.mp4")
	require.NotNil(t, video)
	assert.Equal(t, []byte("mp4-bytes"), video.body)
	assert.Equal(t, "video/mp4", video.contentType)
	assert.Equal(t, "no-cache, no-store, must-revalidate", video.cacheControl)

	meta := store.call("terrain.json")
	require.NotNil(t, meta)
	assert.Equal(t, "application/json", meta.contentType)
	assert.Equal(t, CacheControl, meta.cacheControl)
	assert.JSONEq(t, `{"timestamp":"2024-05-01T08:30:15.123Z","videoKey":"terrain.mp4"}`, string(meta.body))

	var decoded core.RunMetadata
	require.NoError(t, json.Unmarshal(meta.body, &decoded))
	assert.Equal(t, core.DefaultVideoKey, decoded.VideoKey)
}

func TestObjectStorePublisher_Independence(t *testing.T) {
	tests := []struct {
		name        string
		failKey     string
		artifact    string
		videoOK     bool
		metadataOK  bool
		wantUploads int
	}{
		{name: "video fails", failKey: "terrain.mp4", artifact: "video", videoOK: false, metadataOK: true, wantUploads: 2},
		{name: "metadata fails", failKey: "terrain.json", artifact: "metadata", videoOK: true, metadataOK: false, wantUploads: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{fail: map[string]error{tt.failKey: errors.New("access denied")}}
			p := NewObjectStore(store, nil)

			result, err := p.Publish(context.Background(), artifact(), publishedAt)
			require.Error(t, err)
			assert.Len(t, store.calls, tt.wantUploads)
			assert.Equal(t, tt.videoOK, result.Video.Success())
			assert.Equal(t, tt.metadataOK, result.Metadata.Success())

			execErr, ok := core.AsExecutionError(err)
			require.True(t, ok, "got %T", err)
			assert.Equal(t, core.CodePublishFailure, execErr.Code)
			assert.Equal(t, tt.artifact, execErr.Details["artifact"])
			assert.Contains(t, err.Error(), "access denied")
		})
	}
}

func TestObjectStorePublisher_BothFail(t *testing.T) {
	store := &fakeStore{fail: map[string]error{
		"terrain.mp4":  errors.New("video denied"),
		"terrain.json": errors.New("metadata denied"),
	}}
	p := NewObjectStore(store, nil)

	result, err := p.Publish(context.Background(), artifact(), publishedAt)
	require.Error(t, err)
	assert.False(t, result.Video.Success())
	assert.False(t, result.Metadata.Success())

	errs, ok := err.(core.Errors)
	require.True(t, ok, "got %T", err)
	require.Len(t, errs, 2)
	assert.True(t, core.IsCode(err, core.CodePublishFailure))
	assert.Contains(t, err.Error(), "video denied")
	assert.Contains(t, err.Error(), "metadata denied")
}

func TestLocalPublisher(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")
	p := NewLocal(dir, nil)

	payload := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}
	result, err := p.Publish(context.Background(), &core.CaptureArtifact{Payload: payload}, publishedAt)
	require.NoError(t, err)

	path := filepath.Join(dir, "recording.mp4")
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, BackendLocal, result.Backend)
	assert.Equal(t, path, result.Video.Key)
	assert.Nil(t, result.Metadata)
	assert.Contains(t, result.Video.URL, "file://")
}

func TestLocalPublisher_WriteFailure(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	p := NewLocal(filepath.Join(blocker, "recordings"), nil)
	result, err := p.Publish(context.Background(), artifact(), publishedAt)
	assert.True(t, core.IsCode(err, core.CodePublishFailure), "got %v", err)
	assert.False(t, result.Video.Success())
}
