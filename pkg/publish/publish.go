// Package publish stores finished captures on the local filesystem or in
// S3-compatible object storage.
package publish

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CacheControl is sent with every object so viewers always fetch the latest recording.
const CacheControl = "no-cache, no-store, must-revalidate"

// Backend names.
const (
	BackendLocal = "local"
	BackendR2    = "r2"
)

// Local layout defaults.
const (
	DefaultLocalDir  = "recordings"
	DefaultLocalFile = "recording.mp4"
)

// ObjectStore puts bytes at a key and returns the object URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) (string, error)
}

// LocalPublisher writes the capture to a file.
type LocalPublisher struct {
	dir  string
	file string
	log  *zap.Logger
}

// NewLocal creates a LocalPublisher writing dir/recording.mp4.
func NewLocal(dir string, log *zap.Logger) *LocalPublisher {
	if dir == "" {
		dir = DefaultLocalDir
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalPublisher{dir: dir, file: DefaultLocalFile, log: log}
}

// Publish writes the payload byte for byte. No metadata document is stored.
func (p *LocalPublisher) Publish(_ context.Context, artifact *core.CaptureArtifact, _ time.Time) (*core.PublishResult, error) {
	path := filepath.Join(p.dir, p.file)
	result := &core.PublishResult{
		Backend: BackendLocal,
		Video:   core.ObjectResult{Key: path, SizeKB: sizeKB(artifact.Payload)},
	}

	err := os.MkdirAll(p.dir, 0o755)
	if err == nil {
		err = os.WriteFile(path, artifact.Payload, 0o644)
	}
	if err != nil {
		result.Video.Key = ""
		result.Video.Error = err.Error()
		return result, publishFailure("video", err)
	}

	result.Video.URL = "file://" + absPath(path)
	p.log.Info("recording saved", zap.String("path", path), zap.Int("sizeKB", result.Video.SizeKB))
	return result, nil
}

// ObjectStorePublisher uploads the video and its metadata document as
// independent objects.
type ObjectStorePublisher struct {
	store       ObjectStore
	videoKey    string
	metadataKey string
	log         *zap.Logger
}

// NewObjectStore creates a publisher using the default keys.
func NewObjectStore(store ObjectStore, log *zap.Logger) *ObjectStorePublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &ObjectStorePublisher{
		store:       store,
		videoKey:    core.DefaultVideoKey,
		metadataKey: core.DefaultMetadataKey,
		log:         log,
	}
}

// Publish uploads both objects. A failed upload does not prevent the other;
// the returned error lists every failed artifact.
func (p *ObjectStorePublisher) Publish(ctx context.Context, artifact *core.CaptureArtifact, at time.Time) (*core.PublishResult, error) {
	var errs core.Errors
	result := &core.PublishResult{Backend: BackendR2}

	result.Video = p.put(ctx, "video", p.videoKey, artifact.Payload, core.ContentTypeMP4, &errs)

	metadata, err := json.Marshal(core.NewRunMetadata(at, p.videoKey))
	if err != nil {
		errs.AddErr(publishFailure("metadata", errors.Wrap(err, "encode metadata")))
		result.Metadata = &core.ObjectResult{Key: p.metadataKey, Error: err.Error()}
	} else {
		meta := p.put(ctx, "metadata", p.metadataKey, metadata, core.ContentTypeJSON, &errs)
		result.Metadata = &meta
	}

	if err := errs.ErrOrNil(); err != nil {
		return result, err
	}
	p.log.Info("recording published",
		zap.String("videoUrl", result.Video.URL),
		zap.String("metadataUrl", result.Metadata.URL),
		zap.Time("timestamp", at.UTC()))
	return result, nil
}

func (p *ObjectStorePublisher) put(ctx context.Context, artifact, key string, body []byte, contentType string, errs *core.Errors) core.ObjectResult {
	res := core.ObjectResult{Key: key, SizeKB: sizeKB(body)}
	log := p.log.With(zap.String("artifact", artifact), zap.String("key", key))
	log.Debug("uploading", zap.Int("sizeKB", res.SizeKB))

	url, err := p.store.Put(ctx, key, body, contentType, CacheControl)
	if err != nil {
		res.Error = err.Error()
		errs.AddErr(publishFailure(artifact, err))
		log.Error("upload failed", zap.Error(err))
		return res
	}
	res.URL = url
	log.Info("uploaded", zap.String("url", url))
	return res
}

func publishFailure(artifact string, cause error) error {
	return core.ErrPublishFailure.
		WithMessagef("publish %s", artifact).
		WithDetails(map[string]interface{}{"artifact": artifact}).
		WithCause(cause)
}

func sizeKB(b []byte) int {
	return (len(b) + 1023) / 1024
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
