// Package core provides the execution model types for the recorder.
package core

import (
	"encoding/json"
	"time"
)

// Attachment represents a debug artifact captured during step execution
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, video
	ContentType string `json:"contentType"` // MIME type: image/png, video/mp4
	Path        string `json:"path"`        // File path relative to the working directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentVideo      = "video"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeMP4  = "video/mp4"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// CaptureArtifact is the decoded screen recording of one run.
type CaptureArtifact struct {
	Payload    []byte
	StartedAt  time.Time
	CapturedAt time.Time
}

// Duration is the wall-clock length of the recording window.
func (a *CaptureArtifact) Duration() time.Duration {
	if a.StartedAt.IsZero() {
		return 0
	}
	return a.CapturedAt.Sub(a.StartedAt)
}

// Size returns the payload length in bytes.
func (a *CaptureArtifact) Size() int {
	return len(a.Payload)
}

// DefaultVideoKey is the storage key of the published recording.
const DefaultVideoKey = "terrain.mp4"

// DefaultMetadataKey is the storage key of the published metadata document.
const DefaultMetadataKey = "terrain.json"

// metadataTimeFormat is ISO-8601 UTC with milliseconds.
const metadataTimeFormat = "2006-01-02T15:04:05.000Z"

// RunMetadata describes a published recording.
type RunMetadata struct {
	Timestamp time.Time
	VideoKey  string
}

// NewRunMetadata builds metadata for a capture published under videoKey.
func NewRunMetadata(at time.Time, videoKey string) RunMetadata {
	return RunMetadata{Timestamp: at, VideoKey: videoKey}
}

type runMetadataJSON struct {
	Timestamp string `json:"timestamp"`
	VideoKey  string `json:"videoKey"`
}

// MarshalJSON encodes the metadata document.
func (m RunMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(runMetadataJSON{
		Timestamp: m.Timestamp.UTC().Format(metadataTimeFormat),
		VideoKey:  m.VideoKey,
	})
}

// UnmarshalJSON decodes the metadata document.
func (m *RunMetadata) UnmarshalJSON(data []byte) error {
	var raw runMetadataJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return err
	}
	m.Timestamp = ts
	m.VideoKey = raw.VideoKey
	return nil
}
