package gateway

import (
	"context"

	"compress-service/ddd/domain/vo"
)

// MediaSource 待压缩的媒体
type MediaSource interface {
	Size() int64
	// DurationSeconds is the declared duration, 0 when unknown.
	DurationSeconds() float64
	FileName() string
	Ext() string
	// Download materializes the media at dst.
	Download(ctx context.Context, dst string) error
}

// MediaResolver opens a MediaSource for a session's media reference.
type MediaResolver interface {
	Open(ctx context.Context, ref vo.MediaRef) (MediaSource, error)
}

// Artifact is what a finished job delivers.
type Artifact struct {
	JobID         string
	UserID        string
	FileName      string
	VideoPath     string
	ThumbnailPath string // empty when no thumbnail was produced
	Caption       string
}

// ArtifactSink 交付压缩结果
type ArtifactSink interface {
	// Deliver returns a locator for the delivered video (object key, path or URL).
	Deliver(ctx context.Context, a Artifact) (string, error)
}
