package port

import (
	"context"

	"compress-service/ddd/domain/vo"
)

// ExitResult is what a transcoder process left behind.
type ExitResult struct {
	ExitCode   int
	Err        error
	StderrTail string
}

// Failed reports a non-zero exit or wait error.
func (r ExitResult) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// ProcessHandle 运行中的转码进程
type ProcessHandle interface {
	PID() int
	// Done is closed once the process exited and its output was drained.
	Done() <-chan struct{}
	// Wait blocks until Done and returns the exit result.
	Wait() ExitResult
}

// ProbeResult 探测结果
type ProbeResult struct {
	DurationSeconds float64
	BitrateKbps     int64
}

// Transcoder 外部转码器（ffmpeg）
type Transcoder interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
	Start(ctx context.Context, params vo.EncodingParameters, source, output, progressSink string) (ProcessHandle, error)
	// Kill terminates pid; a process that is already gone is not an error.
	Kill(pid int) error
	// Thumbnail extracts one frame at offsetSeconds into dir and returns its path.
	Thumbnail(ctx context.Context, videoPath, dir string, offsetSeconds float64) (string, error)
}
