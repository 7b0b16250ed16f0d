package executor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compress-service/ddd/domain/vo"
	"compress-service/pkg/config"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) *FFmpegSupervisor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return NewFFmpegSupervisor(config.FFmpegConfig{
		BinaryPath:   path,
		KillGrace:    300 * time.Millisecond,
		ProbeTimeout: 5 * time.Second,
		TailLines:    3,
	})
}

func testParams() vo.EncodingParameters {
	return vo.EncodingParameters{
		VideoCodec:  "libx264",
		SpeedPreset: "ultrafast",
		Rate:        vo.RateCRF,
		CRF:         23,
		PixelFormat: "yuv420p",
		AudioCodec:  "copy",
	}
}

const writerScript = `prog=""; out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -progress) prog="$2"; shift ;;
  esac
  out="$1"
  shift
done
printf 'frame=10\nout_time_ms=1000000\nprogress=end\n' > "$prog"
printf 'data' > "$out"
echo "encoder warning" >&2
exit 0
`

func TestStartRunsToCompletion(t *testing.T) {
	s := fakeFFmpeg(t, writerScript)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mp4")
	sink := filepath.Join(dir, "progress.txt")

	h, err := s.Start(context.Background(), testParams(), "in.mp4", out, sink)
	require.NoError(t, err)
	assert.Positive(t, h.PID())

	res := h.Wait()
	assert.False(t, res.Failed())
	assert.Equal(t, "encoder warning", res.StderrTail)

	data, err := os.ReadFile(sink)
	require.NoError(t, err)
	assert.Contains(t, string(data), "progress=end")
	_, err = os.Stat(out)
	assert.NoError(t, err)

	assert.NoError(t, s.Kill(h.PID()), "killing an exited process is not an error")
}

func TestStartReportsExitCodeAndTail(t *testing.T) {
	s := fakeFFmpeg(t, "for i in 1 2 3 4 5; do echo \"line $i\" >&2; done\nexit 3\n")
	h, err := s.Start(context.Background(), testParams(), "in", "out", filepath.Join(t.TempDir(), "p"))
	require.NoError(t, err)

	res := h.Wait()
	assert.True(t, res.Failed())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "line 3\nline 4\nline 5", res.StderrTail)
}

func TestStartRejectsInvalidParams(t *testing.T) {
	s := fakeFFmpeg(t, "exit 0\n")
	p := testParams()
	p.VideoCodec = "x; rm -rf /"
	_, err := s.Start(context.Background(), p, "in", "out", "p")
	assert.Error(t, err)
}

func TestKillTerminatesRunningProcess(t *testing.T) {
	s := fakeFFmpeg(t, "sleep 30\n")
	h, err := s.Start(context.Background(), testParams(), "in", "out", "p")
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, s.Kill(h.PID()))
	res := h.Wait()
	assert.True(t, res.Failed())
	assert.Less(t, time.Since(start), 5*time.Second)

	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed after kill")
	}
	assert.NoError(t, s.Kill(h.PID()))
}

func TestKillEscalatesWhenTermIgnored(t *testing.T) {
	s := fakeFFmpeg(t, "trap '' TERM\nwhile true; do sleep 0.1; done\n")
	h, err := s.Start(context.Background(), testParams(), "in", "out", "p")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, s.Kill(h.PID()))
	assert.True(t, h.Wait().Failed())
}

func TestKillUnknownPID(t *testing.T) {
	s := NewFFmpegSupervisor(config.FFmpegConfig{})
	assert.NoError(t, s.Kill(0))
	assert.NoError(t, s.Kill(-1))
}

func TestParseProbeOutput(t *testing.T) {
	text := `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':
  Duration: 00:01:30.50, start: 0.000000, bitrate: 1234 kb/s
  Stream #0:0: Video: h264`
	res, err := ParseProbeOutput(text)
	require.NoError(t, err)
	assert.InDelta(t, 90.5, res.DurationSeconds, 1e-9)
	assert.Equal(t, int64(1234), res.BitrateKbps)

	res, err = ParseProbeOutput("  Duration: 01:00:00.00, start: 0, bitrate: N/A")
	require.NoError(t, err)
	assert.Equal(t, 3600.0, res.DurationSeconds)
	assert.Zero(t, res.BitrateKbps)

	_, err = ParseProbeOutput("in.mp4: No such file or directory")
	assert.Error(t, err)
}

func TestProbeIgnoresExitCode(t *testing.T) {
	s := fakeFFmpeg(t, "echo '  Duration: 00:00:42.00, start: 0.0, bitrate: 800 kb/s' >&2\necho 'At least one output file must be specified' >&2\nexit 1\n")
	res, err := s.Probe(context.Background(), "in.mp4")
	require.NoError(t, err)
	assert.Equal(t, 42.0, res.DurationSeconds)
	assert.Equal(t, int64(800), res.BitrateKbps)
}

func TestThumbnail(t *testing.T) {
	s := fakeFFmpeg(t, "for last; do :; done\nprintf 'jpg' > \"$last\"\n")
	dir := t.TempDir()
	path, err := s.Thumbnail(context.Background(), "video.mp4", dir, 12.5)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "thumbnail.jpg"), path)

	failing := fakeFFmpeg(t, "echo 'no frame' >&2\nexit 1\n")
	_, err = failing.Thumbnail(context.Background(), "video.mp4", dir, 1)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no frame"))
}

func TestCheckBinary(t *testing.T) {
	s := fakeFFmpeg(t, "echo 'ffmpeg version 6.1 Copyright'\n")
	v, err := s.CheckBinary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg version 6.1 Copyright", v)

	missing := NewFFmpegSupervisor(config.FFmpegConfig{BinaryPath: filepath.Join(t.TempDir(), "nope")})
	_, err = missing.CheckBinary(context.Background())
	assert.Error(t, err)
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	b := newTailBuffer(2)
	_, _ = b.Write([]byte("a\nb\nc"))
	assert.Equal(t, "b\nc", b.String())
	_, _ = b.Write([]byte("d\n\n"))
	assert.Equal(t, "b\ncd", b.String())
}
