package main

import (
	"bytes"
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

// fakeFFmpegScript encodes when given -progress and otherwise behaves like a
// probe that only prints the input header.
const fakeFFmpegScript = `#!/bin/sh
prog=""; out=""; prev=""
for a in "$@"; do
  if [ "$prev" = "-progress" ]; then prog="$a"; fi
  prev="$a"; out="$a"
done
if [ -z "$prog" ]; then
  echo '  Duration: 00:00:10.00, start: 0.000000, bitrate: 800 kb/s' >&2
  exit 1
fi
printf 'frame=250\nout_time_ms=10000000\nspeed=4.0x\nprogress=end\n' > "$prog"
printf 'small' > "$out"
exit 0
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte(fakeFFmpegScript), 0o755))
	cfg := config.Default()
	cfg.Compress.FFmpeg.BinaryPath = bin
	cfg.Compress.PollInterval = 20 * time.Millisecond
	return cfg
}

func TestPresetsCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"presets"})
	require.NoError(t, cmd.Execute())

	text := out.String()
	for _, name := range []string{"1080p", "720p_hevc", "360p"} {
		assert.Contains(t, text, name)
	}
	assert.Less(t, strings.Index(text, "1080p"), strings.Index(text, "360p"))
}

func TestRunCompressWritesArtifacts(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(input, bytes.Repeat([]byte{1}, 2048), 0o644))
	outDir := filepath.Join(dir, "out")

	var log bytes.Buffer
	report, err := runCompress(context.Background(), cfg, input, compressOptions{
		quality: "720p",
		outDir:  outDir,
		workDir: filepath.Join(dir, "work"),
	}, &log)
	require.NoError(t, err)

	assert.Equal(t, vo.StageDone, report.Outcome, log.String())
	assert.Equal(t, int64(2048), report.OriginalSize)
	assert.Equal(t, int64(5), report.CompressedSize)
	assert.Greater(t, report.SavedPercent, 99.0)
	assert.Contains(t, log.String(), "started for clip.mp4")

	matches, err := filepath.Glob(filepath.Join(outDir, localUser, report.JobID, "*"))
	require.NoError(t, err)
	assert.NotEmpty(t, matches)

	rendered := renderReport(report)
	assert.Contains(t, rendered, "done")
	assert.Contains(t, rendered, "2.0 KiB")
}

func TestRunCompressRejectsBadOverride(t *testing.T) {
	cfg := testConfig(t)
	input := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(input, []byte("data"), 0o644))

	_, err := runCompress(context.Background(), cfg, input, compressOptions{
		quality:   "custom",
		outDir:    t.TempDir(),
		workDir:   t.TempDir(),
		overrides: map[string]string{"crf": "500"},
	}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunCompressMissingFile(t *testing.T) {
	_, err := runCompress(context.Background(), config.Default(), filepath.Join(t.TempDir(), "nope.mp4"), compressOptions{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x"}, {"longer", "1"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "longer")
	assert.Equal(t, "", renderTable(nil, nil, nil))
}
