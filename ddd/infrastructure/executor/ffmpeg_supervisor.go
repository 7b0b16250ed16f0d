package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"compress-service/ddd/domain/port"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/config"
	"compress-service/pkg/logger"
)

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	bitrateRe  = regexp.MustCompile(`bitrate:\s*(\d+)\s*kb/s`)
)

// FFmpegSupervisor implements port.Transcoder with a local ffmpeg binary.
// Every started process is tracked by pid until it has been reaped.
type FFmpegSupervisor struct {
	binary       string
	killGrace    time.Duration
	probeTimeout time.Duration
	tailLines    int

	mu    sync.Mutex
	procs map[int]*process
}

func NewFFmpegSupervisor(cfg config.FFmpegConfig) *FFmpegSupervisor {
	s := &FFmpegSupervisor{
		binary:       "ffmpeg",
		killGrace:    5 * time.Second,
		probeTimeout: 30 * time.Second,
		tailLines:    50,
		procs:        make(map[int]*process),
	}
	if strings.TrimSpace(cfg.BinaryPath) != "" {
		s.binary = cfg.BinaryPath
	}
	if cfg.KillGrace > 0 {
		s.killGrace = cfg.KillGrace
	}
	if cfg.ProbeTimeout > 0 {
		s.probeTimeout = cfg.ProbeTimeout
	}
	if cfg.TailLines > 0 {
		s.tailLines = cfg.TailLines
	}
	return s
}

// CheckBinary runs `ffmpeg -version` so a missing binary fails at startup.
func (s *FFmpegSupervisor) CheckBinary(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, s.binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg not usable at %s: %w", s.binary, err)
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(first), nil
}

// process is one running ffmpeg.
type process struct {
	cmd    *exec.Cmd
	pid    int
	done   chan struct{}
	stderr *tailBuffer
	result port.ExitResult
}

func (p *process) PID() int              { return p.pid }
func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) Wait() port.ExitResult {
	<-p.done
	return p.result
}

// Start launches ffmpeg in its own process group. The process is not bound to
// ctx; stop it with Kill.
func (s *FFmpegSupervisor) Start(ctx context.Context, params vo.EncodingParameters, source, output, progressSink string) (port.ProcessHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	args := params.Args(source, output, progressSink)
	cmd := exec.Command(s.binary, args...)
	setProcessGroup(cmd)

	stderr := newTailBuffer(s.tailLines)
	cmd.Stdout = newTailBuffer(s.tailLines)
	cmd.Stderr = stderr

	logger.Infof("ffmpeg command %s %s", s.binary, strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动FFmpeg命令失败: %w", err)
	}

	p := &process{cmd: cmd, pid: cmd.Process.Pid, done: make(chan struct{}), stderr: stderr}
	s.mu.Lock()
	s.procs[p.pid] = p
	s.mu.Unlock()

	go s.reap(p)
	return p, nil
}

// reap waits for exit. exec copies stdout/stderr to the tail buffers before
// Wait returns, so the pipes are drained when done closes.
func (s *FFmpegSupervisor) reap(p *process) {
	err := p.cmd.Wait()
	res := port.ExitResult{StderrTail: p.stderr.String()}
	if err != nil {
		res.Err = err
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		if res.StderrTail != "" {
			logger.Errorf("ffmpeg failed pid=%d code=%d tail_stderr=%s", p.pid, res.ExitCode, res.StderrTail)
		}
	}
	p.result = res

	s.mu.Lock()
	delete(s.procs, p.pid)
	s.mu.Unlock()
	close(p.done)
}

// Kill sends SIGTERM to the process group, waits up to the grace period and
// escalates to SIGKILL. A pid that is already gone is not an error.
func (s *FFmpegSupervisor) Kill(pid int) error {
	if pid <= 0 {
		return nil
	}
	s.mu.Lock()
	p := s.procs[pid]
	s.mu.Unlock()

	gone := func() bool {
		if p != nil {
			select {
			case <-p.done:
				return true
			default:
				return false
			}
		}
		return !processAlive(pid)
	}
	if gone() {
		return nil
	}

	if err := terminate(pid); err != nil && !gone() {
		logger.Warnf("SIGTERM failed pid=%d error=%v", pid, err)
	}
	if waitUntil(gone, s.killGrace) {
		return nil
	}

	logger.Warnf("process did not terminate gracefully, sending SIGKILL pid=%d", pid)
	if err := forceKill(pid); err != nil && !gone() {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	if waitUntil(gone, 2*time.Second) {
		return nil
	}
	return fmt.Errorf("process %d could not be killed", pid)
}

func waitUntil(cond func() bool, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cond()
}

// Probe reads duration and bitrate from ffmpeg's banner. ffmpeg exits
// non-zero without an output file, so only the text matters.
func (s *FFmpegSupervisor) Probe(ctx context.Context, path string) (port.ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	out, _ := exec.CommandContext(ctx, s.binary, "-hide_banner", "-i", path).CombinedOutput()
	if err := ctx.Err(); err != nil {
		return port.ProbeResult{}, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	return ParseProbeOutput(string(out))
}

// ParseProbeOutput extracts `Duration: hh:mm:ss.xx` and `bitrate: N kb/s`.
func ParseProbeOutput(text string) (port.ProbeResult, error) {
	var res port.ProbeResult
	m := durationRe.FindStringSubmatch(text)
	if m == nil {
		return res, errors.New("duration not found in probe output")
	}
	hh, _ := strconv.ParseFloat(m[1], 64)
	mm, _ := strconv.ParseFloat(m[2], 64)
	ss, _ := strconv.ParseFloat(m[3], 64)
	res.DurationSeconds = hh*3600 + mm*60 + ss

	if b := bitrateRe.FindStringSubmatch(text); b != nil {
		res.BitrateKbps, _ = strconv.ParseInt(b[1], 10, 64)
	}
	return res, nil
}

// Thumbnail grabs one frame at offsetSeconds.
func (s *FFmpegSupervisor) Thumbnail(ctx context.Context, videoPath, dir string, offsetSeconds float64) (string, error) {
	if offsetSeconds < 0 {
		offsetSeconds = 0
	}
	out := filepath.Join(dir, "thumbnail.jpg")
	cmd := exec.CommandContext(ctx, s.binary,
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", strconv.FormatFloat(offsetSeconds, 'f', 3, 64),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		out,
	)
	if combined, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("thumbnail: %w: %s", err, strings.TrimSpace(string(combined)))
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		return "", fmt.Errorf("thumbnail not written: %s", out)
	}
	return out, nil
}
