package service

import (
	"context"
	"os"
	"sync"
	"time"

	"compress-service/ddd/domain/vo"
	"compress-service/pkg/logger"
)

// ProgressMonitor 轮询进度文件，产出单调递增的进度快照
type ProgressMonitor struct {
	interval time.Duration
	readFile func(string) ([]byte, error)
}

// NewProgressMonitor polls every interval (3s in production).
func NewProgressMonitor(interval time.Duration) *ProgressMonitor {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &ProgressMonitor{interval: interval, readFile: os.ReadFile}
}

// Poll reads the sink once.
func (m *ProgressMonitor) Poll(sinkPath string, totalSeconds float64) (vo.ProgressSnapshot, error) {
	data, err := m.readFile(sinkPath)
	if err != nil {
		return vo.ProgressSnapshot{}, err
	}
	return ParseProgress(string(data)).Snapshot(totalSeconds), nil
}

// Watch polls until the sink reports done, exited closes, or ctx ends.
// Read errors are skipped. Percentages never go backwards within one call.
// onSnapshot runs on the polling goroutine; the last snapshot is returned.
func (m *ProgressMonitor) Watch(ctx context.Context, sinkPath string, totalSeconds float64,
	exited <-chan struct{}, onSnapshot func(vo.ProgressSnapshot)) vo.ProgressSnapshot {

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	last := vo.ProgressSnapshot{ETASeconds: vo.UnknownETA}
	best := 0
	poll := func() bool {
		snap, err := m.Poll(sinkPath, totalSeconds)
		if err != nil {
			logger.Debugf("progress poll skipped path=%s error=%v", sinkPath, err)
			return false
		}
		if snap.Percentage < best {
			snap.Percentage = best
		}
		best = snap.Percentage
		last = snap
		if onSnapshot != nil {
			onSnapshot(snap)
		}
		return snap.Done
	}

	for {
		select {
		case <-ctx.Done():
			return last
		case <-exited:
			poll()
			return last
		case <-ticker.C:
			if poll() {
				return last
			}
		}
	}
}

// ProgressThrottle decides which snapshots are worth a user-visible update:
// a gain of at least step points, or the first completion.
type ProgressThrottle struct {
	mu       sync.Mutex
	step     int
	last     int
	doneSent bool
}

func NewProgressThrottle(step int) *ProgressThrottle {
	if step <= 0 {
		step = 2
	}
	return &ProgressThrottle{step: step}
}

// Allow records the snapshot as emitted when it returns true.
func (t *ProgressThrottle) Allow(s vo.ProgressSnapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.Done {
		if t.doneSent {
			return false
		}
		t.doneSent = true
		t.last = s.Percentage
		return true
	}
	if s.Percentage-t.last >= t.step {
		t.last = s.Percentage
		return true
	}
	return false
}
