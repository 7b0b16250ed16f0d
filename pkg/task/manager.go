package task

import (
	"context"
	"sync"
	"time"

	"compress-service/pkg/logger"
)

// BackgroundTask represents a long-running background process (consumer, sweeper).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Manager starts and stops a set of background tasks together.
type Manager struct {
	tasks  []BackgroundTask
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a background task; should be called before StartAll.
func (m *Manager) Register(t BackgroundTask) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, t)
}

// StartAll starts all registered tasks once.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	var runCtx context.Context
	runCtx, m.cancel = context.WithCancel(ctx)
	for _, t := range m.tasks {
		if err := t.Start(runCtx); err != nil {
			return err
		}
		logger.Infof("background task started name=%s", t.Name())
	}
	return nil
}

// StopAll stops all running tasks in reverse order.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	for i := len(m.tasks) - 1; i >= 0; i-- {
		if err := m.tasks[i].Stop(); err != nil {
			logger.Warnf("background task stop failed name=%s error=%v", m.tasks[i].Name(), err)
		}
	}
	m.cancel = nil
}

// Periodic runs fn on a fixed interval until stopped.
type Periodic struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPeriodic builds a ticker-driven task.
func NewPeriodic(name string, interval time.Duration, fn func(ctx context.Context)) *Periodic {
	return &Periodic{name: name, interval: interval, fn: fn}
}

func (p *Periodic) Name() string { return p.name }

func (p *Periodic) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.fn(runCtx)
			}
		}
	}()
	return nil
}

func (p *Periodic) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
