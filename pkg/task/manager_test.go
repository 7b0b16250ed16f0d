package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicRunsUntilStopped(t *testing.T) {
	var runs int32
	p := NewPeriodic("counter", 10*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	m := NewManager()
	m.Register(p)
	require.NoError(t, m.StartAll(context.Background()))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond)

	m.StopAll()
	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs))
}

func TestStartAllIsIdempotent(t *testing.T) {
	p := NewPeriodic("noop", time.Hour, func(context.Context) {})
	m := NewManager()
	m.Register(p)
	require.NoError(t, m.StartAll(context.Background()))
	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()
	assert.NoError(t, p.Stop())
}
