package component

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsvc "compress-service/ddd/application/app"
	"compress-service/ddd/application/cqe"
	"compress-service/ddd/application/dto"
	"compress-service/pkg/config"
	"compress-service/pkg/manager"
)

// submitApp only implements what the components call.
type submitApp struct {
	appsvc.CompressApp
	mu      sync.Mutex
	submits []cqe.CompressRequestMsg
	sweeps  int
	err     error
}

func (a *submitApp) Submit(_ context.Context, m *cqe.CompressRequestMsg) (*dto.JobDTO, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submits = append(a.submits, *m)
	if a.err != nil {
		return nil, a.err
	}
	return &dto.JobDTO{JobID: "job-" + m.UserID, UserID: m.UserID}, nil
}

func (a *submitApp) SweepSessions(context.Context) (int, error) {
	a.mu.Lock()
	a.sweeps++
	a.mu.Unlock()
	return 0, nil
}

func (a *submitApp) sweepCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sweeps
}

type fakeReader struct {
	msgs      chan kafkago.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestHandleCommitPolicy(t *testing.T) {
	app := &submitApp{}
	c := &compressRequestConsumer{app: app, cfg: config.KafkaConfig{CommitOnDecodeError: true}}
	ctx := context.Background()

	assert.True(t, c.handle(ctx, []byte(`{"user_id":"u1","key":"in/a.mp4","quality":"720p","overrides":{"crf":"20"}}`)))
	require.Len(t, app.submits, 1)
	assert.Equal(t, "720p", app.submits[0].Quality)
	assert.Equal(t, "20", app.submits[0].Overrides["crf"])

	assert.True(t, c.handle(ctx, []byte(`not json`)))
	c.cfg.CommitOnDecodeError = false
	assert.False(t, c.handle(ctx, []byte(`not json`)))

	app.err = errors.New("busy")
	assert.False(t, c.handle(ctx, []byte(`{"user_id":"u2","key":"k"}`)))
	c.cfg.CommitOnProcessError = true
	assert.True(t, c.handle(ctx, []byte(`{"user_id":"u2","key":"k"}`)))
}

func TestConsumerLoopCommitsAndStops(t *testing.T) {
	app := &submitApp{}
	reader := &fakeReader{msgs: make(chan kafkago.Message, 2)}
	c := &compressRequestConsumer{app: app, reader: reader, cfg: config.KafkaConfig{}}
	require.NoError(t, c.Start())

	reader.msgs <- kafkago.Message{Offset: 7, Value: []byte(`{"user_id":"u1","key":"a.mp4"}`)}
	reader.msgs <- kafkago.Message{Offset: 8, Value: []byte(`garbage`)}

	require.Eventually(t, func() bool {
		app.mu.Lock()
		defer app.mu.Unlock()
		return len(app.submits) == 1 && len(reader.msgs) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
	assert.Equal(t, []int64{7}, reader.commits())
	assert.True(t, reader.closed)
}

// failingReader fails every fetch, like a consumer whose broker is down.
type failingReader struct {
	mu      sync.Mutex
	fetches int
}

func (r *failingReader) FetchMessage(context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	r.fetches++
	r.mu.Unlock()
	return kafkago.Message{}, errors.New("dial tcp: connection refused")
}

func (r *failingReader) CommitMessages(context.Context, ...kafkago.Message) error { return nil }
func (r *failingReader) Close() error                                             { return nil }

func (r *failingReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

func TestConsumerBacksOffOnFetchError(t *testing.T) {
	reader := &failingReader{}
	c := &compressRequestConsumer{app: &submitApp{}, reader: reader, retryBackoff: 50 * time.Millisecond}
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return reader.count() >= 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, c.Stop())
	// 约 250ms 内每 50ms 一次，不退避的话会是成千上万次
	assert.Less(t, reader.count(), 20)
}

func TestConsumerStopsDuringBackoff(t *testing.T) {
	reader := &failingReader{}
	c := &compressRequestConsumer{app: &submitApp{}, reader: reader, retryBackoff: time.Hour}
	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return reader.count() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		_ = c.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop while backing off")
	}
	assert.Equal(t, 1, reader.count())
}

func TestPluginsSkipWhenDisabled(t *testing.T) {
	assert.Nil(t, (&CompressRequestConsumerPlugin{}).MustCreateComponent(&manager.Dependencies{Config: &config.Config{}}))
	assert.Nil(t, (&SessionSweeperPlugin{}).MustCreateComponent(nil))

	comp := (&SessionSweeperPlugin{}).MustCreateComponent(&manager.Dependencies{
		Config:      &config.Config{Session: config.SessionConfig{SweepInterval: time.Hour}},
		CompressApp: &submitApp{},
	})
	require.NotNil(t, comp)
	assert.Equal(t, "sessionSweeper", comp.GetName())
}

func TestSessionSweeperTicks(t *testing.T) {
	app := &submitApp{}
	s := newSessionSweeper(app, 5*time.Millisecond)
	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return app.sweepCount() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}
