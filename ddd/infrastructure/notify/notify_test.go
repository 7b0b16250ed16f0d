package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/redisclient"
)

type message struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (p *fakeProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.msgs = append(p.msgs, message{topic: topic, key: string(key), value: value})
	p.mu.Unlock()
	return nil
}

func decode(t *testing.T, m message) Event {
	t.Helper()
	var ev Event
	require.NoError(t, json.Unmarshal(m.value, &ev))
	return ev
}

func TestKafkaReporterPublishesEvents(t *testing.T) {
	p := &fakeProducer{}
	r := NewKafkaReporter(p, "compress.events")
	job := gateway.JobRef{JobID: "j1", UserID: "u1", FileName: "a.mp4"}
	ctx := context.Background()

	require.NoError(t, r.Status(ctx, job, vo.StageDownloading, "downloading"))
	require.NoError(t, r.Progress(ctx, job, vo.ProgressSnapshot{Percentage: 40, ETASeconds: 12}))
	require.NoError(t, r.Final(ctx, job, vo.FinalReport{JobID: "j1", Outcome: vo.StageDone, Message: "done", SavedPercent: 55}))

	require.Len(t, p.msgs, 3)
	for _, m := range p.msgs {
		assert.Equal(t, "compress.events", m.topic)
		assert.Equal(t, "u1", m.key)
	}

	ev := decode(t, p.msgs[0])
	assert.Equal(t, EventStatus, ev.Type)
	assert.Equal(t, vo.StageDownloading, ev.Stage)
	assert.Equal(t, "downloading", ev.Text)

	ev = decode(t, p.msgs[1])
	assert.Equal(t, EventProgress, ev.Type)
	require.NotNil(t, ev.Progress)
	assert.Equal(t, 40, ev.Progress.Percentage)

	ev = decode(t, p.msgs[2])
	assert.Equal(t, EventFinal, ev.Type)
	require.NotNil(t, ev.Report)
	assert.Equal(t, 55.0, ev.Report.SavedPercent)
}

func TestKafkaReporterReturnsProduceError(t *testing.T) {
	r := NewKafkaReporter(&fakeProducer{err: errors.New("broker down")}, "t")
	assert.Error(t, r.Status(context.Background(), gateway.JobRef{JobID: "j"}, vo.StageProbing, "x"))
}

type countingReporter struct {
	calls int
	err   error
}

func (c *countingReporter) Status(context.Context, gateway.JobRef, vo.Stage, string) error {
	c.calls++
	return c.err
}

func (c *countingReporter) Progress(context.Context, gateway.JobRef, vo.ProgressSnapshot) error {
	c.calls++
	return c.err
}

func (c *countingReporter) Final(context.Context, gateway.JobRef, vo.FinalReport) error {
	c.calls++
	return c.err
}

func TestFanoutReporterTriesEveryTarget(t *testing.T) {
	bad := &countingReporter{err: errors.New("down")}
	good := &countingReporter{}
	r := NewFanoutReporter(bad, nil, good)

	err := r.Final(context.Background(), gateway.JobRef{JobID: "j"}, vo.FinalReport{})
	assert.Error(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)

	single := NewFanoutReporter(nil, good)
	assert.Same(t, good, single)
}

func TestRedisOpsLog(t *testing.T) {
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	l := NewRedisOpsLog(redisclient.Wrap(cli, "compress"))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	first, err := l.Post(ctx, "u1 busy: downloading")
	require.NoError(t, err)
	l.now = func() time.Time { return base.Add(time.Second) }
	second, err := l.Post(ctx, "u1 busy: compressing")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	notes, err := l.Live(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "u1 busy: downloading", notes[0].Text)

	require.NoError(t, l.Retire(ctx, first))
	require.NoError(t, l.Retire(ctx, first))
	require.NoError(t, l.Retire(ctx, ""))
	notes, err = l.Live(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, second, notes[0].ID)
	assert.True(t, mr.Exists("compress:opslog"))
}

func TestLogSinksNeverFail(t *testing.T) {
	ctx := context.Background()
	r := NewLogReporter()
	job := gateway.JobRef{JobID: "j"}
	assert.NoError(t, r.Status(ctx, job, vo.StageUploading, "uploading"))
	assert.NoError(t, r.Progress(ctx, job, vo.ProgressSnapshot{Percentage: 10}))
	assert.NoError(t, r.Final(ctx, job, vo.FinalReport{Outcome: vo.StageFailed}))

	ops := NewLogOpsLog()
	id, err := ops.Post(ctx, "note")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, ops.Retire(ctx, id))
}
