package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/vo"
)

func TestMediaPolicy(t *testing.T) {
	p := MediaPolicy{MaxFileSize: 100, AllowedExtensions: []string{".mp4", "MKV"}}
	assert.NoError(t, p.Check(vo.MediaRef{FileName: "a.mp4", Size: 100}))
	assert.NoError(t, p.Check(vo.MediaRef{FileName: "b.mkv", Size: 1}))

	err := p.Check(vo.MediaRef{FileName: "a.mp4", Size: 101})
	assert.True(t, errors.Is(err, vo.ErrValidation))
	err = p.Check(vo.MediaRef{FileName: "c.gif", Size: 1})
	assert.True(t, errors.Is(err, vo.ErrValidation))

	assert.NoError(t, MediaPolicy{}.Check(vo.MediaRef{FileName: "any.xyz", Size: 1 << 40}))
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newMemSessions(), newMemJobs(), MediaPolicy{MaxFileSize: 1 << 30})

	_, err := svc.CreateSession(ctx, "", vo.MediaRef{})
	assert.True(t, errors.Is(err, vo.ErrValidation))

	s, err := svc.CreateSession(ctx, "u1", vo.MediaRef{FileName: "v.mp4", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, "auto", s.Quality())

	_, err = svc.CreateSession(ctx, "u1", vo.MediaRef{FileName: "w.mp4", Size: 10})
	assert.True(t, errors.Is(err, vo.ErrAlreadyActive))

	s, err = svc.UpdateField(ctx, "u1", entity.FieldQuality, "720p")
	require.NoError(t, err)
	assert.Equal(t, "720p", s.Quality())

	_, err = svc.UpdateField(ctx, "u1", entity.FieldCRF, "99")
	assert.True(t, errors.Is(err, vo.ErrValidation))

	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "720p", got.Quality())

	require.NoError(t, svc.Delete(ctx, "u1"))
	require.NoError(t, svc.Delete(ctx, "u1"))
	_, err = svc.UpdateField(ctx, "u1", entity.FieldQuality, "low")
	assert.True(t, errors.Is(err, vo.ErrNotFound))
}

func TestClaimConsumesSessionOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	store, jobs := newMemSessions(), newMemJobs()
	svc := NewSessionService(store, jobs, MediaPolicy{})
	_, err := svc.CreateSession(ctx, "u2", vo.MediaRef{FileName: "v.mp4", Size: 10})
	require.NoError(t, err)

	_, err = svc.Claim(ctx, "u2", func(*entity.CompressionSession) (*entity.ActiveJob, error) {
		return nil, vo.Validationf("nope")
	})
	assert.True(t, errors.Is(err, vo.ErrValidation))
	_, err = store.Get(ctx, "u2")
	require.NoError(t, err)

	job, err := svc.Claim(ctx, "u2", func(s *entity.CompressionSession) (*entity.ActiveJob, error) {
		return entity.NewActiveJob(s.UserID(), s.Media(), vo.AutoQuality(), t.TempDir(), time.Now()), nil
	})
	require.NoError(t, err)
	got, ok := jobs.Get("u2")
	require.True(t, ok)
	assert.Same(t, job, got)
	_, err = store.Get(ctx, "u2")
	assert.True(t, errors.Is(err, vo.ErrNotFound))

	_, err = svc.Claim(ctx, "u2", nil)
	assert.True(t, errors.Is(err, vo.ErrAlreadyActive))
}

func TestSweepExpiresOldSessions(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newMemSessions(), newMemJobs(), MediaPolicy{})
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	svc.now = func() time.Time { return base }
	_, err := svc.CreateSession(ctx, "old", vo.MediaRef{FileName: "a.mp4"})
	require.NoError(t, err)
	svc.now = func() time.Time { return base.Add(20 * time.Minute) }
	_, err = svc.CreateSession(ctx, "new", vo.MediaRef{FileName: "b.mp4"})
	require.NoError(t, err)

	n, err := svc.Sweep(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = svc.Get(ctx, "new")
	assert.NoError(t, err)

	n, err = svc.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	var km KeyedMutex
	unlock := km.Lock("a")
	acquired := make(chan struct{})
	go func() {
		u := km.Lock("a")
		close(acquired)
		u()
	}()
	select {
	case <-acquired:
		t.Fatal("second lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
}
