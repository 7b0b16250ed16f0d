package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/repo"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/redisclient"
)

func newRedisStore(t *testing.T, ttl time.Duration) (repo.SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return NewRedisStore(redisclient.Wrap(cli, "compress"), ttl), mr
}

// exerciseStore runs the contract every SessionStore must satisfy.
func exerciseStore(t *testing.T, store repo.SessionStore) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	media := vo.MediaRef{Key: "in/a.mp4", FileName: "a.mp4", Size: 42, DurationSeconds: 10}

	_, err := store.Get(ctx, "u1")
	assert.True(t, errors.Is(err, vo.ErrNotFound))
	assert.True(t, errors.Is(store.Save(ctx, entity.NewCompressionSession("u1", media, base)), vo.ErrNotFound))

	require.NoError(t, store.Create(ctx, entity.NewCompressionSession("u1", media, base)))
	err = store.Create(ctx, entity.NewCompressionSession("u1", media, base))
	assert.True(t, errors.Is(err, vo.ErrAlreadyActive))

	sess, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, media, sess.Media())
	assert.True(t, base.Equal(sess.CreatedAt()))

	require.NoError(t, sess.UpdateField(entity.FieldQuality, "720p"))
	require.NoError(t, store.Save(ctx, sess))
	sess, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "720p", sess.Quality())

	require.NoError(t, store.Create(ctx, entity.NewCompressionSession("u2", media, base.Add(time.Hour))))
	n, err := store.Expire(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = store.Get(ctx, "u1")
	assert.True(t, errors.Is(err, vo.ErrNotFound))

	require.NoError(t, store.Delete(ctx, "u2"))
	require.NoError(t, store.Delete(ctx, "u2"))
	_, err = store.Get(ctx, "u2")
	assert.True(t, errors.Is(err, vo.ErrNotFound))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	exerciseStore(t, store)
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)
	require.NoError(t, store.Create(ctx, entity.NewCompressionSession("u1", vo.MediaRef{FileName: "a.mp4"}, time.Now())))
	assert.True(t, mr.Exists("compress:session:u1"))

	sess, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, sess.UpdateField(entity.FieldQuality, "low"))
	require.NoError(t, store.Save(ctx, sess))
	assert.Equal(t, time.Minute, mr.TTL("compress:session:u1"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "u1")
	assert.True(t, errors.Is(err, vo.ErrNotFound))
}

func TestMemoryStoreConcurrentCreate(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Create(context.Background(), entity.NewCompressionSession("same", vo.MediaRef{}, time.Now())) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestJobRegistry(t *testing.T) {
	r := NewJobRegistry()
	now := time.Now()
	a := entity.NewActiveJob("a", vo.MediaRef{}, vo.AutoQuality(), t.TempDir(), now)
	b := entity.NewActiveJob("b", vo.MediaRef{}, vo.AutoQuality(), t.TempDir(), now.Add(-time.Second))
	defer a.Release()
	defer b.Release()

	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))
	dup := entity.NewActiveJob("a", vo.MediaRef{}, vo.AutoQuality(), t.TempDir(), now)
	defer dup.Release()
	assert.True(t, errors.Is(r.Register(dup), vo.ErrAlreadyActive))

	list := r.List()
	require.Len(t, list, 2)
	assert.Same(t, b, list[0])
	assert.Equal(t, 2, r.Count())

	assert.False(t, r.Remove("a", dup))
	assert.True(t, r.Remove("a", a))
	_, ok := r.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())
}
