package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/repo"
	"compress-service/ddd/domain/vo"
)

const shardCount = 32

type shard struct {
	mu sync.RWMutex
	m  map[string]entity.SessionState
}

// MemoryStore 进程内会话存储，按用户ID分片加锁
type MemoryStore struct {
	shards [shardCount]*shard
}

func NewMemoryStore() repo.SessionStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{m: make(map[string]entity.SessionState)}
	}
	return s
}

func (s *MemoryStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) Create(_ context.Context, sess *entity.CompressionSession) error {
	sh := s.shardFor(sess.UserID())
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.m[sess.UserID()]; ok {
		return vo.NewJobError(vo.KindAlreadyActive, "", "a session is already open", nil)
	}
	sh.m[sess.UserID()] = sess.State()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*entity.CompressionSession, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.m[userID]
	if !ok {
		return nil, vo.NewJobError(vo.KindNotFound, "", "no session", nil)
	}
	return entity.RestoreCompressionSession(st), nil
}

func (s *MemoryStore) Save(_ context.Context, sess *entity.CompressionSession) error {
	sh := s.shardFor(sess.UserID())
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.m[sess.UserID()]; !ok {
		return vo.NewJobError(vo.KindNotFound, "", "no session", nil)
	}
	sh.m[sess.UserID()] = sess.State()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	delete(sh.m, userID)
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) Expire(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, st := range sh.m {
			if st.CreatedAt.Before(cutoff) {
				delete(sh.m, id)
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n, nil
}
