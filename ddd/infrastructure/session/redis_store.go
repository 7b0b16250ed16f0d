package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/repo"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/logger"
	"compress-service/pkg/redisclient"
)

// RedisStore 会话存于 Redis，key 为 <prefix>:session:<user_id>，值为 JSON
// 会话写入时带 TTL，Expire 只清理 TTL 之外按创建时间判定过期的记录
type RedisStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewRedisStore(client *redisclient.Client, ttl time.Duration) repo.SessionStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(userID string) string {
	return s.client.Key("session", userID)
}

func (s *RedisStore) Create(ctx context.Context, sess *entity.CompressionSession) error {
	body, err := json.Marshal(sess.State())
	if err != nil {
		return err
	}
	ok, err := s.client.Raw().SetNX(ctx, s.key(sess.UserID()), body, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx session: %w", err)
	}
	if !ok {
		return vo.NewJobError(vo.KindAlreadyActive, "", "a session is already open", nil)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*entity.CompressionSession, error) {
	body, err := s.client.Raw().Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, vo.NewJobError(vo.KindNotFound, "", "no session", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var st entity.SessionState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return entity.RestoreCompressionSession(st), nil
}

// Save keeps the TTL set at creation.
func (s *RedisStore) Save(ctx context.Context, sess *entity.CompressionSession) error {
	body, err := json.Marshal(sess.State())
	if err != nil {
		return err
	}
	err = s.client.Raw().SetArgs(ctx, s.key(sess.UserID()), body, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return vo.NewJobError(vo.KindNotFound, "", "no session", nil)
	}
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.client.Raw().Del(ctx, s.key(userID)).Err()
}

func (s *RedisStore) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	rdb := s.client.Raw()
	n := 0
	iter := rdb.Scan(ctx, 0, s.client.Key("session", "*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		body, err := rdb.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var st entity.SessionState
		if err := json.Unmarshal(body, &st); err != nil {
			logger.Warn("Dropping undecodable session", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		} else if !st.CreatedAt.Before(cutoff) {
			continue
		}
		if err := rdb.Del(ctx, key).Err(); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Err()
}
