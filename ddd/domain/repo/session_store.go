package repo

import (
	"context"
	"time"

	"compress-service/ddd/domain/entity"
)

// SessionStore 会话存储，按用户ID索引，实现需并发安全
type SessionStore interface {
	// Create fails with vo.ErrAlreadyActive when the user already has a session.
	Create(ctx context.Context, s *entity.CompressionSession) error
	// Get returns vo.ErrNotFound when absent.
	Get(ctx context.Context, userID string) (*entity.CompressionSession, error)
	// Save overwrites an existing session; vo.ErrNotFound when absent.
	Save(ctx context.Context, s *entity.CompressionSession) error
	// Delete is idempotent.
	Delete(ctx context.Context, userID string) error
	// Expire drops sessions created before cutoff and returns how many went.
	Expire(ctx context.Context, cutoff time.Time) (int, error)
}
