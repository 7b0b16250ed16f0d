package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/repo"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/logger"
)

// MediaPolicy 入口校验：大小上限与允许的扩展名
type MediaPolicy struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

// Check rejects media that is too large or of an unsupported type.
func (p MediaPolicy) Check(m vo.MediaRef) error {
	if err := p.CheckSize(m.Size); err != nil {
		return err
	}
	if len(p.AllowedExtensions) == 0 {
		return nil
	}
	ext := m.Ext()
	for _, allowed := range p.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return nil
		}
	}
	return vo.Validationf("unsupported file type %q", ext)
}

// CheckSize applies the size limit to a byte count. The declared size is only
// a hint; the orchestrator re-checks the stat and downloaded sizes.
func (p MediaPolicy) CheckSize(size int64) error {
	if p.MaxFileSize > 0 && size > p.MaxFileSize {
		return vo.Validationf("file is %d bytes, limit is %d", size, p.MaxFileSize)
	}
	return nil
}

// SessionService 会话生命周期：创建、修改、认领为任务。
// 同一用户的会话与任务操作在用户锁内完成。
type SessionService struct {
	store  repo.SessionStore
	jobs   repo.JobRegistry
	locks  *KeyedMutex
	policy MediaPolicy
	now    func() time.Time
}

func NewSessionService(store repo.SessionStore, jobs repo.JobRegistry, policy MediaPolicy) *SessionService {
	return &SessionService{
		store:  store,
		jobs:   jobs,
		locks:  &KeyedMutex{},
		policy: policy,
		now:    time.Now,
	}
}

// CreateSession opens a session for userID. It fails with AlreadyActive when
// the user has a session or a running job.
func (s *SessionService) CreateSession(ctx context.Context, userID string, media vo.MediaRef) (*entity.CompressionSession, error) {
	if userID == "" {
		return nil, vo.Validationf("user id is required")
	}
	if err := s.policy.Check(media); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if _, ok := s.jobs.Get(userID); ok {
		return nil, vo.NewJobError(vo.KindAlreadyActive, "", "job in progress", nil)
	}
	sess := entity.NewCompressionSession(userID, media, s.now())
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	logger.Info("session created", map[string]interface{}{
		"user_id": userID,
		"file":    media.FileName,
		"size":    media.Size,
	})
	return sess, nil
}

// Policy is the media policy applied at admission.
func (s *SessionService) Policy() MediaPolicy {
	return s.policy
}

func (s *SessionService) Get(ctx context.Context, userID string) (*entity.CompressionSession, error) {
	return s.store.Get(ctx, userID)
}

// UpdateField changes one setting of a pending session.
func (s *SessionService) UpdateField(ctx context.Context, userID, field, value string) (*entity.CompressionSession, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.UpdateField(field, value); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete drops a pending session. Deleting nothing is not an error.
func (s *SessionService) Delete(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.store.Delete(ctx, userID)
}

// Claim turns the user's session into a registered job. build runs under the
// user lock; the session is consumed only if the job was registered.
func (s *SessionService) Claim(ctx context.Context, userID string,
	build func(*entity.CompressionSession) (*entity.ActiveJob, error)) (*entity.ActiveJob, error) {

	unlock := s.locks.Lock(userID)
	defer unlock()

	if _, ok := s.jobs.Get(userID); ok {
		return nil, vo.NewJobError(vo.KindAlreadyActive, "", "job in progress", nil)
	}
	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	job, err := build(sess)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Register(job); err != nil {
		job.Release()
		return nil, err
	}
	if err := s.store.Delete(ctx, userID); err != nil && !errors.Is(err, vo.ErrNotFound) {
		logger.Warnf("session delete after claim failed user_id=%s error=%v", userID, err)
	}
	return job, nil
}

// Sweep expires sessions older than ttl.
func (s *SessionService) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	return s.store.Expire(ctx, s.now().Add(-ttl))
}
