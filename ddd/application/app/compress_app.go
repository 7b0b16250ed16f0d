package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"compress-service/ddd/application/cqe"
	"compress-service/ddd/application/dto"
	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/repo"
	"compress-service/ddd/domain/service"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/errno"
	"compress-service/pkg/logger"
)

// CompressApp 压缩服务应用层门面，HTTP、Kafka 和 CLI 共用
type CompressApp interface {
	// CreateSession 提交媒体，打开会话
	CreateSession(ctx context.Context, userID string, req *cqe.CreateSessionReq) (*dto.SessionDTO, error)
	// GetSession 查询自己的会话
	GetSession(ctx context.Context, userID string) (*dto.SessionDTO, error)
	// UpdateSession 修改会话中的一个字段
	UpdateSession(ctx context.Context, userID string, req *cqe.UpdateSessionReq) (*dto.SessionDTO, error)
	// DeleteSession 放弃会话
	DeleteSession(ctx context.Context, userID string) error
	// StartJob 用会话启动压缩任务
	StartJob(ctx context.Context, userID string) (*dto.JobDTO, error)
	// GetJob 查询任务状态，本人或管理员
	GetJob(ctx context.Context, actor vo.Actor, userID string) (*dto.JobDTO, error)
	// ListJobs 列出所有活跃任务，仅管理员
	ListJobs(ctx context.Context, actor vo.Actor) (*dto.JobListDTO, error)
	// CancelJob 取消任务，本人或管理员
	CancelJob(ctx context.Context, actor vo.Actor, userID string) (*service.CancelResult, error)
	// History 已结束任务的记录，未启用数据库时为空
	History(ctx context.Context, userID string, limit int) ([]vo.FinalReport, error)
	// Submit handles one queued request end to end: session, overrides, start.
	Submit(ctx context.Context, msg *cqe.CompressRequestMsg) (*dto.JobDTO, error)
	// SweepSessions drops sessions older than the configured TTL.
	SweepSessions(ctx context.Context) (int, error)
	Presets() []dto.PresetDTO
	Shutdown(ctx context.Context) error
}

type compressAppImpl struct {
	orch       *service.Orchestrator
	sessions   *service.SessionService
	history    repo.JobHistoryRepository
	sessionTTL time.Duration
	now        func() time.Time
}

// NewCompressApp wires the facade; history may be nil.
func NewCompressApp(orch *service.Orchestrator, history repo.JobHistoryRepository, sessionTTL time.Duration) CompressApp {
	return &compressAppImpl{
		orch:       orch,
		sessions:   orch.Sessions,
		history:    history,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

func (a *compressAppImpl) CreateSession(ctx context.Context, userID string, req *cqe.CreateSessionReq) (*dto.SessionDTO, error) {
	if userID == "" {
		return nil, errno.NewBizError(errno.ErrUserIDRequired, nil)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s, err := a.sessions.CreateSession(ctx, userID, req.Media())
	if err != nil {
		return nil, toBizError(err)
	}
	return dto.NewSessionDTO(s), nil
}

func (a *compressAppImpl) GetSession(ctx context.Context, userID string) (*dto.SessionDTO, error) {
	s, err := a.sessions.Get(ctx, userID)
	if err != nil {
		return nil, sessionError(err)
	}
	return dto.NewSessionDTO(s), nil
}

func (a *compressAppImpl) UpdateSession(ctx context.Context, userID string, req *cqe.UpdateSessionReq) (*dto.SessionDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s, err := a.sessions.UpdateField(ctx, userID, req.Field, req.Value)
	if err != nil {
		return nil, sessionError(err)
	}
	return dto.NewSessionDTO(s), nil
}

func (a *compressAppImpl) DeleteSession(ctx context.Context, userID string) error {
	if err := a.sessions.Delete(ctx, userID); err != nil {
		return toBizError(err)
	}
	return nil
}

func (a *compressAppImpl) StartJob(ctx context.Context, userID string) (*dto.JobDTO, error) {
	if userID == "" {
		return nil, errno.NewBizError(errno.ErrUserIDRequired, nil)
	}
	job, err := a.orch.Start(ctx, userID)
	if err != nil {
		return nil, sessionError(err)
	}
	return dto.NewJobDTO(job.View(), a.now()), nil
}

func (a *compressAppImpl) GetJob(_ context.Context, actor vo.Actor, userID string) (*dto.JobDTO, error) {
	if actor.ID != userID && !a.orch.IsAdmin(actor) {
		return nil, errno.NewBizError(errno.ErrForbidden, nil)
	}
	v, err := a.orch.Status(userID)
	if err != nil {
		return nil, toBizError(err)
	}
	return dto.NewJobDTO(v, a.now()), nil
}

func (a *compressAppImpl) ListJobs(_ context.Context, actor vo.Actor) (*dto.JobListDTO, error) {
	if !a.orch.IsAdmin(actor) {
		return nil, errno.NewBizError(errno.ErrForbidden, nil)
	}
	views := a.orch.List()
	now := a.now()
	out := &dto.JobListDTO{Jobs: make([]*dto.JobDTO, 0, len(views)), Total: len(views)}
	for _, v := range views {
		out.Jobs = append(out.Jobs, dto.NewJobDTO(v, now))
	}
	return out, nil
}

func (a *compressAppImpl) CancelJob(ctx context.Context, actor vo.Actor, userID string) (*service.CancelResult, error) {
	res, err := a.orch.Cancel(ctx, actor, userID)
	if err != nil {
		return nil, toBizError(err)
	}
	return &res, nil
}

func (a *compressAppImpl) History(ctx context.Context, userID string, limit int) ([]vo.FinalReport, error) {
	if a.history == nil {
		return []vo.FinalReport{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	reports, err := a.history.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return reports, nil
}

func (a *compressAppImpl) Submit(ctx context.Context, msg *cqe.CompressRequestMsg) (*dto.JobDTO, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	req := &cqe.CreateSessionReq{
		Key:             msg.Key,
		FileName:        msg.FileName,
		Size:            msg.Size,
		DurationSeconds: msg.DurationSeconds,
	}
	if _, err := a.CreateSession(ctx, msg.UserID, req); err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(msg.Overrides))
	for f := range msg.Overrides {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	updates := make([]cqe.UpdateSessionReq, 0, len(fields)+1)
	if msg.Quality != "" {
		updates = append(updates, cqe.UpdateSessionReq{Field: entity.FieldQuality, Value: msg.Quality})
	}
	for _, f := range fields {
		updates = append(updates, cqe.UpdateSessionReq{Field: f, Value: msg.Overrides[f]})
	}
	for i := range updates {
		if _, err := a.UpdateSession(ctx, msg.UserID, &updates[i]); err != nil {
			a.dropSession(ctx, msg.UserID)
			return nil, err
		}
	}

	job, err := a.StartJob(ctx, msg.UserID)
	if err != nil {
		// a queued request has no one to fix the session, so do not leave it behind
		a.dropSession(ctx, msg.UserID)
		return nil, err
	}
	return job, nil
}

func (a *compressAppImpl) dropSession(ctx context.Context, userID string) {
	if err := a.sessions.Delete(ctx, userID); err != nil {
		logger.Warnf("drop session failed user_id=%s error=%v", userID, err)
	}
}

func (a *compressAppImpl) SweepSessions(ctx context.Context) (int, error) {
	n, err := a.sessions.Sweep(ctx, a.sessionTTL)
	if err != nil {
		return 0, toBizError(err)
	}
	if n > 0 {
		logger.Info("expired sessions dropped", map[string]interface{}{"count": n})
	}
	return n, nil
}

func (a *compressAppImpl) Presets() []dto.PresetDTO {
	list := service.Presets()
	out := make([]dto.PresetDTO, 0, len(list))
	for _, p := range list {
		out = append(out, dto.PresetDTO{
			Name:        p.Name,
			Resolution:  p.Resolution,
			VideoCodec:  p.VideoCodec,
			CRF:         p.CRF,
			SpeedPreset: p.SpeedPreset,
		})
	}
	return out
}

func (a *compressAppImpl) Shutdown(ctx context.Context) error {
	return a.orch.Shutdown(ctx)
}

// toBizError maps domain errors onto errno codes; BizErrors pass through.
func toBizError(err error) error {
	if err == nil {
		return nil
	}
	var biz *errno.BizError
	if errors.As(err, &biz) {
		return err
	}
	return errno.FromKind(string(vo.KindOf(err)), err)
}

// sessionError is toBizError with NotFound meaning "no pending session".
func sessionError(err error) error {
	if errors.Is(err, vo.ErrNotFound) {
		return errno.NewBizError(errno.ErrSessionNotFound, err)
	}
	return toBizError(err)
}
