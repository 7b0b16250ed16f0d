package cqe

import (
	"strings"

	"compress-service/ddd/domain/vo"
	"compress-service/pkg/errno"
)

// CreateSessionReq 提交待压缩的媒体
type CreateSessionReq struct {
	Key             string  `json:"key" binding:"required"` // 对象存储 key
	FileName        string  `json:"file_name"`              // 原始文件名，缺省取 key 的文件名
	Size            int64   `json:"size"`                   // 声明大小（字节）
	DurationSeconds float64 `json:"duration_seconds"`       // 声明时长，探测失败时兜底
}

func (req *CreateSessionReq) Validate() error {
	if strings.TrimSpace(req.Key) == "" {
		return errno.NewBizError(errno.ErrMissingParam, nil)
	}
	if req.Size < 0 || req.DurationSeconds < 0 {
		return errno.NewBizError(errno.ErrInvalidParam, nil)
	}
	return nil
}

func (req *CreateSessionReq) Media() vo.MediaRef {
	return vo.MediaRef{
		Key:             req.Key,
		FileName:        req.FileName,
		Size:            req.Size,
		DurationSeconds: req.DurationSeconds,
	}
}

// UpdateSessionReq 修改会话中的一个字段
type UpdateSessionReq struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

func (req *UpdateSessionReq) Validate() error {
	if strings.TrimSpace(req.Field) == "" {
		return errno.NewBizError(errno.ErrMissingParam, nil)
	}
	return nil
}

// CompressRequestMsg is one message on the compress requests topic. It opens
// a session, applies the overrides in field order and starts the job.
type CompressRequestMsg struct {
	UserID          string            `json:"user_id"`
	Key             string            `json:"key"`
	FileName        string            `json:"file_name"`
	Size            int64             `json:"size"`
	DurationSeconds float64           `json:"duration_seconds"`
	Quality         string            `json:"quality"`
	Overrides       map[string]string `json:"overrides,omitempty"`
}

func (m *CompressRequestMsg) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return errno.NewBizError(errno.ErrUserIDRequired, nil)
	}
	req := CreateSessionReq{Key: m.Key, Size: m.Size, DurationSeconds: m.DurationSeconds}
	return req.Validate()
}
