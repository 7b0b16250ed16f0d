package gateway

import (
	"context"

	"compress-service/ddd/domain/vo"
)

// JobRef identifies the job an event belongs to.
type JobRef struct {
	JobID    string
	UserID   string
	FileName string
}

// Reporter 向请求方推送状态、进度与终态报告
type Reporter interface {
	Status(ctx context.Context, job JobRef, stage vo.Stage, text string) error
	Progress(ctx context.Context, job JobRef, snap vo.ProgressSnapshot) error
	Final(ctx context.Context, job JobRef, report vo.FinalReport) error
}

// OpsLog is the operator-facing channel. Each job keeps one live note; a new
// stage posts a fresh note and the previous one is retired.
type OpsLog interface {
	Post(ctx context.Context, text string) (noteID string, err error)
	Retire(ctx context.Context, noteID string) error
}
