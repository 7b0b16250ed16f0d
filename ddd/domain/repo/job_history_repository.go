package repo

import (
	"context"

	"compress-service/ddd/domain/vo"
)

// JobHistoryRepository 任务历史与统计
type JobHistoryRepository interface {
	Record(ctx context.Context, report vo.FinalReport) error
	ListByUser(ctx context.Context, userID string, limit int) ([]vo.FinalReport, error)
}
