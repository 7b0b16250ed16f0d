package dao

import (
	"context"

	"gorm.io/gorm"

	"compress-service/ddd/infrastructure/database/po"
)

// CompressJobDAO 压缩任务历史数据访问对象
type CompressJobDAO struct {
	db *gorm.DB
}

func NewCompressJobDAO(db *gorm.DB) *CompressJobDAO {
	return &CompressJobDAO{db: db}
}

func (d *CompressJobDAO) Create(ctx context.Context, job *po.CompressJob) error {
	return d.db.WithContext(ctx).Create(job).Error
}

// ListByUser returns the newest jobs first.
func (d *CompressJobDAO) ListByUser(ctx context.Context, userID string, limit int) ([]*po.CompressJob, error) {
	var jobs []*po.CompressJob
	q := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("finished_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// OutcomeCount 按终态统计
type OutcomeCount struct {
	Outcome string
	Total   int64
}

func (d *CompressJobDAO) CountByOutcome(ctx context.Context) ([]OutcomeCount, error) {
	var rows []OutcomeCount
	err := d.db.WithContext(ctx).Model(&po.CompressJob{}).
		Select("outcome, count(*) as total").
		Group("outcome").
		Scan(&rows).Error
	return rows, err
}

// AutoMigrate 创建或更新表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&po.CompressJob{})
}
