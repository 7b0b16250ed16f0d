package persistence

import (
	"context"

	"gorm.io/gorm"

	"compress-service/ddd/domain/repo"
	"compress-service/ddd/domain/vo"
	"compress-service/ddd/infrastructure/database/convertor"
	"compress-service/ddd/infrastructure/database/dao"
)

type jobHistoryRepositoryImpl struct {
	dao       *dao.CompressJobDAO
	convertor *convertor.CompressJobConvertor
}

func NewJobHistoryRepository(db *gorm.DB) repo.JobHistoryRepository {
	return &jobHistoryRepositoryImpl{
		dao:       dao.NewCompressJobDAO(db),
		convertor: convertor.NewCompressJobConvertor(),
	}
}

func (r *jobHistoryRepositoryImpl) Record(ctx context.Context, report vo.FinalReport) error {
	return r.dao.Create(ctx, r.convertor.ToPO(report))
}

func (r *jobHistoryRepositoryImpl) ListByUser(ctx context.Context, userID string, limit int) ([]vo.FinalReport, error) {
	rows, err := r.dao.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]vo.FinalReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.convertor.ToReport(row))
	}
	return out, nil
}
