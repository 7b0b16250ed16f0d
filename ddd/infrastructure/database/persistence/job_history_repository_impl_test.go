package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"compress-service/ddd/domain/vo"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestRecordInsertsRow(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewJobHistoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `compress_jobs`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := r.Record(context.Background(), vo.FinalReport{
		JobID:     "job-1",
		UserID:    "u1",
		Outcome:   vo.StageDone,
		Durations: map[vo.Stage]time.Duration{vo.StageTranscoding: 1500 * time.Millisecond},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserMapsRows(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewJobHistoryRepository(db)
	finished := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "job_uuid", "user_id", "outcome", "failed_stage", "error_kind", "original_size", "compressed_size", "saved_percent", "stage_millis", "finished_at"}).
		AddRow(2, "job-2", "u1", "failed", "transcoding", "transcode_failed", 100, 0, 0.0, []byte(`{"downloading":250}`), finished).
		AddRow(1, "job-1", "u1", "done", "", "", 100, 40, 60.0, nil, finished.Add(-time.Hour))
	mock.ExpectQuery("SELECT \\* FROM `compress_jobs` WHERE user_id = \\? ORDER BY finished_at DESC LIMIT \\?").
		WillReturnRows(rows)

	reports, err := r.ListByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "job-2", reports[0].JobID)
	assert.Equal(t, vo.StageFailed, reports[0].Outcome)
	assert.Equal(t, vo.StageTranscoding, reports[0].FailedStage)
	assert.Equal(t, 250*time.Millisecond, reports[0].Durations[vo.StageDownloading])
	assert.Equal(t, finished, reports[0].FinishedAt)

	assert.True(t, reports[1].Succeeded())
	assert.Equal(t, 60.0, reports[1].SavedPercent)
	assert.Empty(t, reports[1].Durations)
	assert.NoError(t, mock.ExpectationsWereMet())
}
