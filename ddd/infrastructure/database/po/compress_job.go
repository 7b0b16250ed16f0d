package po

import "time"

// CompressJob 压缩任务历史记录，每个终态任务一行
type CompressJob struct {
	BaseModel
	JobUUID        string    `gorm:"column:job_uuid;type:varchar(36);uniqueIndex" json:"job_uuid"`
	UserID         string    `gorm:"column:user_id;type:varchar(64);index" json:"user_id"`
	FileName       string    `gorm:"column:file_name;type:varchar(255)" json:"file_name"`
	Outcome        string    `gorm:"column:outcome;type:varchar(20);index" json:"outcome"`
	FailedStage    string    `gorm:"column:failed_stage;type:varchar(20)" json:"failed_stage"`
	ErrorKind      string    `gorm:"column:error_kind;type:varchar(32)" json:"error_kind"`
	Reason         string    `gorm:"column:reason;type:varchar(1024)" json:"reason"`
	Message        string    `gorm:"column:message;type:varchar(1024)" json:"message"`
	Parameters     string    `gorm:"column:parameters;type:varchar(255)" json:"parameters"`
	Location       string    `gorm:"column:location;type:varchar(512)" json:"location"`
	OriginalSize   int64     `gorm:"column:original_size;type:bigint" json:"original_size"`
	CompressedSize int64     `gorm:"column:compressed_size;type:bigint" json:"compressed_size"`
	SavedPercent   float64   `gorm:"column:saved_percent" json:"saved_percent"`
	StageMillis    JSONMap   `gorm:"column:stage_millis;type:json" json:"stage_millis"`
	StartedAt      time.Time `gorm:"column:started_at" json:"started_at"`
	FinishedAt     time.Time `gorm:"column:finished_at" json:"finished_at"`
}

// TableName 指定表名
func (CompressJob) TableName() string {
	return "compress_jobs"
}
