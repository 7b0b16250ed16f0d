package vo

import (
	"math"
	"time"
)

// FinalReport 任务终态报告
type FinalReport struct {
	JobID          string                  `json:"job_id"`
	UserID         string                  `json:"user_id"`
	FileName       string                  `json:"file_name"`
	Outcome        Stage                   `json:"outcome"`
	FailedStage    Stage                   `json:"failed_stage,omitempty"`
	Kind           ErrorKind               `json:"kind,omitempty"`
	Reason         string                  `json:"reason,omitempty"`
	Message        string                  `json:"message"`
	OriginalSize   int64                   `json:"original_size"`
	CompressedSize int64                   `json:"compressed_size"`
	SavedPercent   float64                 `json:"saved_percent"`
	Durations      map[Stage]time.Duration `json:"durations"`
	Parameters     string                  `json:"parameters,omitempty"`
	Location       string                  `json:"location,omitempty"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
}

// Succeeded is true for Done outcomes.
func (r FinalReport) Succeeded() bool { return r.Outcome == StageDone }

// SavedPercent is the size reduction in percent, rounded to one decimal.
// It is negative when the output grew and 0 when the original is empty.
func SavedPercent(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	saved := float64(original-compressed) * 100 / float64(original)
	return math.Round(saved*10) / 10
}
