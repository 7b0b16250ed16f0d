package convertor

import (
	"time"

	"compress-service/ddd/domain/vo"
	"compress-service/ddd/infrastructure/database/po"
)

type CompressJobConvertor struct{}

func NewCompressJobConvertor() *CompressJobConvertor { return &CompressJobConvertor{} }

// ToPO flattens a final report; stage durations are stored in milliseconds.
func (c *CompressJobConvertor) ToPO(r vo.FinalReport) *po.CompressJob {
	millis := make(po.JSONMap, len(r.Durations))
	for stage, d := range r.Durations {
		millis[string(stage)] = d.Milliseconds()
	}
	return &po.CompressJob{
		JobUUID:        r.JobID,
		UserID:         r.UserID,
		FileName:       r.FileName,
		Outcome:        string(r.Outcome),
		FailedStage:    string(r.FailedStage),
		ErrorKind:      string(r.Kind),
		Reason:         truncate(r.Reason, 1024),
		Message:        truncate(r.Message, 1024),
		Parameters:     truncate(r.Parameters, 255),
		Location:       r.Location,
		OriginalSize:   r.OriginalSize,
		CompressedSize: r.CompressedSize,
		SavedPercent:   r.SavedPercent,
		StageMillis:    millis,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

func (c *CompressJobConvertor) ToReport(p *po.CompressJob) vo.FinalReport {
	if p == nil {
		return vo.FinalReport{}
	}
	durations := make(map[vo.Stage]time.Duration, len(p.StageMillis))
	for stage, v := range p.StageMillis {
		// JSON numbers come back as float64
		switch ms := v.(type) {
		case float64:
			durations[vo.Stage(stage)] = time.Duration(ms) * time.Millisecond
		case int64:
			durations[vo.Stage(stage)] = time.Duration(ms) * time.Millisecond
		}
	}
	return vo.FinalReport{
		JobID:          p.JobUUID,
		UserID:         p.UserID,
		FileName:       p.FileName,
		Outcome:        vo.Stage(p.Outcome),
		FailedStage:    vo.Stage(p.FailedStage),
		Kind:           vo.ErrorKind(p.ErrorKind),
		Reason:         p.Reason,
		Message:        p.Message,
		Parameters:     p.Parameters,
		Location:       p.Location,
		OriginalSize:   p.OriginalSize,
		CompressedSize: p.CompressedSize,
		SavedPercent:   p.SavedPercent,
		Durations:      durations,
		StartedAt:      p.StartedAt,
		FinishedAt:     p.FinishedAt,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
