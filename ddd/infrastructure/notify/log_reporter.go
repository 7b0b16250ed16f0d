package notify

import (
	"context"

	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/logger"
)

// logReporter writes job events to the service log. It is the reporter of
// last resort when kafka is disabled, and the CLI's console output.
type logReporter struct{}

func NewLogReporter() gateway.Reporter { return logReporter{} }

func (logReporter) Status(_ context.Context, job gateway.JobRef, stage vo.Stage, text string) error {
	logger.Info(text, map[string]interface{}{
		"job_id":  job.JobID,
		"user_id": job.UserID,
		"stage":   stage,
	})
	return nil
}

func (logReporter) Progress(_ context.Context, job gateway.JobRef, snap vo.ProgressSnapshot) error {
	logger.Info("Transcoding progress", map[string]interface{}{
		"job_id":      job.JobID,
		"percentage":  snap.Percentage,
		"eta_seconds": snap.ETASeconds,
		"speed":       snap.Speed,
	})
	return nil
}

func (logReporter) Final(_ context.Context, job gateway.JobRef, report vo.FinalReport) error {
	fields := map[string]interface{}{
		"job_id":  job.JobID,
		"user_id": job.UserID,
		"outcome": report.Outcome,
	}
	if report.Succeeded() {
		fields["saved_percent"] = report.SavedPercent
		fields["location"] = report.Location
		logger.Info(report.Message, fields)
		return nil
	}
	fields["failed_stage"] = report.FailedStage
	fields["reason"] = report.Reason
	logger.Warn(report.Message, fields)
	return nil
}
