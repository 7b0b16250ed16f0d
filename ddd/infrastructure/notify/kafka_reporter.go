package notify

import (
	"context"
	"time"

	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/kafka"
	"compress-service/pkg/logger"
)

// kafkaReporter 把任务事件写入 compress events topic，key 为用户ID
type kafkaReporter struct {
	producer kafka.Producer
	topic    string
	now      func() time.Time
}

func NewKafkaReporter(producer kafka.Producer, topic string) gateway.Reporter {
	return &kafkaReporter{producer: producer, topic: topic, now: time.Now}
}

func (r *kafkaReporter) Status(ctx context.Context, job gateway.JobRef, stage vo.Stage, text string) error {
	return r.publish(ctx, r.event(EventStatus, job, stage, text))
}

func (r *kafkaReporter) Progress(ctx context.Context, job gateway.JobRef, snap vo.ProgressSnapshot) error {
	ev := r.event(EventProgress, job, vo.StageTranscoding, "")
	ev.Progress = &snap
	return r.publish(ctx, ev)
}

func (r *kafkaReporter) Final(ctx context.Context, job gateway.JobRef, report vo.FinalReport) error {
	ev := r.event(EventFinal, job, report.Outcome, report.Message)
	ev.Report = &report
	return r.publish(ctx, ev)
}

func (r *kafkaReporter) event(t EventType, job gateway.JobRef, stage vo.Stage, text string) Event {
	return Event{
		Type:     t,
		JobID:    job.JobID,
		UserID:   job.UserID,
		FileName: job.FileName,
		Stage:    stage,
		Text:     text,
		At:       r.now(),
	}
}

func (r *kafkaReporter) publish(ctx context.Context, ev Event) error {
	if err := kafka.ProduceJSON(ctx, r.producer, r.topic, ev.UserID, ev); err != nil {
		logger.Error("Publish job event failed", map[string]interface{}{
			"job_id": ev.JobID,
			"type":   ev.Type,
			"error":  err.Error(),
		})
		return err
	}
	return nil
}
