package notify

import (
	"context"

	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/logger"
)

// fanoutReporter 向多个下游推送同一事件，单个下游失败不影响其他下游
type fanoutReporter struct {
	targets []gateway.Reporter
}

func NewFanoutReporter(targets ...gateway.Reporter) gateway.Reporter {
	live := make([]gateway.Reporter, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			live = append(live, t)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return &fanoutReporter{targets: live}
}

func (r *fanoutReporter) Status(ctx context.Context, job gateway.JobRef, stage vo.Stage, text string) error {
	return r.each(job, func(t gateway.Reporter) error { return t.Status(ctx, job, stage, text) })
}

func (r *fanoutReporter) Progress(ctx context.Context, job gateway.JobRef, snap vo.ProgressSnapshot) error {
	return r.each(job, func(t gateway.Reporter) error { return t.Progress(ctx, job, snap) })
}

func (r *fanoutReporter) Final(ctx context.Context, job gateway.JobRef, report vo.FinalReport) error {
	return r.each(job, func(t gateway.Reporter) error { return t.Final(ctx, job, report) })
}

// each returns the first error after every target was tried.
func (r *fanoutReporter) each(job gateway.JobRef, fn func(gateway.Reporter) error) error {
	var first error
	for _, t := range r.targets {
		if err := fn(t); err != nil {
			logger.Warn("Reporter target failed", map[string]interface{}{
				"job_id": job.JobID,
				"error":  err.Error(),
			})
			if first == nil {
				first = err
			}
		}
	}
	return first
}
