package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/vo"
)

// cliReporter prints job events to the terminal and keeps the final report.
type cliReporter struct {
	mu    sync.Mutex
	out   io.Writer
	final *vo.FinalReport
}

func newCLIReporter(out io.Writer) *cliReporter {
	return &cliReporter{out: out}
}

func (r *cliReporter) Status(_ context.Context, _ gateway.JobRef, stage vo.Stage, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.out, "[%s] %s\n", stage, text)
	return err
}

func (r *cliReporter) Progress(_ context.Context, _ gateway.JobRef, snap vo.ProgressSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	eta := "unknown"
	if snap.HasETA() {
		eta = fmt.Sprintf("%ds", snap.ETASeconds)
	}
	_, err := fmt.Fprintf(r.out, "  %3d%%  frame=%d speed=%.2fx eta=%s\n", snap.Percentage, snap.Frame, snap.Speed, eta)
	return err
}

func (r *cliReporter) Final(_ context.Context, _ gateway.JobRef, report vo.FinalReport) error {
	r.mu.Lock()
	r.final = &report
	r.mu.Unlock()
	return nil
}

func (r *cliReporter) report() (vo.FinalReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final == nil {
		return vo.FinalReport{}, false
	}
	return *r.final, true
}
