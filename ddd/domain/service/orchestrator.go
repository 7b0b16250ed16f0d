package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/port"
	"compress-service/ddd/domain/repo"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/logger"
)

const notifyTimeout = 10 * time.Second

// OrchestratorConfig 编排器配置
type OrchestratorConfig struct {
	WorkRoot          string
	PollInterval      time.Duration
	ProgressStep      int
	ThumbnailExts     []string
	MaxConcurrentJobs int // 0 means unlimited
	AdminUsers        []string
}

// OrchestratorDeps are the collaborators of an Orchestrator. History is optional.
type OrchestratorDeps struct {
	Sessions   *SessionService
	Jobs       repo.JobRegistry
	Resolver   *Resolver
	Transcoder port.Transcoder
	Monitor    *ProgressMonitor
	Media      gateway.MediaResolver
	Sink       gateway.ArtifactSink
	Reporter   gateway.Reporter
	OpsLog     gateway.OpsLog
	History    repo.JobHistoryRepository
}

// CancelResult describes what a cancel request did.
type CancelResult struct {
	JobID          string   `json:"job_id,omitempty"`
	Stage          vo.Stage `json:"stage,omitempty"`
	PID            int      `json:"pid,omitempty"`
	Killed         bool     `json:"killed"`
	SessionDropped bool     `json:"session_dropped,omitempty"`
	Warning        string   `json:"warning,omitempty"`
}

// Orchestrator 压缩任务编排：认领会话、驱动阶段流水线、取消与清理
type Orchestrator struct {
	OrchestratorDeps
	cfg     OrchestratorConfig
	admins  map[string]bool
	thumbs  map[string]bool
	slots   *semaphore.Weighted // nil when unlimited
	closing atomic.Bool
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) *Orchestrator {
	if deps.Monitor == nil {
		deps.Monitor = NewProgressMonitor(cfg.PollInterval)
	}
	if deps.Resolver == nil {
		deps.Resolver = NewResolver(DefaultResolverDefaults())
	}
	o := &Orchestrator{
		OrchestratorDeps: deps,
		cfg:              cfg,
		admins:           make(map[string]bool, len(cfg.AdminUsers)),
		thumbs:           make(map[string]bool, len(cfg.ThumbnailExts)),
		now:              time.Now,
	}
	if cfg.MaxConcurrentJobs > 0 {
		o.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs))
	}
	for _, id := range cfg.AdminUsers {
		o.admins[id] = true
	}
	for _, ext := range cfg.ThumbnailExts {
		o.thumbs[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return o
}

// Start claims the user's session and runs the job in the background.
func (o *Orchestrator) Start(ctx context.Context, userID string) (*entity.ActiveJob, error) {
	if o.closing.Load() {
		return nil, vo.NewJobError(vo.KindBusy, "", "shutting down", nil)
	}

	// 并发上限只占一个名额，不串行化不同用户的认领
	if o.slots != nil {
		if !o.slots.TryAcquire(1) {
			return nil, vo.NewJobError(vo.KindBusy, "", fmt.Sprintf("%d jobs running", o.cfg.MaxConcurrentJobs), nil)
		}
	}

	job, err := o.Sessions.Claim(ctx, userID, func(s *entity.CompressionSession) (*entity.ActiveJob, error) {
		sel, err := o.Resolver.SelectionFor(s)
		if err != nil {
			return nil, err
		}
		// presets and overrides do not depend on the source, reject bad ones now
		if _, err := o.Resolver.Resolve(sel, SourceInfo{}); err != nil {
			return nil, err
		}
		workDir := filepath.Join(o.cfg.WorkRoot, userID)
		return entity.NewActiveJob(userID, s.Media(), sel, workDir, o.now()), nil
	})
	if err != nil {
		o.releaseSlot()
		return nil, err
	}

	logger.Info("compression job started", map[string]interface{}{
		"job_id":  job.JobID(),
		"user_id": userID,
		"file":    job.Media().FileName,
	})
	o.wg.Add(1)
	go o.run(job)
	return job, nil
}

func refOf(job *entity.ActiveJob) gateway.JobRef {
	return gateway.JobRef{JobID: job.JobID(), UserID: job.UserID(), FileName: job.Media().FileName}
}

type stageStep struct {
	stage vo.Stage
	fn    func(ctx context.Context, job *entity.ActiveJob) error
}

func (o *Orchestrator) releaseSlot() {
	if o.slots != nil {
		o.slots.Release(1)
	}
}

func (o *Orchestrator) run(job *entity.ActiveJob) {
	defer o.wg.Done()
	defer o.releaseSlot()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("compression job panic job_id=%s: %v", job.JobID(), r)
			o.finish(job, vo.NewJobError(vo.KindTranscodeFailed, job.Stage(), fmt.Sprint(r), nil))
		}
	}()
	o.finish(job, o.pipeline(job))
}

func (o *Orchestrator) pipeline(job *entity.ActiveJob) error {
	ctx := job.Context()
	steps := []stageStep{
		{vo.StageDownloading, o.download},
		{vo.StageProbing, o.probe},
		{vo.StageTranscoding, o.transcode},
		{vo.StageThumbnailing, o.thumbnail},
		{vo.StageUploading, o.upload},
	}
	for _, step := range steps {
		if job.Cancelled() {
			return vo.NewJobError(vo.KindCancelled, job.Stage(), "", nil)
		}
		if err := job.Advance(step.stage, o.now()); err != nil {
			return vo.NewJobError(vo.KindTranscodeFailed, job.Stage(), "", err)
		}
		o.announce(job, step.stage)
		if err := step.fn(ctx, job); err != nil {
			return err
		}
	}
	if job.Cancelled() {
		return vo.NewJobError(vo.KindCancelled, job.Stage(), "", nil)
	}
	return nil
}

// announce posts the stage to the requester and replaces the ops-log note.
func (o *Orchestrator) announce(job *entity.ActiveJob, stage vo.Stage) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	ref := refOf(job)
	if err := o.Reporter.Status(ctx, ref, stage, stage.Label()); err != nil {
		logger.Warnf("status report failed job_id=%s stage=%s error=%v", ref.JobID, stage, err)
	}
	note, err := o.OpsLog.Post(ctx, fmt.Sprintf("[%s] %s: %s", ref.UserID, ref.FileName, stage.Label()))
	if err != nil {
		logger.Warnf("ops log post failed job_id=%s error=%v", ref.JobID, err)
		return
	}
	if prev := job.SwapNote(note); prev != "" {
		if err := o.OpsLog.Retire(ctx, prev); err != nil {
			logger.Debugf("ops log retire failed note=%s error=%v", prev, err)
		}
	}
}

func (o *Orchestrator) download(ctx context.Context, job *entity.ActiveJob) error {
	if err := os.MkdirAll(job.WorkDir(), 0o755); err != nil {
		return vo.NewJobError(vo.KindDownloadFailed, vo.StageDownloading, "create work dir", err)
	}
	src, err := o.Media.Open(ctx, job.Media())
	if err != nil {
		return o.stageErr(job, vo.KindDownloadFailed, "open media", err)
	}
	// 声明的大小不可信，按存储端大小再校验一次
	policy := o.Sessions.Policy()
	if err := policy.CheckSize(src.Size()); err != nil {
		return o.sizeErr(err)
	}
	ext := src.Ext()
	if ext == "" {
		ext = "mp4"
	}
	dst := filepath.Join(job.WorkDir(), "source."+ext)
	job.SetSourcePath(dst)
	if err := src.Download(ctx, dst); err != nil {
		return o.stageErr(job, vo.KindDownloadFailed, "download", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return o.stageErr(job, vo.KindDownloadFailed, "stat source", err)
	}
	if info.Size() == 0 {
		return vo.NewJobError(vo.KindDownloadFailed, vo.StageDownloading, "empty file", nil)
	}
	if err := policy.CheckSize(info.Size()); err != nil {
		return o.sizeErr(err)
	}
	job.SetSourceInfo(info.Size(), src.DurationSeconds())
	return nil
}

func (o *Orchestrator) probe(ctx context.Context, job *entity.ActiveJob) error {
	declared := job.DurationSeconds()
	res, err := o.Transcoder.Probe(ctx, job.SourcePath())
	if job.Cancelled() {
		return vo.NewJobError(vo.KindCancelled, vo.StageProbing, "", nil)
	}
	duration := res.DurationSeconds
	if err != nil || duration <= 0 {
		if declared <= 0 {
			return vo.NewJobError(vo.KindProbeFailed, vo.StageProbing, "duration unknown", err)
		}
		logger.Warnf("probe gave no duration, using declared %.1fs job_id=%s error=%v", declared, job.JobID(), err)
		duration = declared
	}
	job.SetSourceInfo(job.OriginalSize(), duration)

	params, err := o.Resolver.Resolve(job.Selection(), SourceInfo{SizeBytes: job.OriginalSize(), DurationSeconds: duration})
	if err != nil {
		reason := err.Error()
		var je *vo.JobError
		if errors.As(err, &je) {
			reason = je.Reason
		}
		return vo.NewJobError(vo.KindValidation, vo.StageProbing, reason, err)
	}
	job.SetParams(params)
	return nil
}

func (o *Orchestrator) transcode(ctx context.Context, job *entity.ActiveJob) error {
	output := filepath.Join(job.WorkDir(), fmt.Sprintf("%s_%d.mp4", job.UserID(), o.now().UnixNano()))
	job.SetOutputPath(output)
	_ = os.Remove(job.ProgressPath())

	handle, err := o.Transcoder.Start(ctx, job.Params(), job.SourcePath(), output, job.ProgressPath())
	if err != nil {
		return o.stageErr(job, vo.KindTranscodeFailed, "start ffmpeg", err)
	}
	job.SetPID(handle.PID())
	o.writeStatusFile(job, handle.PID())

	throttle := NewProgressThrottle(o.cfg.ProgressStep)
	total := job.DurationSeconds()
	var (
		exit port.ExitResult
		last vo.ProgressSnapshot
		g    errgroup.Group
	)
	g.Go(func() error {
		select {
		case <-handle.Done():
		case <-ctx.Done():
			if err := o.Transcoder.Kill(handle.PID()); err != nil {
				logger.Warnf("kill on cancel failed pid=%d error=%v", handle.PID(), err)
			}
		}
		exit = handle.Wait()
		return nil
	})
	g.Go(func() error {
		last = o.Monitor.Watch(ctx, job.ProgressPath(), total, handle.Done(), func(s vo.ProgressSnapshot) {
			job.SetProgress(s)
			if throttle.Allow(s) {
				o.reportProgress(job, s)
			}
		})
		return nil
	})
	_ = g.Wait()
	job.ClearPID()

	if job.Cancelled() {
		return vo.NewJobError(vo.KindCancelled, vo.StageTranscoding, "", nil)
	}
	if exit.Failed() {
		reason := fmt.Sprintf("ffmpeg exited with code %d", exit.ExitCode)
		if exit.StderrTail != "" {
			reason += ": " + exit.StderrTail
		}
		return vo.NewJobError(vo.KindTranscodeFailed, vo.StageTranscoding, reason, exit.Err)
	}
	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return vo.NewJobError(vo.KindTranscodeFailed, vo.StageTranscoding, "no output produced", err)
	}
	job.SetCompressedSize(info.Size())

	done := vo.ProgressSnapshot{
		Frame:          last.Frame,
		ElapsedSeconds: total,
		Speed:          last.Speed,
		Percentage:     100,
		Done:           true,
		ETASeconds:     vo.UnknownETA,
	}
	job.SetProgress(done)
	if throttle.Allow(done) {
		o.reportProgress(job, done)
	}
	return nil
}

func (o *Orchestrator) reportProgress(job *entity.ActiveJob, s vo.ProgressSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := o.Reporter.Progress(ctx, refOf(job), s); err != nil {
		logger.Debugf("progress report failed job_id=%s error=%v", job.JobID(), err)
	}
}

type statusFile struct {
	PID     int      `json:"pid"`
	Message string   `json:"message"`
	UserID  string   `json:"user_id"`
	Stage   vo.Stage `json:"stage"`
}

// writeStatusFile leaves the pid next to the job files for operators.
func (o *Orchestrator) writeStatusFile(job *entity.ActiveJob, pid int) {
	data, _ := json.Marshal(statusFile{PID: pid, Message: job.JobID(), UserID: job.UserID(), Stage: job.Stage()})
	if err := os.WriteFile(job.StatusPath(), data, 0o644); err != nil {
		logger.Warnf("write status file failed job_id=%s error=%v", job.JobID(), err)
	}
}

// thumbnail failures are logged and the job goes on without one.
func (o *Orchestrator) thumbnail(ctx context.Context, job *entity.ActiveJob) error {
	if !o.thumbs[job.Media().Ext()] {
		return nil
	}
	path, err := o.Transcoder.Thumbnail(ctx, job.OutputPath(), job.WorkDir(), job.DurationSeconds()/2)
	if err != nil {
		if job.Cancelled() {
			return vo.NewJobError(vo.KindCancelled, vo.StageThumbnailing, "", nil)
		}
		logger.Warnf("thumbnail skipped job_id=%s error=%v", job.JobID(), err)
		return nil
	}
	job.SetThumbnailPath(path)
	return nil
}

func (o *Orchestrator) upload(ctx context.Context, job *entity.ActiveJob) error {
	loc, err := o.Sink.Deliver(ctx, gateway.Artifact{
		JobID:         job.JobID(),
		UserID:        job.UserID(),
		FileName:      job.Media().FileName,
		VideoPath:     job.OutputPath(),
		ThumbnailPath: job.ThumbnailPath(),
		Caption:       o.caption(job),
	})
	if err != nil {
		return o.stageErr(job, vo.KindUploadFailed, "deliver", err)
	}
	job.SetLocation(loc)
	return nil
}

// caption summarizes the result for the delivered file.
func (o *Orchestrator) caption(job *entity.ActiveJob) string {
	orig, comp := job.OriginalSize(), job.CompressedSize()
	return fmt.Sprintf("%s: %s -> %s (saved %.1f%%), %s, compressed in %s",
		job.Media().FileName,
		humanize.Bytes(uint64(orig)),
		humanize.Bytes(uint64(comp)),
		vo.SavedPercent(orig, comp),
		job.Params().Summary(),
		job.StageDuration(vo.StageTranscoding, o.now()).Round(time.Second),
	)
}

// stageErr classifies err, turning context cancellation into Cancelled.
func (o *Orchestrator) sizeErr(err error) error {
	reason := err.Error()
	var je *vo.JobError
	if errors.As(err, &je) {
		reason = je.Reason
	}
	return vo.NewJobError(vo.KindValidation, vo.StageDownloading, reason, nil)
}

func (o *Orchestrator) stageErr(job *entity.ActiveJob, kind vo.ErrorKind, reason string, err error) error {
	if job.Cancelled() {
		return vo.NewJobError(vo.KindCancelled, job.Stage(), "", err)
	}
	return vo.NewJobError(kind, job.Stage(), reason, err)
}

func (o *Orchestrator) finish(job *entity.ActiveJob, err error) {
	failedAt := job.Stage()
	outcome := vo.StageDone
	var je *vo.JobError
	if err != nil {
		if !errors.As(err, &je) {
			je = vo.NewJobError(vo.KindTranscodeFailed, failedAt, "", err)
		}
		if job.Cancelled() && je.Kind != vo.KindCancelled {
			je = vo.NewJobError(vo.KindCancelled, failedAt, "", err)
		}
		outcome = vo.StageFailed
		if je.Kind == vo.KindCancelled {
			outcome = vo.StageCancelled
		}
		job.SetFailure(je)
	}
	if advErr := job.Advance(outcome, o.now()); advErr != nil {
		logger.Warnf("terminal transition failed job_id=%s error=%v", job.JobID(), advErr)
	}

	report := o.report(job, outcome, failedAt, je)
	o.Cleanup(job)

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	ref := refOf(job)
	if err := o.Reporter.Final(ctx, ref, report); err != nil {
		logger.Warnf("final report failed job_id=%s error=%v", ref.JobID, err)
	}
	if _, err := o.OpsLog.Post(ctx, fmt.Sprintf("[%s] %s: %s", ref.UserID, ref.FileName, report.Message)); err != nil {
		logger.Debugf("ops log final note failed job_id=%s error=%v", ref.JobID, err)
	}
	if o.History != nil {
		if err := o.History.Record(ctx, report); err != nil {
			logger.Warnf("record job history failed job_id=%s error=%v", ref.JobID, err)
		}
	}
	job.Release()

	fields := map[string]interface{}{
		"job_id":  ref.JobID,
		"user_id": ref.UserID,
		"outcome": outcome,
	}
	if je != nil {
		fields["kind"] = je.Kind
		fields["stage"] = je.Stage
		fields["reason"] = je.Reason
		logger.Warn("compression job ended", fields)
		return
	}
	fields["saved_percent"] = report.SavedPercent
	logger.Info("compression job ended", fields)
}

func (o *Orchestrator) report(job *entity.ActiveJob, outcome, failedAt vo.Stage, je *vo.JobError) vo.FinalReport {
	now := o.now()
	r := vo.FinalReport{
		JobID:          job.JobID(),
		UserID:         job.UserID(),
		FileName:       job.Media().FileName,
		Outcome:        outcome,
		OriginalSize:   job.OriginalSize(),
		CompressedSize: job.CompressedSize(),
		Durations:      job.Durations(now),
		Location:       job.Location(),
		StartedAt:      job.CreatedAt(),
		FinishedAt:     job.FinishedAt(),
	}
	if p := job.Params(); p.Rate != 0 {
		r.Parameters = p.Summary()
	}
	if je != nil {
		r.FailedStage = failedAt
		r.Kind = je.Kind
		r.Reason = je.Reason
		r.Message = je.Kind.TerminalMessage()
		return r
	}
	r.SavedPercent = vo.SavedPercent(r.OriginalSize, r.CompressedSize)
	r.Message = o.caption(job)
	return r
}

// Cleanup removes the job's files, its session and its registry entry.
// Safe to call more than once.
func (o *Orchestrator) Cleanup(job *entity.ActiveJob) {
	for _, p := range job.ArtifactPaths() {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warnf("remove job file failed path=%s error=%v", p, err)
		}
	}
	if err := os.Remove(job.WorkDir()); err != nil && !os.IsNotExist(err) {
		logger.Debugf("work dir kept path=%s error=%v", job.WorkDir(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := o.Sessions.Delete(ctx, job.UserID()); err != nil {
		logger.Warnf("delete session failed user_id=%s error=%v", job.UserID(), err)
	}
	o.Jobs.Remove(job.UserID(), job)
	if note := job.SwapNote(""); note != "" {
		if err := o.OpsLog.Retire(ctx, note); err != nil {
			logger.Debugf("ops log retire failed note=%s error=%v", note, err)
		}
	}
}

// Cancel stops the user's job. Admins and configured admin users may cancel
// anyone's job. Without a job, a pending session is dropped instead.
func (o *Orchestrator) Cancel(ctx context.Context, actor vo.Actor, userID string) (CancelResult, error) {
	if !o.mayActOn(actor, userID) {
		return CancelResult{}, vo.NewJobError(vo.KindUnauthorized, "", "not the job owner", nil)
	}
	job, ok := o.Jobs.Get(userID)
	if !ok {
		if _, err := o.Sessions.Get(ctx, userID); err != nil {
			return CancelResult{}, vo.NewJobError(vo.KindNotFound, "", "no active job", nil)
		}
		if err := o.Sessions.Delete(ctx, userID); err != nil {
			return CancelResult{}, err
		}
		return CancelResult{SessionDropped: true}, nil
	}

	job.Cancel()
	res := CancelResult{JobID: job.JobID(), Stage: job.Stage(), PID: job.PID()}
	if res.PID > 0 {
		if err := o.Transcoder.Kill(res.PID); err != nil {
			res.Warning = "termination attempted: " + err.Error()
			logger.Warnf("cancel kill failed job_id=%s pid=%d error=%v", res.JobID, res.PID, err)
		} else {
			res.Killed = true
		}
	}
	logger.Info("compression job cancel requested", map[string]interface{}{
		"job_id":  res.JobID,
		"user_id": userID,
		"actor":   actor.ID,
		"stage":   res.Stage,
		"pid":     res.PID,
		"killed":  res.Killed,
		"warning": res.Warning,
	})
	return res, nil
}

func (o *Orchestrator) mayActOn(actor vo.Actor, userID string) bool {
	return actor.Admin || actor.ID == userID || o.admins[actor.ID]
}

// IsAdmin reports whether the actor may see and cancel every job.
func (o *Orchestrator) IsAdmin(actor vo.Actor) bool {
	return actor.Admin || o.admins[actor.ID]
}

// Status returns a view of the user's running job.
func (o *Orchestrator) Status(userID string) (entity.JobView, error) {
	job, ok := o.Jobs.Get(userID)
	if !ok {
		return entity.JobView{}, vo.NewJobError(vo.KindNotFound, "", "no active job", nil)
	}
	return job.View(), nil
}

// List returns views of every running job.
func (o *Orchestrator) List() []entity.JobView {
	jobs := o.Jobs.List()
	out := make([]entity.JobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.View())
	}
	return out
}

// Shutdown refuses new jobs, cancels running ones and waits for them to
// clean up or for ctx to end.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.closing.Store(true)
	for _, job := range o.Jobs.List() {
		job.Cancel()
		if pid := job.PID(); pid > 0 {
			_ = o.Transcoder.Kill(pid)
		}
	}
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every started job finished. Used by tests and the CLI.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
