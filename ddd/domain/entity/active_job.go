package entity

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"compress-service/ddd/domain/vo"
)

const (
	ProgressFileName = "progress.txt"
	StatusFileName   = "status.json"
)

// ActiveJob 正在运行的压缩任务，每个用户至多一个。
// 由编排器独占写入，取消请求只通过 Cancel 触达。
type ActiveJob struct {
	mu sync.RWMutex

	jobID     string
	userID    string
	media     vo.MediaRef
	selection vo.Selection
	workDir   string

	stage         vo.Stage
	pid           int
	sourcePath    string
	outputPath    string
	thumbnailPath string
	location      string
	params        vo.EncodingParameters
	progress      vo.ProgressSnapshot

	originalSize   int64
	compressedSize int64
	duration       float64

	stageStarted map[vo.Stage]time.Time
	stageEnded   map[vo.Stage]time.Time
	createdAt    time.Time
	finishedAt   time.Time

	cancelled bool
	noteID    string
	failure   *vo.JobError

	ctx    context.Context
	cancel context.CancelFunc
}

// NewActiveJob creates a job in Idle with its own cancellable context.
func NewActiveJob(userID string, media vo.MediaRef, sel vo.Selection, workDir string, now time.Time) *ActiveJob {
	ctx, cancel := context.WithCancel(context.Background())
	return &ActiveJob{
		jobID:        uuid.NewString(),
		userID:       userID,
		media:        media,
		selection:    sel,
		workDir:      workDir,
		stage:        vo.StageIdle,
		progress:     vo.ProgressSnapshot{ETASeconds: vo.UnknownETA},
		stageStarted: make(map[vo.Stage]time.Time),
		stageEnded:   make(map[vo.Stage]time.Time),
		createdAt:    now,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Getters
func (j *ActiveJob) JobID() string            { return j.jobID }
func (j *ActiveJob) UserID() string           { return j.userID }
func (j *ActiveJob) Media() vo.MediaRef       { return j.media }
func (j *ActiveJob) Selection() vo.Selection  { return j.selection }
func (j *ActiveJob) WorkDir() string          { return j.workDir }
func (j *ActiveJob) CreatedAt() time.Time     { return j.createdAt }
func (j *ActiveJob) Context() context.Context { return j.ctx }
func (j *ActiveJob) ProgressPath() string     { return filepath.Join(j.workDir, ProgressFileName) }
func (j *ActiveJob) StatusPath() string       { return filepath.Join(j.workDir, StatusFileName) }

func (j *ActiveJob) Stage() vo.Stage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stage
}

// Advance moves to the next stage and stamps the stage boundaries.
func (j *ActiveJob) Advance(target vo.Stage, now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.stage.CanTransitionTo(target) {
		return fmt.Errorf("illegal stage transition %s -> %s", j.stage, target)
	}
	if _, ok := j.stageStarted[j.stage]; ok {
		if _, ended := j.stageEnded[j.stage]; !ended {
			j.stageEnded[j.stage] = now
		}
	}
	j.stage = target
	if target.IsTerminal() {
		j.finishedAt = now
		j.pid = 0
	} else {
		j.stageStarted[target] = now
	}
	return nil
}

// PID is the live transcoder process id, 0 when none.
func (j *ActiveJob) PID() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.pid
}

func (j *ActiveJob) SetPID(pid int) {
	j.mu.Lock()
	j.pid = pid
	j.mu.Unlock()
}

// ClearPID forgets the process id once the process has exited.
func (j *ActiveJob) ClearPID() {
	j.SetPID(0)
}

func (j *ActiveJob) SetSourcePath(p string) {
	j.mu.Lock()
	j.sourcePath = p
	j.mu.Unlock()
}

func (j *ActiveJob) SourcePath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.sourcePath
}

func (j *ActiveJob) SetOutputPath(p string) {
	j.mu.Lock()
	j.outputPath = p
	j.mu.Unlock()
}

func (j *ActiveJob) OutputPath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.outputPath
}

func (j *ActiveJob) SetThumbnailPath(p string) {
	j.mu.Lock()
	j.thumbnailPath = p
	j.mu.Unlock()
}

func (j *ActiveJob) ThumbnailPath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.thumbnailPath
}

// SetLocation records where the result was delivered.
func (j *ActiveJob) SetLocation(loc string) {
	j.mu.Lock()
	j.location = loc
	j.mu.Unlock()
}

func (j *ActiveJob) Location() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.location
}

// ArtifactPaths lists every file the job may have written.
func (j *ActiveJob) ArtifactPaths() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return []string{j.sourcePath, j.outputPath, j.thumbnailPath,
		filepath.Join(j.workDir, ProgressFileName), filepath.Join(j.workDir, StatusFileName)}
}

func (j *ActiveJob) SetParams(p vo.EncodingParameters) {
	j.mu.Lock()
	j.params = p
	j.mu.Unlock()
}

func (j *ActiveJob) Params() vo.EncodingParameters {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.params
}

func (j *ActiveJob) SetProgress(s vo.ProgressSnapshot) {
	j.mu.Lock()
	j.progress = s
	j.mu.Unlock()
}

func (j *ActiveJob) Progress() vo.ProgressSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

// SetSourceInfo records the downloaded size and probed duration.
func (j *ActiveJob) SetSourceInfo(size int64, durationSeconds float64) {
	j.mu.Lock()
	j.originalSize = size
	j.duration = durationSeconds
	j.mu.Unlock()
}

func (j *ActiveJob) OriginalSize() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.originalSize
}

func (j *ActiveJob) DurationSeconds() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.duration
}

func (j *ActiveJob) SetCompressedSize(n int64) {
	j.mu.Lock()
	j.compressedSize = n
	j.mu.Unlock()
}

func (j *ActiveJob) CompressedSize() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.compressedSize
}

// StageDuration is end-start of a stage; a running stage counts up to now.
func (j *ActiveJob) StageDuration(s vo.Stage, now time.Time) time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	start, ok := j.stageStarted[s]
	if !ok {
		return 0
	}
	end, ok := j.stageEnded[s]
	if !ok {
		end = now
	}
	return end.Sub(start)
}

// Durations returns the elapsed time of every stage that started.
func (j *ActiveJob) Durations(now time.Time) map[vo.Stage]time.Duration {
	j.mu.RLock()
	stages := make([]vo.Stage, 0, len(j.stageStarted))
	for s := range j.stageStarted {
		stages = append(stages, s)
	}
	j.mu.RUnlock()
	out := make(map[vo.Stage]time.Duration, len(stages))
	for _, s := range stages {
		out[s] = j.StageDuration(s, now)
	}
	return out
}

func (j *ActiveJob) FinishedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.finishedAt
}

// Cancel flags the job and cancels its context. It returns false when the
// job was already cancelled.
func (j *ActiveJob) Cancel() bool {
	j.mu.Lock()
	already := j.cancelled
	j.cancelled = true
	j.mu.Unlock()
	j.cancel()
	return !already
}

func (j *ActiveJob) Cancelled() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.cancelled
}

// Release cancels the job context without flagging a user cancel.
func (j *ActiveJob) Release() {
	j.cancel()
}

// SwapNote stores the current operational-log note id and returns the previous one.
func (j *ActiveJob) SwapNote(id string) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	prev := j.noteID
	j.noteID = id
	return prev
}

func (j *ActiveJob) SetFailure(err *vo.JobError) {
	j.mu.Lock()
	j.failure = err
	j.mu.Unlock()
}

func (j *ActiveJob) Failure() *vo.JobError {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.failure
}

// JobView is a read-only copy for status queries.
type JobView struct {
	JobID          string
	UserID         string
	FileName       string
	Stage          vo.Stage
	PID            int
	Progress       vo.ProgressSnapshot
	OriginalSize   int64
	CompressedSize int64
	Parameters     string
	Cancelled      bool
	CreatedAt      time.Time
	StageStarted   map[vo.Stage]time.Time
}

// View snapshots the job under one lock.
func (j *ActiveJob) View() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	started := make(map[vo.Stage]time.Time, len(j.stageStarted))
	for k, v := range j.stageStarted {
		started[k] = v
	}
	params := ""
	if j.params.Rate != 0 {
		params = j.params.Summary()
	}
	return JobView{
		JobID:          j.jobID,
		UserID:         j.userID,
		FileName:       j.media.FileName,
		Stage:          j.stage,
		PID:            j.pid,
		Progress:       j.progress,
		OriginalSize:   j.originalSize,
		CompressedSize: j.compressedSize,
		Parameters:     params,
		Cancelled:      j.cancelled,
		CreatedAt:      j.createdAt,
		StageStarted:   started,
	}
}
