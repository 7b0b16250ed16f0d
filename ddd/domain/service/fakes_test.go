package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/port"
	"compress-service/ddd/domain/vo"
)

// memSessions is a minimal SessionStore for orchestration tests.
type memSessions struct {
	mu sync.Mutex
	m  map[string]entity.SessionState
}

func newMemSessions() *memSessions {
	return &memSessions{m: make(map[string]entity.SessionState)}
}

func (s *memSessions) Create(_ context.Context, sess *entity.CompressionSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[sess.UserID()]; ok {
		return vo.NewJobError(vo.KindAlreadyActive, "", "session exists", nil)
	}
	s.m[sess.UserID()] = sess.State()
	return nil
}

func (s *memSessions) Get(_ context.Context, userID string) (*entity.CompressionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[userID]
	if !ok {
		return nil, vo.NewJobError(vo.KindNotFound, "", "no session", nil)
	}
	return entity.RestoreCompressionSession(st), nil
}

func (s *memSessions) Save(_ context.Context, sess *entity.CompressionSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[sess.UserID()]; !ok {
		return vo.NewJobError(vo.KindNotFound, "", "no session", nil)
	}
	s.m[sess.UserID()] = sess.State()
	return nil
}

func (s *memSessions) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.m, userID)
	s.mu.Unlock()
	return nil
}

func (s *memSessions) Expire(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.m {
		if st.CreatedAt.Before(cutoff) {
			delete(s.m, id)
			n++
		}
	}
	return n, nil
}

// gatedSessions blocks Get for one user until the gate opens.
type gatedSessions struct {
	*memSessions
	mu      sync.Mutex
	user    string
	gate    chan struct{}
	entered chan struct{}
}

func (s *gatedSessions) hold(userID string) {
	s.mu.Lock()
	s.user = userID
	s.gate = make(chan struct{})
	s.entered = make(chan struct{})
	s.mu.Unlock()
}

func (s *gatedSessions) Get(ctx context.Context, userID string) (*entity.CompressionSession, error) {
	s.mu.Lock()
	gated := s.user != "" && s.user == userID
	gate, entered := s.gate, s.entered
	if gated {
		s.user = ""
	}
	s.mu.Unlock()
	if gated {
		close(entered)
		<-gate
	}
	return s.memSessions.Get(ctx, userID)
}

type memJobs struct {
	mu sync.Mutex
	m  map[string]*entity.ActiveJob
}

func newMemJobs() *memJobs {
	return &memJobs{m: make(map[string]*entity.ActiveJob)}
}

func (r *memJobs) Register(job *entity.ActiveJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[job.UserID()]; ok {
		return vo.NewJobError(vo.KindAlreadyActive, "", "job exists", nil)
	}
	r.m[job.UserID()] = job
	return nil
}

func (r *memJobs) Get(userID string) (*entity.ActiveJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.m[userID]
	return j, ok
}

func (r *memJobs) Remove(userID string, job *entity.ActiveJob) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.m[userID]; ok && cur == job {
		delete(r.m, userID)
		return true
	}
	return false
}

func (r *memJobs) List() []*entity.ActiveJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.ActiveJob, 0, len(r.m))
	for _, j := range r.m {
		out = append(out, j)
	}
	return out
}

func (r *memJobs) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// fakeMedia materializes a sparse file of the declared size. statSize and
// writeSize stand in for what the storage backend really holds; with block
// set, Download waits for its context.
type fakeMedia struct {
	openErr   error
	statSize  int64
	writeSize int64
	block     bool
	started   chan struct{}
}

func (f *fakeMedia) Open(_ context.Context, ref vo.MediaRef) (gateway.MediaSource, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.statSize > 0 {
		ref.Size = f.statSize
	}
	return &fakeSource{ref: ref, writeSize: f.writeSize, block: f.block, started: f.started}, nil
}

type fakeSource struct {
	ref       vo.MediaRef
	writeSize int64
	block     bool
	started   chan struct{}
}

func (s *fakeSource) Size() int64              { return s.ref.Size }
func (s *fakeSource) DurationSeconds() float64 { return s.ref.DurationSeconds }
func (s *fakeSource) FileName() string         { return s.ref.FileName }
func (s *fakeSource) Ext() string              { return s.ref.Ext() }

func (s *fakeSource) Download(ctx context.Context, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	if s.block {
		if s.started != nil {
			close(s.started)
		}
		<-ctx.Done()
		return ctx.Err()
	}
	size := s.ref.Size
	if s.writeSize > 0 {
		size = s.writeSize
	}
	return f.Truncate(size)
}

type fakeHandle struct {
	pid  int
	done chan struct{}
	once sync.Once
	res  port.ExitResult
}

func (h *fakeHandle) PID() int              { return h.pid }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Wait() port.ExitResult {
	<-h.done
	return h.res
}

func (h *fakeHandle) exit(res port.ExitResult) {
	h.once.Do(func() {
		h.res = res
		close(h.done)
	})
}

// fakeTranscoder writes progress and output like ffmpeg would. With block set,
// the process runs until killed.
type fakeTranscoder struct {
	mu         sync.Mutex
	duration   float64
	probeErr   error
	exitCode   int
	outputSize int
	block      bool
	thumbErr   error

	nextPID int
	handles map[int]*fakeHandle
	killed  []int
	params  []vo.EncodingParameters
	started chan int
}

func newFakeTranscoder(duration float64) *fakeTranscoder {
	return &fakeTranscoder{
		duration:   duration,
		outputSize: 1000,
		nextPID:    4000,
		handles:    make(map[int]*fakeHandle),
		started:    make(chan int, 4),
	}
}

func (f *fakeTranscoder) Probe(context.Context, string) (port.ProbeResult, error) {
	if f.probeErr != nil {
		return port.ProbeResult{}, f.probeErr
	}
	return port.ProbeResult{DurationSeconds: f.duration, BitrateKbps: 3000}, nil
}

func (f *fakeTranscoder) Start(_ context.Context, params vo.EncodingParameters, _, output, sink string) (port.ProcessHandle, error) {
	f.mu.Lock()
	f.nextPID++
	h := &fakeHandle{pid: f.nextPID, done: make(chan struct{})}
	f.handles[h.pid] = h
	f.params = append(f.params, params)
	f.mu.Unlock()

	half := int64(f.duration / 2 * 1e6)
	if err := os.WriteFile(sink, []byte(fmt.Sprintf("frame=100\nout_time_ms=%d\nspeed=2.0x\nprogress=continue\n", half)), 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(output, make([]byte, f.outputSize), 0o644); err != nil {
		return nil, err
	}
	if f.block {
		f.started <- h.pid
		return h, nil
	}
	h.exit(port.ExitResult{ExitCode: f.exitCode})
	return h, nil
}

func (f *fakeTranscoder) Kill(pid int) error {
	f.mu.Lock()
	f.killed = append(f.killed, pid)
	h := f.handles[pid]
	f.mu.Unlock()
	if h != nil {
		h.exit(port.ExitResult{ExitCode: -1, Err: errors.New("signal: terminated")})
	}
	return nil
}

func (f *fakeTranscoder) Thumbnail(_ context.Context, _, dir string, _ float64) (string, error) {
	if f.thumbErr != nil {
		return "", f.thumbErr
	}
	p := filepath.Join(dir, "thumb.jpg")
	return p, os.WriteFile(p, []byte("jpeg"), 0o644)
}

func (f *fakeTranscoder) killedPIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.killed...)
}

type fakeSink struct {
	mu        sync.Mutex
	artifacts []gateway.Artifact
	err       error
}

func (s *fakeSink) Deliver(_ context.Context, a gateway.Artifact) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := os.Stat(a.VideoPath); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.artifacts = append(s.artifacts, a)
	s.mu.Unlock()
	return "compressed/" + filepath.Base(a.VideoPath), nil
}

type fakeReporter struct {
	mu       sync.Mutex
	stages   []vo.Stage
	progress []vo.ProgressSnapshot
	finals   []vo.FinalReport
}

func (r *fakeReporter) Status(_ context.Context, _ gateway.JobRef, stage vo.Stage, _ string) error {
	r.mu.Lock()
	r.stages = append(r.stages, stage)
	r.mu.Unlock()
	return nil
}

func (r *fakeReporter) Progress(_ context.Context, _ gateway.JobRef, s vo.ProgressSnapshot) error {
	r.mu.Lock()
	r.progress = append(r.progress, s)
	r.mu.Unlock()
	return nil
}

func (r *fakeReporter) Final(_ context.Context, _ gateway.JobRef, rep vo.FinalReport) error {
	r.mu.Lock()
	r.finals = append(r.finals, rep)
	r.mu.Unlock()
	return nil
}

func (r *fakeReporter) final() vo.FinalReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.finals) == 0 {
		return vo.FinalReport{}
	}
	return r.finals[len(r.finals)-1]
}

type fakeOpsLog struct {
	mu      sync.Mutex
	n       int
	live    map[string]string
	retired []string
}

func newFakeOpsLog() *fakeOpsLog {
	return &fakeOpsLog{live: make(map[string]string)}
}

func (l *fakeOpsLog) Post(_ context.Context, text string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.n++
	id := fmt.Sprintf("note-%d", l.n)
	l.live[id] = text
	return id, nil
}

func (l *fakeOpsLog) Retire(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.live, id)
	l.retired = append(l.retired, id)
	return nil
}

func (l *fakeOpsLog) liveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

type fakeHistory struct {
	mu      sync.Mutex
	reports []vo.FinalReport
}

func (h *fakeHistory) Record(_ context.Context, r vo.FinalReport) error {
	h.mu.Lock()
	h.reports = append(h.reports, r)
	h.mu.Unlock()
	return nil
}

func (h *fakeHistory) ListByUser(_ context.Context, userID string, _ int) ([]vo.FinalReport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []vo.FinalReport
	for _, r := range h.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}
