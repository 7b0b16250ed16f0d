package session

import (
	"sort"
	"sync"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/repo"
	"compress-service/ddd/domain/vo"
)

// JobRegistry 活跃任务表，取消操作通过它找到进程
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*entity.ActiveJob
}

func NewJobRegistry() repo.JobRegistry {
	return &JobRegistry{jobs: make(map[string]*entity.ActiveJob)}
}

func (r *JobRegistry) Register(job *entity.ActiveJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.UserID()]; ok {
		return vo.NewJobError(vo.KindAlreadyActive, "", "a job is already running", nil)
	}
	r.jobs[job.UserID()] = job
	return nil
}

func (r *JobRegistry) Get(userID string) (*entity.ActiveJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[userID]
	return j, ok
}

func (r *JobRegistry) Remove(userID string, job *entity.ActiveJob) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.jobs[userID]; ok && cur == job {
		delete(r.jobs, userID)
		return true
	}
	return false
}

// List is ordered by creation time.
func (r *JobRegistry) List() []*entity.ActiveJob {
	r.mu.RLock()
	out := make([]*entity.ActiveJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt().Before(out[k].CreatedAt())
	})
	return out
}

func (r *JobRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
