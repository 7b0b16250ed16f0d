package repo

import "compress-service/ddd/domain/entity"

// JobRegistry 活跃任务登记表，进程内有效
type JobRegistry interface {
	// Register fails with vo.ErrAlreadyActive when the user has a job.
	Register(job *entity.ActiveJob) error
	Get(userID string) (*entity.ActiveJob, bool)
	// Remove deletes the entry only if it still points at job.
	Remove(userID string, job *entity.ActiveJob) bool
	List() []*entity.ActiveJob
	Count() int
}
