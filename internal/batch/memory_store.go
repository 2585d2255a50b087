package batch

import (
	"context"
	"sync"
	"time"

	"ai-git/internal/analysis"
	xerrors "ai-git/internal/errors"
)

// MemoryStore 以内存方式保存任务状态，适用于单进程批量分析。
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job), now: time.Now}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, job *Job) error {
	if job == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "job 不能为空")
	}
	if job.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "任务 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return ErrJobConflict
	}
	now := m.now().Unix()
	if job.CreatedAt == 0 {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	m.jobs[job.ID] = job.clone()
	return nil
}

// Get 实现 Store 接口。
func (m *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.clone(), nil
}

// Claim 实现 Store 接口。
func (m *MemoryStore) Claim(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	switch job.Status {
	case StatusSucceeded:
		return job.clone(), ErrJobCompleted
	case StatusRunning:
		return job.clone(), ErrJobConflict
	}
	if job.Attempts >= job.MaxAttempts {
		return job.clone(), ErrJobExhausted
	}
	job.Status = StatusRunning
	job.Attempts++
	job.ErrorCode = ""
	job.LastError = ""
	job.UpdatedAt = m.now().Unix()
	return job.clone(), nil
}

// MarkSucceeded 实现 Store 接口。
func (m *MemoryStore) MarkSucceeded(_ context.Context, id string, result analysis.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = StatusSucceeded
	job.Result = &result
	job.ErrorCode = ""
	job.LastError = ""
	job.UpdatedAt = m.now().Unix()
	return nil
}

// MarkFailed 实现 Store 接口。
func (m *MemoryStore) MarkFailed(_ context.Context, id string, code string, lastError string, terminal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = StatusPending
	if terminal {
		job.Status = StatusFailed
	}
	job.ErrorCode = code
	job.LastError = lastError
	job.UpdatedAt = m.now().Unix()
	return nil
}

// List 按给定顺序返回任务，不存在的 ID 被忽略。ids 为空时返回全部任务。
func (m *MemoryStore) List(_ context.Context, ids []string) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(ids) == 0 {
		out := make([]*Job, 0, len(m.jobs))
		for _, job := range m.jobs {
			out = append(out, job.clone())
		}
		sortJobs(out)
		return out, nil
	}
	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := m.jobs[id]; ok {
			out = append(out, job.clone())
		}
	}
	return out, nil
}

// Close 实现 Store 接口。
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
