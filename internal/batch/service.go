package batch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "ai-git/internal/errors"
	"ai-git/pkg/logger"
)

// DefaultMaxAttempts 是每个任务默认的最大尝试次数。
const DefaultMaxAttempts = 3

// Service 负责任务的创建与查询。
type Service struct {
	store       Store
	producer    Producer
	maxAttempts int
	newID       func() string
}

// NewService 构造任务服务。
func NewService(store Store, producer Producer, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{store: store, producer: producer, maxAttempts: maxAttempts, newID: uuid.NewString}
}

// Submit 为一个提交创建分析任务并推送到队列。
func (s *Service) Submit(ctx context.Context, ref, model string) (*Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, xerrors.New(CodeJobValidation, "提交引用不能为空")
	}
	if strings.HasPrefix(ref, "-") {
		return nil, xerrors.New(CodeJobValidation, "无效的提交引用 "+ref)
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration, "任务服务未初始化")
	}

	job := &Job{
		ID:          s.newID(),
		Ref:         ref,
		Model:       model,
		Status:      StatusPending,
		MaxAttempts: s.maxAttempts,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.producer.Publish(ctx, job.ID); err != nil {
		logger.L().Error("任务入队失败", slog.Any("error", err), slog.String("job_id", job.ID))
		wrapped := xerrors.Wrap(CodeJobPublish, err, "发布任务到队列失败")
		_ = s.store.MarkFailed(ctx, job.ID, string(CodeJobPublish), wrapped.Error(), true)
		return nil, wrapped
	}
	logger.Audit().Info("任务入队成功",
		slog.String("job_id", job.ID),
		slog.String("ref", job.Ref),
		slog.String("model", job.Model),
		slog.Int("max_attempts", job.MaxAttempts),
	)
	return job, nil
}

// Get 返回指定任务的状态。
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration, "任务存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// WaitUntilCompleted 轮询直到所有任务进入终态，按 ids 的顺序返回任务。
func (s *Service) WaitUntilCompleted(ctx context.Context, ids []string, interval time.Duration) ([]*Job, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration, "任务存储未初始化")
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		jobs, err := s.store.List(ctx, ids)
		if err != nil {
			return nil, err
		}
		if len(jobs) < len(ids) {
			return jobs, ErrJobNotFound
		}
		done := true
		for _, job := range jobs {
			if !job.Status.Terminal() {
				done = false
				break
			}
		}
		if done {
			return jobs, nil
		}
		select {
		case <-ctx.Done():
			return jobs, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close 释放存储与队列。
func (s *Service) Close() error {
	var firstErr error
	if s.store != nil {
		firstErr = s.store.Close()
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
