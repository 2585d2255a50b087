package batch

import (
	"context"

	"ai-git/internal/analysis"
)

// Store 抽象了批量任务状态的持久化接口。
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// Claim 将任务标记为运行中并增加尝试次数。
	Claim(ctx context.Context, id string) (*Job, error)
	MarkSucceeded(ctx context.Context, id string, result analysis.Result) error
	// MarkFailed 记录失败。terminal 为 false 时任务回到 pending 等待重投。
	MarkFailed(ctx context.Context, id string, code string, lastError string, terminal bool) error
	List(ctx context.Context, ids []string) ([]*Job, error)
	Close() error
}
