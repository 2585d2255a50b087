package batch

import (
	"context"
	"log/slog"
	"time"

	"ai-git/internal/analysis"
	xerrors "ai-git/internal/errors"
	"ai-git/internal/observability/alerting"
	"ai-git/internal/observability/metrics"
	"ai-git/pkg/logger"
)

// Runner 执行一个任务的分析。每次调用拥有独立的交互状态与重试预算。
type Runner interface {
	Run(ctx context.Context, job *Job) (analysis.Result, error)
}

// RunnerFunc 允许使用普通函数作为 Runner。
type RunnerFunc func(ctx context.Context, job *Job) (analysis.Result, error)

// Run 实现 Runner。
func (f RunnerFunc) Run(ctx context.Context, job *Job) (analysis.Result, error) {
	return f(ctx, job)
}

// Processor 从队列消费任务并交给 Runner 执行。
type Processor struct {
	runner      Runner
	store       Store
	consumer    Consumer
	producer    Producer
	workerCount int
	logger      *slog.Logger
	alerts      alerting.Dispatcher
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAlertDispatcher 指定任务最终失败时的告警分发器。
func WithAlertDispatcher(d alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		if d != nil {
			p.alerts = d
		}
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(runner Runner, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		runner:      runner,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
		logger:      logger.Named("batch"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动任务处理循环，阻塞直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeConfiguration, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, jobID string) error {
	if p.store == nil || p.runner == nil {
		return xerrors.New(xerrors.CodeConfiguration, "处理器未初始化")
	}
	job, err := p.store.Claim(ctx, jobID)
	if err != nil {
		if skippable(err) {
			p.logger.Debug("跳过任务", slog.String("job_id", jobID), slog.String("reason", err.Error()))
			return nil
		}
		p.logger.Error("领取任务失败", slog.Any("error", err), slog.String("job_id", jobID))
		return err
	}

	result, runErr := p.runner.Run(ctx, job)
	if runErr != nil {
		return p.handleFailure(ctx, job, runErr)
	}
	if err := p.store.MarkSucceeded(ctx, job.ID, result); err != nil {
		p.logger.Error("标记任务成功状态失败", slog.Any("error", err), slog.String("job_id", job.ID))
		return p.handleFailure(ctx, job, err)
	}
	metrics.ObserveJob(string(StatusSucceeded))
	logger.Audit().Info("任务执行成功",
		slog.String("job_id", job.ID),
		slog.String("ref", job.Ref),
		slog.String("interaction_id", result.Diagnostics.InteractionID),
		slog.Int("attempts", job.Attempts),
	)
	return nil
}

// handleFailure 记录失败。可重试的错误在尝试次数未耗尽时重新入队。
func (p *Processor) handleFailure(ctx context.Context, job *Job, runErr error) error {
	code := xerrors.CodeOf(runErr)
	if code == xerrors.CodeUnknown {
		code = CodeJobProcessing
	}
	retryable := retryableJobError(runErr)
	terminal := !retryable || job.Attempts >= job.MaxAttempts

	if err := p.store.MarkFailed(ctx, job.ID, string(code), runErr.Error(), terminal); err != nil {
		p.logger.Error("标记任务失败状态出错", slog.Any("error", err), slog.String("job_id", job.ID))
		return err
	}
	logger.Audit().Warn("任务执行失败",
		slog.String("job_id", job.ID),
		slog.String("ref", job.Ref),
		slog.Bool("terminal", terminal),
		slog.String("error_code", string(code)),
		slog.String("error", runErr.Error()),
		slog.Int("attempts", job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
	)
	if terminal {
		metrics.ObserveJob(string(StatusFailed))
		p.alert(ctx, job, code, runErr)
		return nil
	}

	metrics.ObserveJob("retried")
	if err := p.producer.Publish(ctx, job.ID); err != nil {
		wrapped := xerrors.Wrap(CodeJobPublish, err, "任务重投失败", xerrors.WithMetadata("job_id", job.ID))
		_ = p.store.MarkFailed(ctx, job.ID, string(CodeJobPublish), wrapped.Error(), true)
		return wrapped
	}
	p.logger.Debug("任务已重新排队", slog.String("job_id", job.ID), slog.Int("attempts", job.Attempts))
	return nil
}

func (p *Processor) alert(ctx context.Context, job *Job, code xerrors.Code, runErr error) {
	if p.alerts == nil {
		return
	}
	event := alerting.Event{
		Code:        code,
		Message:     runErr.Error(),
		Severity:    xerrors.SeverityOf(runErr),
		JobID:       job.ID,
		Ref:         job.Ref,
		Model:       job.Model,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		OccurredAt:  time.Now().UTC(),
	}
	if err := p.alerts.Notify(ctx, event); err != nil {
		p.logger.Warn("发送告警失败", slog.Any("error", err), slog.String("job_id", job.ID))
	}
}

// retryableJobError 判断失败的任务是否重新入队。单次交互的重试耗尽也会重新入队。
func retryableJobError(err error) bool {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeRetriesExhausted:
		return true
	case xerrors.CodeCancelled:
		return false
	}
	return xerrors.RetryableError(err)
}
