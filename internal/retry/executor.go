package retry

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	xerrors "ai-git/internal/errors"
	"ai-git/pkg/logger"
)

// Kind 是单次调用结果的分类。
type Kind int

const (
	Success Kind = iota
	Retryable
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Outcome 记录一次尝试的分类结果。Status 为 0 表示没有可用的 HTTP 状态码。
type Outcome struct {
	Kind   Kind
	Status int
	Cause  error
}

// Classifier 将调用错误归类为可重试或致命，由具体的 provider 实现。
type Classifier interface {
	Classify(err error, policy Policy) Outcome
}

// ClassifierFunc 允许使用普通函数作为 Classifier。
type ClassifierFunc func(err error, policy Policy) Outcome

// Classify 实现 Classifier。
func (f ClassifierFunc) Classify(err error, policy Policy) Outcome {
	return f(err, policy)
}

// CodeClassifier 依据统一错误码的 Retryable 属性分类。
var CodeClassifier = ClassifierFunc(func(err error, _ Policy) Outcome {
	if err == nil {
		return Outcome{Kind: Success}
	}
	if xerrors.RetryableError(err) {
		return Outcome{Kind: Retryable, Cause: err}
	}
	return Outcome{Kind: Fatal, Cause: err}
})

// SleepFunc 在等待期间需要响应 ctx 取消。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Stats 汇总一次执行的诊断信息。
type Stats struct {
	Attempts  int
	Retries   int
	TotalWait time.Duration
}

// Result 包含成功调用的返回值及诊断信息。
type Result[T any] struct {
	Value T
	Stats Stats
}

// ExhaustedError 表示可重试失败耗尽了重试次数。
type ExhaustedError struct {
	Attempts  int
	Retries   int
	TotalWait time.Duration
	Last      error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("gave up after %d attempts (waited %s)", e.Attempts, e.TotalWait)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// FatalError 表示调用遇到不可重试的失败。
type FatalError struct {
	Attempt int
	Status  int
	Cause   error
}

func (e *FatalError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("attempt %d failed with status %d: %v", e.Attempt, e.Status, e.Cause)
	}
	return fmt.Sprintf("attempt %d failed: %v", e.Attempt, e.Cause)
}

func (e *FatalError) Unwrap() error { return e.Cause }

// Executor 按策略执行调用并在可重试失败时线性退避。
type Executor struct {
	policy     Policy
	classifier Classifier
	sleep      SleepFunc
	logger     *slog.Logger
}

// Option 定义 Executor 的可选配置。
type Option func(*Executor)

// WithClassifier 指定失败分类器。
func WithClassifier(c Classifier) Option {
	return func(e *Executor) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithSleep 替换等待实现，测试中用于跳过真实等待。
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithLogger 指定日志输出。
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor 校验策略并构造 Executor。
func NewExecutor(policy Policy, opts ...Option) (*Executor, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{
		policy:     policy,
		classifier: CodeClassifier,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.logger == nil {
		e.logger = logger.Named("retry")
	}
	return e, nil
}

// Policy 返回执行器使用的策略。
func (e *Executor) Policy() Policy {
	return e.policy
}

// Execute 执行 call，直到成功、遇到致命错误或重试耗尽。
//
// 每次等待前都会检查 ctx，取消时返回 CANCELLED 错误。无论结果如何，Stats 都会被填充。
func Execute[T any](ctx context.Context, e *Executor, call func(context.Context) (T, error)) (Result[T], error) {
	var (
		result Result[T]
		zero   T
	)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, cancelled(err, result.Stats)
		}

		result.Stats.Attempts = attempt + 1
		value, err := call(ctx)
		if err == nil {
			result.Value = value
			return result, nil
		}

		outcome := e.classifier.Classify(err, e.policy)
		if outcome.Cause == nil {
			outcome.Cause = err
		}
		if outcome.Kind == Success {
			// 分类器不应把错误判定为成功，保守地按致命处理。
			outcome.Kind = Fatal
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, cancelled(ctxErr, result.Stats)
		}

		if outcome.Kind == Fatal {
			e.logger.Debug("调用失败且不可重试",
				slog.Int("attempt", attempt+1),
				slog.Int("status", outcome.Status),
				slog.Any("error", outcome.Cause),
			)
			result.Value = zero
			return result, xerrors.Wrap(xerrors.CodeProviderFatal,
				&FatalError{Attempt: attempt + 1, Status: outcome.Status, Cause: outcome.Cause},
				"调用失败且不可重试",
				xerrors.WithMetadata("attempts", strconv.Itoa(attempt+1)),
			)
		}

		if attempt >= e.policy.MaxRetries {
			stats := result.Stats
			e.logger.Warn("重试次数已耗尽",
				slog.Int("attempts", stats.Attempts),
				slog.Duration("total_wait", stats.TotalWait),
				slog.Any("error", outcome.Cause),
			)
			return result, xerrors.Wrap(xerrors.CodeRetriesExhausted,
				&ExhaustedError{Attempts: stats.Attempts, Retries: stats.Retries, TotalWait: stats.TotalWait, Last: outcome.Cause},
				"",
				xerrors.WithMetadata("attempts", strconv.Itoa(stats.Attempts)),
				xerrors.WithMetadata("total_wait", stats.TotalWait.String()),
			)
		}

		wait := e.policy.Wait(attempt)
		e.logger.Warn("调用失败，等待后重试",
			slog.Int("attempt", attempt+1),
			slog.Int("status", outcome.Status),
			slog.Duration("wait", wait),
			slog.Any("error", outcome.Cause),
		)
		if err := e.sleep(ctx, wait); err != nil {
			return result, cancelled(err, result.Stats)
		}
		result.Stats.Retries++
		result.Stats.TotalWait += wait
	}
}

func cancelled(cause error, stats Stats) error {
	code := xerrors.CodeCancelled
	if stdErrors.Is(cause, context.DeadlineExceeded) {
		code = xerrors.CodeTimeout
	}
	return xerrors.Wrap(code, cause, "",
		xerrors.WithMetadata("attempts", strconv.Itoa(stats.Attempts)),
		xerrors.WithRetryable(false),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
