// Package analysis 驱动与模型的有界交互。
//
// 提交风险分析最多两轮：首轮只发送 diff；若模型回复中包含
// {"request_file": "<path>"} 标记，则读取该文件（失败时使用占位文本）并发起第二轮，
// 第二轮的回复无论内容如何都作为最终结果。其余任务均为单轮。
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	xerrors "ai-git/internal/errors"
	"ai-git/internal/llm"
	"ai-git/internal/prompt"
	"ai-git/internal/retry"
	"ai-git/pkg/logger"
)

// MaxRounds 是单次交互最多的模型调用轮数。
const MaxRounds = 2

// Round 表示交互所处的阶段。
type Round int

const (
	RoundInitial Round = iota + 1
	RoundFollowUp
)

func (r Round) String() string {
	switch r {
	case RoundInitial:
		return "initial"
	case RoundFollowUp:
		return "follow-up"
	default:
		return fmt.Sprintf("round(%d)", int(r))
	}
}

// Placeholder 返回文件不可用时代替文件内容的文本。
func Placeholder(path string) string {
	return fmt.Sprintf("[file unavailable: %s]", path)
}

// State 是单次交互的状态，仅在调用期间存在。
type State struct {
	Diff    string
	Model   string
	Round   Round
	Context []prompt.FileContext
}

// Diagnostics 汇总交互过程的诊断信息。
type Diagnostics struct {
	InteractionID string        `json:"interaction_id"`
	Task          prompt.Task   `json:"task"`
	Model         string        `json:"model"`
	Rounds        int           `json:"rounds"`
	Attempts      int           `json:"attempts"`
	Retries       int           `json:"retries"`
	TotalWait     time.Duration `json:"total_wait"`
	RequestedFile string        `json:"requested_file,omitempty"`
	// FileUnavailable 表示请求的文件被拒绝或读取失败，第二轮使用了占位文本。
	FileUnavailable bool `json:"file_unavailable,omitempty"`
}

func (d *Diagnostics) add(s retry.Stats) {
	d.Rounds++
	d.Attempts += s.Attempts
	d.Retries += s.Retries
	d.TotalWait += s.TotalWait
}

// Result 是交互的最终文本与诊断信息。
type Result struct {
	Text        string      `json:"text"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// CommitInput 描述一次提交风险分析。Files 为空时使用 Analyzer 的默认读取器。
type CommitInput struct {
	Diff  string
	Model string
	Files FileReader
}

// Analyzer 组合请求构建、重试执行与文件读取。
type Analyzer struct {
	client   llm.Client
	executor *retry.Executor
	files    FileReader
	logger   *slog.Logger
	newID    func() string
}

// Option 定义 Analyzer 的可选配置。
type Option func(*Analyzer)

// WithFileReader 设置默认的文件读取器。
func WithFileReader(r FileReader) Option {
	return func(a *Analyzer) {
		a.files = r
	}
}

// WithLogger 指定日志输出。
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithIDGenerator 替换交互 ID 生成方式。
func WithIDGenerator(fn func() string) Option {
	return func(a *Analyzer) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// New 创建 Analyzer。
func New(client llm.Client, executor *retry.Executor, opts ...Option) (*Analyzer, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置模型客户端")
	}
	if executor == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置重试执行器")
	}
	a := &Analyzer{
		client:   client,
		executor: executor,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.logger == nil {
		a.logger = logger.Named("analysis")
	}
	return a, nil
}

// AnalyzeCommit 对 diff 做风险分类，必要时补充一个文件后再询问一次。
func (a *Analyzer) AnalyzeCommit(ctx context.Context, in CommitInput) (Result, error) {
	diag := a.begin(prompt.TaskCommitAnalysis, in.Model)
	log := a.logger.With(slog.String("interaction_id", diag.InteractionID))
	state := &State{Diff: in.Diff, Model: in.Model, Round: RoundInitial}

	reply, err := a.round(ctx, prompt.TaskCommitAnalysis, state, &diag)
	if err != nil {
		return Result{Diagnostics: diag}, err
	}

	request, ok := ParseFileRequest(reply)
	if !ok {
		log.Debug("模型未请求补充文件")
		return a.finish(reply, diag)
	}

	diag.RequestedFile = request.Path
	content, err := a.readRequested(ctx, in.Files, request.Path)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Diagnostics: diag}, xerrors.Wrap(xerrors.CodeCancelled, ctx.Err(), "")
		}
		log.Warn("请求的文件不可用，使用占位文本",
			slog.String("path", request.Path),
			slog.Any("error", err),
		)
		diag.FileUnavailable = true
		content = Placeholder(request.Path)
	}

	state.Round = RoundFollowUp
	state.Context = append(state.Context, prompt.FileContext{Path: request.Path, Content: content})
	reply, err = a.round(ctx, prompt.TaskCommitAnalysis, state, &diag)
	if err != nil {
		return Result{Diagnostics: diag}, err
	}
	return a.finish(reply, diag)
}

// CommitMessage 按策略为 diff 生成提交信息。
func (a *Analyzer) CommitMessage(ctx context.Context, diff, model string, strategy prompt.Strategy) (Result, error) {
	return a.single(ctx, prompt.TaskCommitMessage, prompt.Inputs{Model: model, Diff: diff, Strategy: strategy})
}

// Feedback 对 diff 给出代码评审意见。
func (a *Analyzer) Feedback(ctx context.Context, diff, model string) (Result, error) {
	return a.single(ctx, prompt.TaskFeedback, prompt.Inputs{Model: model, Diff: diff})
}

// SummarizeHistory 汇总一组提交信息。
func (a *Analyzer) SummarizeHistory(ctx context.Context, commits []string, model string, detail prompt.DetailLevel) (Result, error) {
	return a.single(ctx, prompt.TaskHistory, prompt.Inputs{Model: model, Commits: commits, Detail: detail})
}

// Report 为多个项目生成工作报告摘要。
func (a *Analyzer) Report(ctx context.Context, commits []string, model string, report prompt.ReportInput) (Result, error) {
	return a.single(ctx, prompt.TaskReport, prompt.Inputs{Model: model, Commits: commits, Report: &report})
}

func (a *Analyzer) single(ctx context.Context, task prompt.Task, in prompt.Inputs) (Result, error) {
	diag := a.begin(task, in.Model)
	req, err := prompt.Build(task, in)
	if err != nil {
		return Result{Diagnostics: diag}, err
	}
	reply, err := a.call(ctx, req, &diag)
	if err != nil {
		return Result{Diagnostics: diag}, err
	}
	return a.finish(reply, diag)
}

func (a *Analyzer) begin(task prompt.Task, model string) Diagnostics {
	return Diagnostics{InteractionID: a.newID(), Task: task, Model: model}
}

func (a *Analyzer) round(ctx context.Context, task prompt.Task, state *State, diag *Diagnostics) (string, error) {
	req, err := prompt.Build(task, prompt.Inputs{Model: state.Model, Diff: state.Diff, Context: state.Context})
	if err != nil {
		return "", err
	}
	a.logger.Debug("发送请求",
		slog.String("interaction_id", diag.InteractionID),
		slog.String("round", state.Round.String()),
		slog.String("model", state.Model),
	)
	return a.call(ctx, req, diag)
}

func (a *Analyzer) call(ctx context.Context, req llm.Request, diag *Diagnostics) (string, error) {
	res, err := retry.Execute(ctx, a.executor, func(ctx context.Context) (*llm.Response, error) {
		return a.client.Complete(ctx, req)
	})
	diag.add(res.Stats)
	if err != nil {
		return "", err
	}
	if res.Value == nil {
		return "", xerrors.Wrap(xerrors.CodeProviderFatal, llm.ErrEmptyResponse, "")
	}
	return res.Value.Content, nil
}

func (a *Analyzer) readRequested(ctx context.Context, files FileReader, requested string) (string, error) {
	if files == nil {
		files = a.files
	}
	if files == nil {
		return "", xerrors.New(xerrors.CodeFileUnavailable, "未配置文件读取器")
	}
	rel, err := NormalizePath(requested)
	if err != nil {
		return "", err
	}
	return files.ReadFile(ctx, rel)
}

func (a *Analyzer) finish(reply string, diag Diagnostics) (Result, error) {
	text := StripBackticks(reply)
	if text == "" {
		return Result{Diagnostics: diag}, xerrors.Wrap(xerrors.CodeProviderFatal, llm.ErrEmptyResponse, "模型返回了空内容")
	}
	logger.Audit().Info("交互完成",
		slog.String("interaction_id", diag.InteractionID),
		slog.String("task", string(diag.Task)),
		slog.String("model", diag.Model),
		slog.Int("rounds", diag.Rounds),
		slog.Int("attempts", diag.Attempts),
		slog.Duration("total_wait", diag.TotalWait),
		slog.String("requested_file", diag.RequestedFile),
	)
	return Result{Text: text, Diagnostics: diag}, nil
}
