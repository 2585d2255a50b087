// Package prompt 根据任务类型与输入构建发送给模型的请求。
//
// 构建过程是纯函数：相同的输入总是得到相同的 llm.Request。
package prompt

import (
	"fmt"
	"sort"
	"strings"

	xerrors "ai-git/internal/errors"
	"ai-git/internal/llm"
)

// Task 表示一次交互的任务类型。
type Task string

const (
	TaskCommitMessage  Task = "commit-message"
	TaskCommitAnalysis Task = "commit-analysis"
	TaskHistory        Task = "history"
	TaskFeedback       Task = "feedback"
	TaskReport         Task = "report"
)

// Strategy 是提交信息的生成策略。
type Strategy string

const (
	StrategyAI       Strategy = "ai"
	StrategyShort    Strategy = "short"
	StrategyDetailed Strategy = "detailed"
)

// DetailLevel 是历史摘要的详细程度。
type DetailLevel string

const (
	DetailTechnical    DetailLevel = "technical"
	DetailNonTechnical DetailLevel = "non-technical"
	DetailOverview     DetailLevel = "overview"
)

// 各任务的 max_tokens。
const (
	MaxTokensShortMessage    = 100
	MaxTokensDetailedMessage = 400
	MaxTokensFeedback        = 300
	MaxTokensHistory         = 500
	MaxTokensReport          = 500
	MaxTokensAnalysis        = 500
	MaxTokensAnalysisContext = 1000
)

// FileContext 是模型请求后补充的文件内容。
type FileContext struct {
	Path    string
	Content string
}

// ProjectStats 汇总单个项目在报告区间内的提交情况。
type ProjectStats struct {
	Name         string   `json:"name"`
	Path         string   `json:"path"`
	CommitCount  int      `json:"commit_count"`
	Authors      []string `json:"authors"`
	FilesChanged int      `json:"files_changed"`
}

// ReportInput 是多项目报告的输入。
type ReportInput struct {
	Start    string
	End      string
	Projects []ProjectStats
}

// Inputs 汇集各任务可能用到的输入，未用到的字段会被忽略。
type Inputs struct {
	Model    string
	Diff     string
	Strategy Strategy
	Commits  []string
	Detail   DetailLevel
	Context  []FileContext
	Report   *ReportInput
}

// ParseStrategy 校验并返回策略，空字符串视为 ai。
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAI:
		return StrategyAI, nil
	case StrategyShort:
		return StrategyShort, nil
	case StrategyDetailed:
		return StrategyDetailed, nil
	}
	return "", xerrors.New(xerrors.CodeInvalidArgument,
		fmt.Sprintf("无效的提交信息策略 %q，可选 ai、short、detailed", s))
}

// ParseDetailLevel 校验并返回详细程度，空字符串视为 technical。
func ParseDetailLevel(s string) (DetailLevel, error) {
	switch DetailLevel(strings.ToLower(strings.TrimSpace(s))) {
	case "", DetailTechnical:
		return DetailTechnical, nil
	case DetailNonTechnical:
		return DetailNonTechnical, nil
	case DetailOverview:
		return DetailOverview, nil
	}
	return "", xerrors.New(xerrors.CodeInvalidArgument,
		fmt.Sprintf("无效的详细程度 %q，可选 technical、non-technical、overview", s))
}

// Build 构建指定任务的请求。
func Build(task Task, in Inputs) (llm.Request, error) {
	if strings.TrimSpace(in.Model) == "" {
		return llm.Request{}, xerrors.New(xerrors.CodeInvalidArgument, "未指定模型")
	}

	var (
		system, user string
		maxTokens    int
		err          error
	)
	switch task {
	case TaskCommitMessage:
		system, user, maxTokens, err = commitMessage(in)
	case TaskCommitAnalysis:
		system, user, maxTokens, err = commitAnalysis(in)
	case TaskHistory:
		system, user, maxTokens, err = history(in)
	case TaskFeedback:
		if err = requireDiff(in); err == nil {
			system, user, maxTokens = feedbackSystem, fmt.Sprintf(feedbackUser, in.Diff), MaxTokensFeedback
		}
	case TaskReport:
		system, user, maxTokens, err = report(in)
	default:
		err = xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的任务类型 %q", task))
	}
	if err != nil {
		return llm.Request{}, err
	}

	return llm.Request{
		Model: in.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		MaxTokens: maxTokens,
	}, nil
}

func requireDiff(in Inputs) error {
	if strings.TrimSpace(in.Diff) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "diff 为空")
	}
	return nil
}

func commitMessage(in Inputs) (string, string, int, error) {
	if err := requireDiff(in); err != nil {
		return "", "", 0, err
	}
	strategy := in.Strategy
	if strategy == "" {
		strategy = StrategyAI
	}
	switch strategy {
	case StrategyShort:
		return shortSystem, fmt.Sprintf(shortUser, in.Diff), MaxTokensShortMessage, nil
	case StrategyDetailed:
		return detailedSystem, fmt.Sprintf(detailedUser, in.Diff), MaxTokensDetailedMessage, nil
	case StrategyAI:
		user := fmt.Sprintf(unifiedUser, in.Diff) + "\n\n" + sizeHint(MeasureDiff(in.Diff))
		return unifiedSystem, user, MaxTokensDetailedMessage, nil
	}
	_, err := ParseStrategy(string(strategy))
	return "", "", 0, err
}

func sizeHint(stats DiffStats) string {
	if stats.Small() {
		return fmt.Sprintf(smallChangeHint, stats.Files, stats.Changed())
	}
	return fmt.Sprintf(changeSizeHint, stats.Files, stats.Changed())
}

func commitAnalysis(in Inputs) (string, string, int, error) {
	if err := requireDiff(in); err != nil {
		return "", "", 0, err
	}
	if len(in.Context) == 0 {
		return analysisSystem, fmt.Sprintf(analysisInitialUser, in.Diff), MaxTokensAnalysis, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, analysisFollowUpHead, in.Diff)
	for _, fc := range in.Context {
		fmt.Fprintf(&b, analysisFollowUpFile, fc.Path, fc.Content)
	}
	b.WriteString(analysisFollowUpTail)
	return analysisSystem, b.String(), MaxTokensAnalysisContext, nil
}

func historySystem(level DetailLevel) (string, error) {
	switch level {
	case "", DetailTechnical:
		return historyTechnicalSystem, nil
	case DetailNonTechnical:
		return historyNonTechnicalSystem, nil
	case DetailOverview:
		return historyOverviewSystem, nil
	}
	_, err := ParseDetailLevel(string(level))
	return "", err
}

func history(in Inputs) (string, string, int, error) {
	if len(in.Commits) == 0 {
		return "", "", 0, xerrors.New(xerrors.CodeInvalidArgument, "提交列表为空")
	}
	system, err := historySystem(in.Detail)
	if err != nil {
		return "", "", 0, err
	}
	return system, fmt.Sprintf(historyUser, strings.Join(in.Commits, "\n")), MaxTokensHistory, nil
}

func report(in Inputs) (string, string, int, error) {
	if in.Report == nil {
		return "", "", 0, xerrors.New(xerrors.CodeInvalidArgument, "缺少报告输入")
	}
	if len(in.Commits) == 0 {
		return "", "", 0, xerrors.New(xerrors.CodeInvalidArgument, "报告区间内没有提交")
	}

	var projects strings.Builder
	for _, p := range in.Report.Projects {
		authors := append([]string(nil), p.Authors...)
		sort.Strings(authors)
		name := p.Name
		if name == "" {
			name = p.Path
		}
		fmt.Fprintf(&projects, "- %s: %d commits, %d files changed, authors: %s\n",
			name, p.CommitCount, p.FilesChanged, strings.Join(authors, ", "))
	}
	user := fmt.Sprintf(reportUser, in.Report.Start, in.Report.End, projects.String(), strings.Join(in.Commits, "\n"))
	return historyTechnicalSystem, user, MaxTokensReport, nil
}
