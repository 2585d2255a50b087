package report

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ai-git/internal/analysis"
	xerrors "ai-git/internal/errors"
	"ai-git/internal/git"
	"ai-git/internal/prompt"
	"ai-git/pkg/logger"
)

const dateLayout = "2006-01-02"

// Period 是报告覆盖的闭区间，日期格式为 YYYY-MM-DD。
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ParsePeriod 校验日期格式并要求 start 不晚于 end。
func ParsePeriod(start, end string) (Period, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return Period{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("无效的开始日期 %q，请使用 YYYY-MM-DD", start))
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return Period{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("无效的结束日期 %q，请使用 YYYY-MM-DD", end))
	}
	if s.After(e) {
		return Period{}, xerrors.New(xerrors.CodeInvalidArgument, "开始日期不能晚于结束日期")
	}
	return Period{Start: start, End: end}, nil
}

// gitPeriod 把结束日期扩展到当天结束，使区间包含 end 当天的提交。
func (p Period) gitPeriod() git.Period {
	return git.Period{Since: p.Start + " 00:00:00", Until: p.End + " 23:59:59"}
}

// Activities 是按关键字归类的提交数量。
type Activities struct {
	Feature  int `json:"feature"`
	Bugfix   int `json:"bugfix"`
	Refactor int `json:"refactor"`
	Docs     int `json:"docs"`
	Other    int `json:"other"`
}

var categories = []struct {
	terms []string
	count func(*Activities) *int
}{
	{[]string{"feat", "feature", "add", "implement"}, func(a *Activities) *int { return &a.Feature }},
	{[]string{"fix", "bug", "issue", "error", "crash"}, func(a *Activities) *int { return &a.Bugfix }},
	{[]string{"refactor", "clean", "improve", "optimize"}, func(a *Activities) *int { return &a.Refactor }},
	{[]string{"doc", "comment", "readme"}, func(a *Activities) *int { return &a.Docs }},
}

// Categorize 按第一个命中的关键字类别统计提交，都未命中计入 Other。
func Categorize(commits []string) Activities {
	var a Activities
	for _, c := range commits {
		lower := strings.ToLower(c)
		matched := false
		for _, cat := range categories {
			if containsAny(lower, cat.terms) {
				*cat.count(&a)++
				matched = true
				break
			}
		}
		if !matched {
			a.Other++
		}
	}
	return a
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// Project 是单个项目在区间内的统计。
type Project struct {
	prompt.ProjectStats
	Commits []string `json:"commits"`
}

// Report 是报告的全部数据。
type Report struct {
	Group        string                `json:"group"`
	Period       Period                `json:"period"`
	Projects     []Project             `json:"projects"`
	TotalCommits int                   `json:"total_commits"`
	Authors      []string              `json:"unique_authors"`
	FilesChanged int                   `json:"files_changed"`
	Activities   *Activities           `json:"key_activities,omitempty"`
	Summary      string                `json:"summary,omitempty"`
	Diagnostics  *analysis.Diagnostics `json:"diagnostics,omitempty"`
}

// Summarizer 生成报告摘要，由 analysis.Analyzer 实现。
type Summarizer interface {
	Report(ctx context.Context, commits []string, model string, report prompt.ReportInput) (analysis.Result, error)
}

// Generator 收集项目数据并生成报告。
type Generator struct {
	summarizer Summarizer
	open       func(path string) *git.Repo
	logger     *slog.Logger
}

// Option 定义 Generator 的可选配置。
type Option func(*Generator)

// WithRepoOpener 替换打开仓库的方式，测试中用于注入假的 git runner。
func WithRepoOpener(open func(path string) *git.Repo) Option {
	return func(g *Generator) {
		if open != nil {
			g.open = open
		}
	}
}

// NewGenerator 创建 Generator。
func NewGenerator(summarizer Summarizer, opts ...Option) *Generator {
	g := &Generator{
		summarizer: summarizer,
		open:       func(path string) *git.Repo { return git.Open(path) },
		logger:     logger.Named("report"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Collect 汇总每个项目的提交统计，不调用模型。
func (g *Generator) Collect(ctx context.Context, group string, projects []string, period Period) (*Report, error) {
	rep := &Report{Group: group, Period: period}
	authors := make(map[string]struct{})
	for _, path := range projects {
		repo := g.open(path)
		stats, err := repo.StatsBetween(ctx, period.gitPeriod())
		if err != nil {
			return nil, err
		}
		commits, err := repo.CommitsBetween(ctx, period.gitPeriod())
		if err != nil {
			return nil, err
		}
		g.logger.Debug("项目统计完成", slog.String("path", path), slog.Int("commits", stats.Commits))
		rep.Projects = append(rep.Projects, Project{
			ProjectStats: prompt.ProjectStats{
				Name:         filepath.Base(filepath.Clean(path)),
				Path:         path,
				CommitCount:  stats.Commits,
				Authors:      stats.Authors,
				FilesChanged: stats.FilesChanged,
			},
			Commits: commits,
		})
		rep.TotalCommits += stats.Commits
		rep.FilesChanged += stats.FilesChanged
		for _, a := range stats.Authors {
			authors[a] = struct{}{}
		}
	}
	rep.Authors = make([]string, 0, len(authors))
	for a := range authors {
		rep.Authors = append(rep.Authors, a)
	}
	sort.Strings(rep.Authors)
	return rep, nil
}

// Generate 收集数据，有提交时再请求模型生成摘要并归类提交。
func (g *Generator) Generate(ctx context.Context, group string, projects []string, period Period, model string) (*Report, error) {
	rep, err := g.Collect(ctx, group, projects, period)
	if err != nil {
		return nil, err
	}
	if rep.TotalCommits == 0 {
		return rep, nil
	}

	var commits []string
	input := prompt.ReportInput{Start: period.Start, End: period.End}
	for _, p := range rep.Projects {
		commits = append(commits, p.Commits...)
		input.Projects = append(input.Projects, p.ProjectStats)
	}
	activities := Categorize(commits)
	rep.Activities = &activities

	if g.summarizer == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration, "未配置报告摘要生成器")
	}
	res, err := g.summarizer.Report(ctx, commits, model, input)
	if err != nil {
		return nil, err
	}
	rep.Summary = res.Text
	rep.Diagnostics = &res.Diagnostics
	return rep, nil
}
