package batch

import (
	"context"

	"ai-git/internal/analysis"
	"ai-git/internal/git"
)

// CommitRunner 对任务指向的提交执行风险分析，请求的文件从该提交的父版本读取。
type CommitRunner struct {
	repo         *git.Repo
	analyzer     *analysis.Analyzer
	maxFileBytes int64
}

// NewCommitRunner 创建 CommitRunner。maxFileBytes 限制补充给模型的文件大小，<= 0 时使用默认值。
func NewCommitRunner(repo *git.Repo, analyzer *analysis.Analyzer, maxFileBytes int64) *CommitRunner {
	return &CommitRunner{repo: repo, analyzer: analyzer, maxFileBytes: maxFileBytes}
}

// Run 实现 Runner。
func (r *CommitRunner) Run(ctx context.Context, job *Job) (analysis.Result, error) {
	diff, err := r.repo.CommitDiff(ctx, job.Ref)
	if err != nil {
		return analysis.Result{}, err
	}
	return r.analyzer.AnalyzeCommit(ctx, analysis.CommitInput{
		Diff:  diff,
		Model: job.Model,
		Files: git.NewRevisionReader(r.repo, job.Ref, r.maxFileBytes),
	})
}
