package main

import (
	"encoding/json"
	"fmt"

	"ai-git/internal/analysis"
	"ai-git/internal/git"
	"ai-git/internal/prompt"
)

// AnalyzeCmd 对提交做风险分类。
type AnalyzeCmd struct {
	Staged bool `long:"staged" description:"analyze the staged diff instead of a commit; files are read from the working tree"`
	JSON   bool `long:"json" description:"print the result with interaction diagnostics as JSON"`
	RetryFlags

	Args struct {
		Ref string `positional-arg-name:"ref" description:"commit to analyze (default HEAD)"`
	} `positional-args:"yes"`

	env *env
}

// Execute 实现 flags.Commander。
func (c *AnalyzeCmd) Execute(_ []string) error {
	a, err := c.env.load()
	if err != nil {
		return err
	}
	model, err := a.model(c.env.opts.Model)
	if err != nil {
		return err
	}
	analyzer, err := a.analyzer(a.policy(c.RetryFlags))
	if err != nil {
		return err
	}
	ctx := c.env.ctx

	in := analysis.CommitInput{Model: model}
	if c.Staged {
		root, err := a.repo.Root(ctx)
		if err != nil {
			return err
		}
		files, err := analysis.NewWorktreeReader(root, a.cfg.LLM.MaxFileBytes)
		if err != nil {
			return err
		}
		if in.Diff, err = a.repo.StagedDiff(ctx); err != nil {
			return err
		}
		in.Files = files
	} else {
		ref := c.Args.Ref
		if ref == "" {
			ref = "HEAD"
		}
		if in.Diff, err = a.repo.CommitDiff(ctx, ref); err != nil {
			return err
		}
		in.Files = git.NewRevisionReader(a.repo, ref, a.cfg.LLM.MaxFileBytes)
	}
	if in.Diff == "" {
		fmt.Fprintln(c.env.stdout, "No changes to analyze.")
		return nil
	}

	res, err := analyzer.AnalyzeCommit(ctx, in)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(c.env.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(c.env.stdout, res.Text)
	return nil
}

// FeedbackCmd 评审暂存区改动的代码质量。
type FeedbackCmd struct {
	StageAll bool `short:"a" long:"stage-all" description:"stage all unstaged changes without asking"`
	RetryFlags

	env *env
}

// Execute 实现 flags.Commander。
func (c *FeedbackCmd) Execute(_ []string) error {
	a, err := c.env.load()
	if err != nil {
		return err
	}
	model, err := a.model(c.env.opts.Model)
	if err != nil {
		return err
	}
	analyzer, err := a.analyzer(a.policy(c.RetryFlags))
	if err != nil {
		return err
	}
	if err := c.env.offerStaging(c.StageAll); err != nil {
		return err
	}
	diff, err := a.repo.StagedDiff(c.env.ctx)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(c.env.stdout, "No changes to analyze.")
		return nil
	}
	res, err := analyzer.Feedback(c.env.ctx, diff, model)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.env.stdout, "Code Quality Feedback:\n\n%s\n", res.Text)
	return nil
}

// HistoryCmd 汇总一段提交历史。
type HistoryCmd struct {
	Detail string `short:"d" long:"detail" default:"technical" description:"detail level: technical, non-technical or overview"`
	Output string `short:"o" long:"output" default:"text" description:"output format: text, markdown or json"`
	RetryFlags

	Args struct {
		Range string `positional-arg-name:"range" description:"commit range (default HEAD~7..HEAD)"`
	} `positional-args:"yes"`

	env *env
}

// Execute 实现 flags.Commander。
func (c *HistoryCmd) Execute(_ []string) error {
	a, err := c.env.load()
	if err != nil {
		return err
	}
	detail, err := prompt.ParseDetailLevel(c.Detail)
	if err != nil {
		return err
	}
	model, err := a.model(c.env.opts.Model)
	if err != nil {
		return err
	}
	analyzer, err := a.analyzer(a.policy(c.RetryFlags))
	if err != nil {
		return err
	}
	revRange := c.Args.Range
	if revRange == "" {
		revRange = "HEAD~7..HEAD"
	}
	commits, err := a.repo.CommitMessages(c.env.ctx, revRange)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		fmt.Fprintf(c.env.stdout, "No commits found in %s.\n", revRange)
		return nil
	}
	res, err := analyzer.SummarizeHistory(c.env.ctx, commits, model, detail)
	if err != nil {
		return err
	}

	out := c.env.stdout
	switch c.Output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{"summary": res.Text})
	case "markdown":
		fmt.Fprintf(out, "## Commit History Summary\n\n%s\n", res.Text)
	default:
		fmt.Fprintf(out, "Commit History Summary:\n\n%s\n", res.Text)
	}
	return nil
}
