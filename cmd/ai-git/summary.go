package main

import (
	"fmt"

	"ai-git/internal/prompt"
)

// SummaryCmd 为暂存区生成提交信息并提交。
type SummaryCmd struct {
	Strategy string `short:"s" long:"strategy" default:"ai" description:"commit message strategy"`
	StageAll bool   `short:"a" long:"stage-all" description:"stage all unstaged changes without asking"`
	Yes      bool   `short:"y" long:"always-accept-commit-message" description:"accept the suggested message without asking"`
	Push     bool   `short:"p" long:"push" description:"push after committing without asking"`
	DryRun   bool   `long:"dry-run" description:"only resolve the model alias; no git operations"`
	RetryFlags

	env *env
}

// Execute 实现 flags.Commander。
func (c *SummaryCmd) Execute(_ []string) error {
	a, err := c.env.load()
	if err != nil {
		return err
	}
	requested := c.env.opts.Model
	if requested == "" {
		requested = a.cfg.LLM.DefaultModel
	}
	model, err := a.model(requested)
	if err != nil {
		return err
	}
	out := c.env.stdout
	if c.DryRun {
		if model != requested {
			fmt.Fprintf(out, "Model alias resolved: %s -> %s\n", requested, model)
		} else {
			fmt.Fprintf(out, "Using model: %s\n", model)
		}
		fmt.Fprintln(out, "Dry run completed. No git operations were performed.")
		return nil
	}

	strategy, err := prompt.ParseStrategy(c.Strategy)
	if err != nil {
		return err
	}
	analyzer, err := a.analyzer(a.policy(c.RetryFlags))
	if err != nil {
		return err
	}
	ctx := c.env.ctx

	if err := c.env.offerStaging(c.StageAll); err != nil {
		return err
	}
	diff, err := a.repo.StagedDiff(ctx)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(out, "No changes to summarize.")
		return nil
	}

	res, err := analyzer.CommitMessage(ctx, diff, model, strategy)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Suggested commit message (from %s, strategy: %s):\n\n%s\n\n", model, strategy, res.Text)

	if !c.Yes && !c.env.confirm("Use this message for commit?", true) {
		return nil
	}
	if err := a.repo.Commit(ctx, res.Text); err != nil {
		return err
	}
	fmt.Fprintln(out, "Changes committed.")
	if c.Push || c.env.confirm("Would you like to push these changes?", false) {
		if err := a.repo.Push(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Changes pushed.")
	}
	return nil
}

// offerStaging 存在未暂存改动时暂存全部，或询问用户。
func (e *env) offerStaging(stageAll bool) error {
	a := e.app
	unstaged, err := a.repo.UnstagedDiff(e.ctx)
	if err != nil {
		return err
	}
	if unstaged == "" {
		return nil
	}
	fmt.Fprintln(e.stdout, "Found unstaged changes!")
	if stageAll {
		fmt.Fprintln(e.stdout, "Staging all changes...")
		return a.repo.StageAll(e.ctx)
	}
	if e.confirm("Would you like to stage these changes?", false) {
		return a.repo.StageAll(e.ctx)
	}
	return nil
}
