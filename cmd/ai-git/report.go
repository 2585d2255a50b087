package main

import (
	"fmt"

	"ai-git/internal/report"
)

// ReportCmd 为项目分组生成工作报告。
type ReportCmd struct {
	Format string `short:"o" long:"output-format" default:"markdown" description:"output format: markdown, text or json"`
	Groups string `short:"g" long:"groups" description:"project groups YAML (default from config)"`
	RetryFlags

	Args struct {
		Group string `positional-arg-name:"group" required:"yes"`
		Start string `positional-arg-name:"start-date" required:"yes" description:"YYYY-MM-DD"`
		End   string `positional-arg-name:"end-date" required:"yes" description:"YYYY-MM-DD"`
	} `positional-args:"yes" required:"yes"`

	env *env
}

// Execute 实现 flags.Commander。
func (c *ReportCmd) Execute(_ []string) error {
	a, err := c.env.load()
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	period, err := report.ParsePeriod(c.Args.Start, c.Args.End)
	if err != nil {
		return err
	}
	path := c.Groups
	if path == "" {
		path = a.cfg.Report.GroupsPath
	}
	groups, err := report.LoadGroups(path)
	if err != nil {
		return err
	}
	projects, err := groups.Projects(c.Args.Group)
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

	if format != report.FormatJSON {
		fmt.Fprintf(c.env.stderr, "Generating report for group %s from %s to %s\n", c.Args.Group, period.Start, period.End)
	}
	rep, err := report.NewGenerator(analyzer).Generate(c.env.ctx, c.Args.Group, projects, period, model)
	if err != nil {
		return err
	}
	return report.Render(c.env.stdout, rep, format)
}
