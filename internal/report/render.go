package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	xerrors "ai-git/internal/errors"
)

// Format 是报告的输出格式。
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat 解析输出格式，空字符串视为 markdown。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的输出格式 %q，可选 markdown、text、json", s))
	}
}

func (a Activities) rows() []struct {
	name  string
	count int
} {
	return []struct {
		name  string
		count int
	}{
		{"Feature", a.Feature},
		{"Bugfix", a.Bugfix},
		{"Refactor", a.Refactor},
		{"Docs", a.Docs},
		{"Other", a.Other},
	}
}

// Render 按格式输出报告。
func Render(w io.Writer, rep *Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatText:
		return renderText(w, rep)
	default:
		return renderMarkdown(w, rep)
	}
}

func renderText(w io.Writer, rep *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Work Report (%s to %s)\n", rep.Period.Start, rep.Period.End)
	fmt.Fprintf(&b, "Total commits: %d\n", rep.TotalCommits)
	fmt.Fprintf(&b, "Contributors: %s\n", strings.Join(rep.Authors, ", "))
	fmt.Fprintf(&b, "Files changed: %d\n", rep.FilesChanged)
	if rep.Activities != nil {
		b.WriteString("\nSummary:\n")
		b.WriteString(rep.Summary)
		b.WriteString("\n\nKey Activities:\n")
		for _, row := range rep.Activities.rows() {
			fmt.Fprintf(&b, "- %s: %d commits\n", row.name, row.count)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderMarkdown(w io.Writer, rep *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Work Report for Projects (%s to %s)\n\n", rep.Period.Start, rep.Period.End)
	b.WriteString("## Project Summary\n")
	fmt.Fprintf(&b, "- Total commits: %d\n", rep.TotalCommits)
	fmt.Fprintf(&b, "- Contributors: %s\n", strings.Join(rep.Authors, ", "))
	fmt.Fprintf(&b, "- Files changed: %d\n", rep.FilesChanged)
	if len(rep.Projects) > 1 {
		b.WriteString("\n## Projects\n")
		for _, p := range rep.Projects {
			fmt.Fprintf(&b, "- %s: %d commits, %d files changed\n", p.Name, p.CommitCount, p.FilesChanged)
		}
	}
	if rep.Activities != nil {
		b.WriteString("\n## Key Activities\n\n")
		for _, row := range rep.Activities.rows() {
			fmt.Fprintf(&b, "- %s (%d commits)\n", row.name, row.count)
		}
		b.WriteString("\n## Summary\n\n")
		b.WriteString(rep.Summary)
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
