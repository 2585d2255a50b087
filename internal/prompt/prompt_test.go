package prompt

import (
	"reflect"
	"strings"
	"testing"

	xerrors "ai-git/internal/errors"
	"ai-git/internal/llm"
)

const renameDiff = `diff --git a/foo.py b/bar.py
similarity index 100%
rename from foo.py
rename to bar.py
`

const multiFileDiff = `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,3 +1,4 @@
+import "fmt"
-import "log"
diff --git a/b.go b/b.go
--- a/b.go
+++ b/b.go
@@ -10,2 +10,3 @@
+	fmt.Println("x")
`

func TestBuildShortCommitMessageGolden(t *testing.T) {
	req, err := Build(TaskCommitMessage, Inputs{Model: "openai/gpt-4o", Diff: "DIFF", Strategy: StrategyShort})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := llm.Request{
		Model: "openai/gpt-4o",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: shortSystem},
			{Role: llm.RoleUser, Content: "Please summarize the following git diff into a single-line commit message:\n\nDIFF"},
		},
		MaxTokens: 100,
	}
	if !reflect.DeepEqual(req, want) {
		t.Fatalf("unexpected request:\n got %+v\nwant %+v", req, want)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	in := Inputs{
		Model:   "m",
		Diff:    multiFileDiff,
		Context: []FileContext{{Path: "a/a.go", Content: "package a\n"}},
		Commits: []string{"feat: one", "fix: two"},
		Report:  &ReportInput{Start: "2024-01-01", End: "2024-01-31", Projects: []ProjectStats{{Name: "api", CommitCount: 2, Authors: []string{"zed", "amy"}}}},
	}
	for _, task := range []Task{TaskCommitMessage, TaskCommitAnalysis, TaskHistory, TaskFeedback, TaskReport} {
		a, err := Build(task, in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", task, err)
		}
		b, _ := Build(task, in)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("%s: identical inputs produced different requests", task)
		}
		if a.Messages[0].Role != llm.RoleSystem || a.Messages[1].Role != llm.RoleUser {
			t.Fatalf("%s: expected system then user message", task)
		}
	}
}

func TestCommitAnalysisEmbedsContextVerbatim(t *testing.T) {
	content := "func f() {\n\treturn `raw` \"quoted\"\n}\n"
	req, err := Build(TaskCommitAnalysis, Inputs{
		Model:   "m",
		Diff:    "DIFF",
		Context: []FileContext{{Path: "b/pkg/f.go", Content: content}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Here is the original git diff:\n\nDIFF\n\n" +
		"You previously requested the content for 'b/pkg/f.go'. Here it is:\n\n```\n" + content + "\n```\n\n" +
		"Please analyze the diff again with this additional context and provide your final classification and justification."
	if req.Messages[1].Content != want {
		t.Fatalf("unexpected follow-up content:\n%s", req.Messages[1].Content)
	}
	if req.MaxTokens != MaxTokensAnalysisContext {
		t.Fatalf("follow-up should allow more tokens, got %d", req.MaxTokens)
	}

	initial, _ := Build(TaskCommitAnalysis, Inputs{Model: "m", Diff: "DIFF"})
	if !strings.HasSuffix(initial.Messages[1].Content, "Git Diff:\nDIFF") || initial.MaxTokens != MaxTokensAnalysis {
		t.Fatalf("unexpected initial request: %+v", initial)
	}
	if !strings.Contains(initial.Messages[0].Content, `{"request_file": "path/to/the/file/you/need/to/see.py"}`) {
		t.Fatalf("system prompt must describe the file request marker")
	}
}

func TestAIStrategyAddsSizeHint(t *testing.T) {
	small, err := Build(TaskCommitMessage, Inputs{Model: "m", Diff: renameDiff, Strategy: StrategyAI})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if small.Messages[0].Content != unifiedSystem {
		t.Fatalf("ai strategy should use the unified prompt")
	}
	if !strings.Contains(small.Messages[1].Content, "SHORT format is most likely appropriate") {
		t.Fatalf("rename should be hinted as small: %s", small.Messages[1].Content)
	}

	large, _ := Build(TaskCommitMessage, Inputs{Model: "m", Diff: multiFileDiff})
	if strings.Contains(large.Messages[1].Content, "SHORT") {
		t.Fatalf("multi-file change should not get the small hint: %s", large.Messages[1].Content)
	}
	if !strings.Contains(large.Messages[1].Content, "Change size: 2 file(s), 3 changed line(s).") {
		t.Fatalf("unexpected size hint: %s", large.Messages[1].Content)
	}
}

func TestHistoryDetailLevels(t *testing.T) {
	cases := map[DetailLevel]string{
		DetailTechnical:    "technical lead",
		DetailNonTechnical: "product manager",
		DetailOverview:     "executive assistant",
	}
	for level, marker := range cases {
		req, err := Build(TaskHistory, Inputs{Model: "m", Commits: []string{"a", "b"}, Detail: level})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", level, err)
		}
		if !strings.Contains(req.Messages[0].Content, marker) {
			t.Fatalf("%s: expected %q in system prompt", level, marker)
		}
		if req.Messages[1].Content != "Here are the commits to analyze:\n\na\nb" {
			t.Fatalf("unexpected user content: %q", req.Messages[1].Content)
		}
	}
}

func TestReportListsProjects(t *testing.T) {
	req, err := Build(TaskReport, Inputs{
		Model:   "m",
		Commits: []string{"feat: x"},
		Report: &ReportInput{Start: "2024-01-01", End: "2024-01-31", Projects: []ProjectStats{
			{Path: "/src/api", CommitCount: 1, FilesChanged: 3, Authors: []string{"zed", "amy"}},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(req.Messages[1].Content, "- /src/api: 1 commits, 3 files changed, authors: amy, zed") {
		t.Fatalf("unexpected report content: %s", req.Messages[1].Content)
	}
}

func TestBuildValidation(t *testing.T) {
	cases := []struct {
		name string
		task Task
		in   Inputs
	}{
		{"unknown task", Task("poem"), Inputs{Model: "m", Diff: "d"}},
		{"unknown strategy", TaskCommitMessage, Inputs{Model: "m", Diff: "d", Strategy: "haiku"}},
		{"unknown detail", TaskHistory, Inputs{Model: "m", Commits: []string{"a"}, Detail: "verbose"}},
		{"missing model", TaskFeedback, Inputs{Diff: "d"}},
		{"empty diff", TaskCommitAnalysis, Inputs{Model: "m", Diff: "  "}},
		{"no commits", TaskHistory, Inputs{Model: "m"}},
		{"report without input", TaskReport, Inputs{Model: "m", Commits: []string{"a"}}},
	}
	for _, tc := range cases {
		if _, err := Build(tc.task, tc.in); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
			t.Fatalf("%s: expected INVALID_ARGUMENT, got %v", tc.name, err)
		}
	}
}

func TestMeasureDiff(t *testing.T) {
	if s := MeasureDiff(renameDiff); s.Files != 1 || s.Renames != 1 || s.Changed() != 0 || !s.Small() {
		t.Fatalf("unexpected rename stats: %+v", s)
	}
	if s := MeasureDiff(multiFileDiff); s.Files != 2 || s.Added != 2 || s.Removed != 1 || s.Small() {
		t.Fatalf("unexpected multi-file stats: %+v", s)
	}
}
