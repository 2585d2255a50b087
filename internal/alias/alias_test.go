package alias

import (
	"bytes"
	stdErrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai-git/pkg/logger"
)

const sampleTable = `
claude35: openrouter/anthropic/claude-3.5-sonnet
geminiflash20-free: openrouter/google/gemini-2.0-flash-exp:free
gpt4o: openai/gpt-4o-2024-05-13
`

func newBufferedResolver(t *testing.T, table Table) (*Resolver, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewResolver(table, WithLogger(l)), &buf
}

func TestResolve(t *testing.T) {
	table, err := Parse([]byte(sampleTable))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r, buf := newBufferedResolver(t, table)

	cases := []struct {
		in, want string
	}{
		{"openai/gpt-4", "openai/gpt-4"},
		{"openrouter/anthropic/claude-3.5-sonnet", "openrouter/anthropic/claude-3.5-sonnet"},
		{"claude35", "openrouter/anthropic/claude-3.5-sonnet"},
		{"geminiflash20-free", "openrouter/google/gemini-2.0-flash-exp:free"},
		{"gpt4o", "openai/gpt-4o-2024-05-13"},
		{"unknown-model", "unknown-model"},
	}
	for _, tc := range cases {
		if got := r.Resolve(tc.in); got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	out := buf.String()
	if strings.Count(out, "level=WARN") != 1 || !strings.Contains(out, "alias=unknown-model") {
		t.Fatalf("expected exactly one warning for the unknown alias, got:\n%s", out)
	}
}

func TestQualifiedNamesSkipLookup(t *testing.T) {
	r, buf := newBufferedResolver(t, Table{"a/b": "shadowed"})
	if got := r.Resolve("a/b"); got != "a/b" {
		t.Fatalf("qualified names must pass through, got %q", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("no lookup should be logged: %s", buf.String())
	}
}

func TestStrictReportsKnownAliases(t *testing.T) {
	r := NewResolver(Table{"b": "x/b", "a": "x/a"}, WithLogger(logger.Discard()))
	_, err := r.Strict("missing")
	if !stdErrors.Is(err, ErrUnknownAlias) {
		t.Fatalf("expected ErrUnknownAlias, got %v", err)
	}
	if !strings.Contains(err.Error(), "known=a,b") {
		t.Fatalf("known aliases should be listed: %v", err)
	}
	if got, err := r.Strict("a"); err != nil || got != "x/a" {
		t.Fatalf("Strict(a) = %q, %v", got, err)
	}
}

func TestParseRejectsNonMapping(t *testing.T) {
	for _, doc := range []string{"- a\n- b\n", "just a string\n", "a: [1, 2]\n"} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("expected error for %q", doc)
		}
	}
	table, err := Parse([]byte("   \n"))
	if err != nil || len(table) != 0 {
		t.Fatalf("empty document should give an empty table: %v %v", table, err)
	}
}

func TestLoadNeverFails(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "warn.log")
	if err := logger.Init(logger.Config{OutputPaths: []string{logPath}}); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(func() {
		_ = logger.Sync()
		_ = logger.Init(logger.Config{})
	})

	if table := Load(filepath.Join(dir, "missing.yaml")); len(table) != 0 {
		t.Fatalf("missing file should give an empty table")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- not\n- a map\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	table := Load(bad)
	if len(table) != 0 {
		t.Fatalf("malformed file should give an empty table")
	}
	if got := NewResolver(table, WithLogger(logger.Discard())).Resolve("claude35"); got != "claude35" {
		t.Fatalf("empty table must degrade to passthrough, got %q", got)
	}

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte(sampleTable), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if table := Load(good); table["claude35"] != "openrouter/anthropic/claude-3.5-sonnet" {
		t.Fatalf("unexpected table: %v", table)
	}

	_ = logger.Sync()
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Count(string(data), "level=WARN") != 2 {
		t.Fatalf("expected two warnings, got:\n%s", data)
	}
}

func TestShippedAliasFileParses(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "config", "model-aliases.yaml"))
	if err != nil {
		t.Fatalf("read shipped aliases: %v", err)
	}
	table, err := Parse(data)
	if err != nil {
		t.Fatalf("parse shipped aliases: %v", err)
	}
	if table["claude35"] != "openrouter/anthropic/claude-3.5-sonnet" {
		t.Fatalf("unexpected shipped table: %v", table)
	}
}
