package analysis

import "testing"

func TestParseFileRequest(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"request_file": "a/pkg/x.go"}`, "a/pkg/x.go", true},
		{"Need context:\n{ \"request_file\" :\"src/main.py\" }\nthanks", "src/main.py", true},
		{`{"request_file": ""}`, "", false},
		{"Classification: Clean Refactoring", "", false},
		{`{"file": "x"}`, "", false},
	}
	for _, tc := range cases {
		got, ok := ParseFileRequest(tc.in)
		if ok != tc.ok || got.Path != tc.want {
			t.Fatalf("ParseFileRequest(%q) = %q, %v", tc.in, got.Path, ok)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	good := map[string]string{
		"a/pkg/x.go":      "pkg/x.go",
		"b/pkg/x.go":      "pkg/x.go",
		"pkg/./y/../x.go": "pkg/x.go",
		"abc/def.go":      "abc/def.go",
		" b/README.md ":   "README.md",
	}
	for in, want := range good {
		got, err := NormalizePath(in)
		if err != nil || got != want {
			t.Fatalf("NormalizePath(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "a/", "/etc/passwd", "../x", "a/../../x", "pkg/../../x", ".."} {
		if _, err := NormalizePath(bad); err == nil {
			t.Fatalf("NormalizePath(%q) should fail", bad)
		}
	}
}

func TestStripBackticks(t *testing.T) {
	cases := map[string]string{
		"":                             "",
		"   ":                          "",
		"```go\nfeat: add parser\n```": "feat: add parser",
		"```\nfix: x\n\n- detail\n```": "fix: x\n\n- detail",
		"`chore: bump deps`":           "chore: bump deps",
		"``refactor: split``":          "refactor: split",
		"feat: a\n```\n- b":            "feat: a\n- b",
		"rename foo.py to bar.py":      "rename foo.py to bar.py",
		"uses `inline` code":           "uses `inline` code",
	}
	for in, want := range cases {
		if got := StripBackticks(in); got != want {
			t.Fatalf("StripBackticks(%q) = %q, want %q", in, got, want)
		}
	}
}
