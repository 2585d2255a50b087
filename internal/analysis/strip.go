package analysis

import (
	"regexp"
	"strings"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)^```[a-zA-Z0-9_.-]*\\s*\\n?(.*?)\\n?```$")
	backtickQuote = regexp.MustCompile("(?s)^`+(.*?)`+$")
)

// StripBackticks 去掉包裹回复的代码围栏或反引号，并删除只含反引号的行。空行保留，
// 以免破坏提交信息标题与正文之间的分隔。
func StripBackticks(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	} else if m := backtickQuote.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && strings.Trim(trimmed, "`") == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
