package prompt

import "strings"

// DiffStats 是对 unified diff 的粗略统计。
type DiffStats struct {
	Files   int
	Added   int
	Removed int
	Renames int
}

// Changed 返回增删行数之和。
func (s DiffStats) Changed() int { return s.Added + s.Removed }

// Small 判断变更是否足够小，适合单行提交信息：最多一个文件且不超过 10 行，或只有纯重命名。
func (s DiffStats) Small() bool {
	if s.Files <= 1 && s.Changed() <= 10 {
		return true
	}
	return s.Renames > 0 && s.Renames == s.Files && s.Changed() == 0
}

// MeasureDiff 统计 diff 中的文件与行数。
func MeasureDiff(diff string) DiffStats {
	var s DiffStats
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			s.Files++
		case strings.HasPrefix(line, "rename to "):
			s.Renames++
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			s.Added++
		case strings.HasPrefix(line, "-"):
			s.Removed++
		}
	}
	return s
}
