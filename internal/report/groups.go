// Package report 汇总一组项目在某个日期区间内的提交活动，并生成工作报告。
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "ai-git/internal/errors"
)

// Groups 把分组名称映射到项目路径列表。
type Groups map[string][]string

type groupsFile struct {
	Groups map[string][]string `yaml:"projects-groups"`
}

// LoadGroups 读取 projects-groups.yaml。
func LoadGroups(path string) (Groups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, fmt.Sprintf("未找到项目分组文件 %s", path))
		}
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "读取项目分组文件失败")
	}
	return ParseGroups(data)
}

// ParseGroups 解析项目分组内容，要求存在 projects-groups 键。
func ParseGroups(data []byte) (Groups, error) {
	var file groupsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "项目分组文件不是合法的 YAML")
	}
	if file.Groups == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration, "项目分组文件缺少 projects-groups 键")
	}
	return Groups(file.Groups), nil
}

// Names 返回排序后的分组名称。
func (g Groups) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Projects 返回分组中的项目路径，并校验每个路径都存在。
func (g Groups) Projects(name string) ([]string, error) {
	paths, ok := g[name]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound,
			fmt.Sprintf("未知的分组 %q，可用分组: %s", name, strings.Join(g.Names(), ", ")))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("项目路径不存在: %s", p))
		}
	}
	return append([]string(nil), paths...), nil
}
