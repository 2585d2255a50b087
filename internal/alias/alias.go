// Package alias 负责把简短的模型别名解析为完整的模型标识。
package alias

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "ai-git/internal/errors"
	"ai-git/pkg/logger"
)

// ErrUnknownAlias 在严格模式下表示别名不存在。
var ErrUnknownAlias = stdErrors.New("unknown model alias")

// Table 将别名映射到完整的模型标识，加载后只读。
type Table map[string]string

// Load 从 YAML 文件加载别名表。
//
// 文件缺失、无法读取或格式不是映射时返回空表并记录警告，从不返回错误，
// 解析随之退化为原样透传。
func Load(path string) Table {
	log := logger.Named("alias")
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("模型别名配置不可用", slog.String("path", path), slog.Any("error", err))
		return Table{}
	}
	table, err := Parse(data)
	if err != nil {
		log.Warn("模型别名配置格式无效",
			slog.String("path", path),
			slog.Any("error", xerrors.Wrap(xerrors.CodeConfiguration, err, "别名表解析失败")),
		)
		return Table{}
	}
	return table
}

// Parse 解析 YAML 文档。文档必须是字符串到字符串的映射，空文档视为空表。
func Parse(data []byte) (Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Table{}, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return Table{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("alias table must be a mapping, got %s", kindName(root.Kind))
	}
	table := make(Table, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("alias %q: value must be a scalar (line %d)", key.Value, value.Line)
		}
		name := strings.TrimSpace(key.Value)
		if name == "" {
			continue
		}
		table[name] = strings.TrimSpace(value.Value)
	}
	return table, nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// Resolver 基于只读别名表解析模型名称。
type Resolver struct {
	table  Table
	logger *slog.Logger
}

// Option 定义 Resolver 的可选配置。
type Option func(*Resolver)

// WithLogger 指定日志输出。
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver 复制别名表并构造 Resolver。
func NewResolver(table Table, opts ...Option) *Resolver {
	clone := make(Table, len(table))
	for k, v := range table {
		clone[k] = v
	}
	r := &Resolver{table: clone}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = logger.Named("alias")
	}
	return r
}

// Resolve 返回完整的模型标识。包含 "/" 的名称直接透传，未知别名原样返回并记录警告。
func (r *Resolver) Resolve(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	if resolved, ok := r.table[name]; ok {
		r.logger.Debug("模型别名已解析", slog.String("alias", name), slog.String("model", resolved))
		return resolved
	}
	r.logger.Warn("未知的模型别名", slog.String("alias", name))
	return name
}

// Strict 与 Resolve 相同，但未知别名返回 ErrUnknownAlias。
func (r *Resolver) Strict(name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	if resolved, ok := r.table[name]; ok {
		return resolved, nil
	}
	return name, xerrors.Wrap(xerrors.CodeNotFound, ErrUnknownAlias, fmt.Sprintf("未知的模型别名 %q", name),
		xerrors.WithMetadata("known", strings.Join(r.Names(), ",")),
	)
}

// Lookup 查询别名，不记录日志。
func (r *Resolver) Lookup(name string) (string, bool) {
	v, ok := r.table[name]
	return v, ok
}

// Names 返回排序后的别名列表。
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.table))
	for k := range r.table {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len 返回别名数量。
func (r *Resolver) Len() int { return len(r.table) }
