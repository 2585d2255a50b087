package analysis

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	xerrors "ai-git/internal/errors"
)

// DefaultMaxFileBytes 限制单个补充文件的大小。
const DefaultMaxFileBytes = 256 << 10

var fileRequestPattern = regexp.MustCompile(`\{\s*"request_file"\s*:\s*"([^"]+)"\s*\}`)

// FileRequest 是模型在回复中请求补充的文件。
type FileRequest struct {
	Path string
}

// ParseFileRequest 在回复中查找 {"request_file": "<path>"} 标记，允许标记前后有其他文本。
func ParseFileRequest(text string) (FileRequest, bool) {
	m := fileRequestPattern.FindStringSubmatch(text)
	if m == nil {
		return FileRequest{}, false
	}
	return FileRequest{Path: m[1]}, true
}

// NormalizePath 去掉 diff 的 a/、b/ 前缀并返回仓库内的相对路径。
// 绝对路径以及经由 ".." 逃逸仓库根目录的路径会被拒绝。
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		p = p[2:]
	}
	if p == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "请求的文件路径为空")
	}
	if path.IsAbs(p) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("不允许绝对路径 %q", p))
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("路径 %q 超出仓库根目录", p))
	}
	return clean, nil
}

// FileReader 读取仓库内相对路径的文件内容。
type FileReader interface {
	ReadFile(ctx context.Context, relPath string) (string, error)
}

// FileReaderFunc 允许使用普通函数作为 FileReader。
type FileReaderFunc func(ctx context.Context, relPath string) (string, error)

// ReadFile 实现 FileReader。
func (f FileReaderFunc) ReadFile(ctx context.Context, relPath string) (string, error) {
	return f(ctx, relPath)
}

// WorktreeReader 从工作区读取文件，解析符号链接后仍需位于根目录内。
type WorktreeReader struct {
	root     string
	maxBytes int64
}

// NewWorktreeReader 创建以 root 为根的读取器。maxBytes <= 0 时使用默认上限。
func NewWorktreeReader(root string, maxBytes int64) (*WorktreeReader, error) {
	if root == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "仓库根目录为空")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析仓库根目录失败")
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeFileUnavailable, err, "仓库根目录不可用")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &WorktreeReader{root: resolved, maxBytes: maxBytes}, nil
}

// ReadFile 实现 FileReader。超过大小上限的文件会被截断。
func (r *WorktreeReader) ReadFile(ctx context.Context, relPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := NormalizePath(relPath)
	if err != nil {
		return "", err
	}
	target, err := filepath.EvalSymlinks(filepath.Join(r.root, filepath.FromSlash(clean)))
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeFileUnavailable, err, fmt.Sprintf("无法读取 %s", clean))
	}
	if !within(r.root, target) {
		return "", xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("%s 经符号链接指向仓库外部", clean))
	}

	f, err := os.Open(target)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeFileUnavailable, err, fmt.Sprintf("无法读取 %s", clean))
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeFileUnavailable, err, fmt.Sprintf("无法读取 %s", clean))
	}
	if info.IsDir() {
		return "", xerrors.New(xerrors.CodeFileUnavailable, fmt.Sprintf("%s 是目录", clean))
	}
	data, err := io.ReadAll(io.LimitReader(f, r.maxBytes))
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeFileUnavailable, err, fmt.Sprintf("无法读取 %s", clean))
	}
	return string(data), nil
}

func within(root, target string) bool {
	if target == root {
		return true
	}
	return strings.HasPrefix(target, root+string(os.PathSeparator))
}
