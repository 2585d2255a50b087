// Package git 封装 ai-git 所需的 git 命令。
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	xerrors "ai-git/internal/errors"
)

// Runner 在指定目录执行 git 子命令并返回标准输出。
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CommandError 描述失败的 git 命令。
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner 通过 os/exec 调用 git 可执行文件。
type ExecRunner struct {
	Binary string
}

// Run 实现 Runner。
func (r ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// Repo 表示一个 git 工作区。
type Repo struct {
	dir    string
	runner Runner
}

// Option 定义 Repo 的可选配置。
type Option func(*Repo)

// WithRunner 替换命令执行器，测试中用于注入假实现。
func WithRunner(r Runner) Option {
	return func(repo *Repo) {
		if r != nil {
			repo.runner = r
		}
	}
}

// Open 以 dir 为工作目录创建 Repo，dir 为空表示当前目录。
func Open(dir string, opts ...Option) *Repo {
	repo := &Repo{dir: dir, runner: ExecRunner{}}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

// Dir 返回工作目录。
func (r *Repo) Dir() string { return r.dir }

func (r *Repo) run(ctx context.Context, op string, args ...string) (string, error) {
	out, err := r.runner.Run(ctx, r.dir, args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", xerrors.Wrap(xerrors.CodeCancelled, ctx.Err(), "")
		}
		return "", xerrors.Wrap(xerrors.CodeGitFailure, err, op+" 失败", xerrors.WithMetadata("dir", r.dir))
	}
	return out, nil
}

// Root 返回仓库根目录。
func (r *Repo) Root(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "定位仓库根目录", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// UnstagedDiff 返回未暂存的改动。
func (r *Repo) UnstagedDiff(ctx context.Context) (string, error) {
	return r.run(ctx, "读取未暂存改动", "diff")
}

// StagedDiff 返回已暂存的改动。
func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	return r.run(ctx, "读取暂存区改动", "diff", "--cached")
}

// StageAll 暂存全部改动。
func (r *Repo) StageAll(ctx context.Context) error {
	_, err := r.run(ctx, "暂存改动", "add", "-A")
	return err
}

// Commit 以 message 创建提交。
func (r *Repo) Commit(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "提交信息为空")
	}
	_, err := r.run(ctx, "创建提交", "commit", "-m", message)
	return err
}

// Push 推送到默认远端。
func (r *Repo) Push(ctx context.Context) error {
	_, err := r.run(ctx, "推送", "push")
	return err
}

// CommitDiff 返回某个提交引入的改动。
func (r *Repo) CommitDiff(ctx context.Context, ref string) (string, error) {
	if err := checkRef(ref); err != nil {
		return "", err
	}
	return r.run(ctx, "读取提交改动", "show", "--format=", "--patch", ref, "--")
}

// CommitMessages 返回区间内每个提交的标题，按时间倒序。
func (r *Repo) CommitMessages(ctx context.Context, revRange string) ([]string, error) {
	if err := checkRef(revRange); err != nil {
		return nil, err
	}
	out, err := r.run(ctx, "读取提交历史", "log", "--pretty=format:%s", revRange, "--")
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// Period 是按日期筛选提交的区间，格式与 git log --since/--until 相同。
type Period struct {
	Since string
	Until string
}

func (p Period) args(extra ...string) []string {
	args := []string{"log"}
	if p.Since != "" {
		args = append(args, "--since="+p.Since)
	}
	if p.Until != "" {
		args = append(args, "--until="+p.Until)
	}
	return append(append(args, "--no-merges"), extra...)
}

// CommitsBetween 返回区间内非合并提交的标题。
func (r *Repo) CommitsBetween(ctx context.Context, p Period) ([]string, error) {
	out, err := r.run(ctx, "读取提交历史", p.args("--pretty=format:%s")...)
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// Stats 是区间内的提交统计。
type Stats struct {
	Commits      int
	Authors      []string
	FilesChanged int
}

// StatsBetween 统计区间内的作者与改动文件数。
func (r *Repo) StatsBetween(ctx context.Context, p Period) (Stats, error) {
	commits, err := r.CommitsBetween(ctx, p)
	if err != nil {
		return Stats{}, err
	}
	authorsOut, err := r.run(ctx, "统计作者", p.args("--pretty=format:%an")...)
	if err != nil {
		return Stats{}, err
	}
	filesOut, err := r.run(ctx, "统计改动文件", p.args("--name-only", "--pretty=format:")...)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Commits:      len(commits),
		Authors:      unique(lines(authorsOut)),
		FilesChanged: len(unique(lines(filesOut))),
	}, nil
}

// FileAt 返回文件在指定修订版本中的内容。
func (r *Repo) FileAt(ctx context.Context, ref, path string) (string, error) {
	if err := checkRef(ref); err != nil {
		return "", err
	}
	out, err := r.run(ctx, "读取历史文件", "show", ref+":"+path)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeFileUnavailable, err, fmt.Sprintf("%s 在 %s 中不可用", path, ref))
	}
	return out, nil
}

// DefaultMaxFileBytes 是 RevisionReader 返回内容的默认上限，与工作区读取器一致。
const DefaultMaxFileBytes = 256 << 10

// RevisionReader 读取某个提交的父版本中的文件，即该提交改动之前的内容。
type RevisionReader struct {
	repo     *Repo
	ref      string
	maxBytes int64
}

// NewRevisionReader 创建读取 ref 父版本的读取器。maxBytes <= 0 时使用 DefaultMaxFileBytes。
func NewRevisionReader(repo *Repo, ref string, maxBytes int64) *RevisionReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &RevisionReader{repo: repo, ref: ref, maxBytes: maxBytes}
}

// ReadFile 实现 analysis.FileReader。超过大小上限的内容会被截断。
func (r *RevisionReader) ReadFile(ctx context.Context, relPath string) (string, error) {
	out, err := r.repo.FileAt(ctx, r.ref+"^", relPath)
	if err != nil {
		return "", err
	}
	if int64(len(out)) > r.maxBytes {
		out = out[:r.maxBytes]
	}
	return out, nil
}

// checkRef 拒绝以 "-" 开头的引用，避免被解析为命令行选项。
func checkRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "引用为空")
	}
	if strings.HasPrefix(ref, "-") {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("无效的引用 %q", ref))
	}
	return nil
}

func lines(out string) []string {
	var result []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	return result
}

func unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	sort.Strings(result)
	return result
}
