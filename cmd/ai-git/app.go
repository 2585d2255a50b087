package main

import (
	"bufio"
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jessevdk/go-flags"

	"ai-git/internal/alias"
	"ai-git/internal/analysis"
	"ai-git/internal/config"
	"ai-git/internal/git"
	"ai-git/internal/llm"
	"ai-git/internal/llm/openai"
	"ai-git/internal/retry"
	"ai-git/pkg/logger"
)

// env 保存一次命令行调用的输入输出与延迟构建的依赖。
type env struct {
	ctx    context.Context
	opts   *Options
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	app *app
	// newClient 在测试中替换真实的 provider 客户端。
	newClient func(cfg *config.Config) llm.Client
	gitOpts   []git.Option
}

// app 是由配置构建出的共享依赖。
type app struct {
	cfg      *config.Config
	resolver *alias.Resolver
	repo     *git.Repo
	client   llm.Client
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	e := &env{ctx: ctx, stdin: bufio.NewReader(stdin), stdout: stdout, stderr: stderr}
	return e.run(args)
}

func (e *env) run(args []string) int {
	opts := newOptions(e)
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "ai-git"
	_, err := parser.ParseArgs(args)
	defer func() { _ = logger.Sync() }()
	if err == nil {
		return 0
	}
	var flagErr *flags.Error
	if stdErrors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
		fmt.Fprintln(e.stdout, flagErr.Message)
		return 0
	}
	e.printError(err)
	return 1
}

// load 读取配置并初始化日志，只在第一次调用时执行。
func (e *env) load() (*app, error) {
	if e.app != nil {
		return e.app, nil
	}
	path := e.opts.Config
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logCfg := logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
		Audit:       logger.AuditConfig{Enabled: cfg.Log.AuditPath != "", Path: cfg.Log.AuditPath},
	}
	if e.opts.Verbose {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		return nil, err
	}

	newClient := e.newClient
	if newClient == nil {
		newClient = routerFor
	}
	e.app = &app{
		cfg:      cfg,
		resolver: alias.NewResolver(alias.Load(cfg.Aliases.Path)),
		repo:     git.Open(e.opts.Dir, e.gitOpts...),
		client:   newClient(cfg),
	}
	return e.app, nil
}

func routerFor(cfg *config.Config) llm.Client {
	return openai.NewRouter(openai.RouterConfig{
		OpenAI: openai.Config{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		},
		OpenRouter: openai.Config{
			APIKey:  cfg.LLM.OpenRouter.APIKey,
			BaseURL: cfg.LLM.OpenRouter.BaseURL,
			Timeout: cfg.LLM.OpenRouter.Timeout(),
		},
		AppTitle: cfg.LLM.AppTitle,
	})
}

// model 返回解析后的模型标识。未知别名返回错误，由 printError 列出可用别名。
func (a *app) model(flag string) (string, error) {
	name := strings.TrimSpace(flag)
	if name == "" {
		name = a.cfg.LLM.DefaultModel
	}
	return a.resolver.Strict(name)
}

// analyzer 按给定策略构建 Analyzer。
func (a *app) analyzer(policy retry.Policy, opts ...analysis.Option) (*analysis.Analyzer, error) {
	exec, err := retry.NewExecutor(policy, retry.WithClassifier(llm.Classifier))
	if err != nil {
		return nil, err
	}
	return analysis.New(a.client, exec, opts...)
}

// policy 以配置为基础叠加命令行参数。
func (a *app) policy(f RetryFlags) retry.Policy {
	p := a.cfg.Retry.Policy()
	if f.Retries != nil {
		p.MaxRetries = *f.Retries
	}
	if f.MinWait != nil {
		p.MinWait = time.Duration(*f.MinWait) * time.Second
	}
	if f.MaxWait != nil {
		p.MaxWait = time.Duration(*f.MaxWait) * time.Second
	}
	return p
}

// confirm 在终端询问是否继续，空输入或输入结束时使用默认值。
func (e *env) confirm(question string, def bool) bool {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(e.stdout, "%s %s: ", question, hint)
	line, err := e.stdin.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "" {
		if err != nil {
			fmt.Fprintln(e.stdout)
		}
		return def
	}
	return answer == "y" || answer == "yes"
}

// printError 输出一行错误描述。重试耗尽时给出尝试次数与等待时间，未知别名时列出别名表。
func (e *env) printError(err error) {
	var exhausted *retry.ExhaustedError
	if stdErrors.As(err, &exhausted) {
		fmt.Fprintf(e.stderr, "error: %s\n", exhausted.Error())
		return
	}
	if stdErrors.Is(err, alias.ErrUnknownAlias) {
		fmt.Fprintf(e.stderr, "error: %v\n", err)
		if e.app != nil {
			printAliases(e.stderr, e.app.resolver, e.app.cfg.Aliases.Path)
		}
		return
	}
	fmt.Fprintf(e.stderr, "error: %v\n", err)
}

func printAliases(w io.Writer, r *alias.Resolver, path string) {
	names := r.Names()
	if len(names) == 0 {
		fmt.Fprintf(w, "No model aliases found in %s\n", path)
		return
	}
	fmt.Fprintln(w, "Available model aliases:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ALIAS\tMODEL")
	for _, name := range names {
		model, _ := r.Lookup(name)
		fmt.Fprintf(tw, "%s\t%s\n", name, model)
	}
	_ = tw.Flush()
}
