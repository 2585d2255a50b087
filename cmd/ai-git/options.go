package main

// Options 是根命令，结构体标签由 github.com/jessevdk/go-flags 解析。
type Options struct {
	Config  string `short:"c" long:"config" env:"AI_GIT_CONFIG" description:"path to the JSON config file"`
	Model   string `short:"m" long:"model" description:"model ID or alias; openrouter/ prefixed IDs go through OpenRouter"`
	Dir     string `short:"C" long:"dir" default:"." description:"repository directory"`
	Verbose bool   `short:"v" long:"verbose" description:"log debug output to stderr"`

	Summary  SummaryCmd  `command:"summary" description:"Generate a commit message for staged changes and commit"`
	Analyze  AnalyzeCmd  `command:"analyze" description:"Classify the risk of a commit, letting the model request one file"`
	Feedback FeedbackCmd `command:"feedback" description:"Review staged changes for code quality"`
	History  HistoryCmd  `command:"history" description:"Summarize a range of commits"`
	Report   ReportCmd   `command:"report" description:"Generate a work report for a project group between two dates"`
	Batch    BatchCmd    `command:"batch" description:"Analyze several commits through the job queue"`
	Models   ModelsCmd   `command:"models" description:"List or refresh the OpenRouter model catalog"`
	Aliases  AliasesCmd  `command:"aliases" description:"List the configured model aliases"`
}

// RetryFlags 覆盖配置文件中的重试策略，未指定的字段沿用配置。
type RetryFlags struct {
	Retries *int `long:"retries" description:"number of retries for API calls (default 5)"`
	MinWait *int `long:"min-wait" description:"minimum wait in seconds between retries (default 2)"`
	MaxWait *int `long:"max-wait" description:"maximum wait in seconds between retries (default 10)"`
}

// newOptions 把运行环境注入各子命令。
func newOptions(e *env) *Options {
	opts := &Options{}
	opts.Summary.env = e
	opts.Analyze.env = e
	opts.Feedback.env = e
	opts.History.env = e
	opts.Report.env = e
	opts.Batch.env = e
	opts.Models.List.env = e
	opts.Models.Refresh.env = e
	opts.Aliases.env = e
	e.opts = opts
	return opts
}
