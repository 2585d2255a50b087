// Package config 加载 ai-git 的 JSON 配置文件，并叠加默认值与环境变量。
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	xerrors "ai-git/internal/errors"
	"ai-git/internal/retry"
)

// 环境变量名称。
const (
	EnvConfigPath    = "AI_GIT_CONFIG"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenRouterKey = "OPENROUTER_API_KEY"
	EnvModel         = "AI_GIT_MODEL"
)

// DefaultModel 是未指定 --model 时使用的模型。
const DefaultModel = "openrouter/qwen/qwen-2.5-coder-32b-instruct"

// Config 描述了 ai-git 运行所需的全部配置。
type Config struct {
	LLM     LLMConfig     `json:"llm"`
	Retry   RetryConfig   `json:"retry"`
	Aliases AliasConfig   `json:"aliases"`
	Catalog CatalogConfig `json:"catalog"`
	Batch   BatchConfig   `json:"batch"`
	Report  ReportConfig  `json:"report"`
	Log     LogConfig     `json:"log"`
}

// LLMConfig 用于配置模型调用。
type LLMConfig struct {
	DefaultModel string         `json:"default_model"`
	AppTitle     string         `json:"app_title"`
	OpenAI       ProviderConfig `json:"openai"`
	OpenRouter   ProviderConfig `json:"openrouter"`
	// MaxFileBytes 限制分析时补充给模型的单个文件大小。
	MaxFileBytes int64 `json:"max_file_bytes"`
}

// ProviderConfig 描述单个 provider 的连接参数。APIKey 为空时从 APIKeyEnv 读取。
type ProviderConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回请求超时。
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RetryConfig 对应 retry.Policy。
type RetryConfig struct {
	MaxRetries           int   `json:"max_retries"`
	MinWaitSeconds       int   `json:"min_wait_seconds"`
	MaxWaitSeconds       int   `json:"max_wait_seconds"`
	RetryableStatusCodes []int `json:"retryable_status_codes"`
}

// Policy 转换为 retry.Policy。
func (r RetryConfig) Policy() retry.Policy {
	codes := append([]int(nil), r.RetryableStatusCodes...)
	if len(codes) == 0 {
		codes = append(codes, retry.DefaultRetryableStatusCodes...)
	}
	return retry.Policy{
		MaxRetries:           r.MaxRetries,
		MinWait:              time.Duration(r.MinWaitSeconds) * time.Second,
		MaxWait:              time.Duration(r.MaxWaitSeconds) * time.Second,
		RetryableStatusCodes: codes,
	}
}

// AliasConfig 指定别名表位置。
type AliasConfig struct {
	Path string `json:"path"`
}

// CatalogConfig 配置 OpenRouter 模型列表的缓存。
type CatalogConfig struct {
	Driver     string      `json:"driver"`
	Path       string      `json:"path"`
	TTLMinutes int         `json:"ttl_minutes"`
	Redis      RedisConfig `json:"redis"`
}

// TTL 返回缓存有效期，0 表示永不过期。
func (c CatalogConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// RedisConfig 描述 Redis 连接。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// BatchConfig 配置批量分析的任务存储与队列。
type BatchConfig struct {
	Workers     int              `json:"workers"`
	MaxAttempts int              `json:"max_attempts"`
	Store       BatchStoreConfig `json:"store"`
	Queue       BatchQueueConfig `json:"queue"`
	// AlertWebhook 非空时，任务最终失败会 POST 到该地址。
	AlertWebhook string `json:"alert_webhook"`
}

// BatchStoreConfig 支持 memory 与 mysql。
type BatchStoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// BatchQueueConfig 支持 memory、redis 与 rabbitmq。
type BatchQueueConfig struct {
	Driver   string         `json:"driver"`
	Buffer   int            `json:"buffer"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接。
type RabbitMQConfig struct {
	URL   string `json:"url"`
	Queue string `json:"queue"`
}

// ReportConfig 指定项目分组文件。
type ReportConfig struct {
	GroupsPath string `json:"groups_path"`
}

// LogConfig 对应 pkg/logger.Config。
type LogConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AuditPath   string   `json:"audit_path"`
}

// Default 返回只包含默认值的配置。
func Default() *Config {
	cfg := &Config{
		Retry: RetryConfig{
			MaxRetries:     retry.DefaultMaxRetries,
			MinWaitSeconds: int(retry.DefaultMinWait / time.Second),
			MaxWaitSeconds: int(retry.DefaultMaxWait / time.Second),
		},
	}
	cfg.applyDefaults("")
	return cfg
}

// DefaultPath 返回配置文件的默认位置：优先 AI_GIT_CONFIG，其次用户配置目录。
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ai-git", "config.json")
}

// Load 解析配置文件。path 为空或文件不存在时返回默认配置；解析失败返回错误。
// 文件中的相对路径以文件所在目录为基准。
func Load(path string) (*Config, error) {
	cfg := Default()
	baseDir := ""

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(content, cfg); err != nil {
				return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, fmt.Sprintf("解析配置失败: %s", path))
			}
			baseDir = filepath.Dir(path)
		case os.IsNotExist(err):
		default:
			return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, fmt.Sprintf("读取配置文件失败: %s", path))
		}
	}

	cfg.applyDefaults(baseDir)
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置的一致性。
func (c *Config) Validate() error {
	if err := c.Retry.Policy().Validate(); err != nil {
		return xerrors.Wrap(xerrors.CodeConfiguration, err, "重试配置无效")
	}
	switch c.Catalog.Driver {
	case "file", "redis":
	default:
		return xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("不支持的模型缓存驱动 %q", c.Catalog.Driver))
	}
	switch c.Batch.Store.Driver {
	case "memory":
	case "mysql":
		if c.Batch.Store.DSN == "" {
			return xerrors.New(xerrors.CodeConfiguration, "mysql 任务存储缺少 dsn")
		}
	default:
		return xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("不支持的任务存储驱动 %q", c.Batch.Store.Driver))
	}
	switch c.Batch.Queue.Driver {
	case "memory", "redis", "rabbitmq":
	default:
		return xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("不支持的任务队列驱动 %q", c.Batch.Queue.Driver))
	}
	return nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = DefaultModel
	}
	if c.LLM.AppTitle == "" {
		c.LLM.AppTitle = "ai-git-summarize"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = EnvOpenAIKey
	}
	if c.LLM.OpenRouter.APIKeyEnv == "" {
		c.LLM.OpenRouter.APIKeyEnv = EnvOpenRouterKey
	}
	if c.LLM.OpenRouter.BaseURL == "" {
		c.LLM.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	for _, p := range []*ProviderConfig{&c.LLM.OpenAI, &c.LLM.OpenRouter} {
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = 60
		}
	}
	if c.LLM.MaxFileBytes <= 0 {
		c.LLM.MaxFileBytes = 256 << 10
	}

	if c.Retry.MinWaitSeconds < 0 {
		c.Retry.MinWaitSeconds = 0
	}
	if len(c.Retry.RetryableStatusCodes) == 0 {
		c.Retry.RetryableStatusCodes = append([]int(nil), retry.DefaultRetryableStatusCodes...)
	}

	c.Aliases.Path = resolvePath(baseDir, c.Aliases.Path, filepath.Join("config", "model-aliases.yaml"))
	c.Report.GroupsPath = resolvePath(baseDir, c.Report.GroupsPath, "projects-groups.yaml")

	if c.Catalog.Driver == "" {
		c.Catalog.Driver = "file"
	}
	if c.Catalog.Path == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			c.Catalog.Path = filepath.Join(dir, "ai-git", "openrouter_models.json")
		}
	} else {
		c.Catalog.Path = resolvePath(baseDir, c.Catalog.Path, "")
	}
	if c.Catalog.TTLMinutes == 0 {
		c.Catalog.TTLMinutes = 24 * 60
	}
	if c.Catalog.Redis.Key == "" {
		c.Catalog.Redis.Key = "ai-git:openrouter:models"
	}

	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 2
	}
	if c.Batch.MaxAttempts <= 0 {
		c.Batch.MaxAttempts = 3
	}
	if c.Batch.Store.Driver == "" {
		c.Batch.Store.Driver = "memory"
	}
	if c.Batch.Queue.Driver == "" {
		c.Batch.Queue.Driver = "memory"
	}
	if c.Batch.Queue.Buffer <= 0 {
		c.Batch.Queue.Buffer = 64
	}
	if c.Batch.Queue.Redis.Key == "" {
		c.Batch.Queue.Redis.Key = "ai-git:batch:jobs"
	}
	if c.Batch.Queue.RabbitMQ.Queue == "" {
		c.Batch.Queue.RabbitMQ.Queue = "ai-git.batch.jobs"
	}

	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.AuditPath != "" {
		c.Log.AuditPath = resolvePath(baseDir, c.Log.AuditPath, "")
	}
}

func (c *Config) applyEnv() {
	if model := strings.TrimSpace(os.Getenv(EnvModel)); model != "" {
		c.LLM.DefaultModel = model
	}
	for _, p := range []*ProviderConfig{&c.LLM.OpenAI, &c.LLM.OpenRouter} {
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
		}
	}
}

// resolvePath 把相对路径解析到 baseDir；value 为空时使用 fallback。
func resolvePath(baseDir, value, fallback string) string {
	if value == "" {
		value = fallback
	}
	if value == "" || filepath.IsAbs(value) || baseDir == "" {
		return value
	}
	return filepath.Join(baseDir, value)
}
