// Package catalog 获取并缓存 OpenRouter 提供的模型列表。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	xerrors "ai-git/internal/errors"
	"ai-git/internal/llm"
	"ai-git/pkg/logger"
)

const (
	// DefaultEndpoint 是 OpenRouter 的模型列表接口。
	DefaultEndpoint = "https://openrouter.ai/api/v1/models"
	modelPrefix     = "openrouter/"
)

// Pricing 为每个 token 的美元价格，保持 OpenRouter 返回的字符串形式。
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// Model 是一个可用模型。ID 带有 "openrouter/" 前缀，可以直接传给 --model。
type Model struct {
	ID            string  `json:"id"`
	Name          string  `json:"name,omitempty"`
	ContextLength int     `json:"context_length,omitempty"`
	Pricing       Pricing `json:"pricing"`
}

// Snapshot 是带获取时间的模型列表。
type Snapshot struct {
	FetchedAt time.Time `json:"fetched_at"`
	Models    []Model   `json:"models"`
}

// Cache 保存最近一次获取的模型列表。没有缓存时 Load 返回 (nil, nil)。
type Cache interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Fetcher 从 OpenRouter 拉取模型列表。
type Fetcher struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewFetcher 创建 Fetcher。endpoint 为空时使用 DefaultEndpoint。
func NewFetcher(endpoint, apiKey string, httpClient *http.Client) (*Fetcher, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "OPENROUTER_API_KEY 未设置")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{endpoint: endpoint, apiKey: apiKey, httpClient: httpClient}, nil
}

// Fetch 请求模型列表并按 ID 排序。
func (f *Fetcher) Fetch(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("构建模型列表请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &llm.APIError{Provider: "openrouter", Message: "fetch models", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &llm.APIError{Provider: "openrouter", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var decoded struct {
		Data []struct {
			ID            string  `json:"id"`
			Name          string  `json:"name"`
			ContextLength int     `json:"context_length"`
			Pricing       Pricing `json:"pricing"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &llm.ParseError{Provider: "openrouter", Err: err}
	}

	models := make([]Model, 0, len(decoded.Data))
	for _, m := range decoded.Data {
		if m.ID == "" {
			continue
		}
		models = append(models, Model{
			ID:            modelPrefix + m.ID,
			Name:          m.Name,
			ContextLength: m.ContextLength,
			Pricing:       m.Pricing,
		})
	}
	sort.Slice(models, func(i, j int) bool {
		return strings.ToLower(models[i].ID) < strings.ToLower(models[j].ID)
	})
	return models, nil
}

// Source 抽象模型列表的来源，便于测试。
type Source interface {
	Fetch(ctx context.Context) ([]Model, error)
}

// Catalog 组合远端来源与本地缓存。
type Catalog struct {
	source Source
	cache  Cache
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option 定义 Catalog 的可选配置。
type Option func(*Catalog)

// WithTTL 设置缓存有效期，0 表示永不过期。
func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) { c.ttl = ttl }
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// New 创建 Catalog。
func New(source Source, cache Cache, opts ...Option) *Catalog {
	c := &Catalog{source: source, cache: cache, now: time.Now, logger: logger.Named("catalog")}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Models 返回模型列表。refresh 为 false 且缓存有效时直接使用缓存，否则重新获取并写回缓存。
// 获取失败时若存在过期缓存则退回使用它。
func (c *Catalog) Models(ctx context.Context, refresh bool) ([]Model, error) {
	var cached *Snapshot
	if c.cache != nil {
		snap, err := c.cache.Load(ctx)
		if err != nil {
			c.logger.Warn("读取模型缓存失败", slog.Any("error", err))
		}
		cached = snap
	}
	if !refresh && cached != nil && len(cached.Models) > 0 && c.fresh(cached.FetchedAt) {
		return cached.Models, nil
	}

	if c.source == nil {
		if cached != nil {
			return cached.Models, nil
		}
		return nil, xerrors.New(xerrors.CodeConfiguration, "未配置模型列表来源，请设置 OPENROUTER_API_KEY")
	}
	models, err := c.source.Fetch(ctx)
	if err != nil {
		if cached != nil && len(cached.Models) > 0 && !refresh {
			c.logger.Warn("获取模型列表失败，使用过期缓存", slog.Any("error", err))
			return cached.Models, nil
		}
		return nil, xerrors.Wrap(xerrors.CodeProviderFatal, err, "获取模型列表失败")
	}
	if c.cache != nil && len(models) > 0 {
		if err := c.cache.Save(ctx, Snapshot{FetchedAt: c.now().UTC(), Models: models}); err != nil {
			c.logger.Warn("写入模型缓存失败", slog.Any("error", err))
		}
	}
	return models, nil
}

func (c *Catalog) fresh(fetchedAt time.Time) bool {
	if c.ttl <= 0 {
		return true
	}
	return c.now().Sub(fetchedAt) < c.ttl
}

// FormatContext 把上下文长度格式化为 "128k" 形式。
func FormatContext(n int) string {
	switch {
	case n <= 0:
		return "-"
	case n >= 1000:
		return strconv.Itoa(n/1000) + "k"
	default:
		return strconv.Itoa(n)
	}
}

// FormatPrice 把每 token 价格换算为每百万 token 的美元价格。
func FormatPrice(perToken string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(perToken), 64)
	if err != nil {
		return "-"
	}
	if v == 0 {
		return "free"
	}
	return "$" + strconv.FormatFloat(v*1e6, 'f', 2, 64) + "/M"
}
