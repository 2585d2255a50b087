package openai

import (
	"context"
	"strings"
	"sync"

	xerrors "ai-git/internal/errors"
	"ai-git/internal/llm"
)

const (
	// OpenRouterPrefix 标记需要经由 OpenRouter 调用的模型。
	OpenRouterPrefix  = "openrouter/"
	openAIPrefix      = "openai/"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultAppTitle   = "ai-git-summarize"
)

// RouterConfig 分别描述两个 provider 的连接参数。
type RouterConfig struct {
	OpenAI     Config
	OpenRouter Config
	// AppTitle 作为 OpenRouter 的 X-Title 请求头。
	AppTitle string
}

// Router 根据模型前缀把请求分派到 OpenAI 或 OpenRouter。
//
// "openrouter/" 前缀的模型发往 OpenRouter 且前缀被去除；其余模型发往 OpenAI，
// 可选的 "openai/" 前缀同样被去除。客户端在首次使用时创建，缺少 API Key 时返回配置错误。
type Router struct {
	cfg RouterConfig

	mu         sync.Mutex
	openai     llm.Client
	openrouter llm.Client
}

// NewRouter 创建路由客户端。
func NewRouter(cfg RouterConfig) *Router {
	if cfg.AppTitle == "" {
		cfg.AppTitle = DefaultAppTitle
	}
	if cfg.OpenRouter.BaseURL == "" {
		cfg.OpenRouter.BaseURL = OpenRouterBaseURL
	}
	if cfg.OpenRouter.Provider == "" {
		cfg.OpenRouter.Provider = "openrouter"
	}
	if cfg.OpenAI.Provider == "" {
		cfg.OpenAI.Provider = defaultProvider
	}
	return &Router{cfg: cfg}
}

// Route 返回模型对应的 provider 名称与发送给 provider 的模型名。
func Route(model string) (provider, upstream string) {
	if strings.HasPrefix(model, OpenRouterPrefix) {
		return "openrouter", strings.TrimPrefix(model, OpenRouterPrefix)
	}
	return defaultProvider, strings.TrimPrefix(model, openAIPrefix)
}

// Complete 实现 llm.Client。
func (r *Router) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	provider, upstream := Route(req.Model)
	client, err := r.client(provider)
	if err != nil {
		return nil, err
	}
	req.Model = upstream
	return client.Complete(ctx, req)
}

func (r *Router) client(provider string) (llm.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if provider == "openrouter" {
		if r.openrouter == nil {
			cfg := r.cfg.OpenRouter
			headers := make(map[string]string, len(cfg.Headers)+1)
			for k, v := range cfg.Headers {
				headers[k] = v
			}
			headers["X-Title"] = r.cfg.AppTitle
			cfg.Headers = headers
			c, err := NewClient(cfg)
			if err != nil {
				return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "OPENROUTER_API_KEY 未设置")
			}
			r.openrouter = c
		}
		return r.openrouter, nil
	}

	if r.openai == nil {
		c, err := NewClient(r.cfg.OpenAI)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "OPENAI_API_KEY 未设置")
		}
		r.openai = c
	}
	return r.openai, nil
}
