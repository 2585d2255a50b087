// Package openai 通过 Chat Completions 接口调用 OpenAI 及兼容的 OpenRouter 服务。
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	xerrors "ai-git/internal/errors"
	"ai-git/internal/llm"
	"ai-git/internal/observability/metrics"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultProvider = "openai"
	defaultTimeout  = 60 * time.Second
	maxErrorBody    = 2048
)

// Config 描述了调用 Chat Completions API 所需的信息。
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	// Headers 会附加到每个请求上，例如 OpenRouter 的 X-Title。
	Headers map[string]string
	// HTTPClient 为空时按 Timeout 创建。
	HTTPClient *http.Client
}

// Client 通过 HTTP 调用 Chat Completions 接口。
type Client struct {
	provider   string
	apiKey     string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

// NewClient 根据配置创建客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "未提供 API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	provider := strings.TrimSpace(cfg.Provider)
	if provider == "" {
		provider = defaultProvider
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		provider:   provider,
		apiKey:     apiKey,
		baseURL:    baseURL,
		headers:    headers,
		httpClient: httpClient,
	}, nil
}

// Provider 返回 provider 名称。
func (c *Client) Provider() string { return c.provider }

// Complete 发送一次补全请求。非 2xx 状态与传输失败均以 *llm.APIError 返回，便于重试分类。
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	payload, err := buildPayload(req)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建 %s 请求失败: %w", c.provider, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	keys := make([]string, 0, len(c.headers))
	for k := range c.headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		httpReq.Header.Set(k, c.headers[k])
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.ObserveLLMCall(c.provider, req.Model, 0, time.Since(start))
		return nil, &llm.APIError{Provider: c.provider, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveLLMCall(c.provider, req.Model, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &llm.APIError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.APIError{Provider: c.provider, Message: "read response body", Err: err}
	}

	var decoded struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &llm.ParseError{Provider: c.provider, Input: truncate(string(body)), Err: err}
	}
	if len(decoded.Choices) == 0 {
		return nil, &llm.ParseError{Provider: c.provider, Input: truncate(string(body)), Err: llm.ErrEmptyResponse}
	}

	model := decoded.Model
	if model == "" {
		model = req.Model
	}
	return &llm.Response{
		Content:      decoded.Choices[0].Message.Content,
		Model:        model,
		FinishReason: decoded.Choices[0].FinishReason,
	}, nil
}

// buildPayload 序列化请求。结构体字段顺序固定，相同请求得到相同字节。
func buildPayload(req llm.Request) ([]byte, error) {
	if strings.TrimSpace(req.Model) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "请求缺少模型标识")
	}
	if len(req.Messages) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "请求缺少消息")
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}
	return encoded, nil
}

// errorMessage 提取 {"error":{"message":...}} 中的信息，否则返回原始响应体。
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(text string) string {
	const limit = 200
	if len([]rune(text)) > limit {
		return string([]rune(text)[:limit]) + "..."
	}
	return text
}
