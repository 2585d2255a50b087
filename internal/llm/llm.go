// Package llm 定义与大模型交互的通用请求、响应与错误类型，并提供面向
// OpenAI 兼容接口的失败分类器。
package llm

import "context"

// Role 表示消息的角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 是一条对话消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request 描述一次补全调用。Model 为完整的模型标识。
type Request struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// Response 是模型返回的文本结果。
type Response struct {
	Content      string
	Model        string
	FinishReason string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc 允许使用普通函数实现 Client，常用于测试。
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// Complete 实现 Client。
func (f ClientFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
