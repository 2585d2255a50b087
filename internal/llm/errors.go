package llm

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"net"
	"syscall"

	xerrors "ai-git/internal/errors"
	"ai-git/internal/retry"
)

// ErrEmptyResponse 表示模型没有返回任何内容。
var ErrEmptyResponse = stdErrors.New("empty response from model")

// APIError 表示 provider 返回的非成功响应或传输失败。StatusCode 为 0 表示请求未得到 HTTP 响应。
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error (HTTP %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s API error: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsAuthError 判断是否为鉴权失败。
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// ParseError 表示响应体无法解析。
type ParseError struct {
	Provider string
	Input    string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse response %q: %v", e.Provider, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Classify 将 provider 调用失败归类。
//
// 状态码在策略的可重试集合中、网络超时、连接被重置、拒绝或在响应前关闭、响应被截断均视为可重试；
// ctx 取消、解析失败及其余状态码均为致命错误。
func Classify(err error, policy retry.Policy) retry.Outcome {
	if err == nil {
		return retry.Outcome{Kind: retry.Success}
	}
	if stdErrors.Is(err, context.Canceled) || stdErrors.Is(err, context.DeadlineExceeded) {
		return retry.Outcome{Kind: retry.Fatal, Cause: err}
	}

	var apiErr *APIError
	if stdErrors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		if policy.RetryableStatus(apiErr.StatusCode) {
			return retry.Outcome{Kind: retry.Retryable, Status: apiErr.StatusCode, Cause: err}
		}
		return retry.Outcome{Kind: retry.Fatal, Status: apiErr.StatusCode, Cause: err}
	}

	var parseErr *ParseError
	if stdErrors.As(err, &parseErr) {
		return retry.Outcome{Kind: retry.Fatal, Cause: err}
	}
	if transient(err) {
		return retry.Outcome{Kind: retry.Retryable, Cause: err}
	}
	return retry.Outcome{Kind: retry.Fatal, Cause: err}
}

// Classifier 是 Classify 的 retry.Classifier 形式。
var Classifier retry.Classifier = retry.ClassifierFunc(Classify)

func transient(err error) bool {
	var netErr net.Error
	if stdErrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if stdErrors.Is(err, syscall.ECONNRESET) || stdErrors.Is(err, syscall.ECONNREFUSED) || stdErrors.Is(err, syscall.EPIPE) {
		return true
	}
	// 对端在返回响应前关闭连接时 net/http 返回 io.EOF。
	var apiErr *APIError
	if stdErrors.As(err, &apiErr) && apiErr.StatusCode == 0 && stdErrors.Is(err, io.EOF) {
		return true
	}
	if stdErrors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return xerrors.RetryableError(err)
}
