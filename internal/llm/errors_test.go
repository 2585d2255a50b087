package llm

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"ai-git/internal/retry"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	policy := retry.DefaultPolicy()
	cases := []struct {
		name   string
		err    error
		kind   retry.Kind
		status int
	}{
		{"rate limited", &APIError{Provider: "openai", StatusCode: 429}, retry.Retryable, 429},
		{"unavailable", fmt.Errorf("wrapped: %w", &APIError{Provider: "openai", StatusCode: 503}), retry.Retryable, 503},
		{"gateway timeout", &APIError{Provider: "openrouter", StatusCode: 504}, retry.Retryable, 504},
		{"unauthorized", &APIError{Provider: "openai", StatusCode: 401}, retry.Fatal, 401},
		{"internal error not in policy", &APIError{Provider: "openai", StatusCode: 500}, retry.Fatal, 500},
		{"network timeout", &APIError{Provider: "openai", Message: "request failed", Err: timeoutErr{}}, retry.Retryable, 0},
		{"connection reset", &APIError{Provider: "openai", Err: syscall.ECONNRESET}, retry.Retryable, 0},
		{"truncated body", io.ErrUnexpectedEOF, retry.Retryable, 0},
		{"closed before response", &APIError{Provider: "openai", Message: "request failed", Err: fmt.Errorf("Post: %w", io.EOF)}, retry.Retryable, 0},
		{"broken pipe", &APIError{Provider: "openai", Err: syscall.EPIPE}, retry.Retryable, 0},
		{"bare EOF", io.EOF, retry.Fatal, 0},
		{"parse error", &ParseError{Provider: "openai", Err: io.ErrUnexpectedEOF}, retry.Fatal, 0},
		{"cancelled", fmt.Errorf("call: %w", context.Canceled), retry.Fatal, 0},
		{"anything else", stdErrors.New("boom"), retry.Fatal, 0},
	}
	for _, tc := range cases {
		got := Classify(tc.err, policy)
		if got.Kind != tc.kind || got.Status != tc.status {
			t.Fatalf("%s: got %s/%d, want %s/%d", tc.name, got.Kind, got.Status, tc.kind, tc.status)
		}
	}
}

func TestClassifyHonoursPolicyCodes(t *testing.T) {
	policy := retry.Policy{RetryableStatusCodes: []int{500}}
	if got := Classify(&APIError{StatusCode: 500}, policy); got.Kind != retry.Retryable {
		t.Fatalf("500 should be retryable under a custom policy")
	}
	if got := Classify(&APIError{StatusCode: 429}, policy); got.Kind != retry.Fatal {
		t.Fatalf("429 should be fatal when not listed")
	}
}
