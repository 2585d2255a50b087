// Package alerting 在批量任务最终失败时发送通知。
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	xerrors "ai-git/internal/errors"
	"ai-git/pkg/logger"
)

// Channel 表示通知渠道。
type Channel string

// 支持的通知渠道
const (
	ChannelWebhook Channel = "webhook"
	ChannelWriter  Channel = "writer"
)

// Event 描述一次需要告警的事件。
type Event struct {
	Code        xerrors.Code
	Message     string
	Severity    xerrors.Severity
	JobID       string
	Ref         string
	Model       string
	Attempts    int
	MaxAttempts int
	OccurredAt  time.Time
}

// Text 返回单行的事件描述。
func (e Event) Text() string {
	return fmt.Sprintf("[%s] %s: %s %s (attempts %d/%d): %s",
		e.Severity, e.Code, e.Ref, e.Model, e.Attempts, e.MaxAttempts, e.Message)
}

// Notifier 负责将事件发送到指定渠道。
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, event Event) error
}

// Dispatcher 将事件广播给多个通知器。
type Dispatcher interface {
	Notify(ctx context.Context, event Event) error
}

// FanoutDispatcher 实现将事件投递到多个通知器的逻辑。
type FanoutDispatcher struct {
	notifiers map[Channel]Notifier
}

// NewFanout 创建一个新的 FanoutDispatcher。
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	set := make(map[Channel]Notifier, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		set[n.Channel()] = n
	}
	return &FanoutDispatcher{notifiers: set}
}

// Len 返回已注册的渠道数量。
func (d *FanoutDispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.notifiers)
}

// Notify 将事件广播至所有注册渠道。
func (d *FanoutDispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// WebhookNotifier 以 JSON POST 的方式发送告警，{"text": ...} 兼容 Slack 与钉钉的机器人接口。
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// Channel 返回 webhook 渠道。
func (n *WebhookNotifier) Channel() Channel { return ChannelWebhook }

type webhookPayload struct {
	Text        string    `json:"text"`
	Code        string    `json:"code"`
	JobID       string    `json:"job_id"`
	Ref         string    `json:"ref"`
	Model       string    `json:"model,omitempty"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notify 发送 webhook 请求。
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.URL == "" {
		logger.L().Warn("WebhookNotifier 未正确配置，跳过发送", slog.String("job_id", event.JobID))
		return nil
	}
	body, err := json.Marshal(webhookPayload{
		Text:        event.Text(),
		Code:        string(event.Code),
		JobID:       event.JobID,
		Ref:         event.Ref,
		Model:       event.Model,
		Attempts:    event.Attempts,
		MaxAttempts: event.MaxAttempts,
		OccurredAt:  event.OccurredAt,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// WriterNotifier 将告警写入终端或文件。
type WriterNotifier struct {
	mu sync.Mutex
	W  io.Writer
}

// Channel 返回 writer 渠道。
func (n *WriterNotifier) Channel() Channel { return ChannelWriter }

// Notify 写入一行告警。
func (n *WriterNotifier) Notify(_ context.Context, event Event) error {
	if n == nil || n.W == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintln(n.W, "alert: "+event.Text())
	return err
}
