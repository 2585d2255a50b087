package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	xerrors "ai-git/internal/errors"
)

func sampleEvent() Event {
	return Event{
		Code:        xerrors.CodeRetriesExhausted,
		Message:     "gave up after 6 attempts",
		Severity:    xerrors.SeverityCritical,
		JobID:       "job-1",
		Ref:         "abc123",
		Model:       "openai/gpt-4o",
		Attempts:    3,
		MaxAttempts: 3,
	}
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewFanout(&WebhookNotifier{URL: srv.URL, Client: srv.Client()})
	if err := d.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.JobID != "job-1" || got.Code != "RETRIES_EXHAUSTED" || !strings.Contains(got.Text, "abc123") {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("occurred_at should be filled in")
	}
}

func TestWebhookNotifierReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewFanout(&WebhookNotifier{URL: srv.URL, Client: srv.Client()})
	err := d.Notify(context.Background(), sampleEvent())
	if err == nil || !strings.Contains(err.Error(), "channel webhook") {
		t.Fatalf("expected channel error, got %v", err)
	}
}

func TestWriterNotifierAndNilDispatcher(t *testing.T) {
	var buf bytes.Buffer
	d := NewFanout(&WriterNotifier{W: &buf}, nil)
	if d.Len() != 1 {
		t.Fatalf("nil notifiers should be skipped, got %d", d.Len())
	}
	if err := d.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "alert: [critical] RETRIES_EXHAUSTED: abc123") {
		t.Fatalf("unexpected line: %q", buf.String())
	}

	var none *FanoutDispatcher
	if err := none.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("nil dispatcher should be a no-op: %v", err)
	}
}
