package catalog

import (
	"context"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

type countingSource struct {
	calls  int
	models []Model
	err    error
}

func (s *countingSource) Fetch(context.Context) ([]Model, error) {
	s.calls++
	return s.models, s.err
}

func TestFetcherPrefixesAndSorts(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"qwen/qwen-2.5-coder-32b-instruct","context_length":32768,"pricing":{"prompt":"0.00000007","completion":"0.00000016"}},
			{"id":"anthropic/claude-3.5-sonnet","name":"Claude 3.5 Sonnet"},
			{"id":""}
		]}`))
	}))
	defer srv.Close()

	f, err := NewFetcher(srv.URL, "key", srv.Client())
	if err != nil {
		t.Fatalf("fetcher: %v", err)
	}
	models, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if auth != "Bearer key" {
		t.Fatalf("authorization header missing: %q", auth)
	}
	if len(models) != 2 || models[0].ID != "openrouter/anthropic/claude-3.5-sonnet" || models[1].ContextLength != 32768 {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestCatalogUsesFreshCache(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache, err := NewFileCache(filepath.Join(t.TempDir(), "models.json"))
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	src := &countingSource{models: []Model{{ID: "openrouter/a"}}}
	c := New(src, cache, WithTTL(time.Hour), WithClock(func() time.Time { return now }))

	for i := 0; i < 2; i++ {
		models, err := c.Models(context.Background(), false)
		if err != nil || len(models) != 1 {
			t.Fatalf("models: %v %v", models, err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("second call should hit the cache, fetched %d times", src.calls)
	}

	if _, err := c.Models(context.Background(), true); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("refresh must bypass the cache")
	}

	now = now.Add(2 * time.Hour)
	if _, err := c.Models(context.Background(), false); err != nil {
		t.Fatalf("expired: %v", err)
	}
	if src.calls != 3 {
		t.Fatalf("expired cache should trigger a fetch")
	}
}

func TestCatalogFallsBackToStaleCache(t *testing.T) {
	cache, _ := NewFileCache(filepath.Join(t.TempDir(), "models.json"))
	if err := cache.Save(context.Background(), Snapshot{FetchedAt: time.Unix(0, 0), Models: []Model{{ID: "openrouter/old"}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	src := &countingSource{err: stdErrors.New("offline")}
	c := New(src, cache, WithTTL(time.Minute))

	models, err := c.Models(context.Background(), false)
	if err != nil || len(models) != 1 || models[0].ID != "openrouter/old" {
		t.Fatalf("expected stale cache, got %v %v", models, err)
	}
	if _, err := c.Models(context.Background(), true); err == nil {
		t.Fatalf("explicit refresh should surface the fetch error")
	}
}

func TestFormatting(t *testing.T) {
	if FormatContext(128000) != "128k" || FormatContext(0) != "-" || FormatContext(512) != "512" {
		t.Fatalf("unexpected context formatting")
	}
	if FormatPrice("0.000003") != "$3.00/M" || FormatPrice("0") != "free" || FormatPrice("") != "-" {
		t.Fatalf("unexpected price formatting: %s %s %s", FormatPrice("0.000003"), FormatPrice("0"), FormatPrice(""))
	}
}
