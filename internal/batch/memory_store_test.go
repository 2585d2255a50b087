package batch

import (
	"context"
	stdErrors "errors"
	"testing"

	"ai-git/internal/analysis"
)

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Job{ID: "j1", Ref: "HEAD", Status: StatusPending, MaxAttempts: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Job{ID: "j1", Ref: "HEAD"}); !stdErrors.Is(err, ErrJobConflict) {
		t.Fatalf("duplicate create should conflict, got %v", err)
	}

	job, err := store.Claim(ctx, "j1")
	if err != nil || job.Status != StatusRunning || job.Attempts != 1 {
		t.Fatalf("first claim: %+v %v", job, err)
	}
	if _, err := store.Claim(ctx, "j1"); !stdErrors.Is(err, ErrJobConflict) {
		t.Fatalf("running job must not be claimed twice, got %v", err)
	}

	if err := store.MarkFailed(ctx, "j1", "PROVIDER_RETRYABLE", "boom", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	job, _ = store.Get(ctx, "j1")
	if job.Status != StatusPending || job.ErrorCode != "PROVIDER_RETRYABLE" {
		t.Fatalf("non-terminal failure should return to pending: %+v", job)
	}

	if _, err := store.Claim(ctx, "j1"); err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if err := store.MarkFailed(ctx, "j1", "PROVIDER_RETRYABLE", "boom", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if _, err := store.Claim(ctx, "j1"); !stdErrors.Is(err, ErrJobExhausted) {
		t.Fatalf("expected exhausted after max attempts, got %v", err)
	}
}

func TestMemoryStoreResultIsCopied(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, &Job{ID: "j1", Ref: "HEAD", Status: StatusPending, MaxAttempts: 1})
	if _, err := store.Claim(ctx, "j1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "j1", analysis.Result{Text: "SAFE"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	job, _ := store.Get(ctx, "j1")
	job.Result.Text = "mutated"
	again, _ := store.Get(ctx, "j1")
	if again.Result.Text != "SAFE" {
		t.Fatalf("store returned shared result: %q", again.Result.Text)
	}
	if _, err := store.Claim(ctx, "j1"); !stdErrors.Is(err, ErrJobCompleted) {
		t.Fatalf("expected completed, got %v", err)
	}
}

func TestMemoryStoreListKeepsRequestedOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_ = store.Create(ctx, &Job{ID: id, Status: StatusPending, MaxAttempts: 1})
	}
	jobs, err := store.List(ctx, []string{"c", "missing", "a"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "c" || jobs[1].ID != "a" {
		t.Fatalf("unexpected order: %+v", jobs)
	}
	all, _ := store.List(ctx, nil)
	if len(all) != 3 {
		t.Fatalf("expected all jobs, got %d", len(all))
	}
}
