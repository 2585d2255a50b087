package batch

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-git/internal/analysis"
	xerrors "ai-git/internal/errors"
	"ai-git/internal/git"
	"ai-git/internal/llm"
	"ai-git/internal/observability/alerting"
	"ai-git/internal/retry"
	"ai-git/pkg/logger"
)

type pipeline struct {
	store   *MemoryStore
	queue   *MemoryQueue
	service *Service
	cancel  context.CancelFunc
	done    chan struct{}
}

func startPipeline(t *testing.T, runner Runner, maxAttempts, workers int, opts ...ProcessorOption) *pipeline {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p := &pipeline{
		store:  NewMemoryStore(),
		queue:  NewMemoryQueue(256),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.service = NewService(p.store, p.queue, maxAttempts)
	opts = append([]ProcessorOption{WithWorkerCount(workers), WithProcessorLogger(logger.Discard())}, opts...)
	processor := NewProcessor(runner, p.store, p.queue, p.queue, opts...)
	go func() {
		defer close(p.done)
		if err := processor.Start(ctx); err != nil && !stdErrors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-p.done
	})
	return p
}

func (p *pipeline) wait(t *testing.T, ids []string) []*Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	jobs, err := p.service.WaitUntilCompleted(ctx, ids, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return jobs
}

func TestProcessorHandlesConcurrentJobs(t *testing.T) {
	var processed atomic.Int32
	runner := RunnerFunc(func(ctx context.Context, job *Job) (analysis.Result, error) {
		processed.Add(1)
		return analysis.Result{Text: "SAFE " + job.Ref}, nil
	})
	p := startPipeline(t, runner, 3, 8)

	var ids []string
	for i := 0; i < 50; i++ {
		job, err := p.service.Submit(context.Background(), fmt.Sprintf("HEAD~%d", i), "gpt4o")
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, job.ID)
	}

	jobs := p.wait(t, ids)
	for i, job := range jobs {
		if job.Status != StatusSucceeded || job.Result.Text != fmt.Sprintf("SAFE HEAD~%d", i) {
			t.Fatalf("job %d: %+v", i, job)
		}
	}
	if processed.Load() != 50 {
		t.Fatalf("expected 50 runs, got %d", processed.Load())
	}
}

func TestProcessorRequeuesRetryableFailures(t *testing.T) {
	var calls atomic.Int32
	runner := RunnerFunc(func(context.Context, *Job) (analysis.Result, error) {
		if calls.Add(1) == 1 {
			return analysis.Result{}, xerrors.Wrap(xerrors.CodeRetriesExhausted, stdErrors.New("429"), "")
		}
		return analysis.Result{Text: "SAFE"}, nil
	})
	p := startPipeline(t, runner, 3, 1)

	job, err := p.service.Submit(context.Background(), "abc123", "m")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	jobs := p.wait(t, []string{job.ID})
	if jobs[0].Status != StatusSucceeded || jobs[0].Attempts != 2 {
		t.Fatalf("expected success on second attempt: %+v", jobs[0])
	}
}

func TestProcessorStopsOnFatalFailure(t *testing.T) {
	var calls atomic.Int32
	runner := RunnerFunc(func(context.Context, *Job) (analysis.Result, error) {
		calls.Add(1)
		return analysis.Result{}, xerrors.New(xerrors.CodeProviderFatal, "401")
	})
	p := startPipeline(t, runner, 3, 2)

	job, _ := p.service.Submit(context.Background(), "abc123", "m")
	jobs := p.wait(t, []string{job.ID})
	if jobs[0].Status != StatusFailed || jobs[0].ErrorCode != string(xerrors.CodeProviderFatal) || jobs[0].Attempts != 1 {
		t.Fatalf("unexpected job: %+v", jobs[0])
	}
	if calls.Load() != 1 {
		t.Fatalf("fatal failures must not be retried, got %d runs", calls.Load())
	}
}

func TestProcessorGivesUpAfterMaxAttempts(t *testing.T) {
	runner := RunnerFunc(func(context.Context, *Job) (analysis.Result, error) {
		return analysis.Result{}, xerrors.New(xerrors.CodeProviderRetry, "503")
	})
	alerts := make(chan alerting.Event, 4)
	dispatcher := dispatcherFunc(func(_ context.Context, e alerting.Event) error {
		alerts <- e
		return nil
	})
	p := startPipeline(t, runner, 2, 1, WithAlertDispatcher(dispatcher))

	job, _ := p.service.Submit(context.Background(), "abc123", "m")
	jobs := p.wait(t, []string{job.ID})
	if jobs[0].Status != StatusFailed || jobs[0].Attempts != 2 {
		t.Fatalf("expected terminal failure after two attempts: %+v", jobs[0])
	}
	select {
	case e := <-alerts:
		if e.JobID != job.ID || e.Code != xerrors.CodeProviderRetry || e.Attempts != 2 || e.MaxAttempts != 2 {
			t.Fatalf("unexpected alert: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected one alert for the terminal failure")
	}
	select {
	case e := <-alerts:
		t.Fatalf("only terminal failures alert, got a second event: %+v", e)
	default:
	}
}

type dispatcherFunc func(ctx context.Context, e alerting.Event) error

func (f dispatcherFunc) Notify(ctx context.Context, e alerting.Event) error { return f(ctx, e) }

func TestSubmitRejectsInvalidRefs(t *testing.T) {
	service := NewService(NewMemoryStore(), NewMemoryQueue(1), 1)
	for _, ref := range []string{"", "  ", "--all"} {
		if _, err := service.Submit(context.Background(), ref, "m"); xerrors.CodeOf(err) != CodeJobValidation {
			t.Fatalf("ref %q: expected validation error, got %v", ref, err)
		}
	}
}

type gitStub struct {
	mu    sync.Mutex
	calls []string
}

func (g *gitStub) Run(_ context.Context, _ string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	g.mu.Lock()
	g.calls = append(g.calls, key)
	g.mu.Unlock()
	switch key {
	case "show --format= --patch abc123 --":
		return "diff --git a/app.go b/app.go\n+x", nil
	case "show abc123^:app.go":
		return "package app", nil
	}
	return "", fmt.Errorf("unexpected git call %q", key)
}

func TestCommitRunnerReadsParentRevision(t *testing.T) {
	var requests []llm.Request
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (*llm.Response, error) {
		requests = append(requests, req)
		if len(requests) == 1 {
			return &llm.Response{Content: `{"request_file": "a/app.go"}`}, nil
		}
		return &llm.Response{Content: "SAFE"}, nil
	})
	exec, err := retry.NewExecutor(retry.DefaultPolicy(), retry.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	analyzer, err := analysis.New(client, exec, analysis.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}
	stub := &gitStub{}
	runner := NewCommitRunner(git.Open("/repo", git.WithRunner(stub)), analyzer, 0)

	res, err := runner.Run(context.Background(), &Job{ID: "j", Ref: "abc123", Model: "m"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Text != "SAFE" || res.Diagnostics.Rounds != 2 || res.Diagnostics.FileUnavailable {
		t.Fatalf("unexpected result: %+v", res)
	}
	last := requests[1].Messages[len(requests[1].Messages)-1].Content
	if !strings.Contains(last, "package app") {
		t.Fatalf("follow-up should carry the parent revision content: %s", last)
	}
}
