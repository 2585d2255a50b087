package retry

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"
	"time"

	xerrors "ai-git/internal/errors"
	"ai-git/pkg/logger"
)

type statusError struct{ status int }

func (e statusError) Error() string { return fmt.Sprintf("status %d", e.status) }

var statusClassifier = ClassifierFunc(func(err error, p Policy) Outcome {
	var se statusError
	if stdErrors.As(err, &se) && p.RetryableStatus(se.status) {
		return Outcome{Kind: Retryable, Status: se.status, Cause: err}
	}
	if stdErrors.As(err, &se) {
		return Outcome{Kind: Fatal, Status: se.status, Cause: err}
	}
	return Outcome{Kind: Fatal, Cause: err}
})

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestExecutor(t *testing.T, policy Policy, rec *sleepRecorder) *Executor {
	t.Helper()
	exec, err := NewExecutor(policy,
		WithClassifier(statusClassifier),
		WithSleep(rec.sleep),
		WithLogger(logger.Discard()),
	)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return exec
}

func TestScheduleIsLinearAndEndsAtMaxWait(t *testing.T) {
	cases := []struct {
		policy Policy
		want   []time.Duration
	}{
		{
			policy: Policy{MaxRetries: 5, MinWait: 2 * time.Second, MaxWait: 10 * time.Second},
			want:   []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second, 8 * time.Second, 10 * time.Second},
		},
		{
			policy: Policy{MaxRetries: 3, MinWait: time.Second, MaxWait: 2 * time.Second},
			want:   []time.Duration{time.Second, 1500 * time.Millisecond, 2 * time.Second},
		},
		{
			policy: Policy{MaxRetries: 4, MinWait: 2 * time.Second, MaxWait: 10 * time.Second},
			want:   []time.Duration{2 * time.Second, 4666666666 * time.Nanosecond, 7333333333 * time.Nanosecond, 10 * time.Second},
		},
		{
			policy: Policy{MaxRetries: 7, MinWait: 2 * time.Second, MaxWait: 10 * time.Second},
			want: []time.Duration{2 * time.Second, 3333333333 * time.Nanosecond, 4666666666 * time.Nanosecond,
				6 * time.Second, 7333333333 * time.Nanosecond, 8666666666 * time.Nanosecond, 10 * time.Second},
		},
		{
			policy: Policy{MaxRetries: 1, MinWait: 3 * time.Second, MaxWait: 9 * time.Second},
			want:   []time.Duration{3 * time.Second},
		},
		{
			policy: Policy{MaxRetries: 0, MinWait: time.Second, MaxWait: time.Second},
			want:   nil,
		},
	}

	for _, tc := range cases {
		got := tc.policy.Schedule()
		if len(got) != len(tc.want) {
			t.Fatalf("policy %+v: expected %d waits, got %v", tc.policy, len(tc.want), got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("policy %+v: wait[%d] = %s, want %s", tc.policy, i, got[i], tc.want[i])
			}
			if i > 0 && got[i] < got[i-1] {
				t.Fatalf("schedule must be non-decreasing: %v", got)
			}
		}
		if tc.policy.MaxRetries > 1 && got[len(got)-1] != tc.policy.MaxWait {
			t.Fatalf("policy %+v: last wait %s != max wait %s", tc.policy, got[len(got)-1], tc.policy.MaxWait)
		}
	}
}

func TestWaitClampsToMaxWait(t *testing.T) {
	p := Policy{MaxRetries: 5, MinWait: 2 * time.Second, MaxWait: 10 * time.Second}
	if got := p.Wait(12); got != 10*time.Second {
		t.Fatalf("expected clamp to max wait, got %s", got)
	}
}

func TestValidateRejectsBadPolicies(t *testing.T) {
	bad := []Policy{
		{MaxRetries: -1},
		{MaxRetries: 1, MinWait: 5 * time.Second, MaxWait: time.Second},
		{MaxRetries: 1, MinWait: -time.Second, MaxWait: time.Second},
	}
	for _, p := range bad {
		if _, err := NewExecutor(p); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
			t.Fatalf("policy %+v: expected INVALID_ARGUMENT, got %v", p, err)
		}
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy should be valid: %v", err)
	}
}

func TestSuccessOnFirstAttempt(t *testing.T) {
	rec := &sleepRecorder{}
	exec := newTestExecutor(t, DefaultPolicy(), rec)

	res, err := Execute(context.Background(), exec, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Value != "ok" || res.Stats.Attempts != 1 || res.Stats.TotalWait != 0 || len(rec.waits) != 0 {
		t.Fatalf("unexpected result: %+v waits=%v", res, rec.waits)
	}
}

func TestZeroRetriesMakesSingleAttempt(t *testing.T) {
	rec := &sleepRecorder{}
	exec := newTestExecutor(t, Policy{MaxRetries: 0, MinWait: time.Second, MaxWait: time.Second, RetryableStatusCodes: []int{503}}, rec)

	calls := 0
	res, err := Execute(context.Background(), exec, func(context.Context) (int, error) {
		calls++
		return 0, statusError{503}
	})
	if calls != 1 || len(rec.waits) != 0 {
		t.Fatalf("expected a single attempt without waiting, calls=%d waits=%v", calls, rec.waits)
	}
	if xerrors.CodeOf(err) != xerrors.CodeRetriesExhausted {
		t.Fatalf("expected RETRIES_EXHAUSTED, got %v", err)
	}
	if res.Stats.Attempts != 1 || res.Stats.Retries != 0 {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}
}

func TestRateLimitedExhaustsBudget(t *testing.T) {
	rec := &sleepRecorder{}
	exec := newTestExecutor(t, DefaultPolicy(), rec)

	calls := 0
	res, err := Execute(context.Background(), exec, func(context.Context) (string, error) {
		calls++
		return "", statusError{429}
	})
	if calls != 6 {
		t.Fatalf("expected 6 attempts, got %d", calls)
	}
	var exhausted *ExhaustedError
	if !stdErrors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 6 || exhausted.TotalWait != 30*time.Second {
		t.Fatalf("unexpected exhaustion details: %+v", exhausted)
	}
	var se statusError
	if !stdErrors.As(err, &se) || se.status != 429 {
		t.Fatalf("last failure should be reachable: %v", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second, 8 * time.Second, 10 * time.Second}
	for i := range want {
		if rec.waits[i] != want[i] {
			t.Fatalf("wait[%d] = %s, want %s", i, rec.waits[i], want[i])
		}
	}
	if res.Stats.Retries != 5 || res.Stats.TotalWait != 30*time.Second {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}
}

func TestUnauthorizedIsFatalAfterOneAttempt(t *testing.T) {
	rec := &sleepRecorder{}
	exec := newTestExecutor(t, DefaultPolicy(), rec)

	calls := 0
	_, err := Execute(context.Background(), exec, func(context.Context) (string, error) {
		calls++
		return "", statusError{401}
	})
	if calls != 1 || len(rec.waits) != 0 {
		t.Fatalf("expected one attempt and no waits, calls=%d waits=%v", calls, rec.waits)
	}
	var fatal *FatalError
	if !stdErrors.As(err, &fatal) || fatal.Status != 401 {
		t.Fatalf("expected FatalError with status 401, got %v", err)
	}
	var exhausted *ExhaustedError
	if stdErrors.As(err, &exhausted) {
		t.Fatalf("fatal failures must not look like exhaustion")
	}
	if xerrors.CodeOf(err) != xerrors.CodeProviderFatal {
		t.Fatalf("expected PROVIDER_FATAL, got %s", xerrors.CodeOf(err))
	}
}

func TestRecoversAfterTransientFailures(t *testing.T) {
	rec := &sleepRecorder{}
	exec := newTestExecutor(t, DefaultPolicy(), rec)

	calls := 0
	res, err := Execute(context.Background(), exec, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", statusError{503}
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Value != "done" || res.Stats.Attempts != 3 || res.Stats.Retries != 2 || res.Stats.TotalWait != 6*time.Second {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCancellationAtWaitBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec, err := NewExecutor(DefaultPolicy(),
		WithClassifier(statusClassifier),
		WithLogger(logger.Discard()),
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	calls := 0
	res, err := Execute(ctx, exec, func(context.Context) (string, error) {
		calls++
		return "", statusError{504}
	})
	if calls != 1 {
		t.Fatalf("expected no further attempts after cancellation, got %d", calls)
	}
	if xerrors.CodeOf(err) != xerrors.CodeCancelled || !stdErrors.Is(err, context.Canceled) {
		t.Fatalf("expected CANCELLED wrapping context.Canceled, got %v", err)
	}
	if res.Stats.Attempts != 1 {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}
}

func TestCodeClassifierUsesRegistry(t *testing.T) {
	if got := CodeClassifier.Classify(xerrors.New(xerrors.CodeProviderRetry, ""), DefaultPolicy()); got.Kind != Retryable {
		t.Fatalf("expected retryable, got %s", got.Kind)
	}
	if got := CodeClassifier.Classify(stdErrors.New("plain"), DefaultPolicy()); got.Kind != Fatal {
		t.Fatalf("expected fatal, got %s", got.Kind)
	}
}
