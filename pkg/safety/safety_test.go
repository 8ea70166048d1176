package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/screenkit/pkg/core"
)

func fastConfig(timeout time.Duration) Config {
	return DefaultConfig().WithTimeout(timeout).WithPollInterval(5 * time.Millisecond)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.PollInterval)
	}
	if !cfg.IsRetryable(core.ErrAssertion) || !cfg.IsRetryable(core.ErrIllegalState) {
		t.Error("assertion and illegal state should be retryable by default")
	}
	if cfg.IsRetryable(core.ErrInvalidArgument) || cfg.IsRetryable(errors.New("plain")) {
		t.Error("invalid argument and unclassified errors should not be retryable")
	}
}

func TestRetry_NonPositiveTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		calls := 0
		_, err := Retry(context.Background(), DefaultConfig().WithTimeout(timeout), func() (int, error) {
			calls++
			return 1, nil
		})
		if !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("timeout %v: error = %v, want ErrInvalidArgument", timeout, err)
		}
		if calls != 0 {
			t.Errorf("timeout %v: op called %d times, want 0", timeout, calls)
		}
	}
}

func TestRetry_FirstSuccess(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastConfig(time.Second), func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if v != "ok" || calls != 1 {
		t.Errorf("Retry() = %q after %d calls, want ok after 1", v, calls)
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastConfig(2*time.Second), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, core.ErrElementNotFound.WithMessagef("attempt %d", calls)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if v != 42 || calls != 3 {
		t.Errorf("Retry() = %d after %d calls, want 42 after 3", v, calls)
	}
}

func TestRetry_BudgetExceeded(t *testing.T) {
	const timeout = 120 * time.Millisecond
	calls := 0
	start := time.Now()
	err := Do(context.Background(), fastConfig(timeout), func() error {
		calls++
		return core.ErrAssertion.WithMessagef("still wrong %d", calls)
	})
	elapsed := time.Since(start)

	var budget *BudgetExceededError
	if !errors.As(err, &budget) {
		t.Fatalf("error = %v, want *BudgetExceededError", err)
	}
	if elapsed < timeout {
		t.Errorf("gave up after %v, want at least %v", elapsed, timeout)
	}
	if budget.Attempts != calls || calls < 2 {
		t.Errorf("Attempts = %d, calls = %d, want equal and >= 2", budget.Attempts, calls)
	}
	if want := fmt.Sprintf("still wrong %d", calls); budget.Cause == nil || budget.Cause.Error() != want {
		t.Errorf("Cause = %v, want %q", budget.Cause, want)
	}
	if !errors.Is(err, core.ErrAssertion) {
		t.Error("budget error should unwrap to the last failure")
	}
	if want := "flaky safety timeout after 120ms. Last error: still wrong"; !strings.HasPrefix(err.Error(), want) {
		t.Errorf("Error() = %q, want prefix %q", err.Error(), want)
	}
	if core.KindOf(err) != core.KindRetryBudgetExceeded {
		t.Errorf("KindOf = %v, want retry_budget_exceeded", core.KindOf(err))
	}
	if !core.IsKind(err, core.KindAssertion) {
		t.Error("budget exceeded should be an assertion failure")
	}
}

func TestRetry_NonRetryablePropagatesImmediately(t *testing.T) {
	sentinel := errors.New("network down")
	calls := 0
	err := Do(context.Background(), fastConfig(time.Second), func() error {
		calls++
		return sentinel
	})
	if err != sentinel {
		t.Errorf("error = %v, want the original error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_RefinementsAreRetryable(t *testing.T) {
	cfg := fastConfig(time.Second).WithRetryable(core.KindAssertion)
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return core.ErrTextMismatch
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("Do() = %v after %d calls, want nil after 2", err, calls)
	}

	cfg = cfg.WithRetryable(core.KindTextMismatch)
	calls = 0
	err = Do(context.Background(), cfg, func() error {
		calls++
		return core.ErrStateMismatch
	})
	if !errors.Is(err, core.ErrStateMismatch) || calls != 1 {
		t.Errorf("sibling kind: Do() = %v after %d calls, want immediate ErrStateMismatch", err, calls)
	}
}

func TestRetry_EmptyRetryableSet(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(time.Second).WithRetryable(), func() error {
		calls++
		return core.ErrAssertion
	})
	if !errors.Is(err, core.ErrAssertion) || calls != 1 {
		t.Errorf("Do() = %v after %d calls, want ErrAssertion after 1", err, calls)
	}
}

func TestRetryIdle_HookCalledPerFailure(t *testing.T) {
	calls, idles := 0, 0
	idler := IdlerFunc(func(ctx context.Context) error {
		idles++
		return errors.New("idle hook broke")
	})
	v, err := RetryIdle(context.Background(), fastConfig(2*time.Second), idler, func() (int, error) {
		calls++
		if calls <= 2 {
			return 0, core.ErrIllegalState
		}
		return calls, nil
	})
	if err != nil {
		t.Fatalf("RetryIdle() error = %v", err)
	}
	if v != 3 {
		t.Errorf("RetryIdle() = %d, want 3", v)
	}
	if idles != 2 {
		t.Errorf("idle hook called %d times, want 2", idles)
	}
}

func TestRetryIdle_NoHookOnSuccessOrFatal(t *testing.T) {
	idles := 0
	idler := IdlerFunc(func(ctx context.Context) error {
		idles++
		return nil
	})
	_ = DoIdle(context.Background(), fastConfig(time.Second), idler, func() error { return nil })
	_ = DoIdle(context.Background(), fastConfig(time.Second), idler, func() error { return errors.New("fatal") })
	if idles != 0 {
		t.Errorf("idle hook called %d times, want 0", idles)
	}
}

func TestRetryIdle_NilIdler(t *testing.T) {
	err := DoIdle(context.Background(), DefaultConfig(), nil, func() error { return nil })
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestRetry_PollIntervalSpacing(t *testing.T) {
	cfg := DefaultConfig().WithTimeout(200 * time.Millisecond).WithPollInterval(50 * time.Millisecond)
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return core.ErrAssertion
	})
	var budget *BudgetExceededError
	if !errors.As(err, &budget) {
		t.Fatalf("error = %v, want *BudgetExceededError", err)
	}
	// attempts at ~0, 50, 100, 150ms; allow one extra for timer slack
	if calls < 2 || calls > 5 {
		t.Errorf("calls = %d, want between 2 and 5", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastConfig(5*time.Second), func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return core.ErrAssertion
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_ZeroPollIntervalBusyLoops(t *testing.T) {
	cfg := DefaultConfig().WithTimeout(30 * time.Millisecond).WithPollInterval(0)
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return core.ErrAssertion
	})
	if err == nil {
		t.Fatal("expected budget exceeded")
	}
	if calls < 10 {
		t.Errorf("calls = %d, want many attempts without pacing", calls)
	}
}

func TestBudgetExceededError_Trace(t *testing.T) {
	err := Do(context.Background(), fastConfig(30*time.Millisecond), func() error {
		return core.ErrTextMismatch.WithMessage("nope")
	})

	var budget *BudgetExceededError
	if !errors.As(err, &budget) {
		t.Fatalf("error = %v, want *BudgetExceededError", err)
	}
	if len(budget.StackTrace()) == 0 {
		t.Fatal("StackTrace() is empty")
	}
	if got := fmt.Sprintf("%v", err); got != err.Error() {
		t.Errorf("%%v = %q, want %q", got, err.Error())
	}

	trace := core.Trace(err)
	if trace == err.Error() {
		t.Fatalf("Trace() = message only: %q", trace)
	}
	if !strings.HasPrefix(trace, err.Error()+"\n") {
		t.Errorf("Trace() should start with the message, got:\n%s", trace)
	}
	if !strings.Contains(trace, "TestBudgetExceededError_Trace") {
		t.Errorf("Trace() should contain the retry caller's frame, got:\n%s", trace)
	}
	if !strings.Contains(trace, "\ncaused by: nope") {
		t.Errorf("Trace() should contain the last failure, got:\n%s", trace)
	}
	// one stack for the retry call, one for the failure it gave up on
	if n := strings.Count(trace, "safety_test.go"); n < 2 {
		t.Errorf("Trace() has %d test frames, want both stacks:\n%s", n, trace)
	}
}
