// Package safety retries operations that fail because of transient UI timing.
//
// An operation is attempted until it succeeds, fails with a kind that is not
// retryable, or the time budget runs out. Two flavors share one loop: Retry
// runs bare, RetryIdle lets an Idler settle pending UI work between attempts.
package safety

import (
	"context"
	"fmt"
	"io"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/logger"
)

// Defaults for Config.
const (
	DefaultTimeout      = 5000 * time.Millisecond
	DefaultPollInterval = 500 * time.Millisecond
)

// DefaultRetryable returns the failure kinds retried by default.
func DefaultRetryable() []core.Kind {
	return []core.Kind{core.KindAssertion, core.KindIllegalState}
}

// Config controls one retry invocation.
type Config struct {
	// Timeout is the retry budget; it must be positive.
	Timeout time.Duration
	// PollInterval is the minimum spacing between attempts; 0 retries
	// immediately.
	PollInterval time.Duration
	// Retryable lists the failure kinds that are retried. Refinements of a
	// listed kind are retried too.
	Retryable []core.Kind
}

// DefaultConfig returns the process-wide default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		Retryable:    DefaultRetryable(),
	}
}

// WithTimeout returns a copy of c with the given budget.
func (c Config) WithTimeout(d time.Duration) Config {
	c.Timeout = d
	return c
}

// WithPollInterval returns a copy of c with the given attempt spacing.
func (c Config) WithPollInterval(d time.Duration) Config {
	c.PollInterval = d
	return c
}

// WithRetryable returns a copy of c retrying exactly kinds.
func (c Config) WithRetryable(kinds ...core.Kind) Config {
	c.Retryable = append([]core.Kind(nil), kinds...)
	return c
}

// IsRetryable reports whether err is absorbed by the retry loop.
func (c Config) IsRetryable(err error) bool {
	return core.IsKind(err, c.Retryable...)
}

// Idler waits until pending UI work has settled.
type Idler interface {
	WaitForIdle(ctx context.Context) error
}

// IdlerFunc adapts a function to Idler.
type IdlerFunc func(ctx context.Context) error

// WaitForIdle calls f.
func (f IdlerFunc) WaitForIdle(ctx context.Context) error {
	return f(ctx)
}

// BudgetExceededError is returned when no attempt succeeded within the budget.
type BudgetExceededError struct {
	Timeout  time.Duration
	Attempts int
	Cause    error // failure of the last attempt

	stack pkgerrors.StackTrace
}

// Error implements the error interface
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("flaky safety timeout after %dms. Last error: %v", e.Timeout.Milliseconds(), e.Cause)
}

// Unwrap returns the last attempt's failure.
func (e *BudgetExceededError) Unwrap() error {
	return e.Cause
}

// Kind classifies the error for core.KindOf.
func (e *BudgetExceededError) Kind() core.Kind {
	return core.KindRetryBudgetExceeded
}

// StackTrace returns the stack of the retry call that gave up.
func (e *BudgetExceededError) StackTrace() pkgerrors.StackTrace {
	return e.stack
}

// Format renders the message, the retry stack and then the last failure
// with its own trace when printed with %+v.
func (e *BudgetExceededError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, e.Error())
			e.stack.Format(s, verb)
			if e.Cause != nil {
				fmt.Fprintf(s, "\ncaused by: %+v", e.Cause)
			}
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// Retry runs op until it succeeds or the budget in cfg is spent.
func Retry[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	return run(ctx, cfg, nil, op)
}

// RetryIdle is Retry with idler.WaitForIdle called after every retryable
// failure.
func RetryIdle[T any](ctx context.Context, cfg Config, idler Idler, op func() (T, error)) (T, error) {
	if idler == nil {
		var zero T
		return zero, core.ErrInvalidArgument.WithMessage("retry: idler must not be nil")
	}
	return run(ctx, cfg, idler.WaitForIdle, op)
}

// Do is Retry for operations without a result.
func Do(ctx context.Context, cfg Config, op func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// DoIdle is RetryIdle for operations without a result.
func DoIdle(ctx context.Context, cfg Config, idler Idler, op func() error) error {
	_, err := RetryIdle(ctx, cfg, idler, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

func run[T any](ctx context.Context, cfg Config, idle func(context.Context) error, op func() (T, error)) (T, error) {
	var zero T
	if cfg.Timeout <= 0 {
		return zero, core.ErrInvalidArgument.WithMessagef("timeout must be positive, was %dms", cfg.Timeout.Milliseconds())
	}

	start := time.Now()
	budget, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var pacer *rate.Limiter
	if cfg.PollInterval > 0 {
		pacer = rate.NewLimiter(rate.Every(cfg.PollInterval), 1)
		pacer.Allow() // first attempt runs immediately
	}

	var lastErr error
	attempts := 0
	for attempts == 0 || time.Since(start) < cfg.Timeout {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled after %d attempts (last error: %v): %w", attempts, lastErr, err)
		}

		if pacer != nil && attempts > 0 {
			if err := pacer.Wait(budget); err != nil {
				// next slot is past the budget: let the budget run out
				<-budget.Done()
				continue
			}
		}

		attempts++
		v, err := op()
		if err == nil {
			if attempts > 1 {
				logger.Debug("retry succeeded on attempt %d after %s", attempts, time.Since(start))
			}
			return v, nil
		}
		if !cfg.IsRetryable(err) {
			return zero, err
		}

		lastErr = err
		logger.Debug("attempt %d failed (%s): %v", attempts, core.KindOf(err), err)

		if idle != nil {
			if ierr := idle(budget); ierr != nil && budget.Err() == nil {
				logger.Warn("wait for idle failed: %v", ierr)
			}
		}
	}

	return zero, &BudgetExceededError{
		Timeout:  cfg.Timeout,
		Attempts: attempts,
		Cause:    lastErr,
		stack:    core.CallerStack(0),
	}
}
