// Package dsl runs recorded UI tests.
//
// Run starts a result, hands the body a Scope for steps, labels and page
// objects, and writes the result exactly once when the body ends, however it
// ends:
//
//	dsl.Test(t, dsl.Options{Provider: p}, func(s *dsl.Scope) error {
//		return s.Step("open home", func(s *dsl.Scope) error {
//			return dsl.With(s, HomeScreen, func(h *Home) error {
//				return h.Title.AssertIsDisplayed(s.Context())
//			})
//		})
//	})
package dsl

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/logger"
	"github.com/devicelab-dev/screenkit/pkg/provider"
	"github.com/devicelab-dev/screenkit/pkg/report"
	"github.com/devicelab-dev/screenkit/pkg/safety"
)

// Options configures a test run.
type Options struct {
	// Name is the test name. When empty it is inferred from the call stack.
	Name string
	// FullName is the qualified name; defaults to Name.
	FullName string
	// Provider is the UI backend. Required.
	Provider provider.Provider
	// Retry is handed to page objects. Zero Timeout means safety.DefaultConfig.
	Retry safety.Config
	// Writer persists the result. Nil writes to report.DefaultOutputDir.
	Writer *report.Writer
	// Console receives step markers. Nil means os.Stdout.
	Console io.Writer
	// OnFailure runs when a step fails. Nil means DumpTree.
	OnFailure FailureObserver
	// Labels are added before the body runs.
	Labels []report.Label
}

func (o Options) withDefaults() Options {
	if o.Retry.Timeout == 0 {
		o.Retry = safety.DefaultConfig()
	}
	if o.Writer == nil {
		o.Writer = report.NewWriter("")
	}
	if o.Console == nil {
		o.Console = os.Stdout
	}
	if o.OnFailure == nil {
		o.OnFailure = DumpTree
	}
	return o
}

// Run records body as one test and writes its result.
//
// The returned error is the body's error, joined with any failure to finish
// or write the result. A panic in body is recorded as a failure and re-raised
// after the result is written.
func Run(ctx context.Context, opts Options, body func(s *Scope) error) (result *report.TestResult, err error) {
	if opts.Provider == nil {
		return nil, core.ErrInvalidArgument.WithMessage("dsl: Options.Provider is required")
	}
	opts = opts.withDefaults()

	name := opts.Name
	if name == "" {
		name = InferTestName()
	}

	lc := report.NewLifecycle()
	if err := lc.StartTest(name); err != nil {
		return nil, err
	}
	if opts.FullName != "" {
		if err := lc.SetFullName(opts.FullName); err != nil {
			return nil, err
		}
	}
	for _, l := range opts.Labels {
		if err := lc.AddLabel(l.Name, l.Value); err != nil {
			return nil, err
		}
	}
	logger.Info("test started: %s", name)

	scope := &Scope{
		ctx:       ctx,
		lifecycle: lc,
		provider:  opts.Provider,
		retry:     opts.Retry,
		console:   opts.Console,
		onFailure: opts.OnFailure,
	}

	var bodyErr error
	completed := false
	defer func() {
		var r any
		failure := bodyErr
		if !completed {
			r = recover()
			failure = abortError(r)
			err = failure
		}
		result, err = finish(lc, opts.Writer, failure, err)
		if r != nil {
			panic(r)
		}
	}()

	bodyErr = body(scope)
	err = bodyErr
	completed = true
	return nil, err
}

// finish closes the lifecycle, writes the result and joins any bookkeeping
// failure onto err.
func finish(lc *report.Lifecycle, w *report.Writer, failure, err error) (*report.TestResult, error) {
	status := report.StatusPassed
	if failure != nil {
		status = report.StatusFailed
	}
	if ferr := lc.FinishTest(status, failure); ferr != nil {
		err = errors.Join(err, ferr)
	}

	result, berr := lc.BuildResult()
	if berr != nil {
		return nil, errors.Join(err, berr)
	}
	if _, werr := w.Write(result); werr != nil {
		logger.Error("write result for %s: %v", result.Name, werr)
		err = errors.Join(err, werr)
	}
	logger.Info("test finished: %s (%s)", result.Name, result.Status)
	return result, err
}

// Test runs body as a Go test. The result is named after t unless
// opts.Name is set, and t fails when Run returns an error.
func Test(t testing.TB, opts Options, body func(s *Scope) error) *report.TestResult {
	t.Helper()
	if opts.Name == "" {
		opts.Name = t.Name()
	}
	result, err := Run(t.Context(), opts, body)
	if err != nil {
		t.Fatalf("%s: %v", opts.Name, err)
	}
	return result
}
