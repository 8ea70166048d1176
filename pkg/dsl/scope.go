package dsl

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	pkgerrors "github.com/pkg/errors"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/logger"
	"github.com/devicelab-dev/screenkit/pkg/provider"
	"github.com/devicelab-dev/screenkit/pkg/report"
	"github.com/devicelab-dev/screenkit/pkg/safety"
	"github.com/devicelab-dev/screenkit/pkg/screen"
)

var (
	stepStartColor = color.New(color.FgCyan)
	stepFailColor  = color.New(color.FgRed, color.Bold)
)

// FailureObserver is notified when a step fails. Its error and any panic are
// logged and discarded; the step's failure is returned regardless.
type FailureObserver func(s *Scope, title string, err error) error

// DumpTree logs the provider's element tree and echoes it to the console.
func DumpTree(s *Scope, title string, _ error) error {
	tree, err := s.provider.Dump()
	if err != nil {
		return fmt.Errorf("dump element tree: %w", err)
	}
	logger.Info("element tree after step %q failed:\n%s", title, tree)
	fmt.Fprintf(s.console, "ELEMENT TREE:\n%s", tree)
	return nil
}

// Scope is handed to a test body. It records steps and labels and binds page
// objects to the test's provider. A Scope belongs to the goroutine running
// the test.
type Scope struct {
	ctx       context.Context
	lifecycle *report.Lifecycle
	provider  provider.Provider
	retry     safety.Config
	console   io.Writer
	onFailure FailureObserver
}

// Context returns the test's context.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Provider returns the provider the test interacts with.
func (s *Scope) Provider() provider.Provider {
	return s.provider
}

// Retry returns the retry configuration given to page objects.
func (s *Scope) Retry() safety.Config {
	return s.retry
}

// SetContent mounts the UI under test.
func (s *Scope) SetContent(content any) error {
	return s.provider.SetContent(content)
}

// Label adds a result label.
func (s *Scope) Label(name, value string) error {
	return s.lifecycle.AddLabel(name, value)
}

// AllureID links the result to a test case id (label AS_ID).
func (s *Scope) AllureID(id string) error { return s.Label(report.LabelAllureID, id) }

// Feature adds a feature label.
func (s *Scope) Feature(name string) error { return s.Label(report.LabelFeature, name) }

// Epic adds an epic label.
func (s *Scope) Epic(name string) error { return s.Label(report.LabelEpic, name) }

// Story adds a story label.
func (s *Scope) Story(name string) error { return s.Label(report.LabelStory, name) }

// Owner adds an owner label.
func (s *Scope) Owner(name string) error { return s.Label(report.LabelOwner, name) }

// Severity adds a severity label (blocker, critical, normal, minor, trivial).
func (s *Scope) Severity(level string) error { return s.Label(report.LabelSeverity, level) }

// Tag adds a tag label.
func (s *Scope) Tag(tag string) error { return s.Label(report.LabelTag, tag) }

// Step runs body as a named step nested under the current one.
func (s *Scope) Step(title string, body func(s *Scope) error) error {
	_, err := StepValue(s, title, func(s *Scope) (struct{}, error) {
		return struct{}{}, body(s)
	})
	return err
}

// StepValue is Step for bodies that produce a value.
//
// A failing body marks the step failed, prints a marker and notifies the
// failure observer before its error is returned unchanged. A panic is
// handled the same way and then re-raised.
func StepValue[R any](s *Scope, title string, body func(s *Scope) (R, error)) (result R, err error) {
	if err := s.lifecycle.StartStep(title); err != nil {
		return result, err
	}
	stepStartColor.Fprintf(s.console, "STEP ▶ %s\n", title)

	completed := false
	defer func() {
		if completed {
			return
		}
		r := recover()
		failure := abortError(r)
		s.stepFailed(title, failure)
		if stopErr := s.lifecycle.StopStep(report.StatusFailed, failure); stopErr != nil {
			logger.Error("stop step %q: %v", title, stopErr)
		}
		if r != nil {
			panic(r)
		}
	}()

	result, err = body(s)
	completed = true

	if err != nil {
		s.stepFailed(title, err)
		if stopErr := s.lifecycle.StopStep(report.StatusFailed, err); stopErr != nil {
			logger.Error("stop step %q: %v", title, stopErr)
		}
		return result, err
	}
	if stopErr := s.lifecycle.StopStep(report.StatusPassed, nil); stopErr != nil {
		return result, stopErr
	}
	return result, nil
}

func (s *Scope) stepFailed(title string, err error) {
	stepFailColor.Fprintf(s.console, "STEP ✗ %s\n", title)
	fmt.Fprintf(s.console, "ERROR: %s: %v\n", core.KindOf(err), err)
	logger.Warn("step %q failed: %v", title, err)

	if s.onFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("failure observer panicked: %v", r)
		}
	}()
	if oerr := s.onFailure(s, title, err); oerr != nil {
		logger.Warn("failure observer: %v", oerr)
	}
}

// With creates the page object from factory, bound to the scope's provider
// and retry configuration, and runs block against it.
func With[T any](s *Scope, factory screen.Factory[T], block func(page T) error) error {
	page, err := factory.Create(s.provider, screen.WithRetry(s.retry))
	if err != nil {
		return err
	}
	return block(page)
}

// abortError describes a body that did not return normally: r is the
// recovered panic value, or nil when the goroutine exited (t.FailNow).
func abortError(r any) error {
	switch v := r.(type) {
	case nil:
		return pkgerrors.New("test body exited without returning")
	case error:
		return pkgerrors.Wrap(v, "panic")
	default:
		return pkgerrors.Errorf("panic: %v", v)
	}
}
