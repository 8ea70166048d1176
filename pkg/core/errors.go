// Package core provides the failure model shared by screenkit packages.
package core

import (
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"
)

// ExecutionError represents a structured failure with a kind and details
type ExecutionError struct {
	Kind    Kind
	Code    string                 // Machine-readable code: element_not_found, text_mismatch, etc.
	Message string                 // Human-readable message
	Details map[string]interface{} // Additional context
	Cause   error                  // Underlying error

	stack pkgerrors.StackTrace
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches predefined errors by code, so errors.Is(err, ErrTextMismatch)
// holds for any copy derived from ErrTextMismatch.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// StackTrace returns the stack captured when the error was derived.
func (e *ExecutionError) StackTrace() pkgerrors.StackTrace {
	return e.stack
}

// Format renders the stack trace with %+v, like pkg/errors values.
func (e *ExecutionError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, e.Message)
			if e.Cause != nil {
				fmt.Fprintf(s, ": %+v", e.Cause)
			}
			e.stack.Format(s, verb)
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithMessagef is WithMessage with formatting.
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	c := e.clone()
	c.Message = fmt.Sprintf(format, args...)
	return c
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	c := e.clone()
	c.Details = merged
	return c
}

// clone copies e and records the stack of the caller of the With* method.
func (e *ExecutionError) clone() *ExecutionError {
	return &ExecutionError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   e.Cause,
		stack:   callers(3),
	}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// CallerStack returns the stack starting at the function that calls it,
// minus skip more frames.
func CallerStack(skip int) pkgerrors.StackTrace {
	return callers(skip + 2)
}

// callers returns the current stack without its first skip frames; frame 0
// is callers itself.
func callers(skip int) pkgerrors.StackTrace {
	var st pkgerrors.StackTrace
	if tracer, ok := pkgerrors.New("").(stackTracer); ok {
		st = tracer.StackTrace()
	}
	if len(st) > skip {
		return st[skip:]
	}
	return st
}

// Predefined errors
var (
	// Assertion errors
	ErrAssertion = &ExecutionError{
		Kind:    KindAssertion,
		Code:    "assertion_failed",
		Message: "assertion failed",
	}
	ErrElementNotFound = &ExecutionError{
		Kind:    KindElementNotFound,
		Code:    "element_not_found",
		Message: "element not found",
	}
	ErrElementNotVisible = &ExecutionError{
		Kind:    KindElementNotVisible,
		Code:    "element_not_visible",
		Message: "element not visible",
	}
	ErrTextMismatch = &ExecutionError{
		Kind:    KindTextMismatch,
		Code:    "text_mismatch",
		Message: "text does not match expected value",
	}
	ErrStateMismatch = &ExecutionError{
		Kind:    KindStateMismatch,
		Code:    "state_mismatch",
		Message: "element state does not match expected value",
	}
	ErrRetryBudgetExceeded = &ExecutionError{
		Kind:    KindRetryBudgetExceeded,
		Code:    "retry_budget_exceeded",
		Message: "retry budget exceeded",
	}

	// State errors
	ErrIllegalState = &ExecutionError{
		Kind:    KindIllegalState,
		Code:    "illegal_state",
		Message: "illegal state",
	}
	ErrEmptyBuilder = &ExecutionError{
		Kind:    KindEmptyBuilder,
		Code:    "empty_builder",
		Message: "locator builder requires at least one matcher",
	}

	// Config errors
	ErrInvalidArgument = &ExecutionError{
		Kind:    KindInvalidArgument,
		Code:    "invalid_argument",
		Message: "invalid argument",
	}

	// Recorder misuse
	ErrProtocol = &ExecutionError{
		Kind:    KindProtocol,
		Code:    "protocol_violation",
		Message: "lifecycle protocol violation",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(kind Kind, code, message string) *ExecutionError {
	return &ExecutionError{
		Kind:    kind,
		Code:    code,
		Message: message,
		stack:   callers(2),
	}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindUnknown when the chain has none. Errors outside this package can take
// part by implementing Kind() Kind.
func KindOf(err error) Kind {
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		switch e := cur.(type) {
		case *ExecutionError:
			return e.Kind
		case interface{ Kind() Kind }:
			return e.Kind()
		}
	}
	return KindUnknown
}

// IsKind reports whether err's kind is, or refines, any of kinds.
func IsKind(err error, kinds ...Kind) bool {
	k := KindOf(err)
	for _, target := range kinds {
		if k.Is(target) {
			return true
		}
	}
	return false
}

// Trace renders err with its stack traces and cause chain. When only a
// wrapped error carries a stack, it follows the outer message as "caused
// by"; a chain without any stack gets the stack of the caller.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	if hasStack(err) {
		return fmt.Sprintf("%+v", err)
	}
	for cur := errors.Unwrap(err); cur != nil; cur = errors.Unwrap(cur) {
		if hasStack(cur) {
			return fmt.Sprintf("%s\ncaused by: %+v", err.Error(), cur)
		}
	}
	return fmt.Sprintf("%+v", pkgerrors.WithStack(err))
}

func hasStack(err error) bool {
	st, ok := err.(stackTracer)
	return ok && len(st.StackTrace()) > 0
}
