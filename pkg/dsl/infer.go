package dsl

import (
	"fmt"
	"regexp"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// UnknownTest is the name used when no test function is found on the stack.
const UnknownTest = "UnknownTest"

// frames of this package that must never be reported as the test
var ownFrames = map[string]bool{
	"dsl.InferTestName": true,
	"dsl.Run":           true,
	"dsl.Test":          true,
}

var closureSuffix = regexp.MustCompile(`(\.func\d+)+$`)

// InferTestName returns the qualified name of the innermost Test function on
// the calling goroutine's stack, or UnknownTest.
//
// It is a diagnostic convenience: names depend on how the test was compiled
// and launched, so pass an explicit name when the result must be stable.
func InferTestName() string {
	st, ok := pkgerrors.New("").(interface{ StackTrace() pkgerrors.StackTrace })
	if !ok {
		return UnknownTest
	}

	// %+v renders "function\n\tfile:line" per frame
	trace := fmt.Sprintf("%+v", st.StackTrace())
	for _, line := range strings.Split(trace, "\n") {
		if line == "" || strings.HasPrefix(line, "\t") {
			continue
		}
		fn := closureSuffix.ReplaceAllString(strings.TrimSpace(line), "")
		short := fn[strings.LastIndex(fn, "/")+1:]
		if ownFrames[short] || !strings.Contains(short, ".Test") {
			continue
		}
		return fn
	}
	return UnknownTest
}
