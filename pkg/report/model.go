// Package report records test results and writes them in Allure format.
//
// Layout of the output directory:
//   - <uuid>-result.json: one file per test, written once at test end
//   - categories.json, environment.properties, executor.json: optional run metadata
package report

import "fmt"

// Status represents the outcome of a test or step.
type Status string

// Status values.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusBroken  Status = "broken"
	StatusSkipped Status = "skipped"
)

// Valid reports whether s is one of the Allure statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusBroken, StatusSkipped:
		return true
	}
	return false
}

// UnmarshalText rejects statuses outside the Allure set.
func (s *Status) UnmarshalText(text []byte) error {
	v := Status(text)
	if !v.Valid() {
		return fmt.Errorf("invalid status %q", string(text))
	}
	*s = v
	return nil
}

// ============================================================================
// RESULT TREE (<uuid>-result.json)
// ============================================================================

// TestResult is the finalized record of one test.
type TestResult struct {
	UUID          string         `json:"uuid"`
	HistoryID     string         `json:"historyId,omitempty"`
	Name          string         `json:"name"`
	FullName      string         `json:"fullName"`
	Status        Status         `json:"status"`
	Start         int64          `json:"start"` // epoch milliseconds
	Stop          int64          `json:"stop"`  // epoch milliseconds
	Labels        []Label        `json:"labels"`
	Steps         []StepResult   `json:"steps"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
}

// StepResult is a sealed step; Steps holds its closed children in stop order.
type StepResult struct {
	Name   string       `json:"name"`
	Status Status       `json:"status"`
	Start  int64        `json:"start"`
	Stop   int64        `json:"stop"`
	Steps  []StepResult `json:"steps"`
}

// Label is a name/value metadata tag. Duplicates are allowed.
type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StatusDetails holds failure message and trace.
type StatusDetails struct {
	Message *string `json:"message"`
	Trace   *string `json:"trace"`
}

// Common label names.
const (
	LabelAllureID = "AS_ID"
	LabelFeature  = "feature"
	LabelEpic     = "epic"
	LabelStory    = "story"
	LabelOwner    = "owner"
	LabelSeverity = "severity"
	LabelTag      = "tag"
)

// LabelValues returns the values of all labels with the given name, in order.
func (r *TestResult) LabelValues(name string) []string {
	var values []string
	for _, l := range r.Labels {
		if l.Name == name {
			values = append(values, l.Value)
		}
	}
	return values
}

// Walk calls fn for every step in depth-first order with its nesting depth
// (top-level steps have depth 0).
func Walk(steps []StepResult, fn func(depth int, step *StepResult)) {
	walk(steps, 0, fn)
}

func walk(steps []StepResult, depth int, fn func(int, *StepResult)) {
	for i := range steps {
		fn(depth, &steps[i])
		walk(steps[i].Steps, depth+1, fn)
	}
}

func cloneSteps(steps []StepResult) []StepResult {
	out := make([]StepResult, len(steps))
	for i, s := range steps {
		s.Steps = cloneSteps(s.Steps)
		out[i] = s
	}
	return out
}

func stringPtr(s string) *string {
	return &s
}
