package report

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/logger"
)

// State is the lifecycle state of a recorded test.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateFinished
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// stepFrame is an open step; children are appended as nested steps stop.
type stepFrame struct {
	name     string
	start    int64
	children []StepResult
}

// Lifecycle tracks one test's status, labels and open steps and produces the
// result tree once the test is finished.
//
// A Lifecycle belongs to a single test goroutine; it is not safe for
// concurrent use.
type Lifecycle struct {
	state    State
	name     string
	fullName string
	start    int64
	stop     int64
	status   Status
	details  *StatusDetails
	labels   []Label
	steps    []StepResult
	stack    []*stepFrame

	now func() time.Time
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithClock replaces the wall clock used for start/stop stamps.
func WithClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) {
		l.now = now
	}
}

// NewLifecycle creates a Lifecycle in the NotStarted state.
func NewLifecycle(opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		status: StatusPassed,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	return l.state
}

// Depth returns the number of open steps.
func (l *Lifecycle) Depth() int {
	return len(l.stack)
}

// StartTest begins recording a test. Labels, steps and status details from a
// previous run of this Lifecycle are discarded.
func (l *Lifecycle) StartTest(name string) error {
	if l.state == StateRunning {
		return protocolError("startTest(%q): test %q is already running", name, l.name)
	}
	l.state = StateRunning
	l.name = name
	l.fullName = name
	l.start = l.millis()
	l.stop = 0
	l.status = StatusPassed
	l.details = nil
	l.labels = nil
	l.steps = nil
	l.stack = nil
	logger.Debug("test started: %s", name)
	return nil
}

// SetFullName overrides the qualified name; it defaults to the test name.
func (l *Lifecycle) SetFullName(fullName string) error {
	if l.state != StateRunning {
		return protocolError("setFullName(%q) in state %s", fullName, l.state)
	}
	l.fullName = fullName
	return nil
}

// AddLabel appends a label. Duplicates are kept.
func (l *Lifecycle) AddLabel(name, value string) error {
	if l.state != StateRunning {
		return protocolError("addLabel(%q) in state %s", name, l.state)
	}
	l.labels = append(l.labels, Label{Name: name, Value: value})
	return nil
}

// StartStep opens a step nested under the innermost open step, if any.
func (l *Lifecycle) StartStep(name string) error {
	if l.state != StateRunning {
		return protocolError("startStep(%q) in state %s", name, l.state)
	}
	l.stack = append(l.stack, &stepFrame{name: name, start: l.millis()})
	return nil
}

// StopStep closes the innermost open step with the given status. The error,
// if any, is informational: the recorded status is always status.
func (l *Lifecycle) StopStep(status Status, err error) error {
	if l.state != StateRunning {
		return protocolError("stopStep in state %s", l.state)
	}
	if len(l.stack) == 0 {
		return protocolError("stopStep with no open step")
	}
	top := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]

	result := StepResult{
		Name:   top.name,
		Status: status,
		Start:  top.start,
		Stop:   l.millis(),
		Steps:  top.children,
	}
	if result.Steps == nil {
		result.Steps = []StepResult{}
	}
	if err != nil {
		logger.Debug("step %q stopped as %s: %v", top.name, status, err)
	}

	l.attach(result)
	return nil
}

func (l *Lifecycle) attach(result StepResult) {
	if len(l.stack) > 0 {
		parent := l.stack[len(l.stack)-1]
		parent.children = append(parent.children, result)
		return
	}
	l.steps = append(l.steps, result)
}

// FinishTest stamps the stop time and final status. A non-nil err becomes
// the status details (message and full trace).
//
// Steps still open at this point are closed as broken so the tree stays
// well formed, and a protocol error naming them is returned; the test is
// finished either way.
func (l *Lifecycle) FinishTest(status Status, err error) error {
	if l.state != StateRunning {
		return protocolError("finishTest in state %s", l.state)
	}

	var open []string
	for len(l.stack) > 0 {
		open = append(open, l.stack[len(l.stack)-1].name)
		_ = l.StopStep(StatusBroken, nil)
	}

	l.status = status
	l.stop = l.millis()
	if err != nil {
		l.details = &StatusDetails{
			Message: stringPtr(err.Error()),
			Trace:   stringPtr(core.Trace(err)),
		}
	}
	l.state = StateFinished
	logger.Debug("test finished: %s (%s)", l.name, status)

	if len(open) > 0 {
		return protocolError("finishTest with open steps: %s", strings.Join(open, ", "))
	}
	return nil
}

// BuildResult returns a snapshot of the finished test. Every call generates
// a fresh UUID.
func (l *Lifecycle) BuildResult() (*TestResult, error) {
	if l.state != StateFinished {
		return nil, protocolError("buildResult in state %s", l.state)
	}

	labels := make([]Label, len(l.labels))
	copy(labels, l.labels)

	var details *StatusDetails
	if l.details != nil {
		d := *l.details
		details = &d
	}

	return &TestResult{
		UUID:          uuid.NewString(),
		HistoryID:     fnv32aHash(l.fullName),
		Name:          l.name,
		FullName:      l.fullName,
		Status:        l.status,
		Start:         l.start,
		Stop:          l.stop,
		Labels:        labels,
		Steps:         cloneSteps(l.steps),
		StatusDetails: details,
	}, nil
}

func (l *Lifecycle) millis() int64 {
	return l.now().UnixMilli()
}

func protocolError(format string, args ...interface{}) error {
	return core.ErrProtocol.WithMessage(fmt.Sprintf(format, args...))
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
