package core

import (
	"fmt"
	"strings"
)

// Kind classifies a failure. Kinds form a shallow tree: a refinement such as
// KindTextMismatch is also a KindAssertion, so matching against a configured
// set of kinds is inclusive of refinements.
type Kind int

const (
	KindUnknown         Kind = iota // Anything not produced by this module
	KindAssertion                   // Element state did not match expectation
	KindIllegalState                // Operation not valid in the current state
	KindInvalidArgument             // Bad configuration or argument, raised before any attempt
	KindProtocol                    // Recorder misuse: out-of-order lifecycle calls
	KindIO                          // Report read/write failures

	KindElementNotFound     // Locator matched nothing
	KindElementNotVisible   // Element exists but is not displayed
	KindTextMismatch        // Element text differs from the expected value
	KindStateMismatch       // Enabled/displayed flag differs from the expected value
	KindRetryBudgetExceeded // Retry engine ran out of time
	KindEmptyBuilder        // Locator built from zero clauses
)

var kindParents = map[Kind]Kind{
	KindElementNotFound:     KindAssertion,
	KindElementNotVisible:   KindAssertion,
	KindTextMismatch:        KindAssertion,
	KindStateMismatch:       KindAssertion,
	KindRetryBudgetExceeded: KindAssertion,
	KindEmptyBuilder:        KindIllegalState,
}

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindAssertion:           "assertion",
	KindIllegalState:        "illegal_state",
	KindInvalidArgument:     "invalid_argument",
	KindProtocol:            "protocol",
	KindIO:                  "io",
	KindElementNotFound:     "element_not_found",
	KindElementNotVisible:   "element_not_visible",
	KindTextMismatch:        "text_mismatch",
	KindStateMismatch:       "state_mismatch",
	KindRetryBudgetExceeded: "retry_budget_exceeded",
	KindEmptyBuilder:        "empty_builder",
}

// String returns the string representation of Kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Parent returns the kind this kind refines, and false for root kinds.
func (k Kind) Parent() (Kind, bool) {
	p, ok := kindParents[k]
	return p, ok
}

// Is reports whether k equals target or refines it.
func (k Kind) Is(target Kind) bool {
	for cur := k; ; {
		if cur == target {
			return true
		}
		parent, ok := cur.Parent()
		if !ok {
			return false
		}
		cur = parent
	}
}

// MarshalText encodes the kind by name (used by YAML config and logs).
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind returns the kind with the given name. Matching ignores case and
// accepts '-' in place of '_'.
func ParseKind(name string) (Kind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for k, n := range kindNames {
		if n == norm {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown failure kind %q", name)
}

// ParseKinds parses a comma-separated list of kind names.
func ParseKinds(list string) ([]Kind, error) {
	var kinds []Kind
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
