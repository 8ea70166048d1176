// Package locator builds element locators from matcher clauses.
//
// A Builder collects clauses; Build combines them with logical AND into an
// immutable Locator. Providers evaluate a Locator against each element they
// know about.
package locator

import (
	"strconv"
	"strings"

	"github.com/devicelab-dev/screenkit/pkg/core"
)

// Element is the read-only view of an element that clauses match against.
type Element interface {
	Tag() string
	Text() string
	Description() string
}

// TextOption adjusts how a text clause compares values.
type TextOption func(*textMatch)

// Substring matches when the expected value is contained in the actual one.
func Substring() TextOption {
	return func(m *textMatch) { m.substring = true }
}

// Exact requires the whole value to match. It undoes an earlier Substring.
func Exact() TextOption {
	return func(m *textMatch) { m.substring = false }
}

// IgnoreCase compares values case-insensitively.
func IgnoreCase() TextOption {
	return func(m *textMatch) { m.ignoreCase = true }
}

type textMatch struct {
	value      string
	substring  bool
	ignoreCase bool
}

func newTextMatch(value string, opts []TextOption) textMatch {
	m := textMatch{value: value}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m textMatch) match(actual string) bool {
	expected := m.value
	if m.ignoreCase {
		expected = strings.ToLower(expected)
		actual = strings.ToLower(actual)
	}
	if m.substring {
		return strings.Contains(actual, expected)
	}
	return actual == expected
}

// describe renders the clause as field="value", using ~= for substring
// matches and a trailing (i) when case is ignored.
func (m textMatch) describe(field string) string {
	op := "="
	if m.substring {
		op = "~="
	}
	s := field + op + strconv.Quote(m.value)
	if m.ignoreCase {
		s += "(i)"
	}
	return s
}

// MatchText reports whether actual satisfies expected under opts. Without
// options it is an exact comparison.
func MatchText(expected, actual string, opts ...TextOption) bool {
	return newTextMatch(expected, opts).match(actual)
}

type clause struct {
	desc  string
	match func(Element) bool
}

// Builder accumulates matcher clauses. The zero value is ready to use.
type Builder struct {
	clauses []clause
	err     error // first invalid clause, reported by Build
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// HasTag matches elements whose test tag equals tag.
func (b *Builder) HasTag(tag string) *Builder {
	b.clauses = append(b.clauses, clause{
		desc:  "tag=" + strconv.Quote(tag),
		match: func(e Element) bool { return e.Tag() == tag },
	})
	return b
}

// HasText matches elements by their text.
func (b *Builder) HasText(text string, opts ...TextOption) *Builder {
	m := newTextMatch(text, opts)
	b.clauses = append(b.clauses, clause{
		desc:  m.describe("text"),
		match: func(e Element) bool { return m.match(e.Text()) },
	})
	return b
}

// HasDescription matches elements by their accessibility description.
func (b *Builder) HasDescription(value string, opts ...TextOption) *Builder {
	m := newTextMatch(value, opts)
	b.clauses = append(b.clauses, clause{
		desc:  m.describe("description"),
		match: func(e Element) bool { return m.match(e.Description()) },
	})
	return b
}

// Matches adds a custom clause; name is used when describing the locator.
func (b *Builder) Matches(name string, fn func(Element) bool) *Builder {
	if name == "" {
		name = "custom"
	}
	if fn == nil {
		if b.err == nil {
			b.err = core.ErrIllegalState.WithMessagef("locator clause matches(%s) has a nil predicate", name)
		}
		return b
	}
	b.clauses = append(b.clauses, clause{
		desc:  "matches(" + name + ")",
		match: fn,
	})
	return b
}

// IsEmpty returns true if no clause has been added.
func (b *Builder) IsEmpty() bool {
	return len(b.clauses) == 0
}

// Build combines the clauses into a Locator. An empty builder fails with
// core.ErrEmptyBuilder, a nil custom predicate with core.ErrIllegalState.
func (b *Builder) Build() (Locator, error) {
	if b.err != nil {
		return Locator{}, b.err
	}
	if b.IsEmpty() {
		return Locator{}, core.ErrEmptyBuilder.WithMessage("locator builder requires at least one matcher")
	}
	clauses := make([]clause, len(b.clauses))
	copy(clauses, b.clauses)
	return Locator{clauses: clauses}, nil
}

// MustBuild is like Build but panics on a Build error.
func (b *Builder) MustBuild() Locator {
	l, err := b.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// Build runs configure on a fresh Builder and builds the result.
func Build(configure func(*Builder)) (Locator, error) {
	b := NewBuilder()
	if configure != nil {
		configure(b)
	}
	return b.Build()
}

// Locator is an immutable conjunction of clauses.
type Locator struct {
	clauses []clause
}

// IsZero reports whether l was not produced by a Builder.
func (l Locator) IsZero() bool {
	return len(l.clauses) == 0
}

// Match reports whether e satisfies every clause. A zero Locator matches
// nothing.
func (l Locator) Match(e Element) bool {
	if l.IsZero() || e == nil {
		return false
	}
	for _, c := range l.clauses {
		if !c.match(e) {
			return false
		}
	}
	return true
}

// Describe returns a human-readable description like
// tag="save" && text~="Sav"(i).
func (l Locator) Describe() string {
	parts := make([]string, len(l.clauses))
	for i, c := range l.clauses {
		parts[i] = c.desc
	}
	return strings.Join(parts, " && ")
}

// String implements fmt.Stringer.
func (l Locator) String() string {
	return l.Describe()
}
