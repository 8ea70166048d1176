// Package node performs retried actions and assertions on located elements.
//
// A Node pairs a locator with a provider. Every call locates the element
// afresh and runs through the retry engine, with the provider's idle wait
// between attempts, so transient timing failures are absorbed.
package node

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/locator"
	"github.com/devicelab-dev/screenkit/pkg/provider"
	"github.com/devicelab-dev/screenkit/pkg/safety"
)

// Node is a retried handle on the element matched by a locator.
type Node struct {
	provider provider.Provider
	loc      locator.Locator
	cfg      safety.Config
}

// New creates a Node. cfg governs every call made through it.
func New(p provider.Provider, loc locator.Locator, cfg safety.Config) *Node {
	return &Node{provider: p, loc: loc, cfg: cfg}
}

// Locator returns the node's locator.
func (n *Node) Locator() locator.Locator {
	return n.loc
}

// Config returns the retry configuration used by the node.
func (n *Node) Config() safety.Config {
	return n.cfg
}

// WithTimeout returns a copy of n using the given retry budget.
func (n *Node) WithTimeout(d time.Duration) *Node {
	c := *n
	c.cfg = n.cfg.WithTimeout(d)
	return &c
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return n.loc.Describe()
}

// ============================================
// Actions
// ============================================

// Click clicks the element.
func (n *Node) Click(ctx context.Context) error {
	return n.act(ctx, func(el provider.Element) error {
		return el.Click(ctx)
	})
}

// TypeText types text into the element.
func (n *Node) TypeText(ctx context.Context, text string) error {
	return n.act(ctx, func(el provider.Element) error {
		return el.TypeText(ctx, text)
	})
}

// ClearText clears the element's editable text.
func (n *Node) ClearText(ctx context.Context) error {
	return n.act(ctx, func(el provider.Element) error {
		return el.ClearText(ctx)
	})
}

// ScrollTo scrolls the element into view.
func (n *Node) ScrollTo(ctx context.Context) error {
	return n.act(ctx, func(el provider.Element) error {
		return el.ScrollTo(ctx)
	})
}

// Text returns the element's text once it can be located.
func (n *Node) Text(ctx context.Context) (string, error) {
	return safety.RetryIdle(ctx, n.cfg, n.provider, func() (string, error) {
		el, err := n.provider.Find(ctx, n.loc)
		if err != nil {
			return "", err
		}
		return el.Text(), nil
	})
}

// ============================================
// Assertions
// ============================================

// AssertIsDisplayed asserts the element exists and is displayed.
func (n *Node) AssertIsDisplayed(ctx context.Context) error {
	return n.act(ctx, func(el provider.Element) error {
		if !el.Displayed() {
			return core.ErrElementNotVisible.WithMessagef("%s is not displayed", n.loc.Describe())
		}
		return nil
	})
}

// AssertIsNotDisplayed asserts the element is hidden. A missing element is
// not displayed.
func (n *Node) AssertIsNotDisplayed(ctx context.Context) error {
	return n.check(ctx, func() error {
		el, err := n.provider.Find(ctx, n.loc)
		if err != nil {
			if core.IsKind(err, core.KindElementNotFound) {
				return nil
			}
			return err
		}
		if el.Displayed() {
			return core.ErrStateMismatch.WithMessagef("%s is displayed, expected it not to be", n.loc.Describe())
		}
		return nil
	})
}

// AssertIsEnabled asserts the element is enabled.
func (n *Node) AssertIsEnabled(ctx context.Context) error {
	return n.act(ctx, func(el provider.Element) error {
		if !el.Enabled() {
			return core.ErrStateMismatch.WithMessagef("%s is not enabled", n.loc.Describe())
		}
		return nil
	})
}

// AssertIsNotEnabled asserts the element is disabled.
func (n *Node) AssertIsNotEnabled(ctx context.Context) error {
	return n.act(ctx, func(el provider.Element) error {
		if el.Enabled() {
			return core.ErrStateMismatch.WithMessagef("%s is enabled, expected it not to be", n.loc.Describe())
		}
		return nil
	})
}

// AssertExists asserts that some element matches the locator.
func (n *Node) AssertExists(ctx context.Context) error {
	return n.act(ctx, func(provider.Element) error { return nil })
}

// AssertDoesNotExist asserts that no element matches the locator.
func (n *Node) AssertDoesNotExist(ctx context.Context) error {
	return n.check(ctx, func() error {
		_, err := n.provider.Find(ctx, n.loc)
		if err == nil {
			return core.ErrAssertion.WithMessagef("%s exists, expected it not to", n.loc.Describe())
		}
		if core.IsKind(err, core.KindElementNotFound) {
			return nil
		}
		return err
	})
}

// AssertTextEquals asserts the element's text values are exactly expected,
// in order. An element without text has no values.
func (n *Node) AssertTextEquals(ctx context.Context, expected ...string) error {
	return n.act(ctx, func(el provider.Element) error {
		actual := textValues(el)
		if !equalStrings(actual, expected) {
			return core.ErrTextMismatch.WithMessagef("%s: expected text %s, got %s",
				n.loc.Describe(), quoteAll(expected), quoteAll(actual))
		}
		return nil
	})
}

// AssertTextContains asserts that one of the element's text values contains
// value. Pass locator.Exact() to require a whole-value match.
func (n *Node) AssertTextContains(ctx context.Context, value string, opts ...locator.TextOption) error {
	opts = append([]locator.TextOption{locator.Substring()}, opts...)
	return n.act(ctx, func(el provider.Element) error {
		actual := textValues(el)
		for _, v := range actual {
			if locator.MatchText(value, v, opts...) {
				return nil
			}
		}
		return core.ErrTextMismatch.WithMessagef("%s: expected text containing %q, got %s",
			n.loc.Describe(), value, quoteAll(actual))
	})
}

// act locates the element and applies fn, retrying both.
func (n *Node) act(ctx context.Context, fn func(el provider.Element) error) error {
	return n.check(ctx, func() error {
		el, err := n.provider.Find(ctx, n.loc)
		if err != nil {
			return err
		}
		return fn(el)
	})
}

func (n *Node) check(ctx context.Context, op func() error) error {
	return safety.DoIdle(ctx, n.cfg, n.provider, op)
}

func textValues(el provider.Element) []string {
	if t := el.Text(); t != "" {
		return []string{t}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
