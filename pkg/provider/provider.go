// Package provider defines the UI backend that nodes interact with.
//
// The retry engine and the page-object layer only talk to a Provider; the
// backend decides how elements are located and how actions are performed.
// Implementations: mock (in-memory element tree).
package provider

import (
	"context"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/locator"
)

// Provider locates elements and reports UI idleness.
type Provider interface {
	// Find returns the first element matching loc, or an error wrapping
	// core.ErrElementNotFound when nothing matches. When several elements
	// match, the first in depth-first document order is returned; callers
	// that need a unique match must narrow loc.
	Find(ctx context.Context, loc locator.Locator) (Element, error)

	// WaitForIdle blocks until pending UI work has settled.
	WaitForIdle(ctx context.Context) error

	// Dump renders the current element tree for diagnostics.
	Dump() (string, error)

	// SetContent replaces the UI under test.
	SetContent(content any) error
}

// Element is a located element. Actions may fail if the element went stale.
type Element interface {
	locator.Element

	Displayed() bool
	Enabled() bool

	Click(ctx context.Context) error
	TypeText(ctx context.Context, text string) error
	ClearText(ctx context.Context) error
	ScrollTo(ctx context.Context) error
}

// NotFound returns the failure providers report when loc matches nothing.
func NotFound(loc locator.Locator) error {
	return core.ErrElementNotFound.WithMessagef("no element matches %s", loc.Describe())
}
