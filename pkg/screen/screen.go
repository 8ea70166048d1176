// Package screen is the base for page objects.
//
// A page object embeds Screen and declares its nodes with Node:
//
//	type LoginScreen struct {
//		screen.Screen
//		User *node.Node
//	}
//
//	var Login = screen.Factory[*LoginScreen]{
//		Name: "Login",
//		New: func(s screen.Screen) *LoginScreen {
//			return &LoginScreen{
//				Screen: s,
//				User:   s.Node(func(b *locator.Builder) { b.HasTag("user") }),
//			}
//		},
//	}
package screen

import (
	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/locator"
	"github.com/devicelab-dev/screenkit/pkg/node"
	"github.com/devicelab-dev/screenkit/pkg/provider"
	"github.com/devicelab-dev/screenkit/pkg/safety"
)

// Screen binds page-object nodes to a provider and a retry configuration.
type Screen struct {
	provider provider.Provider
	retry    safety.Config
}

// Option configures a Screen.
type Option func(*Screen)

// WithRetry sets the retry configuration used by nodes built on the screen.
func WithRetry(cfg safety.Config) Option {
	return func(s *Screen) {
		s.retry = cfg
	}
}

// New creates a Screen for p using safety.DefaultConfig unless overridden.
func New(p provider.Provider, opts ...Option) Screen {
	s := Screen{provider: p, retry: safety.DefaultConfig()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Provider returns the provider the screen is bound to.
func (s Screen) Provider() provider.Provider {
	return s.provider
}

// Retry returns the screen's retry configuration.
func (s Screen) Retry() safety.Config {
	return s.retry
}

// Node builds a node from the clauses added by configure. It panics if
// configure adds none, since page-object fields are fixed at construction.
func (s Screen) Node(configure func(b *locator.Builder)) *node.Node {
	b := locator.NewBuilder()
	if configure != nil {
		configure(b)
	}
	return node.New(s.provider, b.MustBuild(), s.retry)
}

// Tagged is shorthand for a node matching a test tag.
func (s Screen) Tagged(tag string) *node.Node {
	return s.Node(func(b *locator.Builder) { b.HasTag(tag) })
}

// Factory pairs a page-object type with its constructor.
type Factory[T any] struct {
	Name string
	New  func(s Screen) T
}

// Create instantiates the page object bound to p.
func (f Factory[T]) Create(p provider.Provider, opts ...Option) (T, error) {
	var zero T
	if f.New == nil {
		return zero, core.ErrIllegalState.WithMessagef("screen factory %q has no constructor", f.Name)
	}
	if p == nil {
		return zero, core.ErrInvalidArgument.WithMessagef("screen factory %q: nil provider", f.Name)
	}
	return f.New(New(p, opts...)), nil
}
