// Package mock provides an in-memory provider for testing without a real UI.
package mock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/locator"
	"github.com/devicelab-dev/screenkit/pkg/logger"
	"github.com/devicelab-dev/screenkit/pkg/provider"
)

// Node is one element of the mock UI tree. Trees can be loaded from YAML or
// JSON documents using the field names below.
type Node struct {
	Tag         string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Text        string `yaml:"text,omitempty" json:"text,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Hidden      bool   `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Disabled    bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	// AppearAfter keeps the node out of the tree for that many Find polls.
	AppearAfter int `yaml:"appearAfter,omitempty" json:"appearAfter,omitempty"`
	// GoneAfter removes the node once that many polls have happened (0 = never).
	GoneAfter int `yaml:"goneAfter,omitempty" json:"goneAfter,omitempty"`

	Children []*Node `yaml:"children,omitempty" json:"children,omitempty"`
}

// ClickHandler runs when an element with a registered tag is clicked.
type ClickHandler func(p *Provider) error

// Config configures mock provider behavior.
type Config struct {
	// BusyFinds makes the first N Find calls fail with a retryable
	// illegal-state error, as if the UI were still composing.
	BusyFinds int
	// FailOnFind makes Find call N (1-indexed) fail with an unclassified
	// error. 0 = never fail.
	FailOnFind int
	// IdleDelay adds artificial delay to WaitForIdle.
	IdleDelay time.Duration
	// IdleErr is returned by every WaitForIdle call.
	IdleErr error
}

// Provider is an in-memory implementation of provider.Provider.
type Provider struct {
	Config Config

	mu       sync.Mutex
	roots    []*Node
	polls    int // Find calls since the last SetContent
	finds    int // Find calls overall
	idles    int
	actions  []string
	handlers map[string]ClickHandler
}

// New creates a mock provider with an empty tree.
func New(cfg Config) *Provider {
	return &Provider{
		Config:   cfg,
		handlers: make(map[string]ClickHandler),
	}
}

// SetContent replaces the tree. content may be a *Node, a Node, a []*Node,
// or a YAML/JSON document as string or []byte.
func (p *Provider) SetContent(content any) error {
	roots, err := toRoots(content)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.roots = roots
	p.polls = 0
	logger.Debug("mock: content set (%d roots)", len(roots))
	return nil
}

func toRoots(content any) ([]*Node, error) {
	switch c := content.(type) {
	case *Node:
		if c == nil {
			return nil, core.ErrInvalidArgument.WithMessage("mock: nil content")
		}
		return []*Node{c}, nil
	case Node:
		return []*Node{&c}, nil
	case []*Node:
		return c, nil
	case string:
		return parseTree([]byte(c))
	case []byte:
		return parseTree(c)
	default:
		return nil, core.ErrInvalidArgument.WithMessagef("mock: unsupported content type %T", content)
	}
}

// parseTree accepts a single node or a list of nodes. JSON documents parse
// as YAML.
func parseTree(data []byte) ([]*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mock: parse content: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, core.ErrInvalidArgument.WithMessage("mock: empty content")
	}

	top := doc.Content[0]
	if top.Kind == yaml.SequenceNode {
		var roots []*Node
		if err := top.Decode(&roots); err != nil {
			return nil, fmt.Errorf("mock: decode content: %w", err)
		}
		return roots, nil
	}

	var root Node
	if err := top.Decode(&root); err != nil {
		return nil, fmt.Errorf("mock: decode content: %w", err)
	}
	return []*Node{&root}, nil
}

// OnClick registers a handler for clicks on elements tagged tag.
func (p *Provider) OnClick(tag string, fn ClickHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[tag] = fn
}

// Update applies fn to every node tagged tag and reports how many matched.
func (p *Provider) Update(tag string, fn func(n *Node)) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	walk(p.roots, func(n *Node) bool {
		if n.Tag == tag {
			fn(n)
			count++
		}
		return true
	})
	return count
}

// Find returns the first present node matching loc in depth-first order.
// Later matches are ignored.
func (p *Provider) Find(ctx context.Context, loc locator.Locator) (provider.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.finds++
	p.polls++

	if p.Config.FailOnFind > 0 && p.finds == p.Config.FailOnFind {
		return nil, fmt.Errorf("mock failure on find %d", p.finds)
	}
	if p.finds <= p.Config.BusyFinds {
		return nil, core.ErrIllegalState.WithMessagef("mock: ui busy (find %d)", p.finds)
	}

	var found *Node
	p.walkPresent(func(n *Node) bool {
		if loc.Match(nodeView{n}) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil, provider.NotFound(loc)
	}
	return &element{p: p, n: found}, nil
}

// WaitForIdle records the call and returns Config.IdleErr.
func (p *Provider) WaitForIdle(ctx context.Context) error {
	p.mu.Lock()
	p.idles++
	delay, idleErr := p.Config.IdleDelay, p.Config.IdleErr
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return idleErr
}

// Dump renders the present tree, one node per line, indented by depth.
func (p *Provider) Dump() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	var render func(nodes []*Node, depth int)
	render = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			if !p.present(n) {
				continue
			}
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(describeNode(n))
			b.WriteByte('\n')
			render(n.Children, depth+1)
		}
	}
	render(p.roots, 0)

	if b.Len() == 0 {
		return "(empty)\n", nil
	}
	return b.String(), nil
}

// Actions returns the recorded actions, e.g. "click save" or "type name=Bob".
func (p *Provider) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// Finds returns the number of Find calls so far.
func (p *Provider) Finds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finds
}

// Idles returns the number of WaitForIdle calls so far.
func (p *Provider) Idles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idles
}

func (p *Provider) present(n *Node) bool {
	if p.polls <= n.AppearAfter {
		return false
	}
	return n.GoneAfter == 0 || p.polls <= n.GoneAfter
}

// walkPresent visits present nodes depth-first until fn returns false.
func (p *Provider) walkPresent(fn func(n *Node) bool) {
	var visit func(nodes []*Node) bool
	visit = func(nodes []*Node) bool {
		for _, n := range nodes {
			if !p.present(n) {
				continue
			}
			if !fn(n) || !visit(n.Children) {
				return false
			}
		}
		return true
	}
	visit(p.roots)
}

// walk visits every node depth-first until fn returns false.
func walk(nodes []*Node, fn func(n *Node) bool) bool {
	for _, n := range nodes {
		if !fn(n) || !walk(n.Children, fn) {
			return false
		}
	}
	return true
}

func (p *Provider) record(format string, args ...interface{}) {
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

func describeNode(n *Node) string {
	var parts []string
	if n.Tag != "" {
		parts = append(parts, "tag="+strconv.Quote(n.Tag))
	}
	if n.Text != "" {
		parts = append(parts, "text="+strconv.Quote(n.Text))
	}
	if n.Description != "" {
		parts = append(parts, "description="+strconv.Quote(n.Description))
	}
	if n.Hidden {
		parts = append(parts, "[hidden]")
	}
	if n.Disabled {
		parts = append(parts, "[disabled]")
	}
	if len(parts) == 0 {
		return "Node"
	}
	return "Node " + strings.Join(parts, " ")
}

// nodeView exposes a Node to locator clauses; callers hold p.mu.
type nodeView struct{ n *Node }

func (v nodeView) Tag() string         { return v.n.Tag }
func (v nodeView) Text() string        { return v.n.Text }
func (v nodeView) Description() string { return v.n.Description }

// element is a located node. Reads and actions see later updates to the node.
type element struct {
	p *Provider
	n *Node
}

func (e *element) Tag() string {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return e.n.Tag
}

func (e *element) Text() string {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return e.n.Text
}

func (e *element) Description() string {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return e.n.Description
}

func (e *element) Displayed() bool {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return !e.n.Hidden
}

func (e *element) Enabled() bool {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return !e.n.Disabled
}

func (e *element) Click(ctx context.Context) error {
	e.p.mu.Lock()
	if e.n.Disabled {
		e.p.mu.Unlock()
		return core.ErrIllegalState.WithMessagef("mock: %s is not enabled", describeNode(e.n))
	}
	e.p.record("click %s", e.n.Tag)
	handler := e.p.handlers[e.n.Tag]
	e.p.mu.Unlock()

	if handler != nil {
		return handler(e.p)
	}
	return nil
}

func (e *element) TypeText(ctx context.Context, text string) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.n.Disabled {
		return core.ErrIllegalState.WithMessagef("mock: %s is not enabled", describeNode(e.n))
	}
	e.n.Text += text
	e.p.record("type %s=%s", e.n.Tag, text)
	return nil
}

func (e *element) ClearText(ctx context.Context) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	e.n.Text = ""
	e.p.record("clear %s", e.n.Tag)
	return nil
}

func (e *element) ScrollTo(ctx context.Context) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	e.p.record("scroll %s", e.n.Tag)
	return nil
}
