package mock

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/locator"
	"github.com/devicelab-dev/screenkit/pkg/provider"
)

var _ provider.Provider = (*Provider)(nil)

const homeJSON = `{
  "tag": "home",
  "children": [
    {"tag": "title", "text": "My Cards"},
    {"tag": "add_button", "text": "Add", "description": "Add a card"},
    {"tag": "spinner", "hidden": true},
    {"tag": "late", "text": "Loaded", "appearAfter": 2}
  ]
}`

func byTag(tag string) locator.Locator {
	return locator.NewBuilder().HasTag(tag).MustBuild()
}

func newHome(t *testing.T, cfg Config) *Provider {
	t.Helper()
	p := New(cfg)
	if err := p.SetContent(homeJSON); err != nil {
		t.Fatalf("SetContent() error = %v", err)
	}
	return p
}

func TestFind(t *testing.T) {
	p := newHome(t, Config{})
	ctx := context.Background()

	el, err := p.Find(ctx, byTag("add_button"))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if el.Text() != "Add" || el.Description() != "Add a card" || el.Tag() != "add_button" {
		t.Errorf("element = %q/%q/%q", el.Tag(), el.Text(), el.Description())
	}
	if !el.Displayed() || !el.Enabled() {
		t.Error("add_button should be displayed and enabled")
	}

	spinner, err := p.Find(ctx, byTag("spinner"))
	if err != nil {
		t.Fatalf("Find(spinner) error = %v", err)
	}
	if spinner.Displayed() {
		t.Error("spinner should not be displayed")
	}

	_, err = p.Find(ctx, byTag("missing"))
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("Find(missing) error = %v, want ErrElementNotFound", err)
	}
	if !strings.Contains(err.Error(), `tag="missing"`) {
		t.Errorf("error = %q, should describe the locator", err)
	}
}

func TestFind_ByText(t *testing.T) {
	p := newHome(t, Config{})
	loc := locator.NewBuilder().HasText("my cards", locator.IgnoreCase()).MustBuild()
	el, err := p.Find(context.Background(), loc)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if el.Tag() != "title" {
		t.Errorf("Tag() = %q, want title", el.Tag())
	}
}

func TestFind_SeveralMatches(t *testing.T) {
	p := New(Config{})
	if err := p.SetContent(`{
  "tag": "list",
  "children": [
    {"tag": "card", "children": [{"tag": "label", "text": "nested"}]},
    {"tag": "label", "text": "sibling"}
  ]
}`); err != nil {
		t.Fatalf("SetContent() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		el, err := p.Find(context.Background(), byTag("label"))
		if err != nil {
			t.Fatalf("Find() error = %v", err)
		}
		if el.Text() != "nested" {
			t.Errorf("Find() #%d = %q, want the first depth-first match", i+1, el.Text())
		}
	}
}

func TestFind_AppearAfter(t *testing.T) {
	p := newHome(t, Config{})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if _, err := p.Find(ctx, byTag("late")); !errors.Is(err, core.ErrElementNotFound) {
			t.Fatalf("poll %d: error = %v, want not found", i, err)
		}
	}
	if _, err := p.Find(ctx, byTag("late")); err != nil {
		t.Errorf("poll 3: error = %v, want found", err)
	}
}

func TestFind_GoneAfter(t *testing.T) {
	p := New(Config{})
	if err := p.SetContent(&Node{Tag: "toast", GoneAfter: 1}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := p.Find(ctx, byTag("toast")); err != nil {
		t.Errorf("poll 1: error = %v, want found", err)
	}
	if _, err := p.Find(ctx, byTag("toast")); !errors.Is(err, core.ErrElementNotFound) {
		t.Errorf("poll 2: error = %v, want not found", err)
	}
}

func TestFind_FailureInjection(t *testing.T) {
	p := newHome(t, Config{BusyFinds: 1, FailOnFind: 3})
	ctx := context.Background()

	_, err := p.Find(ctx, byTag("title"))
	if !errors.Is(err, core.ErrIllegalState) {
		t.Errorf("find 1: error = %v, want ErrIllegalState", err)
	}
	if _, err := p.Find(ctx, byTag("title")); err != nil {
		t.Errorf("find 2: error = %v", err)
	}
	_, err = p.Find(ctx, byTag("title"))
	if err == nil || core.KindOf(err) != core.KindUnknown {
		t.Errorf("find 3: error = %v, want unclassified failure", err)
	}
	if p.Finds() != 3 {
		t.Errorf("Finds() = %d, want 3", p.Finds())
	}
}

func TestFind_CancelledContext(t *testing.T) {
	p := newHome(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Find(ctx, byTag("title")); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestActions(t *testing.T) {
	p := newHome(t, Config{})
	ctx := context.Background()

	navigated := false
	p.OnClick("add_button", func(p *Provider) error {
		navigated = true
		return p.SetContent(&Node{Tag: "create", Children: []*Node{{Tag: "name"}}})
	})

	add, _ := p.Find(ctx, byTag("add_button"))
	if err := add.Click(ctx); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if !navigated {
		t.Fatal("click handler should run")
	}

	name, err := p.Find(ctx, byTag("name"))
	if err != nil {
		t.Fatalf("Find(name) error = %v", err)
	}
	_ = name.TypeText(ctx, "Bob")
	_ = name.TypeText(ctx, "by")
	if name.Text() != "Bobby" {
		t.Errorf("Text() = %q, want Bobby", name.Text())
	}
	_ = name.ClearText(ctx)
	if name.Text() != "" {
		t.Errorf("Text() = %q after clear, want empty", name.Text())
	}
	_ = name.ScrollTo(ctx)

	want := []string{"click add_button", "type name=Bob", "type name=by", "clear name", "scroll name"}
	got := p.Actions()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Actions() = %v, want %v", got, want)
	}
}

func TestClick_Disabled(t *testing.T) {
	p := New(Config{})
	_ = p.SetContent(Node{Tag: "save", Disabled: true})
	ctx := context.Background()

	el, _ := p.Find(ctx, byTag("save"))
	if err := el.Click(ctx); !errors.Is(err, core.ErrIllegalState) {
		t.Errorf("Click() error = %v, want ErrIllegalState", err)
	}
	if n := p.Update("save", func(n *Node) { n.Disabled = false }); n != 1 {
		t.Errorf("Update() = %d, want 1", n)
	}
	if err := el.Click(ctx); err != nil {
		t.Errorf("Click() after enable error = %v", err)
	}
}

func TestSetContent(t *testing.T) {
	p := New(Config{})

	tests := []struct {
		name    string
		content any
		wantErr bool
	}{
		{"yaml list", "- tag: a\n- tag: b\n", false},
		{"json bytes", []byte(`{"tag": "a"}`), false},
		{"node slice", []*Node{{Tag: "a"}}, false},
		{"nil node", (*Node)(nil), true},
		{"unsupported", 42, true},
		{"empty", "", true},
		{"malformed", "{tag: [", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.SetContent(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetContent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWaitForIdle(t *testing.T) {
	idleErr := errors.New("still animating")
	p := New(Config{IdleErr: idleErr})
	if err := p.WaitForIdle(context.Background()); err != idleErr {
		t.Errorf("WaitForIdle() = %v, want %v", err, idleErr)
	}
	if p.Idles() != 1 {
		t.Errorf("Idles() = %d, want 1", p.Idles())
	}
}

func TestDump(t *testing.T) {
	p := newHome(t, Config{})
	out, err := p.Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	want := `Node tag="home"
  Node tag="title" text="My Cards"
  Node tag="add_button" text="Add" description="Add a card"
  Node tag="spinner" [hidden]
`
	if out != want {
		t.Errorf("Dump() =\n%s\nwant\n%s", out, want)
	}

	empty, _ := New(Config{}).Dump()
	if empty != "(empty)\n" {
		t.Errorf("Dump() of empty tree = %q", empty)
	}
}
