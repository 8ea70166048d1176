package screen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/locator"
	"github.com/devicelab-dev/screenkit/pkg/node"
	"github.com/devicelab-dev/screenkit/pkg/provider/mock"
	"github.com/devicelab-dev/screenkit/pkg/safety"
)

type loginScreen struct {
	Screen
	User   *node.Node
	Submit *node.Node
}

var login = Factory[*loginScreen]{
	Name: "Login",
	New: func(s Screen) *loginScreen {
		return &loginScreen{
			Screen: s,
			User:   s.Node(func(b *locator.Builder) { b.HasTag("user") }),
			Submit: s.Tagged("submit"),
		}
	},
}

func TestFactory_Create(t *testing.T) {
	p := mock.New(mock.Config{})
	_ = p.SetContent(&mock.Node{Children: []*mock.Node{
		{Tag: "user", Text: "alice"},
		{Tag: "submit", Text: "Sign in"},
	}})

	cfg := safety.DefaultConfig().WithTimeout(100 * time.Millisecond).WithPollInterval(5 * time.Millisecond)
	s, err := login.Create(p, WithRetry(cfg))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.Provider() != p {
		t.Error("screen should be bound to the provider")
	}
	if s.User.Config().Timeout != 100*time.Millisecond {
		t.Errorf("node timeout = %v, want the screen's retry config", s.User.Config().Timeout)
	}

	ctx := context.Background()
	if err := s.User.AssertTextEquals(ctx, "alice"); err != nil {
		t.Errorf("AssertTextEquals() error = %v", err)
	}
	if err := s.Submit.Click(ctx); err != nil {
		t.Errorf("Click() error = %v", err)
	}
}

func TestFactory_Errors(t *testing.T) {
	if _, err := (Factory[*loginScreen]{Name: "Broken"}).Create(mock.New(mock.Config{})); !errors.Is(err, core.ErrIllegalState) {
		t.Errorf("missing constructor: error = %v, want ErrIllegalState", err)
	}
	if _, err := login.Create(nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("nil provider: error = %v, want ErrInvalidArgument", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(mock.New(mock.Config{}))
	if s.Retry().Timeout != safety.DefaultTimeout {
		t.Errorf("Retry().Timeout = %v, want %v", s.Retry().Timeout, safety.DefaultTimeout)
	}
}

func TestNode_PanicsOnEmptyLocator(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Node() with no clauses should panic")
		}
	}()
	New(mock.New(mock.Config{})).Node(func(*locator.Builder) {})
}
