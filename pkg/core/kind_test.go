package core

import "testing"

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindUnknown, "unknown"},
		{KindAssertion, "assertion"},
		{KindIllegalState, "illegal_state"},
		{KindInvalidArgument, "invalid_argument"},
		{KindProtocol, "protocol"},
		{KindIO, "io"},
		{KindRetryBudgetExceeded, "retry_budget_exceeded"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.expected)
		}
	}
}

func TestKind_Is(t *testing.T) {
	tests := []struct {
		kind   Kind
		target Kind
		want   bool
	}{
		{KindAssertion, KindAssertion, true},
		{KindTextMismatch, KindAssertion, true},
		{KindRetryBudgetExceeded, KindAssertion, true},
		{KindEmptyBuilder, KindIllegalState, true},
		{KindAssertion, KindTextMismatch, false},
		{KindEmptyBuilder, KindAssertion, false},
		{KindUnknown, KindAssertion, false},
		{KindProtocol, KindIllegalState, false},
	}

	for _, tt := range tests {
		if got := tt.kind.Is(tt.target); got != tt.want {
			t.Errorf("%s.Is(%s) = %v, want %v", tt.kind, tt.target, got, tt.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"assertion", KindAssertion, false},
		{"Illegal-State", KindIllegalState, false},
		{" text_mismatch ", KindTextMismatch, false},
		{"nope", KindUnknown, true},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds("assertion, illegal_state,,")
	if err != nil {
		t.Fatalf("ParseKinds() error = %v", err)
	}
	if len(kinds) != 2 || kinds[0] != KindAssertion || kinds[1] != KindIllegalState {
		t.Errorf("ParseKinds() = %v, want [assertion illegal_state]", kinds)
	}

	if _, err := ParseKinds("assertion,bogus"); err == nil {
		t.Error("ParseKinds() should fail on unknown names")
	}
}

func TestKind_TextRoundTrip(t *testing.T) {
	text, err := KindStateMismatch.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	var k Kind
	if err := k.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if k != KindStateMismatch {
		t.Errorf("round trip = %s, want %s", k, KindStateMismatch)
	}
}
