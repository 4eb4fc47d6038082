package domain

import "testing"

func TestStatusCanAdvance(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusRead, true},
		{StatusDelivered, StatusRead, true},
		{StatusDelivered, StatusSent, false},
		{StatusRead, StatusDelivered, false},
		{StatusRead, StatusSent, false},
		{StatusSent, StatusSent, false},
		{StatusRead, StatusRead, false},
	}
	for _, c := range cases {
		if got := c.from.CanAdvance(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	if got := InitialStatus(true); got != StatusDelivered {
		t.Fatalf("recipient online: got %q, want delivered", got)
	}
	if got := InitialStatus(false); got != StatusSent {
		t.Fatalf("recipient offline: got %q, want sent", got)
	}
}

func TestUserDisplayName(t *testing.T) {
	u := &User{FirstName: "Alice", LastName: "Smith", Email: "a@example.com"}
	if got := u.DisplayName(); got != "Alice Smith" {
		t.Fatalf("got %q", got)
	}

	u = &User{FirstName: "  Bob  ", Email: "b@example.com"}
	if got := u.DisplayName(); got != "Bob" {
		t.Fatalf("got %q", got)
	}

	u = &User{Email: "c@example.com"}
	if got := u.DisplayName(); got != "c@example.com" {
		t.Fatalf("email fallback: got %q", got)
	}
}
