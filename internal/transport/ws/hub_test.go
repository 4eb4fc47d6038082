package ws

import (
	"errors"
	"sync"
	"testing"
)

// fakeConn собирает отправленные кадры; потокобезопасен для broadcast-ов.
type fakeConn struct {
	mu     sync.Mutex
	userID string
	sent   []any
	fail   bool
}

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errSendFailed
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) frames() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.sent))
	copy(out, c.sent)
	return out
}

var errSendFailed = errors.New("send failed")

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	a := &fakeConn{userID: "a"}
	b := &fakeConn{userID: "b"}
	h.Add("room1", a)
	h.Add("room1", b)

	other := &fakeConn{userID: "c"}
	h.Add("room2", other)

	h.Broadcast("room1", "hello")

	if len(a.frames()) != 1 || len(b.frames()) != 1 {
		t.Fatalf("room1 members should each get one frame: a=%d b=%d", len(a.frames()), len(b.frames()))
	}
	if len(other.frames()) != 0 {
		t.Fatal("room2 member must not receive room1 broadcast")
	}
}

func TestHubBroadcastExcept(t *testing.T) {
	h := NewHub()
	author := &fakeConn{userID: "author"}
	peer := &fakeConn{userID: "peer"}
	h.Add("room1", author)
	h.Add("room1", peer)

	h.BroadcastExcept("room1", "author", "typing")

	if len(author.frames()) != 0 {
		t.Fatal("author must not receive own echo")
	}
	if len(peer.frames()) != 1 {
		t.Fatalf("peer frames=%d, want 1", len(peer.frames()))
	}
}

func TestHubRemove(t *testing.T) {
	h := NewHub()
	a := &fakeConn{userID: "a"}
	h.Add("room1", a)
	h.Remove("room1", a)

	h.Broadcast("room1", "hello")
	if len(a.frames()) != 0 {
		t.Fatal("removed connection must not receive broadcasts")
	}

	// повторный remove безопасен
	h.Remove("room1", a)
}

func TestHubBroadcastSurvivesFailedSend(t *testing.T) {
	h := NewHub()
	broken := &fakeConn{userID: "broken", fail: true}
	ok := &fakeConn{userID: "ok"}
	h.Add("room1", broken)
	h.Add("room1", ok)

	h.Broadcast("room1", "hello")

	// best-effort: сбой одного сокета не мешает остальным
	if len(ok.frames()) != 1 {
		t.Fatalf("healthy connection frames=%d, want 1", len(ok.frames()))
	}
}
