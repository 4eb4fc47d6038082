package ws

import (
	"sync"
)

type Conn interface {
	Send(v any) error
	UserID() string
}

// Hub — multicast-группы по диалогам: все сессии одной комнаты получают
// каждое опубликованное событие. Доставка best-effort, процесс-локальная:
// отвалившийся посреди broadcast член просто его не получает, источником
// истины остаётся БД.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // room -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(room string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[room]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[room] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(room string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[room]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) Broadcast(room string, v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[room]; ok {
		for c := range rs {
			_ = c.Send(v) // best-effort
		}
	}
}

// BroadcastExcept — то же, но автор события своё эхо не получает
// (typing, read-receipt).
func (h *Hub) BroadcastExcept(room, exceptUserID string, v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[room]; ok {
		for c := range rs {
			if c.UserID() == exceptUserID {
				continue
			}
			_ = c.Send(v)
		}
	}
}
