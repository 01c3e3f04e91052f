package ws

import (
	"sync"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	SocketID() string
}

// Hub maps live connections to room broadcast groups. A connection is
// in at most one room; joining again moves it.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // roomCode -> set of connections
	conns map[Conn]string              // connection -> current roomCode
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[Conn]struct{}),
		conns: make(map[Conn]string),
	}
}

func (h *Hub) Join(c Conn, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.conns[c]; ok && prev != roomCode {
		h.removeLocked(c, prev)
	}

	rs, ok := h.rooms[roomCode]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[roomCode] = rs
	}
	rs[c] = struct{}{}
	h.conns[c] = roomCode
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomCode, ok := h.conns[c]; ok {
		h.removeLocked(c, roomCode)
	}
}

func (h *Hub) removeLocked(c Conn, roomCode string) {
	if rs, ok := h.rooms[roomCode]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, roomCode)
		}
	}
	delete(h.conns, c)
}

// Room returns the room a connection currently belongs to.
func (h *Hub) Room(c Conn) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	roomCode, ok := h.conns[c]
	return roomCode, ok
}

func (h *Hub) Broadcast(roomCode string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[roomCode]; ok {
		for c := range rs {
			_ = c.Send(msg) // best-effort
		}
	}
}

// BroadcastExcept delivers to everyone in the room but one connection.
// The direct-fallback share path uses it to skip the sender.
func (h *Hub) BroadcastExcept(roomCode string, msg Message, except Conn) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[roomCode]; ok {
		for c := range rs {
			if c == except {
				continue
			}
			_ = c.Send(msg)
		}
	}
}
