package handlers

import "sync"

// IdentityRegistry maps a user id to its single live connection. It is the
// process-wide guarantee that one identity never holds two sockets at once.
type IdentityRegistry struct {
	mu    sync.Mutex
	conns map[int64]*Connection
}

func NewIdentityRegistry() *IdentityRegistry {
	return &IdentityRegistry{conns: make(map[int64]*Connection)}
}

var registry = NewIdentityRegistry()

// Register claims the identity for conn. It is a single atomic
// check-and-insert: if the identity already has a live connection the claim
// fails and the caller must reject the login.
func (r *IdentityRegistry) Register(userID int64, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.conns[userID]; taken {
		return false
	}
	r.conns[userID] = conn
	return true
}

// Unregister releases the identity, but only if it is still held by conn.
// A stale disconnect must never evict a newer connection's entry.
func (r *IdentityRegistry) Unregister(userID int64, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] == conn {
		delete(r.conns, userID)
	}
}

func (r *IdentityRegistry) Get(userID int64) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[userID]
}

func (r *IdentityRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

type announcementEvent struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Announce fans a system-wide message out to every connected user,
// independent of room membership.
func (r *IdentityRegistry) Announce(from, text string) {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		conn.writeEvent("announcement", announcementEvent{From: from, Text: text})
	}
}
