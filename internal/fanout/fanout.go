// Package fanout maps authenticated users to their live push connection and
// keeps the capped per-user notification history. Delivery is at-most-once
// live (only a currently connected user gets the event) and at-least-once
// eventually (history is appended regardless, so a reconnecting client can
// fetch it and catch up).
package fanout

import (
	"log/slog"
	"sync"

	"github.com/insrapperswil/antimony/internal/model"
)

// Conn is the minimal live-connection handle: the socket.io socket
// satisfies it.
type Conn interface {
	Emit(event string, payload ...any) error
}

// Registry maps user ids to live connections. A user has at most one live
// connection; a new Register replaces the old handle.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[string]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger, conns: map[string]Conn{}}
}

// Register installs the user's live connection.
func (r *Registry) Register(userID string, conn Conn) {
	r.mu.Lock()
	r.conns[userID] = conn
	r.mu.Unlock()
	r.logger.Debug("Push connection registered.", "userId", userID)
}

// Unregister drops the user's live connection, if any.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()
	r.logger.Debug("Push connection removed.", "userId", userID)
}

// Send delivers an event to the user's live connection. It reports whether
// a live delivery happened; callers persist the payload separately either
// way.
func (r *Registry) Send(userID, event string, payload any) bool {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if err := r.Emit(conn, event, payload); err != nil {
		r.logger.Warn("Push delivery failed.", "userId", userID, "event", event, "error", err)
		return false
	}
	return true
}

// Broadcast delivers an event to every live connection.
func (r *Registry) Broadcast(event string, payload any) {
	r.mu.RLock()
	conns := make(map[string]Conn, len(r.conns))
	for id, c := range r.conns {
		conns[id] = c
	}
	r.mu.RUnlock()
	for id, c := range conns {
		if err := r.Emit(c, event, payload); err != nil {
			r.logger.Warn("Push delivery failed.", "userId", id, "event", event, "error", err)
		}
	}
}

// Emit sends on a connection, tolerating a nil payload.
func (r *Registry) Emit(conn Conn, event string, payload any) error {
	if payload == nil {
		return conn.Emit(event)
	}
	return conn.Emit(event, payload)
}

// Connected reports whether the user has a live connection.
func (r *Registry) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// History is the capped per-user notification store; the oldest entry is
// evicted first on overflow.
type History struct {
	cap int

	mu     sync.RWMutex
	byUser map[string][]model.Notification
}

// NewHistory creates a history keeping at most cap entries per user.
func NewHistory(cap int) *History {
	if cap <= 0 {
		cap = 20
	}
	return &History{cap: cap, byUser: map[string][]model.Notification{}}
}

// Append stores a notification for a user, evicting the oldest entry when
// the cap is exceeded.
func (h *History) Append(userID string, n model.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := append(h.byUser[userID], n)
	if len(entries) > h.cap {
		entries = entries[len(entries)-h.cap:]
	}
	h.byUser[userID] = entries
}

// For returns a snapshot of a user's notifications, oldest first.
func (h *History) For(userID string) []model.Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries := h.byUser[userID]
	out := make([]model.Notification, len(entries))
	copy(out, entries)
	return out
}

// MarkRead flips the read flag of one notification. It reports whether the
// notification was found.
func (h *History) MarkRead(userID, notificationID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.byUser[userID]
	for i := range entries {
		if entries[i].ID == notificationID {
			entries[i].Read = true
			return true
		}
	}
	return false
}
