// Package session publishes the active account to the rest of the process.
package session

import (
	"sync"

	"github.com/and161185/outfit-studio/internal/model"
)

// Listener receives the new account, or nil when the session ended.
type Listener func(acc *model.Account)

// Hub is the single process-wide observable holding the current session.
type Hub struct {
	mu      sync.Mutex
	current *model.Account
	version uint64
	nextID  int
	subs    []subscription
}

type subscription struct {
	id int
	fn Listener
}

// NewHub constructs an empty Hub.
func NewHub() *Hub { return &Hub{} }

// Current returns a copy of the active account, or nil.
func (h *Hub) Current() *model.Account {
	h.mu.Lock()
	defer h.mu.Unlock()
	return clone(h.current)
}

// Subscribe registers fn and returns its unsubscribe handle. Calling the handle twice is harmless.
func (h *Hub) Subscribe(fn Listener) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscription{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, s := range h.subs {
				if s.id == id {
					h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Set replaces the session and notifies listeners in subscription order.
// Setting nil when no session is active is a no-op. The returned version
// identifies the session now held and can be passed to ClearIf.
func (h *Hub) Set(acc *model.Account) uint64 {
	h.mu.Lock()
	if acc == nil && h.current == nil {
		v := h.version
		h.mu.Unlock()
		return v
	}
	h.current = clone(acc)
	h.version++
	v := h.version
	subs := append([]subscription(nil), h.subs...)
	h.mu.Unlock()

	h.notify(subs, acc)
	return v
}

// ClearIf ends the session only if it is still the one identified by version.
// It reports whether the session was cleared.
func (h *Hub) ClearIf(version uint64) bool {
	h.mu.Lock()
	if h.current == nil || h.version != version {
		h.mu.Unlock()
		return false
	}
	h.current = nil
	h.version++
	subs := append([]subscription(nil), h.subs...)
	h.mu.Unlock()

	h.notify(subs, nil)
	return true
}

// Restore sets the session without notifying; used while a gateway boots.
func (h *Hub) Restore(acc *model.Account) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = clone(acc)
	h.version++
	return h.version
}

func (h *Hub) notify(subs []subscription, acc *model.Account) {
	for _, s := range subs {
		s.fn(clone(acc))
	}
}

func clone(acc *model.Account) *model.Account {
	if acc == nil {
		return nil
	}
	c := *acc
	return &c
}
