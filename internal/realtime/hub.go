// Package realtime fans new chat messages out to live subscribers.
// Delivery is at-most-once: a subscriber registered after a publish never
// sees it and must re-fetch history instead.
package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Handler receives one new message of the subscribed session.
// Handlers run on the dispatching goroutine and must not block.
type Handler func(msg domain.ChatMessage)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	ID        string
	SessionID int64
	handler   Handler
}

// Gauge tracks the number of live subscriptions.
type Gauge interface {
	Inc()
	Dec()
}

// Hub is the process-local subscriber registry.
type Hub struct {
	mu    sync.RWMutex
	subs  map[int64]map[string]*Subscription
	gauge Gauge
}

// NewHub creates an empty registry. gauge may be nil.
func NewHub(gauge Gauge) *Hub {
	return &Hub{
		subs:  make(map[int64]map[string]*Subscription),
		gauge: gauge,
	}
}

// Subscribe registers handler for messages of sessionID.
func (h *Hub) Subscribe(sessionID int64, handler Handler) *Subscription {
	sub := &Subscription{ID: uuid.NewString(), SessionID: sessionID, handler: handler}
	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[string]*Subscription)
		h.subs[sessionID] = set
	}
	set[sub.ID] = sub
	h.mu.Unlock()
	if h.gauge != nil {
		h.gauge.Inc()
	}
	return sub
}

// Unsubscribe releases sub. It reports false when sub was already released.
func (h *Hub) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	h.mu.Lock()
	set, ok := h.subs[sub.SessionID]
	if ok {
		_, ok = set[sub.ID]
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.subs, sub.SessionID)
		}
	}
	h.mu.Unlock()
	if ok && h.gauge != nil {
		h.gauge.Dec()
	}
	return ok
}

// Dispatch invokes every handler subscribed to msg's session and returns how
// many handlers completed. A panicking handler does not affect the others.
func (h *Hub) Dispatch(msg domain.ChatMessage) int {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[msg.SessionID]))
	for _, sub := range h.subs[msg.SessionID] {
		handlers = append(handlers, sub.handler)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, handler := range handlers {
		if invoke(handler, msg) {
			delivered++
		}
	}
	return delivered
}

// Count returns the number of live subscriptions for sessionID.
func (h *Hub) Count(sessionID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func invoke(handler Handler, msg domain.ChatMessage) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	handler(msg)
	return true
}
