package realtime

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Broker is the publish/subscribe channel service for chat sessions.
type Broker interface {
	Publish(ctx context.Context, msg domain.ChatMessage) error
	Subscribe(sessionID int64, handler Handler) *Subscription
	Unsubscribe(sub *Subscription)
}

// MemoryBroker delivers synchronously inside a single process.
type MemoryBroker struct {
	hub *Hub
}

// NewMemoryBroker wraps hub.
func NewMemoryBroker(hub *Hub) *MemoryBroker {
	return &MemoryBroker{hub: hub}
}

// Publish dispatches msg to the current subscribers of its session.
func (b *MemoryBroker) Publish(_ context.Context, msg domain.ChatMessage) error {
	b.hub.Dispatch(msg)
	return nil
}

// Subscribe registers handler with the local hub.
func (b *MemoryBroker) Subscribe(sessionID int64, handler Handler) *Subscription {
	return b.hub.Subscribe(sessionID, handler)
}

// Unsubscribe releases sub.
func (b *MemoryBroker) Unsubscribe(sub *Subscription) {
	b.hub.Unsubscribe(sub)
}
