package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) handle(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.ID
	}
	return out
}

func TestEventForwarderDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	fwd := NewEventForwarder(sink.handle, 8, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()
	fwd.Register(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	fwd.Start(ctx)

	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "a", Type: events.EventTicketCreated}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "b", Type: events.EventChatMessageSent}))

	assert.Eventually(t, func() bool { return len(sink.ids()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	fwd.Wait()
	assert.Equal(t, []string{"a", "b"}, sink.ids())
}

func TestEventForwarderDropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	fwd := NewEventForwarder(sink.handle, 1, zap.NewNop())

	require.NoError(t, fwd.Enqueue(context.Background(), events.Event{ID: "kept"}))
	require.NoError(t, fwd.Enqueue(context.Background(), events.Event{ID: "dropped"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fwd.Start(ctx)
	fwd.Wait()

	assert.Equal(t, []string{"kept"}, sink.ids())
}
