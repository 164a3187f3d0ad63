package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherRoutesByTypeAndWildcard(t *testing.T) {
	d := NewInMemoryDispatcher()
	var typed, all []EventType

	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		typed = append(typed, e.Type)
		return nil
	})
	d.SubscribeAll(func(_ context.Context, e Event) error {
		all = append(all, e.Type)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventArticlePublished}))

	assert.Equal(t, []EventType{EventTicketCreated}, typed)
	assert.Equal(t, []EventType{EventTicketCreated, EventArticlePublished}, all)
}

func TestDispatcherRunsAllHandlersOnError(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	ran := 0
	d.Subscribe(EventChatMessageSent, func(context.Context, Event) error { ran++; return boom })
	d.Subscribe(EventChatMessageSent, func(context.Context, Event) error { ran++; return nil })

	err := d.Publish(context.Background(), Event{Type: EventChatMessageSent})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, ran)
}

func TestKafkaSinkDisabledWithoutBrokers(t *testing.T) {
	sink := NewKafkaSink(nil, "topic", zap.NewNop())
	assert.False(t, sink.Enabled())
	assert.NoError(t, sink.Handle(context.Background(), Event{Type: EventTicketCreated}))
	assert.NoError(t, sink.Close())
}

func TestKafkaMessageKeyedByEntity(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := kafkaMessage(Event{
		ID:         "evt-1",
		Type:       EventTicketStatusChanged,
		EntityType: "ticket",
		EntityID:   42,
		Timestamp:  ts,
	})
	require.NoError(t, err)

	assert.Equal(t, "ticket:42", string(msg.Key))
	assert.Equal(t, ts, msg.Time)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ticket_status_changed", decoded["type"])
}
