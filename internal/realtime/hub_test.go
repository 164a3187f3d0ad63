package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

type countingGauge struct{ n atomic.Int64 }

func (g *countingGauge) Inc() { g.n.Add(1) }
func (g *countingGauge) Dec() { g.n.Add(-1) }

func TestHubDeliversOnlyToSessionSubscribers(t *testing.T) {
	hub := NewHub(nil)
	var gotA, gotB []int64
	hub.Subscribe(1, func(msg domain.ChatMessage) { gotA = append(gotA, msg.ID) })
	hub.Subscribe(2, func(msg domain.ChatMessage) { gotB = append(gotB, msg.ID) })

	hub.Dispatch(domain.ChatMessage{ID: 10, SessionID: 1})
	hub.Dispatch(domain.ChatMessage{ID: 11, SessionID: 1})
	hub.Dispatch(domain.ChatMessage{ID: 12, SessionID: 2})

	assert.Equal(t, []int64{10, 11}, gotA)
	assert.Equal(t, []int64{12}, gotB)
}

func TestHubEverySubscriberReceivesEveryMessage(t *testing.T) {
	hub := NewHub(nil)
	var first, second []int64
	hub.Subscribe(7, func(msg domain.ChatMessage) { first = append(first, msg.ID) })
	hub.Subscribe(7, func(msg domain.ChatMessage) { second = append(second, msg.ID) })

	for id := int64(1); id <= 3; id++ {
		assert.Equal(t, 2, hub.Dispatch(domain.ChatMessage{ID: id, SessionID: 7}))
	}

	assert.Equal(t, []int64{1, 2, 3}, first)
	assert.Equal(t, []int64{1, 2, 3}, second)
}

func TestHubUnsubscribe(t *testing.T) {
	gauge := &countingGauge{}
	hub := NewHub(gauge)
	calls := 0
	sub := hub.Subscribe(3, func(domain.ChatMessage) { calls++ })
	assert.Equal(t, int64(1), gauge.n.Load())

	require.True(t, hub.Unsubscribe(sub))
	assert.False(t, hub.Unsubscribe(sub))
	assert.Equal(t, int64(0), gauge.n.Load())
	assert.Equal(t, 0, hub.Count(3))

	hub.Dispatch(domain.ChatMessage{ID: 1, SessionID: 3})
	assert.Zero(t, calls)
}

func TestHubPanickingHandlerIsIsolated(t *testing.T) {
	hub := NewHub(nil)
	received := 0
	hub.Subscribe(4, func(domain.ChatMessage) { panic("boom") })
	hub.Subscribe(4, func(domain.ChatMessage) { received++ })

	delivered := hub.Dispatch(domain.ChatMessage{ID: 1, SessionID: 4})

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, received)
}

func TestMemoryBrokerLateSubscriberMissesEarlierMessage(t *testing.T) {
	broker := NewMemoryBroker(NewHub(nil))
	var early, late []int64
	broker.Subscribe(9, func(msg domain.ChatMessage) { early = append(early, msg.ID) })

	require.NoError(t, broker.Publish(context.Background(), domain.ChatMessage{ID: 1, SessionID: 9}))
	sub := broker.Subscribe(9, func(msg domain.ChatMessage) { late = append(late, msg.ID) })
	require.NoError(t, broker.Publish(context.Background(), domain.ChatMessage{ID: 2, SessionID: 9}))
	broker.Unsubscribe(sub)

	assert.Equal(t, []int64{1, 2}, early)
	assert.Equal(t, []int64{2}, late)
}

func TestWireMessageRoundTrip(t *testing.T) {
	sender := int64(42)
	created := time.Date(2024, 5, 1, 9, 59, 0, 0, time.UTC)
	msg := domain.ChatMessage{
		ID:          5,
		SessionID:   9,
		CompanyID:   1,
		SenderType:  domain.SenderAgent,
		SenderID:    &sender,
		Message:     "Hi",
		MessageType: domain.MessageTypeText,
		CreatedAt:   created,
		UpdatedAt:   created,
	}

	payload, err := encodeMessage(msg)
	require.NoError(t, err)
	decoded, err := decodeMessage(string(payload))
	require.NoError(t, err)
	assert.Equal(t, msg.Message, decoded.Message)
	assert.Equal(t, sender, *decoded.SenderID)
	assert.True(t, created.Equal(decoded.CreatedAt))

	_, err = decodeMessage(`{"id":1}`)
	assert.Error(t, err)
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "chat:session:17", channelName("chat:session", 17))

	id, ok := sessionFromChannel("chat:session", "chat:session:17")
	assert.True(t, ok)
	assert.Equal(t, int64(17), id)

	_, ok = sessionFromChannel("chat:session", "other:17")
	assert.False(t, ok)
	_, ok = sessionFromChannel("chat:session", "chat:session:abc")
	assert.False(t, ok)
}
