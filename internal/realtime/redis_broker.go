package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

// RedisBroker publishes chat messages on per-session Redis channels and feeds
// one pattern subscription per process into the local hub.
type RedisBroker struct {
	client *redis.Client
	prefix string
	hub    *Hub
	logger *zap.Logger
}

// NewRedisBroker builds a broker. Call Run to start receiving.
func NewRedisBroker(client *redis.Client, prefix string, hub *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, prefix: prefix, hub: hub, logger: logger}
}

// Publish sends msg to the session's channel.
func (b *RedisBroker) Publish(ctx context.Context, msg domain.ChatMessage) error {
	payload, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelName(b.prefix, msg.SessionID), payload).Err()
}

// Subscribe registers handler with the local hub.
func (b *RedisBroker) Subscribe(sessionID int64, handler Handler) *Subscription {
	return b.hub.Subscribe(sessionID, handler)
}

// Unsubscribe releases sub.
func (b *RedisBroker) Unsubscribe(sub *Subscription) {
	b.hub.Unsubscribe(sub)
}

// Run consumes the pattern subscription until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+":*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	b.logger.Info("chat fan-out subscribed", zap.String("pattern", b.prefix+":*"))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := decodeMessage(raw.Payload)
			if err != nil {
				b.logger.Warn("dropping malformed chat event", zap.String("channel", raw.Channel), zap.Error(err))
				continue
			}
			if id, ok := sessionFromChannel(b.prefix, raw.Channel); !ok || id != msg.SessionID {
				b.logger.Warn("chat event channel mismatch", zap.String("channel", raw.Channel), zap.Int64("session_id", msg.SessionID))
				continue
			}
			b.hub.Dispatch(msg)
		}
	}
}

func channelName(prefix string, sessionID int64) string {
	return prefix + ":" + strconv.FormatInt(sessionID, 10)
}

func sessionFromChannel(prefix, channel string) (int64, bool) {
	raw, ok := strings.CutPrefix(channel, prefix+":")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

type wireMessage struct {
	ID          int64              `json:"id"`
	SessionID   int64              `json:"session_id"`
	CompanyID   int64              `json:"company_id"`
	SenderType  domain.SenderType  `json:"sender_type"`
	SenderID    *int64             `json:"sender_id,omitempty"`
	Message     string             `json:"message"`
	MessageType domain.MessageType `json:"message_type"`
	ReadAt      *time.Time         `json:"read_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func encodeMessage(msg domain.ChatMessage) ([]byte, error) {
	return json.Marshal(wireMessage(msg))
}

func decodeMessage(payload string) (domain.ChatMessage, error) {
	var wire wireMessage
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return domain.ChatMessage{}, err
	}
	if wire.SessionID == 0 {
		return domain.ChatMessage{}, fmt.Errorf("chat event without session id")
	}
	return domain.ChatMessage(wire), nil
}
