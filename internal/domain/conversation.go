package domain

import "time"

// ConversationItemType discriminates the source of a conversation item.
type ConversationItemType string

const (
	ConversationChatMessage ConversationItemType = "chat_message"
	ConversationNote        ConversationItemType = "note"
)

// ConversationItem is a read-time projection of a chat message or note on a ticket.
type ConversationItem struct {
	ID         int64
	Type       ConversationItemType
	Message    string
	SenderType SenderType
	SenderID   *int64
	CreatedAt  time.Time
	Metadata   map[string]any
}
