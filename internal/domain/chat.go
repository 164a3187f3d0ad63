package domain

import "time"

// ChatSessionStatus enumerates chat session states. Sessions only move forward.
type ChatSessionStatus string

const (
	ChatSessionActive   ChatSessionStatus = "active"
	ChatSessionClosed   ChatSessionStatus = "closed"
	ChatSessionArchived ChatSessionStatus = "archived"
)

// Valid reports whether s is a known session status.
func (s ChatSessionStatus) Valid() bool {
	switch s {
	case ChatSessionActive, ChatSessionClosed, ChatSessionArchived:
		return true
	}
	return false
}

// SenderType identifies who wrote a chat message.
type SenderType string

const (
	SenderContact SenderType = "contact"
	SenderAgent   SenderType = "agent"
	SenderSystem  SenderType = "system"
	// SenderUser marks internal notes written by a staff user.
	SenderUser SenderType = "user"
)

// Valid reports whether s may author a chat message.
func (s SenderType) Valid() bool {
	switch s {
	case SenderContact, SenderAgent, SenderSystem:
		return true
	}
	return false
}

// MessageType distinguishes chat payload kinds.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// ChatSession is a conversation between a contact and, optionally, an agent.
type ChatSession struct {
	ID            int64
	CompanyID     int64
	ContactID     *int64
	AgentID       *int64
	TicketID      *int64
	Status        ChatSessionStatus
	StartedAt     time.Time
	EndedAt       *time.Time
	LastMessageAt *time.Time
	Metadata      Metadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ChatMessage is immutable once stored, except for ReadAt.
type ChatMessage struct {
	ID          int64
	SessionID   int64
	CompanyID   int64
	SenderType  SenderType
	SenderID    *int64
	Message     string
	MessageType MessageType
	ReadAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Metadata is a schemaless bag attached to sessions and tickets.
type Metadata map[string]any

// Clone returns a shallow copy safe to mutate at the top level.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
