package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventArticlePublished      EventType = "article_published"
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventChatSessionClosed     EventType = "chat_session_closed"
	EventChatMessageSent       EventType = "chat_message_sent"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID *int64      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	CompanyID  int64       `json:"company_id"`
	EntityType string      `json:"entity_type"`
	EntityID   int64       `json:"entity_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// ActorFrom converts a workflow actor into event metadata.
func ActorFrom(actor domain.Actor) Actor {
	if actor.UserID == 0 {
		return Actor{Role: actor.Role}
	}
	id := actor.UserID
	return Actor{UserID: &id, Role: actor.Role}
}

// ArticlePublishedPayload payload.
type ArticlePublishedPayload struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Revision int    `json:"revision"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Subject  string                `json:"subject"`
	Status   domain.TicketStatus   `json:"status"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldAssigneeID *int64 `json:"old_assignee_id,omitempty"`
	AssigneeID    *int64 `json:"assignee_id,omitempty"`
}

// ChatSessionClosedPayload payload.
type ChatSessionClosedPayload struct {
	EndedAt time.Time `json:"ended_at"`
}

// ChatMessageSentPayload payload.
type ChatMessageSentPayload struct {
	MessageID   int64              `json:"message_id"`
	SenderType  domain.SenderType  `json:"sender_type"`
	MessageType domain.MessageType `json:"message_type"`
	BodyPreview string             `json:"body_preview"`
}
