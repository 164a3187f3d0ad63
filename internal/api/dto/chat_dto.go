package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateSessionRequest payload. Contacts open sessions for themselves, staff
// must name the contact.
type CreateSessionRequest struct {
	ContactID *int64         `json:"contact_id" validate:"omitempty,gt=0"`
	AgentID   *int64         `json:"agent_id" validate:"omitempty,gt=0"`
	TicketID  *int64         `json:"ticket_id" validate:"omitempty,gt=0"`
	Metadata  map[string]any `json:"metadata"`
}

// UpdateSessionRequest is a partial session update.
type UpdateSessionRequest struct {
	AgentID     *int64                    `json:"agent_id" validate:"omitempty,gt=0"`
	ClearAgent  bool                      `json:"clear_agent"`
	TicketID    *int64                    `json:"ticket_id" validate:"omitempty,gt=0"`
	ClearTicket bool                      `json:"clear_ticket"`
	Status      *domain.ChatSessionStatus `json:"status" validate:"omitempty,oneof=active closed archived"`
	EndedAt     *time.Time                `json:"ended_at"`
	Metadata    map[string]any            `json:"metadata"`
}

// SendMessageRequest payload.
type SendMessageRequest struct {
	Message     string             `json:"message" validate:"required"`
	MessageType domain.MessageType `json:"message_type" validate:"omitempty,oneof=text image file system"`
}

// SessionResponse is the public shape of a chat session.
type SessionResponse struct {
	ID            int64                    `json:"id"`
	CompanyID     int64                    `json:"company_id"`
	ContactID     *int64                   `json:"contact_id"`
	AgentID       *int64                   `json:"agent_id"`
	TicketID      *int64                   `json:"ticket_id"`
	Status        domain.ChatSessionStatus `json:"status"`
	StartedAt     time.Time                `json:"started_at"`
	EndedAt       *time.Time               `json:"ended_at"`
	LastMessageAt *time.Time               `json:"last_message_at"`
	Metadata      map[string]any           `json:"metadata,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// NewSessionResponse maps a domain session.
func NewSessionResponse(s *domain.ChatSession) SessionResponse {
	return SessionResponse{
		ID:            s.ID,
		CompanyID:     s.CompanyID,
		ContactID:     s.ContactID,
		AgentID:       s.AgentID,
		TicketID:      s.TicketID,
		Status:        s.Status,
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
		LastMessageAt: s.LastMessageAt,
		Metadata:      s.Metadata,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// MessageResponse is a stored chat message.
type MessageResponse struct {
	ID          int64              `json:"id"`
	SessionID   int64              `json:"session_id"`
	CompanyID   int64              `json:"company_id"`
	SenderType  domain.SenderType  `json:"sender_type"`
	SenderID    *int64             `json:"sender_id"`
	Message     string             `json:"message"`
	MessageType domain.MessageType `json:"message_type"`
	ReadAt      *time.Time         `json:"read_at"`
	CreatedAt   time.Time          `json:"created_at"`
}

// NewMessageResponse maps a domain chat message.
func NewMessageResponse(m *domain.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		SessionID:   m.SessionID,
		CompanyID:   m.CompanyID,
		SenderType:  m.SenderType,
		SenderID:    m.SenderID,
		Message:     m.Message,
		MessageType: m.MessageType,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
}

// NewMessageResponses maps a slice of chat messages.
func NewMessageResponses(messages []domain.ChatMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, NewMessageResponse(&messages[i]))
	}
	return out
}

// MarkReadResponse reports how many messages were marked.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
