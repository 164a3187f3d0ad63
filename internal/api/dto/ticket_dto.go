package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ContactID   *int64                `json:"contact_id" validate:"omitempty,gt=0"`
	AssigneeID  *int64                `json:"assignee_id" validate:"omitempty,gt=0"`
	Subject     string                `json:"subject" validate:"required,max=255"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status" validate:"omitempty,oneof=open in_progress waiting resolved closed"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Tags        []string              `json:"tags" validate:"omitempty,dive,max=64"`
	Metadata    map[string]any        `json:"metadata"`
}

// UpdateTicketStatusRequest payload.
type UpdateTicketStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required,oneof=open in_progress waiting resolved closed"`
}

// UpdateTicketPriorityRequest payload.
type UpdateTicketPriorityRequest struct {
	Priority domain.TicketPriority `json:"priority" validate:"required,oneof=low normal high urgent"`
}

// UpdateTicketAssignmentRequest payload. A null assignee unassigns the ticket.
type UpdateTicketAssignmentRequest struct {
	AssigneeID *int64 `json:"assignee_id" validate:"omitempty,gt=0"`
}

// UpdateTicketTagsRequest replaces the ticket's tag set.
type UpdateTicketTagsRequest struct {
	Tags []string `json:"tags" validate:"dive,max=64"`
}

// CreateNoteRequest payload.
type CreateNoteRequest struct {
	Body string `json:"body" validate:"required"`
}

// TicketResponse is the public shape of a ticket.
type TicketResponse struct {
	ID          int64                 `json:"id"`
	CompanyID   int64                 `json:"company_id"`
	ContactID   *int64                `json:"contact_id"`
	AssigneeID  *int64                `json:"assignee_id"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TicketResponse{
		ID:          t.ID,
		CompanyID:   t.CompanyID,
		ContactID:   t.ContactID,
		AssigneeID:  t.AssigneeID,
		Subject:     t.Subject,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Tags:        tags,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTicketResponses maps a slice of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID         int64                   `json:"id"`
	TicketID   int64                   `json:"ticket_id"`
	ChangedBy  *int64                  `json:"changed_by"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	OldValue   map[string]any          `json:"old_value"`
	NewValue   map[string]any          `json:"new_value"`
	CreatedAt  time.Time               `json:"created_at"`
}

// NewTicketHistoryResponses maps history entries.
func NewTicketHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, TicketHistoryResponse{
			ID:         entry.ID,
			TicketID:   entry.TicketID,
			ChangedBy:  entry.ChangedBy,
			ChangeType: entry.ChangeType,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}

// NoteResponse is an internal note.
type NoteResponse struct {
	ID         int64                 `json:"id"`
	CompanyID  int64                 `json:"company_id"`
	AuthorID   int64                 `json:"author_id"`
	TargetType domain.NoteTargetType `json:"target_type"`
	TargetID   int64                 `json:"target_id"`
	Body       string                `json:"body"`
	CreatedAt  time.Time             `json:"created_at"`
}

// NewNoteResponse maps a domain note.
func NewNoteResponse(n *domain.Note) NoteResponse {
	return NoteResponse{
		ID:         n.ID,
		CompanyID:  n.CompanyID,
		AuthorID:   n.AuthorID,
		TargetType: n.TargetType,
		TargetID:   n.TargetID,
		Body:       n.Body,
		CreatedAt:  n.CreatedAt,
	}
}

// ConversationItemResponse is one entry of a ticket conversation.
type ConversationItemResponse struct {
	ID         int64                       `json:"id"`
	Type       domain.ConversationItemType `json:"type"`
	Message    string                      `json:"message"`
	SenderType domain.SenderType           `json:"sender_type"`
	SenderID   *int64                      `json:"sender_id"`
	CreatedAt  time.Time                   `json:"created_at"`
	Metadata   map[string]any              `json:"metadata"`
}

// NewConversationResponses maps conversation items.
func NewConversationResponses(items []domain.ConversationItem) []ConversationItemResponse {
	out := make([]ConversationItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, ConversationItemResponse{
			ID:         item.ID,
			Type:       item.Type,
			Message:    item.Message,
			SenderType: item.SenderType,
			SenderID:   item.SenderID,
			CreatedAt:  item.CreatedAt,
			Metadata:   item.Metadata,
		})
	}
	return out
}
