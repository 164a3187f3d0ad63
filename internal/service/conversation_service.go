package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ConversationService builds the read-side timeline of a ticket from its chat
// sessions and notes. It never writes conversation items.
type ConversationService struct {
	tickets  repository.TicketRepository
	sessions repository.ChatSessionRepository
	messages repository.ChatMessageRepository
	notes    repository.NoteRepository
	logger   *zap.Logger
}

// ConversationDependencies bundles repositories for the aggregator.
type ConversationDependencies struct {
	TicketRepo  repository.TicketRepository
	SessionRepo repository.ChatSessionRepository
	MessageRepo repository.ChatMessageRepository
	NoteRepo    repository.NoteRepository
	Logger      *zap.Logger
}

// NoteInput describes an internal note.
type NoteInput struct {
	CompanyID  int64
	AuthorID   int64
	TargetType domain.NoteTargetType
	TargetID   int64
	Body       string
}

// NewConversationService constructs the service.
func NewConversationService(deps ConversationDependencies) *ConversationService {
	return &ConversationService{
		tickets:  deps.TicketRepo,
		sessions: deps.SessionRepo,
		messages: deps.MessageRepo,
		notes:    deps.NoteRepo,
		logger:   orNop(deps.Logger),
	}
}

// GetTicketConversation merges the chat messages of every session linked to
// the ticket with the ticket's notes, ordered by created_at ascending. Equal
// timestamps order chat messages before notes, then by id.
func (s *ConversationService) GetTicketConversation(ctx context.Context, ticketID int64) ([]domain.ConversationItem, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, storeError(s.logger, "ticket.get", resourceTicket, ticketID, err)
	}

	sessions, err := s.sessions.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError(s.logger, "chat_session.list_by_ticket", resourceTicket, ticketID, err)
	}
	var messages []domain.ChatMessage
	if len(sessions) > 0 {
		ids := make([]int64, len(sessions))
		for i, session := range sessions {
			ids[i] = session.ID
		}
		messages, err = s.messages.ListBySessions(ctx, ids)
		if err != nil {
			return nil, storeError(s.logger, "chat_message.list_by_sessions", resourceTicket, ticketID, err)
		}
	}

	notes, err := s.notes.ListByTarget(ctx, domain.NoteTargetTicket, ticketID)
	if err != nil {
		return nil, storeError(s.logger, "note.list_by_target", resourceTicket, ticketID, err)
	}

	return mergeConversation(messages, notes), nil
}

// AddNote stores an internal note on a ticket or contact.
func (s *ConversationService) AddNote(ctx context.Context, input NoteInput) (*domain.Note, error) {
	body := strings.TrimSpace(input.Body)
	details := map[string]any{}
	if input.CompanyID <= 0 {
		details["company_id"] = "required"
	}
	if input.AuthorID <= 0 {
		details["author_id"] = "required"
	}
	if input.TargetType != domain.NoteTargetTicket && input.TargetType != domain.NoteTargetContact {
		details["target_type"] = "must be ticket or contact"
	}
	if input.TargetID <= 0 {
		details["target_id"] = "required"
	}
	if body == "" {
		details["body"] = "required"
	}
	if len(details) > 0 {
		return nil, errorutil.NewValidationError("invalid note", details)
	}
	if input.TargetType == domain.NoteTargetTicket {
		if _, err := s.tickets.GetByID(ctx, input.TargetID); err != nil {
			return nil, storeError(s.logger, "ticket.get", resourceTicket, input.TargetID, err)
		}
	}

	note := &domain.Note{
		CompanyID:  input.CompanyID,
		AuthorID:   input.AuthorID,
		TargetType: input.TargetType,
		TargetID:   input.TargetID,
		Body:       body,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, storeError(s.logger, "note.create", "note", input.TargetID, err)
	}
	return note, nil
}

func mergeConversation(messages []domain.ChatMessage, notes []domain.Note) []domain.ConversationItem {
	items := make([]domain.ConversationItem, 0, len(messages)+len(notes))
	for _, msg := range messages {
		items = append(items, domain.ConversationItem{
			ID:         msg.ID,
			Type:       domain.ConversationChatMessage,
			Message:    msg.Message,
			SenderType: msg.SenderType,
			SenderID:   msg.SenderID,
			CreatedAt:  msg.CreatedAt,
			Metadata: map[string]any{
				"session_id":   msg.SessionID,
				"message_type": msg.MessageType,
			},
		})
	}
	for _, note := range notes {
		authorID := note.AuthorID
		items = append(items, domain.ConversationItem{
			ID:         note.ID,
			Type:       domain.ConversationNote,
			Message:    note.Body,
			SenderType: domain.SenderUser,
			SenderID:   &authorID,
			CreatedAt:  note.CreatedAt,
			Metadata: map[string]any{
				"target_type": note.TargetType,
				"target_id":   note.TargetID,
			},
		})
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Type != b.Type {
			return a.Type == domain.ConversationChatMessage
		}
		return a.ID < b.ID
	})
	return items
}

// SenderIDs groups the distinct sender ids of items by sender type so callers
// can resolve display names with one lookup per type.
func SenderIDs(items []domain.ConversationItem) map[domain.SenderType][]int64 {
	out := make(map[domain.SenderType][]int64)
	seen := make(map[domain.SenderType]map[int64]struct{})
	for _, item := range items {
		if item.SenderID == nil {
			continue
		}
		ids, ok := seen[item.SenderType]
		if !ok {
			ids = make(map[int64]struct{})
			seen[item.SenderType] = ids
		}
		if _, dup := ids[*item.SenderID]; dup {
			continue
		}
		ids[*item.SenderID] = struct{}{}
		out[item.SenderType] = append(out[item.SenderType], *item.SenderID)
	}
	return out
}
