package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const resourceChatSession = "chat_session"

// ChatService manages chat session lifecycle, message ingestion and live fan-out.
type ChatService struct {
	sessions repository.ChatSessionRepository
	messages repository.ChatMessageRepository
	tickets  repository.TicketRepository
	broker   realtime.Broker
	events   eventPublisher
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	SessionRepo repository.ChatSessionRepository
	MessageRepo repository.ChatMessageRepository
	TicketRepo  repository.TicketRepository
	Broker      realtime.Broker
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
}

// CreateSessionInput describes a new chat session.
type CreateSessionInput struct {
	CompanyID int64
	ContactID int64
	AgentID   *int64
	TicketID  *int64
	Metadata  domain.Metadata
}

// SessionPatch is a partial session update. Nil pointers leave fields untouched.
type SessionPatch struct {
	AgentID     *int64
	ClearAgent  bool
	TicketID    *int64
	ClearTicket bool
	Status      *domain.ChatSessionStatus
	EndedAt     *time.Time
	Metadata    domain.Metadata
}

// SendMessageInput describes a chat message to store and fan out.
type SendMessageInput struct {
	SessionID   int64
	CompanyID   int64
	SenderType  domain.SenderType
	SenderID    *int64
	Text        string
	MessageType domain.MessageType
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	logger := orNop(deps.Logger)
	now := orWallClock(deps.Clock)
	broker := deps.Broker
	if broker == nil {
		broker = realtime.NewMemoryBroker(realtime.NewHub(nil))
	}
	return &ChatService{
		sessions: deps.SessionRepo,
		messages: deps.MessageRepo,
		tickets:  deps.TicketRepo,
		broker:   broker,
		events:   eventPublisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
		metrics:  deps.Metrics,
		logger:   logger,
		now:      now,
	}
}

// CreateCustomerSession opens a new active session for a contact.
func (s *ChatService) CreateCustomerSession(ctx context.Context, contactID, companyID int64) (*domain.ChatSession, error) {
	return s.CreateSession(ctx, CreateSessionInput{CompanyID: companyID, ContactID: contactID})
}

// CreateAgentSession opens a new active session already assigned to agentID.
func (s *ChatService) CreateAgentSession(ctx context.Context, companyID, contactID, agentID int64) (*domain.ChatSession, error) {
	if agentID <= 0 {
		return nil, errorutil.NewValidationError("invalid chat session", map[string]any{"agent_id": "required"})
	}
	return s.CreateSession(ctx, CreateSessionInput{CompanyID: companyID, ContactID: contactID, AgentID: &agentID})
}

// CreateSession always opens a new active session. Several active sessions
// may exist for the same contact.
func (s *ChatService) CreateSession(ctx context.Context, input CreateSessionInput) (*domain.ChatSession, error) {
	details := map[string]any{}
	if input.CompanyID <= 0 {
		details["company_id"] = "required"
	}
	if input.ContactID <= 0 {
		details["contact_id"] = "required"
	}
	if input.AgentID != nil && *input.AgentID <= 0 {
		details["agent_id"] = "must be positive"
	}
	if len(details) > 0 {
		return nil, errorutil.NewValidationError("invalid chat session", details)
	}
	if input.TicketID != nil {
		if err := s.ensureTicket(ctx, *input.TicketID); err != nil {
			return nil, err
		}
	}

	metadata := input.Metadata.Clone()
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	session := &domain.ChatSession{
		CompanyID: input.CompanyID,
		ContactID: int64Ptr(input.ContactID),
		AgentID:   input.AgentID,
		TicketID:  input.TicketID,
		Status:    domain.ChatSessionActive,
		StartedAt: s.now(),
		Metadata:  metadata,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, storeError(s.logger, "chat_session.create", resourceChatSession, 0, err)
	}
	return session, nil
}

// GetSession returns a session by id.
func (s *ChatService) GetSession(ctx context.Context, id int64) (*domain.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "chat_session.get", resourceChatSession, id, err)
	}
	return session, nil
}

// UpdateSession applies a generic patch. Status may only move forward one
// step; ended_at is written only when the caller supplies it.
func (s *ChatService) UpdateSession(ctx context.Context, id int64, patch SessionPatch) (*domain.ChatSession, error) {
	details := map[string]any{}
	if patch.ClearAgent && patch.AgentID != nil {
		details["agent_id"] = "cannot set and clear at once"
	}
	if patch.AgentID != nil && *patch.AgentID <= 0 {
		details["agent_id"] = "must be positive"
	}
	if patch.ClearTicket && patch.TicketID != nil {
		details["ticket_id"] = "cannot set and clear at once"
	}
	if patch.Status != nil && !patch.Status.Valid() {
		details["status"] = "unknown status"
	}
	if len(details) > 0 {
		return nil, errorutil.NewValidationError("invalid chat session patch", details)
	}

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "chat_session.get", resourceChatSession, id, err)
	}

	var repoPatch repository.ChatSessionPatch
	if patch.Status != nil && *patch.Status != session.Status {
		if !sessionTransitionAllowed(session.Status, *patch.Status) {
			return nil, errorutil.NewInvalidTransition(resourceChatSession, string(session.Status), string(*patch.Status))
		}
		repoPatch.Status = patch.Status
	}
	if patch.AgentID != nil || patch.ClearAgent {
		repoPatch.AgentSet = true
		repoPatch.AgentID = patch.AgentID
	}
	if patch.TicketID != nil {
		if err := s.ensureTicket(ctx, *patch.TicketID); err != nil {
			return nil, err
		}
	}
	if patch.TicketID != nil || patch.ClearTicket {
		repoPatch.TicketSet = true
		repoPatch.TicketID = patch.TicketID
	}
	repoPatch.EndedAt = patch.EndedAt
	if patch.Metadata != nil {
		repoPatch.Metadata = patch.Metadata.Clone()
	}
	if repoPatch.Empty() {
		return session, nil
	}

	updated, err := s.sessions.Patch(ctx, id, repoPatch)
	if err != nil {
		return nil, storeError(s.logger, "chat_session.update", resourceChatSession, id, err)
	}
	return updated, nil
}

// CloseSession sets status=closed and ended_at=now in one write. Closing a
// closed session returns it unchanged.
func (s *ChatService) CloseSession(ctx context.Context, id int64) (*domain.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "chat_session.get", resourceChatSession, id, err)
	}
	switch session.Status {
	case domain.ChatSessionClosed:
		return session, nil
	case domain.ChatSessionArchived:
		return nil, errorutil.NewInvalidTransition(resourceChatSession, string(session.Status), string(domain.ChatSessionClosed))
	}

	closed := domain.ChatSessionClosed
	endedAt := s.now()
	updated, err := s.sessions.Patch(ctx, id, repository.ChatSessionPatch{Status: &closed, EndedAt: &endedAt})
	if err != nil {
		return nil, storeError(s.logger, "chat_session.close", resourceChatSession, id, err)
	}
	s.events.publish(ctx, events.Event{
		Type:       events.EventChatSessionClosed,
		CompanyID:  updated.CompanyID,
		EntityType: resourceChatSession,
		EntityID:   updated.ID,
		Payload:    events.ChatSessionClosedPayload{EndedAt: endedAt},
	})
	return updated, nil
}

// ArchiveSession moves a closed session to archived.
func (s *ChatService) ArchiveSession(ctx context.Context, id int64) (*domain.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "chat_session.get", resourceChatSession, id, err)
	}
	switch session.Status {
	case domain.ChatSessionArchived:
		return session, nil
	case domain.ChatSessionActive:
		return nil, errorutil.NewInvalidTransition(resourceChatSession, string(session.Status), string(domain.ChatSessionArchived))
	}
	archived := domain.ChatSessionArchived
	updated, err := s.sessions.Patch(ctx, id, repository.ChatSessionPatch{Status: &archived})
	if err != nil {
		return nil, storeError(s.logger, "chat_session.archive", resourceChatSession, id, err)
	}
	return updated, nil
}

// AssignToMe sets the session agent. Authorization is the caller's concern.
func (s *ChatService) AssignToMe(ctx context.Context, id, agentID int64) (*domain.ChatSession, error) {
	return s.UpdateSession(ctx, id, SessionPatch{AgentID: &agentID})
}

// Unassign clears the session agent.
func (s *ChatService) Unassign(ctx context.Context, id int64) (*domain.ChatSession, error) {
	return s.UpdateSession(ctx, id, SessionPatch{ClearAgent: true})
}

// SendMessage stores a message, bumps the session's last_message_at and then
// publishes it to live subscribers. A failed publish is logged and counted;
// the stored message is still returned.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*domain.ChatMessage, error) {
	text := strings.TrimSpace(input.Text)
	messageType := input.MessageType
	if messageType == "" {
		messageType = domain.MessageTypeText
	}
	details := map[string]any{}
	if input.SessionID <= 0 {
		details["session_id"] = "required"
	}
	if input.CompanyID <= 0 {
		details["company_id"] = "required"
	}
	if !input.SenderType.Valid() {
		details["sender_type"] = "must be one of contact, agent, system"
	}
	if text == "" {
		details["message"] = "required"
	}
	if !messageType.Valid() {
		details["message_type"] = "unknown message type"
	}
	if len(details) > 0 {
		return nil, errorutil.NewValidationError("invalid chat message", details)
	}

	if _, err := s.sessions.GetByID(ctx, input.SessionID); err != nil {
		return nil, storeError(s.logger, "chat_session.get", resourceChatSession, input.SessionID, err)
	}

	msg := &domain.ChatMessage{
		SessionID:   input.SessionID,
		CompanyID:   input.CompanyID,
		SenderType:  input.SenderType,
		SenderID:    input.SenderID,
		Message:     text,
		MessageType: messageType,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, storeError(s.logger, "chat_message.create", "chat_message", input.SessionID, err)
	}
	s.metrics.ChatMessageSent(string(msg.SenderType))

	lastMessageAt := msg.CreatedAt
	if _, err := s.sessions.Patch(ctx, input.SessionID, repository.ChatSessionPatch{LastMessageAt: &lastMessageAt}); err != nil {
		s.logger.Warn("bump last_message_at",
			zap.Int64("session_id", input.SessionID),
			zap.Int64("message_id", msg.ID),
			zap.Error(err))
	}

	if err := s.broker.Publish(ctx, *msg); err != nil {
		s.metrics.FanoutFailed()
		s.logger.Warn("chat fan-out failed",
			zap.Int64("session_id", msg.SessionID),
			zap.Int64("message_id", msg.ID),
			zap.Error(err))
	}

	s.events.publish(ctx, events.Event{
		Type:       events.EventChatMessageSent,
		CompanyID:  msg.CompanyID,
		EntityType: resourceChatSession,
		EntityID:   msg.SessionID,
		Actor:      senderActor(msg.SenderType, msg.SenderID),
		Payload: events.ChatMessageSentPayload{
			MessageID:   msg.ID,
			SenderType:  msg.SenderType,
			MessageType: msg.MessageType,
			BodyPreview: stringPreview(msg.Message, 120),
		},
	})
	return msg, nil
}

// ListMessages returns the stored messages of a session, optionally only
// those created strictly after since. Clients use it to resync after a
// missed live event.
func (s *ChatService) ListMessages(ctx context.Context, sessionID int64, since *time.Time) ([]domain.ChatMessage, error) {
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, storeError(s.logger, "chat_session.get", resourceChatSession, sessionID, err)
	}
	msgs, err := s.messages.ListBySession(ctx, sessionID, since)
	if err != nil {
		return nil, storeError(s.logger, "chat_message.list", "chat_message", sessionID, err)
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

// MarkRead stamps read_at on unread messages written by the other side.
func (s *ChatService) MarkRead(ctx context.Context, sessionID int64, reader domain.SenderType) (int64, error) {
	if reader != domain.SenderContact && reader != domain.SenderAgent {
		return 0, errorutil.NewValidationError("invalid reader", map[string]any{"reader": string(reader)})
	}
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return 0, storeError(s.logger, "chat_session.get", resourceChatSession, sessionID, err)
	}
	n, err := s.messages.MarkRead(ctx, sessionID, reader, s.now())
	if err != nil {
		return 0, storeError(s.logger, "chat_message.mark_read", "chat_message", sessionID, err)
	}
	return n, nil
}

// SubscribeToSession registers handler for every message published to the
// session from now on. Earlier messages are never replayed.
func (s *ChatService) SubscribeToSession(sessionID int64, handler realtime.Handler) *realtime.Subscription {
	return s.broker.Subscribe(sessionID, handler)
}

// UnsubscribeFromSession releases a subscription.
func (s *ChatService) UnsubscribeFromSession(sub *realtime.Subscription) {
	if sub == nil {
		return
	}
	s.broker.Unsubscribe(sub)
}

func (s *ChatService) ensureTicket(ctx context.Context, ticketID int64) error {
	if s.tickets == nil {
		return nil
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return storeError(s.logger, "ticket.get", resourceTicket, ticketID, err)
	}
	return nil
}

// sessionTransitionAllowed permits the forward moves active->closed and closed->archived.
func sessionTransitionAllowed(from, to domain.ChatSessionStatus) bool {
	switch from {
	case domain.ChatSessionActive:
		return to == domain.ChatSessionClosed
	case domain.ChatSessionClosed:
		return to == domain.ChatSessionArchived
	}
	return false
}

func senderActor(senderType domain.SenderType, senderID *int64) events.Actor {
	role := domain.RoleContact
	if senderType != domain.SenderContact {
		role = domain.RoleAgent
	}
	if senderType == domain.SenderSystem {
		role = ""
	}
	return events.Actor{UserID: senderID, Role: role}
}
