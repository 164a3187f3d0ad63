package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	defaultKeepAlive = 25 * time.Second
	backlogTimeout   = 10 * time.Second
)

// ChatHandler serves chat sessions, messages and the live stream.
type ChatHandler struct {
	service   *service.ChatService
	logger    *zap.Logger
	buffer    int
	keepAlive time.Duration

	closeOnce sync.Once
	closing   chan struct{}
}

// NewChatHandler constructs handler. buffer bounds the per-client stream
// queue; events for a client whose queue is full are dropped.
func NewChatHandler(chatService *service.ChatService, buffer int, logger *zap.Logger) *ChatHandler {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		service:   chatService,
		logger:    logger,
		buffer:    buffer,
		keepAlive: defaultKeepAlive,
		closing:   make(chan struct{}),
	}
}

// Close ends every open stream. Used during graceful shutdown.
func (h *ChatHandler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// CreateSession POST /chat/sessions.
func (h *ChatHandler) CreateSession(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()

	var session *domain.ChatSession
	switch {
	case actor.Role == domain.RoleContact && req.TicketID == nil && len(req.Metadata) == 0:
		session, err = h.service.CreateCustomerSession(ctx, actor.UserID, actor.CompanyID)
	case actor.Role == domain.RoleContact:
		session, err = h.service.CreateSession(ctx, service.CreateSessionInput{
			CompanyID: actor.CompanyID,
			ContactID: actor.UserID,
			TicketID:  req.TicketID,
			Metadata:  req.Metadata,
		})
	case req.ContactID == nil:
		return apperrors.NewValidationError("invalid payload", map[string]any{"contact_id": "required"})
	case req.TicketID == nil && len(req.Metadata) == 0:
		agentID := actor.UserID
		if req.AgentID != nil {
			agentID = *req.AgentID
		}
		session, err = h.service.CreateAgentSession(ctx, actor.CompanyID, *req.ContactID, agentID)
	default:
		session, err = h.service.CreateSession(ctx, service.CreateSessionInput{
			CompanyID: actor.CompanyID,
			ContactID: *req.ContactID,
			AgentID:   req.AgentID,
			TicketID:  req.TicketID,
			Metadata:  req.Metadata,
		})
	}
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// GetSession GET /chat/sessions/:id.
func (h *ChatHandler) GetSession(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	session, err := h.service.GetSession(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// UpdateSession PATCH /chat/sessions/:id.
func (h *ChatHandler) UpdateSession(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := h.service.UpdateSession(c.UserContext(), id, service.SessionPatch{
		AgentID:     req.AgentID,
		ClearAgent:  req.ClearAgent,
		TicketID:    req.TicketID,
		ClearTicket: req.ClearTicket,
		Status:      req.Status,
		EndedAt:     req.EndedAt,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// CloseSession POST /chat/sessions/:id/close.
func (h *ChatHandler) CloseSession(c *fiber.Ctx) error {
	return h.sessionAction(c, h.service.CloseSession)
}

// ArchiveSession POST /chat/sessions/:id/archive.
func (h *ChatHandler) ArchiveSession(c *fiber.Ctx) error {
	return h.sessionAction(c, h.service.ArchiveSession)
}

// Unassign POST /chat/sessions/:id/unassign.
func (h *ChatHandler) Unassign(c *fiber.Ctx) error {
	return h.sessionAction(c, h.service.Unassign)
}

// AssignToMe POST /chat/sessions/:id/assign.
func (h *ChatHandler) AssignToMe(c *fiber.Ctx) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	session, err := h.service.AssignToMe(c.UserContext(), id, actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// SendMessage POST /chat/sessions/:id/messages.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	senderID := actor.UserID
	msg, err := h.service.SendMessage(c.UserContext(), service.SendMessageInput{
		SessionID:   id,
		CompanyID:   actor.CompanyID,
		SenderType:  senderTypeFor(actor),
		SenderID:    &senderID,
		Text:        req.Message,
		MessageType: req.MessageType,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// ListMessages GET /chat/sessions/:id/messages?since=.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	since, err := parseTime(c.Query("since"), false)
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.UserContext(), id, since)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponses(msgs)})
}

// MarkRead POST /chat/sessions/:id/read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	n, err := h.service.MarkRead(c.UserContext(), id, senderTypeFor(actor))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MarkReadResponse{Updated: n}})
}

// Stream GET /chat/sessions/:id/stream serves new messages as Server-Sent
// Events. With ?since= the stored backlog after that instant is replayed
// first.
func (h *ChatHandler) Stream(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	since, err := parseTime(c.Query("since"), false)
	if err != nil {
		return err
	}
	if _, err := h.service.GetSession(c.UserContext(), id); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		h.streamSession(w, id, since)
	}))
	return nil
}

func (h *ChatHandler) sessionAction(c *fiber.Ctx, action func(context.Context, int64) (*domain.ChatSession, error)) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	session, err := action(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// streamSession subscribes to the session, replays the stored backlog after
// since and pumps live messages into w. The subscription lives exactly as long
// as the writer.
func (h *ChatHandler) streamSession(w *bufio.Writer, sessionID int64, since *time.Time) {
	live := make(chan domain.ChatMessage, h.buffer)
	sub := h.service.SubscribeToSession(sessionID, func(msg domain.ChatMessage) {
		select {
		case live <- msg:
		default:
			h.logger.Debug("chat stream buffer full, dropping message",
				zap.Int64("session_id", msg.SessionID), zap.Int64("message_id", msg.ID))
		}
	})
	defer h.service.UnsubscribeFromSession(sub)

	var backlog []domain.ChatMessage
	if since != nil {
		ctx, cancel := context.WithTimeout(context.Background(), backlogTimeout)
		msgs, err := h.service.ListMessages(ctx, sessionID, since)
		cancel()
		if err != nil {
			h.logger.Warn("chat stream backlog", zap.Int64("session_id", sessionID), zap.Error(err))
			writeStreamError(w, err)
			return
		}
		backlog = msgs
	}
	pumpStream(w, backlog, live, h.closing, h.keepAlive)
}

// pumpStream writes backlog then live messages until the client goes away or
// done is closed. Live messages already covered by the backlog are skipped.
func pumpStream(w *bufio.Writer, backlog []domain.ChatMessage, live <-chan domain.ChatMessage, done <-chan struct{}, keepAlive time.Duration) {
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := w.Flush(); err != nil {
		return
	}

	var lastID int64
	for i := range backlog {
		if err := writeEvent(w, &backlog[i]); err != nil {
			return
		}
		lastID = max(lastID, backlog[i].ID)
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg := <-live:
			if msg.ID <= lastID {
				continue
			}
			if err := writeEvent(w, &msg); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, msg *domain.ChatMessage) error {
	payload, err := json.Marshal(dto.NewMessageResponse(msg))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", msg.ID, payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeStreamError(w *bufio.Writer, err error) {
	derr := apperrors.ToDomainError(err)
	payload, _ := json.Marshal(fiber.Map{"code": derr.Code, "message": derr.Message})
	if _, err := fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload); err != nil {
		return
	}
	_ = w.Flush()
}

func senderTypeFor(actor domain.Actor) domain.SenderType {
	if actor.Role == domain.RoleContact {
		return domain.SenderContact
	}
	return domain.SenderAgent
}
