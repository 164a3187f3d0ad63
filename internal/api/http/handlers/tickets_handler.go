package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service       *service.TicketService
	conversations *service.ConversationService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, conversations *service.ConversationService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, conversations: conversations}
}

// CreateTicket POST /tickets. Contacts always file tickets for themselves.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	input := service.TicketCreateInput{
		CompanyID:   actor.CompanyID,
		ContactID:   req.ContactID,
		AssigneeID:  req.AssigneeID,
		Subject:     req.Subject,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Tags:        req.Tags,
		Metadata:    req.Metadata,
	}
	if actor.Role == domain.RoleContact {
		contactID := actor.UserID
		input.ContactID = &contactID
		input.AssigneeID = nil
	}
	ticket, err := h.service.Create(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	input, err := parseTicketQuery(c, actor.CompanyID)
	if err != nil {
		return err
	}
	result, err := h.service.FindFiltered(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketResponses(result.Tickets),
		"meta": dto.PageMeta{Page: result.Page, Limit: result.Limit, Total: result.Total},
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), actor, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdatePriority PATCH /tickets/:id/priority.
func (h *TicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketPriorityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.UpdatePriority(c.UserContext(), actor, id, req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateAssignment PATCH /tickets/:id/assignment.
func (h *TicketsHandler) UpdateAssignment(c *fiber.Ctx) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketAssignmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateAssignment(c.UserContext(), actor, id, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTags PUT /tickets/:id/tags.
func (h *TicketsHandler) UpdateTags(c *fiber.Ctx) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketTagsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateTags(c.UserContext(), actor, id, req.Tags)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), id, parseInt(c.Query("page"), 1), parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketHistoryResponses(entries)})
}

// Conversation GET /tickets/:id/conversation.
func (h *TicketsHandler) Conversation(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.conversations.GetTicketConversation(c.UserContext(), id)
	if err != nil {
		return err
	}
	senders := service.SenderIDs(items)
	return c.JSON(fiber.Map{
		"data": dto.NewConversationResponses(items),
		"meta": fiber.Map{"senders": senders},
	})
}

// AddNote POST /tickets/:id/notes.
func (h *TicketsHandler) AddNote(c *fiber.Ctx) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req dto.CreateNoteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	note, err := h.conversations.AddNote(c.UserContext(), service.NoteInput{
		CompanyID:  actor.CompanyID,
		AuthorID:   actor.UserID,
		TargetType: domain.NoteTargetTicket,
		TargetID:   id,
		Body:       req.Body,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewNoteResponse(note)})
}

func actorAndID(c *fiber.Ctx) (domain.Actor, int64, error) {
	actor, err := actorFrom(c)
	if err != nil {
		return domain.Actor{}, 0, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return domain.Actor{}, 0, err
	}
	return actor, id, nil
}

func parseTicketQuery(c *fiber.Ctx, companyID int64) (service.TicketSearchInput, error) {
	input := service.TicketSearchInput{
		CompanyID: companyID,
		Tags:      splitCSV(c.Query("tags")),
		Search:    c.Query("search"),
		Page:      parseInt(c.Query("page"), 1),
		Limit:     parseInt(c.Query("limit"), 0),
	}
	for _, part := range splitCSV(c.Query("status")) {
		input.Statuses = append(input.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitCSV(c.Query("priority")) {
		input.Priorities = append(input.Priorities, domain.TicketPriority(part))
	}
	for _, part := range splitCSV(c.Query("assigned_to")) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return input, apperrors.NewValidationError("invalid assigned_to", map[string]any{"value": part})
		}
		input.AssignedTo = append(input.AssignedTo, id)
	}
	var err error
	if input.CreatedFrom, err = parseTime(c.Query("created_from"), false); err != nil {
		return input, err
	}
	if input.CreatedTo, err = parseTime(c.Query("created_to"), true); err != nil {
		return input, err
	}
	return input, nil
}
