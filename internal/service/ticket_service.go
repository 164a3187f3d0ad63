package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const resourceTicket = "ticket"

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	policy  TransitionPolicy
	events  eventPublisher
	metrics *observability.Metrics
	logger  *zap.Logger
	cfg     config.WorkflowConfig
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Policy      TransitionPolicy
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Config      config.WorkflowConfig
	Clock       func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CompanyID   int64
	ContactID   *int64
	AssigneeID  *int64
	Subject     string
	Description string
	Status      domain.TicketStatus
	Priority    domain.TicketPriority
	Tags        []string
	Metadata    domain.Metadata
}

// TicketSearchInput describes a filtered ticket search. Values inside one
// list are OR-ed, lists are AND-ed with each other.
type TicketSearchInput struct {
	CompanyID   int64
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	AssignedTo  []int64
	Tags        []string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	Limit       int
}

// TicketSearchResult is a page of tickets plus the unpaginated total.
type TicketSearchResult struct {
	Tickets []domain.Ticket
	Total   int
	Page    int
	Limit   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := orNop(deps.Logger)
	policy := deps.Policy
	if policy == nil {
		policy = PermissivePolicy{}
	}
	return &TicketService{
		tickets: deps.TicketRepo,
		history: deps.HistoryRepo,
		policy:  policy,
		events:  eventPublisher{dispatcher: deps.Dispatcher, logger: logger, now: orWallClock(deps.Clock)},
		metrics: deps.Metrics,
		logger:  logger,
		cfg:     deps.Config,
	}
}

// Policy returns the active status transition policy.
func (s *TicketService) Policy() TransitionPolicy {
	return s.policy
}

// Create stores a new ticket. No transition rules apply at creation.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	details := map[string]any{}
	if input.CompanyID <= 0 {
		details["company_id"] = "required"
	}
	if subject == "" {
		details["subject"] = "required"
	}
	status := input.Status
	if status == "" {
		status = domain.TicketStatusOpen
	}
	if !status.Valid() {
		details["status"] = "unknown status"
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	if !priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if len(details) > 0 {
		return nil, errorutil.NewValidationError("invalid ticket", details)
	}

	ticket := &domain.Ticket{
		CompanyID:   input.CompanyID,
		ContactID:   input.ContactID,
		AssigneeID:  input.AssigneeID,
		Subject:     subject,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Priority:    priority,
		Tags:        normalizeTags(input.Tags),
		Metadata:    input.Metadata.Clone(),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, storeError(s.logger, "ticket.create", resourceTicket, 0, err)
	}
	s.events.publish(ctx, s.ticketEvent(events.EventTicketCreated, actor, ticket, events.TicketCreatedPayload{
		Subject:  ticket.Subject,
		Status:   ticket.Status,
		Priority: ticket.Priority,
	}))
	return ticket, nil
}

// Get returns a ticket by id.
func (s *TicketService) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "ticket.get", resourceTicket, id, err)
	}
	return ticket, nil
}

// UpdateStatus writes a new status, subject to the configured policy.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, id int64, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, errorutil.NewValidationError("invalid ticket status", map[string]any{"status": string(status)})
	}
	current, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "ticket.get", resourceTicket, id, err)
	}
	if current.Status != status && !s.policy.Allowed(current.Status, status) {
		return nil, errorutil.NewInvalidTransition(resourceTicket, string(current.Status), string(status))
	}

	updated, err := s.tickets.Patch(ctx, id, repository.TicketPatch{Status: &status})
	if err != nil {
		return nil, storeError(s.logger, "ticket.update_status", resourceTicket, id, err)
	}
	if current.Status == status {
		return updated, nil
	}

	s.metrics.TicketStatusChanged(string(status))
	s.record(ctx, actor, id, domain.ChangeTypeStatus,
		map[string]any{"status": current.Status},
		map[string]any{"status": status})
	s.events.publish(ctx, s.ticketEvent(events.EventTicketStatusChanged, actor, updated, events.TicketStatusChangedPayload{
		OldStatus: current.Status,
		NewStatus: status,
	}))
	return updated, nil
}

// UpdatePriority writes a new priority. Any known priority is accepted.
func (s *TicketService) UpdatePriority(ctx context.Context, actor domain.Actor, id int64, priority domain.TicketPriority) (*domain.Ticket, error) {
	if !priority.Valid() {
		return nil, errorutil.NewValidationError("invalid ticket priority", map[string]any{"priority": string(priority)})
	}
	current, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "ticket.get", resourceTicket, id, err)
	}
	updated, err := s.tickets.Patch(ctx, id, repository.TicketPatch{Priority: &priority})
	if err != nil {
		return nil, storeError(s.logger, "ticket.update_priority", resourceTicket, id, err)
	}
	if current.Priority == priority {
		return updated, nil
	}

	s.record(ctx, actor, id, domain.ChangeTypePriority,
		map[string]any{"priority": current.Priority},
		map[string]any{"priority": priority})
	s.events.publish(ctx, s.ticketEvent(events.EventTicketPriorityChanged, actor, updated, events.TicketPriorityChangedPayload{
		OldPriority: current.Priority,
		NewPriority: priority,
	}))
	return updated, nil
}

// UpdateAssignment sets or, with a nil assignee, clears the ticket assignee.
func (s *TicketService) UpdateAssignment(ctx context.Context, actor domain.Actor, id int64, assigneeID *int64) (*domain.Ticket, error) {
	if assigneeID != nil && *assigneeID <= 0 {
		return nil, errorutil.NewValidationError("invalid assignee", map[string]any{"assignee_id": *assigneeID})
	}
	current, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "ticket.get", resourceTicket, id, err)
	}
	updated, err := s.tickets.Patch(ctx, id, repository.TicketPatch{AssigneeSet: true, AssigneeID: assigneeID})
	if err != nil {
		return nil, storeError(s.logger, "ticket.update_assignment", resourceTicket, id, err)
	}
	if sameInt64Ptr(current.AssigneeID, assigneeID) {
		return updated, nil
	}

	s.record(ctx, actor, id, domain.ChangeTypeAssignee,
		map[string]any{"assignee_id": current.AssigneeID},
		map[string]any{"assignee_id": assigneeID})
	s.events.publish(ctx, s.ticketEvent(events.EventTicketAssigned, actor, updated, events.TicketAssignedPayload{
		OldAssigneeID: current.AssigneeID,
		AssigneeID:    assigneeID,
	}))
	return updated, nil
}

// UpdateTags replaces the ticket tag set.
func (s *TicketService) UpdateTags(ctx context.Context, actor domain.Actor, id int64, tags []string) (*domain.Ticket, error) {
	current, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "ticket.get", resourceTicket, id, err)
	}
	normalized := normalizeTags(tags)
	updated, err := s.tickets.Patch(ctx, id, repository.TicketPatch{TagsSet: true, Tags: normalized})
	if err != nil {
		return nil, storeError(s.logger, "ticket.update_tags", resourceTicket, id, err)
	}
	s.record(ctx, actor, id, domain.ChangeTypeTags,
		map[string]any{"tags": current.Tags},
		map[string]any{"tags": normalized})
	return updated, nil
}

// Delete removes a ticket.
func (s *TicketService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if err := s.tickets.Delete(ctx, id); err != nil {
		return storeError(s.logger, "ticket.delete", resourceTicket, id, err)
	}
	s.logger.Info("ticket deleted", zap.Int64("ticket_id", id), zap.Int64("actor_id", actor.UserID))
	return nil
}

// History returns the audit trail of a ticket in chronological order.
func (s *TicketService) History(ctx context.Context, id int64, page, limit int) ([]domain.TicketHistory, error) {
	if _, err := s.tickets.GetByID(ctx, id); err != nil {
		return nil, storeError(s.logger, "ticket.get", resourceTicket, id, err)
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	_, limit, offset := pageWindow(page, limit, s.cfg)
	entries, err := s.history.ListByTicket(ctx, id, limit, offset)
	if err != nil {
		return nil, storeError(s.logger, "ticket.history", resourceTicket, id, err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

// FindFiltered runs a composable ticket search within one company.
func (s *TicketService) FindFiltered(ctx context.Context, input TicketSearchInput) (*TicketSearchResult, error) {
	details := map[string]any{}
	if input.CompanyID <= 0 {
		details["company_id"] = "required"
	}
	for _, status := range input.Statuses {
		if !status.Valid() {
			details["status"] = "unknown status " + string(status)
		}
	}
	for _, priority := range input.Priorities {
		if !priority.Valid() {
			details["priority"] = "unknown priority " + string(priority)
		}
	}
	if input.CreatedFrom != nil && input.CreatedTo != nil && input.CreatedFrom.After(*input.CreatedTo) {
		details["created_from"] = "must not be after created_to"
	}
	if len(details) > 0 {
		return nil, errorutil.NewValidationError("invalid ticket filter", details)
	}

	page, limit, offset := pageWindow(input.Page, input.Limit, s.cfg)
	tickets, total, err := s.tickets.Search(ctx, repository.TicketFilter{
		CompanyID:   input.CompanyID,
		Statuses:    input.Statuses,
		Priorities:  input.Priorities,
		AssigneeIDs: input.AssignedTo,
		Tags:        normalizeTags(input.Tags),
		Search:      strings.TrimSpace(input.Search),
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, storeError(s.logger, "ticket.search", resourceTicket, input.CompanyID, err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return &TicketSearchResult{Tickets: tickets, Total: total, Page: page, Limit: limit}, nil
}

func (s *TicketService) record(ctx context.Context, actor domain.Actor, ticketID int64, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if actor.UserID > 0 {
		entry.ChangedBy = int64Ptr(actor.UserID)
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("record ticket history",
			zap.Int64("ticket_id", ticketID),
			zap.String("change_type", string(changeType)),
			zap.Error(err))
	}
}

func (s *TicketService) ticketEvent(eventType events.EventType, actor domain.Actor, ticket *domain.Ticket, payload any) events.Event {
	return events.Event{
		Type:       eventType,
		CompanyID:  ticket.CompanyID,
		EntityType: resourceTicket,
		EntityID:   ticket.ID,
		Actor:      events.ActorFrom(actor),
		Payload:    payload,
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
