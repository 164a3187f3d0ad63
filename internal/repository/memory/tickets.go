package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	ticket.ID = r.s.nextID()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Tags == nil {
		ticket.Tags = []string{}
	}
	stored := *ticket
	stored.Tags = cloneStrings(ticket.Tags)
	stored.Metadata = ticket.Metadata.Clone()
	r.s.tickets[ticket.ID] = stored
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTicket(ticket), nil
}

func (r *ticketRepo) Patch(_ context.Context, id int64, patch repository.TicketPatch) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
	}
	if patch.Priority != nil {
		ticket.Priority = *patch.Priority
	}
	if patch.AssigneeSet {
		ticket.AssigneeID = patch.AssigneeID
	}
	if patch.TagsSet {
		ticket.Tags = cloneStrings(patch.Tags)
		if ticket.Tags == nil {
			ticket.Tags = []string{}
		}
	}
	ticket.UpdatedAt = r.s.now()
	r.s.tickets[id] = ticket
	return copyTicket(ticket), nil
}

func (r *ticketRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.tickets, id)
	return nil
}

func (r *ticketRepo) Search(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []domain.Ticket
	for _, ticket := range r.s.tickets {
		if matchesTicket(&ticket, filter) {
			matched = append(matched, *copyTicket(ticket))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

func matchesTicket(t *domain.Ticket, f repository.TicketFilter) bool {
	if t.CompanyID != f.CompanyID {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if len(f.AssigneeIDs) > 0 && (t.AssigneeID == nil || !contains(f.AssigneeIDs, *t.AssigneeID)) {
		return false
	}
	if !t.HasAllTags(f.Tags) {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(t.Subject), term) && !strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func copyTicket(t domain.Ticket) *domain.Ticket {
	t.Tags = cloneStrings(t.Tags)
	t.Metadata = t.Metadata.Clone()
	return &t
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	history.ID = r.s.nextID()
	history.CreatedAt = r.s.now()
	r.s.history = append(r.s.history, *history)
	return nil
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID int64, limit, offset int) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []domain.TicketHistory
	for _, entry := range r.s.history {
		if entry.TicketID == ticketID {
			matched = append(matched, entry)
		}
	}
	return paginate(matched, limit, offset), nil
}
