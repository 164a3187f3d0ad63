package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusWaiting    TicketStatus = "waiting"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known ticket priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          int64
	CompanyID   int64
	ContactID   *int64
	AssigneeID  *int64
	Subject     string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	Tags        []string
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasAllTags reports whether every tag in want is present on the ticket.
func (t *Ticket) HasAllTags(want []string) bool {
	if len(want) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(t.Tags))
	for _, tag := range t.Tags {
		have[tag] = struct{}{}
	}
	for _, tag := range want {
		if _, ok := have[tag]; !ok {
			return false
		}
	}
	return true
}
