package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus   TicketChangeType = "status_change"
	ChangeTypePriority TicketChangeType = "priority_change"
	ChangeTypeAssignee TicketChangeType = "assignee_change"
	ChangeTypeTags     TicketChangeType = "tags_change"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         int64
	TicketID   int64
	ChangedBy  *int64
	ChangeType TicketChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
