package domain

import "time"

// NoteTargetType names the entity a note is attached to.
type NoteTargetType string

const (
	NoteTargetTicket  NoteTargetType = "ticket"
	NoteTargetContact NoteTargetType = "contact"
)

// Note is an internal free-text annotation written by a staff user.
type Note struct {
	ID         int64
	CompanyID  int64
	AuthorID   int64
	TargetType NoteTargetType
	TargetID   int64
	Body       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
