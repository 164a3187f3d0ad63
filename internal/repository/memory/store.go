// Package memory provides process-local repositories used when no Postgres
// DSN is configured and by tests.
package memory

import (
	"sync"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Store holds every table in memory behind a single mutex.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int64

	articles map[int64]domain.Article
	tickets  map[int64]domain.Ticket
	history  []domain.TicketHistory
	sessions map[int64]domain.ChatSession
	messages []domain.ChatMessage
	notes    []domain.Note
}

// NewStore returns an empty store using the wall clock.
func NewStore() *Store {
	return &Store{
		now:      time.Now,
		articles: make(map[int64]domain.Article),
		tickets:  make(map[int64]domain.Ticket),
		sessions: make(map[int64]domain.ChatSession),
	}
}

// SetClock overrides the timestamp source for created_at/updated_at.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// Repositories bundles every repository backed by the store.
type Repositories struct {
	Articles      repository.ArticleRepository
	Tickets       repository.TicketRepository
	TicketHistory repository.TicketHistoryRepository
	ChatSessions  repository.ChatSessionRepository
	ChatMessages  repository.ChatMessageRepository
	Notes         repository.NoteRepository
}

// Repositories returns the repository set for the store.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Articles:      &articleRepo{s},
		Tickets:       &ticketRepo{s},
		TicketHistory: &historyRepo{s},
		ChatSessions:  &sessionRepo{s},
		ChatMessages:  &messageRepo{s},
		Notes:         &noteRepo{s},
	}
}
