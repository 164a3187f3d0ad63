package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(_ context.Context, session *domain.ChatSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	session.ID = r.s.nextID()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Metadata == nil {
		session.Metadata = domain.Metadata{}
	}
	stored := *session
	stored.Metadata = session.Metadata.Clone()
	r.s.sessions[session.ID] = stored
	return nil
}

func (r *sessionRepo) GetByID(_ context.Context, id int64) (*domain.ChatSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(session), nil
}

func (r *sessionRepo) Patch(_ context.Context, id int64, patch repository.ChatSessionPatch) (*domain.ChatSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.AgentSet {
		session.AgentID = patch.AgentID
	}
	if patch.TicketSet {
		session.TicketID = patch.TicketID
	}
	if patch.Status != nil {
		session.Status = *patch.Status
	}
	if patch.EndedAt != nil {
		endedAt := *patch.EndedAt
		session.EndedAt = &endedAt
	}
	if patch.LastMessageAt != nil {
		last := *patch.LastMessageAt
		session.LastMessageAt = &last
	}
	if patch.Metadata != nil {
		session.Metadata = patch.Metadata.Clone()
	}
	session.UpdatedAt = r.s.now()
	r.s.sessions[id] = session
	return copySession(session), nil
}

func (r *sessionRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.ChatSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.ChatSession
	for _, session := range r.s.sessions {
		if session.TicketID != nil && *session.TicketID == ticketID {
			result = append(result, *copySession(session))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func copySession(s domain.ChatSession) *domain.ChatSession {
	s.Metadata = s.Metadata.Clone()
	return &s
}

type messageRepo struct{ s *Store }

func (r *messageRepo) Create(_ context.Context, msg *domain.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	msg.ID = r.s.nextID()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	r.s.messages = append(r.s.messages, *msg)
	return nil
}

func (r *messageRepo) ListBySession(_ context.Context, sessionID int64, since *time.Time) ([]domain.ChatMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.ChatMessage
	for _, msg := range r.s.messages {
		if msg.SessionID != sessionID {
			continue
		}
		if since != nil && !msg.CreatedAt.After(*since) {
			continue
		}
		result = append(result, msg)
	}
	return result, nil
}

func (r *messageRepo) ListBySessions(_ context.Context, sessionIDs []int64) ([]domain.ChatMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.ChatMessage
	for _, msg := range r.s.messages {
		if contains(sessionIDs, msg.SessionID) {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (r *messageRepo) MarkRead(_ context.Context, sessionID int64, reader domain.SenderType, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var updated int64
	for i := range r.s.messages {
		msg := &r.s.messages[i]
		if msg.SessionID != sessionID || msg.SenderType == reader || msg.ReadAt != nil {
			continue
		}
		readAt := at
		msg.ReadAt = &readAt
		msg.UpdatedAt = r.s.now()
		updated++
	}
	return updated, nil
}

type noteRepo struct{ s *Store }

func (r *noteRepo) Create(_ context.Context, note *domain.Note) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	note.ID = r.s.nextID()
	note.CreatedAt = now
	note.UpdatedAt = now
	r.s.notes = append(r.s.notes, *note)
	return nil
}

func (r *noteRepo) ListByTarget(_ context.Context, targetType domain.NoteTargetType, targetID int64) ([]domain.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Note
	for _, note := range r.s.notes {
		if note.TargetType == targetType && note.TargetID == targetID {
			result = append(result, note)
		}
	}
	return result, nil
}
