package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ChatSessionPatch lists the columns a single atomic session update writes.
type ChatSessionPatch struct {
	AgentSet      bool
	AgentID       *int64
	TicketSet     bool
	TicketID      *int64
	Status        *domain.ChatSessionStatus
	EndedAt       *time.Time
	LastMessageAt *time.Time
	Metadata      domain.Metadata
}

// Empty reports whether the patch writes nothing.
func (p ChatSessionPatch) Empty() bool {
	return !p.AgentSet && !p.TicketSet && p.Status == nil && p.EndedAt == nil && p.LastMessageAt == nil && p.Metadata == nil
}

// ChatSessionRepository manages chat sessions.
type ChatSessionRepository interface {
	Create(ctx context.Context, session *domain.ChatSession) error
	GetByID(ctx context.Context, id int64) (*domain.ChatSession, error)
	Patch(ctx context.Context, id int64, patch ChatSessionPatch) (*domain.ChatSession, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.ChatSession, error)
}

type chatSessionRepository struct {
	db DB
}

// NewChatSessionRepository builds repository.
func NewChatSessionRepository(db DB) ChatSessionRepository {
	return &chatSessionRepository{db: db}
}

const chatSessionColumns = `id, company_id, contact_id, agent_id, ticket_id, status, started_at, ended_at, last_message_at, metadata, created_at, updated_at`

func (r *chatSessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	const query = `
        INSERT INTO chat_sessions (company_id, contact_id, agent_id, ticket_id, status, started_at, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	metadata := session.Metadata
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	return r.db.QueryRow(ctx, query,
		session.CompanyID,
		session.ContactID,
		session.AgentID,
		session.TicketID,
		session.Status,
		session.StartedAt,
		metadata,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
}

func (r *chatSessionRepository) GetByID(ctx context.Context, id int64) (*domain.ChatSession, error) {
	query := `SELECT ` + chatSessionColumns + ` FROM chat_sessions WHERE id=$1`
	return scanChatSession(r.db.QueryRow(ctx, query, id))
}

func (r *chatSessionRepository) Patch(ctx context.Context, id int64, patch ChatSessionPatch) (*domain.ChatSession, error) {
	b := &queryBuilder{}
	if patch.AgentSet {
		b.add("agent_id=%s", patch.AgentID)
	}
	if patch.TicketSet {
		b.add("ticket_id=%s", patch.TicketID)
	}
	if patch.Status != nil {
		b.add("status=%s", *patch.Status)
	}
	if patch.EndedAt != nil {
		b.add("ended_at=%s", *patch.EndedAt)
	}
	if patch.LastMessageAt != nil {
		b.add("last_message_at=%s", *patch.LastMessageAt)
	}
	if patch.Metadata != nil {
		b.add("metadata=%s", patch.Metadata)
	}
	b.clauses = append(b.clauses, "updated_at=NOW()")

	query := fmt.Sprintf(`UPDATE chat_sessions SET %s WHERE id=%s RETURNING %s`, b.set(), b.arg(id), chatSessionColumns)
	return scanChatSession(r.db.QueryRow(ctx, query, b.args...))
}

func (r *chatSessionRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ChatSession, error) {
	query := `SELECT ` + chatSessionColumns + ` FROM chat_sessions WHERE ticket_id=$1 ORDER BY started_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChatSession
	for rows.Next() {
		session, err := scanChatSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *session)
	}
	return result, rows.Err()
}

func scanChatSession(row pgx.Row) (*domain.ChatSession, error) {
	var s domain.ChatSession
	if err := row.Scan(
		&s.ID,
		&s.CompanyID,
		&s.ContactID,
		&s.AgentID,
		&s.TicketID,
		&s.Status,
		&s.StartedAt,
		&s.EndedAt,
		&s.LastMessageAt,
		&s.Metadata,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, normalizeErr(err)
	}
	return &s, nil
}
