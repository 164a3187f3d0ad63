package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ChatMessageRepository manages chat messages.
type ChatMessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	ListBySession(ctx context.Context, sessionID int64, since *time.Time) ([]domain.ChatMessage, error)
	ListBySessions(ctx context.Context, sessionIDs []int64) ([]domain.ChatMessage, error)
	MarkRead(ctx context.Context, sessionID int64, reader domain.SenderType, at time.Time) (int64, error)
}

type chatMessageRepository struct {
	db DB
}

// NewChatMessageRepository builds repository.
func NewChatMessageRepository(db DB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

const chatMessageColumns = `id, session_id, company_id, sender_type, sender_id, message, message_type, read_at, created_at, updated_at`

func (r *chatMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_messages (session_id, company_id, sender_type, sender_id, message, message_type)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		msg.SessionID,
		msg.CompanyID,
		msg.SenderType,
		msg.SenderID,
		msg.Message,
		msg.MessageType,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
}

func (r *chatMessageRepository) ListBySession(ctx context.Context, sessionID int64, since *time.Time) ([]domain.ChatMessage, error) {
	if since != nil {
		query := `SELECT ` + chatMessageColumns + ` FROM chat_messages WHERE session_id=$1 AND created_at > $2 ORDER BY created_at ASC, id ASC`
		return r.list(ctx, query, sessionID, *since)
	}
	query := `SELECT ` + chatMessageColumns + ` FROM chat_messages WHERE session_id=$1 ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, sessionID)
}

func (r *chatMessageRepository) ListBySessions(ctx context.Context, sessionIDs []int64) ([]domain.ChatMessage, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + chatMessageColumns + ` FROM chat_messages WHERE session_id = ANY($1) ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, sessionIDs)
}

// MarkRead stamps read_at on unread messages the reader did not send.
func (r *chatMessageRepository) MarkRead(ctx context.Context, sessionID int64, reader domain.SenderType, at time.Time) (int64, error) {
	const query = `
        UPDATE chat_messages SET read_at=$3, updated_at=NOW()
        WHERE session_id=$1 AND sender_type<>$2 AND read_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, sessionID, reader, at)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *chatMessageRepository) list(ctx context.Context, query string, args ...any) ([]domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChatMessage
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	return result, rows.Err()
}

func scanChatMessage(row pgx.Row) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := row.Scan(
		&m.ID,
		&m.SessionID,
		&m.CompanyID,
		&m.SenderType,
		&m.SenderID,
		&m.Message,
		&m.MessageType,
		&m.ReadAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, normalizeErr(err)
	}
	return &m, nil
}
