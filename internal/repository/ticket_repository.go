package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketFilter captures search parameters. Values inside one list are OR-ed,
// categories are AND-ed.
type TicketFilter struct {
	CompanyID   int64
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	AssigneeIDs []int64
	Tags        []string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketPatch lists the columns a single atomic update writes.
type TicketPatch struct {
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	AssigneeSet bool
	AssigneeID  *int64
	Tags        []string
	TagsSet     bool
}

// Empty reports whether the patch writes nothing.
func (p TicketPatch) Empty() bool {
	return p.Status == nil && p.Priority == nil && !p.AssigneeSet && !p.TagsSet
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Patch(ctx context.Context, id int64, patch TicketPatch) (*domain.Ticket, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, company_id, contact_id, assignee_id, subject, description, status, priority, tags, metadata, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (company_id, contact_id, assignee_id, subject, description, status, priority, tags, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	return r.db.QueryRow(ctx, query,
		ticket.CompanyID,
		ticket.ContactID,
		ticket.AssigneeID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		tags,
		ticket.Metadata,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) Patch(ctx context.Context, id int64, patch TicketPatch) (*domain.Ticket, error) {
	b := buildTicketPatch(patch)
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=%s RETURNING %s`, b.set(), b.arg(id), ticketColumns)
	return scanTicket(r.db.QueryRow(ctx, query, b.args...))
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Search(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	where, args := buildTicketWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	b := &queryBuilder{}
	b.add("company_id=%s", filter.CompanyID)
	inClause(b, "status", filter.Statuses)
	inClause(b, "priority", filter.Priorities)
	inClause(b, "assignee_id", filter.AssigneeIDs)
	if len(filter.Tags) > 0 {
		b.add("tags @> %s::text[]", filter.Tags)
	}
	if filter.CreatedFrom != nil {
		b.add("created_at >= %s", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		b.add("created_at <= %s", *filter.CreatedTo)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		placeholder := b.arg("%" + escapeLike(term) + "%")
		b.clauses = append(b.clauses, fmt.Sprintf("(subject ILIKE %s OR description ILIKE %s)", placeholder, placeholder))
	}
	return b.where(), b.args
}

func buildTicketPatch(patch TicketPatch) *queryBuilder {
	b := &queryBuilder{}
	if patch.Status != nil {
		b.add("status=%s", *patch.Status)
	}
	if patch.Priority != nil {
		b.add("priority=%s", *patch.Priority)
	}
	if patch.AssigneeSet {
		b.add("assignee_id=%s", patch.AssigneeID)
	}
	if patch.TagsSet {
		tags := patch.Tags
		if tags == nil {
			tags = []string{}
		}
		b.add("tags=%s", tags)
	}
	b.clauses = append(b.clauses, "updated_at=NOW()")
	return b
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := row.Scan(
		&t.ID,
		&t.CompanyID,
		&t.ContactID,
		&t.AssigneeID,
		&t.Subject,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.Tags,
		&t.Metadata,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, normalizeErr(err)
	}
	return &t, nil
}
