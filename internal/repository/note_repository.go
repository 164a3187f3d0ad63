package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// NoteRepository reads and writes internal notes.
type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	ListByTarget(ctx context.Context, targetType domain.NoteTargetType, targetID int64) ([]domain.Note, error)
}

type noteRepository struct {
	db DB
}

// NewNoteRepository builds repository.
func NewNoteRepository(db DB) NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	const query = `
        INSERT INTO notes (company_id, author_id, target_type, target_id, body)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		note.CompanyID,
		note.AuthorID,
		note.TargetType,
		note.TargetID,
		note.Body,
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
}

func (r *noteRepository) ListByTarget(ctx context.Context, targetType domain.NoteTargetType, targetID int64) ([]domain.Note, error) {
	const query = `
        SELECT id, company_id, author_id, target_type, target_id, body, created_at, updated_at
        FROM notes WHERE target_type=$1 AND target_id=$2 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Note
	for rows.Next() {
		var note domain.Note
		if err := rows.Scan(
			&note.ID,
			&note.CompanyID,
			&note.AuthorID,
			&note.TargetType,
			&note.TargetID,
			&note.Body,
			&note.CreatedAt,
			&note.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, note)
	}
	return result, rows.Err()
}
