package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("record not found")

// DB is the subset of pgxpool.Pool used by repositories.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func normalizeErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// queryBuilder accumulates positional arguments and clauses.
type queryBuilder struct {
	clauses []string
	args    []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *queryBuilder) add(format string, values ...any) {
	placeholders := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = b.arg(v)
	}
	b.clauses = append(b.clauses, fmt.Sprintf(format, placeholders...))
}

func inClause[T any](b *queryBuilder, column string, values []T) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.arg(v)
	}
	b.clauses = append(b.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
}

func (b *queryBuilder) where() string {
	if len(b.clauses) == 0 {
		return "1=1"
	}
	return strings.Join(b.clauses, " AND ")
}

func (b *queryBuilder) set() string {
	return strings.Join(b.clauses, ", ")
}

func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
