package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ArticleFilter narrows article listings.
type ArticleFilter struct {
	CompanyID int64
	Status    *domain.ArticleStatus
	Limit     int
	Offset    int
}

// ArticleRepository encapsulates article persistence.
type ArticleRepository interface {
	Create(ctx context.Context, article *domain.Article) error
	Update(ctx context.Context, article *domain.Article) error
	GetByID(ctx context.Context, id int64) (*domain.Article, error)
	GetBySlug(ctx context.Context, companyID int64, slug string) (*domain.Article, error)
	SlugExists(ctx context.Context, companyID int64, slug string, excludeID int64) (bool, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ArticleFilter) ([]domain.Article, int, error)
}

type articleRepository struct {
	db DB
}

// NewArticleRepository instantiates repository.
func NewArticleRepository(db DB) ArticleRepository {
	return &articleRepository{db: db}
}

const articleColumns = `id, company_id, title, slug, content, status, revision, author_id, created_at, updated_at, published_at`

func (r *articleRepository) Create(ctx context.Context, article *domain.Article) error {
	const query = `
        INSERT INTO articles (company_id, title, slug, content, status, revision, author_id, published_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		article.CompanyID,
		article.Title,
		article.Slug,
		article.Content,
		article.Status,
		article.Revision,
		article.AuthorID,
		article.PublishedAt,
	).Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)
}

func (r *articleRepository) Update(ctx context.Context, article *domain.Article) error {
	const query = `
        UPDATE articles SET title=$1, slug=$2, content=$3, status=$4, revision=$5, published_at=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		article.Title,
		article.Slug,
		article.Content,
		article.Status,
		article.Revision,
		article.PublishedAt,
		article.ID,
	).Scan(&article.UpdatedAt)
	return normalizeErr(err)
}

func (r *articleRepository) GetByID(ctx context.Context, id int64) (*domain.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id=$1`
	return scanArticle(r.db.QueryRow(ctx, query, id))
}

func (r *articleRepository) GetBySlug(ctx context.Context, companyID int64, slug string) (*domain.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE company_id=$1 AND slug=$2`
	return scanArticle(r.db.QueryRow(ctx, query, companyID, slug))
}

func (r *articleRepository) SlugExists(ctx context.Context, companyID int64, slug string, excludeID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM articles WHERE company_id=$1 AND slug=$2 AND id<>$3)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, companyID, slug, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *articleRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM articles WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *articleRepository) List(ctx context.Context, filter ArticleFilter) ([]domain.Article, int, error) {
	b := &queryBuilder{}
	b.add("company_id=%s", filter.CompanyID)
	if filter.Status != nil {
		b.add("status=%s", *filter.Status)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM articles WHERE `+b.where(), b.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM articles WHERE %s ORDER BY updated_at DESC, id DESC LIMIT %d OFFSET %d`,
		articleColumns, b.where(), filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, query, b.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *article)
	}
	return result, total, rows.Err()
}

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var a domain.Article
	if err := row.Scan(
		&a.ID,
		&a.CompanyID,
		&a.Title,
		&a.Slug,
		&a.Content,
		&a.Status,
		&a.Revision,
		&a.AuthorID,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.PublishedAt,
	); err != nil {
		return nil, normalizeErr(err)
	}
	return &a, nil
}
