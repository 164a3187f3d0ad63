package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateArticleRequest payload.
type CreateArticleRequest struct {
	Title   string               `json:"title" validate:"required,max=255"`
	Content string               `json:"content" validate:"required"`
	Status  domain.ArticleStatus `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// UpdateArticleRequest is a partial update. Omitted fields stay as they are.
type UpdateArticleRequest struct {
	Title   *string               `json:"title" validate:"omitempty,max=255"`
	Content *string               `json:"content"`
	Status  *domain.ArticleStatus `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// PublishArticleRequest optionally edits the article while publishing it.
type PublishArticleRequest struct {
	Title   *string `json:"title" validate:"omitempty,max=255"`
	Content *string `json:"content"`
}

// ArticleResponse is the public shape of an article.
type ArticleResponse struct {
	ID          int64                `json:"id"`
	CompanyID   int64                `json:"company_id"`
	Title       string               `json:"title"`
	Slug        string               `json:"slug"`
	Content     string               `json:"content"`
	Status      domain.ArticleStatus `json:"status"`
	Revision    int                  `json:"revision"`
	AuthorID    int64                `json:"author_id"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	PublishedAt *time.Time           `json:"published_at"`
}

// NewArticleResponse maps a domain article.
func NewArticleResponse(a *domain.Article) ArticleResponse {
	return ArticleResponse{
		ID:          a.ID,
		CompanyID:   a.CompanyID,
		Title:       a.Title,
		Slug:        a.Slug,
		Content:     a.Content,
		Status:      a.Status,
		Revision:    a.Revision,
		AuthorID:    a.AuthorID,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		PublishedAt: a.PublishedAt,
	}
}

// NewArticleResponses maps a slice of articles.
func NewArticleResponses(articles []domain.Article) []ArticleResponse {
	out := make([]ArticleResponse, 0, len(articles))
	for i := range articles {
		out = append(out, NewArticleResponse(&articles[i]))
	}
	return out
}
