package domain

import "time"

// ArticleStatus enumerates publication states of a knowledge-base article.
type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
	ArticleStatusArchived  ArticleStatus = "archived"
)

// Valid reports whether s is a known article status.
func (s ArticleStatus) Valid() bool {
	switch s {
	case ArticleStatusDraft, ArticleStatusPublished, ArticleStatusArchived:
		return true
	}
	return false
}

// Article is a knowledge-base entry scoped to a company.
type Article struct {
	ID          int64
	CompanyID   int64
	Title       string
	Slug        string
	Content     string
	Status      ArticleStatus
	Revision    int
	AuthorID    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time
}
