package memory

import (
	"context"
	"sort"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type articleRepo struct{ s *Store }

func (r *articleRepo) Create(_ context.Context, article *domain.Article) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.articles {
		if existing.CompanyID == article.CompanyID && existing.Slug == article.Slug {
			return errDuplicate("articles.slug")
		}
	}
	now := r.s.now()
	article.ID = r.s.nextID()
	article.CreatedAt = now
	article.UpdatedAt = now
	r.s.articles[article.ID] = *article
	return nil
}

func (r *articleRepo) Update(_ context.Context, article *domain.Article) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.articles[article.ID]
	if !ok {
		return repository.ErrNotFound
	}
	article.CompanyID = current.CompanyID
	article.CreatedAt = current.CreatedAt
	article.UpdatedAt = r.s.now()
	r.s.articles[article.ID] = *article
	return nil
}

func (r *articleRepo) GetByID(_ context.Context, id int64) (*domain.Article, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	article, ok := r.s.articles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &article, nil
}

func (r *articleRepo) GetBySlug(_ context.Context, companyID int64, slug string) (*domain.Article, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, article := range r.s.articles {
		if article.CompanyID == companyID && article.Slug == slug {
			return &article, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *articleRepo) SlugExists(_ context.Context, companyID int64, slug string, excludeID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for id, article := range r.s.articles {
		if id != excludeID && article.CompanyID == companyID && article.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *articleRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.articles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.articles, id)
	return nil
}

func (r *articleRepo) List(_ context.Context, filter repository.ArticleFilter) ([]domain.Article, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []domain.Article
	for _, article := range r.s.articles {
		if article.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Status != nil && article.Status != *filter.Status {
			continue
		}
		matched = append(matched, article)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}
