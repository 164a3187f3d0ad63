package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const resourceArticle = "article"

// articleTransitions lists the legal status moves of an article.
var articleTransitions = map[domain.ArticleStatus][]domain.ArticleStatus{
	domain.ArticleStatusDraft:     {domain.ArticleStatusPublished, domain.ArticleStatusArchived},
	domain.ArticleStatusPublished: {domain.ArticleStatusArchived},
	domain.ArticleStatusArchived:  {domain.ArticleStatusDraft},
}

func articleTransitionAllowed(from, to domain.ArticleStatus) bool {
	for _, candidate := range articleTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ArticleService guards article status transitions and per-company slug uniqueness.
type ArticleService struct {
	articles repository.ArticleRepository
	events   eventPublisher
	metrics  *observability.Metrics
	logger   *zap.Logger
	cfg      config.WorkflowConfig
	now      func() time.Time
}

// ArticleDependencies bundles collaborators for the article service.
type ArticleDependencies struct {
	ArticleRepo repository.ArticleRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Config      config.WorkflowConfig
	Clock       func() time.Time
}

// ArticleCreateInput describes article creation payload.
type ArticleCreateInput struct {
	CompanyID int64
	AuthorID  int64
	Title     string
	Content   string
	Status    domain.ArticleStatus
}

// ArticleUpdateInput carries optional article fields. Nil means unchanged.
type ArticleUpdateInput struct {
	Title   *string
	Content *string
	Status  *domain.ArticleStatus
}

// ArticleListInput narrows an article listing.
type ArticleListInput struct {
	CompanyID int64
	Status    *domain.ArticleStatus
	Page      int
	Limit     int
}

// ArticleListResult is a page of articles plus the unpaginated total.
type ArticleListResult struct {
	Articles []domain.Article
	Total    int
	Page     int
	Limit    int
}

// NewArticleService constructs the service.
func NewArticleService(deps ArticleDependencies) *ArticleService {
	logger := orNop(deps.Logger)
	now := orWallClock(deps.Clock)
	return &ArticleService{
		articles: deps.ArticleRepo,
		events:   eventPublisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
		metrics:  deps.Metrics,
		logger:   logger,
		cfg:      deps.Config,
		now:      now,
	}
}

// Create stores a new article with a unique slug derived from its title.
func (s *ArticleService) Create(ctx context.Context, actor domain.Actor, input ArticleCreateInput) (*domain.Article, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	details := map[string]any{}
	if input.CompanyID <= 0 {
		details["company_id"] = "required"
	}
	if input.AuthorID <= 0 {
		details["author_id"] = "required"
	}
	if title == "" {
		details["title"] = "required"
	}
	if content == "" {
		details["content"] = "required"
	}
	status := input.Status
	if status == "" {
		status = domain.ArticleStatusDraft
	}
	if !status.Valid() {
		details["status"] = "unknown status"
	}
	if len(details) > 0 {
		return nil, errorutil.NewValidationError("invalid article", details)
	}

	slug, err := s.uniqueSlug(ctx, input.CompanyID, title, 0, s.cfg.CreateSlugAttempts)
	if err != nil {
		return nil, err
	}

	article := &domain.Article{
		CompanyID: input.CompanyID,
		AuthorID:  input.AuthorID,
		Title:     title,
		Slug:      slug,
		Content:   content,
		Status:    status,
		Revision:  1,
	}
	if status == domain.ArticleStatusPublished {
		now := s.now()
		article.PublishedAt = &now
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, storeError(s.logger, "article.create", resourceArticle, 0, err)
	}
	if status == domain.ArticleStatusPublished {
		s.published(ctx, actor, article)
	}
	return article, nil
}

// Update applies a partial update, enforcing the status transition table.
func (s *ArticleService) Update(ctx context.Context, actor domain.Actor, id int64, input ArticleUpdateInput) (*domain.Article, error) {
	if err := validateArticleFields(input.Title, input.Content); err != nil {
		return nil, err
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, errorutil.NewValidationError("invalid article", map[string]any{"status": "unknown status"})
	}

	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "article.get", resourceArticle, id, err)
	}

	previous := article.Status
	if input.Status != nil && *input.Status != article.Status {
		if !articleTransitionAllowed(article.Status, *input.Status) {
			return nil, errorutil.NewInvalidTransition(resourceArticle, string(article.Status), string(*input.Status))
		}
		article.Status = *input.Status
	}

	if err := s.applyContent(ctx, article, input.Title, input.Content); err != nil {
		return nil, err
	}

	nowPublished := article.Status == domain.ArticleStatusPublished && previous != domain.ArticleStatusPublished
	if nowPublished {
		now := s.now()
		article.PublishedAt = &now
	}

	if err := s.articles.Update(ctx, article); err != nil {
		return nil, storeError(s.logger, "article.update", resourceArticle, id, err)
	}
	if nowPublished {
		s.published(ctx, actor, article)
	}
	return article, nil
}

// Publish moves a draft to published, optionally replacing title and content first.
func (s *ArticleService) Publish(ctx context.Context, actor domain.Actor, id int64, title, content *string) (*domain.Article, error) {
	if err := validateArticleFields(title, content); err != nil {
		return nil, err
	}
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "article.get", resourceArticle, id, err)
	}
	if article.Status != domain.ArticleStatusDraft {
		return nil, errorutil.NewInvalidTransition(resourceArticle, string(article.Status), string(domain.ArticleStatusPublished))
	}

	if err := s.applyContent(ctx, article, title, content); err != nil {
		return nil, err
	}
	now := s.now()
	article.Status = domain.ArticleStatusPublished
	article.PublishedAt = &now

	if err := s.articles.Update(ctx, article); err != nil {
		return nil, storeError(s.logger, "article.publish", resourceArticle, id, err)
	}
	s.published(ctx, actor, article)
	return article, nil
}

// Delete removes an article.
func (s *ArticleService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if err := s.articles.Delete(ctx, id); err != nil {
		return storeError(s.logger, "article.delete", resourceArticle, id, err)
	}
	s.logger.Info("article deleted", zap.Int64("article_id", id), zap.Int64("actor_id", actor.UserID))
	return nil
}

// Get returns an article by id.
func (s *ArticleService) Get(ctx context.Context, id int64) (*domain.Article, error) {
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, "article.get", resourceArticle, id, err)
	}
	return article, nil
}

// GetBySlug returns an article by its company-scoped slug.
func (s *ArticleService) GetBySlug(ctx context.Context, companyID int64, slug string) (*domain.Article, error) {
	article, err := s.articles.GetBySlug(ctx, companyID, slug)
	if err != nil {
		return nil, storeError(s.logger, "article.get_by_slug", resourceArticle, companyID, err)
	}
	return article, nil
}

// List returns a page of company articles.
func (s *ArticleService) List(ctx context.Context, input ArticleListInput) (*ArticleListResult, error) {
	if input.CompanyID <= 0 {
		return nil, errorutil.NewValidationError("invalid article filter", map[string]any{"company_id": "required"})
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, errorutil.NewValidationError("invalid article filter", map[string]any{"status": "unknown status"})
	}
	page, limit, offset := pageWindow(input.Page, input.Limit, s.cfg)
	articles, total, err := s.articles.List(ctx, repository.ArticleFilter{
		CompanyID: input.CompanyID,
		Status:    input.Status,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, storeError(s.logger, "article.list", resourceArticle, input.CompanyID, err)
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	return &ArticleListResult{Articles: articles, Total: total, Page: page, Limit: limit}, nil
}

// applyContent writes optional title/content onto article, recomputing the
// slug on a title change and bumping the revision on any content change.
func (s *ArticleService) applyContent(ctx context.Context, article *domain.Article, title, content *string) error {
	changed := false
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed != article.Title {
			slug, err := s.uniqueSlug(ctx, article.CompanyID, trimmed, article.ID, s.cfg.UpdateSlugAttempts)
			if err != nil {
				return err
			}
			article.Title = trimmed
			article.Slug = slug
			changed = true
		}
	}
	if content != nil {
		trimmed := strings.TrimSpace(*content)
		if trimmed != article.Content {
			article.Content = trimmed
			changed = true
		}
	}
	if changed {
		article.Revision++
	}
	return nil
}

func (s *ArticleService) uniqueSlug(ctx context.Context, companyID int64, title string, excludeID int64, attempts int) (string, error) {
	base := Slugify(title)
	slug, ok, err := resolveSlug(ctx, base, attempts, func(ctx context.Context, candidate string) (bool, error) {
		return s.articles.SlugExists(ctx, companyID, candidate, excludeID)
	})
	if err != nil {
		return "", storeError(s.logger, "article.slug_exists", resourceArticle, excludeID, err)
	}
	if !ok {
		s.logger.Warn("slug generation exhausted",
			zap.Int64("company_id", companyID),
			zap.String("base", base),
			zap.Int("attempts", attempts))
		return "", errorutil.NewSlugGenerationExhausted(base, attempts)
	}
	return slug, nil
}

func (s *ArticleService) published(ctx context.Context, actor domain.Actor, article *domain.Article) {
	s.metrics.ArticlePublished()
	s.events.publish(ctx, events.Event{
		Type:       events.EventArticlePublished,
		CompanyID:  article.CompanyID,
		EntityType: resourceArticle,
		EntityID:   article.ID,
		Actor:      events.ActorFrom(actor),
		Payload: events.ArticlePublishedPayload{
			Slug:     article.Slug,
			Title:    article.Title,
			Revision: article.Revision,
		},
	})
}

func validateArticleFields(title, content *string) error {
	details := map[string]any{}
	if title != nil && strings.TrimSpace(*title) == "" {
		details["title"] = "must not be empty"
	}
	if content != nil && strings.TrimSpace(*content) == "" {
		details["content"] = "must not be empty"
	}
	if len(details) > 0 {
		return errorutil.NewValidationError("invalid article", details)
	}
	return nil
}
