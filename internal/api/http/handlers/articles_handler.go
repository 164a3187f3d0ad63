package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

// ArticlesHandler exposes the knowledge base article workflow.
type ArticlesHandler struct {
	service *service.ArticleService
}

// NewArticlesHandler constructs handler.
func NewArticlesHandler(articleService *service.ArticleService) *ArticlesHandler {
	return &ArticlesHandler{service: articleService}
}

// Create POST /articles.
func (h *ArticlesHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateArticleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	article, err := h.service.Create(c.UserContext(), actor, service.ArticleCreateInput{
		CompanyID: actor.CompanyID,
		AuthorID:  actor.UserID,
		Title:     req.Title,
		Content:   req.Content,
		Status:    req.Status,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewArticleResponse(article)})
}

// List GET /articles.
func (h *ArticlesHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	input := service.ArticleListInput{
		CompanyID: actor.CompanyID,
		Page:      parseInt(c.Query("page"), 1),
		Limit:     parseInt(c.Query("limit"), 0),
	}
	if status := c.Query("status"); status != "" {
		st := domain.ArticleStatus(status)
		input.Status = &st
	}
	result, err := h.service.List(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewArticleResponses(result.Articles),
		"meta": dto.PageMeta{Page: result.Page, Limit: result.Limit, Total: result.Total},
	})
}

// Get GET /articles/:id.
func (h *ArticlesHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	article, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewArticleResponse(article)})
}

// GetBySlug GET /articles/slug/:slug.
func (h *ArticlesHandler) GetBySlug(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	article, err := h.service.GetBySlug(c.UserContext(), actor.CompanyID, c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewArticleResponse(article)})
}

// Update PATCH /articles/:id.
func (h *ArticlesHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateArticleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	article, err := h.service.Update(c.UserContext(), actor, id, service.ArticleUpdateInput{
		Title:   req.Title,
		Content: req.Content,
		Status:  req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewArticleResponse(article)})
}

// Publish POST /articles/:id/publish.
func (h *ArticlesHandler) Publish(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.PublishArticleRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	article, err := h.service.Publish(c.UserContext(), actor, id, req.Title, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewArticleResponse(article)})
}

// Delete DELETE /articles/:id.
func (h *ArticlesHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
