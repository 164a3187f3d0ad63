package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Articles       *handlers.ArticlesHandler
	Tickets        *handlers.TicketsHandler
	Chat           *handlers.ChatHandler
	AuthMiddleware *auth.AuthMiddleware
	Gatherer       prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authenticated := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAnyRole()}
	staff := auth.RequireStaff()

	articles := app.Group("/articles", authenticated...)
	articles.Get("/", cfg.Articles.List)
	articles.Get("/slug/:slug", cfg.Articles.GetBySlug)
	articles.Get("/:id", cfg.Articles.Get)
	articles.Post("/", staff, cfg.Articles.Create)
	articles.Patch("/:id", staff, cfg.Articles.Update)
	articles.Post("/:id/publish", staff, cfg.Articles.Publish)
	articles.Delete("/:id", staff, cfg.Articles.Delete)

	tickets := app.Group("/tickets", authenticated...)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", staff, cfg.Tickets.ListTickets)
	tickets.Get("/:id", staff, cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", staff, cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/priority", staff, cfg.Tickets.UpdatePriority)
	tickets.Patch("/:id/assignment", staff, cfg.Tickets.UpdateAssignment)
	tickets.Put("/:id/tags", staff, cfg.Tickets.UpdateTags)
	tickets.Delete("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/history", staff, cfg.Tickets.History)
	tickets.Get("/:id/conversation", staff, cfg.Tickets.Conversation)
	tickets.Post("/:id/notes", staff, cfg.Tickets.AddNote)

	chat := app.Group("/chat/sessions", authenticated...)
	chat.Post("/", cfg.Chat.CreateSession)
	chat.Get("/:id", cfg.Chat.GetSession)
	chat.Patch("/:id", staff, cfg.Chat.UpdateSession)
	chat.Post("/:id/close", cfg.Chat.CloseSession)
	chat.Post("/:id/archive", staff, cfg.Chat.ArchiveSession)
	chat.Post("/:id/assign", staff, cfg.Chat.AssignToMe)
	chat.Post("/:id/unassign", staff, cfg.Chat.Unassign)
	chat.Post("/:id/messages", cfg.Chat.SendMessage)
	chat.Get("/:id/messages", cfg.Chat.ListMessages)
	chat.Post("/:id/read", cfg.Chat.MarkRead)
	chat.Get("/:id/stream", cfg.Chat.Stream)
}
