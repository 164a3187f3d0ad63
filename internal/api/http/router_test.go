package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, deps ...handlers.Dependency) *testServer {
	t.Helper()
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	repos := memory.NewStore().Repositories()
	workflow := config.WorkflowConfig{
		CreateSlugAttempts: 20,
		UpdateSlugAttempts: 100,
		DefaultPageSize:    20,
		MaxPageSize:        100,
	}
	dispatcher := events.NewInMemoryDispatcher()
	broker := realtime.NewMemoryBroker(realtime.NewHub(metrics.SubscriberGauge()))

	articles := service.NewArticleService(service.ArticleDependencies{
		ArticleRepo: repos.Articles,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Config:      workflow,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.Tickets,
		HistoryRepo: repos.TicketHistory,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Config:      workflow,
	})
	chat := service.NewChatService(service.ChatDependencies{
		SessionRepo: repos.ChatSessions,
		MessageRepo: repos.ChatMessages,
		TicketRepo:  repos.Tickets,
		Broker:      broker,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	conversations := service.NewConversationService(service.ConversationDependencies{
		TicketRepo:  repos.Tickets,
		SessionRepo: repos.ChatSessions,
		MessageRepo: repos.ChatMessages,
		NoteRepo:    repos.Notes,
		Logger:      logger,
	})

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	chatHandler := handlers.NewChatHandler(chat, 8, logger)
	t.Cleanup(chatHandler.Close)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("support-desk", "test", deps...),
		Articles:       handlers.NewArticlesHandler(articles),
		Tickets:        handlers.NewTicketsHandler(tickets, conversations),
		Chat:           chatHandler,
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Gatherer:       registry,
	})
	return &testServer{app: app, tokens: tokens}
}

var (
	admin   = domain.Actor{CompanyID: 1, UserID: 1, Role: domain.RoleAdmin}
	agent   = domain.Actor{CompanyID: 1, UserID: 7, Role: domain.RoleAgent}
	contact = domain.Actor{CompanyID: 1, UserID: 10, Role: domain.RoleContact}
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, actor *domain.Actor, method, target string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if actor != nil {
		token, _, err := s.tokens.GenerateToken(*actor)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type idResponse struct {
	ID int64 `json:"id"`
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t,
		handlers.Dependency{Name: "postgres", Pinger: pingFunc(func(context.Context) error { return nil })},
		handlers.Dependency{Name: "redis", Pinger: pingFunc(func(context.Context) error { return errors.New("connection refused") })},
	)

	status, _ := srv.do(t, nil, fiber.MethodGet, "/health/live", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env := srv.do(t, nil, fiber.MethodGet, "/health/ready", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, "ok", env.Error.Details["postgres"])
	assert.Equal(t, "connection refused", env.Error.Details["redis"])
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, nil, fiber.MethodGet, "/health/live", nil)

	resp, err := srv.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, nil, fiber.MethodGet, "/tickets", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = srv.do(t, &contact, fiber.MethodGet, "/tickets", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = srv.do(t, &agent, fiber.MethodGet, "/tickets/abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, env = srv.do(t, &agent, fiber.MethodGet, "/tickets/999", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestArticleRoutes(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{"title": "Reset your password", "content": "Steps"}

	status, env := srv.do(t, &agent, fiber.MethodPost, "/articles", body)
	require.Equal(t, fiber.StatusCreated, status)
	first := decode[struct {
		ID     int64  `json:"id"`
		Slug   string `json:"slug"`
		Status string `json:"status"`
	}](t, env.Data)
	assert.Equal(t, "reset-your-password", first.Slug)
	assert.Equal(t, "draft", first.Status)

	status, env = srv.do(t, &agent, fiber.MethodPost, "/articles", body)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "reset-your-password-1", decode[struct {
		Slug string `json:"slug"`
	}](t, env.Data).Slug)

	status, _ = srv.do(t, &contact, fiber.MethodPost, "/articles", body)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = srv.do(t, &agent, fiber.MethodPost, "/articles", map[string]any{"title": "x"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "required", env.Error.Details["content"])

	target := "/articles/" + itoa(first.ID)
	status, env = srv.do(t, &agent, fiber.MethodPost, target+"/publish", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "published", decode[struct {
		Status string `json:"status"`
	}](t, env.Data).Status)

	status, env = srv.do(t, &agent, fiber.MethodPost, target+"/publish", nil)
	assert.Equal(t, fiber.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	status, env = srv.do(t, &contact, fiber.MethodGet, "/articles/slug/reset-your-password", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, first.ID, decode[idResponse](t, env.Data).ID)

	status, env = srv.do(t, &contact, fiber.MethodGet, "/articles?status=published", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]idResponse](t, env.Data), 1)

	status, _ = srv.do(t, &agent, fiber.MethodDelete, target, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = srv.do(t, &agent, fiber.MethodGet, target, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTicketRoutes(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, &contact, fiber.MethodPost, "/tickets", map[string]any{
		"subject": "Printer on fire", "priority": "urgent", "tags": []string{"hardware"},
	})
	require.Equal(t, fiber.StatusCreated, status)
	ticket := decode[struct {
		ID        int64  `json:"id"`
		ContactID *int64 `json:"contact_id"`
		Status    string `json:"status"`
	}](t, env.Data)
	require.NotNil(t, ticket.ContactID)
	assert.Equal(t, contact.UserID, *ticket.ContactID)
	assert.Equal(t, "open", ticket.Status)

	status, _ = srv.do(t, &agent, fiber.MethodPost, "/tickets", map[string]any{"subject": "Other", "priority": "low"})
	require.Equal(t, fiber.StatusCreated, status)

	status, env = srv.do(t, &agent, fiber.MethodPost, "/tickets", map[string]any{"subject": "Bad", "status": "pending"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "oneof", env.Error.Details["status"])

	target := "/tickets/" + itoa(ticket.ID)
	status, _ = srv.do(t, &agent, fiber.MethodPatch, target+"/status", map[string]any{"status": "in_progress"})
	require.Equal(t, fiber.StatusOK, status)
	status, _ = srv.do(t, &agent, fiber.MethodPatch, target+"/assignment", map[string]any{"assignee_id": 7})
	require.Equal(t, fiber.StatusOK, status)

	status, env = srv.do(t, &agent, fiber.MethodGet, target+"/history", nil)
	require.Equal(t, fiber.StatusOK, status)
	history := decode[[]struct {
		ChangeType string `json:"change_type"`
	}](t, env.Data)
	require.Len(t, history, 2)
	assert.Equal(t, "status_change", history[0].ChangeType)
	assert.Equal(t, "assignee_change", history[1].ChangeType)

	status, env = srv.do(t, &agent, fiber.MethodGet, "/tickets?priority=urgent,high&search=PRINTER&limit=1", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]idResponse](t, env.Data), 1)
	meta := decode[struct {
		Total int `json:"total"`
		Limit int `json:"limit"`
	}](t, env.Meta)
	assert.Equal(t, 1, meta.Total)
	assert.Equal(t, 1, meta.Limit)

	status, env = srv.do(t, &agent, fiber.MethodGet, "/tickets?created_from=not-a-date", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)

	status, _ = srv.do(t, &agent, fiber.MethodDelete, target, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = srv.do(t, &admin, fiber.MethodDelete, target, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestChatAndConversationRoutes(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, &agent, fiber.MethodPost, "/tickets", map[string]any{"subject": "Login issue"})
	require.Equal(t, fiber.StatusCreated, status)
	ticketID := decode[idResponse](t, env.Data).ID

	status, env = srv.do(t, &contact, fiber.MethodPost, "/chat/sessions", map[string]any{"ticket_id": ticketID})
	require.Equal(t, fiber.StatusCreated, status)
	session := decode[struct {
		ID        int64  `json:"id"`
		ContactID *int64 `json:"contact_id"`
		Status    string `json:"status"`
	}](t, env.Data)
	assert.Equal(t, "active", session.Status)
	require.NotNil(t, session.ContactID)
	assert.Equal(t, contact.UserID, *session.ContactID)

	target := "/chat/sessions/" + itoa(session.ID)
	status, _ = srv.do(t, &contact, fiber.MethodPost, target+"/messages", map[string]any{"message": "Hi"})
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = srv.do(t, &agent, fiber.MethodPost, target+"/assign", nil)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = srv.do(t, &agent, fiber.MethodPost, target+"/messages", map[string]any{"message": "Hello"})
	require.Equal(t, fiber.StatusCreated, status)

	status, env = srv.do(t, &contact, fiber.MethodPost, target+"/messages", map[string]any{"message": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)

	status, env = srv.do(t, &agent, fiber.MethodGet, target+"/messages", nil)
	require.Equal(t, fiber.StatusOK, status)
	msgs := decode[[]struct {
		SenderType string `json:"sender_type"`
		Message    string `json:"message"`
	}](t, env.Data)
	require.Len(t, msgs, 2)
	assert.Equal(t, "contact", msgs[0].SenderType)
	assert.Equal(t, "agent", msgs[1].SenderType)

	status, env = srv.do(t, &agent, fiber.MethodPost, target+"/read", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(1), decode[struct {
		Updated int64 `json:"updated"`
	}](t, env.Data).Updated)

	status, _ = srv.do(t, &agent, fiber.MethodPost, "/tickets/"+itoa(ticketID)+"/notes", map[string]any{"body": "Called customer"})
	require.Equal(t, fiber.StatusCreated, status)

	status, env = srv.do(t, &agent, fiber.MethodGet, "/tickets/"+itoa(ticketID)+"/conversation", nil)
	require.Equal(t, fiber.StatusOK, status)
	items := decode[[]struct {
		Type string `json:"type"`
	}](t, env.Data)
	require.Len(t, items, 3)
	assert.Equal(t, "note", items[2].Type)

	status, env = srv.do(t, &contact, fiber.MethodPost, target+"/close", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "closed", decode[struct {
		Status string `json:"status"`
	}](t, env.Data).Status)
	status, _ = srv.do(t, &contact, fiber.MethodPost, target+"/close", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = srv.do(t, &agent, fiber.MethodPatch, target, map[string]any{"status": "active"})
	assert.Equal(t, fiber.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	status, _ = srv.do(t, &agent, fiber.MethodPost, target+"/archive", nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = srv.do(t, &contact, fiber.MethodPost, target+"/close", nil)
	assert.Equal(t, fiber.StatusConflict, status)
}

func TestStaffSessionRequiresContact(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, &agent, fiber.MethodPost, "/chat/sessions", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "required", env.Error.Details["contact_id"])

	status, env = srv.do(t, &agent, fiber.MethodPost, "/chat/sessions", map[string]any{"contact_id": 10})
	require.Equal(t, fiber.StatusCreated, status)
	session := decode[struct {
		AgentID *int64 `json:"agent_id"`
	}](t, env.Data)
	require.NotNil(t, session.AgentID)
	assert.Equal(t, agent.UserID, *session.AgentID)
}

func TestStreamUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	status, env := srv.do(t, &contact, fiber.MethodGet, "/chat/sessions/404/stream", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
