package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	clock   *testClock
	store   *memory.Store
	repos   memory.Repositories
	hub     *realtime.Hub
	broker  realtime.Broker
	events  *recordedEvents
	metrics *observability.Metrics

	articles      *ArticleService
	tickets       *TicketService
	chat          *ChatService
	conversations *ConversationService
}

type envOption func(*envConfig)

type envConfig struct {
	workflow config.WorkflowConfig
	policy   TransitionPolicy
	broker   realtime.Broker
}

func withWorkflow(fn func(*config.WorkflowConfig)) envOption {
	return func(c *envConfig) { fn(&c.workflow) }
}

func withPolicy(p TransitionPolicy) envOption {
	return func(c *envConfig) { c.policy = p }
}

func withBroker(b realtime.Broker) envOption {
	return func(c *envConfig) { c.broker = b }
}

func defaultWorkflow() config.WorkflowConfig {
	return config.WorkflowConfig{
		CreateSlugAttempts: 20,
		UpdateSlugAttempts: 100,
		TicketStatusPolicy: config.TicketPolicyPermissive,
		DefaultPageSize:    20,
		MaxPageSize:        100,
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{workflow: defaultWorkflow()}
	for _, opt := range opts {
		opt(&cfg)
	}

	clock := newTestClock()
	store := memory.NewStore()
	store.SetClock(clock.Now)
	repos := store.Repositories()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hub := realtime.NewHub(metrics.SubscriberGauge())
	broker := cfg.broker
	if broker == nil {
		broker = realtime.NewMemoryBroker(hub)
	}

	recorded := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.SubscribeAll(recorded.handle)

	logger := zap.NewNop()
	env := &testEnv{
		clock:   clock,
		store:   store,
		repos:   repos,
		hub:     hub,
		broker:  broker,
		events:  recorded,
		metrics: metrics,
	}
	env.articles = NewArticleService(ArticleDependencies{
		ArticleRepo: repos.Articles,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Config:      cfg.workflow,
		Clock:       clock.Now,
	})
	env.tickets = NewTicketService(TicketDependencies{
		TicketRepo:  repos.Tickets,
		HistoryRepo: repos.TicketHistory,
		Policy:      cfg.policy,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Config:      cfg.workflow,
		Clock:       clock.Now,
	})
	env.chat = NewChatService(ChatDependencies{
		SessionRepo: repos.ChatSessions,
		MessageRepo: repos.ChatMessages,
		TicketRepo:  repos.Tickets,
		Broker:      broker,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Clock:       clock.Now,
	})
	env.conversations = NewConversationService(ConversationDependencies{
		TicketRepo:  repos.Tickets,
		SessionRepo: repos.ChatSessions,
		MessageRepo: repos.ChatMessages,
		NoteRepo:    repos.Notes,
		Logger:      logger,
	})
	return env
}

var (
	adminActor = domain.Actor{CompanyID: 5, UserID: 1, Role: domain.RoleAdmin}
	agentActor = domain.Actor{CompanyID: 5, UserID: 7, Role: domain.RoleAgent}
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errorutil.IsCode(err, code), "expected %s, got %v", code, err)
}

func ptr[T any](v T) *T {
	return &v
}
