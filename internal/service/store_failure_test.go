package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

var errStoreDown = errors.New("connection refused")

type failingTicketRepo struct {
	repository.TicketRepository
}

func (failingTicketRepo) Search(context.Context, repository.TicketFilter) ([]domain.Ticket, int, error) {
	return nil, 0, errStoreDown
}

type failingSessionRepo struct {
	repository.ChatSessionRepository
}

func (failingSessionRepo) Create(context.Context, *domain.ChatSession) error {
	return errStoreDown
}

func (failingSessionRepo) ListByTicket(context.Context, int64) ([]domain.ChatSession, error) {
	return nil, errStoreDown
}

type failingMessageRepo struct {
	repository.ChatMessageRepository
	creates atomic.Int32
}

func (r *failingMessageRepo) Create(context.Context, *domain.ChatMessage) error {
	r.creates.Add(1)
	return errStoreDown
}

type failingNoteRepo struct {
	repository.NoteRepository
}

func (failingNoteRepo) ListByTarget(context.Context, domain.NoteTargetType, int64) ([]domain.Note, error) {
	return nil, errStoreDown
}

func requireStoreError(t *testing.T, err error) {
	t.Helper()
	requireCode(t, err, errorutil.CodeRepository)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestFindFilteredSurfacesStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  failingTicketRepo{env.repos.Tickets},
		HistoryRepo: env.repos.TicketHistory,
		Config:      defaultWorkflow(),
		Logger:      zap.NewNop(),
	})

	_, err := svc.FindFiltered(context.Background(), TicketSearchInput{CompanyID: 5})
	requireStoreError(t, err)
}

func TestCreateSessionSurfacesStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	svc := NewChatService(ChatDependencies{
		SessionRepo: failingSessionRepo{env.repos.ChatSessions},
		MessageRepo: env.repos.ChatMessages,
		TicketRepo:  env.repos.Tickets,
		Broker:      env.broker,
	})

	_, err := svc.CreateCustomerSession(context.Background(), 3, 5)
	requireStoreError(t, err)
}

func TestSendMessageStoreFailurePublishesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session, err := env.chat.CreateCustomerSession(ctx, 3, 5)
	require.NoError(t, err)

	recorded := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.SubscribeAll(recorded.handle)

	messages := &failingMessageRepo{ChatMessageRepository: env.repos.ChatMessages}
	svc := NewChatService(ChatDependencies{
		SessionRepo: env.repos.ChatSessions,
		MessageRepo: messages,
		TicketRepo:  env.repos.Tickets,
		Broker:      env.broker,
		Dispatcher:  dispatcher,
		Clock:       env.clock.Now,
	})

	var delivered atomic.Int32
	sub := svc.SubscribeToSession(session.ID, func(domain.ChatMessage) { delivered.Add(1) })
	defer svc.UnsubscribeFromSession(sub)

	_, err = svc.SendMessage(ctx, SendMessageInput{
		SessionID:  session.ID,
		CompanyID:  5,
		SenderType: domain.SenderContact,
		SenderID:   ptr(int64(3)),
		Text:       "hello?",
	})
	requireStoreError(t, err)
	assert.Equal(t, int32(1), messages.creates.Load(), "store failures are not retried")
	assert.Zero(t, delivered.Load())
	assert.Empty(t, recorded.types())

	stored, err := env.chat.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastMessageAt)
}

func TestGetTicketConversationSurfacesStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	ticket := createTicket(t, env, TicketCreateInput{})

	tests := []struct {
		name string
		deps ConversationDependencies
	}{
		{
			name: "sessions",
			deps: ConversationDependencies{
				TicketRepo:  env.repos.Tickets,
				SessionRepo: failingSessionRepo{env.repos.ChatSessions},
				MessageRepo: env.repos.ChatMessages,
				NoteRepo:    env.repos.Notes,
			},
		},
		{
			name: "notes",
			deps: ConversationDependencies{
				TicketRepo:  env.repos.Tickets,
				SessionRepo: env.repos.ChatSessions,
				MessageRepo: env.repos.ChatMessages,
				NoteRepo:    failingNoteRepo{env.repos.Notes},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConversationService(tt.deps).GetTicketConversation(context.Background(), ticket.ID)
			requireStoreError(t, err)
		})
	}
}

func TestChatServiceWithoutBrokerStillFansOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewChatService(ChatDependencies{
		SessionRepo: env.repos.ChatSessions,
		MessageRepo: env.repos.ChatMessages,
		TicketRepo:  env.repos.Tickets,
		Clock:       env.clock.Now,
	})
	session, err := svc.CreateCustomerSession(ctx, 3, 5)
	require.NoError(t, err)

	var delivered atomic.Int32
	sub := svc.SubscribeToSession(session.ID, func(domain.ChatMessage) { delivered.Add(1) })
	require.NotNil(t, sub)

	_, err = svc.SendMessage(ctx, SendMessageInput{
		SessionID:  session.ID,
		CompanyID:  5,
		SenderType: domain.SenderContact,
		SenderID:   ptr(int64(3)),
		Text:       "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), delivered.Load())

	svc.UnsubscribeFromSession(sub)
	svc.UnsubscribeFromSession(nil)
}
