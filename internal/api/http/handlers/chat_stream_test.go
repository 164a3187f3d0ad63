package handlers

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
)

func newStreamFixture(t *testing.T) (*ChatHandler, *service.ChatService, *realtime.Hub) {
	t.Helper()
	repos := memory.NewStore().Repositories()
	hub := realtime.NewHub(nil)
	svc := service.NewChatService(service.ChatDependencies{
		SessionRepo: repos.ChatSessions,
		MessageRepo: repos.ChatMessages,
		TicketRepo:  repos.Tickets,
		Broker:      realtime.NewMemoryBroker(hub),
	})
	return NewChatHandler(svc, 8, zap.NewNop()), svc, hub
}

func sendText(t *testing.T, svc *service.ChatService, sessionID int64, text string) *domain.ChatMessage {
	t.Helper()
	contactID := int64(3)
	msg, err := svc.SendMessage(context.Background(), service.SendMessageInput{
		SessionID:  sessionID,
		CompanyID:  5,
		SenderType: domain.SenderContact,
		SenderID:   &contactID,
		Text:       text,
	})
	require.NoError(t, err)
	return msg
}

func TestStreamSessionSubscriptionLivesWithWriter(t *testing.T) {
	h, svc, hub := newStreamFixture(t)
	session, err := svc.CreateCustomerSession(context.Background(), 3, 5)
	require.NoError(t, err)
	earlier := sendText(t, svc, session.ID, "before connect")

	assert.Zero(t, hub.Count(session.ID))

	out := &lockedBuffer{}
	since := earlier.CreatedAt.Add(-time.Second)
	finished := make(chan struct{})
	go func() {
		h.streamSession(bufio.NewWriter(out), session.ID, &since)
		close(finished)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), fmt.Sprintf("id: %d\n", earlier.ID))
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.Count(session.ID))

	later := sendText(t, svc, session.ID, "after connect")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), fmt.Sprintf("id: %d\n", later.ID))
	}, time.Second, 5*time.Millisecond)

	h.Close()
	<-finished
	assert.Zero(t, hub.Count(session.ID))
	assert.Equal(t, 1, strings.Count(out.String(), fmt.Sprintf("id: %d\n", earlier.ID)))
}

func TestStreamSessionBacklogFailureReleasesSubscription(t *testing.T) {
	h, _, hub := newStreamFixture(t)
	out := &lockedBuffer{}
	since := time.Now().Add(-time.Hour)

	h.streamSession(bufio.NewWriter(out), 404, &since)

	assert.Zero(t, hub.Count(404))
	assert.Contains(t, out.String(), "event: error\n")
	assert.Contains(t, out.String(), `"code":"NOT_FOUND"`)
}
