package service

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/support-desk/internal/events"
)

// NotificationService logs domain events for operators.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     orNop(logger),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventArticlePublished, n.handle("ArticlePublished", zap.InfoLevel))
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handle("TicketCreated", zap.InfoLevel))
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handle("TicketStatusChanged", zap.InfoLevel))
	n.dispatcher.Subscribe(events.EventTicketPriorityChanged, n.handle("TicketPriorityChanged", zap.InfoLevel))
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handle("TicketAssigned", zap.InfoLevel))
	n.dispatcher.Subscribe(events.EventChatSessionClosed, n.handle("ChatSessionClosed", zap.InfoLevel))
	n.dispatcher.Subscribe(events.EventChatMessageSent, n.handle("ChatMessageSent", zap.DebugLevel))
}

func (n *NotificationService) handle(name string, level zapcore.Level) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		n.logger.Log(level, name,
			zap.String("event_id", event.ID),
			zap.Int64("company_id", event.CompanyID),
			zap.String("entity_type", event.EntityType),
			zap.Int64("entity_id", event.EntityID),
			zap.Any("payload", event.Payload))
		return nil
	}
}
