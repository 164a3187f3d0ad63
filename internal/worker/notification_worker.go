package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// EventForwarder moves domain events off the request path: the dispatcher
// enqueues them and a background goroutine hands them to the sink. A full
// queue drops the event.
type EventForwarder struct {
	queue  chan events.Event
	sink   events.EventHandler
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewEventForwarder builds a forwarder with the given queue size.
func NewEventForwarder(sink events.EventHandler, size int, logger *zap.Logger) *EventForwarder {
	if size <= 0 {
		size = 256
	}
	return &EventForwarder{
		queue:  make(chan events.Event, size),
		sink:   sink,
		logger: logger,
	}
}

// Register subscribes the forwarder to every event type.
func (f *EventForwarder) Register(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(f.Enqueue)
}

// Enqueue is an EventHandler that never blocks.
func (f *EventForwarder) Enqueue(_ context.Context, event events.Event) error {
	select {
	case f.queue <- event:
	default:
		f.logger.Warn("event queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
	return nil
}

// Start drains the queue until ctx is done, then flushes what is left.
func (f *EventForwarder) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case event := <-f.queue:
				f.forward(context.WithoutCancel(ctx), event)
			case <-ctx.Done():
				f.drain(context.WithoutCancel(ctx))
				return
			}
		}
	}()
}

// Wait blocks until the drain goroutine has exited.
func (f *EventForwarder) Wait() {
	f.wg.Wait()
}

func (f *EventForwarder) drain(ctx context.Context) {
	for {
		select {
		case event := <-f.queue:
			f.forward(ctx, event)
		default:
			return
		}
	}
}

func (f *EventForwarder) forward(ctx context.Context, event events.Event) {
	if err := f.sink(ctx, event); err != nil {
		f.logger.Warn("forward event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
