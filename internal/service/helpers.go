package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// storeError maps a repository failure onto the domain taxonomy. Missing rows
// become NotFound; anything else is logged and surfaced as RepositoryError.
func storeError(logger *zap.Logger, op, resource string, id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.NewNotFound(resource, map[string]any{"id": id})
	}
	logger.Error("repository failure",
		zap.String("op", op),
		zap.String("resource", resource),
		zap.Int64("id", id),
		zap.Error(err))
	return errorutil.NewRepositoryError(err)
}

// eventPublisher stamps and publishes domain events. Handler failures are
// logged and never fail the originating workflow.
type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func (p eventPublisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("entity_id", event.EntityID),
			zap.Error(err))
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func orWallClock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// pageWindow turns 1-based page/limit into limit/offset using cfg bounds.
func pageWindow(page, limit int, cfg config.WorkflowConfig) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = cfg.DefaultPageSize
	}
	if cfg.MaxPageSize > 0 && limit > cfg.MaxPageSize {
		limit = cfg.MaxPageSize
	}
	if limit > 0 && page-1 > math.MaxInt/limit {
		return page, limit, math.MaxInt
	}
	return page, limit, (page - 1) * limit
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func int64Ptr(v int64) *int64 {
	return &v
}

func sameInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
