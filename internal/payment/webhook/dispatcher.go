package webhook

import (
	"context"
	"strings"
	"sync"

	"github.com/smallbiznis/paysite/internal/observability/logger"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"go.uber.org/zap"
)

// EventHandler processes one verified webhook event type.
type EventHandler interface {
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

type EventHandlerFunc func(ctx context.Context, event *domain.WebhookEvent) error

func (f EventHandlerFunc) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	return f(ctx, event)
}

// Dispatcher routes events to the handler registered for their type.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
	log      *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		handlers: map[string]EventHandler{},
		log:      log.Named("payment.dispatcher"),
	}
}

// Register binds handler to eventType, replacing any previous handler.
func (d *Dispatcher) Register(eventType string, handler EventHandler) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" || handler == nil {
		return
	}
	d.mu.Lock()
	d.handlers[eventType] = handler
	d.mu.Unlock()
}

func (d *Dispatcher) Handles(eventType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[eventType]
	return ok
}

// Dispatch runs the handler for event.Type. Unregistered types are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	if event == nil {
		return nil
	}
	d.mu.RLock()
	handler, ok := d.handlers[event.Type]
	d.mu.RUnlock()
	if !ok {
		logger.WithContext(ctx, d.log).Debug("unhandled webhook event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
		)
		return nil
	}
	return handler.Handle(ctx, event)
}
