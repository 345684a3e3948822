package event

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vaultio/backend/internal/domain/shared"
)

// Handler processes a single domain event. Handlers must be safe for
// concurrent use.
type Handler func(ctx context.Context, event shared.DomainEvent) error

// InProcessBus is a synchronous in-memory event bus. Handlers run on the
// publishing goroutine; a failing or panicking handler is logged and never
// propagates back to the publisher.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wildcard []Handler
	logger   *zap.Logger
}

// NewInProcessBus creates a new in-process event bus
func NewInProcessBus(logger *zap.Logger) *InProcessBus {
	return &InProcessBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for the given event types.
// With no event types the handler receives every event.
func (b *InProcessBus) Subscribe(handler Handler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
		return
	}
	for _, eventType := range eventTypes {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
	}
}

// Publish delivers the event to all matching handlers. It always returns
// nil so that publishing stays best-effort for callers.
func (b *InProcessBus) Publish(ctx context.Context, event shared.DomainEvent) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.EventType()])+len(b.wildcard))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := b.dispatch(ctx, handler, event); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (b *InProcessBus) dispatch(ctx context.Context, handler Handler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler(ctx, event)
}

var _ shared.EventPublisher = (*InProcessBus)(nil)
