package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/vaultio/backend/internal/domain/shared"
)

// NewAuditLogger returns a handler that records every event it receives
// in the structured log. Subscribed as a wildcard handler it produces an
// audit trail of all quota activity without touching the hot path.
func NewAuditLogger(logger *zap.Logger) Handler {
	return func(_ context.Context, event shared.DomainEvent) error {
		logger.Info("domain event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.String("aggregate_type", event.AggregateType()),
			zap.String("aggregate_id", event.AggregateID().String()),
			zap.String("tenant_id", event.TenantID().String()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
		return nil
	}
}
