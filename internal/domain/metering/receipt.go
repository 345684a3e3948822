package metering

import (
	"time"

	"github.com/google/uuid"
)

// RefundReceipt is the durable record of an applied refund. Together with the
// fast-path idempotency store it guarantees that re-sending the same request
// ID (e.g. after a caller-side timeout) never double-refunds.
type RefundReceipt struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	RequestID    string
	ResourceKind ResourceKind
	Amount       int64
	CreatedAt    time.Time
}

// NewRefundReceipt creates a receipt for an applied refund
func NewRefundReceipt(tenantID uuid.UUID, requestID string, kind ResourceKind, amount int64) *RefundReceipt {
	return &RefundReceipt{
		ID:           uuid.New(),
		TenantID:     tenantID,
		RequestID:    requestID,
		ResourceKind: kind,
		Amount:       amount,
		CreatedAt:    time.Now(),
	}
}
