package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultio/backend/internal/domain/metering"
)

// RefundReceiptModel is the GORM model for refund receipts
type RefundReceiptModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_refund_receipts_request;not null"`
	RequestID    string    `gorm:"type:varchar(100);uniqueIndex:idx_refund_receipts_request;not null"`
	ResourceKind string    `gorm:"type:varchar(30);not null"`
	Amount       int64     `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for the model
func (RefundReceiptModel) TableName() string {
	return "refund_receipts"
}

// RefundReceiptRepository implements metering.RefundReceiptRepository
type RefundReceiptRepository struct {
	db *gorm.DB
}

// NewRefundReceiptRepository creates a new refund receipt repository
func NewRefundReceiptRepository(db *gorm.DB) *RefundReceiptRepository {
	return &RefundReceiptRepository{db: db}
}

// Exists reports whether a receipt for this tenant and request ID exists
func (r *RefundReceiptRepository) Exists(ctx context.Context, tenantID uuid.UUID, requestID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&RefundReceiptModel{}).
		Where("tenant_id = ? AND request_id = ?", tenantID, requestID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a receipt
func (r *RefundReceiptRepository) Create(ctx context.Context, receipt *metering.RefundReceipt) error {
	model := &RefundReceiptModel{
		ID:           receipt.ID,
		TenantID:     receipt.TenantID,
		RequestID:    receipt.RequestID,
		ResourceKind: string(receipt.ResourceKind),
		Amount:       receipt.Amount,
		CreatedAt:    receipt.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// Ensure RefundReceiptRepository implements the interface
var _ metering.RefundReceiptRepository = (*RefundReceiptRepository)(nil)
