package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultio/backend/internal/domain/metering"
)

// UsageNotificationModel is the GORM model for in-app usage notifications
type UsageNotificationModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID  `gorm:"type:uuid;index;not null"`
	NotificationType string     `gorm:"type:varchar(50);not null"`
	Title            string     `gorm:"type:varchar(200);not null"`
	Message          string     `gorm:"type:text;not null"`
	ReadAt           *time.Time `gorm:"index"`
	CreatedAt        time.Time  `gorm:"autoCreateTime"`
}

// TableName returns the table name for the model
func (UsageNotificationModel) TableName() string {
	return "usage_notifications"
}

// InAppNotifier writes usage alerts to the notification inbox table read by
// the dashboard. It implements metering.Notifier.
type InAppNotifier struct {
	db *gorm.DB
}

// NewInAppNotifier creates a new in-app notifier
func NewInAppNotifier(db *gorm.DB) *InAppNotifier {
	return &InAppNotifier{db: db}
}

// Notify inserts an unread notification for the tenant
func (n *InAppNotifier) Notify(ctx context.Context, tenantID uuid.UUID, notificationType, title, message string) error {
	model := &UsageNotificationModel{
		ID:               uuid.New(),
		TenantID:         tenantID,
		NotificationType: notificationType,
		Title:            title,
		Message:          message,
		CreatedAt:        time.Now(),
	}
	return n.db.WithContext(ctx).Create(model).Error
}

// Ensure InAppNotifier implements the interface
var _ metering.Notifier = (*InAppNotifier)(nil)
