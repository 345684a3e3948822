package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
)

// NotificationDedupModel is the GORM model for notification dedup records
type NotificationDedupModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID `gorm:"type:uuid;index:idx_notification_dedup_lookup;not null"`
	NotificationType string    `gorm:"type:varchar(50);index:idx_notification_dedup_lookup;not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index"`
}

// TableName returns the table name for the model
func (NotificationDedupModel) TableName() string {
	return "notification_dedup_records"
}

// ToEntity converts the model to a domain entity
func (m *NotificationDedupModel) ToEntity() *metering.NotificationDedupRecord {
	return &metering.NotificationDedupRecord{
		ID:               m.ID,
		TenantID:         m.TenantID,
		NotificationType: m.NotificationType,
		CreatedAt:        m.CreatedAt,
	}
}

// NotificationDedupRepository implements metering.NotificationDedupRepository
type NotificationDedupRepository struct {
	db *gorm.DB
}

// NewNotificationDedupRepository creates a new notification dedup repository
func NewNotificationDedupRepository(db *gorm.DB) *NotificationDedupRepository {
	return &NotificationDedupRepository{db: db}
}

// FindSince returns the newest record of the given type created at or after
// the cutoff
func (r *NotificationDedupRepository) FindSince(ctx context.Context, tenantID uuid.UUID, notificationType string, cutoff time.Time) (*metering.NotificationDedupRecord, error) {
	var model NotificationDedupModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("notification_type = ?", notificationType).
		Where("created_at >= ?", cutoff).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Create inserts a dedup record
func (r *NotificationDedupRepository) Create(ctx context.Context, record *metering.NotificationDedupRecord) error {
	model := &NotificationDedupModel{
		ID:               record.ID,
		TenantID:         record.TenantID,
		NotificationType: record.NotificationType,
		CreatedAt:        record.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// DeleteOlderThan removes a tenant's records for one resource kind older than
// the cutoff. The resource kind is the prefix of the notification type; its
// underscores are literal, so they are escaped before entering the pattern.
func (r *NotificationDedupRepository) DeleteOlderThan(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind, cutoff time.Time) (int64, error) {
	pattern := escapeLikeLiteral(string(kind)+"_") + "%"
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where(`notification_type LIKE ? ESCAPE '\'`, pattern).
		Where("created_at < ?", cutoff).
		Delete(&NotificationDedupModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// escapeLikeLiteral escapes LIKE wildcards so the input matches literally
func escapeLikeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return s
}

// Ensure NotificationDedupRepository implements the interface
var _ metering.NotificationDedupRepository = (*NotificationDedupRepository)(nil)
