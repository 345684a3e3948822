package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appmetering "github.com/vaultio/backend/internal/application/metering"
)

// TenantSettingsModel mirrors the tenant settings table owned by the account
// service. Only the email alert flag is read here.
type TenantSettingsModel struct {
	TenantID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	UsageEmailsEnabled bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for the model
func (TenantSettingsModel) TableName() string {
	return "tenant_settings"
}

// EmailOutboxModel is the GORM model for queued alert emails. A separate
// mailer process drains this table; the metering service only enqueues.
type EmailOutboxModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	Subject   string     `gorm:"type:varchar(200);not null"`
	Body      string     `gorm:"type:text;not null"`
	SentAt    *time.Time `gorm:"index"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

// TableName returns the table name for the model
func (EmailOutboxModel) TableName() string {
	return "email_outbox"
}

// EmailGateway reads tenant email preferences and enqueues alert emails.
// It implements both consumer interfaces of the notifier service.
type EmailGateway struct {
	db *gorm.DB
}

// NewEmailGateway creates a new email gateway
func NewEmailGateway(db *gorm.DB) *EmailGateway {
	return &EmailGateway{db: db}
}

// EmailAlertsEnabled reports whether the tenant opted into usage emails.
// Tenants without a settings row default to enabled.
func (g *EmailGateway) EmailAlertsEnabled(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	var settings TenantSettingsModel
	err := g.db.WithContext(ctx).First(&settings, "tenant_id = ?", tenantID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return true, nil
		}
		return false, err
	}
	return settings.UsageEmailsEnabled, nil
}

// SendUsageAlert enqueues an alert email for the mailer to deliver
func (g *EmailGateway) SendUsageAlert(ctx context.Context, tenantID uuid.UUID, subject, body string) error {
	model := &EmailOutboxModel{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now(),
	}
	return g.db.WithContext(ctx).Create(model).Error
}

// Ensure EmailGateway implements the notifier service interfaces
var (
	_ appmetering.EmailPreferenceSource = (*EmailGateway)(nil)
	_ appmetering.EmailSender           = (*EmailGateway)(nil)
)
