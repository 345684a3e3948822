package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
)

// QuotaLedgerModel is the GORM model for quota ledgers
type QuotaLedgerModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	TenantKind string    `gorm:"type:varchar(10);not null"`
	Plan       string    `gorm:"type:varchar(30);not null"`
	SeatCount  int       `gorm:"not null;default:1"`

	UnitsUsedThisMonth int64 `gorm:"not null;default:0"`
	UnitsUsedToday     int64 `gorm:"not null;default:0"`
	BonusUnits         int64 `gorm:"not null;default:0"`
	EgressBytesUsed    int64 `gorm:"not null;default:0"`

	LastDailyResetAt   time.Time `gorm:"not null"`
	LastMonthlyResetAt time.Time `gorm:"not null"`

	AutoTopUpEnabled bool   `gorm:"not null;default:false"`
	AutoTopUpPack    string `gorm:"type:varchar(10);not null;default:''"`

	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (QuotaLedgerModel) TableName() string {
	return "quota_ledgers"
}

// ToEntity converts the model to a domain entity
func (m *QuotaLedgerModel) ToEntity() *metering.QuotaLedger {
	return &metering.QuotaLedger{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		TenantID:           m.TenantID,
		TenantKind:         metering.TenantKind(m.TenantKind),
		Plan:               metering.PlanTier(m.Plan),
		SeatCount:          m.SeatCount,
		UnitsUsedThisMonth: m.UnitsUsedThisMonth,
		UnitsUsedToday:     m.UnitsUsedToday,
		BonusUnits:         m.BonusUnits,
		EgressBytesUsed:    m.EgressBytesUsed,
		LastDailyResetAt:   m.LastDailyResetAt,
		LastMonthlyResetAt: m.LastMonthlyResetAt,
		AutoTopUpEnabled:   m.AutoTopUpEnabled,
		AutoTopUpPack:      metering.PackKind(m.AutoTopUpPack),
	}
}

// QuotaLedgerModelFromEntity creates a model from a domain entity
func QuotaLedgerModelFromEntity(e *metering.QuotaLedger) *QuotaLedgerModel {
	return &QuotaLedgerModel{
		ID:                 e.ID,
		TenantID:           e.TenantID,
		TenantKind:         string(e.TenantKind),
		Plan:               string(e.Plan),
		SeatCount:          e.SeatCount,
		UnitsUsedThisMonth: e.UnitsUsedThisMonth,
		UnitsUsedToday:     e.UnitsUsedToday,
		BonusUnits:         e.BonusUnits,
		EgressBytesUsed:    e.EgressBytesUsed,
		LastDailyResetAt:   e.LastDailyResetAt,
		LastMonthlyResetAt: e.LastMonthlyResetAt,
		AutoTopUpEnabled:   e.AutoTopUpEnabled,
		AutoTopUpPack:      string(e.AutoTopUpPack),
		Version:            e.Version,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

// QuotaLedgerRepository implements the metering.QuotaLedgerRepository interface
type QuotaLedgerRepository struct {
	db *gorm.DB
}

// NewQuotaLedgerRepository creates a new quota ledger repository
func NewQuotaLedgerRepository(db *gorm.DB) *QuotaLedgerRepository {
	return &QuotaLedgerRepository{db: db}
}

// FindByTenant retrieves the ledger for a tenant
func (r *QuotaLedgerRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.QuotaLedger, error) {
	var model QuotaLedgerModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Create inserts a freshly provisioned ledger
func (r *QuotaLedgerRepository) Create(ctx context.Context, ledger *metering.QuotaLedger) error {
	model := QuotaLedgerModelFromEntity(ledger)
	return r.db.WithContext(ctx).Create(model).Error
}

// UpdateWithVersion persists the ledger with optimistic locking. The UPDATE
// is guarded by the version the ledger was read at; zero affected rows means
// another writer committed first and the caller must re-read and retry.
func (r *QuotaLedgerRepository) UpdateWithVersion(ctx context.Context, ledger *metering.QuotaLedger) error {
	currentVersion := ledger.Version
	result := r.db.WithContext(ctx).
		Model(&QuotaLedgerModel{}).
		Where("tenant_id = ? AND version = ?", ledger.TenantID, currentVersion).
		Updates(map[string]interface{}{
			"plan":                  string(ledger.Plan),
			"seat_count":            ledger.SeatCount,
			"units_used_this_month": ledger.UnitsUsedThisMonth,
			"units_used_today":      ledger.UnitsUsedToday,
			"bonus_units":           ledger.BonusUnits,
			"egress_bytes_used":     ledger.EgressBytesUsed,
			"last_daily_reset_at":   ledger.LastDailyResetAt,
			"last_monthly_reset_at": ledger.LastMonthlyResetAt,
			"auto_top_up_enabled":   ledger.AutoTopUpEnabled,
			"auto_top_up_pack":      string(ledger.AutoTopUpPack),
			"version":               currentVersion + 1,
			"updated_at":            time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	ledger.Version = currentVersion + 1
	return nil
}

// Ensure QuotaLedgerRepository implements the interface
var _ metering.QuotaLedgerRepository = (*QuotaLedgerRepository)(nil)
