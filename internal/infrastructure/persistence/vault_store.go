package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultio/backend/internal/domain/metering"
)

// VaultDocumentModel mirrors the document table owned by the vault service.
// The metering side only ever reads it.
type VaultDocumentModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	SizeBytes int64      `gorm:"not null"`
	DeletedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for the model
func (VaultDocumentModel) TableName() string {
	return "vault_documents"
}

// ShareLinkModel mirrors the share-link table owned by the vault service
type ShareLinkModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	RevokedAt *time.Time `gorm:"index"`
	ExpiresAt *time.Time
}

// TableName returns the table name for the model
func (ShareLinkModel) TableName() string {
	return "share_links"
}

// VaultStore implements metering.VaultStore against the vault service's
// tables. Storage bytes and share-link counts live with the documents, not
// in the quota ledger, so admission reads them fresh on every check.
type VaultStore struct {
	db *gorm.DB
}

// NewVaultStore creates a new vault store
func NewVaultStore(db *gorm.DB) *VaultStore {
	return &VaultStore{db: db}
}

// StorageBytesUsed sums the sizes of a tenant's live documents
func (s *VaultStore) StorageBytesUsed(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&VaultDocumentModel{}).
		Where("tenant_id = ?", tenantID).
		Where("deleted_at IS NULL").
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ActiveShareLinkCount counts a tenant's share links that are neither revoked
// nor expired
func (s *VaultStore) ActiveShareLinkCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ShareLinkModel{}).
		Where("tenant_id = ?", tenantID).
		Where("revoked_at IS NULL").
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure VaultStore implements the interface
var _ metering.VaultStore = (*VaultStore)(nil)
