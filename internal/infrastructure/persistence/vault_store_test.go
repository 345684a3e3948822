package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupVaultTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&VaultDocumentModel{}, &ShareLinkModel{})
	require.NoError(t, err)

	return db
}

func timePtr(v time.Time) *time.Time { return &v }

func TestVaultStore_StorageBytesUsed(t *testing.T) {
	db := setupVaultTestDB(t)
	store := NewVaultStore(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("zero when tenant has no documents", func(t *testing.T) {
		total, err := store.StorageBytesUsed(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})

	t.Run("sums live document sizes", func(t *testing.T) {
		docs := []VaultDocumentModel{
			{ID: uuid.New(), TenantID: tenantID, SizeBytes: 1000},
			{ID: uuid.New(), TenantID: tenantID, SizeBytes: 2500},
			{ID: uuid.New(), TenantID: uuid.New(), SizeBytes: 9999},
		}
		require.NoError(t, db.Create(&docs).Error)

		total, err := store.StorageBytesUsed(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(3500), total)
	})

	t.Run("excludes deleted documents", func(t *testing.T) {
		deleted := VaultDocumentModel{
			ID:        uuid.New(),
			TenantID:  tenantID,
			SizeBytes: 4000,
			DeletedAt: timePtr(time.Now()),
		}
		require.NoError(t, db.Create(&deleted).Error)

		total, err := store.StorageBytesUsed(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(3500), total)
	})
}

func TestVaultStore_ActiveShareLinkCount(t *testing.T) {
	db := setupVaultTestDB(t)
	store := NewVaultStore(db)
	ctx := context.Background()
	tenantID := uuid.New()

	links := []ShareLinkModel{
		// Active, no expiry
		{ID: uuid.New(), TenantID: tenantID},
		// Active, future expiry
		{ID: uuid.New(), TenantID: tenantID, ExpiresAt: timePtr(time.Now().Add(time.Hour))},
		// Expired
		{ID: uuid.New(), TenantID: tenantID, ExpiresAt: timePtr(time.Now().Add(-time.Hour))},
		// Revoked
		{ID: uuid.New(), TenantID: tenantID, RevokedAt: timePtr(time.Now())},
		// Other tenant
		{ID: uuid.New(), TenantID: uuid.New()},
	}
	require.NoError(t, db.Create(&links).Error)

	count, err := store.ActiveShareLinkCount(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
