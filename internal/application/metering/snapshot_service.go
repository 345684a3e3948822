package metering

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
)

// ProcessingUsageDTO is the processing-unit slice of a usage snapshot
type ProcessingUsageDTO struct {
	MonthlyUsed  int64   `json:"monthly_used"`
	MonthlyLimit int64   `json:"monthly_limit"`
	DailyUsed    int64   `json:"daily_used"`
	DailyLimit   int64   `json:"daily_limit"`
	BonusUnits   int64   `json:"bonus_units"`
	Percentage   float64 `json:"percentage"`
	Projected    int64   `json:"projected_month_end"`
}

// ResourceUsageDTO is a generic used/limit/percentage triple
type ResourceUsageDTO struct {
	Used       int64   `json:"used"`
	Limit      int64   `json:"limit"`
	Percentage float64 `json:"percentage"`
}

// ShareLinkUsageDTO reports active share links against their cap
type ShareLinkUsageDTO struct {
	Active     int64   `json:"active"`
	Limit      int64   `json:"limit"`
	Percentage float64 `json:"percentage"`
}

// UsageSnapshotDTO is the read-only usage/limit/percentage view consumed by
// reporting endpoints and the dashboard
type UsageSnapshotDTO struct {
	Plan      string `json:"plan"`
	SeatCount int    `json:"seat_count"`
	Usage     struct {
		Processing ProcessingUsageDTO `json:"processing"`
		Storage    ResourceUsageDTO   `json:"storage"`
		Egress     ResourceUsageDTO   `json:"egress"`
		ShareLinks ShareLinkUsageDTO  `json:"share_links"`
	} `json:"usage"`
}

// SnapshotService produces usage snapshots. It is strictly read-only: it
// never persists the lazy resets it applies for an accurate view, and it is
// queried by reporting endpoints, never by the admission gate.
type SnapshotService struct {
	ledgerRepo metering.QuotaLedgerRepository
	catalog    *metering.Catalog
	vault      metering.VaultStore
	logger     *zap.Logger

	now func() time.Time
}

// NewSnapshotService creates a new SnapshotService
func NewSnapshotService(
	ledgerRepo metering.QuotaLedgerRepository,
	catalog *metering.Catalog,
	vault metering.VaultStore,
	logger *zap.Logger,
) *SnapshotService {
	return &SnapshotService{
		ledgerRepo: ledgerRepo,
		catalog:    catalog,
		vault:      vault,
		logger:     logger,
		now:        time.Now,
	}
}

// Snapshot combines the quota ledger, the plan catalog and the vault-store
// aggregates into the per-resource usage view. Zero limits report a
// percentage of 0, never NaN or Inf.
func (s *SnapshotService) Snapshot(ctx context.Context, tenant metering.Tenant) (*UsageSnapshotDTO, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	ledger, err := s.ledgerRepo.FindByTenant(ctx, tenant.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidTenant
		}
		s.logger.Error("Failed to load quota ledger", zap.Error(err))
		return nil, shared.ErrLedgerUnavailable
	}

	now := s.now()
	ledger.ApplyResets(now) // view-only, not persisted
	limits := s.catalog.LimitsForTenant(tenant, ledger.Plan)

	dto := &UsageSnapshotDTO{
		Plan:      string(ledger.Plan),
		SeatCount: tenant.Seats(),
	}

	allowance := ledger.MonthlyAllowance(limits)
	dto.Usage.Processing = ProcessingUsageDTO{
		MonthlyUsed:  ledger.UnitsUsedThisMonth,
		MonthlyLimit: allowance,
		DailyUsed:    ledger.UnitsUsedToday,
		DailyLimit:   limits.DailyProcessingLimit,
		BonusUnits:   ledger.BonusUnits,
		Percentage:   metering.UsagePercent(ledger.UnitsUsedThisMonth, allowance),
		Projected:    projectedMonthEnd(ledger.UnitsUsedThisMonth, now),
	}

	dto.Usage.Egress = ResourceUsageDTO{
		Used:       ledger.EgressBytesUsed,
		Limit:      limits.EgressBytesPerMonth,
		Percentage: metering.UsagePercent(ledger.EgressBytesUsed, limits.EgressBytesPerMonth),
	}

	storageUsed, err := s.vault.StorageBytesUsed(ctx, tenant.ID)
	if err != nil {
		s.logger.Warn("Failed to fetch storage usage, reporting zero",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Error(err))
		storageUsed = 0
	}
	dto.Usage.Storage = ResourceUsageDTO{
		Used:       storageUsed,
		Limit:      limits.StorageBytes,
		Percentage: metering.UsagePercent(storageUsed, limits.StorageBytes),
	}

	activeLinks, err := s.vault.ActiveShareLinkCount(ctx, tenant.ID)
	if err != nil {
		s.logger.Warn("Failed to fetch share-link count, reporting zero",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Error(err))
		activeLinks = 0
	}
	dto.Usage.ShareLinks = ShareLinkUsageDTO{
		Active:     activeLinks,
		Limit:      limits.ActiveShareLinks,
		Percentage: metering.UsagePercent(activeLinks, limits.ActiveShareLinks),
	}

	return dto, nil
}

// projectedMonthEnd extrapolates the month-end usage from the average daily
// rate so far this month
func projectedMonthEnd(usedThisMonth int64, now time.Time) int64 {
	daysElapsed := now.Day()
	if daysElapsed == 0 || usedThisMonth == 0 {
		return usedThisMonth
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	daysInMonth := monthStart.AddDate(0, 1, -1).Day()
	dailyRate := float64(usedThisMonth) / float64(daysElapsed)
	return int64(dailyRate * float64(daysInMonth))
}
