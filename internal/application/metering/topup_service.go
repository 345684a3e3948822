package metering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
)

// TopUpOutcome reports the result of an automatic top-up attempt
type TopUpOutcome struct {
	Granted      bool
	UnitsGranted int64
	Err          error
}

// TopUpServiceConfig contains configuration for TopUpService
type TopUpServiceConfig struct {
	// TriggerPercent is the minimum pre-failure monthly usage percentage at
	// which an automatic top-up may fire
	TriggerPercent float64

	// PurchaseTimeout bounds the billing-provider round-trip. Expiry is a
	// failure: no retry loop, no indefinite wait.
	PurchaseTimeout time.Duration

	// MaxGrantRetries bounds the optimistic-lock retry loop for committing
	// the bonus grant
	MaxGrantRetries int
}

// DefaultTopUpServiceConfig returns default configuration
func DefaultTopUpServiceConfig() TopUpServiceConfig {
	return TopUpServiceConfig{
		TriggerPercent:  80.0,
		PurchaseTimeout: 10 * time.Second,
		MaxGrantRetries: 5,
	}
}

// TopUpService implements the automatic top-up policy: when a monthly-limit
// denial occurs for an opted-in tenant, it purchases one top-up pack from the
// billing provider and commits the granted units so the gate can re-check
// once. The purchase runs outside any per-tenant critical section.
type TopUpService struct {
	ledgerRepo metering.QuotaLedgerRepository
	packs      *metering.PackCatalog
	provider   metering.BillingProvider
	publisher  shared.EventPublisher
	logger     *zap.Logger

	triggerPercent  float64
	purchaseTimeout time.Duration
	maxGrantRetries int
}

// NewTopUpService creates a new TopUpService
func NewTopUpService(
	ledgerRepo metering.QuotaLedgerRepository,
	packs *metering.PackCatalog,
	provider metering.BillingProvider,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	config TopUpServiceConfig,
) *TopUpService {
	defaults := DefaultTopUpServiceConfig()
	if config.TriggerPercent <= 0 {
		config.TriggerPercent = defaults.TriggerPercent
	}
	if config.PurchaseTimeout <= 0 {
		config.PurchaseTimeout = defaults.PurchaseTimeout
	}
	if config.MaxGrantRetries <= 0 {
		config.MaxGrantRetries = defaults.MaxGrantRetries
	}
	return &TopUpService{
		ledgerRepo:      ledgerRepo,
		packs:           packs,
		provider:        provider,
		publisher:       publisher,
		logger:          logger,
		triggerPercent:  config.TriggerPercent,
		purchaseTimeout: config.PurchaseTimeout,
		maxGrantRetries: config.MaxGrantRetries,
	}
}

// MaybeTopUp attempts one automatic top-up purchase for the given ledger.
// The caller guarantees this is the first attempt within its gate call; the
// service never recurses or retries a failed purchase.
func (s *TopUpService) MaybeTopUp(ctx context.Context, ledger *metering.QuotaLedger, limits metering.LimitSet) TopUpOutcome {
	if !ledger.AutoTopUpEnabled {
		return TopUpOutcome{}
	}

	// Pre-failure usage gate: a request that jumps from low usage straight
	// over the cap (e.g. a huge batch) should not trigger a purchase.
	usagePercent := metering.UsagePercent(ledger.UnitsUsedThisMonth, ledger.MonthlyAllowance(limits))
	if usagePercent < s.triggerPercent {
		s.logger.Debug("Auto top-up skipped, usage below trigger",
			zap.String("tenant_id", ledger.TenantID.String()),
			zap.Float64("usage_percent", usagePercent),
			zap.Float64("trigger_percent", s.triggerPercent))
		return TopUpOutcome{}
	}

	pack, ok := s.packs.Pack(ledger.AutoTopUpPack)
	if !ok {
		return TopUpOutcome{Err: shared.NewDomainError("TOPUP_FAILED",
			fmt.Sprintf("tenant has no valid top-up pack configured (%q)", ledger.AutoTopUpPack))}
	}

	purchaseCtx, cancel := context.WithTimeout(ctx, s.purchaseTimeout)
	defer cancel()

	result, err := s.provider.Purchase(purchaseCtx, ledger.Tenant(), pack)
	if err != nil {
		s.logger.Warn("Auto top-up purchase failed",
			zap.String("tenant_id", ledger.TenantID.String()),
			zap.String("pack", string(pack.Kind)),
			zap.Error(err))
		return TopUpOutcome{Err: shared.NewDomainError("TOPUP_FAILED", err.Error())}
	}

	granted := result.UnitsGranted
	if granted <= 0 {
		granted = pack.UnitsGranted
	}

	if err := s.commitGrant(ctx, ledger, pack, granted); err != nil {
		// The purchase succeeded but the grant could not be persisted; the
		// provider is idempotent-safe so a later retry will reconcile.
		s.logger.Error("Failed to commit top-up grant",
			zap.String("tenant_id", ledger.TenantID.String()),
			zap.Error(err))
		return TopUpOutcome{Err: shared.NewDomainError("TOPUP_FAILED", "failed to commit top-up grant")}
	}

	s.logger.Info("Auto top-up granted",
		zap.String("tenant_id", ledger.TenantID.String()),
		zap.String("pack", string(pack.Kind)),
		zap.Int64("units_granted", granted),
		zap.String("payment_ref", result.PaymentRef))

	return TopUpOutcome{Granted: true, UnitsGranted: granted}
}

// commitGrant re-acquires the ledger only to persist the bonus grant, so the
// payment round-trip never blocks concurrent requests to the same tenant
func (s *TopUpService) commitGrant(ctx context.Context, stale *metering.QuotaLedger, pack metering.TopUpPack, granted int64) error {
	for attempt := 0; attempt < s.maxGrantRetries; attempt++ {
		ledger, err := s.ledgerRepo.FindByTenant(ctx, stale.TenantID)
		if err != nil {
			return err
		}
		ledger.GrantBonus(granted)

		err = s.ledgerRepo.UpdateWithVersion(ctx, ledger)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			continue
		}
		if err != nil {
			return err
		}

		if s.publisher != nil {
			event := metering.NewTopUpGrantedEvent(ledger.ID, ledger.TenantID, pack.Kind, granted, ledger.BonusUnits)
			go func() {
				if pubErr := s.publisher.Publish(context.Background(), event); pubErr != nil {
					s.logger.Warn("Failed to publish top-up granted event", zap.Error(pubErr))
				}
			}()
		}
		return nil
	}
	return shared.ErrConcurrencyConflict
}
