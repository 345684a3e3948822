package metering

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
)

// ProvisionService creates quota ledgers for new tenants and applies plan
// changes. Plan names arriving from billing webhooks may still use the
// legacy tier names, so everything passes through NormalizePlan first.
type ProvisionService struct {
	ledgerRepo metering.QuotaLedgerRepository
	logger     *zap.Logger

	maxCommitRetries int
}

// NewProvisionService creates a new ProvisionService
func NewProvisionService(ledgerRepo metering.QuotaLedgerRepository, logger *zap.Logger) *ProvisionService {
	return &ProvisionService{
		ledgerRepo:       ledgerRepo,
		logger:           logger,
		maxCommitRetries: 5,
	}
}

// EnsureLedger provisions a zeroed ledger for the tenant if one does not
// exist yet. Safe to call repeatedly; an existing ledger is returned as-is.
func (s *ProvisionService) EnsureLedger(ctx context.Context, tenant metering.Tenant, rawPlan string) (*metering.QuotaLedger, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.ledgerRepo.FindByTenant(ctx, tenant.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		s.logger.Error("Failed to load quota ledger", zap.Error(err))
		return nil, shared.ErrLedgerUnavailable
	}

	plan, known := metering.NormalizePlan(rawPlan)
	if !known {
		s.logger.Warn("Unknown plan name, provisioning baseline tier",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("raw_plan", rawPlan))
	}

	ledger, err := metering.NewQuotaLedger(tenant, plan)
	if err != nil {
		return nil, err
	}
	if err := s.ledgerRepo.Create(ctx, ledger); err != nil {
		// Lost a provisioning race; the winner's ledger is authoritative.
		if existing, findErr := s.ledgerRepo.FindByTenant(ctx, tenant.ID); findErr == nil {
			return existing, nil
		}
		s.logger.Error("Failed to create quota ledger", zap.Error(err))
		return nil, shared.ErrLedgerUnavailable
	}

	s.logger.Info("Provisioned quota ledger",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("plan", plan.String()))
	return ledger, nil
}

// ChangePlan moves a tenant to a new plan tier. Usage counters are left
// untouched; only the limits applied to them change.
func (s *ProvisionService) ChangePlan(ctx context.Context, tenant metering.Tenant, rawPlan string) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	plan, known := metering.NormalizePlan(rawPlan)
	if !known {
		s.logger.Warn("Unknown plan name on plan change, using baseline tier",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("raw_plan", rawPlan))
	}

	for attempt := 0; attempt < s.maxCommitRetries; attempt++ {
		ledger, err := s.ledgerRepo.FindByTenant(ctx, tenant.ID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.ErrInvalidTenant
			}
			s.logger.Error("Failed to load quota ledger", zap.Error(err))
			return shared.ErrLedgerUnavailable
		}

		ledger.ChangePlan(plan, tenant.Seats())
		err = s.ledgerRepo.UpdateWithVersion(ctx, ledger)
		if err == nil {
			return nil
		}
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			continue
		}
		s.logger.Error("Failed to persist plan change", zap.Error(err))
		return shared.ErrLedgerUnavailable
	}
	return shared.ErrConcurrencyConflict
}

// SetAutoTopUp enables or disables automatic top-up purchasing and selects
// the pack to purchase when it triggers.
func (s *ProvisionService) SetAutoTopUp(ctx context.Context, tenant metering.Tenant, enabled bool, pack metering.PackKind) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	if enabled && !pack.IsValid() {
		return shared.NewDomainError("INVALID_PACK", "unknown top-up pack kind")
	}

	for attempt := 0; attempt < s.maxCommitRetries; attempt++ {
		ledger, err := s.ledgerRepo.FindByTenant(ctx, tenant.ID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.ErrInvalidTenant
			}
			s.logger.Error("Failed to load quota ledger", zap.Error(err))
			return shared.ErrLedgerUnavailable
		}

		ledger.AutoTopUpEnabled = enabled
		ledger.AutoTopUpPack = pack
		err = s.ledgerRepo.UpdateWithVersion(ctx, ledger)
		if err == nil {
			return nil
		}
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			continue
		}
		s.logger.Error("Failed to persist auto top-up setting", zap.Error(err))
		return shared.ErrLedgerUnavailable
	}
	return shared.ErrConcurrencyConflict
}
