package metering

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
)

// Denial reason codes returned inside AdmissionResult. Denials are typed
// results, never Go errors, so callers can render an upgrade prompt.
const (
	ReasonDailyLimitExceeded     = "DAILY_LIMIT_EXCEEDED"
	ReasonMonthlyLimitExceeded   = "MONTHLY_LIMIT_EXCEEDED"
	ReasonStorageLimitExceeded   = "STORAGE_LIMIT_EXCEEDED"
	ReasonEgressLimitExceeded    = "EGRESS_LIMIT_EXCEEDED"
	ReasonShareLinkLimitExceeded = "SHARE_LINK_LIMIT_EXCEEDED"
)

// AdmissionResult is the outcome of a gate check
type AdmissionResult struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	TopUpError   string `json:"topup_error,omitempty"` // set when an auto top-up was attempted and failed
	CurrentUsage int64  `json:"current_usage"`
	Limit        int64  `json:"limit"`
}

// HTTPStatusCode returns 429 for denials so metered routes can surface the
// standard too-many-requests semantics
func (r *AdmissionResult) HTTPStatusCode() int {
	if r.Allowed {
		return http.StatusOK
	}
	return http.StatusTooManyRequests
}

// AdmissionServiceConfig contains configuration for AdmissionService
type AdmissionServiceConfig struct {
	// MaxCommitRetries bounds the optimistic-lock retry loop for the
	// check-and-increment sequence
	MaxCommitRetries int

	// RefundReceiptTTL is the fast-path idempotency TTL for refund request IDs
	RefundReceiptTTL time.Duration
}

// DefaultAdmissionServiceConfig returns default configuration
func DefaultAdmissionServiceConfig() AdmissionServiceConfig {
	return AdmissionServiceConfig{
		MaxCommitRetries: 5,
		RefundReceiptTTL: 24 * time.Hour,
	}
}

// AdmissionService is the admission gate: it decides whether a metered
// operation may proceed and atomically commits the consumption when it does.
// Per-tenant linearizability of the read-check-write sequence comes from the
// ledger repository's version-guarded update; cross-tenant requests never
// contend.
type AdmissionService struct {
	ledgerRepo  metering.QuotaLedgerRepository
	receiptRepo metering.RefundReceiptRepository
	catalog     *metering.Catalog
	vault       metering.VaultStore
	topUp       *TopUpService
	notifier    *NotifierService
	idempotency shared.IdempotencyStore
	publisher   shared.EventPublisher
	logger      *zap.Logger

	maxCommitRetries int
	refundTTL        time.Duration
	now              func() time.Time
}

// NewAdmissionService creates a new AdmissionService. topUp, notifier,
// idempotency and publisher may be nil; the corresponding behavior is then
// skipped.
func NewAdmissionService(
	ledgerRepo metering.QuotaLedgerRepository,
	receiptRepo metering.RefundReceiptRepository,
	catalog *metering.Catalog,
	vault metering.VaultStore,
	topUp *TopUpService,
	notifier *NotifierService,
	idempotency shared.IdempotencyStore,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	config AdmissionServiceConfig,
) *AdmissionService {
	if config.MaxCommitRetries <= 0 {
		config.MaxCommitRetries = DefaultAdmissionServiceConfig().MaxCommitRetries
	}
	if config.RefundReceiptTTL <= 0 {
		config.RefundReceiptTTL = DefaultAdmissionServiceConfig().RefundReceiptTTL
	}
	return &AdmissionService{
		ledgerRepo:       ledgerRepo,
		receiptRepo:      receiptRepo,
		catalog:          catalog,
		vault:            vault,
		topUp:            topUp,
		notifier:         notifier,
		idempotency:      idempotency,
		publisher:        publisher,
		logger:           logger,
		maxCommitRetries: config.MaxCommitRetries,
		refundTTL:        config.RefundReceiptTTL,
		now:              time.Now,
	}
}

// CheckAndConsume applies the reset policy, checks the tenant's limits
// (including bonus allowance) and atomically commits the increment only if
// admitted. Infrastructure failures fail closed: the caller gets an error,
// never an unmetered allow.
func (s *AdmissionService) CheckAndConsume(ctx context.Context, tenant metering.Tenant, kind metering.ResourceKind, amount int64) (*AdmissionResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("UNKNOWN_RESOURCE_KIND",
			fmt.Sprintf("unknown resource kind %q", kind))
	}
	if amount <= 0 {
		amount = 1
	}

	s.logger.Debug("Checking admission",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("resource_kind", string(kind)),
		zap.Int64("amount", amount))

	switch kind {
	case metering.ResourceProcessingUnit:
		return s.admitProcessing(ctx, tenant, amount)
	case metering.ResourceEgressBytes:
		return s.admitEgress(ctx, tenant, amount)
	case metering.ResourceStorageBytes, metering.ResourceShareLink:
		return s.admitVaultBacked(ctx, tenant, kind, amount)
	default:
		return nil, shared.NewDomainError("UNKNOWN_RESOURCE_KIND",
			fmt.Sprintf("unknown resource kind %q", kind))
	}
}

// admitProcessing runs the full gate algorithm for processing units: lazy
// resets, daily check, monthly check with a single auto top-up retry, then a
// version-guarded commit.
func (s *AdmissionService) admitProcessing(ctx context.Context, tenant metering.Tenant, amount int64) (*AdmissionResult, error) {
	topUpAttempted := false
	topUpErrDetail := ""

	for attempt := 0; attempt < s.maxCommitRetries; attempt++ {
		ledger, limits, err := s.loadLedger(ctx, tenant)
		if err != nil {
			return nil, err
		}
		ledger.ApplyResets(s.now())

		if !ledger.FitsDaily(limits, amount) {
			return s.deny(ctx, ledger, metering.ResourceProcessingUnit, ReasonDailyLimitExceeded, "",
				amount, ledger.UnitsUsedToday, limits.DailyProcessingLimit), nil
		}

		if !ledger.FitsMonthly(limits, amount) {
			// One automatic top-up attempt per gate call, run without any
			// ledger lock held: the purchase round-trip must not serialize
			// unrelated requests to the same tenant.
			if !topUpAttempted && s.topUp != nil {
				topUpAttempted = true
				outcome := s.topUp.MaybeTopUp(ctx, ledger, limits)
				if outcome.Granted {
					continue // re-read and re-check exactly once more
				}
				if outcome.Err != nil {
					topUpErrDetail = outcome.Err.Error()
				}
			}
			return s.deny(ctx, ledger, metering.ResourceProcessingUnit, ReasonMonthlyLimitExceeded, topUpErrDetail,
				amount, ledger.UnitsUsedThisMonth, ledger.MonthlyAllowance(limits)), nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ledger.ConsumeProcessing(amount)
		err = s.ledgerRepo.UpdateWithVersion(ctx, ledger)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			continue
		}
		if err != nil {
			return nil, s.failClosed(err)
		}

		s.evaluateThresholdsAsync(ledger, limits)
		return &AdmissionResult{
			Allowed:      true,
			CurrentUsage: ledger.UnitsUsedThisMonth,
			Limit:        ledger.MonthlyAllowance(limits),
		}, nil
	}

	return nil, s.failClosed(shared.ErrConcurrencyConflict)
}

// admitEgress follows the processing shape against the monthly egress
// counter; egress has no daily dimension and no top-up path.
func (s *AdmissionService) admitEgress(ctx context.Context, tenant metering.Tenant, amount int64) (*AdmissionResult, error) {
	for attempt := 0; attempt < s.maxCommitRetries; attempt++ {
		ledger, limits, err := s.loadLedger(ctx, tenant)
		if err != nil {
			return nil, err
		}
		ledger.ApplyResets(s.now())

		if !ledger.FitsEgress(limits, amount) {
			return s.deny(ctx, ledger, metering.ResourceEgressBytes, ReasonEgressLimitExceeded, "",
				amount, ledger.EgressBytesUsed, limits.EgressBytesPerMonth), nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ledger.ConsumeEgress(amount)
		err = s.ledgerRepo.UpdateWithVersion(ctx, ledger)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			continue
		}
		if err != nil {
			return nil, s.failClosed(err)
		}

		s.evaluateThresholdsAsync(ledger, limits)
		return &AdmissionResult{
			Allowed:      true,
			CurrentUsage: ledger.EgressBytesUsed,
			Limit:        limits.EgressBytesPerMonth,
		}, nil
	}

	return nil, s.failClosed(shared.ErrConcurrencyConflict)
}

// admitVaultBacked gates storage bytes and share links. Their current values
// are owned by the document/share store, so the gate checks the projected
// value against the cap without mutating the ledger.
func (s *AdmissionService) admitVaultBacked(ctx context.Context, tenant metering.Tenant, kind metering.ResourceKind, amount int64) (*AdmissionResult, error) {
	ledger, limits, err := s.loadLedger(ctx, tenant)
	if err != nil {
		return nil, err
	}
	ledger.ApplyResets(s.now())

	var current, limit int64
	var reason string
	switch kind {
	case metering.ResourceStorageBytes:
		current, err = s.vault.StorageBytesUsed(ctx, tenant.ID)
		limit = limits.StorageBytes
		reason = ReasonStorageLimitExceeded
	default:
		current, err = s.vault.ActiveShareLinkCount(ctx, tenant.ID)
		limit = limits.ActiveShareLinks
		reason = ReasonShareLinkLimitExceeded
	}
	if err != nil {
		return nil, s.failClosed(err)
	}

	// The ledger never carries these aggregates, so the threshold notifier
	// gets them here, from the values just read.
	s.evaluateVaultAsync(tenant.ID, kind, current, limit)

	if limit != metering.Unlimited && current+amount > limit {
		return s.deny(ctx, ledger, kind, reason, "", amount, current, limit), nil
	}

	s.evaluateThresholdsAsync(ledger, limits)
	return &AdmissionResult{Allowed: true, CurrentUsage: current, Limit: limit}, nil
}

// Refund decrements the counters consumed earlier as a compensating action
// when downstream work fails after admission. It is idempotent per request
// ID: a repeated call with the same ID is a no-op.
func (s *AdmissionService) Refund(ctx context.Context, tenant metering.Tenant, kind metering.ResourceKind, amount int64, requestID string) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	if !kind.IsValid() {
		return shared.NewDomainError("UNKNOWN_RESOURCE_KIND",
			fmt.Sprintf("unknown resource kind %q", kind))
	}
	if kind != metering.ResourceProcessingUnit && kind != metering.ResourceEgressBytes {
		return shared.NewDomainError("UNKNOWN_RESOURCE_KIND",
			fmt.Sprintf("resource kind %q is not refundable", kind))
	}
	if requestID == "" {
		return shared.NewDomainError("INVALID_INPUT", "refund request ID is required")
	}
	if amount <= 0 {
		return shared.NewDomainError("INVALID_INPUT", "refund amount must be positive")
	}

	// Fast path: the idempotency store answers repeats without touching the
	// ledger. The durable receipt below is the source of truth.
	if s.idempotency != nil {
		processed, err := s.idempotency.IsProcessed(ctx, refundKey(tenant.ID, requestID))
		if err == nil && processed {
			return nil
		}
	}

	exists, err := s.receiptRepo.Exists(ctx, tenant.ID, requestID)
	if err != nil {
		return s.failClosed(err)
	}
	if exists {
		return nil
	}

	for attempt := 0; attempt < s.maxCommitRetries; attempt++ {
		ledger, _, err := s.loadLedger(ctx, tenant)
		if err != nil {
			return err
		}
		ledger.ApplyResets(s.now())

		switch kind {
		case metering.ResourceProcessingUnit:
			ledger.RefundProcessing(amount)
		case metering.ResourceEgressBytes:
			ledger.RefundEgress(amount)
		}

		err = s.ledgerRepo.UpdateWithVersion(ctx, ledger)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			continue
		}
		if err != nil {
			return s.failClosed(err)
		}

		receipt := metering.NewRefundReceipt(tenant.ID, requestID, kind, amount)
		receiptErr := s.receiptRepo.Create(ctx, receipt)
		if receiptErr != nil {
			// One immediate retry: the decrement is already committed and the
			// receipt is what makes a repeat of this request a no-op.
			receiptErr = s.receiptRepo.Create(ctx, receipt)
		}
		if receiptErr != nil {
			s.logger.Error("Failed to persist refund receipt",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("request_id", requestID),
				zap.Error(receiptErr))
		}

		marked := false
		if s.idempotency != nil {
			if _, err := s.idempotency.MarkProcessed(ctx, refundKey(tenant.ID, requestID), s.refundTTL); err != nil {
				s.logger.Warn("Failed to mark refund processed",
					zap.String("request_id", requestID),
					zap.Error(err))
			} else {
				marked = true
			}
		}

		// Without either record a repeat of this request ID would credit the
		// ledger again. The caller must not see success in that state.
		if receiptErr != nil && !marked {
			return s.failClosed(receiptErr)
		}
		return nil
	}

	return s.failClosed(shared.ErrConcurrencyConflict)
}

// loadLedger resolves the tenant's ledger and effective limits
func (s *AdmissionService) loadLedger(ctx context.Context, tenant metering.Tenant) (*metering.QuotaLedger, metering.LimitSet, error) {
	ledger, err := s.ledgerRepo.FindByTenant(ctx, tenant.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, metering.LimitSet{}, shared.ErrInvalidTenant
		}
		return nil, metering.LimitSet{}, s.failClosed(err)
	}
	limits := s.catalog.LimitsForTenant(tenant, ledger.Plan)
	return ledger, limits, nil
}

// deny builds a denial result, publishes the denial event and schedules
// threshold evaluation. The ledger is never mutated on denial.
func (s *AdmissionService) deny(ctx context.Context, ledger *metering.QuotaLedger, kind metering.ResourceKind, reason, topUpErr string, requested, currentUsage, limit int64) *AdmissionResult {
	s.logger.Info("Admission denied",
		zap.String("tenant_id", ledger.TenantID.String()),
		zap.String("resource_kind", string(kind)),
		zap.String("reason", reason),
		zap.Int64("requested", requested),
		zap.Int64("current_usage", currentUsage),
		zap.Int64("limit", limit))

	if s.publisher != nil {
		event := metering.NewAdmissionDeniedEvent(ledger.ID, ledger.TenantID, kind, reason, requested, currentUsage, limit)
		go func() {
			if err := s.publisher.Publish(context.Background(), event); err != nil {
				s.logger.Warn("Failed to publish admission denied event", zap.Error(err))
			}
		}()
	}

	limits := s.catalog.LimitsForTenant(ledger.Tenant(), ledger.Plan)
	s.evaluateThresholdsAsync(ledger, limits)

	return &AdmissionResult{
		Allowed:      false,
		Reason:       reason,
		TopUpError:   topUpErr,
		CurrentUsage: currentUsage,
		Limit:        limit,
	}
}

// evaluateThresholdsAsync hands the current counters to the threshold
// notifier, fire-and-forget. The admission caller never waits on delivery.
func (s *AdmissionService) evaluateThresholdsAsync(ledger *metering.QuotaLedger, limits metering.LimitSet) {
	if s.notifier == nil {
		return
	}
	snapshot := *ledger
	go s.notifier.EvaluateLedger(context.Background(), &snapshot, limits)
}

// evaluateVaultAsync is the vault-backed counterpart: storage and share-link
// usage live with the document store, so their fractions are handed to the
// notifier directly.
func (s *AdmissionService) evaluateVaultAsync(tenantID uuid.UUID, kind metering.ResourceKind, used, limit int64) {
	if s.notifier == nil {
		return
	}
	go s.notifier.Evaluate(context.Background(), tenantID, kind, used, limit)
}

// failClosed wraps an infrastructure failure as LEDGER_UNAVAILABLE. The gate
// denies rather than allowing unmetered consumption.
func (s *AdmissionService) failClosed(cause error) error {
	s.logger.Error("Ledger store failure, failing closed", zap.Error(cause))
	return shared.ErrLedgerUnavailable
}

func refundKey(tenantID uuid.UUID, requestID string) string {
	return tenantID.String() + ":" + requestID
}
