package metering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
)

// EmailPreferenceSource answers whether a tenant opted into email alerts
type EmailPreferenceSource interface {
	EmailAlertsEnabled(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// EmailSender requests an alert email. Best-effort like all notification
// delivery: failures are logged and discarded.
type EmailSender interface {
	SendUsageAlert(ctx context.Context, tenantID uuid.UUID, subject, body string) error
}

// NotifierServiceConfig contains configuration for NotifierService
type NotifierServiceConfig struct {
	// DedupWindow is how long a fired threshold suppresses repeats
	DedupWindow time.Duration

	// PurgeAge is the minimum age of dedup records eligible for purging once
	// usage has dropped below half
	PurgeAge time.Duration
}

// DefaultNotifierServiceConfig returns default configuration
func DefaultNotifierServiceConfig() NotifierServiceConfig {
	return NotifierServiceConfig{
		DedupWindow: 7 * 24 * time.Hour,
		PurgeAge:    30 * 24 * time.Hour,
	}
}

// NotifierService evaluates usage fractions against the 75/90/100 alert
// thresholds and emits at most one de-duplicated notification per threshold
// per window. Everything here fails open: an error anywhere is logged and
// swallowed, and never reaches the admission gate.
type NotifierService struct {
	dedupRepo  metering.NotificationDedupRepository
	notifier   metering.Notifier
	emailPrefs EmailPreferenceSource
	email      EmailSender
	publisher  shared.EventPublisher
	logger     *zap.Logger

	dedupWindow time.Duration
	purgeAge    time.Duration
	now         func() time.Time
}

// NewNotifierService creates a new NotifierService. emailPrefs, email and
// publisher may be nil.
func NewNotifierService(
	dedupRepo metering.NotificationDedupRepository,
	notifier metering.Notifier,
	emailPrefs EmailPreferenceSource,
	email EmailSender,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	config NotifierServiceConfig,
) *NotifierService {
	defaults := DefaultNotifierServiceConfig()
	if config.DedupWindow <= 0 {
		config.DedupWindow = defaults.DedupWindow
	}
	if config.PurgeAge <= 0 {
		config.PurgeAge = defaults.PurgeAge
	}
	return &NotifierService{
		dedupRepo:   dedupRepo,
		notifier:    notifier,
		emailPrefs:  emailPrefs,
		email:       email,
		publisher:   publisher,
		logger:      logger,
		dedupWindow: config.DedupWindow,
		purgeAge:    config.PurgeAge,
		now:         time.Now,
	}
}

// EvaluateLedger checks the processing and egress fractions carried by a
// ledger against its limits. Storage and share links are evaluated separately
// by callers that hold the vault-store aggregates.
func (s *NotifierService) EvaluateLedger(ctx context.Context, ledger *metering.QuotaLedger, limits metering.LimitSet) {
	s.Evaluate(ctx, ledger.TenantID, metering.ResourceProcessingUnit,
		ledger.UnitsUsedThisMonth, ledger.MonthlyAllowance(limits))
	s.Evaluate(ctx, ledger.TenantID, metering.ResourceEgressBytes,
		ledger.EgressBytesUsed, limits.EgressBytesPerMonth)
}

// Evaluate checks one resource's usage fraction and emits a notification if
// an unsuppressed threshold has been crossed
func (s *NotifierService) Evaluate(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind, used, limit int64) {
	fraction := metering.UsageFraction(used, limit)
	threshold := metering.ThresholdFor(fraction)

	if threshold == 0 {
		// Maintenance rule: once usage drops below half, stale dedup records
		// are purged so a future re-crossing is not permanently suppressed.
		if fraction < 0.5 {
			s.purgeStale(ctx, tenantID, kind)
		}
		return
	}

	notificationType := metering.NotificationType(kind, threshold)
	cutoff := s.now().Add(-s.dedupWindow)

	_, err := s.dedupRepo.FindSince(ctx, tenantID, notificationType, cutoff)
	if err == nil {
		return // already notified within the window
	}
	if !errors.Is(err, shared.ErrNotFound) {
		s.logger.Warn("Failed to check notification dedup record",
			zap.String("tenant_id", tenantID.String()),
			zap.String("type", notificationType),
			zap.Error(err))
		return
	}

	record := metering.NewNotificationDedupRecord(tenantID, notificationType)
	if err := s.dedupRepo.Create(ctx, record); err != nil {
		s.logger.Warn("Failed to create notification dedup record",
			zap.String("tenant_id", tenantID.String()),
			zap.String("type", notificationType),
			zap.Error(err))
		return
	}

	title, message := alertContent(kind, threshold, fraction)
	if err := s.notifier.Notify(ctx, tenantID, notificationType, title, message); err != nil {
		s.logger.Warn("Failed to deliver in-app notification",
			zap.String("tenant_id", tenantID.String()),
			zap.String("type", notificationType),
			zap.Error(err))
	}

	s.maybeSendEmail(ctx, tenantID, title, message)

	if s.publisher != nil {
		event := metering.NewThresholdCrossedEvent(uuid.Nil, tenantID, kind, threshold, fraction*100)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish threshold crossed event", zap.Error(err))
		}
	}
}

// maybeSendEmail requests an email alert when the tenant opted in
func (s *NotifierService) maybeSendEmail(ctx context.Context, tenantID uuid.UUID, title, message string) {
	if s.email == nil || s.emailPrefs == nil {
		return
	}
	enabled, err := s.emailPrefs.EmailAlertsEnabled(ctx, tenantID)
	if err != nil {
		s.logger.Warn("Failed to read email alert preference",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return
	}
	if !enabled {
		return
	}
	if err := s.email.SendUsageAlert(ctx, tenantID, title, message); err != nil {
		s.logger.Warn("Failed to request alert email",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	}
}

// purgeStale removes old dedup records for a resource once its usage has
// dropped below half
func (s *NotifierService) purgeStale(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind) {
	cutoff := s.now().Add(-s.purgeAge)
	deleted, err := s.dedupRepo.DeleteOlderThan(ctx, tenantID, kind, cutoff)
	if err != nil {
		s.logger.Warn("Failed to purge stale dedup records",
			zap.String("tenant_id", tenantID.String()),
			zap.String("resource_kind", string(kind)),
			zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Debug("Purged stale dedup records",
			zap.String("tenant_id", tenantID.String()),
			zap.String("resource_kind", string(kind)),
			zap.Int64("deleted", deleted))
	}
}

// alertContent builds the user-facing alert title and message
func alertContent(kind metering.ResourceKind, threshold int, fraction float64) (string, string) {
	name := kind.DisplayName()
	if threshold >= metering.ThresholdExceeded {
		return fmt.Sprintf("%s limit reached", name),
			fmt.Sprintf("You have used 100%% of your %s allowance. Further requests will be declined until your quota resets or you purchase a top-up.", name)
	}
	return fmt.Sprintf("%s usage at %d%%", name, threshold),
		fmt.Sprintf("Your %s usage is at %.0f%% of its allowance.", name, fraction*100)
}
