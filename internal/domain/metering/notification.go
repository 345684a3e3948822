package metering

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Alert thresholds evaluated by the threshold notifier, in percent
const (
	ThresholdWarn     = 75
	ThresholdCritical = 90
	ThresholdExceeded = 100
)

// ThresholdFor maps a usage fraction onto the highest crossed threshold.
// Returns 0 when no threshold has been crossed.
func ThresholdFor(fraction float64) int {
	switch {
	case fraction >= 1.0:
		return ThresholdExceeded
	case fraction >= 0.9:
		return ThresholdCritical
	case fraction >= 0.75:
		return ThresholdWarn
	default:
		return 0
	}
}

// NotificationType builds the de-duplication key for a resource/threshold
// pair, e.g. "storage_bytes_90"
func NotificationType(kind ResourceKind, threshold int) string {
	return fmt.Sprintf("%s_%d", kind, threshold)
}

// NotificationDedupRecord records that an alert of a given type was emitted
// for a tenant. Its only purpose is deciding whether a new alert may fire
// within the de-duplication window.
type NotificationDedupRecord struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	NotificationType string
	CreatedAt        time.Time
}

// NewNotificationDedupRecord creates a dedup record stamped now
func NewNotificationDedupRecord(tenantID uuid.UUID, notificationType string) *NotificationDedupRecord {
	return &NotificationDedupRecord{
		ID:               uuid.New(),
		TenantID:         tenantID,
		NotificationType: notificationType,
		CreatedAt:        time.Now(),
	}
}
