package metering

import (
	"github.com/google/uuid"

	"github.com/vaultio/backend/internal/domain/shared"
)

// Event types published by the metering engine
const (
	EventTypeAdmissionDenied  = "metering.admission_denied"
	EventTypeTopUpGranted     = "metering.topup_granted"
	EventTypeThresholdCrossed = "metering.threshold_crossed"
)

const aggregateTypeQuotaLedger = "QuotaLedger"

// AdmissionDeniedEvent is published when the gate rejects a request
type AdmissionDeniedEvent struct {
	shared.BaseDomainEvent
	ResourceKind ResourceKind `json:"resource_kind"`
	Reason       string       `json:"reason"`
	Requested    int64        `json:"requested"`
	CurrentUsage int64        `json:"current_usage"`
	Limit        int64        `json:"limit"`
}

// NewAdmissionDeniedEvent creates an admission denied event
func NewAdmissionDeniedEvent(ledgerID, tenantID uuid.UUID, kind ResourceKind, reason string, requested, currentUsage, limit int64) *AdmissionDeniedEvent {
	return &AdmissionDeniedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAdmissionDenied, aggregateTypeQuotaLedger, ledgerID, tenantID),
		ResourceKind:    kind,
		Reason:          reason,
		Requested:       requested,
		CurrentUsage:    currentUsage,
		Limit:           limit,
	}
}

// TopUpGrantedEvent is published after a successful automatic top-up purchase
type TopUpGrantedEvent struct {
	shared.BaseDomainEvent
	Pack         PackKind `json:"pack"`
	UnitsGranted int64    `json:"units_granted"`
	BonusUnits   int64    `json:"bonus_units"`
}

// NewTopUpGrantedEvent creates a top-up granted event
func NewTopUpGrantedEvent(ledgerID, tenantID uuid.UUID, pack PackKind, unitsGranted, bonusUnits int64) *TopUpGrantedEvent {
	return &TopUpGrantedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTopUpGranted, aggregateTypeQuotaLedger, ledgerID, tenantID),
		Pack:            pack,
		UnitsGranted:    unitsGranted,
		BonusUnits:      bonusUnits,
	}
}

// ThresholdCrossedEvent is published when usage crosses an alert threshold
type ThresholdCrossedEvent struct {
	shared.BaseDomainEvent
	ResourceKind ResourceKind `json:"resource_kind"`
	Threshold    int          `json:"threshold"`
	UsagePercent float64      `json:"usage_percent"`
}

// NewThresholdCrossedEvent creates a threshold crossed event
func NewThresholdCrossedEvent(ledgerID, tenantID uuid.UUID, kind ResourceKind, threshold int, usagePercent float64) *ThresholdCrossedEvent {
	return &ThresholdCrossedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeThresholdCrossed, aggregateTypeQuotaLedger, ledgerID, tenantID),
		ResourceKind:    kind,
		Threshold:       threshold,
		UsagePercent:    usagePercent,
	}
}
