package metering

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QuotaLedgerRepository persists quota ledgers. Implementations must make
// UpdateWithVersion a compare-and-swap on the ledger's version column and
// return shared.ErrConcurrencyConflict on a stale write, so the admission
// gate's read-check-write sequence stays linearizable per tenant.
type QuotaLedgerRepository interface {
	// FindByTenant loads the ledger for a tenant, shared.ErrNotFound if absent
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*QuotaLedger, error)

	// Create inserts a freshly provisioned ledger
	Create(ctx context.Context, ledger *QuotaLedger) error

	// UpdateWithVersion persists the ledger iff the stored version still
	// matches ledger.Version, then increments it
	UpdateWithVersion(ctx context.Context, ledger *QuotaLedger) error
}

// NotificationDedupRepository persists notification de-duplication records
type NotificationDedupRepository interface {
	// FindSince returns the newest record of the given type created at or
	// after the cutoff, shared.ErrNotFound if none exists
	FindSince(ctx context.Context, tenantID uuid.UUID, notificationType string, cutoff time.Time) (*NotificationDedupRecord, error)

	// Create inserts a dedup record
	Create(ctx context.Context, record *NotificationDedupRecord) error

	// DeleteOlderThan removes records for a tenant whose type starts with the
	// resource prefix and that are older than the cutoff; returns the count
	DeleteOlderThan(ctx context.Context, tenantID uuid.UUID, kind ResourceKind, cutoff time.Time) (int64, error)
}

// RefundReceiptRepository persists durable refund receipts
type RefundReceiptRepository interface {
	// Exists reports whether a receipt for this tenant and request ID exists
	Exists(ctx context.Context, tenantID uuid.UUID, requestID string) (bool, error)

	// Create inserts a receipt
	Create(ctx context.Context, receipt *RefundReceipt) error
}

// VaultStore supplies externally owned aggregates from the document/share
// store: current storage bytes and active share-link counts. Values must be
// current for admission-relevant checks; eventual consistency is acceptable
// for reporting.
type VaultStore interface {
	StorageBytesUsed(ctx context.Context, tenantID uuid.UUID) (int64, error)
	ActiveShareLinkCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// PurchaseResult is the outcome of a billing-provider top-up purchase
type PurchaseResult struct {
	UnitsGranted int64
	PaymentRef   string
}

// BillingProvider fulfills top-up pack purchases. Implementations are assumed
// idempotent-safe to call from the auto top-up policy.
type BillingProvider interface {
	Purchase(ctx context.Context, tenant Tenant, pack TopUpPack) (*PurchaseResult, error)
}

// Notifier delivers usage alerts. Best-effort: callers swallow errors after
// logging them, a failed delivery never affects an admission decision.
type Notifier interface {
	Notify(ctx context.Context, tenantID uuid.UUID, notificationType, title, message string) error
}
