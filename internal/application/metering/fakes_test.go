package metering

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
)

// memLedgerRepo is an in-memory QuotaLedgerRepository with the same
// compare-and-swap semantics as the GORM implementation
type memLedgerRepo struct {
	mu      sync.Mutex
	ledgers map[uuid.UUID]metering.QuotaLedger

	findErr   error
	updateErr error
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{ledgers: make(map[uuid.UUID]metering.QuotaLedger)}
}

func (r *memLedgerRepo) FindByTenant(_ context.Context, tenantID uuid.UUID) (*metering.QuotaLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	stored, ok := r.ledgers[tenantID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := stored
	return &cp, nil
}

func (r *memLedgerRepo) Create(_ context.Context, ledger *metering.QuotaLedger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ledgers[ledger.TenantID]; ok {
		return shared.ErrAlreadyExists
	}
	r.ledgers[ledger.TenantID] = *ledger
	return nil
}

func (r *memLedgerRepo) UpdateWithVersion(_ context.Context, ledger *metering.QuotaLedger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.ledgers[ledger.TenantID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != ledger.Version {
		return shared.ErrConcurrencyConflict
	}
	ledger.Version++
	r.ledgers[ledger.TenantID] = *ledger
	return nil
}

func (r *memLedgerRepo) get(tenantID uuid.UUID) metering.QuotaLedger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledgers[tenantID]
}

// memReceiptRepo is an in-memory RefundReceiptRepository
type memReceiptRepo struct {
	mu        sync.Mutex
	receipts  map[string]*metering.RefundReceipt
	createErr error
}

func newMemReceiptRepo() *memReceiptRepo {
	return &memReceiptRepo{receipts: make(map[string]*metering.RefundReceipt)}
}

func (r *memReceiptRepo) Exists(_ context.Context, tenantID uuid.UUID, requestID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.receipts[tenantID.String()+"/"+requestID]
	return ok, nil
}

func (r *memReceiptRepo) Create(_ context.Context, receipt *metering.RefundReceipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	key := receipt.TenantID.String() + "/" + receipt.RequestID
	if _, ok := r.receipts[key]; ok {
		return shared.ErrAlreadyExists
	}
	r.receipts[key] = receipt
	return nil
}

// memDedupRepo is an in-memory NotificationDedupRepository
type memDedupRepo struct {
	mu      sync.Mutex
	records []*metering.NotificationDedupRecord

	findErr error
	purges  int
}

func newMemDedupRepo() *memDedupRepo {
	return &memDedupRepo{}
}

func (r *memDedupRepo) FindSince(_ context.Context, tenantID uuid.UUID, notificationType string, cutoff time.Time) (*metering.NotificationDedupRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.TenantID == tenantID && rec.NotificationType == notificationType && !rec.CreatedAt.Before(cutoff) {
			return rec, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memDedupRepo) Create(_ context.Context, record *metering.NotificationDedupRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *memDedupRepo) DeleteOlderThan(_ context.Context, tenantID uuid.UUID, kind metering.ResourceKind, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purges++
	prefix := string(kind) + "_"
	kept := r.records[:0]
	var deleted int64
	for _, rec := range r.records {
		stale := rec.TenantID == tenantID &&
			len(rec.NotificationType) > len(prefix) &&
			rec.NotificationType[:len(prefix)] == prefix &&
			rec.CreatedAt.Before(cutoff)
		if stale {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return deleted, nil
}

func (r *memDedupRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// stubVault returns fixed document-store aggregates
type stubVault struct {
	storageBytes int64
	shareLinks   int64
	err          error
}

func (v *stubVault) StorageBytesUsed(_ context.Context, _ uuid.UUID) (int64, error) {
	return v.storageBytes, v.err
}

func (v *stubVault) ActiveShareLinkCount(_ context.Context, _ uuid.UUID) (int64, error) {
	return v.shareLinks, v.err
}

// fakeBilling records purchases and returns a canned result
type fakeBilling struct {
	mu     sync.Mutex
	calls  int
	result *metering.PurchaseResult
	err    error
}

func (b *fakeBilling) Purchase(_ context.Context, _ metering.Tenant, pack metering.TopUpPack) (*metering.PurchaseResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	if b.result != nil {
		return b.result, nil
	}
	return &metering.PurchaseResult{UnitsGranted: pack.UnitsGranted, PaymentRef: "pi_test"}, nil
}

func (b *fakeBilling) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// recordingNotifier captures delivered in-app notifications
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string // notificationType values in delivery order
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, _ uuid.UUID, notificationType, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, notificationType)
	return nil
}

func (n *recordingNotifier) delivered() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// memIdempotencyStore is a TTL-less in-memory IdempotencyStore
type memIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{seen: make(map[string]bool)}
}

func (s *memIdempotencyStore) MarkProcessed(_ context.Context, requestID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[requestID] {
		return false, nil
	}
	s.seen[requestID] = true
	return true, nil
}

func (s *memIdempotencyStore) IsProcessed(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[requestID], nil
}

func (s *memIdempotencyStore) Close() error { return nil }

// chanPublisher forwards published events to a channel so tests can wait on
// asynchronous publication
type chanPublisher struct {
	events chan shared.DomainEvent
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{events: make(chan shared.DomainEvent, 16)}
}

func (p *chanPublisher) Publish(_ context.Context, event shared.DomainEvent) error {
	p.events <- event
	return nil
}
