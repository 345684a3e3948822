package metering

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/domain/shared"
)

type admissionEnv struct {
	ledgers  *memLedgerRepo
	receipts *memReceiptRepo
	vault    *stubVault
	service  *AdmissionService
}

func newAdmissionEnv(t *testing.T, opts ...func(*admissionEnv)) *admissionEnv {
	t.Helper()
	env := &admissionEnv{
		ledgers:  newMemLedgerRepo(),
		receipts: newMemReceiptRepo(),
		vault:    &stubVault{},
	}
	for _, opt := range opts {
		opt(env)
	}
	env.service = NewAdmissionService(
		env.ledgers, env.receipts, metering.DefaultCatalog(), env.vault,
		nil, nil, nil, nil,
		zap.NewNop(), DefaultAdmissionServiceConfig(),
	)
	return env
}

func provision(t *testing.T, env *admissionEnv, tenant metering.Tenant, plan metering.PlanTier) *metering.QuotaLedger {
	t.Helper()
	ledger, err := metering.NewQuotaLedger(tenant, plan)
	require.NoError(t, err)
	require.NoError(t, env.ledgers.Create(context.Background(), ledger))
	return ledger
}

func TestCheckAndConsume_AllowsWithinLimits(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 3)
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	assert.Equal(t, int64(3), result.CurrentUsage)
	assert.Equal(t, int64(500), result.Limit)

	stored := env.ledgers.get(tenant.ID)
	assert.Equal(t, int64(3), stored.UnitsUsedToday)
	assert.Equal(t, int64(3), stored.UnitsUsedThisMonth)
	assert.Equal(t, 2, stored.Version, "commit bumps the ledger version")
}

func TestCheckAndConsume_DefaultsAmountToOne(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 0)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(1), env.ledgers.get(tenant.ID).UnitsUsedToday)
}

func TestCheckAndConsume_DailyLimitDenies(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 50)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 1)
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonDailyLimitExceeded, result.Reason)
	assert.Equal(t, int64(50), result.CurrentUsage)
	assert.Equal(t, int64(50), result.Limit)

	// A denial never mutates the ledger
	stored := env.ledgers.get(tenant.ID)
	assert.Equal(t, int64(50), stored.UnitsUsedToday)
	assert.Equal(t, 2, stored.Version)
}

func TestCheckAndConsume_MonthlyLimitDenies(t *testing.T) {
	// business_starter has no daily cap, so the monthly cap is binding
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	ledger := provision(t, env, tenant, metering.PlanBusinessStarter)
	ledger.UnitsUsedThisMonth = 195
	env.ledgers.ledgers[tenant.ID] = *ledger

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 10)
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonMonthlyLimitExceeded, result.Reason)
	assert.Equal(t, int64(195), result.CurrentUsage)
	assert.Equal(t, int64(200), result.Limit)
	assert.Empty(t, result.TopUpError)
}

func TestCheckAndConsume_BonusUnitsExtendMonthlyAllowance(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	ledger := provision(t, env, tenant, metering.PlanBusinessStarter)
	ledger.UnitsUsedThisMonth = 195
	ledger.BonusUnits = 100
	env.ledgers.ledgers[tenant.ID] = *ledger

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 10)
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	assert.Equal(t, int64(205), result.CurrentUsage)
	assert.Equal(t, int64(300), result.Limit)
}

func TestCheckAndConsume_EgressLimit(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceEgressBytes, 10<<30)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(10<<30), result.CurrentUsage)

	result, err = env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceEgressBytes, 1)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonEgressLimitExceeded, result.Reason)
}

func TestCheckAndConsume_StorageIsVaultBacked(t *testing.T) {
	env := newAdmissionEnv(t)
	env.vault.storageBytes = 5<<30 - 100
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceStorageBytes, 100)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceStorageBytes, 101)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonStorageLimitExceeded, result.Reason)

	// Storage admissions never touch the ledger counters
	assert.Equal(t, 1, env.ledgers.get(tenant.ID).Version)
}

func TestCheckAndConsume_ShareLinkLimit(t *testing.T) {
	env := newAdmissionEnv(t)
	env.vault.shareLinks = 10
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceShareLink, 1)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonShareLinkLimitExceeded, result.Reason)
	assert.Equal(t, int64(10), result.CurrentUsage)
	assert.Equal(t, int64(10), result.Limit)
}

func TestCheckAndConsume_UnlimitedPlanAlwaysAdmits(t *testing.T) {
	env := newAdmissionEnv(t)
	env.vault.storageBytes = 1 << 45
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanEnterprise)

	for _, kind := range metering.AllResourceKinds() {
		result, err := env.service.CheckAndConsume(context.Background(), tenant, kind, 1_000_000)
		require.NoError(t, err, kind)
		assert.True(t, result.Allowed, kind)
	}
}

func TestCheckAndConsume_UnknownResourceKind(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	_, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceKind("gpu_minutes"), 1)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "UNKNOWN_RESOURCE_KIND", domainErr.Code)
}

func TestCheckAndConsume_UnknownTenant(t *testing.T) {
	env := newAdmissionEnv(t)

	_, err := env.service.CheckAndConsume(context.Background(), metering.NewUserTenant(uuid.New()), metering.ResourceProcessingUnit, 1)
	assert.ErrorIs(t, err, shared.ErrInvalidTenant)

	_, err = env.service.CheckAndConsume(context.Background(), metering.Tenant{Kind: metering.TenantKindUser}, metering.ResourceProcessingUnit, 1)
	assert.ErrorIs(t, err, shared.ErrInvalidTenant)
}

func TestCheckAndConsume_FailsClosedOnStoreError(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)
	env.ledgers.updateErr = errors.New("connection reset")

	_, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 1)
	assert.ErrorIs(t, err, shared.ErrLedgerUnavailable)
}

func TestCheckAndConsume_ConcurrentRequestsNeverOvershoot(t *testing.T) {
	ledgers := newMemLedgerRepo()
	service := NewAdmissionService(
		ledgers, newMemReceiptRepo(), metering.DefaultCatalog(), &stubVault{},
		nil, nil, nil, nil, zap.NewNop(),
		AdmissionServiceConfig{MaxCommitRetries: 100},
	)

	tenant := metering.NewUserTenant(uuid.New())
	ledger, err := metering.NewQuotaLedger(tenant, metering.PlanStarter)
	require.NoError(t, err)
	require.NoError(t, ledgers.Create(context.Background(), ledger))

	// 60 concurrent single-unit requests against a daily cap of 50
	const requests = 60
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 1)
			if err != nil || !result.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	stored := ledgers.get(tenant.ID)
	assert.Equal(t, int64(allowed), stored.UnitsUsedToday, "every admitted unit is committed exactly once")
	assert.LessOrEqual(t, stored.UnitsUsedToday, int64(50), "joint overshoot is impossible")
}

func TestCheckAndConsume_AutoTopUpExtendsAllowance(t *testing.T) {
	ledgers := newMemLedgerRepo()
	billing := &fakeBilling{}
	topUp := NewTopUpService(ledgers, metering.DefaultPackCatalog(), billing, nil, zap.NewNop(), DefaultTopUpServiceConfig())
	service := NewAdmissionService(
		ledgers, newMemReceiptRepo(), metering.DefaultCatalog(), &stubVault{},
		topUp, nil, nil, nil, zap.NewNop(), DefaultAdmissionServiceConfig(),
	)

	tenant := metering.NewUserTenant(uuid.New())
	ledger, err := metering.NewQuotaLedger(tenant, metering.PlanStarter)
	require.NoError(t, err)
	ledger.UnitsUsedThisMonth = 420
	ledger.AutoTopUpEnabled = true
	ledger.AutoTopUpPack = metering.PackSmall
	require.NoError(t, ledgers.Create(context.Background(), ledger))

	// 420 used of 500, request for 90 would breach; usage is at 84% so the
	// small pack (200 units) is purchased and the request re-checked
	result, err := service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 90)
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	assert.Equal(t, int64(510), result.CurrentUsage)
	assert.Equal(t, int64(700), result.Limit)
	assert.Equal(t, 1, billing.callCount())

	stored := ledgers.get(tenant.ID)
	assert.Equal(t, int64(200), stored.BonusUnits)
	assert.Equal(t, int64(510), stored.UnitsUsedThisMonth)
}

func TestCheckAndConsume_TopUpSkippedBelowTrigger(t *testing.T) {
	ledgers := newMemLedgerRepo()
	billing := &fakeBilling{}
	topUp := NewTopUpService(ledgers, metering.DefaultPackCatalog(), billing, nil, zap.NewNop(), DefaultTopUpServiceConfig())
	service := NewAdmissionService(
		ledgers, newMemReceiptRepo(), metering.DefaultCatalog(), &stubVault{},
		topUp, nil, nil, nil, zap.NewNop(), DefaultAdmissionServiceConfig(),
	)

	tenant := metering.NewUserTenant(uuid.New())
	ledger, err := metering.NewQuotaLedger(tenant, metering.PlanStarter)
	require.NoError(t, err)
	ledger.UnitsUsedThisMonth = 100
	ledger.AutoTopUpEnabled = true
	ledger.AutoTopUpPack = metering.PackSmall
	require.NoError(t, ledgers.Create(context.Background(), ledger))

	// A single huge batch from 20% usage must not trigger a purchase
	result, err := service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 450)
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonMonthlyLimitExceeded, result.Reason)
	assert.Zero(t, billing.callCount())
}

func TestCheckAndConsume_TopUpFailureSurfacesDetail(t *testing.T) {
	ledgers := newMemLedgerRepo()
	billing := &fakeBilling{err: errors.New("card declined")}
	topUp := NewTopUpService(ledgers, metering.DefaultPackCatalog(), billing, nil, zap.NewNop(), DefaultTopUpServiceConfig())
	service := NewAdmissionService(
		ledgers, newMemReceiptRepo(), metering.DefaultCatalog(), &stubVault{},
		topUp, nil, nil, nil, zap.NewNop(), DefaultAdmissionServiceConfig(),
	)

	tenant := metering.NewUserTenant(uuid.New())
	ledger, err := metering.NewQuotaLedger(tenant, metering.PlanStarter)
	require.NoError(t, err)
	ledger.UnitsUsedThisMonth = 490
	ledger.AutoTopUpEnabled = true
	ledger.AutoTopUpPack = metering.PackSmall
	require.NoError(t, ledgers.Create(context.Background(), ledger))

	result, err := service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 20)
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonMonthlyLimitExceeded, result.Reason)
	assert.Contains(t, result.TopUpError, "card declined")
	assert.Equal(t, 1, billing.callCount(), "exactly one purchase attempt per gate call")
}

func TestRefund_DecrementsAndFloorsAtZero(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	_, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 5)
	require.NoError(t, err)

	require.NoError(t, env.service.Refund(context.Background(), tenant, metering.ResourceProcessingUnit, 3, "req-1"))
	stored := env.ledgers.get(tenant.ID)
	assert.Equal(t, int64(2), stored.UnitsUsedToday)
	assert.Equal(t, int64(2), stored.UnitsUsedThisMonth)

	require.NoError(t, env.service.Refund(context.Background(), tenant, metering.ResourceProcessingUnit, 100, "req-2"))
	stored = env.ledgers.get(tenant.ID)
	assert.Zero(t, stored.UnitsUsedToday)
	assert.Zero(t, stored.UnitsUsedThisMonth)
}

func TestRefund_IdempotentPerRequestID(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	_, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceProcessingUnit, 10)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.service.Refund(context.Background(), tenant, metering.ResourceProcessingUnit, 4, "req-dup"))
	}

	assert.Equal(t, int64(6), env.ledgers.get(tenant.ID).UnitsUsedToday, "repeat refunds are no-ops")
}

func TestRefund_FastPathViaIdempotencyStore(t *testing.T) {
	ledgers := newMemLedgerRepo()
	idem := newMemIdempotencyStore()
	service := NewAdmissionService(
		ledgers, newMemReceiptRepo(), metering.DefaultCatalog(), &stubVault{},
		nil, nil, idem, nil, zap.NewNop(), DefaultAdmissionServiceConfig(),
	)

	tenant := metering.NewUserTenant(uuid.New())
	ledger, err := metering.NewQuotaLedger(tenant, metering.PlanStarter)
	require.NoError(t, err)
	ledger.UnitsUsedToday = 10
	ledger.UnitsUsedThisMonth = 10
	require.NoError(t, ledgers.Create(context.Background(), ledger))

	require.NoError(t, service.Refund(context.Background(), tenant, metering.ResourceProcessingUnit, 4, "req-fast"))
	assert.Equal(t, int64(6), ledgers.get(tenant.ID).UnitsUsedToday)

	processed, err := idem.IsProcessed(context.Background(), refundKey(tenant.ID, "req-fast"))
	require.NoError(t, err)
	assert.True(t, processed)

	// Second call short-circuits on the fast path before any ledger read
	ledgers.findErr = errors.New("store down")
	require.NoError(t, service.Refund(context.Background(), tenant, metering.ResourceProcessingUnit, 4, "req-fast"))
}

func TestRefund_ReceiptWriteFailureSurfacesWhenNoFastPath(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	ledger := provision(t, env, tenant, metering.PlanStarter)
	ledger.UnitsUsedToday = 10
	ledger.UnitsUsedThisMonth = 10
	require.NoError(t, env.ledgers.UpdateWithVersion(context.Background(), ledger))

	env.receipts.createErr = errors.New("receipts table unavailable")

	// The decrement commits but neither idempotency record survives it, so
	// the call must not report success.
	err := env.service.Refund(context.Background(), tenant, metering.ResourceProcessingUnit, 4, "req-lost")
	assert.ErrorIs(t, err, shared.ErrLedgerUnavailable)
	assert.Equal(t, int64(6), env.ledgers.get(tenant.ID).UnitsUsedToday)
}

func TestRefund_ReceiptWriteFailureCoveredByFastPath(t *testing.T) {
	ledgers := newMemLedgerRepo()
	receipts := newMemReceiptRepo()
	idem := newMemIdempotencyStore()
	service := NewAdmissionService(
		ledgers, receipts, metering.DefaultCatalog(), &stubVault{},
		nil, nil, idem, nil, zap.NewNop(), DefaultAdmissionServiceConfig(),
	)

	tenant := metering.NewUserTenant(uuid.New())
	ledger, err := metering.NewQuotaLedger(tenant, metering.PlanStarter)
	require.NoError(t, err)
	ledger.UnitsUsedToday = 10
	ledger.UnitsUsedThisMonth = 10
	require.NoError(t, ledgers.Create(context.Background(), ledger))

	receipts.createErr = errors.New("receipts table unavailable")

	// The fast-path mark still deduplicates repeats, so the refund stands
	require.NoError(t, service.Refund(context.Background(), tenant, metering.ResourceProcessingUnit, 4, "req-marked"))
	assert.Equal(t, int64(6), ledgers.get(tenant.ID).UnitsUsedToday)

	require.NoError(t, service.Refund(context.Background(), tenant, metering.ResourceProcessingUnit, 4, "req-marked"))
	assert.Equal(t, int64(6), ledgers.get(tenant.ID).UnitsUsedToday, "repeat is a no-op")
}

func TestRefund_Egress(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	_, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceEgressBytes, 1000)
	require.NoError(t, err)

	require.NoError(t, env.service.Refund(context.Background(), tenant, metering.ResourceEgressBytes, 400, "req-eg"))
	assert.Equal(t, int64(600), env.ledgers.get(tenant.ID).EgressBytesUsed)
}

func TestRefund_InputValidation(t *testing.T) {
	env := newAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)

	tests := []struct {
		name      string
		kind      metering.ResourceKind
		amount    int64
		requestID string
		code      string
	}{
		{"missing request id", metering.ResourceProcessingUnit, 1, "", "INVALID_INPUT"},
		{"non-positive amount", metering.ResourceProcessingUnit, 0, "req-x", "INVALID_INPUT"},
		{"storage is not refundable", metering.ResourceStorageBytes, 1, "req-x", "UNKNOWN_RESOURCE_KIND"},
		{"share links are not refundable", metering.ResourceShareLink, 1, "req-x", "UNKNOWN_RESOURCE_KIND"},
		{"unknown kind", metering.ResourceKind("gpu_minutes"), 1, "req-x", "UNKNOWN_RESOURCE_KIND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.service.Refund(context.Background(), tenant, tt.kind, tt.amount, tt.requestID)
			require.Error(t, err)
			var domainErr *shared.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tt.code, domainErr.Code)
		})
	}
}

// newNotifyingAdmissionEnv wires a real NotifierService into the gate so
// threshold side effects of admission calls can be observed.
func newNotifyingAdmissionEnv(t *testing.T) (*admissionEnv, *recordingNotifier) {
	t.Helper()
	env := &admissionEnv{
		ledgers:  newMemLedgerRepo(),
		receipts: newMemReceiptRepo(),
		vault:    &stubVault{},
	}
	delivered := &recordingNotifier{}
	notifier := NewNotifierService(
		newMemDedupRepo(), delivered, nil, nil, nil,
		zap.NewNop(), DefaultNotifierServiceConfig(),
	)
	env.service = NewAdmissionService(
		env.ledgers, env.receipts, metering.DefaultCatalog(), env.vault,
		nil, notifier, nil, nil,
		zap.NewNop(), DefaultAdmissionServiceConfig(),
	)
	return env, delivered
}

func containsNotification(n *recordingNotifier, notificationType string) func() bool {
	return func() bool {
		for _, got := range n.delivered() {
			if got == notificationType {
				return true
			}
		}
		return false
	}
}

func TestCheckAndConsume_StorageAdmissionFiresThresholdAlert(t *testing.T) {
	const gib = int64(1) << 30

	env, delivered := newNotifyingAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)
	env.vault.storageBytes = 5 * gib * 92 / 100

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceStorageBytes, 1)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	assert.Eventually(t, containsNotification(delivered, "storage_bytes_90"),
		2*time.Second, 10*time.Millisecond,
		"vault-backed admission evaluates the storage fraction")
}

func TestCheckAndConsume_ShareLinkDenialFiresThresholdAlert(t *testing.T) {
	env, delivered := newNotifyingAdmissionEnv(t)
	tenant := metering.NewUserTenant(uuid.New())
	provision(t, env, tenant, metering.PlanStarter)
	env.vault.shareLinks = 10 // starter cap

	result, err := env.service.CheckAndConsume(context.Background(), tenant, metering.ResourceShareLink, 1)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	assert.Equal(t, ReasonShareLinkLimitExceeded, result.Reason)

	assert.Eventually(t, containsNotification(delivered, "share_link_100"),
		2*time.Second, 10*time.Millisecond,
		"denied share-link requests still evaluate the fraction")
}

func TestAdmissionResult_HTTPStatusCode(t *testing.T) {
	allowed := &AdmissionResult{Allowed: true}
	assert.Equal(t, 200, allowed.HTTPStatusCode())

	denied := &AdmissionResult{Allowed: false, Reason: ReasonDailyLimitExceeded}
	assert.Equal(t, 429, denied.HTTPStatusCode())
}
