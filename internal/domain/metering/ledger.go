package metering

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaultio/backend/internal/domain/shared"
)

// QuotaLedger is the per-tenant record of consumption counters and reset
// timestamps. It is the aggregate root for all metered consumption and the
// unit of optimistic concurrency control: every commit goes through a
// version-guarded update so two concurrent admissions cannot jointly
// overshoot a limit.
type QuotaLedger struct {
	shared.BaseAggregateRoot
	TenantID   uuid.UUID
	TenantKind TenantKind
	Plan       PlanTier
	SeatCount  int

	UnitsUsedThisMonth int64
	UnitsUsedToday     int64
	BonusUnits         int64
	EgressBytesUsed    int64

	LastDailyResetAt   time.Time
	LastMonthlyResetAt time.Time

	AutoTopUpEnabled bool
	AutoTopUpPack    PackKind
}

// NewQuotaLedger creates a zeroed ledger for a freshly provisioned tenant
func NewQuotaLedger(tenant Tenant, plan PlanTier) (*QuotaLedger, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if !plan.IsValid() {
		plan = BaselinePlan
	}

	now := time.Now()
	return &QuotaLedger{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		TenantID:           tenant.ID,
		TenantKind:         tenant.Kind,
		Plan:               plan,
		SeatCount:          tenant.Seats(),
		LastDailyResetAt:   now,
		LastMonthlyResetAt: now,
	}, nil
}

// ApplyResets rolls the daily and monthly counters over if now has crossed
// their respective period boundaries. It runs lazily as the first step of
// every gate access; there is no background sweep. BonusUnits survive the
// monthly rollover: purchased packs do not expire.
// Returns true if either counter was reset.
func (l *QuotaLedger) ApplyResets(now time.Time) bool {
	changed := false

	if crossedCalendarDay(l.LastDailyResetAt, now) {
		l.UnitsUsedToday = 0
		l.LastDailyResetAt = now
		changed = true
	}

	if crossedCalendarMonth(l.LastMonthlyResetAt, now) {
		l.UnitsUsedThisMonth = 0
		l.EgressBytesUsed = 0
		l.LastMonthlyResetAt = now
		changed = true
	}

	if changed {
		l.UpdatedAt = now
	}
	return changed
}

// crossedCalendarDay reports whether now falls on a later calendar day than last
func crossedCalendarDay(last, now time.Time) bool {
	ly, lm, ld := last.Date()
	ny, nm, nd := now.Date()
	if ny != ly {
		return ny > ly
	}
	if nm != lm {
		return nm > lm
	}
	return nd > ld
}

// crossedCalendarMonth reports whether now falls in a later calendar month than last
func crossedCalendarMonth(last, now time.Time) bool {
	ly, lm, _ := last.Date()
	ny, nm, _ := now.Date()
	if ny != ly {
		return ny > ly
	}
	return nm > lm
}

// MonthlyAllowance is the effective monthly processing ceiling: the plan's
// monthly limit plus purchased bonus units. Unlimited plans stay unlimited.
func (l *QuotaLedger) MonthlyAllowance(limits LimitSet) int64 {
	if limits.ProcessingUnitsPerMonth == Unlimited {
		return Unlimited
	}
	return limits.ProcessingUnitsPerMonth + l.BonusUnits
}

// FitsDaily reports whether amount more units fit under the daily cap
func (l *QuotaLedger) FitsDaily(limits LimitSet, amount int64) bool {
	if limits.DailyProcessingLimit == Unlimited {
		return true
	}
	return l.UnitsUsedToday+amount <= limits.DailyProcessingLimit
}

// FitsMonthly reports whether amount more units fit under the monthly
// allowance (plan limit plus bonus units)
func (l *QuotaLedger) FitsMonthly(limits LimitSet, amount int64) bool {
	allowance := l.MonthlyAllowance(limits)
	if allowance == Unlimited {
		return true
	}
	return l.UnitsUsedThisMonth+amount <= allowance
}

// FitsEgress reports whether amount more egress bytes fit under the monthly cap
func (l *QuotaLedger) FitsEgress(limits LimitSet, amount int64) bool {
	if limits.EgressBytesPerMonth == Unlimited {
		return true
	}
	return l.EgressBytesUsed+amount <= limits.EgressBytesPerMonth
}

// ConsumeProcessing increments both processing counters
func (l *QuotaLedger) ConsumeProcessing(amount int64) {
	l.UnitsUsedToday += amount
	l.UnitsUsedThisMonth += amount
	l.UpdatedAt = time.Now()
}

// ConsumeEgress increments the egress byte counter
func (l *QuotaLedger) ConsumeEgress(amount int64) {
	l.EgressBytesUsed += amount
	l.UpdatedAt = time.Now()
}

// RefundProcessing decrements both processing counters, flooring at zero
func (l *QuotaLedger) RefundProcessing(amount int64) {
	l.UnitsUsedToday = floorZero(l.UnitsUsedToday - amount)
	l.UnitsUsedThisMonth = floorZero(l.UnitsUsedThisMonth - amount)
	l.UpdatedAt = time.Now()
}

// RefundEgress decrements the egress counter, flooring at zero
func (l *QuotaLedger) RefundEgress(amount int64) {
	l.EgressBytesUsed = floorZero(l.EgressBytesUsed - amount)
	l.UpdatedAt = time.Now()
}

// GrantBonus adds purchased top-up units to the ledger
func (l *QuotaLedger) GrantBonus(units int64) {
	if units <= 0 {
		return
	}
	l.BonusUnits += units
	l.UpdatedAt = time.Now()
}

// ChangePlan re-points the ledger at a new plan. Consumption-to-date carries
// over within the current period; limits are re-derived on next read.
func (l *QuotaLedger) ChangePlan(plan PlanTier, seatCount int) {
	if !plan.IsValid() {
		plan = BaselinePlan
	}
	if seatCount < 1 {
		seatCount = 1
	}
	l.Plan = plan
	l.SeatCount = seatCount
	l.UpdatedAt = time.Now()
}

// Tenant reconstructs the tenant identity stored on the ledger
func (l *QuotaLedger) Tenant() Tenant {
	if l.TenantKind == TenantKindOrg {
		return NewOrgTenant(l.TenantID, l.SeatCount)
	}
	return NewUserTenant(l.TenantID)
}

// MonthlyUsageFraction returns used/allowance for processing units,
// division-by-zero safe
func (l *QuotaLedger) MonthlyUsageFraction(limits LimitSet) float64 {
	return UsageFraction(l.UnitsUsedThisMonth, l.MonthlyAllowance(limits))
}

// UsageFraction computes used/limit as a fraction. A zero or unlimited limit
// yields 0, never NaN or Inf.
func UsageFraction(used, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit)
}

// UsagePercent computes used/limit as a percentage with the same zero-limit
// safety as UsageFraction
func UsagePercent(used, limit int64) float64 {
	return UsageFraction(used, limit) * 100
}

func floorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
