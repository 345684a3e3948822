package metering

import (
	"fmt"

	"github.com/vaultio/backend/internal/domain/shared"
)

// ResourceKind identifies a metered resource class
type ResourceKind string

const (
	// ResourceProcessingUnit is one unit of document OCR/AI processing work
	ResourceProcessingUnit ResourceKind = "processing_unit"

	// ResourceStorageBytes is total stored document bytes
	ResourceStorageBytes ResourceKind = "storage_bytes"

	// ResourceEgressBytes is download/egress bytes per billing month
	ResourceEgressBytes ResourceKind = "egress_bytes"

	// ResourceShareLink is the number of concurrently active share links
	ResourceShareLink ResourceKind = "share_link"
)

// String returns the string representation of ResourceKind
func (r ResourceKind) String() string {
	return string(r)
}

// IsValid returns true if the resource kind is valid
func (r ResourceKind) IsValid() bool {
	switch r {
	case ResourceProcessingUnit, ResourceStorageBytes, ResourceEgressBytes, ResourceShareLink:
		return true
	}
	return false
}

// HasDailyDimension returns true if the resource carries a daily cap in
// addition to its monthly one. Only processing units do.
func (r ResourceKind) HasDailyDimension() bool {
	return r == ResourceProcessingUnit
}

// DisplayName returns a human-readable name for the resource kind
func (r ResourceKind) DisplayName() string {
	switch r {
	case ResourceProcessingUnit:
		return "Processing Units"
	case ResourceStorageBytes:
		return "Storage"
	case ResourceEgressBytes:
		return "Egress"
	case ResourceShareLink:
		return "Share Links"
	default:
		return string(r)
	}
}

// ParseResourceKind parses a string into a ResourceKind
func ParseResourceKind(s string) (ResourceKind, error) {
	r := ResourceKind(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid resource kind: %s", s)
	}
	return r, nil
}

// AllResourceKinds returns all valid resource kinds
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{
		ResourceProcessingUnit,
		ResourceStorageBytes,
		ResourceEgressBytes,
		ResourceShareLink,
	}
}

// Unlimited marks a limit with no cap
const Unlimited int64 = -1

// LimitSet holds the caps a plan tier grants. Values are per seat; org
// tenants receive the set scaled by their seat count via Catalog.LimitsFor.
type LimitSet struct {
	StorageBytes            int64
	ProcessingUnitsPerMonth int64
	DailyProcessingLimit    int64 // Unlimited when the plan has no daily cap
	EgressBytesPerMonth     int64
	ActiveShareLinks        int64
}

// For returns the cap for the given resource kind, or UNKNOWN_RESOURCE_KIND
// for a limit class this set does not define.
func (l LimitSet) For(kind ResourceKind) (int64, error) {
	switch kind {
	case ResourceProcessingUnit:
		return l.ProcessingUnitsPerMonth, nil
	case ResourceStorageBytes:
		return l.StorageBytes, nil
	case ResourceEgressBytes:
		return l.EgressBytesPerMonth, nil
	case ResourceShareLink:
		return l.ActiveShareLinks, nil
	default:
		return 0, shared.NewDomainError("UNKNOWN_RESOURCE_KIND",
			fmt.Sprintf("no limit defined for resource kind %q", kind))
	}
}

// scaled multiplies every cap by the seat count. Unlimited caps stay unlimited.
func (l LimitSet) scaled(seats int) LimitSet {
	if seats <= 1 {
		return l
	}
	mul := func(v int64) int64 {
		if v == Unlimited {
			return Unlimited
		}
		return v * int64(seats)
	}
	return LimitSet{
		StorageBytes:            mul(l.StorageBytes),
		ProcessingUnitsPerMonth: mul(l.ProcessingUnitsPerMonth),
		DailyProcessingLimit:    mul(l.DailyProcessingLimit),
		EgressBytesPerMonth:     mul(l.EgressBytesPerMonth),
		ActiveShareLinks:        mul(l.ActiveShareLinks),
	}
}

const gb = int64(1) << 30

// Catalog is the static plan registry loaded once at process start.
// Changes require a restart; there is no live mutation path.
type Catalog struct {
	limits map[PlanTier]LimitSet
}

// NewCatalog creates a catalog from the given per-tier limit sets.
// Missing tiers fall back to the baseline tier's set on lookup.
func NewCatalog(limits map[PlanTier]LimitSet) *Catalog {
	cp := make(map[PlanTier]LimitSet, len(limits))
	for tier, set := range limits {
		cp[tier] = set
	}
	return &Catalog{limits: cp}
}

// DefaultCatalog returns the built-in plan catalog. Values are per seat.
func DefaultCatalog() *Catalog {
	return NewCatalog(map[PlanTier]LimitSet{
		PlanTrial: {
			StorageBytes:            1 * gb,
			ProcessingUnitsPerMonth: 100,
			DailyProcessingLimit:    25,
			EgressBytesPerMonth:     2 * gb,
			ActiveShareLinks:        3,
		},
		PlanStarter: {
			StorageBytes:            5 * gb,
			ProcessingUnitsPerMonth: 500,
			DailyProcessingLimit:    50,
			EgressBytesPerMonth:     10 * gb,
			ActiveShareLinks:        10,
		},
		PlanGrowth: {
			StorageBytes:            25 * gb,
			ProcessingUnitsPerMonth: 2000,
			DailyProcessingLimit:    200,
			EgressBytesPerMonth:     50 * gb,
			ActiveShareLinks:        50,
		},
		PlanPro: {
			StorageBytes:            100 * gb,
			ProcessingUnitsPerMonth: 10000,
			DailyProcessingLimit:    1000,
			EgressBytesPerMonth:     200 * gb,
			ActiveShareLinks:        200,
		},
		PlanBusinessStarter: {
			StorageBytes:            10 * gb,
			ProcessingUnitsPerMonth: 200,
			DailyProcessingLimit:    Unlimited,
			EgressBytesPerMonth:     20 * gb,
			ActiveShareLinks:        20,
		},
		PlanBusinessGrowth: {
			StorageBytes:            50 * gb,
			ProcessingUnitsPerMonth: 1000,
			DailyProcessingLimit:    Unlimited,
			EgressBytesPerMonth:     100 * gb,
			ActiveShareLinks:        100,
		},
		PlanBusinessPro: {
			StorageBytes:            200 * gb,
			ProcessingUnitsPerMonth: 5000,
			DailyProcessingLimit:    Unlimited,
			EgressBytesPerMonth:     500 * gb,
			ActiveShareLinks:        500,
		},
		PlanEnterprise: {
			StorageBytes:            Unlimited,
			ProcessingUnitsPerMonth: Unlimited,
			DailyProcessingLimit:    Unlimited,
			EgressBytesPerMonth:     Unlimited,
			ActiveShareLinks:        Unlimited,
		},
	})
}

// LimitsFor returns the limit set for a plan, scaled by seat count.
// Unknown plans fall back to the baseline tier rather than erroring.
func (c *Catalog) LimitsFor(plan PlanTier, seatCount int) LimitSet {
	set, ok := c.limits[plan]
	if !ok {
		set = c.limits[BaselinePlan]
	}
	if seatCount < 1 {
		seatCount = 1
	}
	return set.scaled(seatCount)
}

// LimitsForTenant resolves the tenant's effective limits from its ledger plan
func (c *Catalog) LimitsForTenant(tenant Tenant, plan PlanTier) LimitSet {
	return c.LimitsFor(plan, tenant.Seats())
}
