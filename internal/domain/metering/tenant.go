package metering

import (
	"github.com/google/uuid"

	"github.com/vaultio/backend/internal/domain/shared"
)

// TenantKind discriminates between individual-user and organization tenants
type TenantKind string

const (
	// TenantKindUser is an individual user account
	TenantKindUser TenantKind = "user"

	// TenantKindOrg is an organization whose limits scale by seat count
	TenantKindOrg TenantKind = "org"
)

// String returns the string representation of TenantKind
func (k TenantKind) String() string {
	return string(k)
}

// IsValid returns true if the tenant kind is valid
func (k TenantKind) IsValid() bool {
	switch k {
	case TenantKindUser, TenantKindOrg:
		return true
	}
	return false
}

// Tenant identifies a metering subject. It carries identity only; all
// consumption state lives in the QuotaLedger.
type Tenant struct {
	Kind      TenantKind
	ID        uuid.UUID
	SeatCount int // meaningful for org tenants only
}

// NewUserTenant creates a tenant for an individual user
func NewUserTenant(id uuid.UUID) Tenant {
	return Tenant{Kind: TenantKindUser, ID: id, SeatCount: 1}
}

// NewOrgTenant creates a tenant for an organization with the given seat count
func NewOrgTenant(id uuid.UUID, seatCount int) Tenant {
	if seatCount < 1 {
		seatCount = 1
	}
	return Tenant{Kind: TenantKindOrg, ID: id, SeatCount: seatCount}
}

// Seats returns the effective seat count (never below 1)
func (t Tenant) Seats() int {
	if t.Kind != TenantKindOrg || t.SeatCount < 1 {
		return 1
	}
	return t.SeatCount
}

// Validate checks that the tenant identity is usable
func (t Tenant) Validate() error {
	if t.ID == uuid.Nil {
		return shared.ErrInvalidTenant
	}
	if !t.Kind.IsValid() {
		return shared.ErrInvalidTenant
	}
	return nil
}
