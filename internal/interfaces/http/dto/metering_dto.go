package dto

// TenantRef identifies the metering subject of a request. Seat count is only
// meaningful for org tenants and defaults to 1 when omitted.
type TenantRef struct {
	TenantID   string `json:"tenant_id" binding:"required,uuid"`
	TenantKind string `json:"tenant_kind" binding:"required,oneof=user org"`
	SeatCount  int    `json:"seat_count" binding:"omitempty,min=1"`
}

// AdmitRequest asks the admission gate whether a metered operation may
// proceed, consuming the amount atomically when it does
type AdmitRequest struct {
	TenantRef
	Resource string `json:"resource" binding:"required"`
	Amount   int64  `json:"amount" binding:"omitempty,min=1"`
}

// AdmitResponse reports the gate decision
type AdmitResponse struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	TopUpError   string `json:"topup_error,omitempty"`
	CurrentUsage int64  `json:"current_usage"`
	Limit        int64  `json:"limit"`
}

// RefundRequest reverses a previously admitted consumption. Repeats with the
// same request_id are acknowledged without double-crediting.
type RefundRequest struct {
	TenantRef
	Resource  string `json:"resource" binding:"required"`
	Amount    int64  `json:"amount" binding:"required,min=1"`
	RequestID string `json:"request_id" binding:"required,max=128"`
}

// RefundResponse acknowledges a refund
type RefundResponse struct {
	Refunded  bool   `json:"refunded"`
	RequestID string `json:"request_id"`
}

// UsageQuery carries the optional tenant shape for the usage snapshot; the
// tenant ID itself comes from the tenant middleware
type UsageQuery struct {
	TenantKind string `form:"tenant_kind" binding:"omitempty,oneof=user org"`
	SeatCount  int    `form:"seat_count" binding:"omitempty,min=1"`
}

// ProvisionLedgerRequest creates a zeroed quota ledger for a tenant. The call
// is idempotent; an existing ledger is returned unchanged.
type ProvisionLedgerRequest struct {
	TenantRef
	Plan string `json:"plan" binding:"required"`
}

// ProvisionLedgerResponse summarizes the provisioned ledger
type ProvisionLedgerResponse struct {
	TenantID string `json:"tenant_id"`
	Plan     string `json:"plan"`
}

// ChangePlanRequest moves a tenant to a new plan tier. Usage counters carry
// over unchanged.
type ChangePlanRequest struct {
	TenantRef
	Plan string `json:"plan" binding:"required"`
}

// AutoTopUpRequest enables or disables automatic top-up purchases for a
// tenant and selects the pack bought on trigger
type AutoTopUpRequest struct {
	TenantRef
	Enabled bool   `json:"enabled"`
	Pack    string `json:"pack" binding:"omitempty,oneof=small medium large"`
}
