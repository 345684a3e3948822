package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appmetering "github.com/vaultio/backend/internal/application/metering"
	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/interfaces/http/dto"
)

// MeteringHandler exposes the admission gate and usage reporting over HTTP
type MeteringHandler struct {
	BaseHandler
	admission *appmetering.AdmissionService
	snapshot  *appmetering.SnapshotService
}

// NewMeteringHandler creates a new metering handler
func NewMeteringHandler(
	admission *appmetering.AdmissionService,
	snapshot *appmetering.SnapshotService,
) *MeteringHandler {
	return &MeteringHandler{
		admission: admission,
		snapshot:  snapshot,
	}
}

// tenantFromRef converts the request tenant reference into a domain tenant
func tenantFromRef(ref dto.TenantRef) (metering.Tenant, error) {
	id, err := uuid.Parse(ref.TenantID)
	if err != nil {
		return metering.Tenant{}, err
	}
	if metering.TenantKind(ref.TenantKind) == metering.TenantKindOrg {
		return metering.NewOrgTenant(id, ref.SeatCount), nil
	}
	return metering.NewUserTenant(id), nil
}

// Admit godoc
// @Summary      Check and consume quota
// @Description  Checks the tenant's limits for a metered resource and atomically consumes the amount when admitted. Denials return 429 with the decision in the response body.
// @Tags         metering
// @Accept       json
// @Produce      json
// @Param        request body dto.AdmitRequest true "Admission request"
// @Success      200 {object} dto.Response{data=dto.AdmitResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /metering/admit [post]
func (h *MeteringHandler) Admit(c *gin.Context) {
	var req dto.AdmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	tenant, err := tenantFromRef(req.TenantRef)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidTenant, "Tenant ID must be a valid UUID")
		return
	}

	result, err := h.admission.CheckAndConsume(
		c.Request.Context(), tenant, metering.ResourceKind(req.Resource), req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	body := dto.AdmitResponse{
		Allowed:      result.Allowed,
		Reason:       result.Reason,
		TopUpError:   result.TopUpError,
		CurrentUsage: result.CurrentUsage,
		Limit:        result.Limit,
	}

	if result.Allowed {
		h.Success(c, body)
		return
	}

	// Denied: 429 with the decision attached so callers can render an
	// upgrade prompt from the usage figures
	c.JSON(result.HTTPStatusCode(), dto.Response{
		Success: false,
		Data:    body,
		Error: &dto.ErrorInfo{
			Code:      dto.ErrCodeQuotaExceeded,
			Message:   denialMessage(result.Reason),
			RequestID: getRequestID(c),
		},
	})
}

// denialMessage maps a gate denial reason to a human-readable message
func denialMessage(reason string) string {
	switch reason {
	case appmetering.ReasonDailyLimitExceeded:
		return "Daily processing limit reached"
	case appmetering.ReasonMonthlyLimitExceeded:
		return "Monthly processing limit reached"
	case appmetering.ReasonStorageLimitExceeded:
		return "Storage limit reached"
	case appmetering.ReasonEgressLimitExceeded:
		return "Monthly egress limit reached"
	case appmetering.ReasonShareLinkLimitExceeded:
		return "Active share link limit reached"
	default:
		return "Quota exceeded"
	}
}

// Refund godoc
// @Summary      Refund consumed quota
// @Description  Reverses a previously admitted consumption. Safe to retry: repeats with the same request_id are acknowledged without double-crediting.
// @Tags         metering
// @Accept       json
// @Produce      json
// @Param        request body dto.RefundRequest true "Refund request"
// @Success      200 {object} dto.Response{data=dto.RefundResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /metering/refund [post]
func (h *MeteringHandler) Refund(c *gin.Context) {
	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	tenant, err := tenantFromRef(req.TenantRef)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidTenant, "Tenant ID must be a valid UUID")
		return
	}

	err = h.admission.Refund(
		c.Request.Context(), tenant, metering.ResourceKind(req.Resource), req.Amount, req.RequestID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.RefundResponse{
		Refunded:  true,
		RequestID: req.RequestID,
	})
}

// Usage godoc
// @Summary      Get usage snapshot
// @Description  Returns the tenant's current usage, limits and percentages per resource. Read-only; never mutates the ledger.
// @Tags         metering
// @Produce      json
// @Param        tenant_kind query string false "Tenant kind (user or org)"
// @Param        seat_count  query int    false "Seat count for org tenants"
// @Success      200 {object} dto.Response{data=metering.UsageSnapshotDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /metering/usage [get]
func (h *MeteringHandler) Usage(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidTenant, "Tenant identity is missing or invalid")
		return
	}

	var query dto.UsageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	var tenant metering.Tenant
	if metering.TenantKind(query.TenantKind) == metering.TenantKindOrg {
		tenant = metering.NewOrgTenant(tenantID, query.SeatCount)
	} else {
		tenant = metering.NewUserTenant(tenantID)
	}

	snapshot, err := h.snapshot.Snapshot(c.Request.Context(), tenant)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snapshot)
}

// RegisterRoutes registers metering routes
func (h *MeteringHandler) RegisterRoutes(rg *gin.RouterGroup) {
	routes := rg.Group("/metering")
	{
		routes.POST("/admit", h.Admit)
		routes.POST("/refund", h.Refund)
		routes.GET("/usage", h.Usage)
	}
}
