package handler

import (
	"github.com/gin-gonic/gin"

	appmetering "github.com/vaultio/backend/internal/application/metering"
	"github.com/vaultio/backend/internal/domain/metering"
	"github.com/vaultio/backend/internal/interfaces/http/dto"
)

// TenantHandler handles tenant ledger provisioning and plan management
type TenantHandler struct {
	BaseHandler
	provision *appmetering.ProvisionService
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(provision *appmetering.ProvisionService) *TenantHandler {
	return &TenantHandler{
		provision: provision,
	}
}

// ProvisionLedger godoc
// @Summary      Provision a quota ledger
// @Description  Creates a zeroed quota ledger for a tenant. Idempotent: an existing ledger is returned unchanged.
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        request body dto.ProvisionLedgerRequest true "Provision request"
// @Success      201 {object} dto.Response{data=dto.ProvisionLedgerResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tenants/ledger [post]
func (h *TenantHandler) ProvisionLedger(c *gin.Context) {
	var req dto.ProvisionLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	tenant, err := tenantFromRef(req.TenantRef)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidTenant, "Tenant ID must be a valid UUID")
		return
	}

	ledger, err := h.provision.EnsureLedger(c.Request.Context(), tenant, req.Plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.ProvisionLedgerResponse{
		TenantID: ledger.TenantID.String(),
		Plan:     string(ledger.Plan),
	})
}

// ChangePlan godoc
// @Summary      Change a tenant's plan
// @Description  Moves the tenant to a new plan tier effective immediately. Usage counters carry over unchanged.
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        request body dto.ChangePlanRequest true "Plan change request"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tenants/plan [put]
func (h *TenantHandler) ChangePlan(c *gin.Context) {
	var req dto.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	tenant, err := tenantFromRef(req.TenantRef)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidTenant, "Tenant ID must be a valid UUID")
		return
	}

	if err := h.provision.ChangePlan(c.Request.Context(), tenant, req.Plan); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"plan": req.Plan})
}

// SetAutoTopUp godoc
// @Summary      Configure automatic top-up
// @Description  Enables or disables automatic top-up purchases for the tenant and selects the pack bought on trigger.
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        request body dto.AutoTopUpRequest true "Auto top-up settings"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tenants/auto-topup [put]
func (h *TenantHandler) SetAutoTopUp(c *gin.Context) {
	var req dto.AutoTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	tenant, err := tenantFromRef(req.TenantRef)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidTenant, "Tenant ID must be a valid UUID")
		return
	}

	err = h.provision.SetAutoTopUp(
		c.Request.Context(), tenant, req.Enabled, metering.PackKind(req.Pack))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"enabled": req.Enabled, "pack": req.Pack})
}

// RegisterRoutes registers tenant management routes
func (h *TenantHandler) RegisterRoutes(rg *gin.RouterGroup) {
	routes := rg.Group("/tenants")
	{
		routes.POST("/ledger", h.ProvisionLedger)
		routes.PUT("/plan", h.ChangePlan)
		routes.PUT("/auto-topup", h.SetAutoTopUp)
	}
}
