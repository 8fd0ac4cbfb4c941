package handler

import (
	"github.com/gin-gonic/gin"

	pricingapp "github.com/tymon3568/anthill-pricing/internal/application/pricing"
)

// PricingHandler handles price resolution API endpoints
type PricingHandler struct {
	BaseHandler
	pricingService *pricingapp.PricingService
}

// NewPricingHandler creates a new PricingHandler
func NewPricingHandler(pricingService *pricingapp.PricingService) *PricingHandler {
	return &PricingHandler{pricingService: pricingService}
}

// RegisterRoutes registers pricing routes on the API group
func (h *PricingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/pricing")
	{
		group.POST("/quote", h.Quote)
		group.POST("/commit", h.Commit)
	}
}

// Quote godoc
// @Summary      Quote a price
// @Description  Resolve the unit price for a product line without consuming rule usage
// @Tags         pricing
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body pricingapp.QuoteRequest true "Quote request"
// @Success      200 {object} dto.Response{data=pricingapp.PriceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pricing/quote [post]
func (h *PricingHandler) Quote(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req pricingapp.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.pricingService.Quote(c.Request.Context(), tenantID, req)
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Commit godoc
// @Summary      Commit a price
// @Description  Resolve the unit price for a finalizing order line and consume rule usage
// @Tags         pricing
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body pricingapp.CommitRequest true "Commit request"
// @Success      200 {object} dto.Response{data=pricingapp.PriceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /pricing/commit [post]
func (h *PricingHandler) Commit(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req pricingapp.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.pricingService.Commit(c.Request.Context(), tenantID, req)
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.Success(c, result)
}
