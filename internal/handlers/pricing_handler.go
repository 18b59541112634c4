package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/models"
	"github.com/islandtours/tour-booking-backend/internal/services"
)

// PricingHandler handles admin pricing endpoints
type PricingHandler struct {
	pricing *services.PricingService
	logger  *logrus.Logger
}

// NewPricingHandler creates a new PricingHandler
func NewPricingHandler(pricing *services.PricingService, logger *logrus.Logger) *PricingHandler {
	return &PricingHandler{pricing: pricing, logger: logger}
}

// SetRule sets the base price of a ticket on a tour
// PUT /api/v1/admin/tours/:tourId/pricing/rules
func (h *PricingHandler) SetRule(c *gin.Context) {
	var req models.SetPricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	rule, err := h.pricing.SetRule(c.Param("tourId"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// GetRules lists the base price rules of a tour
// GET /api/v1/admin/tours/:tourId/pricing/rules
func (h *PricingHandler) GetRules(c *gin.Context) {
	rules, err := h.pricing.GetRules(c.Param("tourId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// ApplyExceptionBatch applies an override price across a date range
// POST /api/v1/admin/tours/:tourId/pricing/exceptions/batch
func (h *PricingHandler) ApplyExceptionBatch(c *gin.Context) {
	var req models.ApplyPriceExceptionBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	count, err := h.pricing.ApplyExceptionBatch(c.Param("tourId"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots_updated": count})
}

// SetSlotPrice overrides one ticket price on a single slot
// PUT /api/v1/admin/tours/:tourId/pricing/exceptions
func (h *PricingHandler) SetSlotPrice(c *gin.Context) {
	var req models.SetInstancePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	exception, err := h.pricing.SetSlotPrice(c.Param("tourId"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, exception)
}

// DeleteSlotPrice removes a single-slot override
// DELETE /api/v1/admin/tours/:tourId/pricing/exceptions?ticket_id=...&date=YYYY-MM-DD&time=HH:MM
func (h *PricingHandler) DeleteSlotPrice(c *gin.Context) {
	ticketID := c.Query("ticket_id")
	if ticketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticket_id is required"})
		return
	}

	err := h.pricing.DeleteSlotPrice(c.Param("tourId"), ticketID, c.Query("date"), c.Query("time"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "price override removed"})
}
