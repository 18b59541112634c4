package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/services"
)

// AvailabilityHandler handles public availability and pricing reads
type AvailabilityHandler struct {
	availability *services.AvailabilityService
	pricing      *services.PricingService
	logger       *logrus.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(
	availability *services.AvailabilityService,
	pricing *services.PricingService,
	logger *logrus.Logger,
) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, pricing: pricing, logger: logger}
}

// GetAvailability returns the slots of a tour in a date range with enough
// remaining capacity for the requested party size (default 1)
// GET /api/v1/tours/:tourId/availability?start=YYYY-MM-DD&end=YYYY-MM-DD&seats=N
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	start, err := time.Parse("2006-01-02", c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be in YYYY-MM-DD format"})
		return
	}
	end, err := time.Parse("2006-01-02", c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be in YYYY-MM-DD format"})
		return
	}

	seatsRequested := 1
	if raw := c.Query("seats"); raw != "" {
		seatsRequested, err = strconv.Atoi(raw)
		if err != nil || seatsRequested <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "seats must be a positive integer"})
			return
		}
	}

	slots, err := h.availability.GetAvailability(c.Param("tourId"), start, end, seatsRequested)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// GetSlotPrices returns the effective ticket prices for one slot
// GET /api/v1/tours/:tourId/prices?date=YYYY-MM-DD&time=HH:MM
func (h *AvailabilityHandler) GetSlotPrices(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be in YYYY-MM-DD format"})
		return
	}
	startTime := c.Query("time")
	if _, err := time.Parse("15:04", startTime); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time must be in HH:MM format"})
		return
	}

	prices, err := h.pricing.ResolveSlotPrices(c.Param("tourId"), date, startTime)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}
