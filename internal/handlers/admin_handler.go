package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/models"
	"github.com/islandtours/tour-booking-backend/internal/services"
)

// AdminHandler handles operator endpoints: manual bookings, refunds,
// instance cancellation and the triage queue
type AdminHandler struct {
	bookingService *services.BookingService
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	bookingService *services.BookingService,
	paymentService *services.PaymentService,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		bookingService: bookingService,
		paymentService: paymentService,
		logger:         logger,
	}
}

// CreateManualBooking records a booking paid outside the system
// POST /api/v1/admin/bookings
func (h *AdminHandler) CreateManualBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	response, err := h.bookingService.CreateManualBooking(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// ListInstanceBookings returns the manifest of one instance
// GET /api/v1/admin/instances/:instanceId/bookings
func (h *AdminHandler) ListInstanceBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListBookingsForInstance(c.Param("instanceId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// ProcessRefund starts a refund for a paid booking
// POST /api/v1/admin/bookings/:bookingId/refund
func (h *AdminHandler) ProcessRefund(c *gin.Context) {
	var req models.ProcessRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	booking, err := h.paymentService.ProcessRefund(c.Param("bookingId"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// RetryRefund re-submits a failed refund from the triage queue
// POST /api/v1/admin/bookings/:bookingId/refund/retry
func (h *AdminHandler) RetryRefund(c *gin.Context) {
	booking, err := h.paymentService.RetryRefund(c.Param("bookingId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelInstance cancels an instance and all its active bookings
// POST /api/v1/admin/instances/:instanceId/cancel
func (h *AdminHandler) CancelInstance(c *gin.Context) {
	var req models.CancelInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	result, err := h.paymentService.CancelInstance(c.Param("instanceId"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListTriage returns bookings needing manual reconciliation
// GET /api/v1/admin/triage
func (h *AdminHandler) ListTriage(c *gin.Context) {
	bookings, err := h.paymentService.ListTriage()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}
