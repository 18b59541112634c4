package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/database"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

// TicketHandler handles ticket definition endpoints
type TicketHandler struct {
	ticketRepo *database.TicketRepository
	logger     *logrus.Logger
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(ticketRepo *database.TicketRepository, logger *logrus.Logger) *TicketHandler {
	return &TicketHandler{ticketRepo: ticketRepo, logger: logger}
}

// CreateTicket defines a new ticket
// POST /api/v1/tickets
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	var req models.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Recipes may only reference existing atomic tickets
	for _, item := range req.Recipe {
		atomic, err := h.ticketRepo.GetByID(item.AtomicTicketID)
		if err != nil {
			if _, ok := err.(*models.NotFoundError); ok {
				respondError(c, h.logger, models.NewInvariantViolation("recipe references unknown ticket %s", item.AtomicTicketID))
				return
			}
			respondError(c, h.logger, err)
			return
		}
		if atomic.Type != models.TicketTypeAtomic {
			respondError(c, h.logger, models.NewInvariantViolation("recipe item %s is not an atomic ticket", item.AtomicTicketID))
			return
		}
	}

	ticket := &models.Ticket{
		Name:     req.Name,
		Type:     req.Type,
		IsActive: true,
	}
	for _, item := range req.Recipe {
		ticket.Recipe = append(ticket.Recipe, models.RecipeItem{
			AtomicTicketID: item.AtomicTicketID,
			Quantity:       item.Quantity,
		})
	}

	if err := h.ticketRepo.Create(ticket); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"ticket_id": ticket.ID,
		"type":      ticket.Type,
	}).Info("Ticket created")
	c.JSON(http.StatusCreated, ticket)
}

// ListTickets lists ticket definitions
// GET /api/v1/tickets?active=true
func (h *TicketHandler) ListTickets(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	tickets, err := h.ticketRepo.List(activeOnly)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// GetTicket retrieves one ticket with its recipe
// GET /api/v1/tickets/:ticketId
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ticket, err := h.ticketRepo.GetByID(c.Param("ticketId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// DeactivateTicket retires a ticket definition
// DELETE /api/v1/tickets/:ticketId
func (h *TicketHandler) DeactivateTicket(c *gin.Context) {
	ticketID := c.Param("ticketId")
	if err := h.ticketRepo.Deactivate(ticketID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("ticket_id", ticketID).Info("Ticket deactivated")
	c.JSON(http.StatusOK, gin.H{"message": "ticket deactivated"})
}
