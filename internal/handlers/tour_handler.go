package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/database"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

// TourHandler handles tour and schedule management endpoints
type TourHandler struct {
	tourRepo          *database.TourRepository
	defaultWindowDays int
	logger            *logrus.Logger
}

// NewTourHandler creates a new TourHandler
func NewTourHandler(tourRepo *database.TourRepository, defaultWindowDays int, logger *logrus.Logger) *TourHandler {
	return &TourHandler{
		tourRepo:          tourRepo,
		defaultWindowDays: defaultWindowDays,
		logger:            logger,
	}
}

// CreateTour creates a new tour
// POST /api/v1/tours
func (h *TourHandler) CreateTour(c *gin.Context) {
	var req models.CreateTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	windowDays := req.BookingWindowDays
	if windowDays == 0 {
		windowDays = h.defaultWindowDays
	}

	tour := &models.Tour{
		Name:              req.Name,
		Description:       req.Description,
		DefaultCapacity:   req.DefaultCapacity,
		DurationMinutes:   req.DurationMinutes,
		BookingWindowDays: windowDays,
		IsActive:          true,
	}
	if err := h.tourRepo.Create(tour); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("tour_id", tour.ID).Info("Tour created")
	c.JSON(http.StatusCreated, tour)
}

// ListTours lists tours
// GET /api/v1/tours?active=true
func (h *TourHandler) ListTours(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	tours, err := h.tourRepo.List(activeOnly)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tours": tours})
}

// GetTour retrieves one tour
// GET /api/v1/tours/:tourId
func (h *TourHandler) GetTour(c *gin.Context) {
	tour, err := h.tourRepo.GetByID(c.Param("tourId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tour)
}

// UpdateTour updates a tour's mutable fields. Capacity changes only apply
// to instances materialized afterwards.
// PUT /api/v1/admin/tours/:tourId
func (h *TourHandler) UpdateTour(c *gin.Context) {
	tour, err := h.tourRepo.GetByID(c.Param("tourId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req models.UpdateTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := req.Apply(tour); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tourRepo.Update(tour); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("tour_id", tour.ID).Info("Tour updated")
	c.JSON(http.StatusOK, tour)
}

// SetSchedule replaces the tour's active schedule
// PUT /api/v1/tours/:tourId/schedule
func (h *TourHandler) SetSchedule(c *gin.Context) {
	tourID := c.Param("tourId")
	if _, err := h.tourRepo.GetByID(tourID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req models.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule := &models.Schedule{
		TourID:     tourID,
		DaysOfWeek: req.DaysOfWeek,
		Times:      req.Times,
		Blackouts:  req.Blackouts,
	}
	if err := h.tourRepo.ReplaceSchedule(schedule); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"tour_id":     tourID,
		"schedule_id": schedule.ID,
	}).Info("Schedule replaced")
	c.JSON(http.StatusOK, schedule)
}

// GetSchedule retrieves the tour's active schedule
// GET /api/v1/tours/:tourId/schedule
func (h *TourHandler) GetSchedule(c *gin.Context) {
	schedule, err := h.tourRepo.GetActiveSchedule(c.Param("tourId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}
