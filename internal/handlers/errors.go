package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/models"
)

// respondError maps domain errors onto HTTP responses. Anything outside
// the known taxonomy is a 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	switch e := err.(type) {
	case *models.ValidationError:
		c.JSON(http.StatusBadRequest, gin.H{"error": e.Error()})
	case *models.NotFoundError:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
	case *models.CapacityError:
		c.JSON(http.StatusConflict, gin.H{
			"error":     e.Error(),
			"requested": e.Requested,
			"available": e.Available,
		})
	case *models.ConflictError:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *models.ExternalServiceError:
		logger.WithError(err).Error("Upstream service failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": e.Error()})
	case *models.InvariantViolation:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": e.Error()})
	default:
		logger.WithError(err).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
