package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/config"
	"github.com/islandtours/tour-booking-backend/internal/models"
	"github.com/islandtours/tour-booking-backend/internal/services"
)

// WebhookHandler receives payment processor callbacks
type WebhookHandler struct {
	paymentService *services.PaymentService
	config         *config.PaymentConfig
	logger         *logrus.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(
	paymentService *services.PaymentService,
	cfg *config.PaymentConfig,
	logger *logrus.Logger,
) *WebhookHandler {
	return &WebhookHandler{paymentService: paymentService, config: cfg, logger: logger}
}

// HandleProcessorWebhook processes one payment processor event. The
// processor retries on non-2xx, so processing failures are logged and
// acknowledged anyway; replays are idempotent downstream. Only a bad
// signature is rejected.
// POST /api/v1/webhooks/payments
func (h *WebhookHandler) HandleProcessorWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if h.config.WebhookSecret != "" {
		signature := c.GetHeader("X-Processor-Signature")
		if !h.verifySignature(body, signature) {
			h.logger.Warn("Webhook signature verification failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.WithError(err).Warn("Webhook payload could not be parsed")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.paymentService.HandleWebhookEvent(&event); err != nil {
		h.logger.WithError(err).WithField("event_id", event.ID).
			Error("Webhook processing failed")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.config.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
