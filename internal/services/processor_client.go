package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/config"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

// PaymentProcessor is the surface of the external payment provider used by
// the booking and reconciliation flows
type PaymentProcessor interface {
	CreateIntent(amount float64, currency string, metadata map[string]string) (*PaymentIntent, error)
	UpdateIntentMetadata(intentID string, metadata map[string]string) error
	CreateRefund(intentID string, amount float64) (*Refund, error)
}

// PaymentIntent is the processor-side record of a charge attempt
type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Amount       float64           `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Refund is the processor-side record of a refund request
type Refund struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Amount float64 `json:"amount"`
}

// ProcessorClient calls the payment provider's REST API
type ProcessorClient struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// NewProcessorClient creates a new ProcessorClient
func NewProcessorClient(cfg *config.PaymentConfig, logger *logrus.Logger) *ProcessorClient {
	return &ProcessorClient{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type createIntentRequest struct {
	Amount   float64           `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type updateMetadataRequest struct {
	Metadata map[string]string `json:"metadata"`
}

type createRefundRequest struct {
	PaymentIntentID string  `json:"payment_intent_id"`
	Amount          float64 `json:"amount"`
}

// CreateIntent creates a payment intent for the given amount. Metadata is
// the only correlation channel back from webhooks, so callers must include
// the booking ID once it is known.
func (c *ProcessorClient) CreateIntent(amount float64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	var intent PaymentIntent
	err := c.do(http.MethodPost, "/payment_intents", createIntentRequest{
		Amount:   amount,
		Currency: currency,
		Metadata: metadata,
	}, &intent)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"intent_id": intent.ID,
		"amount":    amount,
		"currency":  currency,
	}).Info("Payment intent created")

	return &intent, nil
}

// UpdateIntentMetadata overwrites the intent's metadata
func (c *ProcessorClient) UpdateIntentMetadata(intentID string, metadata map[string]string) error {
	path := fmt.Sprintf("/payment_intents/%s", url.PathEscape(intentID))
	return c.do(http.MethodPost, path, updateMetadataRequest{Metadata: metadata}, nil)
}

// CreateRefund asks the processor to refund the given amount against an
// intent. The outcome arrives asynchronously via webhook; a non-error
// return only means the request was accepted.
func (c *ProcessorClient) CreateRefund(intentID string, amount float64) (*Refund, error) {
	var refund Refund
	err := c.do(http.MethodPost, "/refunds", createRefundRequest{
		PaymentIntentID: intentID,
		Amount:          amount,
	}, &refund)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"intent_id": intentID,
		"refund_id": refund.ID,
		"amount":    amount,
	}).Info("Refund requested")

	return &refund, nil
}

func (c *ProcessorClient) do(method, path string, payload interface{}, out interface{}) error {
	if c.config.SecretKey == "" {
		return &models.ExternalServiceError{
			Service: "payment processor",
			Err:     fmt.Errorf("processor not configured: missing secret key"),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	req, err := http.NewRequest(method, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &models.ExternalServiceError{Service: "payment processor", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &models.ExternalServiceError{Service: "payment processor", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"path":   path,
		}).Error("Payment processor request failed")
		return &models.ExternalServiceError{
			Service: "payment processor",
			Err:     fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &models.ExternalServiceError{
				Service: "payment processor",
				Err:     fmt.Errorf("failed to parse response: %w", err),
			}
		}
	}
	return nil
}
