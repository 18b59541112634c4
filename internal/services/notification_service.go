package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/config"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

// Notifier sends customer-facing notifications. Failures are logged, never
// propagated; a lost email must not roll back a booking.
type Notifier interface {
	BookingConfirmed(booking *models.Booking, customer *models.Customer)
	BookingCancelled(booking *models.Booking, customer *models.Customer, reason string)
	RefundProcessed(booking *models.Booking, customer *models.Customer)
}

// NotificationService sends emails through the notification gateway.
// In dev mode it logs the message instead of calling the gateway.
type NotificationService struct {
	config *config.NotificationConfig
	logger *logrus.Logger
	client *http.Client
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(cfg *config.NotificationConfig, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BookingConfirmed notifies the customer that payment succeeded
func (s *NotificationService) BookingConfirmed(booking *models.Booking, customer *models.Customer) {
	subject := fmt.Sprintf("Booking %s confirmed", booking.BookingReference)
	body := fmt.Sprintf("Hi %s, your booking %s for %d seat(s) is confirmed.",
		customer.Name, booking.BookingReference, booking.Seats)
	s.send(customer.Email, subject, body)
}

// BookingCancelled notifies the customer of a cancellation
func (s *NotificationService) BookingCancelled(booking *models.Booking, customer *models.Customer, reason string) {
	subject := fmt.Sprintf("Booking %s cancelled", booking.BookingReference)
	body := fmt.Sprintf("Hi %s, your booking %s has been cancelled. Reason: %s",
		customer.Name, booking.BookingReference, reason)
	s.send(customer.Email, subject, body)
}

// RefundProcessed notifies the customer that a refund completed
func (s *NotificationService) RefundProcessed(booking *models.Booking, customer *models.Customer) {
	subject := fmt.Sprintf("Refund for booking %s", booking.BookingReference)
	body := fmt.Sprintf("Hi %s, your refund for booking %s has been processed.",
		customer.Name, booking.BookingReference)
	s.send(customer.Email, subject, body)
}

type sendEmailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *NotificationService) send(to, subject, body string) {
	if s.config.Mode != "production" {
		s.logger.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("[DEV] Notification suppressed")
		return
	}

	payload, err := json.Marshal(sendEmailRequest{
		From:    s.config.FromEmail,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to serialize notification")
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		s.logger.WithError(err).Error("Failed to build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("to", to).Error("Failed to send notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.WithFields(logrus.Fields{
			"to":     to,
			"status": resp.StatusCode,
		}).Error("Notification gateway rejected message")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("Notification sent")
}
