package services

import (
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/database"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

// PaymentService reconciles processor webhooks with booking state and runs
// the admin-side money flows: refunds, retries and bulk cancellation.
// Webhook transitions are idempotent; a replayed or stale event never moves
// a booking backwards.
type PaymentService struct {
	db           database.DB
	bookingRepo  *database.BookingRepository
	instanceRepo *database.InstanceRepository
	customerRepo *database.CustomerRepository
	processor    PaymentProcessor
	notifier     Notifier
	logger       *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	db database.DB,
	bookingRepo *database.BookingRepository,
	instanceRepo *database.InstanceRepository,
	customerRepo *database.CustomerRepository,
	processor PaymentProcessor,
	notifier Notifier,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		db:           db,
		bookingRepo:  bookingRepo,
		instanceRepo: instanceRepo,
		customerRepo: customerRepo,
		processor:    processor,
		notifier:     notifier,
		logger:       logger,
	}
}

// HandleWebhookEvent applies one processor event to booking state. Unknown
// event types and events for unknown bookings are logged and swallowed;
// the webhook endpoint acknowledges regardless.
func (s *PaymentService) HandleWebhookEvent(event *models.WebhookEvent) error {
	booking, err := s.correlate(&event.Data.Object)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Warn("Webhook event could not be correlated to a booking")
		return nil
	}

	log := s.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"booking_id": booking.ID,
	})

	switch event.Type {
	case models.EventPaymentSucceeded:
		err = s.applyPaymentSucceeded(booking.ID)
	case models.EventPaymentFailed:
		err = s.applyPaymentFailed(booking.ID, event.Data.Object.FailureReason)
	case models.EventRefundSucceeded:
		err = s.applyRefundSucceeded(booking.ID)
	case models.EventRefundFailed:
		err = s.applyRefundFailed(booking.ID)
	default:
		log.Info("Ignoring unhandled webhook event type")
		return nil
	}

	if err != nil {
		if _, ok := err.(*models.ConflictError); ok {
			// Replayed or out-of-order event; current state already
			// reflects a later transition.
			log.WithError(err).Warn("Stale webhook event ignored")
			return nil
		}
		log.WithError(err).Error("Failed to apply webhook event")
		return err
	}

	log.Info("Webhook event applied")
	return nil
}

// correlate finds the booking an event belongs to. Metadata carries the
// booking ID; intent lookup is the fallback for events created before the
// metadata stamp landed.
func (s *PaymentService) correlate(object *models.WebhookObject) (*models.Booking, error) {
	if id := object.BookingID(); id != "" {
		return s.bookingRepo.GetByID(id)
	}
	return s.bookingRepo.GetByPaymentIntentID(object.IntentID())
}

func (s *PaymentService) applyPaymentSucceeded(bookingID string) error {
	var booking *models.Booking
	err := s.inTx(func(tx *sqlx.Tx) error {
		var err error
		booking, err = s.bookingRepo.LockByID(tx, bookingID)
		if err != nil {
			return err
		}
		prevSeat, prevPay := booking.SeatStatus, booking.PaymentStatus
		if err := booking.ConfirmPayment(); err != nil {
			return err
		}
		if err := s.bookingRepo.UpdateStatuses(tx, booking); err != nil {
			return err
		}
		return s.appendTransitions(tx, booking, prevSeat, prevPay, nil)
	})
	if err != nil {
		return err
	}

	s.notify(booking, func(c *models.Customer) {
		s.notifier.BookingConfirmed(booking, c)
	})
	return nil
}

func (s *PaymentService) applyPaymentFailed(bookingID string, reason *string) error {
	var booking *models.Booking
	err := s.inTx(func(tx *sqlx.Tx) error {
		var err error
		booking, err = s.bookingRepo.LockByID(tx, bookingID)
		if err != nil {
			return err
		}
		if _, err := s.instanceRepo.LockByID(tx, booking.InstanceID); err != nil {
			return err
		}
		prevSeat, prevPay := booking.SeatStatus, booking.PaymentStatus
		counted := booking.SeatsCounted()
		if err := booking.FailPayment(reason); err != nil {
			return err
		}
		if counted {
			if err := s.instanceRepo.AddBookedSeats(tx, booking.InstanceID, -booking.Seats); err != nil {
				return err
			}
		}
		if err := s.bookingRepo.UpdateStatuses(tx, booking); err != nil {
			return err
		}
		return s.appendTransitions(tx, booking, prevSeat, prevPay, reason)
	})
	if err != nil {
		return err
	}

	s.notify(booking, func(c *models.Customer) {
		msg := "payment failed"
		if reason != nil {
			msg = *reason
		}
		s.notifier.BookingCancelled(booking, c, msg)
	})
	return nil
}

func (s *PaymentService) applyRefundSucceeded(bookingID string) error {
	var booking *models.Booking
	err := s.inTx(func(tx *sqlx.Tx) error {
		var err error
		booking, err = s.bookingRepo.LockByID(tx, bookingID)
		if err != nil {
			return err
		}
		prevSeat, prevPay := booking.SeatStatus, booking.PaymentStatus
		if err := booking.RefundSucceeded(); err != nil {
			return err
		}
		if err := s.bookingRepo.UpdateStatuses(tx, booking); err != nil {
			return err
		}
		return s.appendTransitions(tx, booking, prevSeat, prevPay, nil)
	})
	if err != nil {
		return err
	}

	s.notify(booking, func(c *models.Customer) {
		s.notifier.RefundProcessed(booking, c)
	})
	return nil
}

func (s *PaymentService) applyRefundFailed(bookingID string) error {
	return s.inTx(func(tx *sqlx.Tx) error {
		booking, err := s.bookingRepo.LockByID(tx, bookingID)
		if err != nil {
			return err
		}
		prevSeat, prevPay := booking.SeatStatus, booking.PaymentStatus
		if err := booking.RefundFailed(); err != nil {
			return err
		}
		if err := s.bookingRepo.UpdateStatuses(tx, booking); err != nil {
			return err
		}
		return s.appendTransitions(tx, booking, prevSeat, prevPay, nil)
	})
}

// ProcessRefund starts a refund for a paid booking. Seats are released in
// the same transaction, ahead of the processor's verdict; the refund
// request itself must be accepted before anything commits, so a processor
// outage leaves the booking untouched.
func (s *PaymentService) ProcessRefund(bookingID string, req *models.ProcessRefundRequest) (*models.Booking, error) {
	var booking *models.Booking
	err := s.inTx(func(tx *sqlx.Tx) error {
		var err error
		booking, err = s.bookingRepo.LockByID(tx, bookingID)
		if err != nil {
			return err
		}
		if booking.PaymentIntentID == nil {
			return models.NewConflictError("booking %s has no payment intent to refund against", booking.BookingReference)
		}

		amount := booking.TotalAmount
		if req.Amount != nil {
			amount = *req.Amount
		}
		if amount <= 0 || amount > booking.TotalAmount {
			return models.NewValidationError("refund amount must be between 0 and the booking total %.2f", booking.TotalAmount)
		}

		if _, err := s.instanceRepo.LockByID(tx, booking.InstanceID); err != nil {
			return err
		}
		prevSeat, prevPay := booking.SeatStatus, booking.PaymentStatus
		counted := booking.SeatsCounted()
		if err := booking.RequestRefund(amount, req.Reason); err != nil {
			return err
		}
		if counted {
			if err := s.instanceRepo.AddBookedSeats(tx, booking.InstanceID, -booking.Seats); err != nil {
				return err
			}
		}
		if err := s.bookingRepo.UpdateStatuses(tx, booking); err != nil {
			return err
		}
		if err := s.appendTransitions(tx, booking, prevSeat, prevPay, req.Reason); err != nil {
			return err
		}

		if _, err := s.processor.CreateRefund(*booking.PaymentIntentID, amount); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"amount":     booking.RefundAmount,
	}).Info("Refund requested")

	return booking, nil
}

// RetryRefund re-submits the refund of a triaged booking. Seats stay
// released; only the payment axis moves back to refund_pending.
func (s *PaymentService) RetryRefund(bookingID string) (*models.Booking, error) {
	var booking *models.Booking
	err := s.inTx(func(tx *sqlx.Tx) error {
		var err error
		booking, err = s.bookingRepo.LockByID(tx, bookingID)
		if err != nil {
			return err
		}
		if booking.PaymentIntentID == nil || booking.RefundAmount == nil {
			return models.NewConflictError("booking %s has no refund to retry", booking.BookingReference)
		}
		prevSeat, prevPay := booking.SeatStatus, booking.PaymentStatus
		if err := booking.RetryRefund(); err != nil {
			return err
		}
		if err := s.bookingRepo.UpdateStatuses(tx, booking); err != nil {
			return err
		}
		if err := s.appendTransitions(tx, booking, prevSeat, prevPay, nil); err != nil {
			return err
		}

		if _, err := s.processor.CreateRefund(*booking.PaymentIntentID, *booking.RefundAmount); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("booking_id", booking.ID).Info("Refund retried")
	return booking, nil
}

// CancelInstanceResult summarizes a bulk instance cancellation
type CancelInstanceResult struct {
	InstanceID string `json:"instance_id"`
	Cancelled  int    `json:"cancelled_bookings"`
	Refunds    int    `json:"refunds_requested"`
}

// CancelInstance cancels a tour instance and every active booking on it.
// Paid bookings enter the refund flow; unpaid ones are cancelled outright.
// Refund submission to the processor happens after commit, per booking, so
// one processor failure cannot undo the cancellation. Failed submissions
// stay refund_pending until retried or resolved via triage.
func (s *PaymentService) CancelInstance(instanceID string, req *models.CancelInstanceRequest) (*CancelInstanceResult, error) {
	reason := req.Reason
	result := &CancelInstanceResult{InstanceID: instanceID}
	var toRefund []*models.Booking
	var cancelled []*models.Booking

	err := s.inTx(func(tx *sqlx.Tx) error {
		instance, err := s.instanceRepo.LockByID(tx, instanceID)
		if err != nil {
			return err
		}
		if instance.Status != models.InstanceStatusScheduled {
			return models.NewConflictError("instance %s is already %s", instanceID, instance.Status)
		}
		if err := s.instanceRepo.UpdateStatus(tx, instanceID, models.InstanceStatusCancelled); err != nil {
			return err
		}

		bookings, err := s.bookingRepo.LockActiveByInstance(tx, instanceID)
		if err != nil {
			return err
		}
		for i := range bookings {
			booking := &bookings[i]
			prevSeat, prevPay := booking.SeatStatus, booking.PaymentStatus

			if booking.PaymentStatus == models.PaymentStatusPaid && booking.PaymentIntentID != nil {
				if err := booking.RequestRefund(booking.TotalAmount, &reason); err != nil {
					return err
				}
				toRefund = append(toRefund, booking)
				result.Refunds++
			} else {
				if err := booking.Cancel(&reason); err != nil {
					return err
				}
			}

			if err := s.instanceRepo.AddBookedSeats(tx, instanceID, -booking.Seats); err != nil {
				return err
			}
			if err := s.bookingRepo.UpdateStatuses(tx, booking); err != nil {
				return err
			}
			if err := s.appendTransitions(tx, booking, prevSeat, prevPay, &reason); err != nil {
				return err
			}
			cancelled = append(cancelled, booking)
			result.Cancelled++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, booking := range toRefund {
		if _, err := s.processor.CreateRefund(*booking.PaymentIntentID, booking.TotalAmount); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).
				Error("Refund submission failed during instance cancellation")
		}
	}
	for _, booking := range cancelled {
		b := booking
		s.notify(b, func(c *models.Customer) {
			s.notifier.BookingCancelled(b, c, reason)
		})
	}

	s.logger.WithFields(logrus.Fields{
		"instance_id": instanceID,
		"cancelled":   result.Cancelled,
		"refunds":     result.Refunds,
	}).Info("Instance cancelled")

	return result, nil
}

// ListTriage returns the manual reconciliation queue
func (s *PaymentService) ListTriage() ([]models.Booking, error) {
	return s.bookingRepo.ListTriage()
}

func (s *PaymentService) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// appendTransitions writes one audit row per status axis that changed
func (s *PaymentService) appendTransitions(tx *sqlx.Tx, booking *models.Booking, prevSeat models.SeatStatus, prevPay models.PaymentStatus, note *string) error {
	if booking.SeatStatus != prevSeat {
		if err := s.bookingRepo.AppendHistory(tx, &models.BookingHistory{
			BookingID:  booking.ID,
			Field:      "seat_status",
			FromStatus: string(prevSeat),
			ToStatus:   string(booking.SeatStatus),
			Note:       note,
		}); err != nil {
			return err
		}
	}
	if booking.PaymentStatus != prevPay {
		if err := s.bookingRepo.AppendHistory(tx, &models.BookingHistory{
			BookingID:  booking.ID,
			Field:      "payment_status",
			FromStatus: string(prevPay),
			ToStatus:   string(booking.PaymentStatus),
			Note:       note,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *PaymentService) notify(booking *models.Booking, fn func(*models.Customer)) {
	customer, err := s.customerRepo.GetByID(booking.CustomerID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Warn("Could not load customer for notification")
		return
	}
	fn(customer)
}
