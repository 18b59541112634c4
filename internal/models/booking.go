package models

import (
	"errors"
	"time"
)

// SeatStatus tracks the inventory axis of a booking
type SeatStatus string

const (
	SeatStatusPending   SeatStatus = "pending"
	SeatStatusConfirmed SeatStatus = "confirmed"
	SeatStatusCancelled SeatStatus = "cancelled"
	// SeatStatusTriage marks bookings whose money and inventory state
	// disagree (refund failed after seats were released) and need manual
	// reconciliation.
	SeatStatusTriage SeatStatus = "triage"
)

// PaymentStatus tracks the money axis of a booking
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusFailed        PaymentStatus = "failed"
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
	PaymentStatusRefundSuccess PaymentStatus = "refund_success"
	PaymentStatusRefundFailed  PaymentStatus = "refund_failed"
)

// BookingSource records where the booking originated
type BookingSource string

const (
	BookingSourceWeb   BookingSource = "web"
	BookingSourceAdmin BookingSource = "admin"
)

// Booking references one instance and one customer. Seat and payment
// status are independent axes; only the transition methods below may
// move them.
type Booking struct {
	ID                 string        `json:"id" db:"id"`
	InstanceID         string        `json:"instance_id" db:"instance_id"`
	CustomerID         string        `json:"customer_id" db:"customer_id"`
	BookingReference   string        `json:"booking_reference" db:"booking_reference"`
	Seats              int           `json:"seats" db:"seats"`
	TotalAmount        float64       `json:"total_amount" db:"total_amount"`
	SeatStatus         SeatStatus    `json:"seat_status" db:"seat_status"`
	PaymentStatus      PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentIntentID    *string       `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	CancellationReason *string       `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	RefundAmount       *float64      `json:"refund_amount,omitempty" db:"refund_amount"`
	Source             BookingSource `json:"source" db:"source"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// Passenger is one manifest row of a booking. Passenger count may be
// less than the booked seat count; a partial manifest is valid.
type Passenger struct {
	ID        string    `json:"id" db:"id"`
	BookingID string    `json:"booking_id" db:"booking_id"`
	FullName  string    `json:"full_name" db:"full_name"`
	Age       *int      `json:"age,omitempty" db:"age"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BookingHistory is the append-only audit trail of status transitions.
// One row is written per axis changed.
type BookingHistory struct {
	ID         string    `json:"id" db:"id"`
	BookingID  string    `json:"booking_id" db:"booking_id"`
	Field      string    `json:"field" db:"field"` // seat_status or payment_status
	FromStatus string    `json:"from_status" db:"from_status"`
	ToStatus   string    `json:"to_status" db:"to_status"`
	Note       *string   `json:"note,omitempty" db:"note"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SeatsCounted reports whether the booking's seats are currently counted
// in the instance's booked_seats. Cancellation must decrement the counter
// exactly once, so release only happens from this state.
func (b *Booking) SeatsCounted() bool {
	return b.SeatStatus == SeatStatusPending || b.SeatStatus == SeatStatusConfirmed
}

// ConfirmPayment applies the "payment succeeded" webhook transition
func (b *Booking) ConfirmPayment() error {
	if b.SeatStatus != SeatStatusPending {
		return NewConflictError("booking %s is not pending (seat_status: %s)", b.BookingReference, b.SeatStatus)
	}
	b.SeatStatus = SeatStatusConfirmed
	b.PaymentStatus = PaymentStatusPaid
	return nil
}

// FailPayment applies the "payment failed" webhook transition
func (b *Booking) FailPayment(reason *string) error {
	if b.SeatStatus != SeatStatusPending {
		return NewConflictError("booking %s is not pending (seat_status: %s)", b.BookingReference, b.SeatStatus)
	}
	b.SeatStatus = SeatStatusCancelled
	b.PaymentStatus = PaymentStatusFailed
	b.CancellationReason = reason
	return nil
}

// Cancel cancels a booking that was never paid
func (b *Booking) Cancel(reason *string) error {
	if b.SeatStatus != SeatStatusPending && b.SeatStatus != SeatStatusConfirmed {
		return NewConflictError("booking %s cannot be cancelled (seat_status: %s)", b.BookingReference, b.SeatStatus)
	}
	b.SeatStatus = SeatStatusCancelled
	b.CancellationReason = reason
	return nil
}

// RequestRefund applies the admin refund transition. Seats are released
// optimistically, ahead of processor confirmation.
func (b *Booking) RequestRefund(amount float64, reason *string) error {
	if b.PaymentStatus != PaymentStatusPaid {
		return NewConflictError("booking %s is not paid (payment_status: %s)", b.BookingReference, b.PaymentStatus)
	}
	b.PaymentStatus = PaymentStatusRefundPending
	b.SeatStatus = SeatStatusCancelled
	b.RefundAmount = &amount
	b.CancellationReason = reason
	return nil
}

// RefundSucceeded applies the "refund succeeded" webhook transition
func (b *Booking) RefundSucceeded() error {
	if b.PaymentStatus != PaymentStatusRefundPending {
		return NewConflictError("booking %s has no refund in flight (payment_status: %s)", b.BookingReference, b.PaymentStatus)
	}
	b.PaymentStatus = PaymentStatusRefundSuccess
	return nil
}

// RefundFailed applies the "refund failed" webhook transition. The booking
// re-enters the admin triage queue; seats remain released.
func (b *Booking) RefundFailed() error {
	if b.PaymentStatus != PaymentStatusRefundPending {
		return NewConflictError("booking %s has no refund in flight (payment_status: %s)", b.BookingReference, b.PaymentStatus)
	}
	b.PaymentStatus = PaymentStatusRefundFailed
	b.SeatStatus = SeatStatusTriage
	return nil
}

// RetryRefund applies the admin retry transition after a failed refund
func (b *Booking) RetryRefund() error {
	if b.SeatStatus != SeatStatusTriage || b.PaymentStatus != PaymentStatusRefundFailed {
		return NewConflictError("booking %s is not awaiting refund retry (seat_status: %s, payment_status: %s)",
			b.BookingReference, b.SeatStatus, b.PaymentStatus)
	}
	b.PaymentStatus = PaymentStatusRefundPending
	return nil
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	TourID          string            `json:"tour_id" binding:"required"`
	Date            string            `json:"date" binding:"required"` // YYYY-MM-DD
	Time            string            `json:"time" binding:"required"` // HH:MM
	Seats           int               `json:"seats"`
	Customer        CustomerInput     `json:"customer" binding:"required"`
	TicketSelection []TicketSelection `json:"ticket_selection,omitempty"`
	Passengers      []PassengerInput  `json:"passengers,omitempty"`
}

// PassengerInput is one manifest row of a booking request
type PassengerInput struct {
	FullName string `json:"full_name" binding:"required"`
	Age      *int   `json:"age,omitempty"`
}

// Validate validates the create booking request and returns the parsed date
func (r *CreateBookingRequest) Validate() (time.Time, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return time.Time{}, errors.New("date must be in YYYY-MM-DD format")
	}
	if _, err := time.Parse("15:04", r.Time); err != nil {
		return time.Time{}, errors.New("time must be in HH:MM format")
	}
	if r.Seats <= 0 && len(r.TicketSelection) == 0 {
		return time.Time{}, errors.New("seats or ticket_selection is required")
	}
	if r.Seats < 0 {
		return time.Time{}, errors.New("seats cannot be negative")
	}
	for _, sel := range r.TicketSelection {
		if sel.Quantity <= 0 {
			return time.Time{}, errors.New("ticket quantities must be greater than 0")
		}
	}
	if err := r.Customer.Validate(); err != nil {
		return time.Time{}, err
	}
	return date, nil
}

// ProcessRefundRequest represents an admin refund request. Amount defaults
// to the booking total when omitted.
type ProcessRefundRequest struct {
	Amount *float64 `json:"amount,omitempty"`
	Reason *string  `json:"reason,omitempty"`
}

// CancelInstanceRequest represents a bulk instance cancellation
type CancelInstanceRequest struct {
	Reason string `json:"reason" binding:"required"`
}
