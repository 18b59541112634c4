package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/islandtours/tour-booking-backend/internal/models"
)

const bookingColumns = `id, instance_id, customer_id, booking_reference, seats,
	   total_amount, seat_status, payment_status, payment_intent_id,
	   cancellation_reason, refund_amount, source, created_at, updated_at`

// BookingRepository handles booking database operations
type BookingRepository struct {
	db                DB
	referenceAttempts int
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB, referenceAttempts int) *BookingRepository {
	if referenceAttempts <= 0 {
		referenceAttempts = 5
	}
	return &BookingRepository{db: db, referenceAttempts: referenceAttempts}
}

// GenerateBookingReference generates a unique 8-character uppercase hex
// booking reference. Collisions retry up to the configured attempt limit,
// then surface as a conflict.
func (r *BookingRepository) GenerateBookingReference() (string, error) {
	for attempts := 0; attempts < r.referenceAttempts; attempts++ {
		randomBytes := make([]byte, 4)
		if _, err := rand.Read(randomBytes); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		newRef := strings.ToUpper(hex.EncodeToString(randomBytes))

		var count int
		err := r.db.Get(&count, `SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`, newRef)
		if err != nil {
			return "", fmt.Errorf("failed to check reference uniqueness: %w", err)
		}

		if count == 0 {
			return newRef, nil
		}
	}

	return "", models.NewConflictError("failed to generate unique booking reference after %d attempts", r.referenceAttempts)
}

// Create inserts a booking inside the caller's transaction. The reference
// must already be set; see GenerateBookingReference.
func (r *BookingRepository) Create(tx *sqlx.Tx, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}

	query := `
		INSERT INTO bookings (
			id, instance_id, customer_id, booking_reference, seats,
			total_amount, seat_status, payment_status, payment_intent_id,
			cancellation_reason, refund_amount, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowx(
		query,
		booking.ID, booking.InstanceID, booking.CustomerID, booking.BookingReference,
		booking.Seats, booking.TotalAmount, booking.SeatStatus, booking.PaymentStatus,
		booking.PaymentIntentID, booking.CancellationReason, booking.RefundAmount, booking.Source,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// InsertPassengers inserts the booking's manifest rows inside the caller's
// transaction
func (r *BookingRepository) InsertPassengers(tx *sqlx.Tx, bookingID string, passengers []models.PassengerInput) error {
	for _, p := range passengers {
		if _, err := tx.Exec(
			`INSERT INTO booking_passengers (id, booking_id, full_name, age) VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), bookingID, p.FullName, p.Age,
		); err != nil {
			return fmt.Errorf("failed to insert passenger: %w", err)
		}
	}
	return nil
}

// AppendHistory writes one audit row inside the caller's transaction
func (r *BookingRepository) AppendHistory(tx *sqlx.Tx, h *models.BookingHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}

	_, err := tx.Exec(
		`INSERT INTO booking_history (id, booking_id, field, from_status, to_status, note)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, h.BookingID, h.Field, h.FromStatus, h.ToStatus, h.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to append booking history: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(bookingID string) (*models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE id = $1
	`

	var booking models.Booking
	err := r.db.Get(&booking, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "booking", ID: bookingID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// LockByID retrieves a booking by ID with an exclusive row lock held until
// the caller's transaction ends
func (r *BookingRepository) LockByID(tx *sqlx.Tx, bookingID string) (*models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`

	var booking models.Booking
	err := tx.Get(&booking, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "booking", ID: bookingID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	return &booking, nil
}

// GetByPaymentIntentID retrieves a booking by the processor intent attached
// to it. Fallback correlation for webhooks whose metadata lacks a booking ID.
func (r *BookingRepository) GetByPaymentIntentID(intentID string) (*models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE payment_intent_id = $1
	`

	var booking models.Booking
	err := r.db.Get(&booking, query, intentID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "booking", ID: intentID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetByReference retrieves a booking by its reference
func (r *BookingRepository) GetByReference(reference string) (*models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE booking_reference = $1
	`

	var booking models.Booking
	err := r.db.Get(&booking, query, reference)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "booking", ID: reference}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetPassengers retrieves the manifest rows of a booking
func (r *BookingRepository) GetPassengers(bookingID string) ([]models.Passenger, error) {
	query := `
		SELECT id, booking_id, full_name, age, created_at
		FROM booking_passengers
		WHERE booking_id = $1
		ORDER BY created_at
	`

	var passengers []models.Passenger
	if err := r.db.Select(&passengers, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get passengers: %w", err)
	}
	return passengers, nil
}

// GetHistory retrieves the audit trail of a booking, oldest first
func (r *BookingRepository) GetHistory(bookingID string) ([]models.BookingHistory, error) {
	query := `
		SELECT id, booking_id, field, from_status, to_status, note, created_at
		FROM booking_history
		WHERE booking_id = $1
		ORDER BY created_at
	`

	var history []models.BookingHistory
	if err := r.db.Select(&history, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get booking history: %w", err)
	}
	return history, nil
}

// ListByInstance retrieves all bookings of an instance, newest first
func (r *BookingRepository) ListByInstance(instanceID string) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE instance_id = $1
		ORDER BY created_at DESC
	`

	var bookings []models.Booking
	if err := r.db.Select(&bookings, query, instanceID); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// LockActiveByInstance retrieves the bookings of an instance whose seats
// are still counted, locked inside the caller's transaction. Used by bulk
// instance cancellation.
func (r *BookingRepository) LockActiveByInstance(tx *sqlx.Tx, instanceID string) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE instance_id = $1 AND seat_status IN ('pending', 'confirmed')
		ORDER BY created_at
		FOR UPDATE
	`

	var bookings []models.Booking
	if err := tx.Select(&bookings, query, instanceID); err != nil {
		return nil, fmt.Errorf("failed to lock instance bookings: %w", err)
	}
	return bookings, nil
}

// UpdateStatuses persists the booking's status axes and related fields
// inside the caller's transaction. Transition methods on the model decide
// the values; this only writes them.
func (r *BookingRepository) UpdateStatuses(tx *sqlx.Tx, booking *models.Booking) error {
	query := `
		UPDATE bookings
		SET seat_status = $2, payment_status = $3, cancellation_reason = $4,
			refund_amount = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := tx.QueryRowx(
		query,
		booking.ID, booking.SeatStatus, booking.PaymentStatus,
		booking.CancellationReason, booking.RefundAmount,
	).Scan(&booking.UpdatedAt)
	if err == sql.ErrNoRows {
		return &models.NotFoundError{Resource: "booking", ID: booking.ID}
	}
	if err != nil {
		return fmt.Errorf("failed to update booking statuses: %w", err)
	}
	return nil
}

// ListTriage retrieves the manual reconciliation queue: bookings whose
// refund failed after seats were released. A successful retry moves the
// payment status on and drops the booking from this list.
func (r *BookingRepository) ListTriage() ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE seat_status = 'triage' AND payment_status = 'refund_failed'
		ORDER BY updated_at
	`

	var bookings []models.Booking
	if err := r.db.Select(&bookings, query); err != nil {
		return nil, fmt.Errorf("failed to list triage bookings: %w", err)
	}
	return bookings, nil
}
