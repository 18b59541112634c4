package database

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/islandtours/tour-booking-backend/internal/models"
)

func TestGenerateBookingReference(t *testing.T) {
	t.Run("Success First Try", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db, 5)

		mock.ExpectQuery("SELECT COUNT").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		ref, err := repo.GenerateBookingReference()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{8}$`), ref)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Collision Then Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db, 5)

		mock.ExpectQuery("SELECT COUNT").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT COUNT").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		ref, err := repo.GenerateBookingReference()
		require.NoError(t, err)
		assert.Len(t, ref, 8)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Exhaustion", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db, 3)

		for i := 0; i < 3; i++ {
			mock.ExpectQuery("SELECT COUNT").
				WithArgs(sqlmock.AnyArg()).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		}

		ref, err := repo.GenerateBookingReference()
		assert.Empty(t, ref)
		assert.IsType(t, &models.ConflictError{}, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateBooking(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db, 5)

	booking := &models.Booking{
		InstanceID:       "inst-1",
		CustomerID:       "cust-1",
		BookingReference: "A1B2C3D4",
		Seats:            2,
		TotalAmount:      150,
		SeatStatus:       models.SeatStatusPending,
		PaymentStatus:    models.PaymentStatusPending,
		Source:           models.BookingSourceWeb,
	}

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(now, now))

	tx, err := db.Beginx()
	require.NoError(t, err)

	err = repo.Create(tx, booking)
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTriage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db, 5)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "instance_id", "customer_id", "booking_reference", "seats",
		"total_amount", "seat_status", "payment_status", "payment_intent_id",
		"cancellation_reason", "refund_amount", "source", "created_at", "updated_at",
	}).AddRow(
		"b-1", "inst-1", "cust-1", "A1B2C3D4", 2,
		150.0, "triage", "refund_failed", "pi_1",
		nil, 150.0, "web", now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WillReturnRows(rows)

	bookings, err := repo.ListTriage()
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.SeatStatusTriage, bookings[0].SeatStatus)
	assert.Equal(t, models.PaymentStatusRefundFailed, bookings[0].PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
