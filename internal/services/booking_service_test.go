package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/islandtours/tour-booking-backend/internal/database"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

func newBookingService(db *database.PostgresDB, processor PaymentProcessor) *BookingService {
	tourRepo := database.NewTourRepository(db, db.DB)
	instanceRepo := database.NewInstanceRepository(db)
	availability := NewAvailabilityService(tourRepo, instanceRepo, testLogger())
	availability.now = func() time.Time {
		return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	}
	return NewBookingService(
		db,
		tourRepo,
		instanceRepo,
		database.NewCustomerRepository(db),
		database.NewBookingRepository(db, 5),
		newPricingService(db),
		availability,
		processor,
		"USD",
		testLogger(),
	)
}

func bookingRequest() *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		TourID: "tour-1",
		Date:   "2026-09-02",
		Time:   "09:00",
		Customer: models.CustomerInput{
			Email: "jo@example.com",
			Name:  "Jo",
		},
		TicketSelection: []models.TicketSelection{
			{TicketID: "tk-adult", Quantity: 2},
		},
	}
}

// expectPreamble covers the reads every booking attempt makes before the
// transaction opens: tour, schedule, price resolution and the reference
// uniqueness probe.
func expectPreamble(mock sqlmock.Sqlmock, slotDate time.Time) {
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM tours").
		WithArgs("tour-1").
		WillReturnRows(tourRows().AddRow(
			"tour-1", "Reef Snorkel", nil, 20, 180, 30, true, now, now,
		))
	mock.ExpectQuery("SELECT (.+) FROM schedules").
		WithArgs("tour-1").
		WillReturnRows(scheduleRows().AddRow(
			"sched-1", "tour-1", []byte("{3}"), []byte("{09:00,14:00}"), nil, true, now, now,
		))
	mock.ExpectQuery("SELECT (.+) FROM pricing_rules").
		WithArgs("tour-1").
		WillReturnRows(ruleRows().AddRow("r-1", "tour-1", "tk-adult", 50.0, now, now))
	mock.ExpectQuery("SELECT (.+) FROM tour_instances").
		WithArgs("tour-1", slotDate, "09:00").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT (.+) FROM tickets").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(ticketRows().AddRow("tk-adult", "Adult", "atomic", true, now, now))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
}

func TestCreateBookingSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	processor := &fakeProcessor{}
	service := newBookingService(db, processor)

	slotDate := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	expectPreamble(mock, slotDate)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WithArgs(sqlmock.AnyArg(), "jo@example.com", "Jo", nil).
		WillReturnRows(customerRow())
	mock.ExpectExec("INSERT INTO tour_instances").
		WithArgs(sqlmock.AnyArg(), "tour-1", slotDate, "09:00", 20).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM tour_instances(.+)FOR UPDATE").
		WithArgs("tour-1", slotDate, "09:00").
		WillReturnRows(instanceRow(0))
	mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("UPDATE tour_instances").
		WithArgs("inst-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	response, err := service.CreateBooking(bookingRequest())
	require.NoError(t, err)
	assert.Equal(t, "pi_test_secret", response.ClientSecret)
	assert.Equal(t, models.SeatStatusPending, response.Booking.SeatStatus)
	assert.Equal(t, models.PaymentStatusPending, response.Booking.PaymentStatus)
	assert.Equal(t, 2, response.Booking.Seats)
	assert.Equal(t, 100.0, response.Booking.TotalAmount)
	// Booking ID stamped onto the intent after commit
	assert.Equal(t, 1, processor.metadataCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingCapacityExceeded(t *testing.T) {
	db, mock := newMockDB(t)
	service := newBookingService(db, &fakeProcessor{})

	slotDate := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	expectPreamble(mock, slotDate)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WithArgs(sqlmock.AnyArg(), "jo@example.com", "Jo", nil).
		WillReturnRows(customerRow())
	mock.ExpectExec("INSERT INTO tour_instances").
		WithArgs(sqlmock.AnyArg(), "tour-1", slotDate, "09:00", 20).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM tour_instances(.+)FOR UPDATE").
		WithArgs("tour-1", slotDate, "09:00").
		WillReturnRows(instanceRow(19))
	mock.ExpectRollback()

	_, err := service.CreateBooking(bookingRequest())
	require.Error(t, err)

	capErr, ok := err.(*models.CapacityError)
	require.True(t, ok, "expected CapacityError, got %T", err)
	assert.Equal(t, 2, capErr.Requested)
	assert.Equal(t, 1, capErr.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingRejectsUnscheduledDay(t *testing.T) {
	db, mock := newMockDB(t)
	service := newBookingService(db, &fakeProcessor{})

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM tours").
		WithArgs("tour-1").
		WillReturnRows(tourRows().AddRow(
			"tour-1", "Reef Snorkel", nil, 20, 180, 30, true, now, now,
		))
	mock.ExpectQuery("SELECT (.+) FROM schedules").
		WithArgs("tour-1").
		WillReturnRows(scheduleRows().AddRow(
			"sched-1", "tour-1", []byte("{3}"), []byte("{09:00}"), nil, true, now, now,
		))

	req := bookingRequest()
	req.Date = "2026-09-03" // Thursday, schedule runs Wednesdays only

	_, err := service.CreateBooking(req)
	assert.IsType(t, &models.ValidationError{}, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingRequiresSelection(t *testing.T) {
	db, _ := newMockDB(t)
	service := newBookingService(db, &fakeProcessor{})

	req := bookingRequest()
	req.TicketSelection = nil
	req.Seats = 2

	_, err := service.CreateBooking(req)
	assert.IsType(t, &models.ValidationError{}, err)
}

func TestCreateManualBookingSeatsOnly(t *testing.T) {
	db, mock := newMockDB(t)
	processor := &fakeProcessor{}
	service := newBookingService(db, processor)

	slotDate := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM tours").
		WithArgs("tour-1").
		WillReturnRows(tourRows().AddRow(
			"tour-1", "Reef Snorkel", nil, 20, 180, 30, true, now, now,
		))
	mock.ExpectQuery("SELECT (.+) FROM schedules").
		WithArgs("tour-1").
		WillReturnRows(scheduleRows().AddRow(
			"sched-1", "tour-1", []byte("{3}"), []byte("{09:00,14:00}"), nil, true, now, now,
		))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WithArgs(sqlmock.AnyArg(), "jo@example.com", "Jo", nil).
		WillReturnRows(customerRow())
	mock.ExpectExec("INSERT INTO tour_instances").
		WithArgs(sqlmock.AnyArg(), "tour-1", slotDate, "09:00", 20).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM tour_instances(.+)FOR UPDATE").
		WithArgs("tour-1", slotDate, "09:00").
		WillReturnRows(instanceRow(0))
	mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("UPDATE tour_instances").
		WithArgs("inst-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	req := bookingRequest()
	req.TicketSelection = nil
	req.Seats = 2

	response, err := service.CreateManualBooking(req)
	require.NoError(t, err)
	assert.Equal(t, models.SeatStatusConfirmed, response.Booking.SeatStatus)
	assert.Equal(t, models.PaymentStatusPaid, response.Booking.PaymentStatus)
	assert.Equal(t, models.BookingSourceAdmin, response.Booking.Source)
	assert.Empty(t, response.ClientSecret)
	// No processor interaction for offline payments
	assert.Empty(t, processor.intents)
	assert.NoError(t, mock.ExpectationsWereMet())
}
