package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/islandtours/tour-booking-backend/internal/database"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

func newMockDB(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &database.PostgresDB{DB: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakeProcessor struct {
	intents        []*PaymentIntent
	refundRequests []float64
	refundErr      error
	metadataCalls  int
}

func (p *fakeProcessor) CreateIntent(amount float64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	intent := &PaymentIntent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Amount:       amount,
		Currency:     currency,
		Metadata:     metadata,
	}
	p.intents = append(p.intents, intent)
	return intent, nil
}

func (p *fakeProcessor) UpdateIntentMetadata(intentID string, metadata map[string]string) error {
	p.metadataCalls++
	return nil
}

func (p *fakeProcessor) CreateRefund(intentID string, amount float64) (*Refund, error) {
	if p.refundErr != nil {
		return nil, p.refundErr
	}
	p.refundRequests = append(p.refundRequests, amount)
	return &Refund{ID: "re_test", Status: "pending", Amount: amount}, nil
}

type fakeNotifier struct {
	confirmed []string
	cancelled []string
	refunded  []string
}

func (n *fakeNotifier) BookingConfirmed(b *models.Booking, c *models.Customer) {
	n.confirmed = append(n.confirmed, b.ID)
}

func (n *fakeNotifier) BookingCancelled(b *models.Booking, c *models.Customer, reason string) {
	n.cancelled = append(n.cancelled, b.ID)
}

func (n *fakeNotifier) RefundProcessed(b *models.Booking, c *models.Customer) {
	n.refunded = append(n.refunded, b.ID)
}

func newPaymentService(db *database.PostgresDB, processor PaymentProcessor, notifier Notifier) *PaymentService {
	return NewPaymentService(
		db,
		database.NewBookingRepository(db, 5),
		database.NewInstanceRepository(db),
		database.NewCustomerRepository(db),
		processor,
		notifier,
		testLogger(),
	)
}

var bookingCols = []string{
	"id", "instance_id", "customer_id", "booking_reference", "seats",
	"total_amount", "seat_status", "payment_status", "payment_intent_id",
	"cancellation_reason", "refund_amount", "source", "created_at", "updated_at",
}

func bookingRow(seatStatus, paymentStatus string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bookingCols).AddRow(
		"b-1", "inst-1", "cust-1", "A1B2C3D4", 2,
		150.0, seatStatus, paymentStatus, "pi_test",
		nil, nil, "web", now, now,
	)
}

func instanceRow(booked int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "tour_id", "instance_date", "start_time", "capacity",
		"booked_seats", "status", "created_at", "updated_at",
	}).AddRow("inst-1", "tour-1", now, "09:00", 20, booked, "scheduled", now, now)
}

func customerRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "name", "phone", "created_at", "updated_at"}).
		AddRow("cust-1", "jo@example.com", "Jo", nil, now, now)
}

func succeededEvent() *models.WebhookEvent {
	return &models.WebhookEvent{
		ID:   "evt-1",
		Type: models.EventPaymentSucceeded,
		Data: models.WebhookEventData{Object: models.WebhookObject{
			ID:       "pi_test",
			Metadata: map[string]string{"booking_id": "b-1"},
		}},
	}
}

func TestHandleWebhookPaymentSucceeded(t *testing.T) {
	db, mock := newMockDB(t)
	notifier := &fakeNotifier{}
	service := newPaymentService(db, &fakeProcessor{}, notifier)

	// correlation read
	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WithArgs("b-1").
		WillReturnRows(bookingRow("pending", "pending"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings(.+)FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(bookingRow("pending", "pending"))
	mock.ExpectQuery("UPDATE bookings").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// notification customer lookup
	mock.ExpectQuery("SELECT (.+) FROM customers").
		WithArgs("cust-1").
		WillReturnRows(customerRow())

	err := service.HandleWebhookEvent(succeededEvent())
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1"}, notifier.confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhookStaleEventIsSwallowed(t *testing.T) {
	db, mock := newMockDB(t)
	notifier := &fakeNotifier{}
	service := newPaymentService(db, &fakeProcessor{}, notifier)

	// Booking already confirmed: a replayed success event must not change
	// anything or error out.
	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WithArgs("b-1").
		WillReturnRows(bookingRow("confirmed", "paid"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings(.+)FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(bookingRow("confirmed", "paid"))
	mock.ExpectRollback()

	err := service.HandleWebhookEvent(succeededEvent())
	require.NoError(t, err)
	assert.Empty(t, notifier.confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhookPaymentFailedReleasesSeats(t *testing.T) {
	db, mock := newMockDB(t)
	notifier := &fakeNotifier{}
	service := newPaymentService(db, &fakeProcessor{}, notifier)

	reason := "card declined"
	event := &models.WebhookEvent{
		ID:   "evt-2",
		Type: models.EventPaymentFailed,
		Data: models.WebhookEventData{Object: models.WebhookObject{
			ID:            "pi_test",
			FailureReason: &reason,
			Metadata:      map[string]string{"booking_id": "b-1"},
		}},
	}

	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WithArgs("b-1").
		WillReturnRows(bookingRow("pending", "pending"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings(.+)FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(bookingRow("pending", "pending"))
	mock.ExpectQuery("SELECT (.+) FROM tour_instances(.+)FOR UPDATE").
		WithArgs("inst-1").
		WillReturnRows(instanceRow(2))
	mock.ExpectExec("UPDATE tour_instances").
		WithArgs("inst-1", -2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE bookings").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT (.+) FROM customers").
		WithArgs("cust-1").
		WillReturnRows(customerRow())

	err := service.HandleWebhookEvent(event)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1"}, notifier.cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessRefundProcessorFailureLeavesStateUntouched(t *testing.T) {
	db, mock := newMockDB(t)
	processor := &fakeProcessor{refundErr: &models.ExternalServiceError{
		Service: "payment processor",
		Err:     errors.New("timeout"),
	}}
	service := newPaymentService(db, processor, &fakeNotifier{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings(.+)FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(bookingRow("confirmed", "paid"))
	mock.ExpectQuery("SELECT (.+) FROM tour_instances(.+)FOR UPDATE").
		WithArgs("inst-1").
		WillReturnRows(instanceRow(2))
	mock.ExpectExec("UPDATE tour_instances").
		WithArgs("inst-1", -2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE bookings").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// processor rejects the refund request, so the transaction rolls back
	mock.ExpectRollback()

	_, err := service.ProcessRefund("b-1", &models.ProcessRefundRequest{})
	require.Error(t, err)
	var extErr *models.ExternalServiceError
	assert.ErrorAs(t, err, &extErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessRefundDefaultsToBookingTotal(t *testing.T) {
	db, mock := newMockDB(t)
	processor := &fakeProcessor{}
	service := newPaymentService(db, processor, &fakeNotifier{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings(.+)FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(bookingRow("confirmed", "paid"))
	mock.ExpectQuery("SELECT (.+) FROM tour_instances(.+)FOR UPDATE").
		WithArgs("inst-1").
		WillReturnRows(instanceRow(2))
	mock.ExpectExec("UPDATE tour_instances").
		WithArgs("inst-1", -2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE bookings").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking, err := service.ProcessRefund("b-1", &models.ProcessRefundRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefundPending, booking.PaymentStatus)
	assert.Equal(t, models.SeatStatusCancelled, booking.SeatStatus)
	assert.Equal(t, []float64{150}, processor.refundRequests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessRefundAmountAboveTotal(t *testing.T) {
	db, mock := newMockDB(t)
	service := newPaymentService(db, &fakeProcessor{}, &fakeNotifier{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings(.+)FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(bookingRow("confirmed", "paid"))
	mock.ExpectRollback()

	amount := 999.0
	_, err := service.ProcessRefund("b-1", &models.ProcessRefundRequest{Amount: &amount})
	assert.IsType(t, &models.ValidationError{}, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryRefund(t *testing.T) {
	db, mock := newMockDB(t)
	processor := &fakeProcessor{}
	service := newPaymentService(db, processor, &fakeNotifier{})

	now := time.Now()
	triaged := sqlmock.NewRows(bookingCols).AddRow(
		"b-1", "inst-1", "cust-1", "A1B2C3D4", 2,
		150.0, "triage", "refund_failed", "pi_test",
		nil, 150.0, "web", now, now,
	)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings(.+)FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(triaged)
	mock.ExpectQuery("UPDATE bookings").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectExec("INSERT INTO booking_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking, err := service.RetryRefund("b-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefundPending, booking.PaymentStatus)
	// Seats stay released; only the money axis moved
	assert.Equal(t, models.SeatStatusTriage, booking.SeatStatus)
	assert.Equal(t, []float64{150}, processor.refundRequests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhookUnknownTypeIgnored(t *testing.T) {
	db, mock := newMockDB(t)
	service := newPaymentService(db, &fakeProcessor{}, &fakeNotifier{})

	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WithArgs("b-1").
		WillReturnRows(bookingRow("pending", "pending"))

	event := succeededEvent()
	event.Type = "payment_intent.created"
	err := service.HandleWebhookEvent(event)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
