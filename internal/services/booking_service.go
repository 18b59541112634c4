package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/database"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

// BookingService runs the booking engine. Creation locks the instance row
// for the whole transaction, so capacity checks and the seat counter can
// never race.
type BookingService struct {
	db           database.DB
	tourRepo     *database.TourRepository
	instanceRepo *database.InstanceRepository
	customerRepo *database.CustomerRepository
	bookingRepo  *database.BookingRepository
	pricing      *PricingService
	availability *AvailabilityService
	processor    PaymentProcessor
	currency     string
	logger       *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	db database.DB,
	tourRepo *database.TourRepository,
	instanceRepo *database.InstanceRepository,
	customerRepo *database.CustomerRepository,
	bookingRepo *database.BookingRepository,
	pricing *PricingService,
	availability *AvailabilityService,
	processor PaymentProcessor,
	currency string,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		db:           db,
		tourRepo:     tourRepo,
		instanceRepo: instanceRepo,
		customerRepo: customerRepo,
		bookingRepo:  bookingRepo,
		pricing:      pricing,
		availability: availability,
		processor:    processor,
		currency:     currency,
		logger:       logger,
	}
}

// BookingResponse is returned to the client after a booking is created.
// ClientSecret lets the frontend complete the payment with the processor.
type BookingResponse struct {
	Booking      *models.Booking `json:"booking"`
	ClientSecret string          `json:"client_secret,omitempty"`
}

// BookingDetail is the full read model of one booking
type BookingDetail struct {
	Booking    *models.Booking         `json:"booking"`
	Customer   *models.Customer        `json:"customer"`
	Passengers []models.Passenger      `json:"passengers"`
	History    []models.BookingHistory `json:"history"`
}

// CreateBooking creates a customer booking against one slot. The slot's
// instance is materialized on demand and exclusively locked until commit.
// The payment intent is created first; its metadata is stamped with the
// booking ID after commit so webhooks can find their way back.
func (s *BookingService) CreateBooking(req *models.CreateBookingRequest) (*BookingResponse, error) {
	date, err := req.Validate()
	if err != nil {
		return nil, models.NewValidationError("%s", err.Error())
	}
	if len(req.TicketSelection) == 0 {
		return nil, models.NewValidationError("ticket_selection is required")
	}

	tour, err := s.tourRepo.GetByID(req.TourID)
	if err != nil {
		return nil, err
	}
	if !tour.IsActive {
		return nil, &models.NotFoundError{Resource: "tour", ID: req.TourID}
	}
	schedule, err := s.tourRepo.GetActiveSchedule(req.TourID)
	if err != nil {
		return nil, err
	}
	if err := s.availability.ValidateSlot(tour, schedule, date, req.Time); err != nil {
		return nil, err
	}

	seats, total, err := s.pricing.PriceSelection(req.TourID, date, req.Time, req.TicketSelection)
	if err != nil {
		return nil, err
	}
	if seats <= 0 {
		return nil, models.NewValidationError("selection occupies no seats")
	}
	if len(req.Passengers) > seats {
		return nil, models.NewValidationError("passenger manifest (%d) exceeds booked seats (%d)", len(req.Passengers), seats)
	}

	reference, err := s.bookingRepo.GenerateBookingReference()
	if err != nil {
		return nil, err
	}

	intent, err := s.processor.CreateIntent(total, s.currency, map[string]string{
		"booking_reference": reference,
	})
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		CustomerID:       "",
		BookingReference: reference,
		Seats:            seats,
		TotalAmount:      total,
		SeatStatus:       models.SeatStatusPending,
		PaymentStatus:    models.PaymentStatusPending,
		PaymentIntentID:  &intent.ID,
		Source:           models.BookingSourceWeb,
	}
	if err := s.persistBooking(booking, tour, date, req, seats); err != nil {
		return nil, err
	}

	// The intent was created before the booking existed; attach the real
	// ID now. Webhooks fall back to intent lookup if this write is lost.
	if err := s.processor.UpdateIntentMetadata(intent.ID, map[string]string{
		"booking_id":        booking.ID,
		"booking_reference": reference,
	}); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"intent_id":  intent.ID,
		}).Error("Failed to stamp booking ID on payment intent")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  reference,
		"seats":      seats,
		"total":      total,
	}).Info("Booking created")

	return &BookingResponse{Booking: booking, ClientSecret: intent.ClientSecret}, nil
}

// CreateManualBooking records an admin-entered booking. Payment happened
// outside the system, so no intent is created and the booking lands
// directly in confirmed/paid.
func (s *BookingService) CreateManualBooking(req *models.CreateBookingRequest) (*BookingResponse, error) {
	date, err := req.Validate()
	if err != nil {
		return nil, models.NewValidationError("%s", err.Error())
	}

	tour, err := s.tourRepo.GetByID(req.TourID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.tourRepo.GetActiveSchedule(req.TourID)
	if err != nil {
		return nil, err
	}
	if err := s.availability.ValidateSlot(tour, schedule, date, req.Time); err != nil {
		return nil, err
	}

	seats := req.Seats
	total := 0.0
	if len(req.TicketSelection) > 0 {
		seats, total, err = s.pricing.PriceSelection(req.TourID, date, req.Time, req.TicketSelection)
		if err != nil {
			return nil, err
		}
	}
	if seats <= 0 {
		return nil, models.NewValidationError("seats must be greater than 0")
	}
	if len(req.Passengers) > seats {
		return nil, models.NewValidationError("passenger manifest (%d) exceeds booked seats (%d)", len(req.Passengers), seats)
	}

	reference, err := s.bookingRepo.GenerateBookingReference()
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		BookingReference: reference,
		Seats:            seats,
		TotalAmount:      total,
		SeatStatus:       models.SeatStatusConfirmed,
		PaymentStatus:    models.PaymentStatusPaid,
		Source:           models.BookingSourceAdmin,
	}
	if err := s.persistBooking(booking, tour, date, req, seats); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  reference,
		"seats":      seats,
	}).Info("Manual booking created")

	return &BookingResponse{Booking: booking}, nil
}

// persistBooking runs the transactional core shared by web and manual
// bookings: customer upsert, instance materialization under lock, capacity
// check, booking insert, seat counting and audit rows.
func (s *BookingService) persistBooking(booking *models.Booking, tour *models.Tour, date time.Time, req *models.CreateBookingRequest, seats int) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	customer, err := s.customerRepo.Upsert(tx, &req.Customer)
	if err != nil {
		return err
	}
	booking.CustomerID = customer.ID

	instance, err := s.instanceRepo.FindOrCreate(tx, tour, date, req.Time)
	if err != nil {
		return err
	}
	if instance.Status != models.InstanceStatusScheduled {
		return models.NewConflictError("slot %s is %s", models.SlotKey(date, req.Time), instance.Status)
	}
	if !instance.IsBookable(seats) {
		return &models.CapacityError{Requested: seats, Available: instance.AvailableSeats()}
	}
	booking.InstanceID = instance.ID

	if err := s.bookingRepo.Create(tx, booking); err != nil {
		return err
	}
	if err := s.instanceRepo.AddBookedSeats(tx, instance.ID, seats); err != nil {
		return err
	}
	if err := s.bookingRepo.InsertPassengers(tx, booking.ID, req.Passengers); err != nil {
		return err
	}
	if err := s.bookingRepo.AppendHistory(tx, &models.BookingHistory{
		BookingID:  booking.ID,
		Field:      "seat_status",
		FromStatus: "",
		ToStatus:   string(booking.SeatStatus),
	}); err != nil {
		return err
	}
	if err := s.bookingRepo.AppendHistory(tx, &models.BookingHistory{
		BookingID:  booking.ID,
		Field:      "payment_status",
		FromStatus: "",
		ToStatus:   string(booking.PaymentStatus),
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// GetBookingByReference returns one booking with its manifest and history
func (s *BookingService) GetBookingByReference(reference string) (*BookingDetail, error) {
	booking, err := s.bookingRepo.GetByReference(reference)
	if err != nil {
		return nil, err
	}
	return s.detail(booking)
}

// GetBookingByID returns one booking with its manifest and history
func (s *BookingService) GetBookingByID(bookingID string) (*BookingDetail, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	return s.detail(booking)
}

// ListBookingsForInstance returns every booking of one instance, for the
// operator manifest view
func (s *BookingService) ListBookingsForInstance(instanceID string) ([]models.Booking, error) {
	if _, err := s.instanceRepo.GetByID(instanceID); err != nil {
		return nil, err
	}
	return s.bookingRepo.ListByInstance(instanceID)
}

func (s *BookingService) detail(booking *models.Booking) (*BookingDetail, error) {
	customer, err := s.customerRepo.GetByID(booking.CustomerID)
	if err != nil {
		return nil, err
	}
	passengers, err := s.bookingRepo.GetPassengers(booking.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.bookingRepo.GetHistory(booking.ID)
	if err != nil {
		return nil, err
	}
	return &BookingDetail{
		Booking:    booking,
		Customer:   customer,
		Passengers: passengers,
		History:    history,
	}, nil
}
