package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/database"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

// AvailabilityService computes bookable slots by overlaying materialized
// instances on the tour's virtual schedule. Slots with no instance row
// report the schedule's defaults; an instance row always wins.
type AvailabilityService struct {
	tourRepo     *database.TourRepository
	instanceRepo *database.InstanceRepository
	logger       *logrus.Logger
	now          func() time.Time
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(
	tourRepo *database.TourRepository,
	instanceRepo *database.InstanceRepository,
	logger *logrus.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		tourRepo:     tourRepo,
		instanceRepo: instanceRepo,
		logger:       logger,
		now:          time.Now,
	}
}

// GetAvailability returns the slots of a tour in [startDate, endDate] that
// can still seat seatsRequested people. The range is clamped to the tour's
// booking window; past dates never appear. A tour without an active
// schedule has no availability.
func (s *AvailabilityService) GetAvailability(tourID string, startDate, endDate time.Time, seatsRequested int) ([]models.AvailableSlot, error) {
	if seatsRequested <= 0 {
		return nil, models.NewValidationError("seats must be greater than 0")
	}

	tour, err := s.tourRepo.GetByID(tourID)
	if err != nil {
		return nil, err
	}
	if !tour.IsActive {
		return nil, &models.NotFoundError{Resource: "tour", ID: tourID}
	}

	today := truncate(s.now())
	windowEnd := tour.BookingWindowEnd(today)
	if startDate.Before(today) {
		startDate = today
	}
	if endDate.After(windowEnd) {
		endDate = windowEnd
	}
	if endDate.Before(startDate) {
		return []models.AvailableSlot{}, nil
	}

	schedule, err := s.tourRepo.GetActiveSchedule(tourID)
	if err != nil {
		if _, ok := err.(*models.NotFoundError); ok {
			s.logger.WithField("tour_id", tourID).Warn("Tour has no active schedule, availability is empty")
			return []models.AvailableSlot{}, nil
		}
		return nil, err
	}

	instances, err := s.instanceRepo.GetByTourAndRange(tourID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*models.TourInstance, len(instances))
	for i := range instances {
		byKey[models.SlotKey(instances[i].InstanceDate, instances[i].StartTime)] = &instances[i]
	}

	slots := []models.AvailableSlot{}
	for date := startDate; !date.After(endDate); date = date.AddDate(0, 0, 1) {
		if !schedule.IsScheduledOn(date) {
			continue
		}
		for _, startTime := range schedule.Times {
			if instance, ok := byKey[models.SlotKey(date, startTime)]; ok {
				if instance.Status != models.InstanceStatusScheduled {
					continue
				}
				if instance.AvailableSeats() < seatsRequested {
					continue
				}
				slots = append(slots, models.AvailableSlot{
					TourID:         tourID,
					InstanceID:     instance.ID,
					Date:           date,
					Time:           startTime,
					Capacity:       instance.Capacity,
					BookedSeats:    instance.BookedSeats,
					AvailableSeats: instance.AvailableSeats(),
				})
				continue
			}
			if tour.DefaultCapacity < seatsRequested {
				continue
			}
			slots = append(slots, models.AvailableSlot{
				TourID:         tourID,
				Date:           date,
				Time:           startTime,
				Capacity:       tour.DefaultCapacity,
				BookedSeats:    0,
				AvailableSeats: tour.DefaultCapacity,
			})
		}
	}

	return slots, nil
}

// ValidateSlot checks that (date, time) is a bookable slot of the tour's
// active schedule and inside the booking window
func (s *AvailabilityService) ValidateSlot(tour *models.Tour, schedule *models.Schedule, date time.Time, startTime string) error {
	today := truncate(s.now())
	if date.Before(today) {
		return models.NewValidationError("date %s is in the past", date.Format("2006-01-02"))
	}
	if date.After(tour.BookingWindowEnd(today)) {
		return models.NewValidationError("date %s is beyond the booking window (%d days)",
			date.Format("2006-01-02"), tour.BookingWindowDays)
	}
	if !schedule.IsScheduledOn(date) {
		return models.NewValidationError("tour does not run on %s", date.Format("2006-01-02"))
	}
	if !schedule.HasTime(startTime) {
		return models.NewValidationError("%s is not a departure time of this tour", startTime)
	}
	return nil
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
