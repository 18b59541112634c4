package models

import (
	"fmt"
	"time"
)

// InstanceStatus represents the status of a tour instance
type InstanceStatus string

const (
	InstanceStatusScheduled InstanceStatus = "scheduled"
	InstanceStatusCancelled InstanceStatus = "cancelled"
	InstanceStatusCompleted InstanceStatus = "completed"
)

// TourInstance is a concrete occurrence of a tour at one date and time,
// materialized on first reference. Instances are never deleted, only
// marked cancelled or completed.
type TourInstance struct {
	ID           string         `json:"id" db:"id"`
	TourID       string         `json:"tour_id" db:"tour_id"`
	InstanceDate time.Time      `json:"instance_date" db:"instance_date"`
	StartTime    string         `json:"start_time" db:"start_time"` // HH:MM
	Capacity     int            `json:"capacity" db:"capacity"`
	BookedSeats  int            `json:"booked_seats" db:"booked_seats"`
	Status       InstanceStatus `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// AvailableSeats returns the number of seats still bookable
func (i *TourInstance) AvailableSeats() int {
	return i.Capacity - i.BookedSeats
}

// IsBookable reports whether the instance can accept the requested seats
func (i *TourInstance) IsBookable(seats int) bool {
	return i.Status == InstanceStatusScheduled && i.AvailableSeats() >= seats
}

// DepartureAt combines the instance date and start time into a timestamp
func (i *TourInstance) DepartureAt() time.Time {
	t, err := time.Parse("15:04", i.StartTime)
	if err != nil {
		return truncateToDate(i.InstanceDate)
	}
	d := i.InstanceDate
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

// AvailableSlot is one bookable (date, time) emitted by the availability
// calculator. Virtual slots carry an empty InstanceID until materialized.
type AvailableSlot struct {
	TourID         string    `json:"tour_id"`
	InstanceID     string    `json:"instance_id,omitempty"`
	Date           time.Time `json:"date"`
	Time           string    `json:"time"`
	Capacity       int       `json:"capacity"`
	BookedSeats    int       `json:"booked_seats"`
	AvailableSeats int       `json:"available_seats"`
}

// SlotKey builds the (date, time) lookup key used to overlay instance
// exceptions on the virtual schedule
func SlotKey(date time.Time, startTime string) string {
	return fmt.Sprintf("%s %s", date.Format("2006-01-02"), startTime)
}
