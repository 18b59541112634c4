package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// IntArray is a custom type for handling INTEGER[] arrays in PostgreSQL.
// lib/pq only scans array elements into int64, so both directions convert
// through pq.Int64Array.
type IntArray []int

// Value implements the driver.Valuer interface
func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	arr := make(pq.Int64Array, len(a))
	for i, v := range a {
		arr[i] = int64(v)
	}
	return arr.Value()
}

// Scan implements the sql.Scanner interface
func (a *IntArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	var arr pq.Int64Array
	if err := arr.Scan(src); err != nil {
		return err
	}
	out := make(IntArray, len(arr))
	for i, v := range arr {
		out[i] = int(v)
	}
	*a = out
	return nil
}

// StringArray is a custom type for handling TEXT[] arrays in PostgreSQL
type StringArray []string

// Value implements the driver.Valuer interface
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return pq.Array(a).Value()
}

// Scan implements the sql.Scanner interface
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	slice := (*[]string)(a)
	return pq.Array(slice).Scan(src)
}

// DateRange is an inclusive pair of dates
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether the given date falls inside the range (date-only
// comparison, inclusive on both ends)
func (r DateRange) Contains(date time.Time) bool {
	d := truncateToDate(date)
	return !d.Before(truncateToDate(r.Start)) && !d.After(truncateToDate(r.End))
}

// DateRangeList is stored as a JSONB column
type DateRangeList []DateRange

// Value implements the driver.Valuer interface
func (l DateRangeList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *DateRangeList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	bytes, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into DateRangeList", src)
	}
	return json.Unmarshal(bytes, l)
}

// Schedule represents the recurring schedule rule set for a tour.
// Exactly one active schedule exists per tour.
type Schedule struct {
	ID         string        `json:"id" db:"id"`
	TourID     string        `json:"tour_id" db:"tour_id"`
	DaysOfWeek IntArray      `json:"days_of_week" db:"days_of_week"` // 0=Sunday .. 6=Saturday
	Times      StringArray   `json:"times" db:"times"`               // ordered HH:MM values
	Blackouts  DateRangeList `json:"blackouts,omitempty" db:"blackouts"`
	IsActive   bool          `json:"is_active" db:"is_active"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateScheduleRequest represents the request to set a tour's schedule.
// Saving it replaces any previously active schedule for the tour.
type CreateScheduleRequest struct {
	DaysOfWeek []int       `json:"days_of_week" binding:"required"`
	Times      []string    `json:"times" binding:"required"`
	Blackouts  []DateRange `json:"blackouts,omitempty"`
}

// Validate validates the create schedule request
func (r *CreateScheduleRequest) Validate() error {
	if len(r.DaysOfWeek) == 0 {
		return errors.New("days_of_week must contain at least one day")
	}
	for _, day := range r.DaysOfWeek {
		if day < 0 || day > 6 {
			return errors.New("days_of_week must contain values between 0 (Sunday) and 6 (Saturday)")
		}
	}
	if len(r.Times) == 0 {
		return errors.New("times must contain at least one departure time")
	}
	for _, t := range r.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid time %q: must be in HH:MM format", t)
		}
	}
	for _, b := range r.Blackouts {
		if b.End.Before(b.Start) {
			return errors.New("blackout range end must not be before start")
		}
	}
	return nil
}

// IsBlackedOut reports whether the date falls inside any blackout range
func (s *Schedule) IsBlackedOut(date time.Time) bool {
	for _, r := range s.Blackouts {
		if r.Contains(date) {
			return true
		}
	}
	return false
}

// IsScheduledOn reports whether the schedule runs on the given date
func (s *Schedule) IsScheduledOn(date time.Time) bool {
	if !s.IsActive {
		return false
	}
	weekday := int(date.Weekday())
	matched := false
	for _, day := range s.DaysOfWeek {
		if day == weekday {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	return !s.IsBlackedOut(date)
}

// HasTime reports whether the given HH:MM value is one of the schedule's
// departure times
func (s *Schedule) HasTime(value string) bool {
	for _, t := range s.Times {
		if t == value {
			return true
		}
	}
	return false
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
