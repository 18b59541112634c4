package models

import (
	"errors"
	"time"
)

// PricingRule is the tour-level base price for a ticket (tier 1)
type PricingRule struct {
	ID        string    `json:"id" db:"id"`
	TourID    string    `json:"tour_id" db:"tour_id"`
	TicketID  string    `json:"ticket_id" db:"ticket_id"`
	Price     float64   `json:"price" db:"price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PricingException is a per-instance price override (tiers 2 and 3).
// Batch and single-slot writes land in the same row keyed on
// (instance_id, ticket_id); the most recent write wins.
type PricingException struct {
	ID         string    `json:"id" db:"id"`
	InstanceID string    `json:"instance_id" db:"instance_id"`
	TicketID   string    `json:"ticket_id" db:"ticket_id"`
	Price      float64   `json:"price" db:"price"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ResolvedTicketPrice is the final per-ticket price for one instance
type ResolvedTicketPrice struct {
	TicketID   string       `json:"ticket_id"`
	Name       string       `json:"name"`
	Type       TicketType   `json:"type"`
	Price      float64      `json:"price"`
	IsOverride bool         `json:"is_override"`
	Recipe     []RecipeItem `json:"recipe,omitempty"`
}

// SetPricingRuleRequest sets the base price of a ticket on a tour
type SetPricingRuleRequest struct {
	TicketID string  `json:"ticket_id" binding:"required"`
	Price    float64 `json:"price" binding:"gte=0"`
}

// Validate validates the set pricing rule request
func (r *SetPricingRuleRequest) Validate() error {
	if r.Price < 0 {
		return errors.New("price cannot be negative")
	}
	return nil
}

// ApplyPriceExceptionBatchRequest applies one override price to every
// scheduled slot of a tour inside a date range
type ApplyPriceExceptionBatchRequest struct {
	TicketID  string  `json:"ticket_id" binding:"required"`
	StartDate string  `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate   string  `json:"end_date" binding:"required"`   // YYYY-MM-DD
	Price     float64 `json:"price" binding:"gte=0"`
}

// Validate validates the batch request and returns the parsed range
func (r *ApplyPriceExceptionBatchRequest) Validate() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start_date must be in YYYY-MM-DD format")
	}
	end, err = time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end_date must be in YYYY-MM-DD format")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end_date must not be before start_date")
	}
	if r.Price < 0 {
		return time.Time{}, time.Time{}, errors.New("price cannot be negative")
	}
	return start, end, nil
}

// SetInstancePriceRequest overrides one ticket price on a single slot
type SetInstancePriceRequest struct {
	TicketID string  `json:"ticket_id" binding:"required"`
	Date     string  `json:"date" binding:"required"` // YYYY-MM-DD
	Time     string  `json:"time" binding:"required"` // HH:MM
	Price    float64 `json:"price" binding:"gte=0"`
}

// Validate validates the single-slot override request
func (r *SetInstancePriceRequest) Validate() (date time.Time, err error) {
	date, err = time.Parse("2006-01-02", r.Date)
	if err != nil {
		return time.Time{}, errors.New("date must be in YYYY-MM-DD format")
	}
	if _, err := time.Parse("15:04", r.Time); err != nil {
		return time.Time{}, errors.New("time must be in HH:MM format")
	}
	if r.Price < 0 {
		return time.Time{}, errors.New("price cannot be negative")
	}
	return date, nil
}
