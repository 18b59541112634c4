package models

import (
	"errors"
	"time"
)

// Tour represents a bookable tour product
type Tour struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Description       *string   `json:"description,omitempty" db:"description"`
	DefaultCapacity   int       `json:"default_capacity" db:"default_capacity"`
	DurationMinutes   int       `json:"duration_minutes" db:"duration_minutes"`
	BookingWindowDays int       `json:"booking_window_days" db:"booking_window_days"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// CreateTourRequest represents the request to create a tour
type CreateTourRequest struct {
	Name              string  `json:"name" binding:"required"`
	Description       *string `json:"description,omitempty"`
	DefaultCapacity   int     `json:"default_capacity" binding:"required,gt=0"`
	DurationMinutes   int     `json:"duration_minutes" binding:"required,gt=0"`
	BookingWindowDays int     `json:"booking_window_days"`
}

// Validate validates the create tour request
func (r *CreateTourRequest) Validate() error {
	if r.DefaultCapacity <= 0 {
		return errors.New("default_capacity must be greater than 0")
	}
	if r.DurationMinutes <= 0 {
		return errors.New("duration_minutes must be greater than 0")
	}
	if r.BookingWindowDays < 0 {
		return errors.New("booking_window_days cannot be negative")
	}
	return nil
}

// UpdateTourRequest represents a partial tour update. Nil fields are left
// unchanged.
type UpdateTourRequest struct {
	Name              *string `json:"name,omitempty"`
	Description       *string `json:"description,omitempty"`
	DefaultCapacity   *int    `json:"default_capacity,omitempty"`
	DurationMinutes   *int    `json:"duration_minutes,omitempty"`
	BookingWindowDays *int    `json:"booking_window_days,omitempty"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

// Apply validates the update and writes it onto the tour
func (r *UpdateTourRequest) Apply(t *Tour) error {
	if r.Name != nil {
		if *r.Name == "" {
			return errors.New("name cannot be empty")
		}
		t.Name = *r.Name
	}
	if r.Description != nil {
		t.Description = r.Description
	}
	if r.DefaultCapacity != nil {
		if *r.DefaultCapacity <= 0 {
			return errors.New("default_capacity must be greater than 0")
		}
		t.DefaultCapacity = *r.DefaultCapacity
	}
	if r.DurationMinutes != nil {
		if *r.DurationMinutes <= 0 {
			return errors.New("duration_minutes must be greater than 0")
		}
		t.DurationMinutes = *r.DurationMinutes
	}
	if r.BookingWindowDays != nil {
		if *r.BookingWindowDays < 0 {
			return errors.New("booking_window_days cannot be negative")
		}
		t.BookingWindowDays = *r.BookingWindowDays
	}
	if r.IsActive != nil {
		t.IsActive = *r.IsActive
	}
	return nil
}

// BookingWindowEnd returns the last bookable date for the tour
func (t *Tour) BookingWindowEnd(today time.Time) time.Time {
	return today.AddDate(0, 0, t.BookingWindowDays)
}
