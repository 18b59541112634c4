package models

import (
	"errors"
	"strings"
	"time"
)

// Customer identity is keyed by email; re-booking with the same email
// overwrites name and phone.
type Customer struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CustomerInput is the customer block of a booking request
type CustomerInput struct {
	Email string  `json:"email" binding:"required,email"`
	Name  string  `json:"name" binding:"required"`
	Phone *string `json:"phone,omitempty"`
}

// Validate validates the customer input
func (c *CustomerInput) Validate() error {
	if !strings.Contains(c.Email, "@") {
		return errors.New("email is not valid")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}
