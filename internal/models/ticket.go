package models

import (
	"errors"
	"time"
)

// TicketType distinguishes standalone tickets from combined bundles
type TicketType string

const (
	TicketTypeAtomic   TicketType = "atomic"
	TicketTypeCombined TicketType = "combined"
)

// Ticket represents a ticket definition. Atomic tickets are priced
// standalone; combined tickets carry a recipe of atomic quantities.
type Ticket struct {
	ID        string       `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Type      TicketType   `json:"type" db:"type"`
	IsActive  bool         `json:"is_active" db:"is_active"`
	Recipe    []RecipeItem `json:"recipe,omitempty" db:"-"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// RecipeItem is one atomic component of a combined ticket
type RecipeItem struct {
	CombinedTicketID string `json:"-" db:"combined_ticket_id"`
	AtomicTicketID   string `json:"atomic_ticket_id" db:"atomic_ticket_id"`
	Quantity         int    `json:"quantity" db:"quantity"`
}

// SeatsPerUnit returns how many seats one unit of the ticket occupies:
// 1 for atomic tickets, the sum of recipe quantities for combined ones.
func (t *Ticket) SeatsPerUnit() int {
	if t.Type != TicketTypeCombined {
		return 1
	}
	total := 0
	for _, item := range t.Recipe {
		total += item.Quantity
	}
	return total
}

// CreateTicketRequest represents the request to define a ticket
type CreateTicketRequest struct {
	Name   string             `json:"name" binding:"required"`
	Type   TicketType         `json:"type" binding:"required,oneof=atomic combined"`
	Recipe []CreateRecipeItem `json:"recipe,omitempty"`
}

// CreateRecipeItem is one recipe line in a create ticket request
type CreateRecipeItem struct {
	AtomicTicketID string `json:"atomic_ticket_id" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required,gt=0"`
}

// Validate validates the create ticket request
func (r *CreateTicketRequest) Validate() error {
	switch r.Type {
	case TicketTypeAtomic:
		if len(r.Recipe) > 0 {
			return errors.New("atomic tickets cannot have a recipe")
		}
	case TicketTypeCombined:
		if len(r.Recipe) == 0 {
			return errors.New("combined tickets require at least one recipe item")
		}
		for _, item := range r.Recipe {
			if item.Quantity <= 0 {
				return errors.New("recipe quantities must be greater than 0")
			}
		}
	default:
		return errors.New("type must be atomic or combined")
	}
	return nil
}

// TicketSelection is one (ticket, quantity) line of a booking request
type TicketSelection struct {
	TicketID string `json:"ticket_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}
