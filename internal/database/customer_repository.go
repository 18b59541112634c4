package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/islandtours/tour-booking-backend/internal/models"
)

// CustomerRepository handles database operations for customers
type CustomerRepository struct {
	db DB
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(db DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Upsert inserts or updates a customer keyed by email, inside the caller's
// transaction. A returning customer's name and phone are overwritten with
// the latest values.
func (r *CustomerRepository) Upsert(tx *sqlx.Tx, input *models.CustomerInput) (*models.Customer, error) {
	query := `
		INSERT INTO customers (id, email, name, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email)
		DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, updated_at = NOW()
		RETURNING id, email, name, phone, created_at, updated_at
	`

	var customer models.Customer
	err := tx.QueryRowx(query, uuid.New().String(), input.Email, input.Name, input.Phone).
		Scan(&customer.ID, &customer.Email, &customer.Name, &customer.Phone,
			&customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert customer: %w", err)
	}
	return &customer, nil
}

// GetByID retrieves a customer by ID
func (r *CustomerRepository) GetByID(customerID string) (*models.Customer, error) {
	query := `
		SELECT id, email, name, phone, created_at, updated_at
		FROM customers
		WHERE id = $1
	`

	var customer models.Customer
	err := r.db.Get(&customer, query, customerID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "customer", ID: customerID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}
