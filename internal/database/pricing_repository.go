package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/islandtours/tour-booking-backend/internal/models"
)

// PricingRepository handles database operations for pricing rules and
// per-instance exceptions
type PricingRepository struct {
	db DB
}

// NewPricingRepository creates a new PricingRepository
func NewPricingRepository(db DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// UpsertRule sets the base price of a ticket on a tour. One rule row per
// (tour, ticket); repeated writes overwrite the price.
func (r *PricingRepository) UpsertRule(rule *models.PricingRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	query := `
		INSERT INTO pricing_rules (id, tour_id, ticket_id, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tour_id, ticket_id)
		DO UPDATE SET price = EXCLUDED.price, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(
		query, rule.ID, rule.TourID, rule.TicketID, rule.Price,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

// GetRulesByTour retrieves all base price rules of a tour
func (r *PricingRepository) GetRulesByTour(tourID string) ([]models.PricingRule, error) {
	query := `
		SELECT id, tour_id, ticket_id, price, created_at, updated_at
		FROM pricing_rules
		WHERE tour_id = $1
		ORDER BY ticket_id
	`

	var rules []models.PricingRule
	if err := r.db.Select(&rules, query, tourID); err != nil {
		return nil, fmt.Errorf("failed to get pricing rules: %w", err)
	}
	return rules, nil
}

// UpsertException writes a per-instance price override inside the caller's
// transaction. Batch and single-slot overrides share the row keyed on
// (instance_id, ticket_id); the latest write wins regardless of origin.
func (r *PricingRepository) UpsertException(tx *sqlx.Tx, exception *models.PricingException) error {
	if exception.ID == "" {
		exception.ID = uuid.New().String()
	}

	query := `
		INSERT INTO pricing_exceptions (id, instance_id, ticket_id, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instance_id, ticket_id)
		DO UPDATE SET price = EXCLUDED.price, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	return tx.QueryRowx(
		query, exception.ID, exception.InstanceID, exception.TicketID, exception.Price,
	).Scan(&exception.ID, &exception.CreatedAt, &exception.UpdatedAt)
}

// GetExceptionsByInstance retrieves all price overrides of one instance
func (r *PricingRepository) GetExceptionsByInstance(instanceID string) ([]models.PricingException, error) {
	query := `
		SELECT id, instance_id, ticket_id, price, created_at, updated_at
		FROM pricing_exceptions
		WHERE instance_id = $1
		ORDER BY ticket_id
	`

	var exceptions []models.PricingException
	if err := r.db.Select(&exceptions, query, instanceID); err != nil {
		return nil, fmt.Errorf("failed to get pricing exceptions: %w", err)
	}
	return exceptions, nil
}

// DeleteException removes one override so the slot falls back to the tour's
// base price. This is the recovery path when a batch write clobbered a
// hand-set slot price.
func (r *PricingRepository) DeleteException(instanceID, ticketID string) error {
	result, err := r.db.Exec(
		`DELETE FROM pricing_exceptions WHERE instance_id = $1 AND ticket_id = $2`,
		instanceID, ticketID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete pricing exception: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "pricing exception", ID: instanceID + "/" + ticketID}
	}
	return nil
}
