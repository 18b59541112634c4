package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/islandtours/tour-booking-backend/internal/models"
)

// TicketRepository handles database operations for tickets and recipes
type TicketRepository struct {
	db     DB
	sqlxDB *sqlx.DB
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db DB, sqlxDB *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db, sqlxDB: sqlxDB}
}

// Create creates a ticket and its recipe rows in one transaction
func (r *TicketRepository) Create(ticket *models.Ticket) error {
	tx, err := r.sqlxDB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}

	query := `
		INSERT INTO tickets (id, name, type, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRowx(
		query, ticket.ID, ticket.Name, ticket.Type, ticket.IsActive,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	for i := range ticket.Recipe {
		ticket.Recipe[i].CombinedTicketID = ticket.ID
		if _, err := tx.Exec(
			`INSERT INTO ticket_recipes (combined_ticket_id, atomic_ticket_id, quantity) VALUES ($1, $2, $3)`,
			ticket.ID, ticket.Recipe[i].AtomicTicketID, ticket.Recipe[i].Quantity,
		); err != nil {
			return fmt.Errorf("failed to create recipe item: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a ticket with its recipe
func (r *TicketRepository) GetByID(ticketID string) (*models.Ticket, error) {
	query := `
		SELECT id, name, type, is_active, created_at, updated_at
		FROM tickets
		WHERE id = $1
	`

	var ticket models.Ticket
	err := r.db.Get(&ticket, query, ticketID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "ticket", ID: ticketID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	if err := r.loadRecipes([]*models.Ticket{&ticket}); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetByIDs retrieves multiple tickets with recipes, keyed by ID
func (r *TicketRepository) GetByIDs(ticketIDs []string) (map[string]*models.Ticket, error) {
	if len(ticketIDs) == 0 {
		return map[string]*models.Ticket{}, nil
	}

	query := `
		SELECT id, name, type, is_active, created_at, updated_at
		FROM tickets
		WHERE id = ANY($1)
	`

	var tickets []models.Ticket
	if err := r.db.Select(&tickets, query, pq.Array(ticketIDs)); err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}

	refs := make([]*models.Ticket, len(tickets))
	result := make(map[string]*models.Ticket, len(tickets))
	for i := range tickets {
		refs[i] = &tickets[i]
		result[tickets[i].ID] = &tickets[i]
	}
	if err := r.loadRecipes(refs); err != nil {
		return nil, err
	}
	return result, nil
}

// List retrieves ticket definitions, optionally restricted to active ones
func (r *TicketRepository) List(activeOnly bool) ([]models.Ticket, error) {
	query := `
		SELECT id, name, type, is_active, created_at, updated_at
		FROM tickets
	`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name`

	var tickets []models.Ticket
	if err := r.db.Select(&tickets, query); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	refs := make([]*models.Ticket, len(tickets))
	for i := range tickets {
		refs[i] = &tickets[i]
	}
	if err := r.loadRecipes(refs); err != nil {
		return nil, err
	}
	return tickets, nil
}

// Deactivate retires a ticket. Tickets still referenced by a combined
// ticket's recipe or by a pricing rule cannot be deactivated.
func (r *TicketRepository) Deactivate(ticketID string) error {
	var recipeRefs int
	err := r.db.Get(&recipeRefs, `
		SELECT COUNT(*)
		FROM ticket_recipes tr
		JOIN tickets t ON t.id = tr.combined_ticket_id
		WHERE tr.atomic_ticket_id = $1 AND t.is_active = true
	`, ticketID)
	if err != nil {
		return fmt.Errorf("failed to check recipe references: %w", err)
	}
	if recipeRefs > 0 {
		return models.NewInvariantViolation("ticket %s is referenced by %d active combined ticket recipe(s)", ticketID, recipeRefs)
	}

	var ruleRefs int
	err = r.db.Get(&ruleRefs, `SELECT COUNT(*) FROM pricing_rules WHERE ticket_id = $1`, ticketID)
	if err != nil {
		return fmt.Errorf("failed to check pricing rule references: %w", err)
	}
	if ruleRefs > 0 {
		return models.NewInvariantViolation("ticket %s is referenced by %d pricing rule(s)", ticketID, ruleRefs)
	}

	result, err := r.db.Exec(
		`UPDATE tickets SET is_active = false, updated_at = NOW() WHERE id = $1`,
		ticketID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate ticket: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "ticket", ID: ticketID}
	}
	return nil
}

func (r *TicketRepository) loadRecipes(tickets []*models.Ticket) error {
	var combinedIDs []string
	byID := make(map[string]*models.Ticket)
	for _, t := range tickets {
		if t.Type == models.TicketTypeCombined {
			combinedIDs = append(combinedIDs, t.ID)
			byID[t.ID] = t
		}
	}
	if len(combinedIDs) == 0 {
		return nil
	}

	var items []models.RecipeItem
	err := r.db.Select(&items, `
		SELECT combined_ticket_id, atomic_ticket_id, quantity
		FROM ticket_recipes
		WHERE combined_ticket_id = ANY($1)
		ORDER BY atomic_ticket_id
	`, pq.Array(combinedIDs))
	if err != nil {
		return fmt.Errorf("failed to load recipes: %w", err)
	}

	for _, item := range items {
		if t, ok := byID[item.CombinedTicketID]; ok {
			t.Recipe = append(t.Recipe, item)
		}
	}
	return nil
}
