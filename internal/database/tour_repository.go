package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/islandtours/tour-booking-backend/internal/models"
)

// TourRepository handles database operations for tours and schedules
type TourRepository struct {
	db DB
	// sqlxDB is used for schedule replacement, which needs a transaction
	sqlxDB *sqlx.DB
}

// NewTourRepository creates a new TourRepository
func NewTourRepository(db DB, sqlxDB *sqlx.DB) *TourRepository {
	return &TourRepository{db: db, sqlxDB: sqlxDB}
}

// Create creates a new tour
func (r *TourRepository) Create(tour *models.Tour) error {
	query := `
		INSERT INTO tours (
			id, name, description, default_capacity, duration_minutes,
			booking_window_days, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	if tour.ID == "" {
		tour.ID = uuid.New().String()
	}

	return r.db.QueryRow(
		query,
		tour.ID, tour.Name, tour.Description, tour.DefaultCapacity,
		tour.DurationMinutes, tour.BookingWindowDays, tour.IsActive,
	).Scan(&tour.CreatedAt, &tour.UpdatedAt)
}

// GetByID retrieves a tour by ID
func (r *TourRepository) GetByID(tourID string) (*models.Tour, error) {
	query := `
		SELECT id, name, description, default_capacity, duration_minutes,
			   booking_window_days, is_active, created_at, updated_at
		FROM tours
		WHERE id = $1
	`

	var tour models.Tour
	err := r.db.Get(&tour, query, tourID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "tour", ID: tourID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}
	return &tour, nil
}

// List retrieves tours, optionally restricted to active ones
func (r *TourRepository) List(activeOnly bool) ([]models.Tour, error) {
	query := `
		SELECT id, name, description, default_capacity, duration_minutes,
			   booking_window_days, is_active, created_at, updated_at
		FROM tours
	`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name`

	var tours []models.Tour
	if err := r.db.Select(&tours, query); err != nil {
		return nil, fmt.Errorf("failed to list tours: %w", err)
	}
	return tours, nil
}

// Update updates a tour's mutable fields
func (r *TourRepository) Update(tour *models.Tour) error {
	query := `
		UPDATE tours
		SET name = $2, description = $3, default_capacity = $4,
			duration_minutes = $5, booking_window_days = $6, is_active = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		query,
		tour.ID, tour.Name, tour.Description, tour.DefaultCapacity,
		tour.DurationMinutes, tour.BookingWindowDays, tour.IsActive,
	).Scan(&tour.UpdatedAt)
	if err == sql.ErrNoRows {
		return &models.NotFoundError{Resource: "tour", ID: tour.ID}
	}
	return err
}

// ReplaceSchedule deactivates the tour's current schedule and inserts the
// new one as active, in one transaction. Existing instances keep the
// parameters they were materialized with.
func (r *TourRepository) ReplaceSchedule(schedule *models.Schedule) error {
	tx, err := r.sqlxDB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE schedules SET is_active = false, updated_at = NOW() WHERE tour_id = $1 AND is_active = true`,
		schedule.TourID,
	); err != nil {
		return fmt.Errorf("failed to deactivate previous schedule: %w", err)
	}

	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	schedule.IsActive = true

	query := `
		INSERT INTO schedules (id, tour_id, days_of_week, times, blackouts, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRowx(
		query,
		schedule.ID, schedule.TourID, schedule.DaysOfWeek, schedule.Times, schedule.Blackouts,
	).Scan(&schedule.CreatedAt, &schedule.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}

	return tx.Commit()
}

// GetActiveSchedule retrieves the tour's single active schedule
func (r *TourRepository) GetActiveSchedule(tourID string) (*models.Schedule, error) {
	query := `
		SELECT id, tour_id, days_of_week, times, blackouts, is_active,
			   created_at, updated_at
		FROM schedules
		WHERE tour_id = $1 AND is_active = true
	`

	var schedule models.Schedule
	err := r.db.Get(&schedule, query, tourID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "schedule", ID: tourID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}
