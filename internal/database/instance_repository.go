package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/islandtours/tour-booking-backend/internal/models"
)

const instanceColumns = `id, tour_id, instance_date, start_time, capacity,
	   booked_seats, status, created_at, updated_at`

// InstanceRepository handles database operations for tour_instances.
// Instances are materialized on first reference; the write methods that
// take a *sqlx.Tx run inside the caller's transaction so materialization,
// locking and seat counting commit atomically.
type InstanceRepository struct {
	db DB
}

// NewInstanceRepository creates a new InstanceRepository
func NewInstanceRepository(db DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// FindOrCreate materializes the instance for (tour, date, time) if it does
// not exist yet and returns it locked for the duration of the caller's
// transaction. The insert races safely: ON CONFLICT DO NOTHING means the
// loser of a concurrent materialization falls through to the lock on the
// winner's row.
func (r *InstanceRepository) FindOrCreate(tx *sqlx.Tx, tour *models.Tour, date time.Time, startTime string) (*models.TourInstance, error) {
	insertQuery := `
		INSERT INTO tour_instances (id, tour_id, instance_date, start_time, capacity, booked_seats, status)
		VALUES ($1, $2, $3, $4, $5, 0, 'scheduled')
		ON CONFLICT (tour_id, instance_date, start_time) DO NOTHING
	`
	if _, err := tx.Exec(insertQuery, uuid.New().String(), tour.ID, date, startTime, tour.DefaultCapacity); err != nil {
		return nil, fmt.Errorf("failed to materialize instance: %w", err)
	}

	return r.LockByKey(tx, tour.ID, date, startTime)
}

// LockByKey retrieves the instance for (tour, date, time) with an exclusive
// row lock held until the caller's transaction ends
func (r *InstanceRepository) LockByKey(tx *sqlx.Tx, tourID string, date time.Time, startTime string) (*models.TourInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM tour_instances
		WHERE tour_id = $1 AND instance_date = $2 AND start_time = $3
		FOR UPDATE
	`

	var instance models.TourInstance
	err := tx.Get(&instance, query, tourID, date, startTime)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "instance", ID: models.SlotKey(date, startTime)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock instance: %w", err)
	}
	return &instance, nil
}

// LockByID retrieves an instance by ID with an exclusive row lock
func (r *InstanceRepository) LockByID(tx *sqlx.Tx, instanceID string) (*models.TourInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM tour_instances
		WHERE id = $1
		FOR UPDATE
	`

	var instance models.TourInstance
	err := tx.Get(&instance, query, instanceID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "instance", ID: instanceID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock instance: %w", err)
	}
	return &instance, nil
}

// GetByID retrieves an instance by ID without locking
func (r *InstanceRepository) GetByID(instanceID string) (*models.TourInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM tour_instances
		WHERE id = $1
	`

	var instance models.TourInstance
	err := r.db.Get(&instance, query, instanceID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "instance", ID: instanceID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return &instance, nil
}

// GetByKey retrieves the instance for (tour, date, time) without locking.
// Returns nil, nil when no instance has been materialized for the slot.
func (r *InstanceRepository) GetByKey(tourID string, date time.Time, startTime string) (*models.TourInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM tour_instances
		WHERE tour_id = $1 AND instance_date = $2 AND start_time = $3
	`

	var instance models.TourInstance
	err := r.db.Get(&instance, query, tourID, date, startTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return &instance, nil
}

// GetByTourAndRange retrieves the materialized instances of a tour within
// a date range. Slots with no row here follow the virtual schedule.
func (r *InstanceRepository) GetByTourAndRange(tourID string, startDate, endDate time.Time) ([]models.TourInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM tour_instances
		WHERE tour_id = $1 AND instance_date BETWEEN $2 AND $3
		ORDER BY instance_date, start_time
	`

	var instances []models.TourInstance
	if err := r.db.Select(&instances, query, tourID, startDate, endDate); err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return instances, nil
}

// AddBookedSeats adjusts the instance's booked seat counter inside the
// caller's transaction. delta is positive on booking, negative on release.
func (r *InstanceRepository) AddBookedSeats(tx *sqlx.Tx, instanceID string, delta int) error {
	query := `
		UPDATE tour_instances
		SET booked_seats = booked_seats + $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(query, instanceID, delta)
	if err != nil {
		return fmt.Errorf("failed to update booked seats: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "instance", ID: instanceID}
	}
	return nil
}

// UpdateStatus changes an instance's lifecycle status inside the caller's
// transaction
func (r *InstanceRepository) UpdateStatus(tx *sqlx.Tx, instanceID string, status models.InstanceStatus) error {
	query := `
		UPDATE tour_instances
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(query, instanceID, status)
	if err != nil {
		return fmt.Errorf("failed to update instance status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "instance", ID: instanceID}
	}
	return nil
}

// MarkPastCompleted marks scheduled instances whose date is before the
// cutoff as completed and returns how many rows changed. Used by the
// nightly sweep.
func (r *InstanceRepository) MarkPastCompleted(cutoff time.Time) (int64, error) {
	query := `
		UPDATE tour_instances
		SET status = 'completed', updated_at = NOW()
		WHERE status = 'scheduled' AND instance_date < $1
	`

	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep past instances: %w", err)
	}
	return result.RowsAffected()
}
