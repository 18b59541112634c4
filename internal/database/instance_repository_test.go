package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/islandtours/tour-booking-backend/internal/models"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &PostgresDB{DB: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func instanceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tour_id", "instance_date", "start_time", "capacity",
		"booked_seats", "status", "created_at", "updated_at",
	})
}

func TestFindOrCreateInstance(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstanceRepository(db)

	tour := &models.Tour{ID: "tour-1", DefaultCapacity: 20}
	instanceDate := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	t.Run("Materializes And Locks", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO tour_instances").
			WithArgs(sqlmock.AnyArg(), "tour-1", instanceDate, "09:00", 20).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM tour_instances(.+)FOR UPDATE").
			WithArgs("tour-1", instanceDate, "09:00").
			WillReturnRows(instanceRows().AddRow(
				"inst-1", "tour-1", instanceDate, "09:00", 20, 0, "scheduled", now, now,
			))

		tx, err := db.Beginx()
		require.NoError(t, err)

		instance, err := repo.FindOrCreate(tx, tour, instanceDate, "09:00")
		require.NoError(t, err)
		assert.Equal(t, "inst-1", instance.ID)
		assert.Equal(t, 20, instance.Capacity)
		assert.Equal(t, models.InstanceStatusScheduled, instance.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Concurrent Loser Locks Winner Row", func(t *testing.T) {
		// ON CONFLICT DO NOTHING affects zero rows when the row already
		// exists; the follow-up select still finds it.
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO tour_instances").
			WithArgs(sqlmock.AnyArg(), "tour-1", instanceDate, "09:00", 20).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM tour_instances(.+)FOR UPDATE").
			WithArgs("tour-1", instanceDate, "09:00").
			WillReturnRows(instanceRows().AddRow(
				"inst-1", "tour-1", instanceDate, "09:00", 20, 5, "scheduled", now, now,
			))

		tx, err := db.Beginx()
		require.NoError(t, err)

		instance, err := repo.FindOrCreate(tx, tour, instanceDate, "09:00")
		require.NoError(t, err)
		assert.Equal(t, 5, instance.BookedSeats)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAddBookedSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstanceRepository(db)

	t.Run("Increment", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE tour_instances").
			WithArgs("inst-1", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))

		tx, err := db.Beginx()
		require.NoError(t, err)
		assert.NoError(t, repo.AddBookedSeats(tx, "inst-1", 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Instance", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE tour_instances").
			WithArgs("missing", -2).
			WillReturnResult(sqlmock.NewResult(0, 0))

		tx, err := db.Beginx()
		require.NoError(t, err)

		err = repo.AddBookedSeats(tx, "missing", -2)
		assert.IsType(t, &models.NotFoundError{}, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetByKeyReturnsNilWhenVirtual(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstanceRepository(db)

	instanceDate := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM tour_instances").
		WithArgs("tour-1", instanceDate, "09:00").
		WillReturnRows(instanceRows())

	instance, err := repo.GetByKey("tour-1", instanceDate, "09:00")
	require.NoError(t, err)
	assert.Nil(t, instance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPastCompleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInstanceRepository(db)

	cutoff := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE tour_instances").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	swept, err := repo.MarkPastCompleted(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), swept)
	assert.NoError(t, mock.ExpectationsWereMet())
}
