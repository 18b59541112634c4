package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/islandtours/tour-booking-backend/internal/database"
)

func newTicketHandler(t *testing.T) (*TicketHandler, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := &database.PostgresDB{DB: sqlx.NewDb(mockDB, "sqlmock")}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewTicketHandler(database.NewTicketRepository(db, db.DB), logger), mock
}

func postJSON(t *testing.T, handler gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return w
}

func TestCreateTicketRecipeReferences(t *testing.T) {
	t.Run("Unknown Ticket", func(t *testing.T) {
		handler, mock := newTicketHandler(t)

		mock.ExpectQuery("SELECT (.+) FROM tickets").
			WithArgs("tk-missing").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "type", "is_active", "created_at", "updated_at",
			}))

		w := postJSON(t, handler.CreateTicket,
			`{"name":"Family Pass","type":"combined","recipe":[{"atomic_ticket_id":"tk-missing","quantity":2}]}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "unknown ticket")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Non-Atomic Reference", func(t *testing.T) {
		handler, mock := newTicketHandler(t)

		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM tickets").
			WithArgs("tk-bundle").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "type", "is_active", "created_at", "updated_at",
			}).AddRow("tk-bundle", "Bundle", "combined", true, now, now))
		mock.ExpectQuery("SELECT (.+) FROM ticket_recipes").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{
				"combined_ticket_id", "atomic_ticket_id", "quantity",
			}))

		w := postJSON(t, handler.CreateTicket,
			`{"name":"Mega Pass","type":"combined","recipe":[{"atomic_ticket_id":"tk-bundle","quantity":1}]}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "not an atomic ticket")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
