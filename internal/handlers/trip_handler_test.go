package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/namdinh240505-spec/qlnx-backend/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTripRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() { db.Close() })

	handler := NewTripHandler(database.NewTripRepository(db), quietLogger())

	router := gin.New()
	router.GET("/trips", handler.GetTrips)
	router.GET("/trips/:id", handler.GetTripByID)

	return router, mock
}

func TestGetTripsHandler(t *testing.T) {
	t.Run("empty listing returns empty array, not null", func(t *testing.T) {
		router, mock := setupTripRouter(t)

		mock.ExpectQuery(`FROM trips`).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "route", "trip_date", "depart_time", "bus_name",
				"seats", "booked", "price", "status", "created_at", "updated_at",
			}))

		req := httptest.NewRequest(http.MethodGet, "/trips", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})

	t.Run("date filter is passed through", func(t *testing.T) {
		router, mock := setupTripRouter(t)

		mock.ExpectQuery(`FROM trips WHERE trip_date =`).
			WithArgs("2026-08-28").
			WillReturnRows(handlerTripRow())

		req := httptest.NewRequest(http.MethodGet, "/trips?date=2026-08-28", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "HN-SG")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetTripByIDHandler(t *testing.T) {
	t.Run("returns trip", func(t *testing.T) {
		router, mock := setupTripRouter(t)

		mock.ExpectQuery(`FROM trips WHERE id =`).
			WithArgs(int64(1)).
			WillReturnRows(handlerTripRow())

		req := httptest.NewRequest(http.MethodGet, "/trips/1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"route":"HN-SG"`)
	})

	t.Run("bad id returns 400", func(t *testing.T) {
		router, _ := setupTripRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/trips/abc", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		router, mock := setupTripRouter(t)

		mock.ExpectQuery(`FROM trips WHERE id =`).
			WillReturnError(sql.ErrNoRows)

		req := httptest.NewRequest(http.MethodGet, "/trips/99", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
