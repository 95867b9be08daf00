package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
)

const tripColumns = `id, route, trip_date, depart_time, bus_name, seats, booked, price, status, created_at, updated_at`

// TripRepository handles trip data operations
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// GetByID retrieves a trip by its ID
func (r *TripRepository) GetByID(id int64) (*models.Trip, error) {
	var trip models.Trip
	query := fmt.Sprintf(`SELECT %s FROM trips WHERE id = $1`, tripColumns)

	err := r.db.Get(&trip, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return &trip, nil
}

// List retrieves all trips, newest departure first
func (r *TripRepository) List() ([]*models.Trip, error) {
	var trips []*models.Trip
	query := fmt.Sprintf(`SELECT %s FROM trips ORDER BY trip_date DESC, depart_time DESC, id DESC`, tripColumns)

	if err := r.db.Select(&trips, query); err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}

	return trips, nil
}

// ListByDate retrieves trips departing on the given date (YYYY-MM-DD)
func (r *TripRepository) ListByDate(date string) ([]*models.Trip, error) {
	var trips []*models.Trip
	query := fmt.Sprintf(`SELECT %s FROM trips WHERE trip_date = $1 ORDER BY depart_time ASC, id ASC`, tripColumns)

	if err := r.db.Select(&trips, query, date); err != nil {
		return nil, fmt.Errorf("failed to list trips by date: %w", err)
	}

	return trips, nil
}
