package models

import "time"

// TripStatus represents the lifecycle state of a trip
type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusCancelled TripStatus = "cancelled"
	TripStatusCompleted TripStatus = "completed"
)

// Trip represents a scheduled bus departure with a fixed seat capacity.
// Price is in VND (no subunit), so amounts are plain integers.
type Trip struct {
	ID         int64      `json:"id" db:"id"`
	Route      string     `json:"route" db:"route"`
	TripDate   time.Time  `json:"date" db:"trip_date"`
	DepartTime string     `json:"time" db:"depart_time"`
	BusName    string     `json:"bus" db:"bus_name"`
	Seats      int        `json:"seats" db:"seats"`
	Booked     int        `json:"booked" db:"booked"`
	Price      int64      `json:"price" db:"price"`
	Status     TripStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Available returns the number of unclaimed seats on the trip
func (t *Trip) Available() int {
	return t.Seats - t.Booked
}
