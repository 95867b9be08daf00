package models

import "time"

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus represents the payment state of a booking.
// It only moves forward: unpaid -> pending -> paid or failed.
// Once paid, no further payment writes are accepted.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Booking represents a seat reservation on a trip.
// Code is the public identifier used by customers and the payment gateway;
// numeric IDs stay internal.
type Booking struct {
	ID              int64         `json:"id" db:"id"`
	Code            string        `json:"code" db:"code"`
	TripID          int64         `json:"trip_id" db:"trip_id"`
	Customer        string        `json:"customer" db:"customer"`
	Phone           string        `json:"phone" db:"phone"`
	SeatCount       int           `json:"seats" db:"seat_count"`
	SeatNumbers     IntArray      `json:"seat_numbers" db:"seat_numbers"`
	Status          BookingStatus `json:"status" db:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status" db:"payment_status"`
	AmountPaid      int64         `json:"amount_paid" db:"amount_paid"`
	PaidAt          *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	LastOrderID     *string       `json:"last_order_id,omitempty" db:"last_order_id"`
	PaymentAttempts int           `json:"payment_attempts" db:"payment_attempts"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// IsPaid reports whether the booking has been settled by the gateway
func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentStatusPaid
}

// CreateBookingRequest is the payload for creating a booking.
// SeatNumbers accepts an integer array, a JSON-encoded array string,
// or a comma-separated string; it is normalized before validation.
type CreateBookingRequest struct {
	TripID      int64       `json:"trip_id" binding:"required"`
	Customer    string      `json:"customer" binding:"required"`
	Phone       string      `json:"phone" binding:"required"`
	Seats       int         `json:"seats"`
	SeatNumbers interface{} `json:"seat_numbers" binding:"required"`
}

// UpdateBookingRequest is the payload for operator status changes
type UpdateBookingRequest struct {
	Status BookingStatus `json:"status" binding:"required,oneof=pending confirmed cancelled"`
}

// BookingFilter narrows booking list queries
type BookingFilter struct {
	TripID int64
	Phone  string
	Status string
}
