package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
)

// PaymentAttemptRepository handles the gateway attempt log
type PaymentAttemptRepository struct {
	db *sqlx.DB
}

// NewPaymentAttemptRepository creates a new payment attempt repository
func NewPaymentAttemptRepository(db *sqlx.DB) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{db: db}
}

// Record persists one gateway call attempt
func (r *PaymentAttemptRepository) Record(attempt *models.PaymentAttempt) error {
	err := r.db.QueryRow(`
		INSERT INTO payment_attempts (order_id, booking_code, request_id, requested_amount, attempt_number, result_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		attempt.OrderID, attempt.BookingCode, attempt.RequestID,
		attempt.RequestedAmount, attempt.AttemptNumber, attempt.ResultCode,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record payment attempt: %w", err)
	}
	return nil
}

// CountByBookingCode returns how many attempts exist for a booking
func (r *PaymentAttemptRepository) CountByBookingCode(code string) (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM payment_attempts WHERE booking_code = $1`, code)
	if err != nil {
		return 0, fmt.Errorf("failed to count payment attempts: %w", err)
	}
	return count, nil
}

// GetByOrderID retrieves the attempt that issued an order ID
func (r *PaymentAttemptRepository) GetByOrderID(orderID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.Get(&attempt, `
		SELECT id, order_id, booking_code, request_id, requested_amount, attempt_number, result_code, created_at
		FROM payment_attempts WHERE order_id = $1`, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get payment attempt: %w", err)
	}
	return &attempt, nil
}

// ListByBookingCode returns a booking's attempts in issue order
func (r *PaymentAttemptRepository) ListByBookingCode(code string) ([]*models.PaymentAttempt, error) {
	var attempts []*models.PaymentAttempt
	err := r.db.Select(&attempts, `
		SELECT id, order_id, booking_code, request_id, requested_amount, attempt_number, result_code, created_at
		FROM payment_attempts WHERE booking_code = $1 ORDER BY attempt_number ASC`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment attempts: %w", err)
	}
	return attempts, nil
}
