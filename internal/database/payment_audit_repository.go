package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry.
// Payment events must never go unrecorded, so a failure here is an error,
// not a debug line.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_code, order_id,
			event_type, event_source,
			result_code, amount, raw_body,
			ip_address, user_agent, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7, $8,
			$9, $10, $11
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingCode, audit.OrderID,
		audit.EventType, audit.EventSource,
		audit.ResultCode, audit.Amount, audit.RawBody,
		audit.IPAddress, audit.UserAgent, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":   audit.EventType,
			"booking_code": audit.BookingCode,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":     audit.ID,
		"event_type":   audit.EventType,
		"booking_code": audit.BookingCode,
	}).Debug("Payment audit logged")

	return nil
}

// GetByBookingCode retrieves all audit entries for a booking
func (r *PaymentAuditRepository) GetByBookingCode(ctx context.Context, code string) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT id, booking_code, order_id, event_type, event_source,
		       result_code, amount, raw_body, ip_address, user_agent, created_at
		FROM payment_audits
		WHERE booking_code = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by booking code: %w", err)
	}

	return audits, nil
}

// GetRecentByEventType retrieves recent events of a specific type
func (r *PaymentAuditRepository) GetRecentByEventType(ctx context.Context, eventType models.PaymentEventType, hours int, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT id, booking_code, order_id, event_type, event_source,
		       result_code, amount, raw_body, ip_address, user_agent, created_at
		FROM payment_audits
		WHERE event_type = $1
		AND created_at > NOW() - INTERVAL '1 hour' * $2
		ORDER BY created_at DESC
		LIMIT $3`

	err := r.db.SelectContext(ctx, &audits, query, eventType, hours, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}

	return audits, nil
}
