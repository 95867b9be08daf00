package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
)

const bookingColumns = `id, code, trip_id, customer, phone, seat_count, seat_numbers, status, payment_status, amount_paid, paid_at, last_order_id, payment_attempts, created_at, updated_at`

// BookingRepository handles booking and seat claim data operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ReserveSeats atomically claims the requested seats on a trip and creates
// the booking. The trip row is locked for the duration of the transaction,
// so concurrent requests for overlapping seats serialize; the UNIQUE
// constraint on seat_claims catches anything that slips past the lock.
func (r *BookingRepository) ReserveSeats(tripID int64, seats []int, customer, phone string) (*models.Booking, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var trip models.Trip
	err = tx.Get(&trip, `SELECT `+tripColumns+` FROM trips WHERE id = $1 FOR UPDATE`, tripID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to lock trip: %w", err)
	}

	for _, seat := range seats {
		if seat > trip.Seats {
			return nil, &models.ValidationError{
				Field:   "seat_numbers",
				Message: fmt.Sprintf("seat %d exceeds bus capacity %d", seat, trip.Seats),
			}
		}
	}

	var claimed []int
	err = tx.Select(&claimed, `SELECT seat_number FROM seat_claims WHERE trip_id = $1 ORDER BY seat_number`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seat claims: %w", err)
	}

	claimedSet := make(map[int]bool, len(claimed))
	for _, seat := range claimed {
		claimedSet[seat] = true
	}
	var conflicts []int
	for _, seat := range seats {
		if claimedSet[seat] {
			conflicts = append(conflicts, seat)
		}
	}
	if len(conflicts) > 0 {
		return nil, &models.SeatTakenError{Seats: conflicts}
	}

	if len(claimed)+len(seats) > trip.Seats {
		return nil, &models.CapacityExceededError{
			Requested: len(seats),
			Claimed:   len(claimed),
			Capacity:  trip.Seats,
		}
	}

	code, err := generateBookingCode(tx, tripID)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		Code:          code,
		TripID:        tripID,
		Customer:      customer,
		Phone:         phone,
		SeatCount:     len(seats),
		SeatNumbers:   models.IntArray(seats),
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
	}

	err = tx.QueryRow(`
		INSERT INTO bookings (code, trip_id, customer, phone, seat_count, seat_numbers, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		booking.Code, booking.TripID, booking.Customer, booking.Phone,
		booking.SeatCount, booking.SeatNumbers, booking.Status, booking.PaymentStatus,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}

	for _, seat := range seats {
		_, err = tx.Exec(`INSERT INTO seat_claims (trip_id, seat_number, booking_id) VALUES ($1, $2, $3)`,
			tripID, seat, booking.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, &models.SeatTakenError{Seats: []int{seat}}
			}
			return nil, fmt.Errorf("failed to claim seat %d: %w", seat, err)
		}
	}

	if err := recomputeBooked(tx, tripID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	return booking, nil
}

// Cancel marks a booking cancelled and releases its seat claims.
// Cancelling an already-cancelled booking is a no-op; cancelling a paid
// booking is refused, refunds need an operator.
func (r *BookingRepository) Cancel(code string) error {
	return r.cancel(`SELECT ` + bookingColumns + ` FROM bookings WHERE code = $1 FOR UPDATE`, code)
}

// CancelByID is Cancel keyed by internal ID, used by operator endpoints
func (r *BookingRepository) CancelByID(id int64) error {
	return r.cancel(`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) cancel(lockQuery string, key interface{}) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var booking models.Booking
	err = tx.Get(&booking, lockQuery, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrBookingNotFound
		}
		return fmt.Errorf("failed to lock booking: %w", err)
	}

	if booking.Status == models.BookingStatusCancelled {
		return tx.Commit()
	}
	if booking.PaymentStatus == models.PaymentStatusPaid {
		return models.ErrPaidBookingCancel
	}

	_, err = tx.Exec(`UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2`,
		models.BookingStatusCancelled, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	_, err = tx.Exec(`DELETE FROM seat_claims WHERE booking_id = $1`, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to release seat claims: %w", err)
	}

	if err := recomputeBooked(tx, booking.TripID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	return nil
}

// Confirm promotes a pending booking to confirmed
func (r *BookingRepository) Confirm(id int64) error {
	result, err := r.db.Exec(`
		UPDATE bookings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		models.BookingStatusConfirmed, id, models.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrBookingNotFound
	}

	return nil
}

// FindByCode retrieves a booking by its public code
func (r *BookingRepository) FindByCode(code string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `SELECT `+bookingColumns+` FROM bookings WHERE code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

// FindByID retrieves a booking by its internal ID
func (r *BookingRepository) FindByID(id int64) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

// FindByOrderID resolves a gateway order ID to its booking through the
// payment attempt log, falling back to the booking's last_order_id for
// rows written before the attempt log existed.
func (r *BookingRepository) FindByOrderID(orderID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `
		SELECT b.id, b.code, b.trip_id, b.customer, b.phone, b.seat_count, b.seat_numbers,
		       b.status, b.payment_status, b.amount_paid, b.paid_at, b.last_order_id,
		       b.payment_attempts, b.created_at, b.updated_at
		FROM bookings b
		JOIN payment_attempts pa ON pa.booking_code = b.code
		WHERE pa.order_id = $1`, orderID)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find booking by order id: %w", err)
	}

	err = r.db.Get(&booking, `SELECT `+bookingColumns+` FROM bookings WHERE last_order_id = $1`, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to find booking by last order id: %w", err)
	}
	return &booking, nil
}

// List retrieves bookings matching the filter, newest first
func (r *BookingRepository) List(filter models.BookingFilter) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := make([]interface{}, 0, 3)

	if filter.TripID > 0 {
		args = append(args, filter.TripID)
		query += fmt.Sprintf(" AND trip_id = $%d", len(args))
	}
	if filter.Phone != "" {
		args = append(args, "%"+filter.Phone+"%")
		query += fmt.Sprintf(" AND phone LIKE $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY id DESC"

	var bookings []*models.Booking
	if err := r.db.Select(&bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// MarkPaymentPending records a freshly issued order ID and moves the
// booking into the pending payment state. A paid booking is never touched.
func (r *BookingRepository) MarkPaymentPending(code, orderID string) error {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET payment_status = $1, last_order_id = $2, payment_attempts = payment_attempts + 1, updated_at = NOW()
		WHERE code = $3 AND payment_status <> $4`,
		models.PaymentStatusPending, orderID, code, models.PaymentStatusPaid)
	if err != nil {
		return fmt.Errorf("failed to mark payment pending: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrAlreadyPaid
	}

	return nil
}

// MarkPaid settles a booking. The guard in the WHERE clause makes the
// transition idempotent: a replayed webhook affects zero rows. A pending
// booking is promoted to confirmed at the same time.
func (r *BookingRepository) MarkPaid(id int64, amount int64) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET payment_status = $1,
		    amount_paid = $2,
		    paid_at = NOW(),
		    status = CASE WHEN status = $3 THEN $4 ELSE status END,
		    updated_at = NOW()
		WHERE id = $5 AND payment_status <> $1`,
		models.PaymentStatusPaid, amount,
		models.BookingStatusPending, models.BookingStatusConfirmed, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking paid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkPaymentFailed records a gateway failure. Only a pending payment can
// fail; paid stays paid and unpaid stays unpaid.
func (r *BookingRepository) MarkPaymentFailed(id int64) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE bookings SET payment_status = $1, updated_at = NOW()
		WHERE id = $2 AND payment_status = $3`,
		models.PaymentStatusFailed, id, models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows > 0, nil
}

// Delete removes a booking and its seat claims entirely
func (r *BookingRepository) Delete(id int64) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var booking models.Booking
	err = tx.Get(&booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrBookingNotFound
		}
		return fmt.Errorf("failed to lock booking: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM seat_claims WHERE booking_id = $1`, booking.ID); err != nil {
		return fmt.Errorf("failed to release seat claims: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM bookings WHERE id = $1`, booking.ID); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if err := recomputeBooked(tx, booking.TripID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deletion: %w", err)
	}
	return nil
}

// newBookingCode builds a candidate booking code: BK<yymmdd>-<tripID>-<4 random digits>
func newBookingCode(tripID int64) string {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand is documented never to fail on supported platforms
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	suffix := int(binary.BigEndian.Uint16(buf[:])) % 10000
	return fmt.Sprintf("BK%s-%d-%04d", time.Now().Format("060102"), tripID, suffix)
}

// generateBookingCode returns a code unused by any existing booking,
// retrying on the (rare) random collision
func generateBookingCode(tx *sqlx.Tx, tripID int64) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code := newBookingCode(tripID)

		var count int
		if err := tx.Get(&count, `SELECT COUNT(*) FROM bookings WHERE code = $1`, code); err != nil {
			return "", fmt.Errorf("failed to check booking code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique booking code after 10 attempts")
}

// recomputeBooked derives trips.booked from the claim rows so the counter
// can never drift from the actual claims
func recomputeBooked(tx *sqlx.Tx, tripID int64) error {
	_, err := tx.Exec(`
		UPDATE trips
		SET booked = (SELECT COUNT(*) FROM seat_claims WHERE trip_id = $1), updated_at = NOW()
		WHERE id = $1`, tripID)
	if err != nil {
		return fmt.Errorf("failed to recompute booked count: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
