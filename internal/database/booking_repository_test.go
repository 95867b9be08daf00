package database

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pqUniqueViolation = pq.Error{Code: "23505"}

func setupBookingRepo(t *testing.T) (*BookingRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() { db.Close() })

	return NewBookingRepository(db), mock
}

func tripRow(id int64, seats, booked int, price int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "route", "trip_date", "depart_time", "bus_name",
		"seats", "booked", "price", "status", "created_at", "updated_at",
	}).AddRow(id, "HN-SG", now, "08:00", "Limousine 01", seats, booked, price, "active", now, now)
}

func bookingRow(id int64, code string, status models.BookingStatus, paymentStatus models.PaymentStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "code", "trip_id", "customer", "phone", "seat_count", "seat_numbers",
		"status", "payment_status", "amount_paid", "paid_at", "last_order_id",
		"payment_attempts", "created_at", "updated_at",
	}).AddRow(id, code, 1, "Nguyen Van A", "0901234567", 2, []byte("{5,6}"),
		status, paymentStatus, 0, nil, nil, 0, now, now)
}

func TestReserveSeats(t *testing.T) {
	t.Run("claims free seats and creates booking", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = (.+) FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(1, 40, 1, 250000))
		mock.ExpectQuery(`SELECT seat_number FROM seat_claims WHERE trip_id =`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow(1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE code =`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(7), now, now))
		mock.ExpectExec(`INSERT INTO seat_claims`).
			WithArgs(int64(1), 5, int64(7)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT INTO seat_claims`).
			WithArgs(int64(1), 6, int64(7)).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		booking, err := repo.ReserveSeats(1, []int{5, 6}, "Nguyen Van A", "0901234567")
		require.NoError(t, err)

		assert.Equal(t, int64(7), booking.ID)
		assert.Equal(t, 2, booking.SeatCount)
		assert.Equal(t, models.IntArray{5, 6}, booking.SeatNumbers)
		assert.Equal(t, models.BookingStatusPending, booking.Status)
		assert.Equal(t, models.PaymentStatusUnpaid, booking.PaymentStatus)
		assert.Regexp(t, regexp.MustCompile(`^BK\d{6}-1-\d{4}$`), booking.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects already claimed seats", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = (.+) FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(1, 40, 2, 250000))
		mock.ExpectQuery(`SELECT seat_number FROM seat_claims WHERE trip_id =`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow(5).AddRow(9))
		mock.ExpectRollback()

		_, err := repo.ReserveSeats(1, []int{5, 6}, "Nguyen Van A", "0901234567")

		var seatTaken *models.SeatTakenError
		require.ErrorAs(t, err, &seatTaken)
		assert.Equal(t, []int{5}, seatTaken.Seats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects seats beyond bus capacity", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = (.+) FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(1, 16, 0, 250000))
		mock.ExpectRollback()

		_, err := repo.ReserveSeats(1, []int{15, 17}, "Nguyen Van A", "0901234567")

		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "seat_numbers", validationErr.Field)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects reservations that overflow capacity", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = (.+) FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(1, 3, 2, 250000))
		// duplicate claim rows should never exist, but the capacity
		// guard must still hold if they do
		mock.ExpectQuery(`SELECT seat_number FROM seat_claims WHERE trip_id =`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow(1).AddRow(1))
		mock.ExpectRollback()

		_, err := repo.ReserveSeats(1, []int{2, 3}, "Nguyen Van A", "0901234567")

		var capacityErr *models.CapacityExceededError
		require.ErrorAs(t, err, &capacityErr)
		assert.Equal(t, 3, capacityErr.Capacity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns trip not found for unknown trip", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = (.+) FOR UPDATE`).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.ReserveSeats(99, []int{1}, "Nguyen Van A", "0901234567")

		assert.ErrorIs(t, err, models.ErrTripNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation on claim insert to seat taken", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = (.+) FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(1, 40, 0, 250000))
		mock.ExpectQuery(`SELECT seat_number FROM seat_claims WHERE trip_id =`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"seat_number"}))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE code =`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(8), now, now))
		mock.ExpectExec(`INSERT INTO seat_claims`).
			WithArgs(int64(1), 5, int64(8)).
			WillReturnError(&pqUniqueViolation)
		mock.ExpectRollback()

		_, err := repo.ReserveSeats(1, []int{5}, "Nguyen Van A", "0901234567")

		var seatTaken *models.SeatTakenError
		require.ErrorAs(t, err, &seatTaken)
		assert.Equal(t, []int{5}, seatTaken.Seats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCancel(t *testing.T) {
	t.Run("cancels booking and releases claims", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM bookings WHERE code = (.+) FOR UPDATE`).
			WithArgs("BK250828-1-0042").
			WillReturnRows(bookingRow(7, "BK250828-1-0042", models.BookingStatusPending, models.PaymentStatusUnpaid))
		mock.ExpectExec(`UPDATE bookings SET status =`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM seat_claims WHERE booking_id =`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Cancel("BK250828-1-0042")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelling a cancelled booking is a no-op", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM bookings WHERE code = (.+) FOR UPDATE`).
			WithArgs("BK250828-1-0042").
			WillReturnRows(bookingRow(7, "BK250828-1-0042", models.BookingStatusCancelled, models.PaymentStatusUnpaid))
		mock.ExpectCommit()

		err := repo.Cancel("BK250828-1-0042")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses to cancel a paid booking", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM bookings WHERE code = (.+) FOR UPDATE`).
			WithArgs("BK250828-1-0042").
			WillReturnRows(bookingRow(7, "BK250828-1-0042", models.BookingStatusConfirmed, models.PaymentStatusPaid))
		mock.ExpectRollback()

		err := repo.Cancel("BK250828-1-0042")
		assert.ErrorIs(t, err, models.ErrPaidBookingCancel)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for unknown code", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM bookings WHERE code = (.+) FOR UPDATE`).
			WithArgs("BK-NOPE").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := repo.Cancel("BK-NOPE")
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkPaid(t *testing.T) {
	t.Run("settles an unpaid booking", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectExec(`UPDATE bookings`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		applied, err := repo.MarkPaid(7, 500000)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replay affects nothing", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectExec(`UPDATE bookings`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		applied, err := repo.MarkPaid(7, 500000)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkPaymentFailed(t *testing.T) {
	t.Run("fails only a pending payment", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectExec(`UPDATE bookings SET payment_status =`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		applied, err := repo.MarkPaymentFailed(7)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindByCode(t *testing.T) {
	t.Run("returns booking", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectQuery(`FROM bookings WHERE code =`).
			WithArgs("BK250828-1-0042").
			WillReturnRows(bookingRow(7, "BK250828-1-0042", models.BookingStatusPending, models.PaymentStatusUnpaid))

		booking, err := repo.FindByCode("BK250828-1-0042")
		require.NoError(t, err)
		assert.Equal(t, int64(7), booking.ID)
		assert.Equal(t, models.IntArray{5, 6}, booking.SeatNumbers)
	})

	t.Run("returns not found", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectQuery(`FROM bookings WHERE code =`).
			WithArgs("BK-NOPE").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByCode("BK-NOPE")
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
	})
}

func TestFindByOrderID(t *testing.T) {
	t.Run("resolves through payment attempts", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectQuery(`JOIN payment_attempts`).
			WithArgs("BK250828-1-0042-250828120000-0001").
			WillReturnRows(bookingRow(7, "BK250828-1-0042", models.BookingStatusPending, models.PaymentStatusPending))

		booking, err := repo.FindByOrderID("BK250828-1-0042-250828120000-0001")
		require.NoError(t, err)
		assert.Equal(t, "BK250828-1-0042", booking.Code)
	})

	t.Run("falls back to last_order_id", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectQuery(`JOIN payment_attempts`).
			WithArgs("legacy-order").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`FROM bookings WHERE last_order_id =`).
			WithArgs("legacy-order").
			WillReturnRows(bookingRow(7, "BK250828-1-0042", models.BookingStatusPending, models.PaymentStatusPending))

		booking, err := repo.FindByOrderID("legacy-order")
		require.NoError(t, err)
		assert.Equal(t, int64(7), booking.ID)
	})

	t.Run("unknown order id", func(t *testing.T) {
		repo, mock := setupBookingRepo(t)

		mock.ExpectQuery(`JOIN payment_attempts`).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`FROM bookings WHERE last_order_id =`).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByOrderID("nope")
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
	})
}

func TestNewBookingCodeFormat(t *testing.T) {
	code := newBookingCode(12)
	assert.Regexp(t, regexp.MustCompile(`^BK\d{6}-12-\d{4}$`), code)

	// consecutive codes for the same trip should not collide in practice
	other := newBookingCode(12)
	if code == other {
		t.Logf("random suffix collided (possible but rare): %s", code)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pqUniqueViolation))
	assert.False(t, isUniqueViolation(errors.New("something else")))
}
