package services

import (
	"fmt"

	"github.com/namdinh240505-spec/qlnx-backend/internal/database"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
	"github.com/namdinh240505-spec/qlnx-backend/pkg/seatset"
	"github.com/sirupsen/logrus"
)

// ReservationService validates reservation requests and drives the
// transactional seat allocator in the booking repository
type ReservationService struct {
	bookingRepo *database.BookingRepository
	logger      *logrus.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(bookingRepo *database.BookingRepository, logger *logrus.Logger) *ReservationService {
	return &ReservationService{
		bookingRepo: bookingRepo,
		logger:      logger,
	}
}

// Reserve normalizes the requested seat set and claims it atomically.
// No booking row is written unless every requested seat is granted.
func (s *ReservationService) Reserve(req *models.CreateBookingRequest) (*models.Booking, error) {
	seats, err := seatset.Normalize(req.SeatNumbers)
	if err != nil {
		return nil, &models.ValidationError{Field: "seat_numbers", Message: err.Error()}
	}

	// A seats count, when sent, must agree with the seat list
	if req.Seats > 0 && req.Seats != len(seats) {
		return nil, &models.ValidationError{
			Field:   "seats",
			Message: fmt.Sprintf("seat count %d does not match %d seat numbers", req.Seats, len(seats)),
		}
	}

	booking, err := s.bookingRepo.ReserveSeats(req.TripID, seats, req.Customer, req.Phone)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_code": booking.Code,
		"trip_id":      booking.TripID,
		"seats":        []int(booking.SeatNumbers),
	}).Info("Booking created")

	return booking, nil
}

// Cancel releases a booking's seats by public code. Repeated cancels are
// no-ops; paid bookings are refused.
func (s *ReservationService) Cancel(code string) error {
	if err := s.bookingRepo.Cancel(code); err != nil {
		return err
	}

	s.logger.WithField("booking_code", code).Info("Booking cancelled")
	return nil
}
