package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/namdinh240505-spec/qlnx-backend/internal/database"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
	"github.com/namdinh240505-spec/qlnx-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler serves the booking endpoints
type BookingHandler struct {
	reservationService *services.ReservationService
	bookingRepo        *database.BookingRepository
	logger             *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(reservationService *services.ReservationService, bookingRepo *database.BookingRepository, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		reservationService: reservationService,
		bookingRepo:        bookingRepo,
		logger:             logger,
	}
}

// CreateBooking handles POST /bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Invalid request body",
			"errors":  gin.H{"body": []string{err.Error()}},
		})
		return
	}

	booking, err := h.reservationService.Reserve(&req)
	if err != nil {
		h.renderReserveError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking created",
		"data":    booking,
	})
}

func (h *BookingHandler) renderReserveError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var seatTaken *models.SeatTakenError
	var capacity *models.CapacityExceededError

	switch {
	case errors.Is(err, models.ErrTripNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Trip not found"})

	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Validation failed",
			"errors":  gin.H{validationErr.Field: []string{validationErr.Message}},
		})

	case errors.As(err, &seatTaken):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Some seats are already taken",
			"errors":  gin.H{"seat_numbers": []string{seatTaken.Error()}},
			"seats":   seatTaken.Seats,
		})

	case errors.As(err, &capacity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": capacity.Error(),
			"errors":  gin.H{"seat_numbers": []string{capacity.Error()}},
		})

	default:
		h.logger.WithError(err).Error("Failed to create booking")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create booking"})
	}
}

// GetBookings handles GET /bookings with optional trip_id, phone and
// status filters
func (h *BookingHandler) GetBookings(c *gin.Context) {
	filter := models.BookingFilter{
		Phone:  c.Query("phone"),
		Status: c.Query("status"),
	}
	if tripID := c.Query("trip_id"); tripID != "" {
		id, err := strconv.ParseInt(tripID, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid trip_id"})
			return
		}
		filter.TripID = id
	}

	bookings, err := h.bookingRepo.List(filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bookings")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to list bookings"})
		return
	}

	if bookings == nil {
		bookings = []*models.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"data": bookings})
}

// GetBookingByCode handles GET /bookings/code/:code
func (h *BookingHandler) GetBookingByCode(c *gin.Context) {
	booking, err := h.bookingRepo.FindByCode(c.Param("code"))
	if err != nil {
		if errors.Is(err, models.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Booking not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to get booking")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to get booking"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": booking})
}

// UpdateBooking handles PUT /bookings/:id for operator status changes
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid booking ID"})
		return
	}

	var req models.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Invalid request body",
			"errors":  gin.H{"status": []string{"must be one of pending, confirmed, cancelled"}},
		})
		return
	}

	switch req.Status {
	case models.BookingStatusCancelled:
		err = h.bookingRepo.CancelByID(id)
	case models.BookingStatusConfirmed:
		err = h.bookingRepo.Confirm(id)
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Bookings cannot be moved back to pending",
		})
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, models.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Booking not found"})
		case errors.Is(err, models.ErrPaidBookingCancel):
			c.JSON(http.StatusConflict, gin.H{"message": "Paid bookings cannot be cancelled without a refund"})
		default:
			h.logger.WithError(err).WithField("booking_id", id).Error("Failed to update booking")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update booking"})
		}
		return
	}

	booking, err := h.bookingRepo.FindByID(id)
	if err != nil {
		h.logger.WithError(err).WithField("booking_id", id).Error("Failed to reload booking")
		c.JSON(http.StatusOK, gin.H{"message": "Booking updated"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking updated",
		"data":    booking,
	})
}

// CancelBookingByCode handles DELETE /bookings/code/:code (customer self
// service cancel). Repeating the call returns the same success answer.
func (h *BookingHandler) CancelBookingByCode(c *gin.Context) {
	code := c.Param("code")
	if err := h.reservationService.Cancel(code); err != nil {
		switch {
		case errors.Is(err, models.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Booking not found"})
		case errors.Is(err, models.ErrPaidBookingCancel):
			c.JSON(http.StatusConflict, gin.H{"message": "Paid bookings cannot be cancelled without a refund"})
		default:
			h.logger.WithError(err).WithField("booking_code", code).Error("Failed to cancel booking")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to cancel booking"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled"})
}

// DeleteBooking handles DELETE /bookings/:id (operator hard delete)
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid booking ID"})
		return
	}

	if err := h.bookingRepo.Delete(id); err != nil {
		if errors.Is(err, models.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Booking not found"})
			return
		}
		h.logger.WithError(err).WithField("booking_id", id).Error("Failed to delete booking")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete booking"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking deleted"})
}
