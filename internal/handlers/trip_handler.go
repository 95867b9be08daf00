package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/namdinh240505-spec/qlnx-backend/internal/database"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// TripHandler serves trip listings for the booking frontend
type TripHandler struct {
	tripRepo *database.TripRepository
	logger   *logrus.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(tripRepo *database.TripRepository, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		tripRepo: tripRepo,
		logger:   logger,
	}
}

// GetTrips handles GET /trips, optionally filtered by ?date=YYYY-MM-DD
func (h *TripHandler) GetTrips(c *gin.Context) {
	var trips []*models.Trip
	var err error

	if date := c.Query("date"); date != "" {
		trips, err = h.tripRepo.ListByDate(date)
	} else {
		trips, err = h.tripRepo.List()
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to list trips")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list trips"})
		return
	}

	if trips == nil {
		trips = []*models.Trip{}
	}
	c.JSON(http.StatusOK, gin.H{"data": trips})
}

// GetTripByID handles GET /trips/:id
func (h *TripHandler) GetTripByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	trip, err := h.tripRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, models.ErrTripNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
			return
		}
		h.logger.WithError(err).WithField("trip_id", id).Error("Failed to get trip")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get trip"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trip})
}
