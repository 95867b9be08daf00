package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrTripNotFound is returned when a trip ID does not exist
	ErrTripNotFound = errors.New("trip not found")

	// ErrBookingNotFound is returned when a booking code or ID does not exist
	ErrBookingNotFound = errors.New("booking not found")

	// ErrAlreadyPaid is returned when a payment is initiated for a paid booking
	ErrAlreadyPaid = errors.New("booking is already paid")

	// ErrBookingCancelled is returned when a payment is initiated for a cancelled booking
	ErrBookingCancelled = errors.New("booking is cancelled")

	// ErrPaidBookingCancel is returned when a cancel is attempted on a paid booking
	ErrPaidBookingCancel = errors.New("paid booking cannot be cancelled")

	// ErrGatewayUnreachable is returned when the payment gateway cannot be reached
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
)

// ValidationError describes a rejected request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SeatTakenError is returned when one or more requested seats are already claimed
type SeatTakenError struct {
	Seats []int
}

func (e *SeatTakenError) Error() string {
	return fmt.Sprintf("seats already taken: %s", joinInts(e.Seats))
}

// CapacityExceededError is returned when a reservation would overflow the bus
type CapacityExceededError struct {
	Requested int
	Claimed   int
	Capacity  int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d requested, %d already claimed of %d seats",
		e.Requested, e.Claimed, e.Capacity)
}

// GatewayRejectedError is returned when the gateway answered but refused the request
type GatewayRejectedError struct {
	ResultCode int
	Message    string
}

func (e *GatewayRejectedError) Error() string {
	return fmt.Sprintf("gateway rejected payment (resultCode=%d): %s", e.ResultCode, e.Message)
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ", ")
}
