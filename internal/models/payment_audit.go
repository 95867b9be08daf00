package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated        PaymentEventType = "payment_initiated"
	PaymentEventResponse         PaymentEventType = "payment_response"
	PaymentEventSuccess          PaymentEventType = "payment_success"
	PaymentEventFailed           PaymentEventType = "payment_failed"
	PaymentEventWebhookDuplicate PaymentEventType = "webhook_duplicate"
	PaymentEventWebhookIgnored   PaymentEventType = "webhook_ignored"
	PaymentEventReturnVisit      PaymentEventType = "return_visit"
	PaymentEventError            PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend     PaymentEventSource = "backend"
	PaymentSourceMoMoWebhook PaymentEventSource = "momo_webhook"
	PaymentSourceUserReturn  PaymentEventSource = "user_return"
)

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	BookingCode *string            `json:"booking_code,omitempty" db:"booking_code"`
	OrderID     *string            `json:"order_id,omitempty" db:"order_id"`
	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`
	ResultCode  *int               `json:"result_code,omitempty" db:"result_code"`
	Amount      *int64             `json:"amount,omitempty" db:"amount"`
	RawBody     *string            `json:"raw_body,omitempty" db:"raw_body"`
	IPAddress   *string            `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   *string            `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBookingCode sets the booking code for the audit
func (pa *PaymentAudit) SetBookingCode(code string) *PaymentAudit {
	pa.BookingCode = &code
	return pa
}

// SetOrderID sets the gateway order ID
func (pa *PaymentAudit) SetOrderID(orderID string) *PaymentAudit {
	pa.OrderID = &orderID
	return pa
}

// SetResultCode sets the gateway result code
func (pa *PaymentAudit) SetResultCode(code int) *PaymentAudit {
	pa.ResultCode = &code
	return pa
}

// SetAmount sets the amount involved in the event
func (pa *PaymentAudit) SetAmount(amount int64) *PaymentAudit {
	pa.Amount = &amount
	return pa
}

// SetRawBody stores the raw request body before parsing
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	return pa
}
