package models

import "time"

// PaymentAttempt records one outbound create-transaction call to the
// gateway. Every attempt keeps its own order ID; order IDs are never
// reused, even when the gateway rejects one as a duplicate.
type PaymentAttempt struct {
	ID              int64     `json:"id" db:"id"`
	OrderID         string    `json:"order_id" db:"order_id"`
	BookingCode     string    `json:"booking_code" db:"booking_code"`
	RequestID       string    `json:"request_id" db:"request_id"`
	RequestedAmount int64     `json:"requested_amount" db:"requested_amount"`
	AttemptNumber   int       `json:"attempt_number" db:"attempt_number"`
	ResultCode      *int      `json:"result_code,omitempty" db:"result_code"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// InitPaymentRequest is the payload for starting a gateway payment.
// Amount is advisory only; the server recomputes the charge from the
// trip price and seat count.
type InitPaymentRequest struct {
	Code   string `json:"code" binding:"required"`
	Amount int64  `json:"amount"`
}

// MoMoWebhookPayload is the IPN body MoMo posts after a wallet transaction
type MoMoWebhookPayload struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}
