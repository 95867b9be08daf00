package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/namdinh240505-spec/qlnx-backend/internal/database"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// RequestMeta carries request context recorded on payment audit rows
type RequestMeta struct {
	IP        string
	UserAgent string
}

// WebhookOutcome describes what a webhook delivery did to the ledger
type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
)

// InitiatePaymentResult is returned to the client after a successful
// gateway create-transaction call
type InitiatePaymentResult struct {
	OrderID   string `json:"orderId"`
	PayURL    string `json:"payUrl"`
	Deeplink  string `json:"deeplink,omitempty"`
	QRCodeURL string `json:"qrCodeUrl,omitempty"`
	Amount    int64  `json:"amount"`
}

// ReturnOutcome is the advisory result of a customer return redirect
type ReturnOutcome struct {
	Code        string
	Paid        bool
	RedirectURL string
}

// PaymentService reconciles gateway events with the booking ledger.
// The webhook is the only path that settles a payment; the customer
// return redirect reads ledger state but never writes it.
type PaymentService struct {
	bookingRepo *database.BookingRepository
	tripRepo    *database.TripRepository
	attemptRepo *database.PaymentAttemptRepository
	auditRepo   *database.PaymentAuditRepository
	momo        *MoMoService
	frontendURL string
	logger      *logrus.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	bookingRepo *database.BookingRepository,
	tripRepo *database.TripRepository,
	attemptRepo *database.PaymentAttemptRepository,
	auditRepo *database.PaymentAuditRepository,
	momo *MoMoService,
	frontendURL string,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		bookingRepo: bookingRepo,
		tripRepo:    tripRepo,
		attemptRepo: attemptRepo,
		auditRepo:   auditRepo,
		momo:        momo,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// InitiatePayment starts a gateway transaction for a booking. The charge
// is always recomputed server side from the trip price and seat count;
// the client-supplied amount is advisory and only logged when it differs.
func (s *PaymentService) InitiatePayment(ctx context.Context, code string, advisoryAmount int64, meta RequestMeta) (*InitiatePaymentResult, error) {
	booking, err := s.bookingRepo.FindByCode(code)
	if err != nil {
		return nil, err
	}

	if booking.Status == models.BookingStatusCancelled {
		return nil, models.ErrBookingCancelled
	}
	if booking.IsPaid() {
		return nil, models.ErrAlreadyPaid
	}

	trip, err := s.tripRepo.GetByID(booking.TripID)
	if err != nil {
		return nil, err
	}

	amount := trip.Price * int64(booking.SeatCount)
	if amount <= 0 {
		return nil, &models.ValidationError{Field: "amount", Message: "computed charge must be positive"}
	}

	if advisoryAmount > 0 && advisoryAmount != amount {
		s.logger.WithFields(logrus.Fields{
			"booking_code":    code,
			"client_amount":   advisoryAmount,
			"computed_amount": amount,
		}).Warn("Client amount differs from computed charge, using computed amount")
	}

	baseAttempts, err := s.attemptRepo.CountByBookingCode(code)
	if err != nil {
		return nil, err
	}

	resp, attempts, gatewayErr := s.momo.Initiate(code, amount)

	for i := range attempts {
		record := &models.PaymentAttempt{
			OrderID:         attempts[i].OrderID,
			BookingCode:     code,
			RequestID:       attempts[i].RequestID,
			RequestedAmount: amount,
			AttemptNumber:   baseAttempts + i + 1,
			ResultCode:      attempts[i].ResultCode,
		}
		if err := s.attemptRepo.Record(record); err != nil {
			s.logger.WithError(err).WithField("order_id", attempts[i].OrderID).
				Error("Failed to record payment attempt")
		}
	}

	if gatewayErr != nil {
		audit := models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceBackend).
			SetBookingCode(code).
			SetAmount(amount).
			SetMetadata(meta.IP, meta.UserAgent)
		if len(attempts) > 0 {
			audit.SetOrderID(attempts[len(attempts)-1].OrderID)
		}
		var rejected *models.GatewayRejectedError
		if errors.As(gatewayErr, &rejected) {
			audit.SetResultCode(rejected.ResultCode)
		}
		s.logAudit(ctx, audit)
		return nil, gatewayErr
	}

	orderID := attempts[len(attempts)-1].OrderID
	if err := s.bookingRepo.MarkPaymentPending(code, orderID); err != nil {
		return nil, err
	}

	s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend).
		SetBookingCode(code).
		SetOrderID(orderID).
		SetResultCode(resp.ResultCode).
		SetAmount(amount).
		SetMetadata(meta.IP, meta.UserAgent))

	return &InitiatePaymentResult{
		OrderID:   orderID,
		PayURL:    resp.PayURL,
		Deeplink:  resp.Deeplink,
		QRCodeURL: resp.QRCodeURL,
		Amount:    amount,
	}, nil
}

// HandleWebhook applies a gateway IPN to the ledger. It is the single
// authoritative writer of payment state. Replays of an already-settled
// order affect nothing and report duplicate; unknown order IDs are
// recorded and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload models.MoMoWebhookPayload, rawBody string, meta RequestMeta) (WebhookOutcome, error) {
	booking, err := s.bookingRepo.FindByOrderID(payload.OrderID)
	if err != nil {
		if errors.Is(err, models.ErrBookingNotFound) {
			s.logger.WithField("order_id", payload.OrderID).Warn("Webhook for unknown order id ignored")
			s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventWebhookIgnored, models.PaymentSourceMoMoWebhook).
				SetOrderID(payload.OrderID).
				SetResultCode(payload.ResultCode).
				SetAmount(payload.Amount).
				SetRawBody(rawBody).
				SetMetadata(meta.IP, meta.UserAgent))
			return WebhookIgnored, nil
		}
		return "", err
	}

	if payload.ResultCode == MoMoResultSuccess {
		applied, err := s.bookingRepo.MarkPaid(booking.ID, payload.Amount)
		if err != nil {
			return "", err
		}
		if !applied {
			s.logger.WithFields(logrus.Fields{
				"booking_code": booking.Code,
				"order_id":     payload.OrderID,
			}).Info("Webhook replay for settled booking, no-op")
			s.logAudit(ctx, s.webhookAudit(models.PaymentEventWebhookDuplicate, booking.Code, payload, rawBody, meta))
			return WebhookDuplicate, nil
		}

		s.logger.WithFields(logrus.Fields{
			"booking_code": booking.Code,
			"order_id":     payload.OrderID,
			"amount":       payload.Amount,
		}).Info("Payment settled by webhook")
		s.logAudit(ctx, s.webhookAudit(models.PaymentEventSuccess, booking.Code, payload, rawBody, meta))
		return WebhookApplied, nil
	}

	applied, err := s.bookingRepo.MarkPaymentFailed(booking.ID)
	if err != nil {
		return "", err
	}
	if !applied {
		s.logAudit(ctx, s.webhookAudit(models.PaymentEventWebhookDuplicate, booking.Code, payload, rawBody, meta))
		return WebhookDuplicate, nil
	}

	s.logger.WithFields(logrus.Fields{
		"booking_code": booking.Code,
		"order_id":     payload.OrderID,
		"result_code":  payload.ResultCode,
		"message":      payload.Message,
	}).Warn("Payment failed per webhook")
	s.logAudit(ctx, s.webhookAudit(models.PaymentEventFailed, booking.Code, payload, rawBody, meta))
	return WebhookApplied, nil
}

// HandleReturn processes the customer's browser returning from the
// gateway. The result code in the query string is advisory; the outcome
// shown to the customer comes from the ledger alone.
func (s *PaymentService) HandleReturn(ctx context.Context, code string, resultCode int, meta RequestMeta) *ReturnOutcome {
	paid := false
	booking, err := s.bookingRepo.FindByCode(code)
	if err != nil {
		if !errors.Is(err, models.ErrBookingNotFound) {
			s.logger.WithError(err).WithField("booking_code", code).Error("Failed to load booking on return redirect")
		}
	} else {
		paid = booking.IsPaid()
	}

	if paid == (resultCode != MoMoResultSuccess) {
		// The browser claims one outcome, the ledger another. Usually
		// just a race with the webhook, but worth a trace.
		s.logger.WithFields(logrus.Fields{
			"booking_code":       code,
			"client_result_code": resultCode,
			"ledger_paid":        paid,
		}).Warn("Return redirect disagrees with ledger state")
	}

	s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventReturnVisit, models.PaymentSourceUserReturn).
		SetBookingCode(code).
		SetResultCode(resultCode).
		SetMetadata(meta.IP, meta.UserAgent))

	ok := "0"
	if paid {
		ok = "1"
	}
	redirect := fmt.Sprintf("%s/payment/momo/result?ok=%s&code=%s", s.frontendURL, ok, url.QueryEscape(code))

	return &ReturnOutcome{
		Code:        code,
		Paid:        paid,
		RedirectURL: redirect,
	}
}

func (s *PaymentService) webhookAudit(eventType models.PaymentEventType, bookingCode string, payload models.MoMoWebhookPayload, rawBody string, meta RequestMeta) *models.PaymentAudit {
	return models.NewPaymentAudit(eventType, models.PaymentSourceMoMoWebhook).
		SetBookingCode(bookingCode).
		SetOrderID(payload.OrderID).
		SetResultCode(payload.ResultCode).
		SetAmount(payload.Amount).
		SetRawBody(rawBody).
		SetMetadata(meta.IP, meta.UserAgent)
}

func (s *PaymentService) logAudit(ctx context.Context, audit *models.PaymentAudit) {
	if err := s.auditRepo.Log(ctx, audit); err != nil {
		// Already logged with context by the repository; the payment
		// outcome itself must not depend on the audit insert.
		return
	}
}
