package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
	"github.com/namdinh240505-spec/qlnx-backend/internal/services"
	"github.com/namdinh240505-spec/qlnx-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// PaymentHandler serves the gateway-facing payment endpoints
type PaymentHandler struct {
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IP:        utils.GetRealIP(c),
		UserAgent: utils.SummarizeUserAgent(c.Request.UserAgent()),
	}
}

// InitPayment handles POST /payments/init
func (h *PaymentHandler) InitPayment(c *gin.Context) {
	var req models.InitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"ok":      false,
			"message": "Booking code is required",
		})
		return
	}

	result, err := h.paymentService.InitiatePayment(c.Request.Context(), req.Code, req.Amount, requestMeta(c))
	if err != nil {
		h.renderInitError(c, req.Code, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"orderId":   result.OrderID,
		"payUrl":    result.PayURL,
		"deeplink":  result.Deeplink,
		"qrCodeUrl": result.QRCodeURL,
		"amount":    result.Amount,
	})
}

func (h *PaymentHandler) renderInitError(c *gin.Context, code string, err error) {
	var rejected *models.GatewayRejectedError
	var validationErr *models.ValidationError

	switch {
	case errors.Is(err, models.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "message": "Booking not found"})

	case errors.Is(err, models.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "message": "Booking is already paid"})

	case errors.Is(err, models.ErrBookingCancelled):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "message": "Booking is cancelled"})

	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "message": validationErr.Message})

	case errors.Is(err, models.ErrGatewayUnreachable):
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "message": "Payment gateway unreachable"})

	case errors.As(err, &rejected):
		// The gateway answered and said no; relay its verdict
		c.JSON(http.StatusOK, gin.H{
			"ok":         false,
			"resultCode": rejected.ResultCode,
			"message":    rejected.Message,
		})

	default:
		h.logger.WithError(err).WithField("booking_code", code).Error("Failed to initiate payment")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "Failed to initiate payment"})
	}
}

// Webhook handles POST /payments/webhook, MoMo's server-to-server IPN.
// MoMo retries until it sees HTTP 200, so every durably handled delivery
// is acknowledged with 200, including replays and unknown order IDs.
// Only an internal failure returns 500, which asks the gateway to retry.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"resultCode": 0, "message": "OK"})
		return
	}

	var payload models.MoMoWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil || payload.OrderID == "" {
		h.logger.WithField("body", string(rawBody)).Warn("Malformed webhook payload acknowledged and ignored")
		c.JSON(http.StatusOK, gin.H{"resultCode": 0, "message": "OK"})
		return
	}

	outcome, err := h.paymentService.HandleWebhook(c.Request.Context(), payload, string(rawBody), requestMeta(c))
	if err != nil {
		h.logger.WithError(err).WithField("order_id", payload.OrderID).Error("Webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"resultCode": 99, "message": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resultCode": 0,
		"message":    "OK",
		"status":     string(outcome),
	})
}

// Return handles GET /payments/return, the customer's browser coming back
// from the gateway. It never writes payment state; the redirect reflects
// the ledger as settled (or not) by the webhook.
func (h *PaymentHandler) Return(c *gin.Context) {
	code := c.Query("code")
	resultCode, convErr := strconv.Atoi(c.DefaultQuery("resultCode", "-1"))
	if convErr != nil {
		resultCode = -1
	}

	if code == "" {
		c.Redirect(http.StatusFound, h.paymentService.HandleReturn(c.Request.Context(), "", resultCode, requestMeta(c)).RedirectURL)
		return
	}

	outcome := h.paymentService.HandleReturn(c.Request.Context(), code, resultCode, requestMeta(c))

	h.logger.WithFields(logrus.Fields{
		"booking_code": outcome.Code,
		"paid":         outcome.Paid,
	}).Info("Payment return redirect")

	c.Redirect(http.StatusFound, outcome.RedirectURL)
}
