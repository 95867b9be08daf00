package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/namdinh240505-spec/qlnx-backend/internal/config"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Gateway result codes we act on
const (
	MoMoResultSuccess          = 0
	MoMoResultDuplicateOrderID = 41
)

const (
	momoRequestType = "captureWallet"
	momoLang        = "vi"

	// maxInitiateAttempts bounds the duplicate-orderId retry loop
	maxInitiateAttempts = 3
)

// MoMoService is the MoMo wallet gateway client. It builds signed
// create-transaction requests and retries with a fresh order ID when the
// gateway reports an order ID collision.
type MoMoService struct {
	config *config.MoMoConfig
	logger *logrus.Logger
	client *http.Client
}

// momoCreateRequest is the create-transaction payload sent to MoMo
type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

// MoMoCreateResponse is the gateway's answer to a create-transaction call
type MoMoCreateResponse struct {
	PartnerCode string `json:"partnerCode"`
	OrderID     string `json:"orderId"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	ResultCode  int    `json:"resultCode"`
	Message     string `json:"message"`
	PayURL      string `json:"payUrl"`
	Deeplink    string `json:"deeplink"`
	QRCodeURL   string `json:"qrCodeUrl"`
}

// GatewayAttempt records one create-transaction call made during Initiate.
// ResultCode is nil when the gateway could not be reached.
type GatewayAttempt struct {
	OrderID    string
	RequestID  string
	ResultCode *int
}

// NewMoMoService creates a new MoMo gateway client
func NewMoMoService(cfg *config.MoMoConfig, logger *logrus.Logger) *MoMoService {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MoMoService{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// IsConfigured reports whether gateway credentials are present
func (s *MoMoService) IsConfigured() bool {
	return s.config.PartnerCode != "" && s.config.AccessKey != "" && s.config.SecretKey != ""
}

// Initiate creates a gateway transaction for the booking. On resultCode 41
// (duplicate orderId) it mints a fresh order ID and tries again, up to
// maxInitiateAttempts calls. Every call made is returned so the caller can
// persist the attempt log, including for failures.
func (s *MoMoService) Initiate(bookingCode string, amount int64) (*MoMoCreateResponse, []GatewayAttempt, error) {
	if !s.IsConfigured() {
		return nil, nil, fmt.Errorf("payment gateway not configured: missing MoMo credentials")
	}

	attempts := make([]GatewayAttempt, 0, maxInitiateAttempts)

	for i := 1; i <= maxInitiateAttempts; i++ {
		orderID := s.NewOrderID(bookingCode)
		requestID := uuid.NewString()
		attempt := GatewayAttempt{OrderID: orderID, RequestID: requestID}

		resp, err := s.createTransaction(orderID, requestID, amount, bookingCode)
		if err != nil {
			attempts = append(attempts, attempt)
			s.logger.WithError(err).WithFields(logrus.Fields{
				"booking_code": bookingCode,
				"order_id":     orderID,
				"attempt":      i,
			}).Error("MoMo create transaction failed")
			return nil, attempts, fmt.Errorf("%w: %v", models.ErrGatewayUnreachable, err)
		}

		code := resp.ResultCode
		attempt.ResultCode = &code
		attempts = append(attempts, attempt)

		switch resp.ResultCode {
		case MoMoResultSuccess:
			s.logger.WithFields(logrus.Fields{
				"booking_code": bookingCode,
				"order_id":     orderID,
				"amount":       amount,
				"attempt":      i,
			}).Info("MoMo transaction created")
			return resp, attempts, nil

		case MoMoResultDuplicateOrderID:
			s.logger.WithFields(logrus.Fields{
				"booking_code": bookingCode,
				"order_id":     orderID,
				"attempt":      i,
			}).Warn("MoMo rejected duplicate order id, retrying with fresh id")
			continue

		default:
			s.logger.WithFields(logrus.Fields{
				"booking_code": bookingCode,
				"order_id":     orderID,
				"result_code":  resp.ResultCode,
				"message":      resp.Message,
			}).Warn("MoMo rejected transaction")
			return nil, attempts, &models.GatewayRejectedError{
				ResultCode: resp.ResultCode,
				Message:    resp.Message,
			}
		}
	}

	return nil, attempts, &models.GatewayRejectedError{
		ResultCode: MoMoResultDuplicateOrderID,
		Message:    fmt.Sprintf("gateway reported duplicate order id for %d consecutive attempts", maxInitiateAttempts),
	}
}

func (s *MoMoService) createTransaction(orderID, requestID string, amount int64, bookingCode string) (*MoMoCreateResponse, error) {
	redirectURL := s.redirectURLFor(bookingCode)
	orderInfo := fmt.Sprintf("Thanh toan ve xe #%s", bookingCode)
	extraData := ""

	request := momoCreateRequest{
		PartnerCode: s.config.PartnerCode,
		AccessKey:   s.config.AccessKey,
		RequestID:   requestID,
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   orderInfo,
		RedirectURL: redirectURL,
		IPNURL:      s.config.IPNURL,
		ExtraData:   extraData,
		RequestType: momoRequestType,
		Lang:        momoLang,
	}
	request.Signature = s.sign(request)

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	httpResp, err := s.client.Post(s.config.Endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned HTTP %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp MoMoCreateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return &resp, nil
}

// sign computes the HMAC-SHA256 signature over the field order MoMo
// mandates. The order is part of the wire contract; do not reorder.
func (s *MoMoService) sign(r momoCreateRequest) string {
	raw := strings.Join([]string{
		"accessKey=" + s.config.AccessKey,
		"amount=" + strconv.FormatInt(r.Amount, 10),
		"extraData=" + r.ExtraData,
		"ipnUrl=" + r.IPNURL,
		"orderId=" + r.OrderID,
		"orderInfo=" + r.OrderInfo,
		"partnerCode=" + r.PartnerCode,
		"redirectUrl=" + r.RedirectURL,
		"requestId=" + r.RequestID,
		"requestType=" + r.RequestType,
	}, "&")

	mac := hmac.New(sha256.New, []byte(s.config.SecretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// redirectURLFor appends the booking code to the configured redirect URL
// so the return handler can resolve the booking. The query parameter is
// part of the signed payload.
func (s *MoMoService) redirectURLFor(bookingCode string) string {
	base := s.config.RedirectURL
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + "code=" + bookingCode
}

// NewOrderID mints a globally unique gateway order ID:
// <bookingCode>-<yymmddhhmmss>-<4 random digits>
func (s *MoMoService) NewOrderID(bookingCode string) string {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	suffix := int(binary.BigEndian.Uint16(buf[:])) % 10000
	return fmt.Sprintf("%s-%s-%04d", bookingCode, time.Now().Format("060102150405"), suffix)
}
