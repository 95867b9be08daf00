package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/namdinh240505-spec/qlnx-backend/internal/config"
	"github.com/namdinh240505-spec/qlnx-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMoMoConfig(endpoint string) *config.MoMoConfig {
	return &config.MoMoConfig{
		PartnerCode:    "MOMO",
		AccessKey:      "F8BBA842ECF85",
		SecretKey:      "K951B6PE1waDMi640xX08PD3vg6EkVlz",
		Endpoint:       endpoint,
		RedirectURL:    "https://shop.example.com/payment/momo/return",
		IPNURL:         "https://api.example.com/api/v1/payments/webhook",
		RequestTimeout: 5 * time.Second,
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestSign(t *testing.T) {
	cfg := testMoMoConfig("https://unused.example.com")
	service := NewMoMoService(cfg, testLogger())

	request := momoCreateRequest{
		PartnerCode: cfg.PartnerCode,
		AccessKey:   cfg.AccessKey,
		RequestID:   "REQ1",
		Amount:      50000,
		OrderID:     "ORDER1",
		OrderInfo:   "Thanh toan ve xe #BK250828-1-0042",
		RedirectURL: "https://shop.example.com/payment/momo/return?code=BK250828-1-0042",
		IPNURL:      cfg.IPNURL,
		ExtraData:   "",
		RequestType: momoRequestType,
	}

	// The signature base is a fixed field order joined by & — assemble it
	// here independently of the implementation
	base := "accessKey=F8BBA842ECF85" +
		"&amount=50000" +
		"&extraData=" +
		"&ipnUrl=https://api.example.com/api/v1/payments/webhook" +
		"&orderId=ORDER1" +
		"&orderInfo=Thanh toan ve xe #BK250828-1-0042" +
		"&partnerCode=MOMO" +
		"&redirectUrl=https://shop.example.com/payment/momo/return?code=BK250828-1-0042" +
		"&requestId=REQ1" +
		"&requestType=captureWallet"

	mac := hmac.New(sha256.New, []byte(cfg.SecretKey))
	mac.Write([]byte(base))
	expected := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, service.sign(request))
}

func TestInitiate(t *testing.T) {
	t.Run("retries with fresh order id on duplicate", func(t *testing.T) {
		var requests []momoCreateRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req momoCreateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			requests = append(requests, req)

			resp := MoMoCreateResponse{OrderID: req.OrderID, RequestID: req.RequestID, Amount: req.Amount}
			if len(requests) == 1 {
				resp.ResultCode = MoMoResultDuplicateOrderID
				resp.Message = "Duplicate orderId"
			} else {
				resp.ResultCode = MoMoResultSuccess
				resp.PayURL = "https://test-payment.momo.vn/pay/abc"
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		service := NewMoMoService(testMoMoConfig(server.URL), testLogger())

		resp, attempts, err := service.Initiate("BK250828-1-0042", 500000)
		require.NoError(t, err)

		require.Len(t, requests, 2)
		require.Len(t, attempts, 2)
		assert.NotEqual(t, attempts[0].OrderID, attempts[1].OrderID, "a rejected order id must never be resent")
		assert.NotEqual(t, attempts[0].RequestID, attempts[1].RequestID)
		require.NotNil(t, attempts[0].ResultCode)
		assert.Equal(t, MoMoResultDuplicateOrderID, *attempts[0].ResultCode)
		require.NotNil(t, attempts[1].ResultCode)
		assert.Equal(t, MoMoResultSuccess, *attempts[1].ResultCode)
		assert.Equal(t, "https://test-payment.momo.vn/pay/abc", resp.PayURL)

		for _, req := range requests {
			assert.Equal(t, int64(500000), req.Amount)
			assert.NotEmpty(t, req.Signature)
			assert.Equal(t, "captureWallet", req.RequestType)
			assert.Contains(t, req.RedirectURL, "code=BK250828-1-0042")
			assert.Contains(t, req.OrderInfo, "BK250828-1-0042")
		}
	})

	t.Run("gives up after three duplicate rejections", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			json.NewEncoder(w).Encode(MoMoCreateResponse{
				ResultCode: MoMoResultDuplicateOrderID,
				Message:    "Duplicate orderId",
			})
		}))
		defer server.Close()

		service := NewMoMoService(testMoMoConfig(server.URL), testLogger())

		_, attempts, err := service.Initiate("BK250828-1-0042", 500000)

		assert.Equal(t, 3, calls)
		assert.Len(t, attempts, 3)
		var rejected *models.GatewayRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, MoMoResultDuplicateOrderID, rejected.ResultCode)
	})

	t.Run("does not retry other rejections", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			json.NewEncoder(w).Encode(MoMoCreateResponse{
				ResultCode: 1006,
				Message:    "Transaction denied by user",
			})
		}))
		defer server.Close()

		service := NewMoMoService(testMoMoConfig(server.URL), testLogger())

		_, attempts, err := service.Initiate("BK250828-1-0042", 500000)

		assert.Equal(t, 1, calls)
		assert.Len(t, attempts, 1)
		var rejected *models.GatewayRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, 1006, rejected.ResultCode)
	})

	t.Run("reports unreachable gateway", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // connection refused from here on

		service := NewMoMoService(testMoMoConfig(server.URL), testLogger())

		_, attempts, err := service.Initiate("BK250828-1-0042", 500000)

		assert.ErrorIs(t, err, models.ErrGatewayUnreachable)
		require.Len(t, attempts, 1)
		assert.Nil(t, attempts[0].ResultCode)
	})

	t.Run("refuses to run without credentials", func(t *testing.T) {
		service := NewMoMoService(&config.MoMoConfig{}, testLogger())

		_, _, err := service.Initiate("BK250828-1-0042", 500000)
		assert.Error(t, err)
	})
}

func TestNewOrderID(t *testing.T) {
	service := NewMoMoService(testMoMoConfig("https://unused.example.com"), testLogger())

	orderID := service.NewOrderID("BK250828-1-0042")
	assert.Regexp(t, regexp.MustCompile(`^BK250828-1-0042-\d{12}-\d{4}$`), orderID)
}

func TestRedirectURLFor(t *testing.T) {
	cfg := testMoMoConfig("https://unused.example.com")
	service := NewMoMoService(cfg, testLogger())

	assert.Equal(t,
		"https://shop.example.com/payment/momo/return?code=BK1",
		service.redirectURLFor("BK1"))

	cfg.RedirectURL = "https://shop.example.com/return?src=momo"
	assert.Equal(t,
		"https://shop.example.com/return?src=momo&code=BK1",
		service.redirectURLFor("BK1"))
}
