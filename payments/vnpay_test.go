package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-booking-server/config"
)

var testCfg = config.VNPayConfig{
	TmnCode:       "COURT01",
	HashSecret:    "SECRET",
	PaymentURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
	ReturnURL:     "http://localhost:8080/api/v1/payments/vnpay/return",
	SuccessURL:    "http://localhost:3000/payment/success",
	FailureURL:    "http://localhost:3000/payment/failure",
	ExpireMinutes: 15,
}

func newTestVNPay() *VNPay {
	v := NewVNPay(testCfg, time.FixedZone("ICT", 7*3600))
	v.now = func() time.Time { return time.Date(2025, 6, 10, 5, 0, 0, 0, time.UTC) }
	return v
}

// gatewayQuery signs params the way the gateway does on callbacks.
func gatewayQuery(params url.Values) url.Values {
	mac := hmac.New(sha512.New, []byte(testCfg.HashSecret))
	mac.Write([]byte(canonical(params)))
	out := url.Values{}
	for k, v := range params {
		out[k] = v
	}
	out.Set("vnp_SecureHash", strings.ToUpper(hex.EncodeToString(mac.Sum(nil))))
	out.Set("vnp_SecureHashType", "HmacSHA512")
	return out
}

func TestCheckoutURL(t *testing.T) {
	v := newTestVNPay()

	raw, err := v.CheckoutURL(CheckoutRequest{BookingCode: "DS12345678", Amount: 250000, ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, testCfg.PaymentURL+"?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "25000000", q.Get("vnp_Amount"))
	assert.Equal(t, "DS12345678", q.Get("vnp_TxnRef"))
	assert.Equal(t, "20250610120000", q.Get("vnp_CreateDate"))
	assert.Equal(t, "20250610121500", q.Get("vnp_ExpireDate"))
	assert.Equal(t, "COURT01", q.Get("vnp_TmnCode"))

	// The URL we hand out must verify with our own key.
	_, err = v.Verify(q)
	assert.NoError(t, err)
}

func TestCheckoutURL_Errors(t *testing.T) {
	_, err := NewVNPay(config.VNPayConfig{}, nil).CheckoutURL(CheckoutRequest{BookingCode: "DS1", Amount: 1})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = newTestVNPay().CheckoutURL(CheckoutRequest{BookingCode: "DS1", Amount: 0})
	assert.Error(t, err)
}

func TestVerify_GatewayCallback(t *testing.T) {
	v := newTestVNPay()
	q := gatewayQuery(url.Values{
		"vnp_TxnRef":            {"DS12345678"},
		"vnp_Amount":            {"25000000"},
		"vnp_ResponseCode":      {"00"},
		"vnp_TransactionStatus": {"00"},
		"vnp_TransactionNo":     {"14000001"},
		"vnp_OrderInfo":         {"Thanh toan dat san DS12345678"},
	})

	cb, err := v.Verify(q)
	require.NoError(t, err)
	assert.True(t, cb.Success())
	assert.Equal(t, "DS12345678", cb.BookingCode)
	assert.Equal(t, 250000.0, cb.Amount)
	assert.Equal(t, "14000001", cb.TransactionNo)
}

func TestVerify_Tampered(t *testing.T) {
	v := newTestVNPay()
	q := gatewayQuery(url.Values{
		"vnp_TxnRef":       {"DS12345678"},
		"vnp_Amount":       {"25000000"},
		"vnp_ResponseCode": {"00"},
	})
	q.Set("vnp_Amount", "100")

	_, err := v.Verify(q)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	q.Del("vnp_SecureHash")
	_, err = v.Verify(q)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCallback_FailedPayment(t *testing.T) {
	cb := Callback{ResponseCode: "24"}
	assert.False(t, cb.Success())
	cb = Callback{ResponseCode: "00", TransactionStatus: "02"}
	assert.False(t, cb.Success())
}

func TestResultRedirect(t *testing.T) {
	v := newTestVNPay()
	assert.Equal(t, "http://localhost:3000/payment/success?bookingId=3&status=success", v.ResultRedirect(true, 3, ""))
	assert.Contains(t, v.ResultRedirect(false, 0, "bad"), "payment/failure?message=bad&status=failed")
}
