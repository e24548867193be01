// Package payments signs VNPay checkout URLs and verifies gateway callbacks.
package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"court-booking-server/config"
)

const (
	vnpVersion    = "2.1.0"
	vnpDateLayout = "20060102150405"
	successCode   = "00"
)

// IPN acknowledgement codes expected by the gateway.
const (
	RspConfirmed      = "00"
	RspOrderNotFound  = "01"
	RspPaymentFailed  = "02"
	RspInvalidAmount  = "04"
	RspBadChecksum    = "97"
	RspUnknownFailure = "99"
)

var (
	ErrNotConfigured    = errors.New("vnpay is not configured")
	ErrInvalidSignature = errors.New("vnpay signature mismatch")
)

// CheckoutRequest describes one payment attempt for a booking.
type CheckoutRequest struct {
	BookingCode string
	Amount      float64
	ClientIP    string
	BankCode    string
	Locale      string
}

// Callback is a verified gateway result from the return URL or IPN.
type Callback struct {
	BookingCode       string
	Amount            float64
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
}

// Success reports whether the gateway captured the payment.
func (c Callback) Success() bool {
	return c.ResponseCode == successCode && (c.TransactionStatus == "" || c.TransactionStatus == successCode)
}

type VNPay struct {
	cfg config.VNPayConfig
	loc *time.Location
	now func() time.Time
}

// NewVNPay builds a client that stamps dates in loc, the gateway's local time.
func NewVNPay(cfg config.VNPayConfig, loc *time.Location) *VNPay {
	if loc == nil {
		loc = time.FixedZone("ICT", 7*3600)
	}
	return &VNPay{cfg: cfg, loc: loc, now: time.Now}
}

func (v *VNPay) Enabled() bool {
	return v.cfg.Enabled()
}

// CheckoutURL returns the signed redirect URL for req.
func (v *VNPay) CheckoutURL(req CheckoutRequest) (string, error) {
	if !v.Enabled() {
		return "", ErrNotConfigured
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("amount must be positive, got %.2f", req.Amount)
	}

	now := v.now().In(v.loc)
	expire := time.Duration(v.cfg.ExpireMinutes) * time.Minute
	locale := req.Locale
	if locale == "" {
		locale = "vn"
	}
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := url.Values{}
	params.Set("vnp_Version", vnpVersion)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	params.Set("vnp_Locale", locale)
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", req.BookingCode)
	params.Set("vnp_OrderInfo", "Thanh toan dat san "+req.BookingCode)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Amount", strconv.FormatInt(int64(math.Round(req.Amount*100)), 10))
	params.Set("vnp_ReturnUrl", v.cfg.ReturnURL)
	params.Set("vnp_IpAddr", ip)
	params.Set("vnp_CreateDate", now.Format(vnpDateLayout))
	params.Set("vnp_ExpireDate", now.Add(expire).Format(vnpDateLayout))
	if req.BankCode != "" {
		params.Set("vnp_BankCode", req.BankCode)
	}

	query := canonical(params)
	return v.cfg.PaymentURL + "?" + query + "&vnp_SecureHash=" + v.sign(query), nil
}

// Verify checks the signature of a gateway callback and decodes it.
func (v *VNPay) Verify(query url.Values) (Callback, error) {
	if !v.Enabled() {
		return Callback{}, ErrNotConfigured
	}
	got := query.Get("vnp_SecureHash")

	params := url.Values{}
	for k, vals := range query {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" || !strings.HasPrefix(k, "vnp_") || len(vals) == 0 {
			continue
		}
		params.Set(k, vals[0])
	}
	want := v.sign(canonical(params))
	if got == "" || !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return Callback{}, ErrInvalidSignature
	}

	cb := Callback{
		BookingCode:       params.Get("vnp_TxnRef"),
		ResponseCode:      params.Get("vnp_ResponseCode"),
		TransactionStatus: params.Get("vnp_TransactionStatus"),
		TransactionNo:     params.Get("vnp_TransactionNo"),
		BankCode:          params.Get("vnp_BankCode"),
	}
	if raw := params.Get("vnp_Amount"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Callback{}, fmt.Errorf("vnp_Amount %q: %w", raw, err)
		}
		cb.Amount = float64(n) / 100
	}
	return cb, nil
}

// ResultRedirect is the front-end page a customer lands on after paying.
func (v *VNPay) ResultRedirect(success bool, bookingID uint, message string) string {
	base := v.cfg.FailureURL
	status := "failed"
	if success {
		base, status = v.cfg.SuccessURL, "success"
	}
	q := url.Values{}
	q.Set("status", status)
	if bookingID != 0 {
		q.Set("bookingId", strconv.FormatUint(uint64(bookingID), 10))
	}
	if message != "" {
		q.Set("message", message)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

func (v *VNPay) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(v.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonical renders params sorted by key and query-escaped, which is the
// string the gateway signs.
func canonical(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(k)))
	}
	return b.String()
}
