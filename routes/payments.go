package routes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"court-booking-server/booking"
	"court-booking-server/middleware"
	"court-booking-server/payments"
	"court-booking-server/services"
)

type vnpayCreateRequest struct {
	BookingID uint   `json:"booking_id"`
	BankCode  string `json:"bank_code"`
	Locale    string `json:"locale"`
}

func (api *API) vnpayCreate(c *gin.Context) {
	var req vnpayCreateRequest
	if err := bind(c, &req); err != nil {
		respondError(c, api.Log, err)
		return
	}
	if req.BookingID == 0 {
		respondError(c, api.Log, booking.InvalidInput("booking_id is required"))
		return
	}

	b, err := api.Bookings.PreparePayment(c.Request.Context(), req.BookingID, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	paymentURL, err := api.VNPay.CheckoutURL(payments.CheckoutRequest{
		BookingCode: b.Code,
		Amount:      b.Total,
		ClientIP:    c.ClientIP(),
		BankCode:    req.BankCode,
		Locale:      req.Locale,
	})
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			err = fmt.Errorf("%w: %v", booking.ErrUpstreamFailure, err)
		}
		respondError(c, api.Log, err)
		return
	}

	api.Log.WithFields(logrus.Fields{"booking_id": b.ID, "amount": b.Total}).Info("💳 VNPay checkout created")
	respond(c, http.StatusOK, gin.H{
		"payment_url":  paymentURL,
		"booking_id":   b.ID,
		"booking_code": b.Code,
		"amount":       b.Total,
	})
}

// vnpayReturn is where the customer's browser lands. The outcome is applied
// here too so a booking settles even if the IPN is late.
func (api *API) vnpayReturn(c *gin.Context) {
	cb, err := api.VNPay.Verify(c.Request.URL.Query())
	if err != nil {
		api.Log.WithError(err).Warn("⚠️ VNPay return rejected")
		c.Redirect(http.StatusFound, api.VNPay.ResultRedirect(false, 0, "invalid signature"))
		return
	}

	b, err := api.Bookings.OnSettlement(c.Request.Context(), settlementOf(cb))
	if err != nil {
		c.Redirect(http.StatusFound, api.VNPay.ResultRedirect(false, 0, booking.KindOf(err)))
		return
	}
	message := ""
	if !cb.Success() {
		message = "payment failed with code " + cb.ResponseCode
	}
	c.Redirect(http.StatusFound, api.VNPay.ResultRedirect(cb.Success(), b.ID, message))
}

// vnpayIPN is the server-to-server notification. The gateway reads RspCode
// to decide whether to retry.
func (api *API) vnpayIPN(c *gin.Context) {
	cb, err := api.VNPay.Verify(c.Request.URL.Query())
	if err != nil {
		api.Log.WithError(err).Warn("⚠️ VNPay IPN rejected")
		ipn(c, payments.RspBadChecksum, "Invalid signature")
		return
	}

	_, err = api.Bookings.OnSettlement(c.Request.Context(), settlementOf(cb))
	switch {
	case err == nil && cb.Success():
		ipn(c, payments.RspConfirmed, "Confirm Success")
	case err == nil:
		ipn(c, payments.RspPaymentFailed, "Payment not successful")
	case errors.Is(err, booking.ErrNotFound):
		ipn(c, payments.RspOrderNotFound, "Order not found")
	case errors.Is(err, booking.ErrInvalidInput):
		ipn(c, payments.RspInvalidAmount, "Invalid amount")
	case errors.Is(err, booking.ErrInvalidTransition):
		ipn(c, payments.RspPaymentFailed, "Order cannot accept payment")
	default:
		api.Log.WithError(err).Error("❌ VNPay IPN failed")
		ipn(c, payments.RspUnknownFailure, "Unknown error")
	}
}

func ipn(c *gin.Context, code, message string) {
	c.JSON(http.StatusOK, gin.H{"RspCode": code, "Message": message})
}

func settlementOf(cb payments.Callback) services.Settlement {
	return services.Settlement{
		BookingCode:   cb.BookingCode,
		Success:       cb.Success(),
		TransactionID: cb.TransactionNo,
		Method:        "vnpay",
		Amount:        cb.Amount,
	}
}
