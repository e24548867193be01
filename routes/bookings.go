package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"court-booking-server/booking"
	"court-booking-server/middleware"
	"court-booking-server/models"
	"court-booking-server/services"
	"court-booking-server/store"
)

func (api *API) createBooking(c *gin.Context) {
	var req services.CreateBookingInput
	if err := bind(c, &req); err != nil {
		respondError(c, api.Log, err)
		return
	}
	d, err := api.Bookings.Create(c.Request.Context(), req, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusCreated, d)
}

func (api *API) getBooking(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	d, err := api.Bookings.Get(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, d)
}

func (api *API) cancelBooking(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	var req services.CancelInput
	if err := bind(c, &req); err != nil {
		respondError(c, api.Log, err)
		return
	}
	d, err := api.Bookings.Cancel(c.Request.Context(), id, req, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, d)
}

func (api *API) myBookings(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	page, err := api.Bookings.MyBookings(c.Request.Context(), f, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (api *API) bookingItems(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	items, err := api.Bookings.Items(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, items)
}

// parseFilter reads date, court_id, status, payment_status, page and limit.
func parseFilter(c *gin.Context) (store.BookingFilter, error) {
	f := store.BookingFilter{Day: c.Query("date")}
	if f.Day != "" {
		if _, err := booking.ParseDate(f.Day); err != nil {
			return f, err
		}
	}
	if s := c.Query("status"); s != "" {
		f.Status = models.BookingStatus(s)
		if !f.Status.IsValid() {
			return f, booking.InvalidInput("unknown status %q", s)
		}
	}
	if s := c.Query("payment_status"); s != "" {
		f.PaymentStatus = models.PaymentStatus(s)
		if !f.PaymentStatus.IsValid() {
			return f, booking.InvalidInput("unknown payment status %q", s)
		}
	}
	for name, dst := range map[string]*int{"page": &f.Page, "limit": &f.Limit} {
		if s := c.Query(name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return f, booking.InvalidInput("%s must be a positive integer", name)
			}
			*dst = n
		}
	}
	if s := c.Query("court_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return f, booking.InvalidInput("invalid court_id")
		}
		f.CourtID = uint(n)
	}
	return f, nil
}
