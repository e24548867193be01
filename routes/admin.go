package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"court-booking-server/middleware"
	"court-booking-server/models"
	"court-booking-server/services"
)

type noteRequest struct {
	Note string `json:"note"`
}

type paymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Note          string               `json:"note"`
}

type itemsRequest struct {
	Items []services.ItemInput `json:"items"`
}

func (api *API) dashboard(c *gin.Context) {
	d, err := api.Bookings.Dashboard(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, d)
}

func (api *API) listBookings(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	page, err := api.Bookings.List(c.Request.Context(), f, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (api *API) deleteBooking(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	if err := api.Bookings.Delete(c.Request.Context(), id, middleware.ActorFrom(c)); err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// withBody runs a lifecycle action that takes the booking id and a JSON body.
func withBody[T any](api *API, action func(c *gin.Context, id uint, body T) (*services.BookingDetail, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := idParam(c, "id")
		if err != nil {
			respondError(c, api.Log, err)
			return
		}
		var body T
		if err := bind(c, &body); err != nil {
			respondError(c, api.Log, err)
			return
		}
		d, err := action(c, id, body)
		if err != nil {
			respondError(c, api.Log, err)
			return
		}
		respond(c, http.StatusOK, d)
	}
}

func (api *API) confirmBooking(c *gin.Context) {
	withBody(api, func(c *gin.Context, id uint, body services.ConfirmInput) (*services.BookingDetail, error) {
		return api.Bookings.Confirm(c.Request.Context(), id, body, middleware.ActorFrom(c))
	})(c)
}

func (api *API) checkinBooking(c *gin.Context) {
	withBody(api, func(c *gin.Context, id uint, body services.CheckinInput) (*services.BookingDetail, error) {
		return api.Bookings.Checkin(c.Request.Context(), id, body, middleware.ActorFrom(c))
	})(c)
}

func (api *API) completeBooking(c *gin.Context) {
	withBody(api, func(c *gin.Context, id uint, body noteRequest) (*services.BookingDetail, error) {
		return api.Bookings.Complete(c.Request.Context(), id, body.Note, middleware.ActorFrom(c))
	})(c)
}

func (api *API) refundBooking(c *gin.Context) {
	withBody(api, func(c *gin.Context, id uint, body noteRequest) (*services.BookingDetail, error) {
		return api.Bookings.Refund(c.Request.Context(), id, body.Note, middleware.ActorFrom(c))
	})(c)
}

func (api *API) noShowBooking(c *gin.Context) {
	withBody(api, func(c *gin.Context, id uint, body noteRequest) (*services.BookingDetail, error) {
		return api.Bookings.NoShow(c.Request.Context(), id, body.Note, middleware.ActorFrom(c))
	})(c)
}

func (api *API) addNote(c *gin.Context) {
	withBody(api, func(c *gin.Context, id uint, body services.NoteInput) (*services.BookingDetail, error) {
		return api.Bookings.AddNote(c.Request.Context(), id, body, middleware.ActorFrom(c))
	})(c)
}

func (api *API) updatePaymentStatus(c *gin.Context) {
	withBody(api, func(c *gin.Context, id uint, body paymentStatusRequest) (*services.BookingDetail, error) {
		return api.Bookings.UpdatePaymentStatus(c.Request.Context(), id, body.PaymentStatus, body.Note, middleware.ActorFrom(c))
	})(c)
}

func (api *API) upsertItems(c *gin.Context) {
	withBody(api, func(c *gin.Context, id uint, body itemsRequest) (*services.BookingDetail, error) {
		return api.Bookings.UpsertItems(c.Request.Context(), id, body.Items, middleware.ActorFrom(c))
	})(c)
}
