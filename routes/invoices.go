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

func (api *API) listInvoices(c *gin.Context) {
	f := store.InvoiceFilter{Status: models.InvoiceStatus(c.Query("status"))}
	if f.Status != "" && !f.Status.IsValid() {
		respondError(c, api.Log, booking.InvalidInput("unknown invoice status %q", f.Status))
		return
	}
	for name, dst := range map[string]*int{"page": &f.Page, "limit": &f.Limit} {
		if s := c.Query(name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				respondError(c, api.Log, booking.InvalidInput("%s must be a positive integer", name))
				return
			}
			*dst = n
		}
	}
	if s := c.Query("customer_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			respondError(c, api.Log, booking.InvalidInput("invalid customer_id"))
			return
		}
		f.CustomerID = uint(n)
	}

	page, err := api.Invoices.List(c.Request.Context(), f, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (api *API) getInvoice(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	inv, err := api.Invoices.Get(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, inv)
}

func (api *API) bookingInvoice(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	inv, err := api.Invoices.ForBooking(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, inv)
}

func (api *API) issueInvoice(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	var req services.IssueInvoiceInput
	if err := bind(c, &req); err != nil {
		respondError(c, api.Log, err)
		return
	}
	inv, err := api.Invoices.Issue(c.Request.Context(), id, req, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusCreated, inv)
}

func (api *API) updateInvoiceStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	var req services.InvoiceStatusInput
	if err := bind(c, &req); err != nil {
		respondError(c, api.Log, err)
		return
	}
	inv, err := api.Invoices.UpdateStatus(c.Request.Context(), id, req, middleware.ActorFrom(c))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, inv)
}
