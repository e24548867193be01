package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"court-booking-server/booking"
)

func (api *API) listCourts(c *gin.Context) {
	courts, err := api.Courts.List(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, courts)
}

func (api *API) getCourt(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	court, err := api.Courts.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, court)
}

// courtAvailability lists the booked slots of a court on ?date=YYYY-MM-DD.
func (api *API) courtAvailability(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	date := c.Query("date")
	if date == "" {
		respondError(c, api.Log, booking.InvalidInput("date is required"))
		return
	}
	out, err := api.Bookings.Availability(c.Request.Context(), id, date)
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, out)
}

// courtQuote prices ?date=&start_time=&end_time= and reports whether it is free.
func (api *API) courtQuote(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	out, err := api.Bookings.Quote(c.Request.Context(), id, c.Query("date"), c.Query("start_time"), c.Query("end_time"))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, out)
}
