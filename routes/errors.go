package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"court-booking-server/booking"
)

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError maps a classified error onto the API error body. Unclassified
// errors are logged and hidden behind a generic message.
func respondError(c *gin.Context, log *logrus.Logger, err error) {
	status := booking.HTTPStatus(err)
	kind := booking.KindOf(err)
	message := err.Error()

	var be *booking.Error
	if errors.As(err, &be) && be.Message != "" {
		message = be.Message
	}
	if status >= http.StatusInternalServerError {
		log.WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).WithError(err).Error("❌ Request failed")
		if status == http.StatusInternalServerError {
			message = "Something went wrong"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

// bind decodes the JSON body into v. An empty body leaves v untouched.
func bind(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil {
		return booking.InvalidInput("malformed request body: %s", err.Error())
	}
	return nil
}

func idParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, booking.InvalidInput("invalid %s", name)
	}
	return uint(id), nil
}
