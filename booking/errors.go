package booking

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Match with errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid_input")
	ErrSlotTaken             = errors.New("slot_taken")
	ErrNotFound              = errors.New("not_found")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrUpstreamFailure       = errors.New("upstream_failure")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrConflict              = errors.New("conflict")
	ErrInvalidInterval       = fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	ErrOutsideOperatingHours = fmt.Errorf("%w: requested time is outside operating hours", ErrInvalidInput)
)

// Error is a classified failure of a booking operation.
type Error struct {
	Kind      error
	Message   string
	BookingID uint
	Action    string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.BookingID != 0 {
		msg = fmt.Sprintf("%s (booking %d", msg, e.BookingID)
		if e.Action != "" {
			msg += ", action " + e.Action
		}
		msg += ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func InvalidInput(format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

func SlotTaken(message string) error {
	return &Error{Kind: ErrSlotTaken, Message: message}
}

func Forbidden(bookingID uint, action, message string) error {
	return &Error{Kind: ErrForbidden, Message: message, BookingID: bookingID, Action: action}
}

func InvalidTransition(bookingID uint, action, message string) error {
	return &Error{Kind: ErrInvalidTransition, Message: message, BookingID: bookingID, Action: action}
}

// HTTPStatus maps an error to the response code the API returns for it.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrSlotTaken),
		errors.Is(err, ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstreamFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the short machine-readable kind of err.
func KindOf(err error) string {
	for _, k := range []error{ErrInvalidInput, ErrSlotTaken, ErrNotFound, ErrForbidden, ErrInvalidTransition, ErrUpstreamFailure, ErrUnauthorized, ErrConflict} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "internal_error"
}
