package services

import (
	"context"
	"errors"
)

// Event names pushed to live clients and the event bus.
const (
	EventBookingUpdated       = "booking_updated"
	EventBookingGlobalUpdated = "booking_global_updated"
)

// BookingEvent is the payload of both booking events.
type BookingEvent struct {
	BookingID     uint   `json:"booking_id"`
	Code          string `json:"code"`
	CourtID       uint   `json:"court_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Action        string `json:"action"`
}

// Notifier pushes booking changes out. Implementations must not block for long.
type Notifier interface {
	EmitGlobal(ctx context.Context, event string, payload any) error
	EmitScoped(ctx context.Context, courtID uint, event string, payload any) error
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) EmitGlobal(ctx context.Context, event string, payload any) error {
	var errs []error
	for _, n := range f {
		if err := n.EmitGlobal(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) EmitScoped(ctx context.Context, courtID uint, event string, payload any) error {
	var errs []error
	for _, n := range f {
		if err := n.EmitScoped(ctx, courtID, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
