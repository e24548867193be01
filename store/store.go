// Package store declares the persistence contracts of the booking service.
// database implements them on Postgres, store/memory in process.
package store

import (
	"context"
	"errors"
	"fmt"

	"court-booking-server/booking"
	"court-booking-server/models"
)

var (
	// ErrCodeTaken means the generated booking code already exists; retry with a new one.
	ErrCodeTaken = errors.New("booking code already in use")
	// ErrEmailTaken is returned when registering an address twice.
	ErrEmailTaken = fmt.Errorf("%w: email already registered", booking.ErrConflict)
	// ErrInvoiceCodeTaken means the generated invoice code already exists.
	ErrInvoiceCodeTaken = errors.New("invoice code already in use")
	// ErrAlreadyInvoiced is returned when a booking already has an invoice.
	ErrAlreadyInvoiced = fmt.Errorf("%w: booking already invoiced", booking.ErrConflict)
)

type BookingFilter struct {
	CourtID       uint
	CustomerID    uint
	Day           string
	Status        models.BookingStatus
	PaymentStatus models.PaymentStatus
	Page          int
	Limit         int
}

// Normalize clamps paging to sane bounds.
func (f *BookingFilter) Normalize() {
	f.Page, f.Limit = clampPage(f.Page, f.Limit)
}

func (f BookingFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type InvoiceFilter struct {
	Status     models.InvoiceStatus
	CustomerID uint
	Page       int
	Limit      int
}

func (f *InvoiceFilter) Normalize() {
	f.Page, f.Limit = clampPage(f.Page, f.Limit)
}

func (f InvoiceFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return page, min(limit, 100)
}

// Bookings persists bookings with their history, notes and items.
type Bookings interface {
	// CreateIfAvailable inserts b only if no active booking overlaps it. The
	// availability check and insert are atomic per court.
	CreateIfAvailable(ctx context.Context, b *models.Booking) error
	IsSlotAvailable(ctx context.Context, slot booking.Slot) (bool, error)
	FindByID(ctx context.Context, id uint) (*models.Booking, error)
	FindByCode(ctx context.Context, code string) (*models.Booking, error)
	// Update loads the booking exclusively, runs apply and persists the
	// result together with any history entries or notes apply appended.
	Update(ctx context.Context, id uint, apply func(b *models.Booking) error) (*models.Booking, error)
	// ReplaceItems swaps the equipment lines and runs apply to recompute totals.
	ReplaceItems(ctx context.Context, id uint, items []models.BookingItem, apply func(b *models.Booking) error) (*models.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]models.Booking, int64, error)
	ActiveOnDay(ctx context.Context, courtID uint, day string) ([]models.Booking, error)
	CountByStatus(ctx context.Context) (map[models.BookingStatus]int64, error)
	Delete(ctx context.Context, id uint) error
}

type Courts interface {
	FindByID(ctx context.Context, id uint) (*models.Court, error)
	List(ctx context.Context, activeOnly bool) ([]models.Court, error)
	Create(ctx context.Context, c *models.Court) error
	Count(ctx context.Context) (int64, error)
}

type Users interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// Invoices persists invoices with their lines.
type Invoices interface {
	// Create inserts inv and its items. It fails with ErrAlreadyInvoiced when
	// the booking has an invoice and ErrInvoiceCodeTaken on a code collision.
	Create(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, id uint) (*models.Invoice, error)
	FindByBookingID(ctx context.Context, bookingID uint) (*models.Invoice, error)
	// Update loads the invoice exclusively, runs apply and saves the header.
	Update(ctx context.Context, id uint, apply func(inv *models.Invoice) error) (*models.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, int64, error)
}
