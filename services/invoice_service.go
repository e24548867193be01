package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"court-booking-server/booking"
	"court-booking-server/models"
	"court-booking-server/store"
)

type IssueInvoiceInput struct {
	Method models.PaymentMethod `json:"method" validate:"omitempty,oneof=cash transfer momo vnpay qr"`
	Note   string               `json:"note" validate:"max=1000"`
}

type InvoiceStatusInput struct {
	Status       models.InvoiceStatus `json:"status" validate:"required,oneof=paid unpaid pending refunded cancelled"`
	Method       models.PaymentMethod `json:"method" validate:"omitempty,oneof=cash transfer momo vnpay qr"`
	GatewayTxnID string               `json:"gateway_txn_id" validate:"max=64"`
	PaidAt       *time.Time           `json:"paid_at"`
}

type InvoicePage struct {
	Invoices   []models.Invoice `json:"invoices"`
	Pagination Pagination       `json:"pagination"`
}

// InvoiceService issues receipts from booking totals and tracks their
// payment status.
type InvoiceService struct {
	invoices store.Invoices
	bookings store.Bookings
	machine  *booking.Machine
	log      *logrus.Logger
	tracer   trace.Tracer
	validate *validator.Validate
}

var _ Invoicer = (*InvoiceService)(nil)

func NewInvoiceService(invoices store.Invoices, bookings store.Bookings, machine *booking.Machine, log *logrus.Logger) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		bookings: bookings,
		machine:  machine,
		log:      log,
		tracer:   otel.Tracer("court-booking-server/services"),
		validate: newValidator(),
	}
}

// Issue creates the invoice of a completed booking, or of a confirmed or
// in-use booking that is already paid.
func (s *InvoiceService) Issue(ctx context.Context, bookingID uint, in IssueInvoiceInput, actor models.Actor) (*models.Invoice, error) {
	ctx, span := s.tracer.Start(ctx, "invoice.issue", trace.WithAttributes(attribute.Int64("booking.id", int64(bookingID))))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, fail(span, booking.Forbidden(bookingID, "invoice", "admin access required"))
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fail(span, invalid(err))
	}
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fail(span, err)
	}
	switch b.Status {
	case models.BookingStatusCompleted:
	case models.BookingStatusConfirmed, models.BookingStatusInUse:
		if b.PaymentStatus != models.PaymentStatusPaid {
			return nil, fail(span, booking.InvalidTransition(bookingID, "invoice", "only paid bookings can be invoiced before completion"))
		}
	default:
		return nil, fail(span, booking.InvalidTransition(bookingID, "invoice", fmt.Sprintf("cannot invoice a %s booking", b.Status)))
	}

	inv, err := s.create(ctx, b, in, actor)
	if err != nil {
		return nil, fail(span, err)
	}
	return inv, nil
}

// IssueFor invoices a booking that has just completed. An existing invoice
// is returned as is.
func (s *InvoiceService) IssueFor(ctx context.Context, bookingID uint, actor models.Actor) (*models.Invoice, error) {
	if inv, err := s.invoices.FindByBookingID(ctx, bookingID); err == nil {
		return inv, nil
	} else if !errors.Is(err, booking.ErrNotFound) {
		return nil, err
	}
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	inv, err := s.create(ctx, b, IssueInvoiceInput{}, actor)
	if errors.Is(err, store.ErrAlreadyInvoiced) {
		return s.invoices.FindByBookingID(ctx, bookingID)
	}
	return inv, err
}

func (s *InvoiceService) create(ctx context.Context, b *models.Booking, in IssueInvoiceInput, actor models.Actor) (*models.Invoice, error) {
	inv := invoiceFor(b, in, s.machine.Now())
	if actor.ID != 0 {
		id := actor.ID
		inv.IssuedBy = &id
	}

	day := s.machine.Now().In(s.machine.Rules().Location)
	for attempt := 1; ; attempt++ {
		code, err := booking.NewInvoiceCode(day)
		if err != nil {
			return nil, err
		}
		inv.Code = code
		err = s.invoices.Create(ctx, inv)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrInvoiceCodeTaken) || attempt == maxCodeAttempts {
			return nil, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"invoice_id": inv.ID,
		"code":       inv.Code,
		"booking_id": b.ID,
		"total":      inv.Total,
		"status":     inv.Status,
	}).Info("🧾 Invoice issued")
	return inv, nil
}

// invoiceFor builds the invoice header and lines from the booking totals.
func invoiceFor(b *models.Booking, in IssueInvoiceInput, now time.Time) *models.Invoice {
	inv := &models.Invoice{
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		Total:      b.Total,
		Discount:   b.DiscountTotal,
		Method:     in.Method,
		Status:     models.InvoiceStatusUnpaid,
	}
	if inv.Method == "" {
		inv.Method = models.PaymentMethodCash
		if b.DepositMethod != nil && models.PaymentMethod(*b.DepositMethod).IsValid() {
			inv.Method = models.PaymentMethod(*b.DepositMethod)
		}
	}
	if b.PaymentStatus == models.PaymentStatusPaid {
		inv.Status = models.InvoiceStatusPaid
		inv.PaidAt = &now
	}
	inv.GatewayTxnID = b.DepositTxnID
	if note := strings.TrimSpace(in.Note); note != "" {
		inv.Note = &note
	}

	court := fmt.Sprintf("#%d", b.CourtID)
	if b.Court != nil {
		court = b.Court.Name
	}
	hours := b.Hours
	if hours <= 0 {
		hours = booking.Hours(b.StartMinute, b.EndMinute)
	}
	price := 0.0
	if hours > 0 {
		price = round2(b.FieldAmount / hours)
	}
	inv.Items = append(inv.Items, models.InvoiceItem{
		Name:     fmt.Sprintf("Court %s %s %s-%s", court, b.Day(), b.StartTime, b.EndTime),
		Qty:      hours,
		Unit:     "hour",
		Price:    price,
		Type:     models.InvoiceItemField,
		Subtotal: b.FieldAmount,
	})
	for _, it := range b.Items {
		kind := models.InvoiceItemRental
		if it.Mode == models.ItemModeSell {
			kind = models.InvoiceItemSale
		}
		inv.Items = append(inv.Items, models.InvoiceItem{
			Name:     it.Name,
			Qty:      float64(it.Quantity),
			Unit:     "pcs",
			Price:    it.UnitPrice,
			Type:     kind,
			Subtotal: it.Subtotal,
		})
	}
	return inv
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MarkRefunded flags the booking's invoice as refunded. Bookings without an
// invoice are ignored.
func (s *InvoiceService) MarkRefunded(ctx context.Context, bookingID uint) error {
	inv, err := s.invoices.FindByBookingID(ctx, bookingID)
	if errors.Is(err, booking.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.invoices.Update(ctx, inv.ID, func(inv *models.Invoice) error {
		inv.Status = models.InvoiceStatusRefunded
		return nil
	})
	return err
}

func (s *InvoiceService) Get(ctx context.Context, id uint, actor models.Actor) (*models.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (inv.CustomerID == nil || *inv.CustomerID != actor.ID) {
		return nil, booking.Forbidden(inv.BookingID, "view_invoice", "you can only view your own invoices")
	}
	return inv, nil
}

// ForBooking returns the invoice of a booking the actor may see.
func (s *InvoiceService) ForBooking(ctx context.Context, bookingID uint, actor models.Actor) (*models.Invoice, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !b.IsOwnedBy(actor.ID) {
		return nil, booking.Forbidden(bookingID, "view_invoice", "you can only view your own invoices")
	}
	return s.invoices.FindByBookingID(ctx, bookingID)
}

func (s *InvoiceService) List(ctx context.Context, f store.InvoiceFilter, actor models.Actor) (*InvoicePage, error) {
	if !actor.IsAdmin() {
		return nil, booking.Forbidden(0, "list_invoices", "admin access required")
	}
	f.Normalize()
	rows, total, err := s.invoices.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Invoice{}
	}
	return &InvoicePage{
		Invoices: rows,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: int((total + int64(f.Limit) - 1) / int64(f.Limit)),
		},
	}, nil
}

// UpdateStatus records a payment outcome on the invoice. Cancelled invoices
// are final.
func (s *InvoiceService) UpdateStatus(ctx context.Context, id uint, in InvoiceStatusInput, actor models.Actor) (*models.Invoice, error) {
	ctx, span := s.tracer.Start(ctx, "invoice.update_status", trace.WithAttributes(attribute.Int64("invoice.id", int64(id))))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, fail(span, booking.Forbidden(0, "invoice_status", "admin access required"))
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fail(span, invalid(err))
	}

	var from models.InvoiceStatus
	inv, err := s.invoices.Update(ctx, id, func(inv *models.Invoice) error {
		from = inv.Status
		if inv.Status == models.InvoiceStatusCancelled && in.Status != models.InvoiceStatusCancelled {
			return booking.InvalidTransition(inv.BookingID, "invoice_status", "invoice is cancelled")
		}
		inv.Status = in.Status
		if in.Method != "" {
			inv.Method = in.Method
		}
		if txn := strings.TrimSpace(in.GatewayTxnID); txn != "" {
			inv.GatewayTxnID = &txn
		}
		switch {
		case in.PaidAt != nil:
			inv.PaidAt = in.PaidAt
		case in.Status == models.InvoiceStatusPaid && inv.PaidAt == nil:
			now := s.machine.Now()
			inv.PaidAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.log.WithFields(logrus.Fields{"invoice_id": id, "from": from, "to": inv.Status, "actor": actor.ID}).Info("🧾 Invoice status updated")
	return inv, nil
}
