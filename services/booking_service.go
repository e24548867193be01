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
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"court-booking-server/booking"
	"court-booking-server/models"
	"court-booking-server/store"
)

const maxCodeAttempts = 5

// CreateBookingInput is a booking request. Customer, discount, deposit,
// offline and payment status are staff-only.
type CreateBookingInput struct {
	CourtID         uint                 `json:"court_id" validate:"required"`
	Date            string               `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string               `json:"start_time" validate:"required,hhmm"`
	EndTime         string               `json:"end_time" validate:"required,hhmm"`
	Notes           string               `json:"notes" validate:"max=1000"`
	CustomerID      *uint                `json:"customer_id"`
	DiscountTotal   float64              `json:"discount_total" validate:"gte=0"`
	DepositRequired bool                 `json:"deposit_required"`
	DepositAmount   float64              `json:"deposit_amount" validate:"gte=0"`
	Offline         bool                 `json:"offline"`
	PaymentStatus   models.PaymentStatus `json:"payment_status" validate:"omitempty,oneof=unpaid partial paid refunded"`
}

type CancelInput struct {
	Reason string                 `json:"reason" validate:"max=500"`
	Refund *booking.RefundDetails `json:"refund"`
}

type ConfirmInput struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" validate:"omitempty,oneof=unpaid partial paid refunded"`
	Note          string               `json:"note" validate:"max=1000"`
}

type CheckinInput struct {
	At   *time.Time `json:"checkin_at"`
	Note string     `json:"note" validate:"max=1000"`
}

type NoteInput struct {
	Text   string `json:"text" validate:"required,max=2000"`
	Pinned bool   `json:"pinned"`
}

type ItemInput struct {
	EquipmentID uint            `json:"equipment_id" validate:"required"`
	Name        string          `json:"name" validate:"required,max=255"`
	Mode        models.ItemMode `json:"mode" validate:"omitempty,oneof=rent sell"`
	Quantity    int             `json:"quantity" validate:"gte=1"`
	UnitPrice   float64         `json:"unit_price" validate:"gte=0"`
}

// Settlement is a confirmed outcome from the payment gateway.
type Settlement struct {
	BookingCode   string  `json:"booking_code"`
	Success       bool    `json:"success"`
	TransactionID string  `json:"transaction_id"`
	Method        string  `json:"method"`
	Amount        float64 `json:"amount"`
}

// Invoicer keeps receipts in step with bookings that close.
type Invoicer interface {
	IssueFor(ctx context.Context, bookingID uint, actor models.Actor) (*models.Invoice, error)
	MarkRefunded(ctx context.Context, bookingID uint) error
}

// BookingService orchestrates the booking lifecycle on top of the store,
// the state machine and the notifier.
type BookingService struct {
	bookings store.Bookings
	courts   store.Courts
	machine  *booking.Machine
	notifier Notifier
	invoices Invoicer
	log      *logrus.Logger
	tracer   trace.Tracer
	validate *validator.Validate
}

func NewBookingService(bookings store.Bookings, courts store.Courts, machine *booking.Machine, notifier Notifier, log *logrus.Logger) *BookingService {
	return &BookingService{
		bookings: bookings,
		courts:   courts,
		machine:  machine,
		notifier: notifier,
		log:      log,
		tracer:   otel.Tracer("court-booking-server/services"),
		validate: newValidator(),
	}
}

// WithInvoicer issues an invoice on completion and marks it refunded on refund.
func (s *BookingService) WithInvoicer(inv Invoicer) *BookingService {
	s.invoices = inv
	return s
}

func (s *BookingService) Create(ctx context.Context, in CreateBookingInput, actor models.Actor) (*BookingDetail, error) {
	ctx, span := s.tracer.Start(ctx, "booking.create", trace.WithAttributes(attribute.Int64("court.id", int64(in.CourtID))))
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return nil, fail(span, invalid(err))
	}
	if !actor.IsAdmin() && (in.CustomerID != nil || in.DiscountTotal > 0 || in.DepositRequired) {
		return nil, fail(span, booking.Forbidden(0, string(booking.EventCreate), "only staff can set customer, discount or deposit"))
	}

	court, err := s.courts.FindByID(ctx, in.CourtID)
	if err != nil {
		return nil, fail(span, err)
	}
	if !court.IsBookable() {
		return nil, fail(span, booking.InvalidInput("court %s is not accepting bookings (%s)", court.Code, court.Status))
	}

	date, err := booking.ParseDate(in.Date)
	if err != nil {
		return nil, fail(span, err)
	}
	rules := s.machine.Rules()
	quote, err := rules.Price(court, in.StartTime, in.EndTime)
	if err != nil {
		return nil, fail(span, err)
	}
	if !actor.IsAdmin() && rules.StartsAt(date, quote.StartMinute).Before(s.machine.Now()) {
		return nil, fail(span, booking.InvalidInput("cannot book a slot that has already started"))
	}

	b := &models.Booking{
		CourtID:         court.ID,
		Date:            date,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		StartMinute:     quote.StartMinute,
		EndMinute:       quote.EndMinute,
		Hours:           booking.Hours(quote.StartMinute, quote.EndMinute),
		FieldAmount:     quote.FieldAmount,
		DiscountTotal:   in.DiscountTotal,
		Total:           booking.Total(quote.FieldAmount, 0, in.DiscountTotal),
		DepositRequired: in.DepositRequired,
		DepositAmount:   in.DepositAmount,
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		b.Notes = &notes
	}
	if actor.IsAdmin() {
		b.CustomerID = in.CustomerID
	} else {
		id := actor.ID
		b.CustomerID = &id
	}

	if _, err := s.machine.Open(b, actor, in.Offline, in.PaymentStatus, ""); err != nil {
		return nil, fail(span, err)
	}

	for attempt := 1; ; attempt++ {
		if b.Code, err = booking.NewCode(); err != nil {
			return nil, fail(span, err)
		}
		err = s.bookings.CreateIfAvailable(ctx, b)
		if !errors.Is(err, store.ErrCodeTaken) || attempt == maxCodeAttempts {
			break
		}
	}
	if err != nil {
		if errors.Is(err, booking.ErrSlotTaken) {
			s.log.WithFields(logrus.Fields{
				"court_id": b.CourtID,
				"date":     b.Day(),
				"start":    b.StartTime,
				"end":      b.EndTime,
			}).Info("🚫 Slot already taken")
		}
		return nil, fail(span, err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"code":       b.Code,
		"court_id":   b.CourtID,
		"status":     b.Status,
		"total":      b.Total,
	}).Info("✅ Booking created")

	created, err := s.bookings.FindByID(ctx, b.ID)
	if err != nil {
		return nil, fail(span, err)
	}
	s.emit(ctx, created, string(booking.EventCreate))
	return s.detail(created, actor), nil
}

func (s *BookingService) Get(ctx context.Context, id uint, actor models.Actor) (*BookingDetail, error) {
	b, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.detail(b, actor), nil
}

// load fetches a booking the actor is allowed to see.
func (s *BookingService) load(ctx context.Context, id uint, actor models.Actor) (*models.Booking, error) {
	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !b.IsOwnedBy(actor.ID) {
		return nil, booking.Forbidden(id, "view", "you can only view your own bookings")
	}
	return b, nil
}

func (s *BookingService) Cancel(ctx context.Context, id uint, in CancelInput, actor models.Actor) (*BookingDetail, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(err)
	}
	return s.transition(ctx, id, booking.EventCancel, actor, booking.Options{Reason: in.Reason, Refund: in.Refund})
}

func (s *BookingService) Confirm(ctx context.Context, id uint, in ConfirmInput, actor models.Actor) (*BookingDetail, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(err)
	}
	return s.transition(ctx, id, booking.EventConfirm, actor, booking.Options{PaymentStatus: in.PaymentStatus, Note: in.Note})
}

func (s *BookingService) Checkin(ctx context.Context, id uint, in CheckinInput, actor models.Actor) (*BookingDetail, error) {
	return s.transition(ctx, id, booking.EventCheckin, actor, booking.Options{At: in.At, Note: in.Note})
}

func (s *BookingService) Complete(ctx context.Context, id uint, note string, actor models.Actor) (*BookingDetail, error) {
	return s.transition(ctx, id, booking.EventComplete, actor, booking.Options{Note: note})
}

func (s *BookingService) Refund(ctx context.Context, id uint, note string, actor models.Actor) (*BookingDetail, error) {
	return s.transition(ctx, id, booking.EventRefund, actor, booking.Options{Note: note})
}

func (s *BookingService) NoShow(ctx context.Context, id uint, note string, actor models.Actor) (*BookingDetail, error) {
	return s.transition(ctx, id, booking.EventNoShow, actor, booking.Options{Note: note})
}

func (s *BookingService) transition(ctx context.Context, id uint, ev booking.Event, actor models.Actor, opts booking.Options) (*BookingDetail, error) {
	ctx, span := s.tracer.Start(ctx, "booking."+string(ev), trace.WithAttributes(attribute.Int64("booking.id", int64(id))))
	defer span.End()

	var from models.BookingStatus
	b, err := s.bookings.Update(ctx, id, func(b *models.Booking) error {
		from = b.Status
		_, err := s.machine.Transition(b, ev, actor, opts)
		return err
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"booking_id": id, "action": ev, "actor": actor.ID}).WithError(err).Warn("⚠️ Booking transition rejected")
		return nil, fail(span, err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"action":     ev,
		"from":       from,
		"to":         b.Status,
		"actor":      actor.ID,
	}).Info("✅ Booking transitioned")

	s.emit(ctx, b, string(ev))
	s.syncInvoice(ctx, b, ev, actor)
	return s.detail(b, actor), nil
}

// syncInvoice runs after the transition is committed, so failures are
// logged and left for an admin to retry through the invoice routes.
func (s *BookingService) syncInvoice(ctx context.Context, b *models.Booking, ev booking.Event, actor models.Actor) {
	if s.invoices == nil {
		return
	}
	var err error
	switch ev {
	case booking.EventComplete:
		_, err = s.invoices.IssueFor(ctx, b.ID, actor)
	case booking.EventRefund:
		err = s.invoices.MarkRefunded(ctx, b.ID)
	default:
		return
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"booking_id": b.ID, "action": ev}).WithError(err).Warn("⚠️ Invoice sync failed")
	}
}

func (s *BookingService) AddNote(ctx context.Context, id uint, in NoteInput, actor models.Actor) (*BookingDetail, error) {
	ctx, span := s.tracer.Start(ctx, "booking.add_note", trace.WithAttributes(attribute.Int64("booking.id", int64(id))))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, fail(span, booking.Forbidden(id, "add_note", "admin access required"))
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fail(span, booking.InvalidInput("note text is required"))
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fail(span, invalid(err))
	}
	b, err := s.bookings.Update(ctx, id, func(b *models.Booking) error {
		_, err := s.machine.AddNote(b, actor, in.Text, in.Pinned)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return s.detail(b, actor), nil
}

func (s *BookingService) UpdatePaymentStatus(ctx context.Context, id uint, status models.PaymentStatus, note string, actor models.Actor) (*BookingDetail, error) {
	ctx, span := s.tracer.Start(ctx, "booking.payment_status_update", trace.WithAttributes(attribute.Int64("booking.id", int64(id))))
	defer span.End()

	b, err := s.bookings.Update(ctx, id, func(b *models.Booking) error {
		_, err := s.machine.UpdatePaymentStatus(b, actor, status, note)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}
	s.log.WithFields(logrus.Fields{"booking_id": id, "payment_status": status, "actor": actor.ID}).Info("💳 Payment status updated")
	s.emit(ctx, b, string(booking.EventPaymentStatusUpdate))
	return s.detail(b, actor), nil
}

// OnSettlement applies a gateway outcome. Replays of a success are absorbed
// without a second history entry or notification.
func (s *BookingService) OnSettlement(ctx context.Context, st Settlement) (*models.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.settlement", trace.WithAttributes(attribute.String("booking.code", st.BookingCode)))
	defer span.End()

	fields := logrus.Fields{"code": st.BookingCode, "txn": st.TransactionID, "success": st.Success}

	b, err := s.bookings.FindByCode(ctx, st.BookingCode)
	if err != nil {
		return nil, fail(span, err)
	}
	if !st.Success {
		s.log.WithFields(fields).Info("❌ Payment not successful")
		return b, nil
	}

	applied := false
	b, err = s.bookings.Update(ctx, b.ID, func(b *models.Booking) error {
		// Items can change the total, so compare against the locked row.
		if st.Amount > 0 && math.Abs(st.Amount-b.Total) >= 1 {
			return booking.InvalidInput("settled amount %.0f does not match booking total %.0f", st.Amount, b.Total)
		}
		h, err := s.machine.Transition(b, booking.EventPaymentSuccess, models.GatewayActor, booking.Options{
			TransactionID: st.TransactionID,
			Method:        st.Method,
		})
		applied = h != nil
		return err
	})
	if err != nil {
		s.log.WithFields(fields).WithError(err).Warn("⚠️ Settlement rejected")
		return nil, fail(span, err)
	}
	if !applied {
		s.log.WithFields(fields).Info("⏭️  Settlement already applied")
		return b, nil
	}

	s.log.WithFields(fields).WithField("status", b.Status).Info("✅ Payment settled")
	s.emit(ctx, b, string(booking.EventPaymentSuccess))
	return b, nil
}

// PreparePayment returns the booking if actor may pay for it now.
func (s *BookingService) PreparePayment(ctx context.Context, id uint, actor models.Actor) (*models.Booking, error) {
	b, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus == models.PaymentStatusPaid {
		return nil, booking.InvalidTransition(id, "pay", "booking is already paid")
	}
	switch b.Status {
	case models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusInUse:
	default:
		return nil, booking.InvalidTransition(id, "pay", fmt.Sprintf("cannot pay for a %s booking", b.Status))
	}
	if b.Total <= 0 {
		return nil, booking.InvalidInput("booking total must be positive")
	}
	return b, nil
}

func (s *BookingService) List(ctx context.Context, f store.BookingFilter, actor models.Actor) (*BookingPage, error) {
	if !actor.IsAdmin() {
		return nil, booking.Forbidden(0, "list", "admin access required")
	}
	return s.page(ctx, f)
}

func (s *BookingService) MyBookings(ctx context.Context, f store.BookingFilter, actor models.Actor) (*BookingPage, error) {
	f.CustomerID = actor.ID
	return s.page(ctx, f)
}

func (s *BookingService) page(ctx context.Context, f store.BookingFilter) (*BookingPage, error) {
	f.Normalize()
	rows, total, err := s.bookings.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &BookingPage{
		Bookings: make([]BookingSummary, 0, len(rows)),
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: int((total + int64(f.Limit) - 1) / int64(f.Limit)),
		},
	}
	for i := range rows {
		out.Bookings = append(out.Bookings, summary(&rows[i]))
	}
	return out, nil
}

func (s *BookingService) Dashboard(ctx context.Context, actor models.Actor) (*Dashboard, error) {
	if !actor.IsAdmin() {
		return nil, booking.Forbidden(0, "dashboard", "admin access required")
	}
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{ByStatus: make(map[models.BookingStatus]int64)}
	for _, st := range []models.BookingStatus{
		models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusInUse,
		models.BookingStatusCompleted, models.BookingStatusCancelled, models.BookingStatusCancelledRefunded,
		models.BookingStatusNoShow,
	} {
		d.ByStatus[st] = counts[st]
		d.Total += counts[st]
	}
	return d, nil
}

// Availability lists the active bookings holding a court on a day.
func (s *BookingService) Availability(ctx context.Context, courtID uint, day string) (*DayAvailability, error) {
	if _, err := booking.ParseDate(day); err != nil {
		return nil, err
	}
	if _, err := s.courts.FindByID(ctx, courtID); err != nil {
		return nil, err
	}
	rows, err := s.bookings.ActiveOnDay(ctx, courtID, day)
	if err != nil {
		return nil, err
	}
	r := s.machine.Rules()
	out := &DayAvailability{
		CourtID:   courtID,
		Date:      day,
		OpenTime:  booking.FormatClock(r.OpenMinute),
		CloseTime: booking.FormatClock(r.CloseMinute),
		PeakStart: booking.FormatClock(r.PeakStartMinute),
		PeakEnd:   booking.FormatClock(r.PeakEndMinute),
		Booked:    make([]BookedSlot, 0, len(rows)),
	}
	for _, b := range rows {
		out.Booked = append(out.Booked, BookedSlot{StartTime: b.StartTime, EndTime: b.EndTime, Status: b.Status})
	}
	return out, nil
}

// Quote prices a prospective slot and checks whether it is free.
func (s *BookingService) Quote(ctx context.Context, courtID uint, day, start, end string) (*QuoteResult, error) {
	if _, err := booking.ParseDate(day); err != nil {
		return nil, err
	}
	court, err := s.courts.FindByID(ctx, courtID)
	if err != nil {
		return nil, err
	}
	q, err := s.machine.Rules().Price(court, start, end)
	if err != nil {
		return nil, err
	}
	free, err := s.bookings.IsSlotAvailable(ctx, booking.Slot{CourtID: courtID, Day: day, StartMinute: q.StartMinute, EndMinute: q.EndMinute})
	if err != nil {
		return nil, err
	}
	return &QuoteResult{Quote: q, Available: free}, nil
}

func (s *BookingService) Items(ctx context.Context, id uint, actor models.Actor) ([]models.BookingItem, error) {
	b, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if b.Items == nil {
		return []models.BookingItem{}, nil
	}
	return b.Items, nil
}

// UpsertItems replaces the equipment lines and recomputes the totals. Only
// confirmed or in-use bookings accept items.
func (s *BookingService) UpsertItems(ctx context.Context, id uint, in []ItemInput, actor models.Actor) (*BookingDetail, error) {
	ctx, span := s.tracer.Start(ctx, "booking.upsert_items", trace.WithAttributes(attribute.Int64("booking.id", int64(id))))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, fail(span, booking.Forbidden(id, "upsert_items", "admin access required"))
	}
	wrapper := struct {
		Items []ItemInput `json:"items" validate:"dive"`
	}{Items: in}
	if err := s.validate.Struct(wrapper); err != nil {
		return nil, fail(span, invalid(err))
	}

	items := make([]models.BookingItem, 0, len(in))
	for _, it := range in {
		mode := it.Mode
		if mode == "" {
			mode = models.ItemModeRent
		}
		items = append(items, models.BookingItem{
			EquipmentID: it.EquipmentID,
			Name:        strings.TrimSpace(it.Name),
			Mode:        mode,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    math.Round(float64(it.Quantity)*it.UnitPrice*100) / 100,
		})
	}

	b, err := s.bookings.ReplaceItems(ctx, id, items, func(b *models.Booking) error {
		if b.Status != models.BookingStatusConfirmed && b.Status != models.BookingStatusInUse {
			return booking.InvalidTransition(id, "upsert_items", "items can only be changed on confirmed or in-use bookings")
		}
		var equipment float64
		for _, it := range b.Items {
			equipment += it.Subtotal
		}
		b.EquipmentTotal = math.Round(equipment*100) / 100
		b.Total = booking.Total(b.FieldAmount, b.EquipmentTotal, b.DiscountTotal)
		uid := actor.ID
		b.LastUpdatedBy = &uid
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": id, "items": len(items), "total": b.Total}).Info("🧾 Booking items updated")
	s.emitGlobal(ctx, b, "upsert_items")
	return s.detail(b, actor), nil
}

// Delete hard-deletes a booking. Staff escape hatch outside the workflow.
func (s *BookingService) Delete(ctx context.Context, id uint, actor models.Actor) error {
	ctx, span := s.tracer.Start(ctx, "booking.delete", trace.WithAttributes(attribute.Int64("booking.id", int64(id))))
	defer span.End()

	if !actor.IsAdmin() {
		return fail(span, booking.Forbidden(id, "delete", "admin access required"))
	}
	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	if err := s.bookings.Delete(ctx, id); err != nil {
		return fail(span, err)
	}
	s.log.WithFields(logrus.Fields{"booking_id": id, "code": b.Code, "actor": actor.ID}).Warn("🗑️ Booking deleted")
	s.emitGlobal(ctx, b, "delete")
	return nil
}

func eventFor(b *models.Booking, action string) BookingEvent {
	return BookingEvent{
		BookingID:     b.ID,
		Code:          b.Code,
		CourtID:       b.CourtID,
		Date:          b.Day(),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Action:        action,
	}
}

// emit notifies court subscribers and global listeners. Delivery failures
// are logged and never fail the operation.
func (s *BookingService) emit(ctx context.Context, b *models.Booking, action string) {
	ev := eventFor(b, action)
	err := errors.Join(
		s.notifier.EmitScoped(ctx, b.CourtID, EventBookingUpdated, ev),
		s.notifier.EmitGlobal(ctx, EventBookingGlobalUpdated, ev),
	)
	s.logNotifyError(err, ev)
}

func (s *BookingService) emitGlobal(ctx context.Context, b *models.Booking, action string) {
	ev := eventFor(b, action)
	s.logNotifyError(s.notifier.EmitGlobal(ctx, EventBookingGlobalUpdated, ev), ev)
}

func (s *BookingService) logNotifyError(err error, ev BookingEvent) {
	if err == nil {
		return
	}
	s.log.WithFields(logrus.Fields{
		"booking_id": ev.BookingID,
		"action":     ev.Action,
	}).WithError(fmt.Errorf("%w: %w", booking.ErrUpstreamFailure, err)).Warn("⚠️ Booking notification failed")
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
