package booking

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"court-booking-server/models"
)

type Event string

const (
	EventCreate              Event = "create"
	EventConfirm             Event = "confirm"
	EventCancel              Event = "cancel"
	EventCheckin             Event = "checkin"
	EventComplete            Event = "complete"
	EventPaymentSuccess      Event = "payment_success"
	EventRefund              Event = "refund"
	EventNoShow              Event = "no_show"
	EventPaymentStatusUpdate Event = "payment_status_update"
)

const (
	defaultAdminCancelReason = "Admin cancelled"
	defaultUserCancelReason  = "Customer cancelled"
	completedNotePrefix      = "[COMPLETED] "
)

// rule lists the statuses an event may fire from and who may fire it.
type rule struct {
	from      []models.BookingStatus
	adminOnly bool
}

var transitions = map[Event]rule{
	EventConfirm:        {from: []models.BookingStatus{models.BookingStatusPending}, adminOnly: true},
	EventCancel:         {from: []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed}},
	EventCheckin:        {from: []models.BookingStatus{models.BookingStatusConfirmed}, adminOnly: true},
	EventComplete:       {from: []models.BookingStatus{models.BookingStatusInUse}, adminOnly: true},
	EventPaymentSuccess: {from: []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusInUse}},
	EventRefund:         {from: []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusCancelled}, adminOnly: true},
	EventNoShow:         {from: []models.BookingStatus{models.BookingStatusConfirmed}, adminOnly: true},
}

// RefundDetails is the customer's bank account for a refund after cancelling.
type RefundDetails struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankName      string `json:"bank_name"`
	Note          string `json:"note"`
}

// Options carries the optional inputs of a transition.
type Options struct {
	Note          string
	Reason        string
	PaymentStatus models.PaymentStatus
	At            *time.Time
	TransactionID string
	Method        string
	Refund        *RefundDetails
}

// Machine applies workflow events to bookings.
type Machine struct {
	rules Rules
	now   func() time.Time
}

func NewMachine(rules Rules) *Machine {
	return &Machine{rules: rules, now: time.Now}
}

// WithClock returns a copy of m that reads time from now.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	c := *m
	c.now = now
	return &c
}

func (m *Machine) Rules() Rules {
	return m.rules
}

func (m *Machine) Now() time.Time {
	return m.now()
}

// Open initialises a new booking and writes its first history entry. Admin
// offline bookings start confirmed and may carry a payment status.
func (m *Machine) Open(b *models.Booking, actor models.Actor, offline bool, payment models.PaymentStatus, note string) (*models.BookingStatusHistory, error) {
	b.Status = models.BookingStatusPending
	b.PaymentStatus = models.PaymentStatusUnpaid
	b.CreatedBy = models.CreatedByUser
	if b.DepositStatus == "" {
		b.DepositStatus = models.DepositStatusPending
	}

	if actor.IsAdmin() {
		b.CreatedBy = models.CreatedByAdmin
		if offline {
			b.Status = models.BookingStatusConfirmed
		}
		if payment != "" {
			if !payment.IsValid() {
				return nil, InvalidInput("unknown payment status %q", payment)
			}
			b.PaymentStatus = payment
		}
	} else if offline || payment != "" {
		return nil, Forbidden(0, string(EventCreate), "only staff can create offline bookings")
	}

	return m.record(b, EventCreate, actor, note), nil
}

// Can reports whether actor may fire ev on b, without changing b.
func (m *Machine) Can(b *models.Booking, ev Event, actor models.Actor) error {
	r, ok := transitions[ev]
	if !ok {
		return InvalidTransition(b.ID, string(ev), "unknown action")
	}

	switch ev {
	case EventPaymentSuccess:
		if !actor.IsAdmin() && actor != models.GatewayActor {
			return Forbidden(b.ID, string(ev), "payment settlement is restricted")
		}
	case EventCancel:
		if !actor.IsAdmin() && !b.IsOwnedBy(actor.ID) {
			return Forbidden(b.ID, string(ev), "you can only cancel your own bookings")
		}
	default:
		if r.adminOnly && !actor.IsAdmin() {
			return Forbidden(b.ID, string(ev), "admin access required")
		}
	}

	if !slices.Contains(r.from, b.Status) {
		return InvalidTransition(b.ID, string(ev), fmt.Sprintf("not allowed from status %s", b.Status))
	}

	switch ev {
	case EventCancel:
		if actor.IsAdmin() {
			return nil
		}
		if b.Status != models.BookingStatusPending {
			return InvalidTransition(b.ID, string(ev), "only pending bookings can be cancelled by the customer")
		}
		if !m.withinCancelWindow(b) {
			return InvalidTransition(b.ID, string(ev),
				fmt.Sprintf("bookings can only be cancelled at least %d hours before start", m.rules.CancelBeforeHours))
		}
	case EventRefund:
		if b.PaymentStatus == models.PaymentStatusUnpaid {
			return InvalidTransition(b.ID, string(ev), "booking has no payment to refund")
		}
	}
	return nil
}

// Transition fires ev on b, mutates it in place and returns the single history
// entry it appended. A replayed payment success on a paid booking returns a nil
// entry and no error.
func (m *Machine) Transition(b *models.Booking, ev Event, actor models.Actor, opts Options) (*models.BookingStatusHistory, error) {
	if ev == EventPaymentSuccess && b.PaymentStatus == models.PaymentStatusPaid {
		if !actor.IsAdmin() && actor != models.GatewayActor {
			return nil, Forbidden(b.ID, string(ev), "payment settlement is restricted")
		}
		return nil, nil
	}
	if err := m.Can(b, ev, actor); err != nil {
		return nil, err
	}

	now := m.now()
	note := strings.TrimSpace(opts.Note)

	switch ev {
	case EventConfirm:
		if opts.PaymentStatus != "" {
			if !opts.PaymentStatus.IsValid() {
				return nil, InvalidInput("unknown payment status %q", opts.PaymentStatus)
			}
			b.PaymentStatus = opts.PaymentStatus
		}
		b.Status = models.BookingStatusConfirmed

	case EventCancel:
		reason := strings.TrimSpace(opts.Reason)
		if reason == "" {
			reason = defaultUserCancelReason
			if actor.IsAdmin() {
				reason = defaultAdminCancelReason
			}
		}
		b.CancelReason = &reason
		if opts.Refund != nil {
			b.RefundAccountNo = optional(opts.Refund.AccountNumber)
			b.RefundAccountName = optional(opts.Refund.AccountName)
			b.RefundBankName = optional(opts.Refund.BankName)
			b.RefundNote = optional(opts.Refund.Note)
		}
		if b.PaymentStatus == models.PaymentStatusPaid || b.PaymentStatus == models.PaymentStatusPartial {
			b.PaymentStatus = models.PaymentStatusRefunded
		}
		if b.DepositStatus == models.DepositStatusPaid {
			b.DepositStatus = models.DepositStatusRefunded
		}
		b.Status = models.BookingStatusCancelled
		if note == "" {
			note = reason
		}

	case EventCheckin:
		at := now
		if opts.At != nil {
			at = *opts.At
		}
		b.CheckinAt = &at
		b.Status = models.BookingStatusInUse

	case EventComplete:
		b.CheckoutAt = &now
		b.PaymentStatus = models.PaymentStatusPaid
		b.Status = models.BookingStatusCompleted
		if note != "" {
			b.AdminNotes = append(b.AdminNotes, models.BookingAdminNote{
				BookingID: b.ID,
				Text:      completedNotePrefix + note,
				ByUserID:  actorID(actor),
				CreatedAt: now,
			})
		}

	case EventPaymentSuccess:
		b.PaymentStatus = models.PaymentStatusPaid
		if b.DepositRequired {
			b.DepositStatus = models.DepositStatusPaid
			if opts.Method != "" {
				b.DepositMethod = optional(opts.Method)
			}
			if opts.TransactionID != "" {
				b.DepositTxnID = optional(opts.TransactionID)
			}
		}
		if b.Status == models.BookingStatusPending {
			b.Status = models.BookingStatusConfirmed
		}
		if note == "" && opts.TransactionID != "" {
			note = "transaction " + opts.TransactionID
		}

	case EventRefund:
		b.PaymentStatus = models.PaymentStatusRefunded
		if b.DepositStatus == models.DepositStatusPaid {
			b.DepositStatus = models.DepositStatusRefunded
		}
		b.Status = models.BookingStatusCancelledRefunded

	case EventNoShow:
		if b.DepositStatus == models.DepositStatusPaid {
			b.DepositStatus = models.DepositStatusForfeited
		}
		b.Status = models.BookingStatusNoShow
	}

	return m.record(b, ev, actor, note), nil
}

// UpdatePaymentStatus overrides the payment status and writes an audit entry
// bearing the unchanged booking status.
func (m *Machine) UpdatePaymentStatus(b *models.Booking, actor models.Actor, status models.PaymentStatus, note string) (*models.BookingStatusHistory, error) {
	if !actor.IsAdmin() {
		return nil, Forbidden(b.ID, string(EventPaymentStatusUpdate), "admin access required")
	}
	if !status.IsValid() {
		return nil, InvalidInput("unknown payment status %q", status)
	}
	prev := b.PaymentStatus
	b.PaymentStatus = status
	if strings.TrimSpace(note) == "" {
		note = fmt.Sprintf("payment status %s -> %s", prev, status)
	}
	return m.record(b, EventPaymentStatusUpdate, actor, note), nil
}

// AddNote appends an admin note. Completed bookings are closed for notes.
func (m *Machine) AddNote(b *models.Booking, actor models.Actor, text string, pinned bool) (*models.BookingAdminNote, error) {
	if !actor.IsAdmin() {
		return nil, Forbidden(b.ID, "add_note", "admin access required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, InvalidInput("note text is required")
	}
	if b.Status == models.BookingStatusCompleted {
		return nil, InvalidTransition(b.ID, "add_note", "notes cannot be added to completed bookings")
	}
	b.AdminNotes = append(b.AdminNotes, models.BookingAdminNote{
		BookingID: b.ID,
		Text:      text,
		Pinned:    pinned,
		ByUserID:  actorID(actor),
		CreatedAt: m.now(),
	})
	b.LastUpdatedBy = actorID(actor)
	return &b.AdminNotes[len(b.AdminNotes)-1], nil
}

// HoursUntilStart is measured in the facility timezone.
func (m *Machine) HoursUntilStart(b *models.Booking) float64 {
	return m.rules.StartsAt(b.Date, b.StartMinute).Sub(m.now()).Hours()
}

func (m *Machine) withinCancelWindow(b *models.Booking) bool {
	return m.HoursUntilStart(b) >= float64(m.rules.CancelBeforeHours)
}

func (m *Machine) record(b *models.Booking, ev Event, actor models.Actor, note string) *models.BookingStatusHistory {
	b.StatusHistory = append(b.StatusHistory, models.BookingStatusHistory{
		BookingID: b.ID,
		Status:    b.Status,
		Action:    string(ev),
		Note:      note,
		ByUserID:  actorID(actor),
		CreatedAt: m.now(),
	})
	b.LastUpdatedBy = actorID(actor)
	return &b.StatusHistory[len(b.StatusHistory)-1]
}

func actorID(a models.Actor) *uint {
	if a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
