package booking

import (
	"court-booking-server/models"
)

// StatusGuide is the customer-facing explanation of a status.
type StatusGuide struct {
	Label        string   `json:"label"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Actions      []string `json:"actions"`
	Restrictions []string `json:"restrictions"`
}

var statusGuides = map[models.BookingStatus]StatusGuide{
	models.BookingStatusPending: {
		Label:        "Pending",
		Title:        "Waiting for confirmation",
		Description:  "Your booking is waiting for payment or staff confirmation.",
		Actions:      []string{"pay", "cancel"},
		Restrictions: []string{"Cancellation closes shortly before the start time"},
	},
	models.BookingStatusConfirmed: {
		Label:        "Confirmed",
		Title:        "Booking confirmed",
		Description:  "Show the check-in code at the front desk when you arrive.",
		Actions:      []string{"view_checkin_code"},
		Restrictions: []string{"Contact staff to cancel a confirmed booking"},
	},
	models.BookingStatusInUse: {
		Label:        "In use",
		Title:        "Court in use",
		Description:  "You are checked in. Enjoy your game.",
		Actions:      []string{"view_checkin_code"},
		Restrictions: []string{"The booking can no longer be cancelled"},
	},
	models.BookingStatusCompleted: {
		Label:       "Completed",
		Title:       "Booking completed",
		Description: "Thanks for playing with us.",
		Actions:     []string{"view_receipt"},
	},
	models.BookingStatusCancelled: {
		Label:       "Cancelled",
		Title:       "Booking cancelled",
		Description: "This booking was cancelled. Refunds are processed by staff.",
	},
	models.BookingStatusCancelledRefunded: {
		Label:       "Refunded",
		Title:       "Cancelled and refunded",
		Description: "This booking was cancelled and the payment refunded.",
	},
	models.BookingStatusNoShow: {
		Label:       "No-show",
		Title:       "Missed booking",
		Description: "The court was not used. Any deposit is forfeited.",
	},
}

// GuideFor returns the guide for s.
func GuideFor(s models.BookingStatus) StatusGuide {
	if g, ok := statusGuides[s]; ok {
		return g
	}
	return StatusGuide{Label: string(s), Title: string(s)}
}

var paymentLabels = map[models.PaymentStatus]string{
	models.PaymentStatusUnpaid:   "Unpaid",
	models.PaymentStatusPartial:  "Partially paid",
	models.PaymentStatusPaid:     "Paid",
	models.PaymentStatusRefunded: "Refunded",
}

func PaymentLabel(s models.PaymentStatus) string {
	if l, ok := paymentLabels[s]; ok {
		return l
	}
	return string(s)
}

// Capabilities are the admin actions currently open on a booking.
type Capabilities struct {
	CanConfirm     bool `json:"can_confirm"`
	CanCancel      bool `json:"can_cancel"`
	CanAddNote     bool `json:"can_add_note"`
	CanCheckin     bool `json:"can_checkin"`
	CanComplete    bool `json:"can_complete"`
	CanRefund      bool `json:"can_refund"`
	CanNoShow      bool `json:"can_no_show"`
	CanViewReceipt bool `json:"can_view_receipt"`
}

func (m *Machine) AdminCapabilities(b *models.Booking) Capabilities {
	admin := models.Actor{Role: models.RoleAdmin}
	ok := func(ev Event) bool { return m.Can(b, ev, admin) == nil }
	return Capabilities{
		CanConfirm:     ok(EventConfirm),
		CanCancel:      ok(EventCancel),
		CanAddNote:     b.Status != models.BookingStatusCompleted,
		CanCheckin:     ok(EventCheckin),
		CanComplete:    ok(EventComplete),
		CanRefund:      ok(EventRefund),
		CanNoShow:      ok(EventNoShow),
		CanViewReceipt: b.PaymentStatus == models.PaymentStatusPaid,
	}
}

// CancelPolicy describes whether the caller can still cancel.
type CancelPolicy struct {
	WindowHours     int     `json:"window_hours"`
	HoursUntilStart float64 `json:"hours_until_start"`
	CanCancel       bool    `json:"can_cancel"`
}

func (m *Machine) CancelPolicy(b *models.Booking, actor models.Actor) CancelPolicy {
	return CancelPolicy{
		WindowHours:     m.rules.CancelBeforeHours,
		HoursUntilStart: roundTo(m.HoursUntilStart(b), 2),
		CanCancel:       m.Can(b, EventCancel, actor) == nil,
	}
}

// AvailableActions lists what actor may do next from a client.
func (m *Machine) AvailableActions(b *models.Booking, actor models.Actor) []string {
	actions := []string{}
	if m.Can(b, EventCancel, actor) == nil {
		actions = append(actions, "cancel")
	}
	if b.PaymentStatus == models.PaymentStatusUnpaid &&
		(b.Status == models.BookingStatusPending || b.Status == models.BookingStatusConfirmed) {
		actions = append(actions, "pay")
	}
	if ShowsCheckinCode(b.Status) {
		actions = append(actions, "view_checkin_code")
	}
	if b.PaymentStatus == models.PaymentStatusPaid {
		actions = append(actions, "view_receipt")
	}
	return actions
}

// ShowsCheckinCode reports whether the check-in code is revealed in status s.
func ShowsCheckinCode(s models.BookingStatus) bool {
	return s == models.BookingStatusConfirmed || s == models.BookingStatusInUse
}
