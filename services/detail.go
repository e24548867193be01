package services

import (
	"sort"
	"time"

	"court-booking-server/booking"
	"court-booking-server/models"
)

type CourtSummary struct {
	ID   uint             `json:"id"`
	Code string           `json:"code"`
	Name string           `json:"name"`
	Type models.CourtType `json:"type"`
}

type CustomerSummary struct {
	ID       uint    `json:"id"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
}

type Schedule struct {
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Hours     float64   `json:"hours"`
	StartsAt  time.Time `json:"starts_at"`
}

type Totals struct {
	FieldAmount    float64 `json:"field_amount"`
	EquipmentTotal float64 `json:"equipment_total"`
	DiscountTotal  float64 `json:"discount_total"`
	Total          float64 `json:"total"`
}

type PaymentBlock struct {
	Status          models.PaymentStatus `json:"status"`
	Label           string               `json:"label"`
	DepositRequired bool                 `json:"deposit_required"`
	DepositAmount   float64              `json:"deposit_amount"`
	DepositStatus   models.DepositStatus `json:"deposit_status"`
	DepositMethod   *string              `json:"deposit_method,omitempty"`
	DepositTxnID    *string              `json:"deposit_txn_id,omitempty"`
}

type RefundAccount struct {
	AccountNumber *string `json:"account_number,omitempty"`
	AccountName   *string `json:"account_name,omitempty"`
	BankName      *string `json:"bank_name,omitempty"`
	Note          *string `json:"note,omitempty"`
}

type Audit struct {
	LastUpdateBy *uint            `json:"last_update_by"`
	CreatedBy    models.CreatedBy `json:"created_by"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// BookingDetail is what a single booking looks like to a client. The admin
// fields are only filled for admin callers.
type BookingDetail struct {
	ID               uint                 `json:"id"`
	Code             string               `json:"code"`
	Status           models.BookingStatus `json:"status"`
	StatusGuide      booking.StatusGuide  `json:"status_guide"`
	Court            *CourtSummary        `json:"court,omitempty"`
	Customer         *CustomerSummary     `json:"customer,omitempty"`
	Schedule         Schedule             `json:"schedule"`
	Totals           Totals               `json:"totals"`
	Payment          PaymentBlock         `json:"payment"`
	Items            []models.BookingItem `json:"items"`
	Notes            *string              `json:"notes,omitempty"`
	CancelReason     *string              `json:"cancel_reason,omitempty"`
	RefundAccount    *RefundAccount       `json:"refund_account,omitempty"`
	CheckinCode      string               `json:"checkin_code,omitempty"`
	CheckinAt        *time.Time           `json:"checkin_at,omitempty"`
	CheckoutAt       *time.Time           `json:"checkout_at,omitempty"`
	CancelPolicy     booking.CancelPolicy `json:"cancel_policy"`
	AvailableActions []string             `json:"available_actions"`
	CreatedAt        time.Time            `json:"created_at"`

	AdminNotes        []models.BookingAdminNote     `json:"admin_notes,omitempty"`
	StatusHistory     []models.BookingStatusHistory `json:"status_history,omitempty"`
	AdminCapabilities *booking.Capabilities         `json:"admin_capabilities,omitempty"`
	Audit             *Audit                        `json:"audit,omitempty"`
}

// BookingSummary is one row of a booking list.
type BookingSummary struct {
	ID            uint                 `json:"id"`
	Code          string               `json:"code"`
	Court         *CourtSummary        `json:"court,omitempty"`
	CustomerName  string               `json:"customer_name,omitempty"`
	Date          string               `json:"date"`
	StartTime     string               `json:"start_time"`
	EndTime       string               `json:"end_time"`
	Status        models.BookingStatus `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Total         float64              `json:"total"`
	CreatedBy     models.CreatedBy     `json:"created_by"`
	CreatedAt     time.Time            `json:"created_at"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type BookingPage struct {
	Bookings   []BookingSummary `json:"bookings"`
	Pagination Pagination       `json:"pagination"`
}

type Dashboard struct {
	Total    int64                          `json:"total"`
	ByStatus map[models.BookingStatus]int64 `json:"by_status"`
}

type BookedSlot struct {
	StartTime string               `json:"start_time"`
	EndTime   string               `json:"end_time"`
	Status    models.BookingStatus `json:"status"`
}

type DayAvailability struct {
	CourtID   uint         `json:"court_id"`
	Date      string       `json:"date"`
	OpenTime  string       `json:"open_time"`
	CloseTime string       `json:"close_time"`
	PeakStart string       `json:"peak_start"`
	PeakEnd   string       `json:"peak_end"`
	Booked    []BookedSlot `json:"booked"`
}

type QuoteResult struct {
	booking.Quote
	Available bool `json:"available"`
}

func (s *BookingService) detail(b *models.Booking, actor models.Actor) *BookingDetail {
	m := s.machine
	d := &BookingDetail{
		ID:          b.ID,
		Code:        b.Code,
		Status:      b.Status,
		StatusGuide: booking.GuideFor(b.Status),
		Schedule: Schedule{
			Date:      b.Day(),
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Hours:     b.Hours,
			StartsAt:  m.Rules().StartsAt(b.Date, b.StartMinute),
		},
		Totals: Totals{
			FieldAmount:    b.FieldAmount,
			EquipmentTotal: b.EquipmentTotal,
			DiscountTotal:  b.DiscountTotal,
			Total:          b.Total,
		},
		Payment: PaymentBlock{
			Status:          b.PaymentStatus,
			Label:           booking.PaymentLabel(b.PaymentStatus),
			DepositRequired: b.DepositRequired,
			DepositAmount:   b.DepositAmount,
			DepositStatus:   b.DepositStatus,
			DepositMethod:   b.DepositMethod,
			DepositTxnID:    b.DepositTxnID,
		},
		Items:            b.Items,
		Notes:            b.Notes,
		CancelReason:     b.CancelReason,
		CheckinAt:        b.CheckinAt,
		CheckoutAt:       b.CheckoutAt,
		CancelPolicy:     m.CancelPolicy(b, actor),
		AvailableActions: m.AvailableActions(b, actor),
		CreatedAt:        b.CreatedAt,
	}
	if d.Items == nil {
		d.Items = []models.BookingItem{}
	}
	if b.Court != nil {
		d.Court = courtSummary(b.Court)
	}
	if b.Customer != nil {
		d.Customer = &CustomerSummary{
			ID:       b.Customer.ID,
			FullName: b.Customer.FullName,
			Email:    b.Customer.Email,
			Phone:    b.Customer.PhoneNumber,
		}
	}
	if booking.ShowsCheckinCode(b.Status) {
		d.CheckinCode = b.Code
	}
	if b.RefundAccountNo != nil || b.RefundBankName != nil {
		d.RefundAccount = &RefundAccount{
			AccountNumber: b.RefundAccountNo,
			AccountName:   b.RefundAccountName,
			BankName:      b.RefundBankName,
			Note:          b.RefundNote,
		}
	}

	if actor.IsAdmin() {
		notes := append([]models.BookingAdminNote(nil), b.AdminNotes...)
		sort.SliceStable(notes, func(i, j int) bool { return notes[i].Pinned && !notes[j].Pinned })
		caps := m.AdminCapabilities(b)
		d.AdminNotes = notes
		d.StatusHistory = b.StatusHistory
		d.AdminCapabilities = &caps
		d.Audit = &Audit{
			LastUpdateBy: b.LastUpdatedBy,
			CreatedBy:    b.CreatedBy,
			UpdatedAt:    b.UpdatedAt,
		}
	}
	return d
}

func summary(b *models.Booking) BookingSummary {
	s := BookingSummary{
		ID:            b.ID,
		Code:          b.Code,
		Date:          b.Day(),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		Total:         b.Total,
		CreatedBy:     b.CreatedBy,
		CreatedAt:     b.CreatedAt,
	}
	if b.Court != nil {
		s.Court = courtSummary(b.Court)
	}
	if b.Customer != nil {
		s.CustomerName = b.Customer.FullName
	}
	return s
}

func courtSummary(c *models.Court) *CourtSummary {
	return &CourtSummary{ID: c.ID, Code: c.Code, Name: c.Name, Type: c.Type}
}
