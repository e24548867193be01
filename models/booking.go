package models

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusPending           BookingStatus = "pending"
	BookingStatusConfirmed         BookingStatus = "confirmed"
	BookingStatusInUse             BookingStatus = "in_use"
	BookingStatusCompleted         BookingStatus = "completed"
	BookingStatusCancelled         BookingStatus = "cancelled"
	BookingStatusCancelledRefunded BookingStatus = "cancelled_refunded"
	BookingStatusNoShow            BookingStatus = "no_show"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusPaid      DepositStatus = "paid"
	DepositStatusRefunded  DepositStatus = "refunded"
	DepositStatusForfeited DepositStatus = "forfeited"
)

// CreatedBy tags who opened the booking.
type CreatedBy string

const (
	CreatedByAdmin CreatedBy = "admin"
	CreatedByUser  CreatedBy = "user"
)

// IsValid reports whether s is one of the known payment statuses.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsValid reports whether s is one of the known booking statuses.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusInUse, BookingStatusCompleted,
		BookingStatusCancelled, BookingStatusCancelledRefunded, BookingStatusNoShow:
		return true
	}
	return false
}

type Booking struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Code       string    `json:"code" gorm:"size:16;uniqueIndex;not null"`
	CourtID    uint      `json:"court_id" gorm:"not null;index:idx_bookings_overlap,priority:1"`
	CustomerID *uint     `json:"customer_id" gorm:"index"`
	Date       time.Time `json:"date" gorm:"type:date;not null;index:idx_bookings_overlap,priority:2"`
	StartTime  string    `json:"start_time" gorm:"size:5;not null"`
	EndTime    string    `json:"end_time" gorm:"size:5;not null"`

	StartMinute int     `json:"start_minute" gorm:"not null;index:idx_bookings_overlap,priority:3"`
	EndMinute   int     `json:"end_minute" gorm:"not null;index:idx_bookings_overlap,priority:4"`
	Hours       float64 `json:"hours" gorm:"type:decimal(6,2);not null"`

	FieldAmount    float64 `json:"field_amount" gorm:"type:decimal(12,2);not null;default:0"`
	EquipmentTotal float64 `json:"equipment_total" gorm:"type:decimal(12,2);not null;default:0"`
	DiscountTotal  float64 `json:"discount_total" gorm:"type:decimal(12,2);not null;default:0"`
	Total          float64 `json:"total" gorm:"type:decimal(12,2);not null;default:0"`

	Status        BookingStatus `json:"status" gorm:"type:varchar(24);not null;default:'pending';index;check:status IN ('pending','confirmed','in_use','completed','cancelled','cancelled_refunded','no_show')"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(16);not null;default:'unpaid';check:payment_status IN ('unpaid','partial','paid','refunded')"`

	DepositRequired bool          `json:"deposit_required" gorm:"default:false"`
	DepositAmount   float64       `json:"deposit_amount" gorm:"type:decimal(12,2);default:0"`
	DepositStatus   DepositStatus `json:"deposit_status" gorm:"type:varchar(16);default:'pending'"`
	DepositMethod   *string       `json:"deposit_method" gorm:"size:32"`
	DepositTxnID    *string       `json:"deposit_txn_id" gorm:"size:64"`

	CreatedBy  CreatedBy  `json:"created_by" gorm:"type:varchar(8);not null;default:'user'"`
	CheckinAt  *time.Time `json:"checkin_at"`
	CheckoutAt *time.Time `json:"checkout_at"`

	CancelReason      *string `json:"cancel_reason" gorm:"size:500"`
	RefundAccountNo   *string `json:"refund_account_no" gorm:"size:64"`
	RefundAccountName *string `json:"refund_account_name" gorm:"size:255"`
	RefundBankName    *string `json:"refund_bank_name" gorm:"size:255"`
	RefundNote        *string `json:"refund_note" gorm:"size:500"`
	Notes             *string `json:"notes" gorm:"size:1000"`

	LastUpdatedBy *uint     `json:"last_updated_by"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Court         *Court                 `json:"court,omitempty" gorm:"foreignKey:CourtID"`
	Customer      *User                  `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	StatusHistory []BookingStatusHistory `json:"status_history,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
	AdminNotes    []BookingAdminNote     `json:"admin_notes,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
	Items         []BookingItem          `json:"items,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Booking model
func (Booking) TableName() string {
	return "bookings"
}

// Day returns the booking date as YYYY-MM-DD.
func (b *Booking) Day() string {
	return b.Date.Format(DateLayout)
}

// IsOwnedBy reports whether userID is the booking's customer.
func (b *Booking) IsOwnedBy(userID uint) bool {
	return b.CustomerID != nil && *b.CustomerID == userID
}

// DateLayout is the wire and storage format of booking dates.
const DateLayout = "2006-01-02"

// BookingStatusHistory is an append-only audit row. One is written per transition.
type BookingStatusHistory struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	BookingID uint          `json:"booking_id" gorm:"not null;index"`
	Status    BookingStatus `json:"status" gorm:"type:varchar(24);not null"`
	Action    string        `json:"action" gorm:"size:32;not null"`
	Note      string        `json:"note" gorm:"size:1000"`
	ByUserID  *uint         `json:"by_user_id"`
	CreatedAt time.Time     `json:"created_at"`
}

func (BookingStatusHistory) TableName() string {
	return "booking_status_histories"
}

type BookingAdminNote struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BookingID uint      `json:"booking_id" gorm:"not null;index"`
	Text      string    `json:"text" gorm:"size:2000;not null"`
	Pinned    bool      `json:"pinned" gorm:"default:false"`
	ByUserID  *uint     `json:"by_user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (BookingAdminNote) TableName() string {
	return "booking_admin_notes"
}
