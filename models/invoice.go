package models

import "time"

type InvoiceStatus string

const (
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusUnpaid    InvoiceStatus = "unpaid"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusRefunded  InvoiceStatus = "refunded"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusUnpaid, InvoiceStatusPending, InvoiceStatusRefunded, InvoiceStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodMomo     PaymentMethod = "momo"
	PaymentMethodVNPay    PaymentMethod = "vnpay"
	PaymentMethodQR       PaymentMethod = "qr"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodMomo, PaymentMethodVNPay, PaymentMethodQR:
		return true
	}
	return false
}

type InvoiceItemType string

const (
	InvoiceItemField  InvoiceItemType = "field"
	InvoiceItemRental InvoiceItemType = "rental"
	InvoiceItemSale   InvoiceItemType = "sale"
)

// Invoice is the receipt issued for a booking. A booking has at most one.
type Invoice struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	Code         string        `json:"code" gorm:"size:16;uniqueIndex;not null"`
	BookingID    uint          `json:"booking_id" gorm:"not null;uniqueIndex"`
	CustomerID   *uint         `json:"customer_id" gorm:"index"`
	Total        float64       `json:"total" gorm:"type:decimal(12,2);not null"`
	Discount     float64       `json:"discount" gorm:"type:decimal(12,2);not null;default:0"`
	Method       PaymentMethod `json:"method" gorm:"type:varchar(16);not null;check:method IN ('cash','transfer','momo','vnpay','qr')"`
	Status       InvoiceStatus `json:"status" gorm:"type:varchar(16);not null;default:'paid';index;check:status IN ('paid','unpaid','pending','refunded','cancelled')"`
	PaidAt       *time.Time    `json:"paid_at"`
	GatewayTxnID *string       `json:"gateway_txn_id" gorm:"size:64"`
	Note         *string       `json:"note" gorm:"size:1000"`
	IssuedBy     *uint         `json:"issued_by"`
	CreatedAt    time.Time     `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt    time.Time     `json:"updated_at" gorm:"autoUpdateTime"`

	Items []InvoiceItem `json:"items,omitempty" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

func (Invoice) TableName() string {
	return "invoices"
}

type InvoiceItem struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	InvoiceID uint            `json:"invoice_id" gorm:"not null;index"`
	Name      string          `json:"name" gorm:"size:255;not null"`
	Qty       float64         `json:"qty" gorm:"type:decimal(8,2);not null"`
	Unit      string          `json:"unit" gorm:"size:16;not null"`
	Price     float64         `json:"price" gorm:"type:decimal(12,2);not null"`
	Type      InvoiceItemType `json:"type" gorm:"type:varchar(8);not null;check:type IN ('field','rental','sale')"`
	Subtotal  float64         `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (InvoiceItem) TableName() string {
	return "invoice_items"
}
