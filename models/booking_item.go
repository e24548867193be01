package models

import "time"

type ItemMode string

const (
	ItemModeRent ItemMode = "rent"
	ItemModeSell ItemMode = "sell"
)

// BookingItem is an equipment line feeding Booking.EquipmentTotal.
type BookingItem struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	BookingID   uint      `json:"booking_id" gorm:"not null;index"`
	EquipmentID uint      `json:"equipment_id" gorm:"not null"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Mode        ItemMode  `json:"mode" gorm:"type:varchar(8);not null;default:'rent';check:mode IN ('rent','sell')"`
	Quantity    int       `json:"quantity" gorm:"not null"`
	UnitPrice   float64   `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Subtotal    float64   `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (BookingItem) TableName() string {
	return "booking_items"
}
