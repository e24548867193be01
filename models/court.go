package models

import (
	"time"

	"github.com/lib/pq"
)

type CourtType string

const (
	CourtTypeIndoor  CourtType = "indoor"
	CourtTypeOutdoor CourtType = "outdoor"
	CourtTypeVIP     CourtType = "vip"
)

type CourtStatus string

const (
	CourtStatusActive      CourtStatus = "active"
	CourtStatusMaintenance CourtStatus = "maintenance"
	CourtStatusLocked      CourtStatus = "locked"
)

// Court is read-only to the booking flow.
type Court struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Code        string         `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name        string         `json:"name" gorm:"size:255;not null"`
	Type        CourtType      `json:"type" gorm:"type:varchar(10);not null;default:'outdoor';check:type IN ('indoor','outdoor','vip')"`
	Status      CourtStatus    `json:"status" gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','maintenance','locked')"`
	BasePrice   float64        `json:"base_price" gorm:"type:decimal(12,2);not null"`
	PeakPrice   float64        `json:"peak_price" gorm:"type:decimal(12,2);not null"`
	Amenities   pq.StringArray `json:"amenities" gorm:"type:text[]"`
	Description *string        `json:"description" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Court model
func (Court) TableName() string {
	return "courts"
}

// IsBookable reports whether new bookings may be placed on the court.
func (c *Court) IsBookable() bool {
	return c.Status == CourtStatusActive
}
