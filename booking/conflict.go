package booking

import (
	"court-booking-server/models"
)

// Slot identifies a requested interval on a court for one day.
type Slot struct {
	CourtID     uint
	Day         string // YYYY-MM-DD
	StartMinute int
	EndMinute   int
	ExcludeID   uint
}

// IsActive reports whether a booking in status s still holds its slot.
func IsActive(s models.BookingStatus) bool {
	return s != models.BookingStatusCancelled && s != models.BookingStatusCancelledRefunded
}

// Overlaps treats intervals as half-open, so touching endpoints never collide.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// Conflicts reports whether existing blocks slot.
func (s Slot) Conflicts(existing *models.Booking) bool {
	if existing.ID != 0 && existing.ID == s.ExcludeID {
		return false
	}
	if existing.CourtID != s.CourtID || existing.Day() != s.Day {
		return false
	}
	if !IsActive(existing.Status) {
		return false
	}
	return Overlaps(s.StartMinute, s.EndMinute, existing.StartMinute, existing.EndMinute)
}

// Available reports whether none of bookings conflicts with slot.
func (s Slot) Available(bookings []models.Booking) bool {
	for i := range bookings {
		if s.Conflicts(&bookings[i]) {
			return false
		}
	}
	return true
}
