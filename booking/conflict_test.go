package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"court-booking-server/models"
)

func existing(id uint, start, end string, status models.BookingStatus) models.Booking {
	s, _ := ParseClock(start)
	e, _ := ParseClock(end)
	return models.Booking{
		ID:          id,
		CourtID:     1,
		Date:        time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		StartMinute: s,
		EndMinute:   e,
		Status:      status,
	}
}

func TestOverlaps_TouchingEndpointsDoNotCollide(t *testing.T) {
	assert.False(t, Overlaps(600, 660, 660, 720))
	assert.False(t, Overlaps(660, 720, 600, 660))
	assert.True(t, Overlaps(600, 661, 660, 720))
	assert.True(t, Overlaps(600, 720, 630, 690))
}

func TestSlot_Available(t *testing.T) {
	booked := []models.Booking{
		existing(1, "10:00", "11:00", models.BookingStatusConfirmed),
		existing(2, "12:00", "13:00", models.BookingStatusCancelled),
		existing(3, "14:00", "15:00", models.BookingStatusCancelledRefunded),
		existing(4, "16:00", "17:00", models.BookingStatusNoShow),
	}

	tests := []struct {
		name string
		slot Slot
		want bool
	}{
		{"adjacent after", Slot{CourtID: 1, Day: "2025-06-10", StartMinute: 660, EndMinute: 720}, true},
		{"adjacent before", Slot{CourtID: 1, Day: "2025-06-10", StartMinute: 540, EndMinute: 600}, true},
		{"overlap active", Slot{CourtID: 1, Day: "2025-06-10", StartMinute: 630, EndMinute: 690}, false},
		{"over cancelled", Slot{CourtID: 1, Day: "2025-06-10", StartMinute: 720, EndMinute: 780}, true},
		{"over refunded", Slot{CourtID: 1, Day: "2025-06-10", StartMinute: 840, EndMinute: 900}, true},
		{"no-show still holds", Slot{CourtID: 1, Day: "2025-06-10", StartMinute: 960, EndMinute: 1020}, false},
		{"other court", Slot{CourtID: 2, Day: "2025-06-10", StartMinute: 600, EndMinute: 660}, true},
		{"other day", Slot{CourtID: 1, Day: "2025-06-11", StartMinute: 600, EndMinute: 660}, true},
		{"excluded self", Slot{CourtID: 1, Day: "2025-06-10", StartMinute: 600, EndMinute: 660, ExcludeID: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.slot.Available(booked))
		})
	}
}
