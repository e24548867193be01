package booking

import (
	"court-booking-server/models"
)

// Quote is the itemized field price of one interval.
type Quote struct {
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`
	NormalHours float64 `json:"normal_hours"`
	PeakHours   float64 `json:"peak_hours"`
	TotalHours  float64 `json:"total_hours"`
	FieldAmount float64 `json:"field_amount"`
}

// Price computes the field amount for start–end on court. The interval is
// clipped to operating hours, the peak share is billed at the peak rate and
// the rest at the base rate.
func (r Rules) Price(court *models.Court, startTime, endTime string) (Quote, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return Quote{}, err
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return Quote{}, err
	}
	return r.PriceMinutes(court, start, end)
}

// PriceMinutes is Price on minute offsets.
func (r Rules) PriceMinutes(court *models.Court, start, end int) (Quote, error) {
	if end <= start {
		return Quote{}, ErrInvalidInterval
	}
	clipStart := max(start, r.OpenMinute)
	clipEnd := min(end, r.CloseMinute)
	if clipEnd <= clipStart {
		return Quote{}, ErrOutsideOperatingHours
	}

	total := clipEnd - clipStart
	peak := overlap(clipStart, clipEnd, r.PeakStartMinute, r.PeakEndMinute)
	normal := total - peak

	amount := float64(normal)/60*court.BasePrice + float64(peak)/60*court.PeakPrice

	return Quote{
		StartMinute: start,
		EndMinute:   end,
		NormalHours: roundTo(float64(normal)/60, 2),
		PeakHours:   roundTo(float64(peak)/60, 2),
		TotalHours:  roundTo(float64(total)/60, 2),
		FieldAmount: roundTo(amount, 2),
	}, nil
}

// overlap returns the length of the intersection of [a1,a2) and [b1,b2).
func overlap(a1, a2, b1, b2 int) int {
	return max(0, min(a2, b2)-max(a1, b1))
}

// Total applies total = field + equipment − discount, never below zero.
func Total(field, equipment, discount float64) float64 {
	return roundTo(max(0, field+equipment-discount), 2)
}

// Hours is the duration of start–end in hours, rounded to 2 places.
func Hours(start, end int) float64 {
	return roundTo(float64(end-start)/60, 2)
}
