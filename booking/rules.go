// Package booking holds the pure booking rules: pricing, slot conflicts and
// the status workflow. Nothing here touches storage or the network.
package booking

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Rules is the facility policy injected into pricing and the state machine.
type Rules struct {
	OpenMinute        int
	CloseMinute       int
	PeakStartMinute   int
	PeakEndMinute     int
	CancelBeforeHours int
	Location          *time.Location
}

// DefaultRules opens 06:00–22:00 with peak 16:00–22:00 and a 2 hour cancel window.
func DefaultRules() Rules {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return Rules{
		OpenMinute:        6 * 60,
		CloseMinute:       22 * 60,
		PeakStartMinute:   16 * 60,
		PeakEndMinute:     22 * 60,
		CancelBeforeHours: 2,
		Location:          loc,
	}
}

// NewRules builds Rules from HH:mm strings and an IANA zone name.
func NewRules(open, close, peakStart, peakEnd string, cancelBeforeHours int, timezone string) (Rules, error) {
	var r Rules
	var err error
	if r.OpenMinute, err = ParseClock(open); err != nil {
		return r, fmt.Errorf("open time: %w", err)
	}
	if r.CloseMinute, err = ParseClock(close); err != nil {
		return r, fmt.Errorf("close time: %w", err)
	}
	if r.PeakStartMinute, err = ParseClock(peakStart); err != nil {
		return r, fmt.Errorf("peak start: %w", err)
	}
	if r.PeakEndMinute, err = ParseClock(peakEnd); err != nil {
		return r, fmt.Errorf("peak end: %w", err)
	}
	if r.CloseMinute <= r.OpenMinute {
		return r, fmt.Errorf("close time %s must be after open time %s", close, open)
	}
	if r.PeakEndMinute < r.PeakStartMinute {
		return r, fmt.Errorf("peak end %s must not be before peak start %s", peakEnd, peakStart)
	}
	if cancelBeforeHours < 0 {
		return r, fmt.Errorf("cancel window must not be negative")
	}
	r.CancelBeforeHours = cancelBeforeHours
	if r.Location, err = time.LoadLocation(timezone); err != nil {
		return r, fmt.Errorf("timezone %q: %w", timezone, err)
	}
	return r, nil
}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ParseClock converts HH:mm into minutes since midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	if s == "24:00" {
		return 24 * 60, nil
	}
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, InvalidInput("time %q must be HH:mm", s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return h*60 + mm, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseDate parses YYYY-MM-DD into a UTC midnight value suitable for a date column.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, InvalidInput("date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

// StartsAt returns the wall-clock start of a slot in the facility timezone.
func (r Rules) StartsAt(date time.Time, startMinute int) time.Time {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc).
		Add(time.Duration(startMinute) * time.Minute)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
