package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-booking-server/models"
)

func testRules() Rules {
	r := DefaultRules()
	r.Location = time.FixedZone("ICT", 7*60*60)
	return r
}

func TestPrice_SplitsNormalAndPeak(t *testing.T) {
	court := &models.Court{BasePrice: 100, PeakPrice: 200}

	q, err := testRules().Price(court, "14:00", "18:00")
	require.NoError(t, err)

	assert.Equal(t, 2.0, q.NormalHours)
	assert.Equal(t, 2.0, q.PeakHours)
	assert.Equal(t, 4.0, q.TotalHours)
	assert.Equal(t, 600.0, q.FieldAmount)
}

func TestPrice_OneNormalOnePeakHour(t *testing.T) {
	court := &models.Court{BasePrice: 100000, PeakPrice: 150000}

	q, err := testRules().Price(court, "15:00", "17:00")
	require.NoError(t, err)

	assert.Equal(t, 1.0, q.NormalHours)
	assert.Equal(t, 1.0, q.PeakHours)
	assert.Equal(t, 250000.0, q.FieldAmount)
	assert.Equal(t, 15*60, q.StartMinute)
	assert.Equal(t, 17*60, q.EndMinute)
}

func TestPrice_ClipsToOperatingHours(t *testing.T) {
	court := &models.Court{BasePrice: 100, PeakPrice: 200}

	q, err := testRules().Price(court, "05:00", "07:00")
	require.NoError(t, err)

	assert.Equal(t, 1.0, q.TotalHours)
	assert.Equal(t, 100.0, q.FieldAmount)
}

func TestPrice_HalfHours(t *testing.T) {
	court := &models.Court{BasePrice: 100, PeakPrice: 200}

	q, err := testRules().Price(court, "15:30", "16:30")
	require.NoError(t, err)

	assert.Equal(t, 0.5, q.NormalHours)
	assert.Equal(t, 0.5, q.PeakHours)
	assert.Equal(t, 150.0, q.FieldAmount)
}

func TestPrice_Errors(t *testing.T) {
	court := &models.Court{BasePrice: 100, PeakPrice: 200}
	rules := testRules()

	tests := []struct {
		name       string
		start, end string
		want       error
	}{
		{"end before start", "10:00", "09:00", ErrInvalidInterval},
		{"empty interval", "10:00", "10:00", ErrInvalidInterval},
		{"before opening", "04:00", "05:30", ErrOutsideOperatingHours},
		{"after closing", "22:00", "23:00", ErrOutsideOperatingHours},
		{"bad clock", "9:00", "10:00", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rules.Price(court, tt.start, tt.end)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestTotal(t *testing.T) {
	assert.Equal(t, 270.0, Total(250, 30, 10))
	assert.Equal(t, 0.0, Total(10, 0, 50))
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("06:30")
	require.NoError(t, err)
	assert.Equal(t, 390, m)
	assert.Equal(t, "06:30", FormatClock(m))

	m, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 1440, m)

	for _, bad := range []string{"", "6:30", "25:00", "12:60", "12-00"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestNewRules(t *testing.T) {
	r, err := NewRules("07:00", "21:00", "17:00", "21:00", 3, "UTC")
	require.NoError(t, err)
	assert.Equal(t, 7*60, r.OpenMinute)
	assert.Equal(t, 3, r.CancelBeforeHours)

	_, err = NewRules("22:00", "06:00", "16:00", "22:00", 2, "UTC")
	assert.Error(t, err)

	_, err = NewRules("06:00", "22:00", "16:00", "22:00", 2, "Not/AZone")
	assert.Error(t, err)
}

func TestNewCodeLength(t *testing.T) {
	code, err := NewCode()
	require.NoError(t, err)
	assert.True(t, IsCode(code), code)
	assert.Len(t, code, 10)
}
