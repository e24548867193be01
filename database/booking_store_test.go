package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"court-booking-server/booking"
	"court-booking-server/models"
	"court-booking-server/store"
)

// openTestDB connects to TEST_DB_URL or skips. The schema is reset each run.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	url := os.Getenv("TEST_DB_URL")
	if url == "" {
		t.Skip("TEST_DB_URL not set")
	}
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`DROP TABLE IF EXISTS invoice_items, invoices, booking_items, booking_admin_notes,
		booking_status_histories, bookings, courts, users CASCADE`).Error)
	require.NoError(t, runMigrations(db))
	return db
}

func seedCourt(t *testing.T, db *gorm.DB) *models.Court {
	t.Helper()
	c := &models.Court{Code: "C1", Name: "Court 1", BasePrice: 100, PeakPrice: 200}
	require.NoError(t, NewCourtStore(db).Create(context.Background(), c))
	return c
}

func pgBooking(courtID uint, code string, start, end int) *models.Booking {
	return &models.Booking{
		Code:          code,
		CourtID:       courtID,
		Date:          time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		StartTime:     booking.FormatClock(start),
		EndTime:       booking.FormatClock(end),
		StartMinute:   start,
		EndMinute:     end,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		DepositStatus: models.DepositStatusPending,
		CreatedBy:     models.CreatedByUser,
		StatusHistory: []models.BookingStatusHistory{
			{Status: models.BookingStatusPending, Action: "create", CreatedAt: time.Now()},
		},
	}
}

func TestBookingStore_ConcurrentOverlappingCreates(t *testing.T) {
	db := openTestDB(t)
	court := seedCourt(t, db)
	bookings := NewBookingStore(db)
	ctx := context.Background()

	const workers = 20
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := bookings.CreateIfAvailable(ctx, pgBooking(court.ID, fmt.Sprintf("DS%08d", i), 600-i, 630+i))
			if err == nil {
				ok.Add(1)
				return
			}
			assert.ErrorIs(t, err, booking.ErrSlotTaken)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
}

func TestBookingStore_SameCodeOnDifferentCourts(t *testing.T) {
	db := openTestDB(t)
	courts := NewCourtStore(db)
	bookings := NewBookingStore(db)
	ctx := context.Background()

	const workers = 10
	ids := make([]uint, workers)
	for i := range ids {
		c := &models.Court{Code: fmt.Sprintf("K%d", i), Name: fmt.Sprintf("Court %d", i), BasePrice: 100, PeakPrice: 200}
		require.NoError(t, courts.Create(ctx, c))
		ids[i] = c.ID
	}

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(courtID uint) {
			defer wg.Done()
			err := bookings.CreateIfAvailable(ctx, pgBooking(courtID, "DS77777777", 600, 660))
			if err == nil {
				ok.Add(1)
				return
			}
			assert.ErrorIs(t, err, store.ErrCodeTaken)
			assert.NotErrorIs(t, err, booking.ErrSlotTaken)
		}(ids[i])
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
}

func TestBookingStore_UpdateAppendsHistory(t *testing.T) {
	db := openTestDB(t)
	court := seedCourt(t, db)
	bookings := NewBookingStore(db)
	ctx := context.Background()

	b := pgBooking(court.ID, "DS00000001", 600, 660)
	require.NoError(t, bookings.CreateIfAvailable(ctx, b))

	got, err := bookings.Update(ctx, b.ID, func(b *models.Booking) error {
		b.Status = models.BookingStatusConfirmed
		b.StatusHistory = append(b.StatusHistory, models.BookingStatusHistory{
			Status: b.Status, Action: "confirm", CreatedAt: time.Now(),
		})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, got.Status)
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, "confirm", got.StatusHistory[1].Action)
	require.NotNil(t, got.Court)
	assert.Equal(t, "C1", got.Court.Code)

	free, err := bookings.IsSlotAvailable(ctx, booking.Slot{CourtID: court.ID, Day: "2025-06-10", StartMinute: 660, EndMinute: 720})
	require.NoError(t, err)
	assert.True(t, free)
}
