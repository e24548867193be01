package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"court-booking-server/booking"
	"court-booking-server/models"
	"court-booking-server/store"
)

var inactiveStatuses = []models.BookingStatus{
	models.BookingStatusCancelled,
	models.BookingStatusCancelledRefunded,
}

// BookingStore is the Postgres implementation of store.Bookings.
type BookingStore struct {
	db *gorm.DB
}

var _ store.Bookings = (*BookingStore)(nil)

func NewBookingStore(db *gorm.DB) *BookingStore {
	return &BookingStore{db: db}
}

func (s *BookingStore) CreateIfAvailable(ctx context.Context, b *models.Booking) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the court row so concurrent creates on one court run one at a time.
		var court models.Court
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&court, b.CourtID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return booking.NotFound("court %d not found", b.CourtID)
			}
			return fmt.Errorf("lock court: %w", err)
		}

		var n int64
		if err := tx.Model(&models.Booking{}).Where("code = ?", b.Code).Count(&n).Error; err != nil {
			return fmt.Errorf("check booking code: %w", err)
		}
		if n > 0 {
			return store.ErrCodeTaken
		}

		if booking.IsActive(b.Status) {
			slot := booking.Slot{CourtID: b.CourtID, Day: b.Day(), StartMinute: b.StartMinute, EndMinute: b.EndMinute}
			if err := overlapping(tx, slot).Count(&n).Error; err != nil {
				return fmt.Errorf("check overlap: %w", err)
			}
			if n > 0 {
				return booking.SlotTaken("the requested time overlaps an existing booking")
			}
		}

		return tx.Omit("Court", "Customer").Create(b).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.duplicateCause(ctx, b.Code)
	}
	return err
}

// duplicateCause tells a racing code collision from a racing slot. Creates
// on different courts hold different locks, so both reach the insert and the
// loser only sees which index rejected it after the winner commits.
func (s *BookingStore) duplicateCause(ctx context.Context, code string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).Where("code = ?", code).Count(&n).Error; err != nil {
		return fmt.Errorf("check booking code: %w", err)
	}
	if n > 0 {
		return store.ErrCodeTaken
	}
	return booking.SlotTaken("the requested time overlaps an existing booking")
}

func (s *BookingStore) IsSlotAvailable(ctx context.Context, slot booking.Slot) (bool, error) {
	var n int64
	if err := overlapping(s.db.WithContext(ctx), slot).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return n == 0, nil
}

// overlapping selects active bookings on the slot's court and day that
// intersect it. Touching endpoints do not match.
func overlapping(db *gorm.DB, slot booking.Slot) *gorm.DB {
	q := db.Model(&models.Booking{}).
		Where("court_id = ? AND date = ?", slot.CourtID, slot.Day).
		Where("status NOT IN ?", inactiveStatuses).
		Where("start_minute < ? AND end_minute > ?", slot.EndMinute, slot.StartMinute)
	if slot.ExcludeID != 0 {
		q = q.Where("id <> ?", slot.ExcludeID)
	}
	return q
}

func (s *BookingStore) withDetails(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Court").
		Preload("Customer").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("AdminNotes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func (s *BookingStore) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := s.withDetails(ctx).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, booking.NotFound("booking %d not found", id)
		}
		return nil, fmt.Errorf("find booking %d: %w", id, err)
	}
	return &b, nil
}

func (s *BookingStore) FindByCode(ctx context.Context, code string) (*models.Booking, error) {
	var b models.Booking
	if err := s.withDetails(ctx).Where("code = ?", code).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, booking.NotFound("booking %s not found", code)
		}
		return nil, fmt.Errorf("find booking %s: %w", code, err)
	}
	return &b, nil
}

func (s *BookingStore) Update(ctx context.Context, id uint, apply func(b *models.Booking) error) (*models.Booking, error) {
	return s.update(ctx, id, func(_ *gorm.DB, b *models.Booking) error {
		return apply(b)
	})
}

func (s *BookingStore) ReplaceItems(ctx context.Context, id uint, items []models.BookingItem, apply func(b *models.Booking) error) (*models.Booking, error) {
	return s.update(ctx, id, func(tx *gorm.DB, b *models.Booking) error {
		if err := tx.Where("booking_id = ?", id).Delete(&models.BookingItem{}).Error; err != nil {
			return fmt.Errorf("clear items: %w", err)
		}
		b.Items = make([]models.BookingItem, len(items))
		for i, it := range items {
			it.ID = 0
			it.BookingID = id
			b.Items[i] = it
		}
		if len(b.Items) > 0 {
			if err := tx.Create(&b.Items).Error; err != nil {
				return fmt.Errorf("insert items: %w", err)
			}
		}
		return apply(b)
	})
}

// update locks the booking row for the duration of the transaction, so
// transitions on one booking never interleave.
func (s *BookingStore) update(ctx context.Context, id uint, apply func(tx *gorm.DB, b *models.Booking) error) (*models.Booking, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return booking.NotFound("booking %d not found", id)
			}
			return fmt.Errorf("lock booking %d: %w", id, err)
		}
		if err := tx.Where("booking_id = ?", id).Order("created_at ASC, id ASC").Find(&b.StatusHistory).Error; err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		if err := tx.Where("booking_id = ?", id).Order("created_at ASC, id ASC").Find(&b.AdminNotes).Error; err != nil {
			return fmt.Errorf("load notes: %w", err)
		}
		if err := tx.Where("booking_id = ?", id).Order("id ASC").Find(&b.Items).Error; err != nil {
			return fmt.Errorf("load items: %w", err)
		}

		if err := apply(tx, &b); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(&b).Error; err != nil {
			return fmt.Errorf("save booking %d: %w", id, err)
		}
		for i := range b.StatusHistory {
			if h := &b.StatusHistory[i]; h.ID == 0 {
				h.BookingID = id
				if err := tx.Create(h).Error; err != nil {
					return fmt.Errorf("append history: %w", err)
				}
			}
		}
		for i := range b.AdminNotes {
			if n := &b.AdminNotes[i]; n.ID == 0 {
				n.BookingID = id
				if err := tx.Create(n).Error; err != nil {
					return fmt.Errorf("append note: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *BookingStore) List(ctx context.Context, f store.BookingFilter) ([]models.Booking, int64, error) {
	f.Normalize()

	q := s.db.WithContext(ctx).Model(&models.Booking{})
	if f.CourtID != 0 {
		q = q.Where("court_id = ?", f.CourtID)
	}
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.Day != "" {
		q = q.Where("date = ?", f.Day)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	var out []models.Booking
	err := q.Preload("Court").Preload("Customer").
		Order("date DESC, start_minute ASC, id ASC").
		Offset(f.Offset()).Limit(f.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return out, total, nil
}

func (s *BookingStore) ActiveOnDay(ctx context.Context, courtID uint, day string) ([]models.Booking, error) {
	var out []models.Booking
	err := s.db.WithContext(ctx).
		Where("court_id = ? AND date = ?", courtID, day).
		Where("status NOT IN ?", inactiveStatuses).
		Order("start_minute ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	return out, nil
}

func (s *BookingStore) CountByStatus(ctx context.Context) (map[models.BookingStatus]int64, error) {
	var rows []struct {
		Status models.BookingStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	counts := make(map[models.BookingStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *BookingStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Booking{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete booking %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return booking.NotFound("booking %d not found", id)
	}
	return nil
}
