package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"court-booking-server/booking"
	"court-booking-server/models"
	"court-booking-server/store"
)

type CourtStore struct {
	db *gorm.DB
}

var _ store.Courts = (*CourtStore)(nil)

func NewCourtStore(db *gorm.DB) *CourtStore {
	return &CourtStore{db: db}
}

func (s *CourtStore) FindByID(ctx context.Context, id uint) (*models.Court, error) {
	var c models.Court
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, booking.NotFound("court %d not found", id)
		}
		return nil, fmt.Errorf("find court %d: %w", id, err)
	}
	return &c, nil
}

func (s *CourtStore) List(ctx context.Context, activeOnly bool) ([]models.Court, error) {
	q := s.db.WithContext(ctx).Order("code ASC")
	if activeOnly {
		q = q.Where("status = ?", models.CourtStatusActive)
	}
	var out []models.Court
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list courts: %w", err)
	}
	return out, nil
}

func (s *CourtStore) Create(ctx context.Context, c *models.Court) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *CourtStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Court{}).Count(&n).Error
	return n, err
}
