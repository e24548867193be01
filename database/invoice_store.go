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

type InvoiceStore struct {
	db *gorm.DB
}

var _ store.Invoices = (*InvoiceStore)(nil)

func NewInvoiceStore(db *gorm.DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

// Create inserts the invoice with its lines in one transaction.
func (s *InvoiceStore) Create(ctx context.Context, inv *models.Invoice) error {
	err := s.db.WithContext(ctx).Create(inv).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("create invoice: %w", err)
	}

	// Both the code and the booking are unique; see which one collided.
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("booking_id = ?", inv.BookingID).Count(&n).Error; err != nil {
		return fmt.Errorf("check invoice booking: %w", err)
	}
	if n > 0 {
		return store.ErrAlreadyInvoiced
	}
	return store.ErrInvoiceCodeTaken
}

func (s *InvoiceStore) FindByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&inv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, booking.NotFound("invoice %d not found", id)
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return &inv, nil
}

func (s *InvoiceStore) FindByBookingID(ctx context.Context, bookingID uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("booking_id = ?", bookingID).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, booking.NotFound("no invoice for booking %d", bookingID)
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return &inv, nil
}

func (s *InvoiceStore) Update(ctx context.Context, id uint, apply func(inv *models.Invoice) error) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return booking.NotFound("invoice %d not found", id)
			}
			return fmt.Errorf("lock invoice %d: %w", id, err)
		}
		if err := apply(&inv); err != nil {
			return err
		}
		inv.ID = id
		if err := tx.Omit(clause.Associations).Save(&inv).Error; err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *InvoiceStore) List(ctx context.Context, f store.InvoiceFilter) ([]models.Invoice, int64, error) {
	f.Normalize()

	q := s.db.WithContext(ctx).Model(&models.Invoice{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	var out []models.Invoice
	if err := q.Order("created_at DESC, id DESC").Offset(f.Offset()).Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	return out, total, nil
}
