package memory

import (
	"context"
	"sort"

	"court-booking-server/booking"
	"court-booking-server/models"
	"court-booking-server/store"
)

type InvoiceStore struct {
	db *DB
}

var _ store.Invoices = (*InvoiceStore)(nil)

func (s *InvoiceStore) Create(ctx context.Context, inv *models.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.invoices {
		if existing.BookingID == inv.BookingID {
			return store.ErrAlreadyInvoiced
		}
		if existing.Code == inv.Code {
			return store.ErrInvoiceCodeTaken
		}
	}

	now := db.now()
	inv.ID = db.id("invoices")
	inv.CreatedAt, inv.UpdatedAt = now, now
	for i := range inv.Items {
		inv.Items[i].ID = db.id("invoice_items")
		inv.Items[i].InvoiceID = inv.ID
		inv.Items[i].CreatedAt = now
	}
	db.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (s *InvoiceStore) FindByID(ctx context.Context, id uint) (*models.Invoice, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	inv, ok := s.db.invoices[id]
	if !ok {
		return nil, booking.NotFound("invoice %d not found", id)
	}
	return cloneInvoice(inv), nil
}

func (s *InvoiceStore) FindByBookingID(ctx context.Context, bookingID uint) (*models.Invoice, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, inv := range s.db.invoices {
		if inv.BookingID == bookingID {
			return cloneInvoice(inv), nil
		}
	}
	return nil, booking.NotFound("no invoice for booking %d", bookingID)
}

func (s *InvoiceStore) Update(ctx context.Context, id uint, apply func(inv *models.Invoice) error) (*models.Invoice, error) {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.invoices[id]
	if !ok {
		return nil, booking.NotFound("invoice %d not found", id)
	}
	inv := cloneInvoice(stored)
	if err := apply(inv); err != nil {
		return nil, err
	}
	// Lines are fixed at issue time.
	inv.ID, inv.Items = id, stored.Items
	inv.UpdatedAt = db.now()
	db.invoices[id] = cloneInvoice(inv)
	return cloneInvoice(inv), nil
}

func (s *InvoiceStore) List(ctx context.Context, f store.InvoiceFilter) ([]models.Invoice, int64, error) {
	f.Normalize()
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var matched []models.Invoice
	for _, inv := range s.db.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.CustomerID != 0 && (inv.CustomerID == nil || *inv.CustomerID != f.CustomerID) {
			continue
		}
		c := cloneInvoice(inv)
		c.Items = nil
		matched = append(matched, *c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	start := min(f.Offset(), len(matched))
	end := min(start+f.Limit, len(matched))
	return matched[start:end], total, nil
}

func cloneInvoice(inv *models.Invoice) *models.Invoice {
	c := *inv
	c.Items = append([]models.InvoiceItem(nil), inv.Items...)
	return &c
}
