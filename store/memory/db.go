// Package memory keeps bookings, courts, users and invoices in process. A single mutex
// serialises every write, which makes create-if-available atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"court-booking-server/booking"
	"court-booking-server/models"
	"court-booking-server/store"
)

type DB struct {
	mu       sync.RWMutex
	bookings map[uint]*models.Booking
	courts   map[uint]*models.Court
	users    map[uint]*models.User
	invoices map[uint]*models.Invoice
	nextID   map[string]uint
	now      func() time.Time
}

func New() *DB {
	return &DB{
		bookings: make(map[uint]*models.Booking),
		courts:   make(map[uint]*models.Court),
		users:    make(map[uint]*models.User),
		invoices: make(map[uint]*models.Invoice),
		nextID:   make(map[string]uint),
		now:      time.Now,
	}
}

func (db *DB) Bookings() *BookingStore { return &BookingStore{db: db} }
func (db *DB) Courts() *CourtStore     { return &CourtStore{db: db} }
func (db *DB) Users() *UserStore       { return &UserStore{db: db} }
func (db *DB) Invoices() *InvoiceStore { return &InvoiceStore{db: db} }

// id must be called with mu held.
func (db *DB) id(table string) uint {
	db.nextID[table]++
	return db.nextID[table]
}

type BookingStore struct {
	db *DB
}

var _ store.Bookings = (*BookingStore)(nil)

func (s *BookingStore) CreateIfAvailable(ctx context.Context, b *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	slot := booking.Slot{CourtID: b.CourtID, Day: b.Day(), StartMinute: b.StartMinute, EndMinute: b.EndMinute}
	for _, existing := range db.bookings {
		if existing.Code == b.Code {
			return store.ErrCodeTaken
		}
		if booking.IsActive(b.Status) && slot.Conflicts(existing) {
			return booking.SlotTaken("the requested time overlaps an existing booking")
		}
	}

	now := db.now()
	b.ID = db.id("bookings")
	b.CreatedAt, b.UpdatedAt = now, now
	db.assignChildIDs(b)

	db.bookings[b.ID] = clone(b)
	return nil
}

func (s *BookingStore) IsSlotAvailable(ctx context.Context, slot booking.Slot) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, existing := range s.db.bookings {
		if slot.Conflicts(existing) {
			return false, nil
		}
	}
	return true, nil
}

func (s *BookingStore) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	b, ok := s.db.bookings[id]
	if !ok {
		return nil, booking.NotFound("booking %d not found", id)
	}
	return s.db.hydrate(clone(b)), nil
}

func (s *BookingStore) FindByCode(ctx context.Context, code string) (*models.Booking, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, b := range s.db.bookings {
		if b.Code == code {
			return s.db.hydrate(clone(b)), nil
		}
	}
	return nil, booking.NotFound("booking %s not found", code)
}

func (s *BookingStore) Update(ctx context.Context, id uint, apply func(b *models.Booking) error) (*models.Booking, error) {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.bookings[id]
	if !ok {
		return nil, booking.NotFound("booking %d not found", id)
	}
	b := clone(stored)
	if err := apply(b); err != nil {
		return nil, err
	}
	b.ID = id
	b.UpdatedAt = db.now()
	db.assignChildIDs(b)

	db.bookings[id] = clone(b)
	return db.hydrate(b), nil
}

func (s *BookingStore) ReplaceItems(ctx context.Context, id uint, items []models.BookingItem, apply func(b *models.Booking) error) (*models.Booking, error) {
	return s.Update(ctx, id, func(b *models.Booking) error {
		b.Items = make([]models.BookingItem, len(items))
		copy(b.Items, items)
		for i := range b.Items {
			b.Items[i].ID = 0
			b.Items[i].BookingID = id
		}
		return apply(b)
	})
}

func (s *BookingStore) List(ctx context.Context, f store.BookingFilter) ([]models.Booking, int64, error) {
	f.Normalize()
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var matched []models.Booking
	for _, b := range s.db.bookings {
		if f.CourtID != 0 && b.CourtID != f.CourtID {
			continue
		}
		if f.CustomerID != 0 && !b.IsOwnedBy(f.CustomerID) {
			continue
		}
		if f.Day != "" && b.Day() != f.Day {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && b.PaymentStatus != f.PaymentStatus {
			continue
		}
		matched = append(matched, *s.db.hydrate(clone(b)))
	}

	// Newest date first, then by start time, matching the SQL ordering.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		if matched[i].StartMinute != matched[j].StartMinute {
			return matched[i].StartMinute < matched[j].StartMinute
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	start := min(f.Offset(), len(matched))
	end := min(start+f.Limit, len(matched))
	return matched[start:end], total, nil
}

func (s *BookingStore) ActiveOnDay(ctx context.Context, courtID uint, day string) ([]models.Booking, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []models.Booking
	for _, b := range s.db.bookings {
		if b.CourtID == courtID && b.Day() == day && booking.IsActive(b.Status) {
			out = append(out, *clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out, nil
}

func (s *BookingStore) CountByStatus(ctx context.Context) (map[models.BookingStatus]int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	counts := make(map[models.BookingStatus]int64)
	for _, b := range s.db.bookings {
		counts[b.Status]++
	}
	return counts, nil
}

func (s *BookingStore) Delete(ctx context.Context, id uint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.bookings[id]; !ok {
		return booking.NotFound("booking %d not found", id)
	}
	delete(s.db.bookings, id)
	return nil
}

// assignChildIDs gives new history rows, notes and items their identity.
func (db *DB) assignChildIDs(b *models.Booking) {
	for i := range b.StatusHistory {
		if b.StatusHistory[i].ID == 0 {
			b.StatusHistory[i].ID = db.id("booking_status_histories")
		}
		b.StatusHistory[i].BookingID = b.ID
	}
	for i := range b.AdminNotes {
		if b.AdminNotes[i].ID == 0 {
			b.AdminNotes[i].ID = db.id("booking_admin_notes")
		}
		b.AdminNotes[i].BookingID = b.ID
	}
	for i := range b.Items {
		if b.Items[i].ID == 0 {
			b.Items[i].ID = db.id("booking_items")
		}
		b.Items[i].BookingID = b.ID
	}
}

// hydrate attaches court and customer like a preload would. mu must be held.
func (db *DB) hydrate(b *models.Booking) *models.Booking {
	if c, ok := db.courts[b.CourtID]; ok {
		cc := *c
		b.Court = &cc
	}
	if b.CustomerID != nil {
		if u, ok := db.users[*b.CustomerID]; ok {
			uu := *u
			b.Customer = &uu
		}
	}
	return b
}

func clone(b *models.Booking) *models.Booking {
	c := *b
	c.Court, c.Customer = nil, nil
	c.StatusHistory = append([]models.BookingStatusHistory(nil), b.StatusHistory...)
	c.AdminNotes = append([]models.BookingAdminNote(nil), b.AdminNotes...)
	c.Items = append([]models.BookingItem(nil), b.Items...)
	return &c
}

type CourtStore struct {
	db *DB
}

var _ store.Courts = (*CourtStore)(nil)

func (s *CourtStore) FindByID(ctx context.Context, id uint) (*models.Court, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	c, ok := s.db.courts[id]
	if !ok {
		return nil, booking.NotFound("court %d not found", id)
	}
	cc := *c
	return &cc, nil
}

func (s *CourtStore) List(ctx context.Context, activeOnly bool) ([]models.Court, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.Court, 0, len(s.db.courts))
	for _, c := range s.db.courts {
		if activeOnly && !c.IsBookable() {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *CourtStore) Create(ctx context.Context, c *models.Court) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c.ID = s.db.id("courts")
	now := s.db.now()
	c.CreatedAt, c.UpdatedAt = now, now
	cc := *c
	s.db.courts[c.ID] = &cc
	return nil
}

func (s *CourtStore) Count(ctx context.Context) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return int64(len(s.db.courts)), nil
}

type UserStore struct {
	db *DB
}

var _ store.Users = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrEmailTaken
		}
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.ID = s.db.id("users")
	now := s.db.now()
	u.CreatedAt, u.UpdatedAt = now, now
	uu := *u
	s.db.users[u.ID] = &uu
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, booking.NotFound("user %d not found", id)
	}
	uu := *u
	return &uu, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, u := range s.db.users {
		if strings.EqualFold(u.Email, email) {
			uu := *u
			return &uu, nil
		}
	}
	return nil, booking.NotFound("user %s not found", email)
}
