package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

// ErrReadOnly is returned when a read-only unit attempts a write.
var ErrReadOnly = errors.New("memory: unit of work is read-only")

// Store holds committed bookings and the outbox they were written with.
type Store struct {
	mu       sync.RWMutex
	bookings map[domainbooking.ID]*domainbooking.Booking
	outbox   *Outbox
}

func NewStore(outbox *Outbox) *Store {
	if outbox == nil {
		outbox = NewOutbox()
	}
	return &Store{
		bookings: make(map[domainbooking.ID]*domainbooking.Booking),
		outbox:   outbox,
	}
}

func (s *Store) Outbox() *Outbox {
	return s.outbox
}

// Ping always succeeds; it lets the memory store serve readiness checks.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) get(id domainbooking.ID) (*domainbooking.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

func (s *Store) version(id domainbooking.ID) int64 {
	if b, ok := s.bookings[id]; ok {
		return b.Version
	}
	return 0
}

func (s *Store) snapshot() map[domainbooking.ID]*domainbooking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domainbooking.ID]*domainbooking.Booking, len(s.bookings))
	for id, b := range s.bookings {
		out[id] = b.Clone()
	}
	return out
}

// BookingRepository reads and writes committed bookings directly, without a unit of work.
type BookingRepository struct {
	store *Store
}

func NewBookingRepository(store *Store) *BookingRepository {
	return &BookingRepository{store: store}
}

var _ domainbooking.Repository = (*BookingRepository)(nil)

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	b, ok := r.store.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainbooking.ErrNotFound, id)
	}
	return b, nil
}

// Save writes b when its version matches the stored one and bumps b.Version.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.version(b.ID) != b.Version {
		return domainbooking.ErrVersionConflict
	}
	b.Version++
	r.store.bookings[b.ID] = b.Clone()
	return nil
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID property.ID, status domainbooking.Status) ([]*domainbooking.Booking, error) {
	return byProperty(r.store.snapshot(), propertyID, status), nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return byGuest(r.store.snapshot(), guestID), nil
}

func (r *BookingRepository) PendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domainbooking.Booking, error) {
	return pendingCreatedBefore(r.store.snapshot(), cutoff, limit), nil
}

func (r *BookingRepository) ConfirmedEndedBy(ctx context.Context, day time.Time, limit int) ([]*domainbooking.Booking, error) {
	return confirmedEndedBy(r.store.snapshot(), day, limit), nil
}

func selectBookings(items map[domainbooking.ID]*domainbooking.Booking, keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	out := make([]*domainbooking.Booking, 0)
	for _, b := range items {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func byProperty(items map[domainbooking.ID]*domainbooking.Booking, propertyID property.ID, status domainbooking.Status) []*domainbooking.Booking {
	out := selectBookings(items, func(b *domainbooking.Booking) bool {
		return b.PropertyID == propertyID && (status == "" || b.Status == status)
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func byGuest(items map[domainbooking.ID]*domainbooking.Booking, guestID string) []*domainbooking.Booking {
	out := selectBookings(items, func(b *domainbooking.Booking) bool { return b.GuestID == guestID })
	sortByCreated(out)
	return out
}

func pendingCreatedBefore(items map[domainbooking.ID]*domainbooking.Booking, cutoff time.Time, limit int) []*domainbooking.Booking {
	out := selectBookings(items, func(b *domainbooking.Booking) bool {
		return b.Status == domainbooking.StatusPending && b.CreatedAt.Before(cutoff)
	})
	sortByCreated(out)
	return truncate(out, limit)
}

func confirmedEndedBy(items map[domainbooking.ID]*domainbooking.Booking, day time.Time, limit int) []*domainbooking.Booking {
	out := selectBookings(items, func(b *domainbooking.Booking) bool {
		return b.Status == domainbooking.StatusConfirmed && !b.Range.CheckOut.After(day)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckOut.Before(out[j].Range.CheckOut) })
	return truncate(out, limit)
}

func sortByCreated(items []*domainbooking.Booking) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func truncate(items []*domainbooking.Booking, limit int) []*domainbooking.Booking {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
