package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

// Factory wires the in-memory store into a unit-of-work boundary.
type Factory struct {
	Store *Store
}

// ErrFactoryMisconfigured indicates a missing store.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a unit that buffers writes until Commit. Concurrent writers of
// the same booking are detected by version at commit time.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		store:    f.Store,
		readOnly: opts.ReadOnly,
		staged:   make(map[domainbooking.ID]stagedBooking),
	}, nil
}

type stagedBooking struct {
	booking *domainbooking.Booking
	base    int64
}

// Unit is a uow.UnitOfWork over the in-memory store.
type Unit struct {
	mu       sync.Mutex
	store    *Store
	readOnly bool
	closed   bool
	staged   map[domainbooking.ID]stagedBooking
	order    []domainbooking.ID
	records  []appoutbox.EventRecord
}

func (u *Unit) Bookings() domainbooking.Repository {
	return unitBookings{unit: u}
}

func (u *Unit) Outbox() appoutbox.Writer {
	return unitOutbox{unit: u}
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return uow.ErrUnitClosed
	}
	u.closed = true

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for _, id := range u.order {
		if u.store.version(id) != u.staged[id].base {
			return fmt.Errorf("%w: booking %s", domainbooking.ErrVersionConflict, id)
		}
	}
	for _, id := range u.order {
		u.store.bookings[id] = u.staged[id].booking.Clone()
	}
	u.store.outbox.append(u.records, time.Now().UTC())
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.staged = nil
	u.records = nil
	return nil
}

func (u *Unit) view() map[domainbooking.ID]*domainbooking.Booking {
	items := u.store.snapshot()
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, st := range u.staged {
		items[id] = st.booking.Clone()
	}
	return items
}

type unitBookings struct {
	unit *Unit
}

func (r unitBookings) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	r.unit.mu.Lock()
	st, ok := r.unit.staged[id]
	r.unit.mu.Unlock()
	if ok {
		return st.booking.Clone(), nil
	}
	b, ok := r.unit.store.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainbooking.ErrNotFound, id)
	}
	return b, nil
}

func (r unitBookings) Save(ctx context.Context, b *domainbooking.Booking) error {
	u := r.unit
	if u.readOnly {
		return ErrReadOnly
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return uow.ErrUnitClosed
	}
	st, ok := u.staged[b.ID]
	if ok {
		if st.booking.Version != b.Version {
			return domainbooking.ErrVersionConflict
		}
	} else {
		u.store.mu.RLock()
		current := u.store.version(b.ID)
		u.store.mu.RUnlock()
		if current != b.Version {
			return domainbooking.ErrVersionConflict
		}
		st.base = b.Version
		u.order = append(u.order, b.ID)
	}
	b.Version++
	st.booking = b.Clone()
	u.staged[b.ID] = st
	return nil
}

func (r unitBookings) ListByProperty(ctx context.Context, propertyID property.ID, status domainbooking.Status) ([]*domainbooking.Booking, error) {
	return byProperty(r.unit.view(), propertyID, status), nil
}

func (r unitBookings) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return byGuest(r.unit.view(), guestID), nil
}

func (r unitBookings) PendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domainbooking.Booking, error) {
	return pendingCreatedBefore(r.unit.view(), cutoff, limit), nil
}

func (r unitBookings) ConfirmedEndedBy(ctx context.Context, day time.Time, limit int) ([]*domainbooking.Booking, error) {
	return confirmedEndedBy(r.unit.view(), day, limit), nil
}

type unitOutbox struct {
	unit *Unit
}

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	u := o.unit
	if u.readOnly {
		return ErrReadOnly
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return uow.ErrUnitClosed
	}
	u.records = append(u.records, record)
	return nil
}
