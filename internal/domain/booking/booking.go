package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

type ID string

type Booking struct {
	ID            ID
	PropertyID    property.ID
	GuestID       string
	Range         daterange.DateRange
	Guests        int
	Price         pricing.PriceBreakdown
	AmountPaid    money.Money
	Status        Status
	PaymentStatus PaymentStatus
	CancelReason  CancelReason
	CancelledBy   Actor
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

// Repository persists bookings. Save is optimistic: it fails with
// ErrVersionConflict when the stored version moved since the booking was read.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	ListByProperty(ctx context.Context, propertyID property.ID, status Status) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	// PendingCreatedBefore lists pending bookings older than cutoff, oldest first.
	PendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)
	// ConfirmedEndedBy lists confirmed bookings whose check-out is on or before day.
	ConfirmedEndedBy(ctx context.Context, day time.Time, limit int) ([]*Booking, error)
}

type CreateParams struct {
	ID         ID
	PropertyID property.ID
	GuestID    string
	Range      daterange.DateRange
	Guests     int
	Price      pricing.PriceBreakdown
	Notes      string
	CreatedAt  time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, ErrGuestRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, ErrInvalidRange
	}
	if err := params.Price.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:            params.ID,
		PropertyID:    params.PropertyID,
		GuestID:       params.GuestID,
		Range:         params.Range,
		Guests:        params.Guests,
		Price:         params.Price,
		AmountPaid:    money.Zero(params.Price.Currency()),
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Notes:         params.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.Record(BookingCreated{
		Snapshot:   b.snapshot(now),
		Range:      b.Range,
		Guests:     b.Guests,
		GrandTotal: b.Price.GrandTotal.Amount.String(),
		Deposit:    b.Price.Deposit.Amount.String(),
		Currency:   b.Price.Currency(),
	})
	return b, nil
}

func (b *Booking) TotalPrice() money.Money    { return b.Price.GrandTotal }
func (b *Booking) DepositAmount() money.Money { return b.Price.Deposit }

// EffectiveStatus applies lazy completion: a confirmed booking whose check-out
// day has arrived reads as completed.
func (b *Booking) EffectiveStatus(now time.Time) Status {
	if b.Status == StatusConfirmed && !daterange.Day(now).Before(b.Range.CheckOut) {
		return StatusCompleted
	}
	return b.Status
}

func (b *Booking) transition(next Status, now time.Time) error {
	if b.EffectiveStatus(now).IsTerminal() {
		return ErrTerminalState
	}
	if !b.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	b.Status = next
	b.UpdatedAt = now.UTC()
	return nil
}

func (b *Booking) Confirm(now time.Time) error {
	if err := b.transition(StatusConfirmed, now); err != nil {
		return err
	}
	b.Record(BookingConfirmed{Snapshot: b.snapshot(now), Range: b.Range})
	return nil
}

func (b *Booking) Cancel(reason CancelReason, actor Actor, now time.Time) error {
	previous := b.Status
	if err := b.transition(StatusCancelled, now); err != nil {
		return err
	}
	if reason == "" {
		reason = actor.DefaultReason()
	}
	b.CancelReason = reason
	b.CancelledBy = actor
	b.Record(BookingCancelled{Snapshot: b.snapshot(now), Reason: reason, Actor: actor, Previous: previous})
	return nil
}

// Complete persists lazy completion. It reports false without error when the
// booking is already completed, so repeated sweeps are harmless.
func (b *Booking) Complete(now time.Time) (bool, error) {
	switch {
	case b.Status == StatusCompleted:
		return false, nil
	case b.Status != StatusConfirmed:
		if b.Status.IsTerminal() {
			return false, ErrTerminalState
		}
		return false, ErrInvalidTransition
	case b.EffectiveStatus(now) != StatusCompleted:
		return false, ErrInvalidTransition
	}
	b.Status = StatusCompleted
	b.UpdatedAt = now.UTC()
	b.Record(BookingCompleted{Snapshot: b.snapshot(now)})
	return true, nil
}

// Reschedule swaps the stay range, party size and re-derived price. Availability
// of the new range is the caller's responsibility.
func (b *Booking) Reschedule(r daterange.DateRange, guests int, price pricing.PriceBreakdown, now time.Time) error {
	if b.EffectiveStatus(now).IsTerminal() {
		return ErrTerminalState
	}
	if err := r.Validate(); err != nil {
		return ErrInvalidRange
	}
	if guests <= 0 {
		return ErrInvalidGuests
	}
	if err := price.Validate(); err != nil {
		return err
	}
	previous := b.Range
	b.Range = r
	b.Guests = guests
	b.Price = price
	b.UpdatedAt = now.UTC()
	b.Record(BookingModified{
		Snapshot:      b.snapshot(now),
		PreviousRange: previous,
		Range:         r,
		GrandTotal:    price.GrandTotal.Amount.String(),
		Deposit:       price.Deposit.Amount.String(),
	})
	return nil
}

func (b *Booking) UpdateNotes(notes string, now time.Time) error {
	if b.EffectiveStatus(now).IsTerminal() {
		return ErrTerminalState
	}
	b.Notes = notes
	b.UpdatedAt = now.UTC()
	return nil
}

// ApplyPayment stores the payment collaborator's view of the booking.
func (b *Booking) ApplyPayment(status PaymentStatus, paid money.Money, now time.Time) error {
	if b.Status == StatusCancelled {
		return ErrTerminalState
	}
	if paid.Currency == "" {
		paid = money.Zero(b.Price.Currency())
	}
	over, err := paid.Sub(b.Price.GrandTotal)
	if err != nil {
		return err
	}
	if paid.IsNegative() || (!over.IsNegative() && !over.IsZero()) {
		return fmt.Errorf("%w: %s against total %s", ErrInvalidPayment, paid, b.Price.GrandTotal)
	}
	b.PaymentStatus = status
	b.AmountPaid = paid
	b.UpdatedAt = now.UTC()
	return nil
}

// Occupancy returns the calendar entry this booking holds, if any.
func (b *Booking) Occupancy() (availability.Occupancy, bool) {
	if !b.Status.Occupies() {
		return availability.Occupancy{}, false
	}
	return availability.Occupancy{BookingID: string(b.ID), Range: b.Range}, true
}

// Clone returns a deep copy without pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}

// OccupancyStore exposes the confirmed bookings of a repository as the calendar store.
func OccupancyStore(repo Repository) availability.Store {
	return occupancyStore{repo: repo}
}

type occupancyStore struct {
	repo Repository
}

func (s occupancyStore) OccupiedRanges(ctx context.Context, id property.ID) ([]availability.Occupancy, error) {
	bookings, err := s.repo.ListByProperty(ctx, id, StatusConfirmed)
	if err != nil {
		return nil, err
	}
	out := make([]availability.Occupancy, 0, len(bookings))
	for _, b := range bookings {
		if o, ok := b.Occupancy(); ok {
			out = append(out, o)
		}
	}
	return out, nil
}
