package booking_test

import (
	"context"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

// listRepo returns its items unfiltered, so callers must filter themselves.
type listRepo struct {
	items []*booking.Booking
}

var _ booking.Repository = (*listRepo)(nil)

func (r *listRepo) ByID(context.Context, booking.ID) (*booking.Booking, error) {
	return nil, booking.ErrNotFound
}

func (r *listRepo) Save(context.Context, *booking.Booking) error { return nil }

func (r *listRepo) ListByProperty(context.Context, property.ID, booking.Status) ([]*booking.Booking, error) {
	return r.items, nil
}

func (r *listRepo) ListByGuest(context.Context, string) ([]*booking.Booking, error) {
	return r.items, nil
}

func (r *listRepo) PendingCreatedBefore(context.Context, time.Time, int) ([]*booking.Booking, error) {
	return nil, nil
}

func (r *listRepo) ConfirmedEndedBy(context.Context, time.Time, int) ([]*booking.Booking, error) {
	return nil, nil
}
