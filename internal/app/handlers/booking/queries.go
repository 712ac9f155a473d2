package booking

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

const (
	getBookingKey           = "booking.get"
	listPropertyBookingsKey = "booking.list_by_property"
	listGuestBookingsKey    = "booking.list_by_guest"
	allStatusesFilterValue  = "all"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type ListPropertyBookingsQuery struct {
	PropertyID string `validate:"required"`
	Status     string `validate:"omitempty,oneof=all pending confirmed cancelled completed"`
}

func (q ListPropertyBookingsQuery) Key() string { return listPropertyBookingsKey }

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required"`
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

// QueryHandlers serve booking reads with lazy completion applied.
type QueryHandlers struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *QueryHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *QueryHandlers) Get() queries.Handler[GetBookingQuery, dto.Booking] {
	return queries.HandlerFunc[GetBookingQuery, dto.Booking](func(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
		unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
		if err != nil {
			return dto.Booking{}, err
		}
		if cleanup != nil {
			defer cleanup()
		}
		b, err := unit.Bookings().ByID(execCtx, domainbooking.ID(q.BookingID))
		if err != nil {
			return dto.Booking{}, err
		}
		return dto.MapBooking(b, h.now()), nil
	})
}

func (h *QueryHandlers) ListByProperty() queries.Handler[ListPropertyBookingsQuery, dto.BookingCollection] {
	return queries.HandlerFunc[ListPropertyBookingsQuery, dto.BookingCollection](func(ctx context.Context, q ListPropertyBookingsQuery) (dto.BookingCollection, error) {
		unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		if cleanup != nil {
			defer cleanup()
		}
		items, err := unit.Bookings().ListByProperty(execCtx, property.ID(q.PropertyID), "")
		if err != nil {
			return dto.BookingCollection{}, err
		}
		now := h.now()
		filter := strings.ToLower(strings.TrimSpace(q.Status))
		if filter != "" && filter != allStatusesFilterValue {
			kept := items[:0]
			for _, b := range items {
				if string(b.EffectiveStatus(now)) == filter {
					kept = append(kept, b)
				}
			}
			items = kept
		}
		sortByCheckIn(items)
		if h.Logger != nil {
			h.Logger.Debug("property bookings listed", "property_id", q.PropertyID, "count", len(items), "status", filter)
		}
		return dto.MapBookings(items, now), nil
	})
}

func (h *QueryHandlers) ListByGuest() queries.Handler[ListGuestBookingsQuery, dto.BookingCollection] {
	return queries.HandlerFunc[ListGuestBookingsQuery, dto.BookingCollection](func(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
		unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		if cleanup != nil {
			defer cleanup()
		}
		items, err := unit.Bookings().ListByGuest(execCtx, q.GuestID)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
		return dto.MapBookings(items, h.now()), nil
	})
}

func sortByCheckIn(items []*domainbooking.Booking) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Range.CheckIn.Before(items[j].Range.CheckIn)
	})
}
