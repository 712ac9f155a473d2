package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

// Env carries the collaborators shared by the booking command handlers.
type Env struct {
	Catalog property.Catalog
	Pricing pricing.Calculator
	Encoder outbox.EventEncoder
	Now     func() time.Time
	NewID   func() string
	Logger  *slog.Logger
}

// Result is returned by every booking command.
type Result struct {
	Booking dto.Booking `json:"booking"`
	// Conflict is set when confirmation lost the race and the booking was cancelled instead.
	Conflict bool `json:"conflict,omitempty"`
	// CalendarChanged reports whether the property's occupied ranges moved.
	CalendarChanged bool `json:"-"`
}

func (r *Result) AffectedProperty() string {
	if r == nil || !r.CalendarChanged {
		return ""
	}
	return r.Booking.PropertyID
}

var _ middleware.PropertyAffecting = (*Result)(nil)

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Env) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Env) pricing() pricing.Calculator {
	if e.Pricing != nil {
		return e.Pricing
	}
	return pricing.StandardCalculator{}
}

func (e Env) property(ctx context.Context, id property.ID) (*property.Property, error) {
	if e.Catalog == nil {
		return nil, errors.New("booking: catalog not configured")
	}
	return e.Catalog.Property(ctx, id)
}

func (e Env) quote(ctx context.Context, p *property.Property, r daterange.DateRange, guests int) (pricing.PriceBreakdown, error) {
	q, err := e.pricing().Quote(ctx, pricing.QuoteInput{
		PricePerNight: p.PricePerNight,
		Range:         r,
		PropertyType:  p.Type,
		Guests:        guests,
	})
	if errors.Is(err, pricing.ErrNotBookable) {
		return pricing.PriceBreakdown{}, domainbooking.ErrNotBookable
	}
	return q, err
}

// calendar rebuilds the property's occupancy from the unit, so the read sees
// every committed confirmation.
func calendar(ctx context.Context, unit uow.UnitOfWork, id property.ID) (*availability.Calendar, error) {
	return availability.Load(ctx, domainbooking.OccupancyStore(unit.Bookings()), id)
}

func loadBooking(ctx context.Context, unit uow.UnitOfWork, id string) (*domainbooking.Booking, error) {
	return unit.Bookings().ByID(ctx, domainbooking.ID(id))
}

// persist saves b and stages the events of b and cal in the unit's outbox.
func (e Env) persist(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, cal *availability.Calendar) error {
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return err
	}
	evs := b.Drain()
	if cal != nil {
		evs = append(evs, cal.Drain()...)
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), e.Encoder, evs); err != nil {
		return err
	}
	e.logger().Debug("booking events staged", "booking_id", b.ID, "events", eventNames(evs))
	return nil
}

func (e Env) result(b *domainbooking.Booking, now time.Time, calendarChanged bool) *Result {
	return &Result{Booking: dto.MapBooking(b, now), CalendarChanged: calendarChanged}
}

// parseRange maps malformed dates to validation errors and inverted ranges to ErrInvalidRange.
func parseRange(checkIn, checkOut string) (daterange.DateRange, error) {
	dr, err := daterange.Parse(checkIn, checkOut)
	switch {
	case err == nil:
		return dr, nil
	case errors.Is(err, daterange.ErrInvalidRange):
		return daterange.DateRange{}, domainbooking.ErrInvalidRange
	default:
		return daterange.DateRange{}, fmt.Errorf("%w: %v", middleware.ErrValidation, err)
	}
}

func eventNames(evs []events.DomainEvent) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.EventName())
	}
	return out
}
