package booking

import (
	"context"

	"staybook/internal/app/commands"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

const createBookingKey = "booking.create"

type CreateBookingCommand struct {
	PropertyID      string `validate:"required,notblank"`
	GuestID         string `validate:"required,notblank"`
	CheckIn         string `validate:"required,datetime=2006-01-02"`
	CheckOut        string `validate:"required,datetime=2006-01-02"`
	GuestCount      int    `validate:"min=1,max=64"`
	Notes           string `validate:"max=2000"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &Result{} }

func (c CreateBookingCommand) LockTarget() middleware.LockTarget {
	return middleware.LockTarget{PropertyID: c.PropertyID}
}

// CreateBookingHandler records a pending booking. Pending bookings do not occupy
// the calendar, so overlapping pending requests may all succeed here.
type CreateBookingHandler struct {
	Env
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*Result, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	dr, err := parseRange(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	prop, err := h.property(ctx, property.ID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	cal, err := calendar(ctx, unit, prop.ID)
	if err != nil {
		return nil, err
	}
	now := h.now()
	if res := availability.Evaluate(prop, cal, availability.Request{Range: dr}, now); !res.Available {
		h.logger().Info("booking rejected", "property_id", prop.ID, "range", dr.String(), "reason", res.Reason)
		return nil, domainbooking.ReasonError(res.Reason)
	}
	quote, err := h.quote(ctx, prop, dr, cmd.GuestCount)
	if err != nil {
		return nil, err
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.ID(h.newID()),
		PropertyID: prop.ID,
		GuestID:    cmd.GuestID,
		Range:      dr,
		Guests:     cmd.GuestCount,
		Price:      quote,
		Notes:      cmd.Notes,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	if err := h.persist(ctx, unit, b, nil); err != nil {
		return nil, err
	}
	h.logger().Info("booking created", "booking_id", b.ID, "property_id", b.PropertyID, "range", dr.String())
	return h.result(b, now, false), nil
}

var _ commands.Handler[CreateBookingCommand, *Result] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateBookingCommand)(nil)
var _ middleware.PropertyScoped = (*CreateBookingCommand)(nil)
