package booking

import (
	"context"

	"staybook/internal/app/commands"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
)

const completeBookingKey = "booking.complete"

type CompleteBookingCommand struct {
	BookingID string `validate:"required"`
}

func (c CompleteBookingCommand) Key() string { return completeBookingKey }

func (c CompleteBookingCommand) LockTarget() middleware.LockTarget {
	return middleware.LockTarget{BookingID: c.BookingID}
}

// CompleteBookingHandler persists lazy completion. Completing an already
// completed booking is a no-op.
type CompleteBookingHandler struct {
	Env
}

func (h *CompleteBookingHandler) Handle(ctx context.Context, cmd CompleteBookingCommand) (*Result, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	b, err := loadBooking(ctx, unit, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	now := h.now()
	changed, err := b.Complete(now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return h.result(b, now, false), nil
	}
	if err := h.persist(ctx, unit, b, nil); err != nil {
		return nil, err
	}
	h.logger().Info("booking completed", "booking_id", b.ID, "property_id", b.PropertyID)
	return h.result(b, now, true), nil
}

var _ commands.Handler[CompleteBookingCommand, *Result] = (*CompleteBookingHandler)(nil)
var _ middleware.PropertyScoped = (*CompleteBookingCommand)(nil)
