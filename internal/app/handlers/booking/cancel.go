package booking

import (
	"context"
	"errors"
	"fmt"

	"staybook/internal/app/commands"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
)

const cancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	Actor     string `validate:"omitempty,oneof=guest owner system"`
	Reason    string `validate:"omitempty,oneof=guest_request owner_request payment_failed payment_timeout lost_race"`
	// OnlyIfPending refuses the cancellation with ErrInvalidTransition when the
	// booking is no longer pending by the time the property lock is held.
	OnlyIfPending bool
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) LockTarget() middleware.LockTarget {
	return middleware.LockTarget{BookingID: c.BookingID}
}

// CancelBookingHandler cancels a pending or confirmed booking. A confirmed
// booking's range is released in the same unit of work as the status write.
type CancelBookingHandler struct {
	Env
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*Result, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	b, err := loadBooking(ctx, unit, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	now := h.now()
	if cmd.OnlyIfPending && b.Status != domainbooking.StatusPending {
		if b.EffectiveStatus(now).IsTerminal() {
			return nil, domainbooking.ErrTerminalState
		}
		return nil, fmt.Errorf("%w: booking %s is %s, not pending", domainbooking.ErrInvalidTransition, b.ID, b.Status)
	}
	actor := domainbooking.Actor(cmd.Actor)
	if actor == "" {
		actor = domainbooking.ActorGuest
	}
	wasConfirmed := b.Status == domainbooking.StatusConfirmed
	if err := b.Cancel(domainbooking.CancelReason(cmd.Reason), actor, now); err != nil {
		return nil, err
	}

	var cal *availability.Calendar
	if wasConfirmed {
		cal, err = calendar(ctx, unit, b.PropertyID)
		if err != nil {
			return nil, err
		}
		if err := cal.Release(string(b.ID), now); err != nil && !errors.Is(err, availability.ErrRangeNotFound) {
			return nil, err
		}
	}
	if err := h.persist(ctx, unit, b, cal); err != nil {
		return nil, err
	}
	h.logger().Info("booking cancelled", "booking_id", b.ID, "property_id", b.PropertyID, "reason", b.CancelReason, "actor", actor)
	return h.result(b, now, wasConfirmed), nil
}

var _ commands.Handler[CancelBookingCommand, *Result] = (*CancelBookingHandler)(nil)
var _ middleware.PropertyScoped = (*CancelBookingCommand)(nil)
