package booking

import (
	"context"
	"errors"

	"staybook/internal/app/commands"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
)

const confirmBookingKey = "booking.confirm"

type ConfirmBookingCommand struct {
	BookingID string `validate:"required"`
	// DepositPaid records the deposit as received alongside the confirmation.
	DepositPaid bool
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

func (c ConfirmBookingCommand) LockTarget() middleware.LockTarget {
	return middleware.LockTarget{BookingID: c.BookingID}
}

// ConfirmBookingHandler moves a pending booking onto the calendar. When a
// confirmed booking already holds an overlapping range the booking is cancelled
// with reason lost_race; the cancellation commits and the result reports Conflict.
type ConfirmBookingHandler struct {
	Env
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*Result, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	b, err := loadBooking(ctx, unit, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	now := h.now()
	if b.EffectiveStatus(now).IsTerminal() {
		return nil, domainbooking.ErrTerminalState
	}
	if b.Status != domainbooking.StatusPending {
		return nil, domainbooking.ErrInvalidTransition
	}
	cal, err := calendar(ctx, unit, b.PropertyID)
	if err != nil {
		return nil, err
	}

	if err := cal.Reserve(b.Range, string(b.ID), now); err != nil {
		if !errors.Is(err, availability.ErrOverlappingRange) {
			return nil, err
		}
		if err := b.Cancel(domainbooking.ReasonLostRace, domainbooking.ActorSystem, now); err != nil {
			return nil, err
		}
		if err := h.persist(ctx, unit, b, cal); err != nil {
			return nil, err
		}
		h.logger().Warn("booking lost race", "booking_id", b.ID, "property_id", b.PropertyID, "range", b.Range.String())
		res := h.result(b, now, false)
		res.Conflict = true
		return res, nil
	}

	if err := b.Confirm(now); err != nil {
		return nil, err
	}
	if cmd.DepositPaid {
		if err := b.ApplyPayment(domainbooking.PaymentPartial, b.DepositAmount(), now); err != nil {
			return nil, err
		}
	}
	if err := h.persist(ctx, unit, b, cal); err != nil {
		return nil, err
	}
	h.logger().Info("booking confirmed", "booking_id", b.ID, "property_id", b.PropertyID, "range", b.Range.String())
	return h.result(b, now, true), nil
}

var _ commands.Handler[ConfirmBookingCommand, *Result] = (*ConfirmBookingHandler)(nil)
var _ middleware.PropertyScoped = (*ConfirmBookingCommand)(nil)
