package booking

import (
	"context"

	"staybook/internal/app/commands"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
)

const modifyBookingKey = "booking.modify"

// ModifyBookingCommand changes any subset of dates, party size and notes.
type ModifyBookingCommand struct {
	BookingID  string  `validate:"required"`
	CheckIn    *string `validate:"omitempty,datetime=2006-01-02"`
	CheckOut   *string `validate:"omitempty,datetime=2006-01-02"`
	GuestCount *int    `validate:"omitempty,min=1,max=64"`
	Notes      *string `validate:"omitempty,max=2000"`
}

func (c ModifyBookingCommand) Key() string { return modifyBookingKey }

func (c ModifyBookingCommand) LockTarget() middleware.LockTarget {
	return middleware.LockTarget{BookingID: c.BookingID}
}

// ModifyBookingHandler re-validates a changed range against the other confirmed
// bookings and re-derives the price. On any rejection the booking is left as stored.
type ModifyBookingHandler struct {
	Env
}

func (h *ModifyBookingHandler) Handle(ctx context.Context, cmd ModifyBookingCommand) (*Result, error) {
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

	newRange := b.Range
	if cmd.CheckIn != nil || cmd.CheckOut != nil {
		in, out := b.Range.CheckIn.Format(daterange.Layout), b.Range.CheckOut.Format(daterange.Layout)
		if cmd.CheckIn != nil {
			in = *cmd.CheckIn
		}
		if cmd.CheckOut != nil {
			out = *cmd.CheckOut
		}
		if newRange, err = parseRange(in, out); err != nil {
			return nil, err
		}
	}
	guests := b.Guests
	if cmd.GuestCount != nil {
		guests = *cmd.GuestCount
	}

	rangeChanged := !newRange.Equal(b.Range)
	var cal *availability.Calendar
	if rangeChanged || guests != b.Guests {
		prop, err := h.property(ctx, b.PropertyID)
		if err != nil {
			return nil, err
		}
		if rangeChanged {
			cal, err = calendar(ctx, unit, b.PropertyID)
			if err != nil {
				return nil, err
			}
			req := availability.Request{Range: newRange, Exclude: string(b.ID), AllowCheckIn: b.Range.CheckIn}
			if res := availability.Evaluate(prop, cal, req, now); !res.Available {
				h.logger().Info("booking modification rejected", "booking_id", b.ID, "range", newRange.String(), "reason", res.Reason)
				return nil, domainbooking.ReasonError(res.Reason)
			}
			if b.Status == domainbooking.StatusConfirmed {
				if err := cal.Move(string(b.ID), newRange, now); err != nil {
					return nil, err
				}
			}
		}
		quote, err := h.quote(ctx, prop, newRange, guests)
		if err != nil {
			return nil, err
		}
		if err := b.Reschedule(newRange, guests, quote, now); err != nil {
			return nil, err
		}
	}
	if cmd.Notes != nil {
		if err := b.UpdateNotes(*cmd.Notes, now); err != nil {
			return nil, err
		}
	}
	if err := h.persist(ctx, unit, b, cal); err != nil {
		return nil, err
	}
	calendarChanged := rangeChanged && b.Status == domainbooking.StatusConfirmed
	if rangeChanged {
		h.logger().Info("booking modified", "booking_id", b.ID, "range", newRange.String())
	}
	return h.result(b, now, calendarChanged), nil
}

var _ commands.Handler[ModifyBookingCommand, *Result] = (*ModifyBookingHandler)(nil)
var _ middleware.PropertyScoped = (*ModifyBookingCommand)(nil)
