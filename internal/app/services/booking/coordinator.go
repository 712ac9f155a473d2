// Package booking exposes the booking coordinator: the single entry point that
// mutates booking status or dates. Every operation is dispatched through the
// command bus, which serializes it on the property lock and commits it atomically.
package booking

import (
	"context"
	"fmt"
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
)

type Coordinator struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type CreateParams struct {
	PropertyID     string
	GuestID        string
	CheckIn        string
	CheckOut       string
	GuestCount     int
	Notes          string
	IdempotencyKey string
}

type ModifyParams struct {
	CheckIn    *string
	CheckOut   *string
	GuestCount *int
	Notes      *string
}

func (c *Coordinator) CreateBooking(ctx context.Context, p CreateParams) (dto.Booking, error) {
	res, err := commands.Dispatch[bookingapp.CreateBookingCommand, *bookingapp.Result](ctx, c.Commands, bookingapp.CreateBookingCommand{
		PropertyID:      p.PropertyID,
		GuestID:         p.GuestID,
		CheckIn:         p.CheckIn,
		CheckOut:        p.CheckOut,
		GuestCount:      p.GuestCount,
		Notes:           p.Notes,
		IdempotencyKeyV: p.IdempotencyKey,
	})
	return unwrap(res, err)
}

// ConfirmBooking confirms a pending booking. When a competing confirmation won
// the range, the booking comes back cancelled together with ErrDateConflict.
func (c *Coordinator) ConfirmBooking(ctx context.Context, bookingID string, depositPaid bool) (dto.Booking, error) {
	res, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, *bookingapp.Result](ctx, c.Commands, bookingapp.ConfirmBookingCommand{
		BookingID:   bookingID,
		DepositPaid: depositPaid,
	})
	out, err := unwrap(res, err)
	if err != nil {
		return out, err
	}
	if res.Conflict {
		c.logger().Warn("confirmation lost race", "booking_id", bookingID)
		return out, fmt.Errorf("%w: booking %s cancelled as lost_race", domainbooking.ErrDateConflict, bookingID)
	}
	return out, nil
}

func (c *Coordinator) ModifyBooking(ctx context.Context, bookingID string, p ModifyParams) (dto.Booking, error) {
	res, err := commands.Dispatch[bookingapp.ModifyBookingCommand, *bookingapp.Result](ctx, c.Commands, bookingapp.ModifyBookingCommand{
		BookingID:  bookingID,
		CheckIn:    p.CheckIn,
		CheckOut:   p.CheckOut,
		GuestCount: p.GuestCount,
		Notes:      p.Notes,
	})
	return unwrap(res, err)
}

func (c *Coordinator) CancelBooking(ctx context.Context, bookingID string, actor domainbooking.Actor, reason domainbooking.CancelReason) (dto.Booking, error) {
	res, err := commands.Dispatch[bookingapp.CancelBookingCommand, *bookingapp.Result](ctx, c.Commands, bookingapp.CancelBookingCommand{
		BookingID: bookingID,
		Actor:     string(actor),
		Reason:    string(reason),
	})
	return unwrap(res, err)
}

// CancelPendingBooking cancels on behalf of the system only while the booking is
// still pending. A booking confirmed in the meantime is left alone and the call
// fails with ErrInvalidTransition.
func (c *Coordinator) CancelPendingBooking(ctx context.Context, bookingID string, reason domainbooking.CancelReason) (dto.Booking, error) {
	res, err := commands.Dispatch[bookingapp.CancelBookingCommand, *bookingapp.Result](ctx, c.Commands, bookingapp.CancelBookingCommand{
		BookingID:     bookingID,
		Actor:         string(domainbooking.ActorSystem),
		Reason:        string(reason),
		OnlyIfPending: true,
	})
	return unwrap(res, err)
}

// CompleteBooking persists lazy completion; repeating it is harmless.
func (c *Coordinator) CompleteBooking(ctx context.Context, bookingID string) (dto.Booking, error) {
	res, err := commands.Dispatch[bookingapp.CompleteBookingCommand, *bookingapp.Result](ctx, c.Commands, bookingapp.CompleteBookingCommand{
		BookingID: bookingID,
	})
	return unwrap(res, err)
}

func (c *Coordinator) ApplyPayment(ctx context.Context, bookingID string, status domainbooking.PaymentStatus, amount string) (dto.Booking, error) {
	res, err := commands.Dispatch[bookingapp.ApplyPaymentCommand, *bookingapp.Result](ctx, c.Commands, bookingapp.ApplyPaymentCommand{
		BookingID: bookingID,
		Status:    string(status),
		Amount:    amount,
	})
	return unwrap(res, err)
}

func (c *Coordinator) GetBooking(ctx context.Context, bookingID string) (dto.Booking, error) {
	return queries.Ask[bookingapp.GetBookingQuery, dto.Booking](ctx, c.Queries, bookingapp.GetBookingQuery{BookingID: bookingID})
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func unwrap(res *bookingapp.Result, err error) (dto.Booking, error) {
	if err != nil {
		return dto.Booking{}, err
	}
	if res == nil {
		return dto.Booking{}, commands.ErrResultType
	}
	return res.Booking, nil
}
