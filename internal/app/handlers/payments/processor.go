package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	domainbooking "staybook/internal/domain/booking"
)

const (
	TypeDepositSucceeded = "payment.deposit_succeeded"
	TypeDepositFailed    = "payment.deposit_failed"
	TypeStatusUpdated    = "payment.status_updated"
)

var ErrUnknownEvent = errors.New("payments: unknown event type")

// Event is a notification from the payment collaborator.
type Event struct {
	ID            string `json:"event_id"`
	Type          string `json:"type"`
	BookingID     string `json:"booking_id"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Amount        string `json:"amount,omitempty"`
}

func (e Event) validate() error {
	var missing []string
	if strings.TrimSpace(e.ID) == "" {
		missing = append(missing, "event_id")
	}
	if strings.TrimSpace(e.Type) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(e.BookingID) == "" {
		missing = append(missing, "booking_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", middleware.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// Coordinator is the part of the booking coordinator payment events drive.
type Coordinator interface {
	ConfirmBooking(ctx context.Context, bookingID string, depositPaid bool) (dto.Booking, error)
	CancelPendingBooking(ctx context.Context, bookingID string, reason domainbooking.CancelReason) (dto.Booking, error)
	ApplyPayment(ctx context.Context, bookingID string, status domainbooking.PaymentStatus, amount string) (dto.Booking, error)
}

type Outcome struct {
	EventID   string      `json:"event_id"`
	Duplicate bool        `json:"duplicate"`
	Conflict  bool        `json:"conflict,omitempty"`
	Ignored   string      `json:"ignored,omitempty"`
	Booking   dto.Booking `json:"booking"`
}

// Processor applies payment events. The Kafka consumer and the HTTP webhook
// both feed it. An event id is recorded in the inbox only after the event was
// applied, and applying an event twice leaves the booking as the first
// application did, so a redelivery after a crash converges.
type Processor struct {
	Coordinator Coordinator
	Inbox       policies.Inbox
	Logger      *slog.Logger
}

func (p *Processor) Process(ctx context.Context, ev Event) (Outcome, error) {
	if err := ev.validate(); err != nil {
		return Outcome{}, err
	}
	out := Outcome{EventID: ev.ID}
	if p.Inbox != nil {
		seen, err := p.Inbox.Seen(ctx, ev.ID)
		if err != nil {
			return out, err
		}
		if seen {
			out.Duplicate = true
			p.logger().Info("payment event already processed", "event_id", ev.ID, "booking_id", ev.BookingID)
			return out, nil
		}
	}

	booking, err := p.apply(ctx, ev, &out)
	if err != nil {
		return out, err
	}
	out.Booking = booking
	if p.Inbox != nil {
		if err := p.Inbox.Record(context.WithoutCancel(ctx), ev.ID); err != nil {
			p.logger().Error("payment inbox record failed", "event_id", ev.ID, "err", err)
		}
	}
	return out, nil
}

func (p *Processor) apply(ctx context.Context, ev Event, out *Outcome) (dto.Booking, error) {
	switch ev.Type {
	case TypeDepositSucceeded:
		booking, err := p.Coordinator.ConfirmBooking(ctx, ev.BookingID, true)
		switch {
		case errors.Is(err, domainbooking.ErrDateConflict):
			out.Conflict = true
			p.logger().Warn("deposit received for booking that lost its dates", "event_id", ev.ID, "booking_id", ev.BookingID)
			return booking, nil
		case errors.Is(err, domainbooking.ErrInvalidTransition):
			// Already confirmed, possibly by an earlier delivery of this event
			// that did not reach the inbox. The payment status still converges.
			out.Ignored = err.Error()
			p.logger().Warn("deposit event for confirmed booking", "event_id", ev.ID, "booking_id", ev.BookingID)
			if ev.PaymentStatus != "" && ev.PaymentStatus != string(domainbooking.PaymentPartial) {
				return p.updateStatus(ctx, ev)
			}
			return booking, nil
		case errors.Is(err, domainbooking.ErrTerminalState):
			out.Ignored = err.Error()
			p.logger().Warn("deposit event ignored", "event_id", ev.ID, "booking_id", ev.BookingID, "err", err)
			return booking, nil
		case err != nil:
			return booking, err
		}
		if ev.PaymentStatus != "" && ev.PaymentStatus != string(domainbooking.PaymentPartial) {
			return p.updateStatus(ctx, ev)
		}
		return booking, nil
	case TypeDepositFailed:
		// Only a pending booking is cancelled; a late failure never undoes a confirmation.
		booking, err := p.Coordinator.CancelPendingBooking(ctx, ev.BookingID, domainbooking.ReasonPaymentFailed)
		if errors.Is(err, domainbooking.ErrTerminalState) || errors.Is(err, domainbooking.ErrInvalidTransition) {
			out.Ignored = err.Error()
			p.logger().Warn("deposit failure ignored", "event_id", ev.ID, "booking_id", ev.BookingID, "err", err)
			return booking, nil
		}
		return booking, err
	case TypeStatusUpdated:
		return p.updateStatus(ctx, ev)
	default:
		return dto.Booking{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
}

func (p *Processor) updateStatus(ctx context.Context, ev Event) (dto.Booking, error) {
	status, err := domainbooking.ParsePaymentStatus(ev.PaymentStatus)
	if err != nil {
		return dto.Booking{}, fmt.Errorf("%w: %v", middleware.ErrValidation, err)
	}
	return p.Coordinator.ApplyPayment(ctx, ev.BookingID, status, ev.Amount)
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
