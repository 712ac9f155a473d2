package booking

import (
	"context"

	"staybook/internal/app/commands"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/money"
)

const applyPaymentKey = "booking.payment"

// ApplyPaymentCommand stores the payment collaborator's status. An empty Amount
// derives the paid amount from the status.
type ApplyPaymentCommand struct {
	BookingID string `validate:"required"`
	Status    string `validate:"required,oneof=unpaid partial paid"`
	Amount    string `validate:"omitempty,numeric"`
}

func (c ApplyPaymentCommand) Key() string { return applyPaymentKey }

func (c ApplyPaymentCommand) LockTarget() middleware.LockTarget {
	return middleware.LockTarget{BookingID: c.BookingID}
}

type ApplyPaymentHandler struct {
	Env
}

func (h *ApplyPaymentHandler) Handle(ctx context.Context, cmd ApplyPaymentCommand) (*Result, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	b, err := loadBooking(ctx, unit, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	status, err := domainbooking.ParsePaymentStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	paid, err := paidAmount(b, status, cmd.Amount)
	if err != nil {
		return nil, err
	}
	now := h.now()
	if err := b.ApplyPayment(status, paid, now); err != nil {
		return nil, err
	}
	if err := h.persist(ctx, unit, b, nil); err != nil {
		return nil, err
	}
	h.logger().Info("booking payment updated", "booking_id", b.ID, "payment_status", status)
	return h.result(b, now, false), nil
}

func paidAmount(b *domainbooking.Booking, status domainbooking.PaymentStatus, amount string) (money.Money, error) {
	if amount != "" {
		return money.Parse(amount, b.Price.Currency())
	}
	switch status {
	case domainbooking.PaymentPaid:
		return b.TotalPrice(), nil
	case domainbooking.PaymentPartial:
		return b.DepositAmount(), nil
	default:
		return money.Zero(b.Price.Currency()), nil
	}
}

var _ commands.Handler[ApplyPaymentCommand, *Result] = (*ApplyPaymentHandler)(nil)
var _ middleware.PropertyScoped = (*ApplyPaymentCommand)(nil)
