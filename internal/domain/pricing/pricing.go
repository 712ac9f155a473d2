package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var (
	ErrNightsRange   = errors.New("pricing: stay must be at least one night")
	ErrInvalidGuests = errors.New("pricing: guest count must be positive")
	ErrCurrencyUnset = errors.New("pricing: currency must be defined")
	ErrNotBookable   = errors.New("pricing: property type cannot be priced for a stay")
)

var (
	// ServiceFeeRate applies to the stay subtotal (base plus surcharge).
	ServiceFeeRate = decimal.RequireFromString("0.10")
	// DepositRate is the share of the grand total due upfront to confirm a booking.
	DepositRate = decimal.RequireFromString("0.30")
	// ExtraGuestRate is charged per nightly rate for each hotel guest above IncludedGuests.
	ExtraGuestRate = decimal.RequireFromString("0.5")
)

const IncludedGuests = 2

// PriceBreakdown holds the displayed amounts of a quote, each rounded half-up to
// the currency minor unit. Remaining is derived from the rounded grand total and
// deposit so that Deposit + Remaining == GrandTotal always holds.
type PriceBreakdown struct {
	Nights              int
	Nightly             money.Money
	BaseTotal           money.Money
	ExtraGuestSurcharge money.Money
	ServiceFee          money.Money
	GrandTotal          money.Money
	Deposit             money.Money
	Remaining           money.Money
}

func (p PriceBreakdown) Currency() string {
	return p.Nightly.Currency
}

func (p PriceBreakdown) Validate() error {
	if p.Nightly.Currency == "" {
		return ErrCurrencyUnset
	}
	if p.Nights <= 0 {
		return ErrNightsRange
	}
	return nil
}

type QuoteInput struct {
	PricePerNight money.Money
	Range         daterange.DateRange
	PropertyType  property.Type
	Guests        int
}

type Calculator interface {
	Quote(ctx context.Context, input QuoteInput) (PriceBreakdown, error)
}

// StandardCalculator implements the fixed fee and deposit schedule.
type StandardCalculator struct{}

func (StandardCalculator) Quote(_ context.Context, input QuoteInput) (PriceBreakdown, error) {
	return Compute(input)
}

// Compute is the pure pricing function. All intermediates keep full precision.
func Compute(input QuoteInput) (PriceBreakdown, error) {
	if input.PricePerNight.Currency == "" {
		return PriceBreakdown{}, ErrCurrencyUnset
	}
	if !input.PropertyType.Bookable() {
		return PriceBreakdown{}, ErrNotBookable
	}
	if input.Guests <= 0 {
		return PriceBreakdown{}, ErrInvalidGuests
	}
	nights := input.Range.Nights()
	if nights < 1 {
		return PriceBreakdown{}, ErrNightsRange
	}

	rate := input.PricePerNight
	base := rate.Multiply(int64(nights))
	surcharge := money.Zero(rate.Currency)
	if input.PropertyType == property.TypeHotel && input.Guests > IncludedGuests {
		extra := int64(input.Guests - IncludedGuests)
		surcharge = base.Scale(ExtraGuestRate).Multiply(extra)
	}
	subtotal, err := base.Add(surcharge)
	if err != nil {
		return PriceBreakdown{}, err
	}
	fee := subtotal.Scale(ServiceFeeRate)
	grand, err := subtotal.Add(fee)
	if err != nil {
		return PriceBreakdown{}, err
	}
	deposit := grand.Scale(DepositRate)

	grandRounded := grand.Round()
	depositRounded := deposit.Round()
	remaining, err := grandRounded.Sub(depositRounded)
	if err != nil {
		return PriceBreakdown{}, err
	}

	return PriceBreakdown{
		Nights:              nights,
		Nightly:             rate.Round(),
		BaseTotal:           base.Round(),
		ExtraGuestSurcharge: surcharge.Round(),
		ServiceFee:          fee.Round(),
		GrandTotal:          grandRounded,
		Deposit:             depositRounded,
		Remaining:           remaining,
	}, nil
}

var _ Calculator = StandardCalculator{}
