package pricing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func stay(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	require.NoError(t, err)
	return dr
}

func assertAmount(t *testing.T, want string, got money.Money) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got.Amount), "want %s, got %s", want, got.Amount)
}

func TestCompute_RentFiveNights(t *testing.T) {
	quote, err := pricing.Compute(pricing.QuoteInput{
		PricePerNight: money.Must("100", "USD"),
		Range:         stay(t, "2025-06-01", "2025-06-06"),
		PropertyType:  property.TypeRent,
		Guests:        2,
	})

	require.NoError(t, err)
	assert.Equal(t, 5, quote.Nights)
	assertAmount(t, "500", quote.BaseTotal)
	assertAmount(t, "0", quote.ExtraGuestSurcharge)
	assertAmount(t, "50", quote.ServiceFee)
	assertAmount(t, "165", quote.Deposit)
	assertAmount(t, "385", quote.Remaining)
	assertAmount(t, "550", quote.GrandTotal)
}

func TestCompute_HotelExtraGuests(t *testing.T) {
	quote, err := pricing.Compute(pricing.QuoteInput{
		PricePerNight: money.Must("80", "EUR"),
		Range:         stay(t, "2025-06-01", "2025-06-04"),
		PropertyType:  property.TypeHotel,
		Guests:        4,
	})

	require.NoError(t, err)
	// base 240, surcharge 0.5*80*3*2 = 240, fee 48, grand 528
	assertAmount(t, "240", quote.BaseTotal)
	assertAmount(t, "240", quote.ExtraGuestSurcharge)
	assertAmount(t, "48", quote.ServiceFee)
	assertAmount(t, "528", quote.GrandTotal)
	assertAmount(t, "158.4", quote.Deposit)
	assertAmount(t, "369.6", quote.Remaining)
}

func TestCompute_RentIgnoresExtraGuests(t *testing.T) {
	quote, err := pricing.Compute(pricing.QuoteInput{
		PricePerNight: money.Must("100", "USD"),
		Range:         stay(t, "2025-06-01", "2025-06-02"),
		PropertyType:  property.TypeRent,
		Guests:        6,
	})

	require.NoError(t, err)
	assertAmount(t, "0", quote.ExtraGuestSurcharge)
	assertAmount(t, "110", quote.GrandTotal)
}

func TestCompute_RoundsOnlyFinalAmounts(t *testing.T) {
	quote, err := pricing.Compute(pricing.QuoteInput{
		PricePerNight: money.Must("33.33", "USD"),
		Range:         stay(t, "2025-06-01", "2025-06-04"),
		PropertyType:  property.TypeHotel,
		Guests:        3,
	})

	require.NoError(t, err)
	// base 99.99, surcharge 49.995, fee 14.9985, grand 164.9835, deposit 49.49505
	assertAmount(t, "99.99", quote.BaseTotal)
	assertAmount(t, "50.00", quote.ExtraGuestSurcharge)
	assertAmount(t, "15.00", quote.ServiceFee)
	assertAmount(t, "164.98", quote.GrandTotal)
	assertAmount(t, "49.50", quote.Deposit)
	assertAmount(t, "115.48", quote.Remaining)

	sum, err := quote.Deposit.Add(quote.Remaining)
	require.NoError(t, err)
	assert.True(t, sum.Equal(quote.GrandTotal))
}

func TestCompute_Rejections(t *testing.T) {
	base := pricing.QuoteInput{
		PricePerNight: money.Must("100", "USD"),
		Range:         stay(t, "2025-06-01", "2025-06-02"),
		PropertyType:  property.TypeRent,
		Guests:        1,
	}

	sale := base
	sale.PropertyType = property.TypeSale
	_, err := pricing.Compute(sale)
	assert.ErrorIs(t, err, pricing.ErrNotBookable)

	noGuests := base
	noGuests.Guests = 0
	_, err = pricing.Compute(noGuests)
	assert.ErrorIs(t, err, pricing.ErrInvalidGuests)

	noNights := base
	noNights.Range = daterange.DateRange{CheckIn: base.Range.CheckIn, CheckOut: base.Range.CheckIn}
	_, err = pricing.Compute(noNights)
	assert.ErrorIs(t, err, pricing.ErrNightsRange)
}

func TestStandardCalculator_IsDeterministic(t *testing.T) {
	in := pricing.QuoteInput{
		PricePerNight: money.Must("129.99", "USD"),
		Range:         stay(t, "2025-06-01", "2025-06-08"),
		PropertyType:  property.TypeHotel,
		Guests:        5,
	}
	first, err := pricing.StandardCalculator{}.Quote(context.Background(), in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := pricing.StandardCalculator{}.Quote(context.Background(), in)
		require.NoError(t, err)
		assert.True(t, first.GrandTotal.Equal(again.GrandTotal))
		assert.True(t, first.Deposit.Equal(again.Deposit))
	}
}
