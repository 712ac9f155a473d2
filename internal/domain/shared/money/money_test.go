package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/money"
)

func TestNew_NormalizesCurrency(t *testing.T) {
	m, err := money.New(decimal.NewFromInt(10), " usd ")

	require.NoError(t, err)
	assert.Equal(t, "USD", m.Currency)

	_, err = money.New(decimal.NewFromInt(10), "dollars")
	assert.ErrorIs(t, err, money.ErrInvalidCurrency)
}

func TestParse_InvalidAmount(t *testing.T) {
	_, err := money.Parse("12,5", "EUR")
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	_, err := money.Must("1", "USD").Add(money.Must("1", "EUR"))
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}

func TestRound_HalfUpPerCurrency(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"10.005", "USD", "10.01"},
		{"10.004", "USD", "10.00"},
		{"99.5", "JPY", "100"},
		{"1.0005", "KWD", "1.001"},
	}
	for _, tc := range cases {
		t.Run(tc.amount+tc.currency, func(t *testing.T) {
			got := money.Must(tc.amount, tc.currency).Round()
			assert.True(t, got.Amount.Equal(decimal.RequireFromString(tc.want)), "got %s", got.Amount)
		})
	}
}

func TestScale_KeepsFullPrecision(t *testing.T) {
	third := money.Must("100", "USD").Scale(decimal.RequireFromString("0.333"))

	assert.Equal(t, "33.3", third.Amount.String())
	assert.Equal(t, "33.30 USD", third.String())
}
