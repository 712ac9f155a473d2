package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/availability"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
	domainavailability "staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

type staticStore []domainavailability.Occupancy

func (s staticStore) OccupiedRanges(context.Context, property.ID) ([]domainavailability.Occupancy, error) {
	return s, nil
}

func occupancy(t *testing.T, id, in, out string) domainavailability.Occupancy {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	require.NoError(t, err)
	return domainavailability.Occupancy{BookingID: id, Range: dr}
}

func newBus(t *testing.T, store domainavailability.Store) *queries.InMemoryBus {
	t.Helper()
	catalog := memory.NewCatalog(
		property.Property{ID: "loft", OwnerID: "o-1", Title: "Loft", Type: property.TypeRent, PricePerNight: money.Must("100", "EUR")},
		property.Property{ID: "plot", OwnerID: "o-1", Title: "Plot", Type: property.TypeSale, PricePerNight: money.Must("1", "EUR")},
	)
	h := &availability.Handlers{
		Catalog: catalog,
		Store:   store,
		Now:     func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	bus := queries.NewInMemoryBus()
	availability.RegisterQueries(bus, h)
	return bus
}

func TestGet_BlockedDatesWithinWindow(t *testing.T) {
	bus := newBus(t, staticStore{
		occupancy(t, "b-1", "2025-06-10", "2025-06-12"),
		occupancy(t, "b-2", "2025-07-01", "2025-07-03"),
	})

	all, err := queries.Ask[availability.GetAvailabilityQuery, dto.Availability](context.Background(), bus, availability.GetAvailabilityQuery{PropertyID: "loft"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-10", "2025-06-11", "2025-07-01", "2025-07-02"}, all.BlockedDates)
	assert.Len(t, all.Occupied, 2)

	june, err := queries.Ask[availability.GetAvailabilityQuery, dto.Availability](context.Background(), bus, availability.GetAvailabilityQuery{
		PropertyID: "loft", From: "2025-06-01", To: "2025-07-01",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-10", "2025-06-11"}, june.BlockedDates)
}

func TestGet_HalfWindowRejected(t *testing.T) {
	bus := newBus(t, staticStore{})
	_, err := queries.Ask[availability.GetAvailabilityQuery, dto.Availability](context.Background(), bus, availability.GetAvailabilityQuery{PropertyID: "loft", From: "2025-06-01"})
	assert.ErrorIs(t, err, middleware.ErrValidation)
}

func TestGet_UnknownProperty(t *testing.T) {
	bus := newBus(t, staticStore{})
	_, err := queries.Ask[availability.GetAvailabilityQuery, dto.Availability](context.Background(), bus, availability.GetAvailabilityQuery{PropertyID: "nope"})
	assert.ErrorIs(t, err, property.ErrNotFound)
}

func TestCheck_Reasons(t *testing.T) {
	bus := newBus(t, staticStore{occupancy(t, "b-1", "2025-06-10", "2025-06-12")})
	cases := []struct {
		name     string
		id       string
		in, out  string
		expected string
	}{
		{"free", "loft", "2025-06-12", "2025-06-15", ""},
		{"overlap", "loft", "2025-06-11", "2025-06-13", "date_conflict"},
		{"inverted", "loft", "2025-06-15", "2025-06-12", "invalid_range"},
		{"past", "loft", "2025-04-01", "2025-04-03", "invalid_date"},
		{"sale", "plot", "2025-06-01", "2025-06-03", "not_bookable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := queries.Ask[availability.CheckAvailabilityQuery, dto.AvailabilityCheck](context.Background(), bus, availability.CheckAvailabilityQuery{
				PropertyID: tc.id, CheckIn: tc.in, CheckOut: tc.out,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expected == "", res.Available)
			assert.Equal(t, tc.expected, res.Reason)
		})
	}
}

func TestQuote_StandardPricing(t *testing.T) {
	bus := newBus(t, staticStore{})
	q, err := queries.Ask[availability.QuoteQuery, dto.Quote](context.Background(), bus, availability.QuoteQuery{
		PropertyID: "loft", CheckIn: "2025-06-01", CheckOut: "2025-06-04", GuestCount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "rent", q.PropertyType)
	assert.Equal(t, 3, q.Price.Nights)
	assert.Equal(t, "330.00", q.Price.GrandTotal.Amount)
	assert.Equal(t, "99.00", q.Price.Deposit.Amount)
	assert.Equal(t, "231.00", q.Price.Remaining.Amount)
	assert.Equal(t, "EUR", q.Price.GrandTotal.Currency)
}

func TestQuote_InvalidRange(t *testing.T) {
	bus := newBus(t, staticStore{})
	_, err := queries.Ask[availability.QuoteQuery, dto.Quote](context.Background(), bus, availability.QuoteQuery{
		PropertyID: "loft", CheckIn: "2025-06-04", CheckOut: "2025-06-04", GuestCount: 1,
	})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}
