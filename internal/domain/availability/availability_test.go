package availability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var today = time.Date(2025, 5, 1, 15, 30, 0, 0, time.UTC)

func rng(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	require.NoError(t, err)
	return dr
}

type fakeStore struct {
	occupied []availability.Occupancy
	err      error
	calls    int
}

func (f *fakeStore) OccupiedRanges(context.Context, property.ID) ([]availability.Occupancy, error) {
	f.calls++
	return f.occupied, f.err
}

var _ availability.Store = (*fakeStore)(nil)

func rental(kind property.Type) *property.Property {
	return &property.Property{ID: "p-1", Type: kind, PricePerNight: money.Must("100", "USD")}
}

func TestCalendar_ReserveRejectsOverlap(t *testing.T) {
	cal := availability.NewCalendar("p-1", nil)
	require.NoError(t, cal.Reserve(rng(t, "2025-06-01", "2025-06-05"), "b-1", today))

	err := cal.Reserve(rng(t, "2025-06-03", "2025-06-07"), "b-2", today)
	assert.ErrorIs(t, err, availability.ErrOverlappingRange)

	// back-to-back stays share the changeover day
	require.NoError(t, cal.Reserve(rng(t, "2025-06-05", "2025-06-08"), "b-3", today))

	names := []string{}
	for _, ev := range cal.PendingEvents() {
		names = append(names, ev.EventName())
	}
	assert.Equal(t, []string{"calendar.blocked", "calendar.overbooking_prevented", "calendar.blocked"}, names)
	assert.Len(t, cal.OccupiedRanges(), 2)
}

func TestCalendar_ReleaseAndMove(t *testing.T) {
	cal := availability.NewCalendar("p-1", []availability.Occupancy{
		{BookingID: "b-1", Range: rng(t, "2025-06-01", "2025-06-05")},
		{BookingID: "b-2", Range: rng(t, "2025-06-10", "2025-06-12")},
	})

	// moving within its own range is not a conflict
	require.NoError(t, cal.Move("b-1", rng(t, "2025-06-02", "2025-06-06"), today))
	assert.ErrorIs(t, cal.Move("b-1", rng(t, "2025-06-08", "2025-06-11"), today), availability.ErrOverlappingRange)

	require.NoError(t, cal.Release("b-2", today))
	assert.ErrorIs(t, cal.Release("b-2", today), availability.ErrRangeNotFound)
	assert.False(t, cal.IsOccupied(rng(t, "2025-06-10", "2025-06-12")))
	assert.True(t, cal.IsOccupied(rng(t, "2025-06-05", "2025-06-07")))
}

func TestCalendar_BlockedDatesMergesAndClips(t *testing.T) {
	cal := availability.NewCalendar("p-1", []availability.Occupancy{
		{BookingID: "b-2", Range: rng(t, "2025-06-03", "2025-06-05")},
		{BookingID: "b-1", Range: rng(t, "2025-06-01", "2025-06-03")},
		{BookingID: "b-3", Range: rng(t, "2025-06-20", "2025-06-22")},
	})

	compact := cal.Compact(nil)
	require.Len(t, compact, 2)
	assert.Equal(t, "[2025-06-01, 2025-06-05)", compact[0].String())

	window := rng(t, "2025-06-04", "2025-06-21")
	dates := cal.BlockedDates(&window)
	got := make([]string, 0, len(dates))
	for _, d := range dates {
		got = append(got, d.Format(daterange.Layout))
	}
	assert.Equal(t, []string{"2025-06-04", "2025-06-20"}, got)
}

func TestEvaluate_ReasonsInOrder(t *testing.T) {
	cal := availability.NewCalendar("p-1", []availability.Occupancy{
		{BookingID: "b-1", Range: rng(t, "2025-06-01", "2025-06-05")},
	})
	inverted := daterange.DateRange{CheckIn: rng(t, "2025-06-05", "2025-06-06").CheckIn, CheckOut: rng(t, "2025-06-01", "2025-06-02").CheckIn}

	cases := []struct {
		name string
		prop *property.Property
		req  availability.Request
		want availability.Reason
	}{
		{"free", rental(property.TypeRent), availability.Request{Range: rng(t, "2025-06-05", "2025-06-07")}, availability.ReasonNone},
		{"inverted", rental(property.TypeRent), availability.Request{Range: inverted}, availability.ReasonInvalidRange},
		{"past", rental(property.TypeRent), availability.Request{Range: rng(t, "2025-04-29", "2025-05-03")}, availability.ReasonInvalidDate},
		{"today is fine", rental(property.TypeHotel), availability.Request{Range: rng(t, "2025-05-01", "2025-05-02")}, availability.ReasonNone},
		{"sale", rental(property.TypeSale), availability.Request{Range: rng(t, "2025-06-10", "2025-06-12")}, availability.ReasonNotBookable},
		{"past beats sale", rental(property.TypeSale), availability.Request{Range: rng(t, "2025-04-10", "2025-04-12")}, availability.ReasonInvalidDate},
		{"conflict", rental(property.TypeRent), availability.Request{Range: rng(t, "2025-06-03", "2025-06-07")}, availability.ReasonDateConflict},
		{"own range excluded", rental(property.TypeRent), availability.Request{Range: rng(t, "2025-06-03", "2025-06-07"), Exclude: "b-1"}, availability.ReasonNone},
		{"ongoing stay keeps check-in", rental(property.TypeRent), availability.Request{Range: rng(t, "2025-04-28", "2025-05-04"), AllowCheckIn: rng(t, "2025-04-28", "2025-04-29").CheckIn}, availability.ReasonNone},
		{"ongoing stay cannot move check-in earlier", rental(property.TypeRent), availability.Request{Range: rng(t, "2025-04-27", "2025-05-04"), AllowCheckIn: rng(t, "2025-04-28", "2025-04-29").CheckIn}, availability.ReasonInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := availability.Evaluate(tc.prop, cal, tc.req, today)
			assert.Equal(t, tc.want, res.Reason)
			assert.Equal(t, tc.want == availability.ReasonNone, res.Available)
		})
	}
}

func TestChecker_SkipsStoreForInputFaults(t *testing.T) {
	store := &fakeStore{}
	checker := availability.NewChecker(store, func() time.Time { return today })

	res, err := checker.Check(context.Background(), rental(property.TypeSale), availability.Request{Range: rng(t, "2025-06-01", "2025-06-02")})
	require.NoError(t, err)
	assert.Equal(t, availability.ReasonNotBookable, res.Reason)
	assert.Zero(t, store.calls)
}

func TestChecker_ReportsConflictAndStoreErrors(t *testing.T) {
	store := &fakeStore{occupied: []availability.Occupancy{{BookingID: "b-9", Range: rng(t, "2025-06-01", "2025-06-05")}}}
	checker := availability.NewChecker(store, func() time.Time { return today })

	res, err := checker.Check(context.Background(), rental(property.TypeRent), availability.Request{Range: rng(t, "2025-06-04", "2025-06-06")})
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, "b-9", res.Conflict.BookingID)

	store.err = errors.New("down")
	_, err = checker.Check(context.Background(), rental(property.TypeRent), availability.Request{Range: rng(t, "2025-06-04", "2025-06-06")})
	assert.Error(t, err)
}
