package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/dto"
	"staybook/internal/app/schedule"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type call struct {
	id     string
	reason domainbooking.CancelReason
}

type recordingCoordinator struct {
	cancels   []call
	completes []string
	err       error
}

func (r *recordingCoordinator) CancelPendingBooking(_ context.Context, id string, reason domainbooking.CancelReason) (dto.Booking, error) {
	r.cancels = append(r.cancels, call{id: id, reason: reason})
	return dto.Booking{ID: id}, r.err
}

func (r *recordingCoordinator) CompleteBooking(_ context.Context, id string) (dto.Booking, error) {
	r.completes = append(r.completes, id)
	return dto.Booking{ID: id}, r.err
}

func seed(t *testing.T, store *memory.Store, id, in, out string, created time.Time, confirm bool) {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	require.NoError(t, err)
	quote, err := pricing.Compute(pricing.QuoteInput{PricePerNight: money.Must("100", "USD"), Range: dr, PropertyType: property.TypeRent, Guests: 1})
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID: domainbooking.ID(id), PropertyID: "p-1", GuestID: "g-1", Range: dr, Guests: 1, Price: quote, CreatedAt: created,
	})
	require.NoError(t, err)
	if confirm {
		require.NoError(t, b.Confirm(created))
	}
	require.NoError(t, memory.NewBookingRepository(store).Save(t.Context(), b))
}

func TestReaper_CancelsStalePendingBookings(t *testing.T) {
	store := memory.NewStore(nil)
	seed(t, store, "stale", "2025-07-01", "2025-07-03", now.Add(-2*time.Hour), false)
	seed(t, store, "fresh", "2025-07-05", "2025-07-07", now.Add(-5*time.Minute), false)
	seed(t, store, "held", "2025-07-10", "2025-07-12", now.Add(-3*time.Hour), true)
	coord := &recordingCoordinator{}
	reaper := &schedule.Reaper{
		UoWFactory:  memory.Factory{Store: store},
		Coordinator: coord,
		Timeout:     30 * time.Minute,
		Now:         func() time.Time { return now },
	}

	n, err := reaper.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, coord.cancels, 1)
	assert.Equal(t, call{id: "stale", reason: domainbooking.ReasonPaymentTimeout}, coord.cancels[0])
}

func TestReaper_ToleratesConcurrentSettlement(t *testing.T) {
	for _, settled := range []error{domainbooking.ErrTerminalState, domainbooking.ErrInvalidTransition} {
		store := memory.NewStore(nil)
		seed(t, store, "stale", "2025-07-01", "2025-07-03", now.Add(-2*time.Hour), false)
		coord := &recordingCoordinator{err: settled}
		reaper := &schedule.Reaper{UoWFactory: memory.Factory{Store: store}, Coordinator: coord, Timeout: time.Minute, Now: func() time.Time { return now }}

		n, err := reaper.RunOnce(t.Context())
		require.NoError(t, err)
		assert.Zero(t, n, settled.Error())
	}
}

func TestSweeper_CompletesEndedStays(t *testing.T) {
	store := memory.NewStore(nil)
	seed(t, store, "ended", "2025-06-01", "2025-06-05", now.AddDate(0, -1, 0), true)
	seed(t, store, "checkout-today", "2025-06-08", "2025-06-10", now.AddDate(0, -1, 0), true)
	seed(t, store, "ongoing", "2025-06-09", "2025-06-12", now.AddDate(0, -1, 0), true)
	seed(t, store, "pending", "2025-06-01", "2025-06-03", now.AddDate(0, -1, 0), false)
	coord := &recordingCoordinator{}
	sweeper := &schedule.Sweeper{UoWFactory: memory.Factory{Store: store}, Coordinator: coord, Now: func() time.Time { return now }}

	n, err := sweeper.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"ended", "checkout-today"}, coord.completes)
}
