package mongo_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	mongostore "staybook/internal/infra/db/mongo"
)

// connect returns a client on a throwaway database, or skips without TEST_MONGO_URI.
func connect(t *testing.T) *mongostore.Client {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	client, err := mongostore.New(uri, "staybook_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = client.DB.Drop(ctx)
		_ = client.Close(ctx)
	})
	require.NoError(t, client.Ping(context.Background()))
	return client
}

func newBooking(t *testing.T) *domainbooking.Booking {
	t.Helper()
	dr, err := daterange.Parse("2025-06-01", "2025-06-06")
	require.NoError(t, err)
	price, err := pricing.Compute(pricing.QuoteInput{
		PricePerNight: money.Must("100", "EUR"),
		Range:         dr,
		PropertyType:  property.TypeRent,
		Guests:        2,
	})
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.ID(uuid.NewString()),
		PropertyID: "p-1",
		GuestID:    "g-1",
		Range:      dr,
		Guests:     2,
		Price:      price,
		CreatedAt:  time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return b
}

func TestBookingRepository_RoundTripAndVersioning(t *testing.T) {
	ctx := context.Background()
	repo := mongostore.NewBookingRepository(connect(t).DB)

	b := newBooking(t)
	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, int64(1), b.Version)

	got, err := repo.ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "550", got.TotalPrice().Amount.String())
	assert.True(t, got.Range.Equal(b.Range))

	stale := got.Clone()
	require.NoError(t, got.Confirm(got.CreatedAt))
	require.NoError(t, repo.Save(ctx, got))
	assert.ErrorIs(t, repo.Save(ctx, stale), domainbooking.ErrVersionConflict)

	confirmed, err := repo.ListByProperty(ctx, "p-1", domainbooking.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, b.ID, confirmed[0].ID)

	_, err = repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
}

func TestOutboxStore_ClaimAndMark(t *testing.T) {
	ctx := context.Background()
	store := mongostore.NewOutboxStore(connect(t).DB)
	require.NoError(t, store.Add(ctx, appoutbox.EventRecord{ID: "e-1", Name: "booking.created", Payload: []byte(`{}`), OccurredAt: time.Now().UTC()}))

	msg, err := store.Claim(ctx, "w-1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "booking.created", msg.Name)

	none, err := store.Claim(ctx, "w-2")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, store.MarkFailed(ctx, msg.ID, time.Now().Add(-time.Second), "broker down"))
	retry, err := store.Claim(ctx, "w-2")
	require.NoError(t, err)
	require.NotNil(t, retry)
	require.NoError(t, store.MarkSent(ctx, retry.ID))

	none, err = store.Claim(ctx, "w-1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestInboxStore_SeenOnce(t *testing.T) {
	ctx := context.Background()
	inbox := mongostore.NewInboxStore(connect(t).DB, "payments")

	seen, err := inbox.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = inbox.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen, "checking does not record")

	require.NoError(t, inbox.Record(ctx, "evt-1"))
	require.NoError(t, inbox.Record(ctx, "evt-1"))
	seen, err = inbox.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestLeaseLocker_TimesOutWhileHeld(t *testing.T) {
	locker := mongostore.NewLeaseLocker(connect(t).DB, 5*time.Second)

	release, err := locker.Acquire(context.Background(), "property:p-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "property:p-1")
	assert.ErrorIs(t, err, policies.ErrLockTimeout)

	require.NoError(t, release(context.Background()))
	again, err := locker.Acquire(context.Background(), "property:p-1")
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}

func TestLeaseLocker_RenewsWhileHeld(t *testing.T) {
	locker := mongostore.NewLeaseLocker(connect(t).DB, 600*time.Millisecond)

	release, err := locker.Acquire(context.Background(), "property:p-1")
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "property:p-1")
	assert.ErrorIs(t, err, policies.ErrLockTimeout, "a renewed lease must not be taken over")

	require.NoError(t, release(context.Background()))
}

func TestLeaseLocker_ReleaseReportsLostLease(t *testing.T) {
	db := connect(t).DB
	locker := mongostore.NewLeaseLocker(db, 600*time.Millisecond)

	release, err := locker.Acquire(context.Background(), "property:p-1")
	require.NoError(t, err)
	_, err = db.Collection("booking_locks").UpdateOne(context.Background(),
		bson.M{"_id": "property:p-1"},
		bson.M{"$set": bson.M{"owner": "someone-else"}},
	)
	require.NoError(t, err)

	assert.ErrorIs(t, release(context.Background()), policies.ErrLockLost)
	count, err := db.Collection("booking_locks").CountDocuments(context.Background(), bson.M{"_id": "property:p-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "another owner's lease is left in place")
}
