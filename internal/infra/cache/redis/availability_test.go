package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainavailability "staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

type fakeClient struct {
	values  map[string][]byte
	getErr  error
	setTTL  time.Duration
	deleted []string
}

func newFakeClient() *fakeClient { return &fakeClient{values: map[string][]byte{}} }

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.values[key] = value.([]byte)
	f.setTTL = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.values, k)
	}
	f.deleted = append(f.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeClient) Incr(_ context.Context, key string) *redis.IntCmd {
	n, _ := strconv.ParseInt(string(f.values[key]), 10, 64)
	n++
	f.values[key] = []byte(strconv.FormatInt(n, 10))
	return redis.NewIntResult(n, nil)
}

type countingStore struct {
	calls    int
	occupied []domainavailability.Occupancy
	err      error
}

func (s *countingStore) OccupiedRanges(context.Context, property.ID) ([]domainavailability.Occupancy, error) {
	s.calls++
	return s.occupied, s.err
}

func occupancy(t *testing.T, id, in, out string) domainavailability.Occupancy {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	require.NoError(t, err)
	return domainavailability.Occupancy{BookingID: id, Range: dr}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAvailabilityCache_ReadThroughThenHit(t *testing.T) {
	client := newFakeClient()
	store := &countingStore{occupied: []domainavailability.Occupancy{occupancy(t, "b-1", "2025-06-01", "2025-06-05")}}
	cache := NewAvailabilityCache(client, store, time.Minute, nil, quiet())

	first, err := cache.OccupiedRanges(context.Background(), "p-1")
	require.NoError(t, err)
	second, err := cache.OccupiedRanges(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, time.Minute, client.setTTL)
	require.Len(t, second, 1)
	assert.Equal(t, "b-1", second[0].BookingID)
	assert.True(t, first[0].Range.Equal(second[0].Range))
}

func TestAvailabilityCache_InvalidateForcesReload(t *testing.T) {
	client := newFakeClient()
	store := &countingStore{}
	cache := NewAvailabilityCache(client, store, 0, nil, quiet())

	_, err := cache.OccupiedRanges(context.Background(), "p-1")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background(), "p-1"))
	_, err = cache.OccupiedRanges(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, 2, store.calls)
	assert.Equal(t, []string{entryKey("p-1", 0)}, client.deleted)
}

func TestAvailabilityCache_FallsBackWhenRedisFails(t *testing.T) {
	client := newFakeClient()
	client.getErr = errors.New("connection refused")
	store := &countingStore{occupied: []domainavailability.Occupancy{occupancy(t, "b-2", "2025-07-01", "2025-07-03")}}
	cache := NewAvailabilityCache(client, store, time.Minute, nil, quiet())

	got, err := cache.OccupiedRanges(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, store.calls)
}

func TestAvailabilityCache_StoreErrorsPropagate(t *testing.T) {
	boom := errors.New("store down")
	cache := NewAvailabilityCache(newFakeClient(), &countingStore{err: boom}, time.Minute, nil, quiet())
	_, err := cache.OccupiedRanges(context.Background(), "p-1")
	assert.ErrorIs(t, err, boom)
}

func TestAvailabilityCache_IgnoresCorruptEntries(t *testing.T) {
	client := newFakeClient()
	client.values[entryKey("p-1", 0)] = []byte("{garbage")
	store := &countingStore{}
	cache := NewAvailabilityCache(client, store, time.Minute, nil, quiet())

	_, err := cache.OccupiedRanges(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
}

// invalidatingStore simulates a commit landing while a read-through is loading:
// it returns the calendar as it was and invalidates before the cache writes.
type invalidatingStore struct {
	cache *AvailabilityCache
	calls int
	stale []domainavailability.Occupancy
	fresh []domainavailability.Occupancy
}

func (s *invalidatingStore) OccupiedRanges(ctx context.Context, id property.ID) ([]domainavailability.Occupancy, error) {
	s.calls++
	if s.calls == 1 {
		if err := s.cache.Invalidate(ctx, string(id)); err != nil {
			return nil, err
		}
		return s.stale, nil
	}
	return s.fresh, nil
}

func TestAvailabilityCache_LateWriteDoesNotOutliveInvalidate(t *testing.T) {
	client := newFakeClient()
	store := &invalidatingStore{
		fresh: []domainavailability.Occupancy{occupancy(t, "b-9", "2025-06-01", "2025-06-05")},
	}
	cache := NewAvailabilityCache(client, store, time.Minute, nil, quiet())
	store.cache = cache

	stale, err := cache.OccupiedRanges(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Empty(t, stale)

	got, err := cache.OccupiedRanges(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, got, 1, "the stale load must not be served after invalidation")
	assert.Equal(t, "b-9", got[0].BookingID)
	assert.Equal(t, 2, store.calls)

	cached, err := cache.OccupiedRanges(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, 2, store.calls)
}
