// Package redis caches calendar reads for the lock-free availability queries.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"staybook/internal/app/policies"
	domainavailability "staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

const (
	keyPrefix = "staybook:availability:"
	genPrefix = "staybook:availability-gen:"
)

// client is the part of redis.Cmdable the cache uses.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// AvailabilityCache decorates a calendar store. Reads go to Redis first and
// fall back to the store when Redis misses or fails. Writers call Invalidate
// after every commit that changes a calendar.
//
// Entries are keyed by a per-property generation that Invalidate bumps, so a
// read-through that loaded before an invalidation writes under a generation
// no later reader looks at.
type AvailabilityCache struct {
	client client
	next   domainavailability.Store
	ttl    time.Duration
	tracer trace.Tracer
	logger *slog.Logger
}

func NewAvailabilityCache(c client, next domainavailability.Store, ttl time.Duration, tracer trace.Tracer, logger *slog.Logger) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityCache{client: c, next: next, ttl: ttl, tracer: tracer, logger: logger}
}

// NewClient connects to addr and verifies it answers PING.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

var (
	_ domainavailability.Store         = (*AvailabilityCache)(nil)
	_ policies.AvailabilityInvalidator = (*AvailabilityCache)(nil)
)

type cachedOccupancy struct {
	BookingID string `json:"booking_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
}

func (c *AvailabilityCache) OccupiedRanges(ctx context.Context, id property.ID) ([]domainavailability.Occupancy, error) {
	ctx, span := c.start(ctx, "AvailabilityCache.OccupiedRanges")
	if span != nil {
		defer span.End()
	}
	gen, err := c.generation(ctx, string(id))
	if err != nil {
		if span != nil {
			span.SetStatus(codes.Error, "cache read failed")
		}
		c.logger.Warn("availability cache read failed", "property_id", id, "err", err)
		return c.next.OccupiedRanges(ctx, id)
	}
	key := entryKey(string(id), gen)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		occupied, decodeErr := decode(raw)
		if decodeErr == nil {
			return occupied, nil
		}
		c.logger.Warn("availability cache entry unreadable", "property_id", id, "err", decodeErr)
	case errors.Is(err, redis.Nil):
	default:
		if span != nil {
			span.SetStatus(codes.Error, "cache read failed")
		}
		c.logger.Warn("availability cache read failed", "property_id", id, "err", err)
	}

	occupied, err := c.next.OccupiedRanges(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := encode(occupied)
	if err == nil {
		err = c.client.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("availability cache write failed", "property_id", id, "err", err)
	}
	return occupied, nil
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, propertyID string) error {
	ctx, span := c.start(ctx, "AvailabilityCache.Invalidate")
	if span != nil {
		defer span.End()
	}
	gen, err := c.client.Incr(ctx, genPrefix+propertyID).Result()
	if err != nil {
		if span != nil {
			span.SetStatus(codes.Error, "cache invalidate failed")
		}
		return err
	}
	if err := c.client.Del(ctx, entryKey(propertyID, gen-1)).Err(); err != nil {
		c.logger.Warn("availability cache delete failed", "property_id", propertyID, "err", err)
	}
	return nil
}

// generation returns the property's current cache generation; a property
// never invalidated is at zero.
func (c *AvailabilityCache) generation(ctx context.Context, propertyID string) (int64, error) {
	gen, err := c.client.Get(ctx, genPrefix+propertyID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func entryKey(propertyID string, gen int64) string {
	return keyPrefix + propertyID + ":" + strconv.FormatInt(gen, 10)
}

func (c *AvailabilityCache) start(ctx context.Context, name string) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, nil
	}
	return c.tracer.Start(ctx, name)
}

func encode(occupied []domainavailability.Occupancy) ([]byte, error) {
	out := make([]cachedOccupancy, 0, len(occupied))
	for _, o := range occupied {
		out = append(out, cachedOccupancy{
			BookingID: o.BookingID,
			CheckIn:   o.Range.CheckIn.Format(daterange.Layout),
			CheckOut:  o.Range.CheckOut.Format(daterange.Layout),
		})
	}
	return json.Marshal(out)
}

func decode(raw []byte) ([]domainavailability.Occupancy, error) {
	var cached []cachedOccupancy
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, err
	}
	out := make([]domainavailability.Occupancy, 0, len(cached))
	for _, c := range cached {
		dr, err := daterange.Parse(c.CheckIn, c.CheckOut)
		if err != nil {
			return nil, err
		}
		out = append(out, domainavailability.Occupancy{BookingID: c.BookingID, Range: dr})
	}
	return out, nil
}
