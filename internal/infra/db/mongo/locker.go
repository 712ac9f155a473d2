package mongo

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/app/policies"
)

// LeaseLocker implements the property lock as a lease document in
// booking_locks. A live holder renews its lease every TTL/3; one that dies
// keeps the lock until the lease expires.
type LeaseLocker struct {
	col   *mongo.Collection
	TTL   time.Duration
	Retry time.Duration
}

func NewLeaseLocker(db *mongo.Database, ttl time.Duration) *LeaseLocker {
	col := db.Collection("booking_locks")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaseLocker{col: col, TTL: ttl, Retry: 25 * time.Millisecond}
}

var _ policies.Locker = (*LeaseLocker)(nil)

type lockDocument struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

func (l *LeaseLocker) Acquire(ctx context.Context, key string) (policies.Release, error) {
	owner := uuid.NewString()
	for {
		ok, err := l.tryAcquire(ctx, key, owner)
		if err != nil {
			if ctx.Err() != nil {
				return nil, policies.ErrLockTimeout
			}
			return nil, err
		}
		if ok {
			return l.hold(key, owner), nil
		}
		select {
		case <-ctx.Done():
			return nil, policies.ErrLockTimeout
		case <-time.After(l.Retry):
		}
	}
}

// tryAcquire takes the lease when it is free or expired. A live lease makes the
// upsert collide on _id.
func (l *LeaseLocker) tryAcquire(ctx context.Context, key, owner string) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{"_id": key, "expires_at": bson.M{"$lte": now}}
	update := bson.M{"$set": lockDocument{ID: key, Owner: owner, ExpiresAt: now.Add(l.TTL), CreatedAt: now}}
	_, err := l.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err == nil {
		return true, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	return false, err
}

// hold renews the lease until the returned Release runs. Release reports
// ErrLockLost when a renewal found the lease owned by someone else.
func (l *LeaseLocker) hold(key, owner string) policies.Release {
	stop := make(chan struct{})
	done := make(chan struct{})
	var lost atomic.Bool
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.renewEvery())
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				held, err := l.renew(key, owner)
				if err == nil && !held {
					lost.Store(true)
					return
				}
			}
		}
	}()

	var once atomic.Bool
	return func(ctx context.Context) error {
		if !once.CompareAndSwap(false, true) {
			return nil
		}
		close(stop)
		<-done
		res, err := l.col.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
		if err != nil {
			return err
		}
		if lost.Load() || res.DeletedCount == 0 {
			return fmt.Errorf("%w: %s", policies.ErrLockLost, key)
		}
		return nil
	}
}

// renew pushes the lease expiry forward while owner still holds it.
func (l *LeaseLocker) renew(key, owner string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.renewEvery())
	defer cancel()
	res, err := l.col.UpdateOne(ctx,
		bson.M{"_id": key, "owner": owner},
		bson.M{"$set": bson.M{"expires_at": time.Now().UTC().Add(l.TTL)}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (l *LeaseLocker) renewEvery() time.Duration {
	if d := l.TTL / 3; d > 0 {
		return d
	}
	return time.Second
}
