package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"staybook/internal/app/policies"
)

// AdvisoryLocker implements the property lock with session advisory locks.
// Pool must be dedicated to locking: a held lock pins one of its connections
// until release, so sharing it with units of work can starve Begin. Waiters
// hold no connection between attempts, and a crashed holder's lock goes away
// with its session.
type AdvisoryLocker struct {
	Pool  *pgxpool.Pool
	Retry time.Duration
}

func NewAdvisoryLocker(lockPool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{Pool: lockPool, Retry: 25 * time.Millisecond}
}

var _ policies.Locker = (*AdvisoryLocker)(nil)

func (l *AdvisoryLocker) Acquire(ctx context.Context, key string) (policies.Release, error) {
	for {
		conn, ok, err := l.try(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, policies.ErrLockTimeout
			}
			return nil, err
		}
		if ok {
			return l.release(conn, key), nil
		}
		select {
		case <-ctx.Done():
			return nil, policies.ErrLockTimeout
		case <-time.After(l.retry()):
		}
	}
}

// try checks out a connection for one attempt and keeps it only on success.
func (l *AdvisoryLocker) try(ctx context.Context, key string) (*pgxpool.Conn, bool, error) {
	conn, err := l.Pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&ok); err != nil {
		// The attempt may have landed; drop the session rather than pool it.
		_ = conn.Conn().Close(context.WithoutCancel(ctx))
		conn.Release()
		return nil, false, err
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	return conn, true, nil
}

func (l *AdvisoryLocker) release(conn *pgxpool.Conn, key string) policies.Release {
	return func(ctx context.Context) error {
		defer conn.Release()
		var ok bool
		if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key).Scan(&ok); err != nil {
			// A lock we cannot release must not return to the pool with the session.
			_ = conn.Conn().Close(context.WithoutCancel(ctx))
			return err
		}
		return nil
	}
}

func (l *AdvisoryLocker) retry() time.Duration {
	if l.Retry <= 0 {
		return 25 * time.Millisecond
	}
	return l.Retry
}
