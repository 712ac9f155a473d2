package policies

import (
	"context"
	"errors"
)

// ErrLockTimeout is retryable: the caller may resend the same request.
var ErrLockTimeout = errors.New("lock: timed out acquiring property lock")

// ErrLockLost is returned by Release when a lease-based lock expired or was
// taken over while it was held.
var ErrLockLost = errors.New("lock: lease lost while held")

// Release frees a held lock. It must be safe to call with a context that is
// already past the acquisition deadline.
type Release func(ctx context.Context) error

// Locker grants exclusive access to one property's calendar. Acquire blocks until
// the lock is held or ctx is done, in which case it returns ErrLockTimeout.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// PropertyLockKey namespaces lock keys so drivers can share a keyspace.
func PropertyLockKey(propertyID string) string {
	return "property:" + propertyID
}
