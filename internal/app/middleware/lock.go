package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/policies"
)

// LockTarget names the property a command mutates, directly or through one of its bookings.
type LockTarget struct {
	PropertyID string
	BookingID  string
}

// PropertyScoped commands are serialized per property.
type PropertyScoped interface {
	commands.Command
	LockTarget() LockTarget
}

// PropertyResolver finds the property a booking belongs to. A booking's property
// never changes, so the answer may be read before the lock is taken.
type PropertyResolver interface {
	PropertyOf(ctx context.Context, bookingID string) (string, error)
}

type lockedKey struct{}

// LockedProperty reports the property whose lock the current command holds.
func LockedProperty(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(lockedKey{}).(string)
	return id, ok && id != ""
}

// PropertyLock holds the property's exclusive lock for the rest of the chain.
// Acquisition is bounded by timeout; running out surfaces policies.ErrLockTimeout.
func PropertyLock(locker policies.Locker, resolver PropertyResolver, timeout time.Duration, logger *slog.Logger) CommandMiddleware {
	if locker == nil {
		panic("middleware: locker required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scoped, ok := cmd.(PropertyScoped)
			if !ok {
				return nextFn(ctx, cmd)
			}
			target := scoped.LockTarget()
			propertyID := target.PropertyID
			if propertyID == "" && target.BookingID != "" {
				if resolver == nil {
					return nil, errors.New("middleware: property resolver required")
				}
				var err error
				propertyID, err = resolver.PropertyOf(ctx, target.BookingID)
				if err != nil {
					return nil, err
				}
			}
			if propertyID == "" {
				return nextFn(ctx, cmd)
			}

			acquireCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				acquireCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			release, err := locker.Acquire(acquireCtx, policies.PropertyLockKey(propertyID))
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					err = policies.ErrLockTimeout
				}
				if errors.Is(err, policies.ErrLockTimeout) {
					logger.Warn("property lock timeout", "property_id", propertyID, "command", cmd.Key())
				}
				return nil, err
			}
			defer func() {
				if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
					logger.Error("property lock release failed", "property_id", propertyID, "err", relErr)
				}
			}()
			return nextFn(context.WithValue(ctx, lockedKey{}, propertyID), cmd)
		})
	}
}
