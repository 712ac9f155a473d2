package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
)

const defaultBatch = 100

// Job is one idempotent pass; Runner repeats it on a ticker.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) (int, error)
}

// Coordinator is the subset of the booking coordinator the jobs dispatch through,
// so that status writes keep emitting their events.
type Coordinator interface {
	CancelPendingBooking(ctx context.Context, bookingID string, reason domainbooking.CancelReason) (dto.Booking, error)
	CompleteBooking(ctx context.Context, bookingID string) (dto.Booking, error)
}

// Reaper cancels pending bookings whose deposit did not arrive within Timeout.
type Reaper struct {
	UoWFactory  uow.UoWFactory
	Coordinator Coordinator
	Timeout     time.Duration
	Batch       int
	Now         func() time.Time
	Logger      *slog.Logger
}

func (r *Reaper) Name() string { return "payment-timeout-reaper" }

func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	cutoff := now(r.Now).Add(-r.Timeout)
	stale, err := listWith(ctx, r.UoWFactory, func(ctx context.Context, repo domainbooking.Repository) ([]*domainbooking.Booking, error) {
		return repo.PendingCreatedBefore(ctx, cutoff, batch(r.Batch))
	})
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, b := range stale {
		// The listing ran without the property lock; the cancel re-checks pending under it.
		_, err := r.Coordinator.CancelPendingBooking(ctx, string(b.ID), domainbooking.ReasonPaymentTimeout)
		switch {
		case err == nil:
			reaped++
			logger(r.Logger).Warn("pending booking reaped", "booking_id", b.ID, "created_at", b.CreatedAt)
		case errors.Is(err, domainbooking.ErrInvalidTransition), errors.Is(err, domainbooking.ErrTerminalState), errors.Is(err, domainbooking.ErrNotFound):
			logger(r.Logger).Info("pending booking settled before reaping", "booking_id", b.ID, "err", err)
		default:
			logger(r.Logger).Error("reaper cancel failed", "booking_id", b.ID, "err", err)
		}
	}
	return reaped, nil
}

// Sweeper persists lazy completion for confirmed stays whose check-out has passed.
type Sweeper struct {
	UoWFactory  uow.UoWFactory
	Coordinator Coordinator
	Batch       int
	Now         func() time.Time
	Logger      *slog.Logger
}

func (s *Sweeper) Name() string { return "completion-sweeper" }

func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	today := daterange.Day(now(s.Now))
	due, err := listWith(ctx, s.UoWFactory, func(ctx context.Context, repo domainbooking.Repository) ([]*domainbooking.Booking, error) {
		return repo.ConfirmedEndedBy(ctx, today, batch(s.Batch))
	})
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, b := range due {
		if _, err := s.Coordinator.CompleteBooking(ctx, string(b.ID)); err != nil {
			if !errors.Is(err, domainbooking.ErrTerminalState) {
				logger(s.Logger).Error("sweeper completion failed", "booking_id", b.ID, "err", err)
			}
			continue
		}
		completed++
	}
	if completed > 0 {
		logger(s.Logger).Info("bookings completed", "count", completed)
	}
	return completed, nil
}

// Run repeats job every interval until ctx is done. Pass errors are logged, not fatal.
func Run(ctx context.Context, job Job, interval time.Duration, log *slog.Logger) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := job.RunOnce(ctx); err != nil && ctx.Err() == nil {
				logger(log).Error("scheduled job failed", "job", job.Name(), "err", err)
			}
		}
	}
}

func listWith(ctx context.Context, factory uow.UoWFactory, fn func(context.Context, domainbooking.Repository) ([]*domainbooking.Booking, error)) ([]*domainbooking.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, factory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return fn(execCtx, unit.Bookings())
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn().UTC()
	}
	return time.Now().UTC()
}

func batch(n int) int {
	if n <= 0 {
		return defaultBatch
	}
	return n
}

func logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
