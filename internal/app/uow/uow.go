package uow

import (
	"context"
	"errors"

	"staybook/internal/app/outbox"
	domainbooking "staybook/internal/domain/booking"
)

var (
	ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")
	ErrUnitClosed        = errors.New("uow: unit of work already finished")
)

// UnitOfWork coordinates repositories inside a transaction boundary. Writes made
// through it, outbox records included, become visible together on Commit or not at all.
type UnitOfWork interface {
	Bookings() domainbooking.Repository
	Outbox() outbox.Writer

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (sessions,
// transactions) in the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

type ctxKey struct{}

// ContextWithUnitOfWork stores the provided unit of work in context.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext retrieves a unit of work from context if present.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return nil, false
	}
	unit, ok := val.(UnitOfWork)
	return unit, ok
}

// Bind returns ctx carrying unit, injected with its driver state when it has any.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}
