package support

import (
	"context"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, ok := uow.FromContext(ctx)
	if ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	newUnit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Bind(ctx, newUnit)
	cleanup := func() {
		_ = newUnit.Rollback(execCtx)
	}
	return newUnit, execCtx, cleanup, nil
}

// RequireUnit returns the unit opened by the transaction middleware.
func RequireUnit(ctx context.Context) (uow.UnitOfWork, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	return unit, nil
}

// PropertyResolver reads a booking's property through a read-only unit.
type PropertyResolver struct {
	UoWFactory uow.UoWFactory
}

func (r PropertyResolver) PropertyOf(ctx context.Context, bookingID string) (string, error) {
	unit, execCtx, cleanup, err := BeginReadOnlyUnit(ctx, r.UoWFactory)
	if err != nil {
		return "", err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.ID(bookingID))
	if err != nil {
		return "", err
	}
	return string(b.PropertyID), nil
}
