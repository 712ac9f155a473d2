package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing pool")

// Factory opens one pgx transaction per unit of work. Repositories handed out by
// the unit run their statements on that transaction.
type Factory struct {
	Pool *pgxpool.Pool
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Pool == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := f.Pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, err
	}
	return &Unit{tx: tx}, nil
}

type Unit struct {
	tx   pgx.Tx
	done bool
}

func (u *Unit) Bookings() domainbooking.Repository {
	return NewBookingRepository(u.tx)
}

func (u *Unit) Outbox() appoutbox.Writer {
	return NewOutboxStore(u.tx)
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return uow.ErrUnitClosed
	}
	u.done = true
	return u.tx.Commit(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
