package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	BookingRepo domainbooking.Repository
	Outbox      appoutbox.Writer
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session. Writable units run a snapshot transaction;
// read-only units read outside one.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.BookingRepo == nil || f.Outbox == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	if !opts.ReadOnly {
		txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(f.DB.WriteConcern())
		if err := session.StartTransaction(txnOpts); err != nil {
			session.EndSession(ctx)
			return nil, err
		}
	}
	return &Unit{
		session:  session,
		booking:  f.BookingRepo,
		outbox:   f.Outbox,
		readOnly: opts.ReadOnly,
	}, nil
}

type Unit struct {
	session  mongo.Session
	booking  domainbooking.Repository
	outbox   appoutbox.Writer
	readOnly bool
	done     bool
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.booking
}

func (u *Unit) Outbox() appoutbox.Writer {
	return u.outbox
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return uow.ErrUnitClosed
	}
	u.done = true
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
